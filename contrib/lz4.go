package contrib

import (
	"io"

	"github.com/pierrec/lz4/v3"

	"github.com/AdRoll/autoflate"
)

// FormatLZ4 is the LZ4 frame format.
const FormatLZ4 autoflate.Format = "lz4"

// lz4 frame magic, 0x184D2204 little-endian.
var lz4Magic = [...]byte{0x04, 0x22, 0x4d, 0x18}

// LZ4Desc describes the LZ4 frame format.
var LZ4Desc = autoflate.DecoderDesc{
	Name:   "LZ4",
	Format: FormatLZ4,
	Detect: autoflate.Detector{Format: FormatLZ4, Probe: detectLZ4},
	New: func(cfg autoflate.DecoderParams, sink io.Writer) (autoflate.Decoder, error) {
		return autoflate.NewDecoder("LZ4", cfg, sink, openLZ4), nil
	},
	NewReader: func(cfg autoflate.DecoderParams, r io.Reader) (io.ReadCloser, error) {
		return autoflate.NewFormatReader(cfg, r, openLZ4), nil
	},
	DecodeAll: autoflate.DecodeAllFunc(openLZ4),
	Help:      "LZ4 frame stream, as produced by the lz4 tool.\n",
}

func detectLZ4(sig []byte) autoflate.Detection {
	for i, b := range lz4Magic {
		if i >= len(sig) {
			return autoflate.DetectMore
		}
		if sig[i] != b {
			return autoflate.DetectReject
		}
	}
	return autoflate.DetectMatch
}

func openLZ4(cfg autoflate.DecoderParams, r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
