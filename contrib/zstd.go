package contrib

import (
	"io"

	zstd "github.com/valyala/gozstd"

	"github.com/AdRoll/autoflate"
)

// FormatZstd is the Zstandard frame format.
const FormatZstd autoflate.Format = "zstd"

// zstd frame magic, 0xFD2FB528 little-endian.
var zstdMagic = [...]byte{0x28, 0xb5, 0x2f, 0xfd}

// ZstdDesc describes the Zstandard frame format.
var ZstdDesc = autoflate.DecoderDesc{
	Name:   "Zstd",
	Format: FormatZstd,
	Detect: autoflate.Detector{Format: FormatZstd, Probe: detectZstd},
	New: func(cfg autoflate.DecoderParams, sink io.Writer) (autoflate.Decoder, error) {
		return autoflate.NewDecoder("Zstd", cfg, sink, openZstd), nil
	},
	NewReader: func(cfg autoflate.DecoderParams, r io.Reader) (io.ReadCloser, error) {
		return autoflate.NewFormatReader(cfg, r, openZstd), nil
	},
	DecodeAll: func(cfg autoflate.DecoderParams, input, dst []byte) ([]byte, error) {
		if len(input) == 0 {
			return dst, nil
		}
		return zstd.Decompress(dst, input)
	},
	Help: "Zstandard frame stream, as produced by the zstd tool.\n",
}

func detectZstd(sig []byte) autoflate.Detection {
	for i, b := range zstdMagic {
		if i >= len(sig) {
			return autoflate.DetectMore
		}
		if sig[i] != b {
			return autoflate.DetectReject
		}
	}
	return autoflate.DetectMatch
}

func openZstd(cfg autoflate.DecoderParams, r io.Reader) (io.ReadCloser, error) {
	return &zstdReadCloser{r: zstd.NewReader(r)}, nil
}

// zstdReadCloser gives the gozstd reader the Close method the decoder
// expects, releasing the underlying C resources.
type zstdReadCloser struct {
	r *zstd.Reader
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.r.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.r.Release()
	return nil
}
