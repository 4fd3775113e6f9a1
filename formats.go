package autoflate

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	// deflateCM is the "deflate" compression method code shared by the
	// zlib CMF byte (RFC 1950) and the gzip CM byte (RFC 1952).
	deflateCM = 0x08

	// gzip member header magic (RFC 1952).
	gzipID1 = 0x1f
	gzipID2 = 0x8b
)

// Builtins lists the built-in format descriptions, in detection order:
// zlib first, then gzip, then raw, which carries no signature and is only
// reachable as the default format or through Stream.SetFormat.
var Builtins = []DecoderDesc{ZlibDesc, GzipDesc, RawDesc}

// ZlibDesc describes the zlib-wrapped DEFLATE format (RFC 1950).
var ZlibDesc = DecoderDesc{
	Name:   "Zlib",
	Format: FormatZlib,
	Detect: Detector{Format: FormatZlib, Probe: detectZlib},
	New: func(cfg DecoderParams, sink io.Writer) (Decoder, error) {
		return NewDecoder("Zlib", cfg, sink, openZlib), nil
	},
	NewReader: func(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
		return NewFormatReader(cfg, r, openZlib), nil
	},
	DecodeAll: DecodeAllFunc(openZlib),
	Help:      "zlib-wrapped DEFLATE stream (RFC 1950), the zlib.compress/PNG/HTTP-deflate envelope.\n",
}

// GzipDesc describes the gzip-wrapped DEFLATE format (RFC 1952).
var GzipDesc = DecoderDesc{
	Name:   "Gzip",
	Format: FormatGzip,
	Detect: Detector{Format: FormatGzip, Probe: detectGzip},
	New: func(cfg DecoderParams, sink io.Writer) (Decoder, error) {
		return NewDecoder("Gzip", cfg, sink, openGzip), nil
	},
	NewReader: func(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
		return NewFormatReader(cfg, r, openGzip), nil
	},
	DecodeAll: DecodeAllFunc(openGzip),
	Help:      "gzip-wrapped DEFLATE stream (RFC 1952), as produced by the gzip tool.\n",
}

// RawDesc describes the headerless DEFLATE format (RFC 1951). Raw streams
// have no signature so the description carries no detector; the format is
// the usual fallback when nothing else matches.
var RawDesc = DecoderDesc{
	Name:   "Raw",
	Format: FormatRaw,
	New: func(cfg DecoderParams, sink io.Writer) (Decoder, error) {
		return NewDecoder("Raw", cfg, sink, openFlate), nil
	},
	NewReader: func(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
		return NewFormatReader(cfg, r, openFlate), nil
	},
	DecodeAll: DecodeAllFunc(openFlate),
	Help:      "headerless DEFLATE stream (RFC 1951); not detectable, used as fallback.\n",
}

// detectZlib matches the 2-byte zlib header: low nibble of CMF must be the
// deflate method code, and CMF<<8|FLG must be a multiple of 31 (FCHECK).
func detectZlib(sig []byte) Detection {
	if len(sig) == 0 {
		return DetectMore
	}
	if sig[0]&0x0f != deflateCM {
		return DetectReject
	}
	if len(sig) < 2 {
		return DetectMore
	}
	if binary.BigEndian.Uint16(sig)%31 != 0 {
		return DetectReject
	}
	return DetectMatch
}

// detectGzip matches the 3-byte gzip member header: the two ID magic bytes
// followed by the deflate method code.
func detectGzip(sig []byte) Detection {
	magic := [...]byte{gzipID1, gzipID2, deflateCM}
	for i, b := range magic {
		if i >= len(sig) {
			return DetectMore
		}
		if sig[i] != b {
			return DetectReject
		}
	}
	return DetectMatch
}

func openZlib(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
	if len(cfg.Dictionary) > 0 {
		return zlib.NewReaderDict(r, cfg.Dictionary)
	}
	return zlib.NewReader(r)
}

func openGzip(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func openFlate(cfg DecoderParams, r io.Reader) (io.ReadCloser, error) {
	if len(cfg.Dictionary) > 0 {
		return flate.NewReaderDict(r, cfg.Dictionary), nil
	}
	return flate.NewReader(r), nil
}
