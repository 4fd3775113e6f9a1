// Package autoflatetest provides helpers to test auto-detecting streams:
// compressors for every supported format and a recording output sink.
package autoflatetest

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	lz4 "github.com/pierrec/lz4/v3"
	zstd "github.com/valyala/gozstd"
)

// Sink is an output writer recording the decoded chunks pushed to it.
type Sink struct {
	buf    bytes.Buffer
	Writes int
}

func (s *Sink) Write(p []byte) (int, error) {
	s.Writes++
	return s.buf.Write(p)
}

// Bytes returns everything written to the sink so far.
func (s *Sink) Bytes() []byte {
	return s.buf.Bytes()
}

// Zlib compresses data as a zlib-wrapped DEFLATE stream.
func Zlib(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("can't compress zlib: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("can't compress zlib: %v", err)
	}
	return buf.Bytes()
}

// ZlibDict compresses data as a zlib stream using a preset dictionary.
func ZlibDict(tb testing.TB, data, dict []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevelDict(&buf, zlib.DefaultCompression, dict)
	if err != nil {
		tb.Fatalf("can't create zlib writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("can't compress zlib: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("can't compress zlib: %v", err)
	}
	return buf.Bytes()
}

// Gzip compresses data as a gzip member.
func Gzip(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("can't compress gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("can't compress gzip: %v", err)
	}
	return buf.Bytes()
}

// Raw compresses data as a headerless DEFLATE stream.
func Raw(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		tb.Fatalf("can't create flate writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("can't compress flate: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("can't compress flate: %v", err)
	}
	return buf.Bytes()
}

// LZ4 compresses data as an LZ4 frame.
func LZ4(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("can't compress lz4: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("can't compress lz4: %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses data as a Zstandard frame.
func Zstd(tb testing.TB, data []byte) []byte {
	tb.Helper()

	return zstd.Compress(nil, data)
}
