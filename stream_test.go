package autoflate_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/AdRoll/autoflate"
	"github.com/AdRoll/autoflate/autoflatetest"
)

// payload returns a compressible but not trivial test payload.
func payload(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte("the quick brown fox jumps over the lazy dog "[i%44])
		if i%7 == 0 {
			buf[i] = byte(i)
		}
	}
	return buf
}

// chunkings are the ways test inputs are split across Write calls.
var chunkings = []struct {
	name string
	size int
}{
	{"whole buffer", 0},
	{"byte at a time", 1},
	{"tiny chunks", 3},
	{"page chunks", 4096},
}

func writeChunked(t *testing.T, w io.Writer, data []byte, size int) {
	t.Helper()

	if size <= 0 {
		size = len(data)
	}
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		if _, err := w.Write(data[:n]); err != nil {
			t.Fatalf("write: %v", err)
		}
		data = data[n:]
	}
}

func TestStreamDetectsAndDecodes(t *testing.T) {
	plain := payload(64 * 1024)

	formats := []struct {
		format   autoflate.Format
		compress func(tb testing.TB, data []byte) []byte
	}{
		{autoflate.FormatZlib, autoflatetest.Zlib},
		{autoflate.FormatGzip, autoflatetest.Gzip},
		{autoflate.FormatRaw, autoflatetest.Raw},
	}

	for _, f := range formats {
		compressed := f.compress(t, plain)
		for _, chunking := range chunkings {
			t.Run(fmt.Sprintf("%s/%s", f.format, chunking.name), func(t *testing.T) {
				sink := &autoflatetest.Sink{}
				stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
				if err != nil {
					t.Fatal(err)
				}

				writeChunked(t, stream, compressed, chunking.size)
				if err := stream.Close(); err != nil {
					t.Fatalf("close: %v", err)
				}

				if got := stream.Format(); got != f.format {
					t.Errorf("Format() = %q, want %q", got, f.format)
				}
				if !bytes.Equal(sink.Bytes(), plain) {
					t.Errorf("decoded %d bytes, want %d, content differs", len(sink.Bytes()), len(plain))
				}
			})
		}
	}
}

func TestStreamGzipIncrementalDetection(t *testing.T) {
	plain := payload(512)
	compressed := autoflatetest.Gzip(t, plain)

	sink := &autoflatetest.Sink{}
	var bound []autoflate.Format
	stream, err := autoflate.New(autoflate.StreamConfig{
		Output: sink,
		OnFormat: func(format autoflate.Format, dec autoflate.Decoder) {
			if dec == nil {
				t.Error("OnFormat called with nil decoder")
			}
			if sink.Writes != 0 {
				t.Error("decoded data emitted before the format notification")
			}
			bound = append(bound, format)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The 2-byte gzip magic is not enough to decide.
	if _, err := stream.Write(compressed[:2]); err != nil {
		t.Fatal(err)
	}
	if got := stream.Format(); got != autoflate.FormatUnknown {
		t.Fatalf("Format() after 2 bytes = %q, want unknown", got)
	}
	if len(bound) != 0 {
		t.Fatalf("format notified on incomplete signature: %v", bound)
	}

	// The third byte (the CM field) completes the signature.
	if _, err := stream.Write(compressed[2:3]); err != nil {
		t.Fatal(err)
	}
	if got := stream.Format(); got != autoflate.FormatGzip {
		t.Fatalf("Format() after 3 bytes = %q, want gzip", got)
	}

	writeChunked(t, stream, compressed[3:], 0)
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}

	if len(bound) != 1 || bound[0] != autoflate.FormatGzip {
		t.Errorf("OnFormat calls = %v, want exactly one, with gzip", bound)
	}
	if !bytes.Equal(sink.Bytes(), plain) {
		t.Error("decoded output differs from original payload")
	}
}

func TestStreamShortInputFallsBackToRaw(t *testing.T) {
	// A single 0x78 byte could be the start of a zlib stream; when the
	// stream ends there instead, it must be decoded as raw DEFLATE data,
	// and fail the way a raw decoder fails on it.
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := stream.Write([]byte{0x78}); err != nil {
		t.Fatal(err)
	}
	if got := stream.Format(); got != autoflate.FormatUnknown {
		t.Fatalf("Format() = %q, want unknown", got)
	}

	err = stream.Close()
	if err == nil {
		t.Fatal("close: got nil, a truncated raw stream must surface the decoder error")
	}
	if got := stream.Format(); got != autoflate.FormatRaw {
		t.Errorf("Format() = %q, want raw", got)
	}
}

func TestStreamZeroLengthInput(t *testing.T) {
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
	if err != nil {
		t.Fatal(err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := stream.Format(); got != autoflate.FormatRaw {
		t.Errorf("Format() = %q, want raw (the default)", got)
	}
	if len(sink.Bytes()) != 0 {
		t.Errorf("decoded %d bytes from empty input", len(sink.Bytes()))
	}
}

func TestStreamConcatenatedStreams(t *testing.T) {
	first, second := payload(1000), []byte("and that is the end of it")

	tests := []struct {
		format   autoflate.Format
		compress func(tb testing.TB, data []byte) []byte
	}{
		{autoflate.FormatZlib, autoflatetest.Zlib},
		{autoflate.FormatGzip, autoflatetest.Gzip},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			compressed := append(tt.compress(t, first), tt.compress(t, second)...)

			sink := &autoflatetest.Sink{}
			stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
			if err != nil {
				t.Fatal(err)
			}
			writeChunked(t, stream, compressed, 0)
			if err := stream.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			want := append(append([]byte{}, first...), second...)
			if !bytes.Equal(sink.Bytes(), want) {
				t.Errorf("decoded %d bytes, want %d (concatenation of both payloads)", len(sink.Bytes()), len(want))
			}
		})
	}
}

func TestStreamNoMatchNoFallback(t *testing.T) {
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{
		Output:        sink,
		DefaultFormat: autoflate.FormatNone,
	})
	if err != nil {
		t.Fatal(err)
	}

	// 0xff rejects both built-in detectors at the first byte.
	_, err = stream.Write([]byte{0xff, 0x00, 0x01})
	var ferr *autoflate.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("write = %v, want a FormatError", err)
	}
	if len(ferr.Sig) == 0 || ferr.Sig[0] != 0xff {
		t.Errorf("FormatError.Sig = % #x, want the unmatched bytes", ferr.Sig)
	}

	// The failure is terminal and not re-reported as anything else.
	if _, err := stream.Write([]byte{0x00}); !errors.Is(err, autoflate.ErrClosed) {
		t.Errorf("write after failure = %v, want ErrClosed", err)
	}
}

func TestStreamSetFormat(t *testing.T) {
	t.Run("explicit bind decodes", func(t *testing.T) {
		plain := payload(256)
		sink := &autoflatetest.Sink{}
		stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
		if err != nil {
			t.Fatal(err)
		}

		if err := stream.SetFormat(autoflate.FormatGzip); err != nil {
			t.Fatal(err)
		}
		writeChunked(t, stream, autoflatetest.Gzip(t, plain), 0)
		if err := stream.Close(); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(sink.Bytes(), plain) {
			t.Error("decoded output differs from original payload")
		}
	})

	t.Run("same format is a no-op", func(t *testing.T) {
		stream, err := autoflate.New(autoflate.StreamConfig{Output: io.Discard})
		if err != nil {
			t.Fatal(err)
		}
		if err := stream.SetFormat(autoflate.FormatZlib); err != nil {
			t.Fatal(err)
		}
		if err := stream.SetFormat(autoflate.FormatZlib); err != nil {
			t.Fatalf("second SetFormat(zlib) = %v, want nil", err)
		}
	})

	t.Run("changing the format fails", func(t *testing.T) {
		stream, err := autoflate.New(autoflate.StreamConfig{Output: io.Discard})
		if err != nil {
			t.Fatal(err)
		}
		if err := stream.SetFormat(autoflate.FormatZlib); err != nil {
			t.Fatal(err)
		}
		if err := stream.SetFormat(autoflate.FormatGzip); !errors.Is(err, autoflate.ErrFormatChange) {
			t.Fatalf("SetFormat(gzip) after zlib = %v, want ErrFormatChange", err)
		}
	})

	t.Run("detection reconfirming the bound format is a no-op", func(t *testing.T) {
		plain := payload(256)
		sink := &autoflatetest.Sink{}
		stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
		if err != nil {
			t.Fatal(err)
		}
		if err := stream.SetFormat(autoflate.FormatGzip); err != nil {
			t.Fatal(err)
		}
		// The gzip bytes would detect as gzip anyway; the preexisting
		// binding must simply keep decoding.
		writeChunked(t, stream, autoflatetest.Gzip(t, plain), 7)
		if err := stream.Close(); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(sink.Bytes(), plain) {
			t.Error("decoded output differs from original payload")
		}
	})
}

func TestStreamCloseIdempotent(t *testing.T) {
	plain := payload(128)
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
	if err != nil {
		t.Fatal(err)
	}
	writeChunked(t, stream, autoflatetest.Gzip(t, plain), 0)

	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	n := len(sink.Bytes())
	for i := 0; i < 3; i++ {
		if err := stream.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+2, err)
		}
	}
	if len(sink.Bytes()) != n {
		t.Error("repeated close emitted more output")
	}

	if _, err := stream.Write([]byte{0x00}); !errors.Is(err, autoflate.ErrClosed) {
		t.Errorf("write after close = %v, want ErrClosed", err)
	}
	if err := stream.Flush(autoflate.FlushSync); !errors.Is(err, autoflate.ErrClosed) {
		t.Errorf("flush after close = %v, want ErrClosed", err)
	}
	if err := stream.Reset(); !errors.Is(err, autoflate.ErrClosed) {
		t.Errorf("reset after close = %v, want ErrClosed", err)
	}
}

func TestStreamResetBeforeBind(t *testing.T) {
	plain := payload(256)
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
	if err != nil {
		t.Fatal(err)
	}

	// 0x78 definitely rejects the gzip detector and buffers one byte.
	if _, err := stream.Write([]byte{0x78}); err != nil {
		t.Fatal(err)
	}

	// Reset drops the buffered byte and brings the gzip detector back
	// into play, so a gzip stream must now be detected from scratch.
	if err := stream.Reset(); err != nil {
		t.Fatal(err)
	}
	writeChunked(t, stream, autoflatetest.Gzip(t, plain), 0)
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
	if got := stream.Format(); got != autoflate.FormatGzip {
		t.Errorf("Format() = %q, want gzip", got)
	}
	if !bytes.Equal(sink.Bytes(), plain) {
		t.Error("decoded output differs from original payload")
	}
}

func TestStreamResetAfterBind(t *testing.T) {
	first, second := payload(300), payload(500)
	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{Output: sink})
	if err != nil {
		t.Fatal(err)
	}

	writeChunked(t, stream, autoflatetest.Gzip(t, first), 0)

	// Reset on a bound stream delegates to the decoder: the binding
	// survives, and a fresh gzip stream decodes from a clean state.
	if err := stream.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := stream.Format(); got != autoflate.FormatGzip {
		t.Fatalf("Format() after reset = %q, the binding must survive", got)
	}

	writeChunked(t, stream, autoflatetest.Gzip(t, second), 0)
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}

	want := append(append([]byte{}, first...), second...)
	if !bytes.Equal(sink.Bytes(), want) {
		t.Errorf("decoded %d bytes, want %d", len(sink.Bytes()), len(want))
	}
}

func TestStreamDictionary(t *testing.T) {
	dict := []byte("a preset dictionary with words the payload reuses")
	plain := append([]byte("words the payload reuses, "), payload(200)...)

	sink := &autoflatetest.Sink{}
	stream, err := autoflate.New(autoflate.StreamConfig{
		Output:     sink,
		Dictionary: dict,
	})
	if err != nil {
		t.Fatal(err)
	}
	writeChunked(t, stream, autoflatetest.ZlibDict(t, plain, dict), 5)
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), plain) {
		t.Error("decoded output differs from original payload")
	}
}

func TestStreamStats(t *testing.T) {
	plain := payload(4096)
	compressed := autoflatetest.Gzip(t, plain)

	stream, err := autoflate.New(autoflate.StreamConfig{Output: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	writeChunked(t, stream, compressed, 1)
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}

	stats := stream.Stats()
	if stats.BytesIn != int64(len(compressed)) {
		t.Errorf("BytesIn = %d, want %d", stats.BytesIn, len(compressed))
	}
	if stats.BytesOut != int64(len(plain)) {
		t.Errorf("BytesOut = %d, want %d", stats.BytesOut, len(plain))
	}
	if stats.Format != autoflate.FormatGzip {
		t.Errorf("Format = %q, want gzip", stats.Format)
	}
	if stats.SigBytes != 3 {
		t.Errorf("SigBytes = %d, want 3 (the gzip signature length)", stats.SigBytes)
	}
}
