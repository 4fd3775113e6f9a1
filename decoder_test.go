package autoflate

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPipeDecoderRoundTrip(t *testing.T) {
	plain := []byte("some data going through the push-to-pull bridge")
	compressed := gzipped(t, plain)

	var sink bytes.Buffer
	dec := NewDecoder("Gzip", DecoderParams{Format: FormatGzip}, &sink, openGzip)

	for _, b := range compressed {
		if _, err := dec.Write([]byte{b}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := dec.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !bytes.Equal(sink.Bytes(), plain) {
		t.Errorf("decoded %q, want %q", sink.Bytes(), plain)
	}
}

func TestPipeDecoderEmptyInput(t *testing.T) {
	var sink bytes.Buffer
	dec := NewDecoder("Gzip", DecoderParams{Format: FormatGzip}, &sink, openGzip)

	if err := dec.End(); err != nil {
		t.Fatalf("end with no input: %v", err)
	}
	if sink.Len() != 0 {
		t.Errorf("decoded %d bytes from no input", sink.Len())
	}
}

func TestPipeDecoderCorruptInput(t *testing.T) {
	var sink bytes.Buffer
	dec := NewDecoder("Gzip", DecoderParams{Format: FormatGzip}, &sink, openGzip)

	// A valid header followed by garbage: the error may surface on a
	// Write or, at the latest, on End.
	compressed := gzipped(t, []byte("data"))
	copy(compressed[len(compressed)-6:], []byte{0xde, 0xad, 0xbe, 0xef})

	var werr error
	for _, b := range compressed {
		if _, werr = dec.Write([]byte{b}); werr != nil {
			break
		}
	}
	if werr == nil {
		werr = dec.End()
	}
	if werr == nil {
		t.Error("corrupt gzip stream decoded without error")
	}
	dec.Close()
}

func TestPipeDecoderCloseUnblocks(t *testing.T) {
	var sink bytes.Buffer
	dec := NewDecoder("Gzip", DecoderParams{Format: FormatGzip}, &sink, openGzip)

	// Close with a partial stream in flight must not hang.
	if _, err := dec.Write([]byte{0x1f, 0x8b}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPipeDecoderReset(t *testing.T) {
	first := gzipped(t, []byte("before the reset, thrown away mid-stream"))
	second := gzipped(t, []byte("after the reset"))

	var sink bytes.Buffer
	dec := NewDecoder("Gzip", DecoderParams{Format: FormatGzip}, &sink, openGzip)

	// Feed a truncated stream, then reset: the decoder must come back
	// ready for a complete fresh one.
	if _, err := dec.Write(first[:10]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := dec.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	sink.Reset()
	if _, err := dec.Write(second); err != nil {
		t.Fatalf("write after reset: %v", err)
	}
	if err := dec.End(); err != nil {
		t.Fatalf("end after reset: %v", err)
	}
	if got, want := sink.String(), "after the reset"; got != want {
		t.Errorf("decoded %q, want %q", got, want)
	}
}

func TestDecodeAllFuncConcatenated(t *testing.T) {
	compressed := append(gzipped(t, []byte("one, ")), gzipped(t, []byte("two"))...)

	decode := DecodeAllFunc(openGzip)
	got, err := decode(DecoderParams{Format: FormatGzip}, compressed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one, two" {
		t.Errorf("decoded %q, want %q", got, "one, two")
	}
}

func TestDecodeAllFuncAppendsToDst(t *testing.T) {
	compressed := gzipped(t, []byte("appended"))

	decode := DecodeAllFunc(openGzip)
	got, err := decode(DecoderParams{Format: FormatGzip}, compressed, []byte("prefix "))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "prefix appended" {
		t.Errorf("decoded %q, want %q", got, "prefix appended")
	}
}

var _ io.Writer = (*countWriter)(nil)
