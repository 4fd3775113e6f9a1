/*
Package autoflate provides transparent streaming decompression with automatic
format detection.

A Stream receives compressed bytes through the standard io.Writer push
interface, inspects the leading bytes to determine which container format
they use (zlib-wrapped DEFLATE, gzip-wrapped DEFLATE or headerless raw
DEFLATE), then routes everything - already buffered and subsequently written -
to a decoder for that format. Once the decoder is chosen the Stream behaves
exactly like that decoder used directly: same output bytes, same error
timing, same teardown ordering.

Detection is incremental: bytes written before a decision is possible are
buffered, and each configured detector is given a chance to match, reject or
ask for more data. The set of still-plausible detectors only shrinks while
data accumulates; the first definite match wins. When no detector can ever
match (or the stream ends undecided), the configured default format is used,
or the stream fails if the fallback is disabled.

Additional formats can be plugged in through DecoderDesc values; the contrib
package provides LZ4 and zstd ones. DecodeAll is the one-shot synchronous
counterpart of Stream, and NewReader the pull-side one.
*/
package autoflate

import (
	"io"
)

// Format identifies a compressed container format.
type Format string

// Formats known to the built-in decoders. Additional formats may be
// registered through custom DecoderDesc values.
const (
	// FormatUnknown is returned by Stream.Format while no decoder is bound.
	FormatUnknown Format = ""

	// FormatZlib is a zlib-wrapped DEFLATE stream (RFC 1950).
	FormatZlib Format = "zlib"

	// FormatGzip is a gzip-wrapped DEFLATE stream (RFC 1952).
	FormatGzip Format = "gzip"

	// FormatRaw is a headerless DEFLATE stream (RFC 1951).
	FormatRaw Format = "raw"

	// FormatNone, used as StreamConfig.DefaultFormat, disables the
	// fallback: a stream ending without a detector match fails with a
	// FormatError instead of binding a default decoder.
	FormatNone Format = "none"
)

// FlushKind selects the flush behavior requested through Stream.Flush,
// mirroring the zlib flush modes.
type FlushKind int

const (
	FlushNone FlushKind = iota
	FlushSync
	FlushFull
	FlushBlock
	FlushFinish
)

// TuningParams carries decoder tuning hints. They are recorded and handed
// over verbatim to whichever decoder ends up bound; decoders are free to
// ignore the ones that do not apply to them (decompressors typically ignore
// Level).
type TuningParams struct {
	Level    int
	Strategy int
}

// DecoderParams is the configuration a decoder is constructed with. It is
// assembled by the Stream from its own configuration and passed opaquely to
// DecoderDesc.New.
type DecoderParams struct {
	// Format the decoder is being created for.
	Format Format

	// Dictionary is the preset dictionary, for formats supporting one.
	Dictionary []byte

	// BufferSize is a hint for internal buffer sizing. 0 means default.
	BufferSize int
}

// Decoder is the push-based decompressor a Stream delegates to once the
// format is known. Decoded output is pushed to the sink the decoder was
// constructed with. Implementations are not required to be safe for
// concurrent use; the Stream guarantees a single caller.
type Decoder interface {
	// Write pushes compressed bytes into the decoder. It returns once the
	// decoder has accepted the bytes; decode errors detected while
	// consuming them are reported here or, at the latest, by End.
	Write(p []byte) (int, error)

	// End signals end of input and returns only after the decoder has
	// fully terminated: all decoded output has been pushed to the sink
	// and the stream trailer, if any, has been verified.
	End() error

	// Flush asks the decoder to push out everything that can be produced
	// from the input received so far.
	Flush(kind FlushKind) error

	// Params applies tuning parameters mid-stream.
	Params(p TuningParams) error

	// Reset discards the decoder state, making it ready to decode a fresh
	// stream of the same format into the same sink.
	Reset() error

	// Close tears the decoder down, releasing its resources. It is
	// idempotent and does not wait for pending input to be decoded.
	Close() error
}

// Detection is the outcome of a Detector probe against a signature prefix.
type Detection int

const (
	// DetectMore means the prefix is compatible but too short to decide.
	DetectMore Detection = iota

	// DetectMatch means the prefix positively identifies the format.
	DetectMatch

	// DetectReject means the format can never match this stream, no
	// matter how many more bytes arrive.
	DetectReject
)

// A Detector classifies a stream signature (its leading bytes) as matching,
// rejecting or needing more data for one format. Probe must be a pure
// function of the prefix: it is called again with a longer prefix after
// every DetectMore, and the engine (not the detector) tracks rejections.
type Detector struct {
	Format Format
	Probe  func(sig []byte) Detection
}

// DecoderDesc describes a decodable format: how to recognize it and how to
// build decoders for it. The built-in descriptions are listed in Builtins;
// external packages provide additional ones (see contrib).
type DecoderDesc struct {
	// Name is the human-readable decoder name, used in logs and errors.
	Name string

	// Format is the identifier this description registers.
	Format Format

	// Detect recognizes the format from the stream signature. A nil Probe
	// means the format cannot be auto-detected and is only reachable as
	// DefaultFormat or through Stream.SetFormat (the raw format is such a
	// case: headerless data matches anything).
	Detect Detector

	// New creates a push decoder writing decoded output to sink.
	New func(cfg DecoderParams, sink io.Writer) (Decoder, error)

	// NewReader creates a pull-side decoding reader over r. May be nil if
	// the format has no reader support.
	NewReader func(cfg DecoderParams, r io.Reader) (io.ReadCloser, error)

	// DecodeAll decompresses input in one shot, appending to dst. A nil
	// DecodeAll marks the format as unsupported on the synchronous path.
	DecodeAll func(cfg DecoderParams, input, dst []byte) ([]byte, error)

	// Help describes the format for command line documentation.
	Help string
}

// StreamStats reports counters about a Stream. Counters are cumulative
// since the stream creation.
type StreamStats struct {
	// BytesIn is the number of compressed bytes accepted so far,
	// including bytes still held in the signature buffer.
	BytesIn int64

	// BytesOut is the number of decoded bytes pushed to the output.
	BytesOut int64

	// SigBytes is the peak number of bytes held while undecided.
	SigBytes int

	// Format is the bound format, or FormatUnknown.
	Format Format
}
