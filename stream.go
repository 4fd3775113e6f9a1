package autoflate

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// StreamConfig holds the configuration of a Stream.
type StreamConfig struct {
	// Output receives the decoded bytes. Required.
	Output io.Writer

	// Decoders lists the formats the stream may bind. Defaults to
	// Builtins; append contrib descriptions (or custom ones) to extend
	// the set.
	Decoders []DecoderDesc

	// Detectors is the ordered list of detectors to run; order is the
	// tie-break when several match. When nil, the detectors are taken
	// from Decoders, in order, skipping formats that have none.
	Detectors []Detector

	// DefaultFormat is bound when no detector matches, either because
	// every one of them rejected the stream or because the stream ended
	// undecided. Empty means FormatRaw. FormatNone disables the
	// fallback: exhaustion then fails the stream with a FormatError.
	DefaultFormat Format

	// OnFormat, when non-nil, is called exactly once when the stream
	// commits to a format, before any decoded byte reaches Output. The
	// bound decoder is passed for introspection.
	OnFormat func(format Format, dec Decoder)

	// Dictionary is the preset dictionary handed to the bound decoder,
	// for formats supporting one.
	Dictionary []byte

	// BufferSize is the decoder input buffer size hint. 0 means default.
	BufferSize int

	// Metrics receives stream counters. Defaults to NopMetrics.
	Metrics MetricsClient
}

func (cfg *StreamConfig) fillDefaults() {
	if cfg.Decoders == nil {
		cfg.Decoders = Builtins
	}
	if cfg.Detectors == nil {
		for _, d := range cfg.Decoders {
			if d.Detect.Probe != nil {
				cfg.Detectors = append(cfg.Detectors, d.Detect)
			}
		}
	}
	if cfg.DefaultFormat == FormatUnknown {
		cfg.DefaultFormat = FormatRaw
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
}

// Stream is an auto-detecting decompressor with push semantics: compressed
// bytes go in through Write, decoded bytes come out on the configured
// Output. Until the format is known, written bytes accumulate in the
// signature buffer; once a detector decides (or detection is exhausted)
// the stream binds a decoder, replays the buffer into it and from then on
// behaves exactly like that decoder used directly.
//
// The binding is irrevocable. Binding the same format again (explicitly,
// or because detection re-confirmed it) is a no-op; binding a different
// one fails with ErrFormatChange.
//
// A Stream is not safe for concurrent use, like the compress/flate family
// of streams it wraps: there must be a single writer.
type Stream struct {
	cfg      StreamConfig
	byFormat map[Format]*DecoderDesc

	// Signature buffer and candidate set live only while undecided; both
	// are torn down the instant a decoder is bound.
	sig []byte
	res *resolver

	dec    Decoder
	format Format

	pending []deferredCall

	out *countWriter

	closed   bool
	closeErr error

	start   time.Time
	bytesIn int64
	sigPeak int
}

// deferred operations, recorded while no decoder exists and replayed in
// FIFO order at bind time.
const (
	opFlush  = "flush"
	opParams = "params"
)

type deferredCall struct {
	op     string
	flush  FlushKind
	params TuningParams
}

func (c deferredCall) apply(dec Decoder) error {
	switch c.op {
	case opFlush:
		return dec.Flush(c.flush)
	case opParams:
		return dec.Params(c.params)
	}
	return nil
}

// resolveConfig fills the configuration defaults, validates it and indexes
// the decoder descriptions by format. It is shared by New, NewReaderConfig
// and DecodeAllConfig.
func resolveConfig(cfg StreamConfig) (StreamConfig, map[Format]*DecoderDesc, error) {
	cfg.fillDefaults()

	byFormat := make(map[Format]*DecoderDesc, len(cfg.Decoders))
	for i := range cfg.Decoders {
		d := &cfg.Decoders[i]
		if d.Format == FormatUnknown || d.Format == FormatNone {
			return cfg, nil, fmt.Errorf("autoflate: invalid format %q in decoder %q", d.Format, d.Name)
		}
		if d.New == nil {
			return cfg, nil, fmt.Errorf("autoflate: decoder %q has no constructor", d.Name)
		}
		if _, ok := byFormat[d.Format]; ok {
			return cfg, nil, fmt.Errorf("autoflate: duplicate decoder for format %q", d.Format)
		}
		byFormat[d.Format] = d
	}
	if cfg.DefaultFormat != FormatNone {
		if _, ok := byFormat[cfg.DefaultFormat]; !ok {
			return cfg, nil, fmt.Errorf("autoflate: no decoder for default format %q", cfg.DefaultFormat)
		}
	}
	for _, det := range cfg.Detectors {
		if det.Probe == nil {
			return cfg, nil, fmt.Errorf("autoflate: detector for format %q has no probe", det.Format)
		}
		if _, ok := byFormat[det.Format]; !ok {
			return cfg, nil, fmt.Errorf("autoflate: no decoder for detected format %q", det.Format)
		}
	}
	return cfg, byFormat, nil
}

// New creates a Stream from its configuration.
func New(cfg StreamConfig) (*Stream, error) {
	if cfg.Output == nil {
		return nil, fmt.Errorf("autoflate: StreamConfig.Output is required")
	}
	cfg, byFormat, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Stream{
		cfg:      cfg,
		byFormat: byFormat,
		res:      newResolver(cfg.Detectors),
		out:      &countWriter{w: cfg.Output},
		start:    time.Now(),
	}, nil
}

// Write pushes compressed bytes into the stream. While the format is
// undecided the bytes are buffered and Write returns immediately; once a
// decoder is bound, Write returns when the decoder has accepted the bytes,
// reporting any decode error met while consuming them.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.dec != nil {
		n, err := s.dec.Write(p)
		s.bytesIn += int64(n)
		return n, err
	}

	s.sig = append(s.sig, p...)
	s.bytesIn += int64(len(p))
	if len(s.sig) > s.sigPeak {
		s.sigPeak = len(s.sig)
	}

	format, res, err := s.res.resolve(s.sig, false)
	if err != nil {
		return 0, s.fail(err)
	}
	switch res {
	case resolveUndecided:
		// A decision needs more bytes; keep buffering.
		return len(p), nil
	case resolveExhausted:
		// Every detector rejected the stream: no point waiting for the
		// end of stream, fall back right now.
		if s.cfg.DefaultFormat == FormatNone {
			return 0, s.fail(&FormatError{Sig: s.sig})
		}
		format = s.cfg.DefaultFormat
	}
	if err := s.bind(format); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close signals the end of the compressed input. If the stream is still
// undecided, detection is forced to a final verdict first: the default
// format is bound (or the stream fails if the fallback is disabled) and
// the buffered bytes are replayed. Close returns once the decoder has
// fully terminated and released its resources.
//
// Close is idempotent: repeated calls perform no further teardown and
// return the error of the first one.
func (s *Stream) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	if s.dec == nil {
		format, res, err := s.res.resolve(s.sig, true)
		if err != nil {
			s.closeErr = err
			return s.closeErr
		}
		if res == resolveExhausted {
			if s.cfg.DefaultFormat == FormatNone {
				s.closeErr = &FormatError{Sig: s.sig}
				return s.closeErr
			}
			format = s.cfg.DefaultFormat
		}
		if err := s.bind(format); err != nil {
			s.closeErr = err
			return s.closeErr
		}
	}

	err := s.dec.End()
	if cerr := s.dec.Close(); err == nil {
		err = cerr
	}
	s.closeErr = err

	s.cfg.Metrics.DeltaCount("bytes_in", s.bytesIn)
	s.cfg.Metrics.DeltaCount("bytes_out", s.out.count())
	s.cfg.Metrics.Duration("stream_duration", time.Since(s.start))
	log.WithFields(log.Fields{
		"format": s.format,
		"in":     s.bytesIn,
		"out":    s.out.count(),
	}).Debug("stream closed")

	return s.closeErr
}

// Flush forwards a flush request to the bound decoder. Before a decoder
// exists the request is recorded and replayed at bind time: it is
// acknowledged (by returning nil) immediately, so that callers waiting on
// the acknowledgment before the next write never deadlock; only its effect
// is deferred.
func (s *Stream) Flush(kind FlushKind) error {
	if s.closed {
		return ErrClosed
	}
	if s.dec != nil {
		return s.dec.Flush(kind)
	}
	s.pending = append(s.pending, deferredCall{op: opFlush, flush: kind})
	return nil
}

// Params forwards decoder tuning parameters, with the same
// record-and-replay behavior as Flush when no decoder is bound yet.
func (s *Stream) Params(p TuningParams) error {
	if s.closed {
		return ErrClosed
	}
	if s.dec != nil {
		return s.dec.Params(p)
	}
	s.pending = append(s.pending, deferredCall{op: opParams, params: p})
	return nil
}

// Reset clears the stream state without undoing a format decision. On a
// bound stream it delegates to the decoder's own reset; detection is not
// revisited. On an undecided stream it discards the buffered bytes and
// restores the full candidate set, so that detectors rejected on the
// discarded data are reconsidered against whatever comes next.
func (s *Stream) Reset() error {
	if s.closed {
		return ErrClosed
	}
	if s.dec != nil {
		return s.dec.Reset()
	}
	s.sig = nil
	s.res.restore()
	return nil
}

// SetFormat binds the given format explicitly, bypassing detection. The
// commit-once rule applies exactly as for detector-driven binding:
// SetFormat with the already-bound format is a no-op, with a different one
// it fails with ErrFormatChange.
func (s *Stream) SetFormat(format Format) error {
	if s.closed {
		return ErrClosed
	}
	return s.bind(format)
}

// Format returns the bound format, or FormatUnknown while the stream is
// undecided.
func (s *Stream) Format() Format {
	return s.format
}

// Stats returns counters about the stream.
func (s *Stream) Stats() StreamStats {
	return StreamStats{
		BytesIn:  s.bytesIn,
		BytesOut: s.out.count(),
		SigBytes: s.sigPeak,
		Format:   s.format,
	}
}

// bind is the commit-once transition from "undecided" to "decoded by
// format". It instantiates the decoder, fires OnFormat, replays the
// signature buffer then the deferred calls, and destroys the detection
// state. Binding an already-bound identical format is a no-op.
func (s *Stream) bind(format Format) error {
	if s.dec != nil {
		if format == s.format {
			return nil
		}
		return fmt.Errorf("%w: %q already bound, requested %q", ErrFormatChange, s.format, format)
	}

	desc, ok := s.byFormat[format]
	if !ok {
		return fmt.Errorf("autoflate: no decoder for format %q", format)
	}
	dec, err := desc.New(DecoderParams{
		Format:     format,
		Dictionary: s.cfg.Dictionary,
		BufferSize: s.cfg.BufferSize,
	}, s.out)
	if err != nil {
		return s.fail(fmt.Errorf("autoflate: can't create %s decoder: %s", desc.Name, err))
	}

	sig := s.sig
	s.sig = nil
	s.res = nil
	s.dec = dec
	s.format = format

	log.WithFields(log.Fields{"format": format, "sigbytes": len(sig)}).Debug("format bound")
	s.cfg.Metrics.DeltaCountWithTags("streams_bound", 1, []string{"format:" + string(format)})

	// The notification must be observable before any decoded byte, hence
	// before the signature replay that may produce output.
	if s.cfg.OnFormat != nil {
		s.cfg.OnFormat(format, dec)
	}

	if len(sig) > 0 {
		if _, err := dec.Write(sig); err != nil {
			return err
		}
	}

	for _, c := range s.pending {
		if err := c.apply(dec); err != nil {
			// The call was acknowledged when it was recorded; a late
			// failure can only be logged.
			log.WithFields(log.Fields{"op": c.op}).WithError(err).Warn("deferred call failed")
		}
	}
	s.pending = nil

	return nil
}

// fail marks the stream as terminally failed. Later calls observe ErrClosed
// or the terminal error; no duplicate teardown happens for the same
// failure.
func (s *Stream) fail(err error) error {
	log.WithError(err).Debug("stream failed")
	s.closed = true
	s.closeErr = err
	return err
}

// countWriter counts the bytes written through it. The count is updated
// from the decoder goroutine and read from Stats, hence the atomic.
type countWriter struct {
	n int64
	w io.Writer
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	atomic.AddInt64(&c.n, int64(n))
	return n, err
}

func (c *countWriter) count() int64 {
	return atomic.LoadInt64(&c.n)
}
