package autoflate

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Reader is the pull-side counterpart of Stream: an auto-detecting
// decompressing reader. The format is decided at construction time, by
// reading as many bytes from the source as detection requires; the decoded
// stream is then read through the usual io.Reader calls.
type Reader struct {
	rc     io.ReadCloser
	format Format
}

// NewReader creates a Reader over r with the default configuration.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderConfig(StreamConfig{}, r)
}

// NewReaderConfig is NewReader with an explicit configuration. The Output,
// OnFormat and Metrics fields are unused on this path.
//
// Sources shorter than the detectors' signatures resolve exactly like a
// Stream closed early: the default format is used, or a FormatError is
// returned when the fallback is disabled.
func NewReaderConfig(cfg StreamConfig, r io.Reader) (*Reader, error) {
	cfg, byFormat, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	res := newResolver(cfg.Detectors)

	var (
		sig    []byte
		eof    bool
		format Format
	)
	buf := make([]byte, 512)
	for {
		f, outcome, err := res.resolve(sig, eof)
		if err != nil {
			return nil, err
		}
		if outcome == resolveMatch {
			format = f
			break
		}
		if outcome == resolveExhausted {
			if cfg.DefaultFormat == FormatNone {
				return nil, &FormatError{Sig: sig}
			}
			format = cfg.DefaultFormat
			break
		}

		n, err := r.Read(buf)
		sig = append(sig, buf[:n]...)
		if err == io.EOF {
			eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	desc := byFormat[format]
	if desc.NewReader == nil {
		return nil, fmt.Errorf("autoflate: %s decoder has no reader support", desc.Name)
	}

	// Give back the signature bytes consumed during detection, then
	// continue with the source.
	src := io.Reader(bytes.NewReader(sig))
	if !eof {
		src = io.MultiReader(src, r)
	}
	rc, err := desc.NewReader(DecoderParams{
		Format:     format,
		Dictionary: cfg.Dictionary,
		BufferSize: cfg.BufferSize,
	}, src)
	if err != nil {
		return nil, err
	}
	return &Reader{rc: rc, format: format}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	return r.rc.Read(p)
}

func (r *Reader) Close() error {
	return r.rc.Close()
}

// Format returns the detected format.
func (r *Reader) Format() Format {
	return r.format
}

// NewFormatReader adapts an OpenFunc into an io.ReadCloser with the same
// stream semantics as the push decoders built by NewDecoder: empty input
// reads EOF immediately, and concatenated streams of the same format
// decode to the concatenation of their payloads.
func NewFormatReader(cfg DecoderParams, r io.Reader, open OpenFunc) io.ReadCloser {
	bufsz := cfg.BufferSize
	if bufsz <= 0 {
		bufsz = defaultBufferSize
	}
	return &formatReader{
		cfg:  cfg,
		br:   bufio.NewReaderSize(r, bufsz),
		open: open,
	}
}

type formatReader struct {
	cfg  DecoderParams
	br   *bufio.Reader
	open OpenFunc
	rc   io.ReadCloser
	err  error // sticky
}

func (f *formatReader) Read(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	for {
		if f.rc == nil {
			if _, err := f.br.Peek(1); err != nil {
				// Clean EOF at a stream boundary, or source error.
				f.err = err
				return 0, f.err
			}
			rc, err := f.open(f.cfg, f.br)
			if err != nil {
				f.err = err
				return 0, err
			}
			f.rc = rc
		}

		n, err := f.rc.Read(p)
		if err == io.EOF {
			// Stream complete; the next loop iteration restarts on a
			// concatenated follow-up stream, if any.
			cerr := f.rc.Close()
			f.rc = nil
			if cerr != nil {
				f.err = cerr
				return n, cerr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			f.err = err
		}
		return n, err
	}
}

func (f *formatReader) Close() error {
	var err error
	if f.rc != nil {
		err = f.rc.Close()
		f.rc = nil
	}
	f.err = ErrClosed
	return err
}
