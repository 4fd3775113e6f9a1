package autoflate

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// defaultBufferSize is the size of the input buffer sitting between the
// push surface and the decoding reader, when DecoderParams.BufferSize is 0.
const defaultBufferSize = 64 * 1024

// errAborted is the internal cause used to stop the decode goroutine when
// the decoder is torn down or reset before its input ended.
var errAborted = errors.New("autoflate: decoder aborted")

// OpenFunc opens a decoding reader over a stream of compressed bytes. It is
// the only piece a format has to provide to obtain a full push Decoder
// through NewDecoder; the klauspost/compress readers (and the contrib ones)
// all fit this shape.
type OpenFunc func(cfg DecoderParams, r io.Reader) (io.ReadCloser, error)

// NewDecoder adapts a pull-based decoding reader into the push-based
// Decoder interface. Bytes written are handed to the reader through a pipe,
// and decoded output is pushed to sink as soon as the reader produces it.
//
// When a stream terminates with input still arriving, the decoder restarts
// the reader on the remaining bytes: concatenated streams of the same
// format decode to the concatenation of their payloads. Input that is not a
// valid follow-up stream surfaces the open error, exactly as the underlying
// reader would have reported it.
func NewDecoder(name string, cfg DecoderParams, sink io.Writer, open OpenFunc) Decoder {
	d := &pipeDecoder{name: name, cfg: cfg, sink: sink, open: open}
	d.start()
	return d
}

type pipeDecoder struct {
	name string
	cfg  DecoderParams
	sink io.Writer
	open OpenFunc

	pw     *io.PipeWriter
	done   chan struct{}
	err    error // terminal decode status, valid once done is closed
	closed bool
}

func (d *pipeDecoder) start() {
	pr, pw := io.Pipe()
	d.pw = pw
	d.done = make(chan struct{})
	go d.run(pr)
}

func (d *pipeDecoder) run(pr *io.PipeReader) {
	err := d.decode(pr)
	d.err = err
	// Report the decode status to the push side, unblocking any in-flight
	// Write.
	if err != nil {
		pr.CloseWithError(err)
	} else {
		pr.Close()
	}
	close(d.done)
}

func (d *pipeDecoder) decode(pr *io.PipeReader) error {
	bufsz := d.cfg.BufferSize
	if bufsz <= 0 {
		bufsz = defaultBufferSize
	}
	br := bufio.NewReaderSize(pr, bufsz)
	return decodeStreams(d.cfg, d.sink, br, d.open)
}

// decodeStreams decodes every compressed stream found on br into sink,
// restarting the reader at each stream boundary. An empty input terminates
// cleanly, with no output, whatever the format.
func decodeStreams(cfg DecoderParams, sink io.Writer, br *bufio.Reader, open OpenFunc) error {
	if _, err := br.Peek(1); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	rc, err := open(cfg, br)
	if err != nil {
		return err
	}
	for {
		if _, err := io.Copy(sink, rc); err != nil {
			rc.Close()
			return err
		}
		if err := rc.Close(); err != nil {
			return err
		}

		// One stream fully decoded. Streams of the same format may be
		// concatenated: restart the reader if there is more input.
		if _, err := br.Peek(1); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		rc, err = open(cfg, br)
		if err != nil {
			return err
		}
	}
}

// DecodeAllFunc builds a DecoderDesc.DecodeAll implementation from an
// OpenFunc, for formats whose synchronous path is simply the reader run
// over an in-memory buffer.
func DecodeAllFunc(open OpenFunc) func(cfg DecoderParams, input, dst []byte) ([]byte, error) {
	return func(cfg DecoderParams, input, dst []byte) ([]byte, error) {
		w := bytes.NewBuffer(dst)
		br := bufio.NewReader(bytes.NewReader(input))
		if err := decodeStreams(cfg, w, br, open); err != nil {
			return w.Bytes(), err
		}
		return w.Bytes(), nil
	}
}

func (d *pipeDecoder) Write(p []byte) (int, error) {
	return d.pw.Write(p)
}

func (d *pipeDecoder) End() error {
	d.pw.Close()
	<-d.done
	return d.err
}

// Flush reports the sticky decode error, if any. Reader-based decoders emit
// decoded data as soon as the input allows; no output is held back, so
// there is nothing else to do.
func (d *pipeDecoder) Flush(kind FlushKind) error {
	return d.sticky()
}

// Params accepts tuning parameters. They only affect compression, which
// reader-based decoders do not perform.
func (d *pipeDecoder) Params(p TuningParams) error {
	return d.sticky()
}

func (d *pipeDecoder) Reset() error {
	if d.closed {
		return ErrClosed
	}
	// Abort the in-flight decode, then start over on a fresh pipe, same
	// sink and configuration.
	d.pw.CloseWithError(errAborted)
	<-d.done
	d.err = nil
	d.start()
	return nil
}

func (d *pipeDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.pw.CloseWithError(errAborted)
	<-d.done
	return nil
}

func (d *pipeDecoder) sticky() error {
	select {
	case <-d.done:
		if d.err == errAborted {
			return ErrClosed
		}
		return d.err
	default:
		return nil
	}
}
