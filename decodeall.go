package autoflate

import "fmt"

// DecodeAll decompresses input in one shot, appending the decoded bytes to
// dst and returning the resulting slice. It is the synchronous counterpart
// of Stream, with the default configuration: detection runs on the whole
// buffer with end-of-stream semantics, so a decision is always reached
// immediately, there is nothing to wait for.
//
// If the destination size is known, dst can be pre-allocated to avoid
// reallocations.
func DecodeAll(input, dst []byte) ([]byte, error) {
	return DecodeAllConfig(StreamConfig{}, input, dst)
}

// DecodeAllConfig is DecodeAll with an explicit configuration. The Output,
// OnFormat and Metrics fields are unused on this path.
func DecodeAllConfig(cfg StreamConfig, input, dst []byte) ([]byte, error) {
	cfg, byFormat, err := resolveConfig(cfg)
	if err != nil {
		return dst, err
	}

	// input is the entire stream: resolve with end-of-stream forced.
	res := newResolver(cfg.Detectors)
	format, outcome, err := res.resolve(input, true)
	if err != nil {
		return dst, err
	}
	if outcome == resolveExhausted {
		if cfg.DefaultFormat == FormatNone {
			return dst, &FormatError{Sig: input}
		}
		format = cfg.DefaultFormat
	}

	desc := byFormat[format]
	if desc.DecodeAll == nil {
		return dst, fmt.Errorf("%w: %s", ErrNoSyncSupport, desc.Name)
	}
	return desc.DecodeAll(DecoderParams{
		Format:     format,
		Dictionary: cfg.Dictionary,
		BufferSize: cfg.BufferSize,
	}, input, dst)
}
