package autoflate

import "fmt"

// resolution is the tri-state outcome of a detection attempt.
type resolution int

const (
	// resolveUndecided: some detectors still need more bytes.
	resolveUndecided resolution = iota

	// resolveMatch: a detector positively identified the format.
	resolveMatch

	// resolveExhausted: every detector rejected the stream, or end of
	// stream was reached without a match. The caller falls back to the
	// default format, or fails.
	resolveExhausted
)

// resolver runs the configured detectors against the stream signature and
// tracks which of them are still plausible. Detectors themselves are
// stateless; rejection bookkeeping lives here.
type resolver struct {
	detectors []Detector
	alive     []bool
	nalive    int
}

func newResolver(detectors []Detector) *resolver {
	r := &resolver{detectors: detectors}
	r.restore()
	return r
}

// restore brings every configured detector back into the candidate set.
func (r *resolver) restore() {
	r.alive = make([]bool, len(r.detectors))
	for i := range r.alive {
		r.alive[i] = true
	}
	r.nalive = len(r.detectors)
}

// resolve probes the still-plausible detectors, in configured order,
// against the signature seen so far. The first match wins. Rejected
// detectors are removed from the candidate set for the remainder of the
// stream (until restore). With eof set, an inconclusive outcome is not an
// option anymore: the result is either a match or exhaustion.
//
// A panicking detector is reported as an error, not let through: decoding
// must fail like any other stream error.
func (r *resolver) resolve(sig []byte, eof bool) (format Format, res resolution, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("autoflate: detector panic: %v", v)
			res = resolveExhausted
		}
	}()

	for i, d := range r.detectors {
		if !r.alive[i] {
			continue
		}
		switch d.Probe(sig) {
		case DetectMatch:
			return d.Format, resolveMatch, nil
		case DetectReject:
			r.alive[i] = false
			r.nalive--
		case DetectMore:
			// still a candidate
		}
	}

	if r.nalive == 0 || eof {
		return FormatUnknown, resolveExhausted, nil
	}
	return FormatUnknown, resolveUndecided, nil
}
