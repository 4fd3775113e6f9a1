package autoflate

import "time"

// A MetricsClient receives the counters a Stream reports about itself:
// bound formats and processed byte counts. The default is NopMetrics; the
// metrics/datadog package provides a statsd-backed implementation.
type MetricsClient interface {

	// Gauge sets the value of a metric of type gauge. A Gauge represents
	// a single numerical data point that can arbitrarily go up and down.
	Gauge(name string, value float64)

	// RawCount sets the current value of a metric of type counter. A
	// counter is a cumulative metric that can only increase.
	RawCount(name string, value int64)

	// DeltaCount increments the value of a metric of type counter by
	// delta. delta must be positive.
	DeltaCount(name string, delta int64)

	// DeltaCountWithTags increments the value of a metric of type counter
	// and associates that value with a set of tags.
	DeltaCountWithTags(name string, delta int64, tags []string)

	// Histogram adds a sample to a metric of type histogram, in order to
	// track the statistical distribution of a set of values.
	Histogram(name string, value float64)

	// Duration adds a duration to a metric of type histogram.
	Duration(name string, value time.Duration)
}

var _ MetricsClient = NopMetrics{}

// NopMetrics implements a MetricsClient that does nothing.
type NopMetrics struct{}

func (NopMetrics) Gauge(name string, value float64)                           {}
func (NopMetrics) RawCount(name string, value int64)                          {}
func (NopMetrics) DeltaCount(name string, delta int64)                        {}
func (NopMetrics) DeltaCountWithTags(name string, delta int64, tags []string) {}
func (NopMetrics) Histogram(name string, value float64)                       {}
func (NopMetrics) Duration(name string, value time.Duration)                  {}
