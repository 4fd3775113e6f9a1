// Package datadog exports autoflate stream metrics to Datadog via a statsd
// client.
package datadog

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/AdRoll/autoflate"
)

// Config is the configuration of the Datadog metrics client.
type Config struct {
	Prefix string   // Prefix is the prefix of all metric names. defaults to autoflate.
	Host   string   // Host is the address of the statsd host to send metrics to (in UDP). defaults to 127.0.0.1:8125.
	Tags   []string // Tags is the list of tags to attach to all metrics.
}

// Client allows to instrument code and export the metrics to a dogstatsd
// client.
type Client struct {
	dog      *statsd.Client
	basetags []string

	mu       sync.Mutex
	counters map[string]int64
}

// NewClient creates a Client that pushes to the datadog server using the
// dogstatsd format. All exported metrics have their name prepended with
// the configured prefix and are tagged with the configured set of tags.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "autoflate."
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1:8125"
	}

	dog, err := statsd.New(cfg.Host, statsd.WithNamespace(cfg.Prefix))
	if err != nil {
		return nil, fmt.Errorf("can't create datadog metrics client: %s", err)
	}

	return &Client{
		dog:      dog,
		basetags: cfg.Tags,
		counters: make(map[string]int64),
	}, nil
}

var _ autoflate.MetricsClient = (*Client)(nil)

// Gauge sets the value of a metric of type gauge. A Gauge represents a
// single numerical data point that can arbitrarily go up and down.
func (c *Client) Gauge(name string, value float64) {
	if c.dog != nil {
		c.dog.Gauge(name, value, c.basetags, 1)
	}
}

// DeltaCount increments the value of a metric of type counter by delta.
// delta must be positive.
func (c *Client) DeltaCount(name string, delta int64) {
	if c.dog != nil {
		c.dog.Count(name, delta, c.basetags, 1)
	}
}

// DeltaCountWithTags increments the value of a metric of type counter and
// associates that value with a set of tags.
func (c *Client) DeltaCountWithTags(name string, delta int64, tags []string) {
	if c.dog != nil {
		c.dog.Count(name, delta, append(tags, c.basetags...), 1)
	}
}

// RawCount sets the value of a metric of type counter. A counter is a
// cumulative metric that can only increase. RawCount sets the current
// value of the counter.
func (c *Client) RawCount(name string, value int64) {
	if c.dog != nil {
		c.mu.Lock()
		delta := value - c.counters[name]
		if delta < 0 {
			delta = 0
		}
		c.counters[name] = value
		c.mu.Unlock()

		c.dog.Count(name, delta, c.basetags, 1)
	}
}

// Histogram adds a sample to a metric of type histogram, in order to track
// the statistical distribution of a set of values.
//
// In Datadog, this is shown as an 'Histogram', a DogStatsd metric type on
// which percentiles, mean and other info are calculated.
// see https://docs.datadoghq.com/developers/dogstatsd/data_types/#histograms
func (c *Client) Histogram(name string, value float64) {
	if c.dog != nil {
		c.dog.Histogram(name, value, c.basetags, 1)
	}
}

// Duration adds a duration to a metric of type histogram.
//
// In Datadog, this is shown as a 'Timer', an implementation of an
// 'Histogram' DogStatsd metric type, on which percentiles, mean and other
// info are calculated.
// see https://docs.datadoghq.com/developers/dogstatsd/data_types/#timers
func (c *Client) Duration(name string, value time.Duration) {
	if c.dog != nil {
		c.dog.TimeInMilliseconds(name, float64(value/time.Millisecond), c.basetags, 1)
	}
}

// Close flushes any pending metric and releases the client resources.
func (c *Client) Close() error {
	if c.dog == nil {
		return nil
	}
	return c.dog.Close()
}
