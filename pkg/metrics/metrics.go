// Package metrics counts what a parse run did, in Prometheus form.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/proxylist/pkg/proxy"
)

const namespace = "proxylist"

// Failure reasons used as the "reason" label on parse failures.
const (
	ReasonMalformed       = "malformed"
	ReasonGroupNotMatched = "group_not_matched"
	ReasonInvalidPort     = "invalid_port"
	ReasonOther           = "other"
)

// Collector owns a private registry so runs never touch the global one.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	LinesRead     prometheus.Counter
	LinesFiltered prometheus.Counter
	RecordsParsed *prometheus.CounterVec
	ParseFailures *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

// New creates a Collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total number of raw lines read from sources",
		}),

		LinesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_filtered_total",
			Help:      "Total number of lines dropped by include or exclude patterns",
		}),

		RecordsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_parsed_total",
				Help:      "Total number of proxy records parsed",
			},
			[]string{"scheme"},
		),

		ParseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_failures_total",
				Help:      "Total number of lines that failed to parse",
			},
			[]string{"reason"},
		),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of parse runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(c.LinesRead, c.LinesFiltered, c.RecordsParsed, c.ParseFailures, c.RunDuration)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) AddLinesRead(n int) {
	if c != nil && n > 0 {
		c.LinesRead.Add(float64(n))
	}
}

func (c *Collector) AddLinesFiltered(n int) {
	if c != nil && n > 0 {
		c.LinesFiltered.Add(float64(n))
	}
}

func (c *Collector) RecordParsed(scheme proxy.Scheme) {
	if c != nil {
		c.RecordsParsed.WithLabelValues(string(scheme)).Inc()
	}
}

// RecordFailure counts a parse failure under the reason derived from err.
func (c *Collector) RecordFailure(err error) {
	if c != nil {
		c.ParseFailures.WithLabelValues(Reason(err)).Inc()
	}
}

func (c *Collector) ObserveRun(seconds float64) {
	if c != nil {
		c.RunDuration.Observe(seconds)
	}
}

// Reason classifies a parse error for the failure counter.
func Reason(err error) string {
	switch {
	case errors.Is(err, proxy.ErrGroupNotMatched):
		return ReasonGroupNotMatched
	case errors.Is(err, proxy.ErrInvalidPort):
		return ReasonInvalidPort
	case errors.Is(err, proxy.ErrMalformedInput):
		return ReasonMalformed
	default:
		return ReasonOther
	}
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return errors.New("no metrics collector")
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
