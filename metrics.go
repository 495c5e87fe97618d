// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded besides the remote failure kinds.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport"
	OutcomeEncode    = "encode"
)

// Metrics records dispatch counts and latency.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the dispatch collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of dispatched commands by outcome",
			},
			[]string{"type", "name", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Round trip time of dispatched commands",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.dispatches, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(cmd Command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(cmd.Tag.String(), cmd.Name, outcome).Inc()
	m.duration.WithLabelValues(cmd.Tag.String()).Observe(elapsed.Seconds())
}
