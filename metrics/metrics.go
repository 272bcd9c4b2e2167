// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// transaction attempt outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeTransient = "transient"
	OutcomeFailed    = "failed"
)

// Metrics holds the prometheus collectors of the governance layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec

	TxnAttempts *prometheus.CounterVec
	TxnRetries  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governor_requests_total",
				Help: "Total number of requests handled, by route and status code",
			},
			[]string{"route", "code"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governor_request_duration_seconds",
				Help:    "Duration of request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governor_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		TxnAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governor_txn_attempts_total",
				Help: "Total number of transaction attempts, by outcome",
			},
			[]string{"outcome"},
		),

		TxnRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "governor_txn_retries_total",
				Help: "Total number of retries of transient transaction failures",
			},
		),
	}
}

// ObserveRequest records a completed request, code is the http status
// or the grpc code name
func (m *Metrics) ObserveRequest(route string, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, code).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveTxnAttempt(outcome string) {
	if m == nil {
		return
	}
	m.TxnAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTxnRetry() {
	if m == nil {
		return
	}
	m.TxnRetries.Inc()
}
