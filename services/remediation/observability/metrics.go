// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the
// remediation service.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const remediationSubsystem = "remediation"

// RemediationMetrics holds all Prometheus metrics for remediation
// requests. Initialize once at startup via NewRemediationMetrics().
type RemediationMetrics struct {
	// RequestsTotal counts remediation requests.
	// Labels: outcome (success, rejected, unsupported_language,
	// generation_failure, scan_failure, invalid_request)
	RequestsTotal *prometheus.CounterVec

	// AttemptsPerRequest observes how many generation+scan round trips
	// a request consumed before terminating.
	AttemptsPerRequest prometheus.Histogram

	// RequestDurationSeconds measures end-to-end request latency.
	// Labels: outcome
	RequestDurationSeconds *prometheus.HistogramVec

	// FindingsTotal counts scanner findings across all attempts, by
	// request language.
	FindingsTotal *prometheus.CounterVec
}

// NewRemediationMetrics registers all metrics with the given
// registerer (pass prometheus.DefaultRegisterer in main; a fresh
// registry in tests).
func NewRemediationMetrics(reg prometheus.Registerer) *RemediationMetrics {
	factory := promauto.With(reg)

	return &RemediationMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: remediationSubsystem,
				Name:      "requests_total",
				Help:      "Total remediation requests by outcome.",
			},
			[]string{"outcome"},
		),
		AttemptsPerRequest: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: remediationSubsystem,
				Name:      "attempts_per_request",
				Help:      "Generation+scan round trips consumed per request.",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: remediationSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end remediation request latency.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"outcome"},
		),
		FindingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: remediationSubsystem,
				Name:      "findings_total",
				Help:      "Scanner findings observed across all attempts.",
			},
			[]string{"language"},
		),
	}
}

// ObserveRequest records the terminal outcome of one request.
func (m *RemediationMetrics) ObserveRequest(outcome string, attempts int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.AttemptsPerRequest.Observe(float64(attempts))
	}
	m.RequestDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// ObserveFindings records findings from a terminal rejection.
func (m *RemediationMetrics) ObserveFindings(language string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.FindingsTotal.WithLabelValues(language).Add(float64(count))
}
