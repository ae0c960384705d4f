// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_gateway_requests_total",
			Help: "Total number of requests processed by the gateway",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conductor_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"endpoint"},
	)
	promPipelineRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_gateway_pipeline_rejections_total",
			Help: "Run-pipeline rejections by stage (auth, policy, budget, audit, execution)",
		},
		[]string{"stage"},
	)
	promSettlementFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conductor_gateway_settlement_failures_total",
			Help: "Background budget settlements that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promPipelineRejections)
	prometheus.MustRegister(promSettlementFailures)
}
