// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package metrics defines the prometheus collectors of the mining
// coordinator.  The collectors are registered with the default registry and
// served by the RPC server on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "powcoord"

var (
	templateBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "builds_total",
		Help:      "Count of block template builds.",
	}, []string{"algo", "status"})
	templateBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "build_duration_seconds",
		Help:      "Duration of block template builds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"algo", "status"})
	templateCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "cache_hits_total",
		Help:      "Count of template requests served from the cache.",
	}, []string{"algo"})
	templateTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "transactions",
		Help:      "Number of transactions in the last built template.",
	})

	longPollWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "longpoll",
		Name:      "waiters",
		Help:      "Number of long-poll requests waiting for new work.",
	})
	longPollWakeupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "longpoll",
		Name:      "wakeups_total",
		Help:      "Count of long-poll wakeups by reason.",
	}, []string{"reason"})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submit",
		Name:      "results_total",
		Help:      "Count of block and header submissions by result.",
	}, []string{"kind", "result"})

	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Count of RPC requests by method.",
	}, []string{"method", "status"})
	rpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "Duration of RPC requests by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "websocket_clients",
		Help:      "Number of connected websocket clients.",
	})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveTemplateBuild records a template build for the algorithm.
func ObserveTemplateBuild(algo string, numTxns int, err error, started time.Time) {
	s := status(err)
	templateBuildsTotal.WithLabelValues(algo, s).Inc()
	templateBuildDuration.WithLabelValues(algo, s).Observe(time.Since(started).Seconds())
	if err == nil {
		templateTransactions.Set(float64(numTxns))
	}
}

// ObserveCacheHit records a template request served from the cache.
func ObserveCacheHit(algo string) {
	templateCacheHitsTotal.WithLabelValues(algo).Inc()
}

// LongPollStarted records a long-poll request starting to wait and returns
// the function that records its end with the reason it returned.
func LongPollStarted() func(reason string) {
	longPollWaiters.Inc()
	return func(reason string) {
		longPollWaiters.Dec()
		longPollWakeupsTotal.WithLabelValues(reason).Inc()
	}
}

// ObserveSubmission records the result of a block or header submission.  An
// empty result means accepted.
func ObserveSubmission(kind, result string) {
	if result == "" {
		result = "accepted"
	}
	submissionsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRPC records an RPC request.
func ObserveRPC(method string, err error, started time.Time) {
	s := status(err)
	rpcRequestsTotal.WithLabelValues(method, s).Inc()
	rpcRequestDuration.WithLabelValues(method, s).Observe(time.Since(started).Seconds())
}

// WebsocketConnected records a websocket client connecting and returns the
// function that records it disconnecting.
func WebsocketConnected() func() {
	wsClients.Inc()
	return wsClients.Dec
}
