// Package metrics holds the rank server's Prometheus collectors, served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RankRequests is labeled by endpoint ("all", "my", "score") and outcome ("ok", or the HTTP status).
var RankRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "naaga",
	Name:      "rank_requests_total",
	Help:      "Rank endpoint requests by endpoint and outcome.",
}, []string{"endpoint", "outcome"})

var ScoreUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "naaga",
	Name:      "score_updates_total",
	Help:      "Accepted score additions.",
}, []string{"source"})

var StreamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "naaga",
	Name:      "rank_stream_clients",
	Help:      "Open rank websocket connections.",
}, []string{"stream"})
