// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaychat_websocket_connections",
		Help: "Number of live websocket connections on this instance",
	})

	RelayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_relay_frames_total",
		Help: "Relay frames by event and outcome (delivered, dropped, offline)",
	}, []string{"event", "outcome"})

	CallTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_call_transitions_total",
		Help: "Call state machine transitions by action and result",
	}, []string{"action", "result"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_notifications_total",
		Help: "Notification rows written by type and result",
	}, []string{"type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaychat_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
