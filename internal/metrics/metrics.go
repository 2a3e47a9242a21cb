// Package metrics: счётчики Prometheus сервиса. Регистрируются в default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burner_rooms_created_total",
		Help: "Rooms created",
	})

	RoomsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burner_rooms_destroyed_total",
		Help: "Rooms destroyed explicitly",
	})

	// outcome: continue, room-not-found, room-full
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burner_admissions_total",
		Help: "Admission decisions by outcome",
	}, []string{"outcome"})

	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burner_auth_failures_total",
		Help: "Requests rejected by the auth guard",
	})

	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burner_messages_appended_total",
		Help: "Messages appended to room logs",
	})

	// result: ok, error
	BroadcastEmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burner_broadcast_emits_total",
		Help: "Events emitted to the broadcast bus",
	}, []string{"type", "result"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "burner_realtime_connections",
		Help: "Open realtime websocket connections",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "burner_http_request_duration_ms",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"method", "route", "status"})
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
