package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menuvoice_voice_commands_total",
		Help: "Voice turns processed, by resolved intent and outcome",
	}, []string{"intent", "status"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "menuvoice_turn_latency_seconds",
		Help:    "End-to-end latency of one dialogue turn",
		Buckets: prometheus.DefBuckets,
	})

	MenuDocumentVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menuvoice_menu_document_version",
		Help: "Current version of the authoritative menu document",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menuvoice_active_sessions",
		Help: "Voice sessions with live dialogue state",
	})

	// Infrastructure metrics
	ConnectedDashboards = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menuvoice_connected_dashboards",
		Help: "Dashboard websocket clients currently subscribed",
	})

	ChangeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menuvoice_change_events_published_total",
		Help: "Change events fanned out to observers",
	}, []string{"operation"})

	InterpreterLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "menuvoice_interpreter_latency_seconds",
		Help:    "Latency of language-understanding calls",
		Buckets: prometheus.DefBuckets,
	})
)
