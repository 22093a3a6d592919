// Package metrics holds the Prometheus collectors of the monitor service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hydro"

type Metrics struct {
	registry *prometheus.Registry

	ReadingsIngested    prometheus.Counter
	ReadingsRejected    *prometheus.CounterVec
	AlertsCreated       *prometheus.CounterVec
	AlertsSuppressed    *prometheus.CounterVec
	AlertQueueDropped   prometheus.Counter
	EvaluationErrors    prometheus.Counter
	TransportReconnects prometheus.Counter
	PumpCommands        *prometheus.CounterVec
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Sensor readings parsed and persisted.",
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Sensor messages dropped before alerting, by reason.",
		}, []string{"reason"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created.",
		}, []string{"parameter", "severity"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Breaches suppressed because an unresolved alert already exists.",
		}, []string{"parameter"}),
		AlertQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_queue_dropped_total",
			Help:      "Readings dropped because the alert queue was full.",
		}),
		EvaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Per-parameter or per-profile evaluation failures.",
		}),
		TransportReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_reconnect_attempts_total",
			Help:      "MQTT reconnect attempts.",
		}),
		PumpCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_commands_total",
			Help:      "Pump commands by requested status and result.",
		}, []string{"status", "result"}),
	}
	m.registry.MustRegister(
		m.ReadingsIngested,
		m.ReadingsRejected,
		m.AlertsCreated,
		m.AlertsSuppressed,
		m.AlertQueueDropped,
		m.EvaluationErrors,
		m.TransportReconnects,
		m.PumpCommands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackTransport exposes hydro_transport_connected from a live connection check.
func (m *Metrics) TrackTransport(connected func() bool) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transport_connected",
		Help:      "1 when the MQTT session is live.",
	}, func() float64 {
		if connected() {
			return 1
		}
		return 0
	}))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
