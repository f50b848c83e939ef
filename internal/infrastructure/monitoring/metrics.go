package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Process lifecycle metrics
	ProcessesLive  prometheus.Gauge
	ProcessesTotal prometheus.Counter
	Restarts       prometheus.Counter

	// IPC metrics
	Discoveries      *prometheus.CounterVec
	Notifies         *prometheus.CounterVec
	UpcallsScheduled prometheus.Counter
	SilentDrops      *prometheus.CounterVec
	MPURegions       prometheus.Counter
	GrantEntries     prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Process lifecycle metrics
		ProcessesLive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_processes_live",
				Help: "Number of live processes",
			},
		),
		ProcessesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_processes_total",
				Help: "Total number of processes spawned",
			},
		),
		Restarts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_process_restarts_total",
				Help: "Total number of process restarts",
			},
		),

		// IPC metrics
		Discoveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_ipc_discoveries_total",
				Help: "IPC service discovery attempts by result",
			},
			[]string{"result"},
		),
		Notifies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_ipc_notifies_total",
				Help: "IPC notify commands by upcall type and outcome",
			},
			[]string{"type", "outcome"},
		),
		UpcallsScheduled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_ipc_upcalls_scheduled_total",
				Help: "Upcalls scheduled by the IPC dispatch path",
			},
		),
		SilentDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_ipc_silent_drops_total",
				Help: "IPC dispatches dropped without an upcall, by reason",
			},
			[]string{"reason"},
		),
		MPURegions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_mpu_regions_installed_total",
				Help: "MPU regions installed for shared buffers",
			},
		),
		GrantEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_grant_entries",
				Help: "Allocated per-process grant records",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_ws_connections",
				Help: "Active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_ws_messages_total",
				Help: "WebSocket messages by type",
			},
			[]string{"type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_uptime_seconds",
				Help: "Daemon uptime in seconds",
			},
		),
	}

	// Update uptime periodically
	go m.updateUptime()

	return m
}

// updateUptime updates the uptime metric every 10 seconds
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDiscovery records a discovery attempt
func (m *Metrics) RecordDiscovery(result string) {
	m.Discoveries.WithLabelValues(result).Inc()
}

// RecordNotify records a notify command
func (m *Metrics) RecordNotify(upcallType, outcome string) {
	m.Notifies.WithLabelValues(upcallType, outcome).Inc()
}

// RecordSilentDrop records a dispatch abandoned because a handle went stale
func (m *Metrics) RecordSilentDrop(reason string) {
	m.SilentDrops.WithLabelValues(reason).Inc()
}
