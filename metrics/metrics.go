// Package metrics exposes prometheus collectors for sessions, commands and
// searches, and the HTTP endpoint that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moshix/searchserver/config"
)

const namespace = "searchserver"

// Metrics holds every collector of the server.
type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	MessagesTotal  prometheus.Counter
	CommandsTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	FileTasksTotal *prometheus.CounterVec

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected client sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of accepted client sessions",
		}),
		MessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of lines received from clients",
		}),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of dispatched commands",
			},
			[]string{"command"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Corpus search duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"}, // matches, empty, too_many, error
		),
		FileTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_tasks_total",
				Help:      "Total number of per-file matcher tasks",
			},
			[]string{"kind", "status"},
		),
		reg: reg,
	}

	for _, c := range []prometheus.Collector{
		m.SessionsActive,
		m.SessionsTotal,
		m.MessagesTotal,
		m.CommandsTotal,
		m.SearchDuration,
		m.FileTasksTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WatchQueue registers a gauge that reads the worker pool queue depth at
// scrape time.
func (m *Metrics) WatchQueue(depth func() int) error {
	return m.reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_queue_depth",
			Help:      "Number of file tasks waiting for a worker",
		},
		func() float64 { return float64(depth()) },
	))
}

// SessionOpened records an accepted session.
func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionClosed records the end of a session.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}

// Message records one received line.
func (m *Metrics) Message() {
	m.MessagesTotal.Inc()
}

// Command records one dispatched command by name.
func (m *Metrics) Command(name string) {
	m.CommandsTotal.WithLabelValues(name).Inc()
}

// ObserveFile records the status of one matcher task.
func (m *Metrics) ObserveFile(kind config.Kind, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FileTasksTotal.WithLabelValues(string(kind), status).Inc()
}

// ObserveSearch records the duration of one corpus search.
func (m *Metrics) ObserveSearch(outcome string, elapsed time.Duration) {
	m.SearchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
