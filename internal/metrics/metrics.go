// Package metrics provides Prometheus metrics for recognition sessions and the dashboard.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	MatchesTotal     *prometheus.CounterVec   // match attempts by result
	MatchDistance    prometheus.Histogram     // distance to the nearest known face
	SightingsTotal   *prometheus.CounterVec   // recorded sightings by class
	TickDuration     prometheus.Histogram     // capture cycle latency
	FlushesTotal     *prometheus.CounterVec   // attendance flushes by class and status
	ReportLoadsTotal *prometheus.CounterVec   // dashboard summaries by status
	MailsTotal       *prometheus.CounterVec   // report mails by status
	RequestDuration  *prometheus.HistogramVec // dashboard request latency by route

	registry *prometheus.Registry
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()

	for _, c := range []prometheus.Collector{
		m.MatchesTotal, m.MatchDistance, m.SightingsTotal, m.TickDuration,
		m.FlushesTotal, m.ReportLoadsTotal, m.MailsTotal, m.RequestDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_match_attempts_total",
			Help: "Live faces compared against the roster by result",
		},
		[]string{"result"}, // matched, rejected
	)

	m.MatchDistance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_match_distance",
		Help:    "Distance between a live face and its nearest known face",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0, 1.5},
	})

	m.SightingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sightings_total",
			Help: "Sightings recorded in the session ledger",
		},
		[]string{"class"},
	)

	m.TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_tick_duration_seconds",
		Help:    "Time spent on one capture, detect and match cycle",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	m.FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_flushes_total",
			Help: "Attendance file flushes by class and status",
		},
		[]string{"class", "status"},
	)

	m.ReportLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_report_loads_total",
			Help: "Attendance summaries built for the dashboard by status",
		},
		[]string{"status"}, // ok, no_data, cached, error
	)

	m.MailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_report_mails_total",
			Help: "Attendance report e-mails by status",
		},
		[]string{"status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_http_request_duration_seconds",
			Help:    "Dashboard request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveMatch records one match attempt.
func (m *Metrics) ObserveMatch(distance float64, matched bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if matched {
		result = "matched"
	}
	m.MatchesTotal.WithLabelValues(result).Inc()
	m.MatchDistance.Observe(distance)
}

// ObserveSighting records a sighting accepted by the ledger.
func (m *Metrics) ObserveSighting(class string) {
	if m == nil {
		return
	}
	m.SightingsTotal.WithLabelValues(class).Inc()
}

// ObserveTick records the duration of one capture cycle.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
}

// ObserveFlush records a flush outcome.
func (m *Metrics) ObserveFlush(class string, err error) {
	if m == nil {
		return
	}
	m.FlushesTotal.WithLabelValues(class, status(err)).Inc()
}

// ObserveReportLoad records how a dashboard summary was produced.
func (m *Metrics) ObserveReportLoad(result string) {
	if m == nil {
		return
	}
	m.ReportLoadsTotal.WithLabelValues(result).Inc()
}

// ObserveMail records a report mail outcome.
func (m *Metrics) ObserveMail(err error) {
	if m == nil {
		return
	}
	m.MailsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveRequest records dashboard request latency.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, fmt.Sprint(code)).Observe(d.Seconds())
}
