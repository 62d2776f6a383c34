package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the service. Every recorder is
// safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errors             *prometheus.CounterVec
	ticketsCreated     *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec
	slaBreaches        *prometheus.CounterVec
	alertCycleDuration prometheus.Histogram
	alertCycleFailures *prometheus.CounterVec
	alertsTriggered    *prometheus.CounterVec
	activeAlerts       prometheus.Gauge
	notifications      *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "support_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_errors_total",
			Help: "Domain errors returned to callers by code.",
		}, []string{"route", "method", "code"}),
		ticketsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_tickets_created_total",
			Help: "Tickets created per business model.",
		}, []string{"business_model", "priority"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_ticket_transitions_total",
			Help: "Ticket status transitions.",
		}, []string{"from", "to"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_rate_limited_total",
			Help: "Ticket creations rejected by the rate limiter.",
		}, []string{"business_model", "window"}),
		slaBreaches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_sla_breaches_total",
			Help: "SLA breaches flagged by the sweep.",
		}, []string{"kind"}),
		alertCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "support_alert_cycle_duration_seconds",
			Help:    "Duration of one alert evaluation cycle.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		alertCycleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_alert_tenant_failures_total",
			Help: "Tenant evaluations that failed inside an alert cycle.",
		}, []string{"business_model"}),
		alertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_alerts_triggered_total",
			Help: "Alerts created or refreshed.",
		}, []string{"type", "severity", "outcome"}),
		activeAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "support_active_alerts",
			Help: "Unresolved alerts held by the engine.",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_notifications_total",
			Help: "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest counts an HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts a domain error surfaced over HTTP.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

func (m *Metrics) TicketCreated(businessModel, priority string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(businessModel, priority).Inc()
}

func (m *Metrics) TicketTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RateLimited(businessModel, window string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(businessModel, window).Inc()
}

func (m *Metrics) SLABreach(kind string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(kind).Inc()
}

// AlertCycle observes the duration of one evaluation cycle.
func (m *Metrics) AlertCycle(duration time.Duration) {
	if m == nil {
		return
	}
	m.alertCycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) AlertTenantFailure(businessModel string) {
	if m == nil {
		return
	}
	m.alertCycleFailures.WithLabelValues(businessModel).Inc()
}

// AlertTriggered counts a fire; outcome is "created" or "refreshed".
func (m *Metrics) AlertTriggered(alertType, severity, outcome string) {
	if m == nil {
		return
	}
	m.alertsTriggered.WithLabelValues(alertType, severity, outcome).Inc()
}

func (m *Metrics) SetActiveAlerts(n int) {
	if m == nil {
		return
	}
	m.activeAlerts.Set(float64(n))
}

// Notification counts a delivery attempt; outcome is "ok" or "error".
func (m *Metrics) Notification(channel, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}
