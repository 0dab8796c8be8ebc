package services

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records production and HTTP activity. A nil *Metrics is a no-op.
type Metrics struct {
	stageTransitions *prometheus.CounterVec
	ruleViolations   *prometheus.CounterVec
	mediaUploads     *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	notifications    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics registers the service metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_stage_transitions_total",
			Help: "Committed stage transitions by stage and target status.",
		}, []string{"stage", "status"}),
		ruleViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_rule_violations_total",
			Help: "Operations rejected by the production rules.",
		}, []string{"operation"}),
		mediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_media_uploads_total",
			Help: "Media uploads by type and result.",
		}, []string{"media_type", "result"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Customer notifications by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.stageTransitions,
		m.ruleViolations,
		m.mediaUploads,
		m.ordersCreated,
		m.notifications,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// StageTransition counts a committed stage write.
func (m *Metrics) StageTransition(stageID, status string) {
	if m == nil || m.stageTransitions == nil {
		return
	}
	m.stageTransitions.WithLabelValues(normalizeLabel(stageID), normalizeLabel(status)).Inc()
}

// RuleViolation counts an operation refused by the production rules.
func (m *Metrics) RuleViolation(operation string) {
	if m == nil || m.ruleViolations == nil {
		return
	}
	m.ruleViolations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// MediaUpload counts one uploaded or failed file.
func (m *Metrics) MediaUpload(mediaType string, ok bool) {
	if m == nil || m.mediaUploads == nil {
		return
	}
	m.mediaUploads.WithLabelValues(normalizeLabel(mediaType), result(ok)).Inc()
}

// OrderCreated counts a new order.
func (m *Metrics) OrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// Notification counts a customer notification attempt.
func (m *Metrics) Notification(ok bool) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(result(ok)).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
