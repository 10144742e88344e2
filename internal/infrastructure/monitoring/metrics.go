package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics
// records nothing.
type Metrics struct {
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	stageOutcomes   *prometheus.CounterVec
	storeOps        *prometheus.CounterVec
	chatQuestions   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_calls_total",
				Help: "Model gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_call_duration_seconds",
				Help:    "Model gateway call latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"operation"},
		),
		stageOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_stage_total",
				Help: "Generation pipeline stage outcomes",
			},
			[]string{"stage", "outcome"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_store_operations_total",
				Help: "Recipe store operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		chatQuestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_questions_total",
				Help: "Chat questions by outcome",
			},
			[]string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_requests",
				Help: "Number of active HTTP requests",
			},
		),
	}

	reg.MustRegister(
		m.gatewayCalls, m.gatewayDuration, m.stageOutcomes, m.storeOps,
		m.chatQuestions, m.httpRequests, m.httpDuration, m.activeRequests,
	)
	return m
}

// ObserveGatewayCall records one model gateway call.
func (m *Metrics) ObserveGatewayCall(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, outcome(err)).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveStage records the outcome of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, err error) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(stage, outcome(err)).Inc()
}

// ObserveStoreOp records one recipe store operation.
func (m *Metrics) ObserveStoreOp(operation string, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveChatQuestion records one chat question.
func (m *Metrics) ObserveChatQuestion(err error) {
	if m == nil {
		return
	}
	m.chatQuestions.WithLabelValues(outcome(err)).Inc()
}

// RecordRequest records request metrics
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, statusStr).Inc()
}

// RequestStarted and RequestFinished track in-flight requests.
func (m *Metrics) RequestStarted() {
	if m != nil {
		m.activeRequests.Inc()
	}
}

func (m *Metrics) RequestFinished() {
	if m != nil {
		m.activeRequests.Dec()
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
