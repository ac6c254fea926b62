package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder keeps model request counters in a Prometheus registry.
type PrometheusRecorder struct {
	requests  *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	throttled *prometheus.CounterVec
}

// NewPrometheusRecorder registers the llm_ families with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Model requests issued for test case generation, by model, status and error type",
		}, []string{"model", "status", "error_type"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens spent on successful model requests, by model and direction",
		}, []string{"model", "type"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "llm_request_duration_seconds",
			Help: "Model request latency",
			// Generation responses are long; the default buckets top out at 10s.
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"model"}),
		throttled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_throttled_total",
			Help: "Model requests refused by the local limiter, by model and reason",
		}, []string{"model", "reason"}),
	}
}

// ObserveRequest implements Recorder. Token counts are only added for
// successful requests.
func (p *PrometheusRecorder) ObserveRequest(obs Observation) {
	if obs.Success() {
		p.requests.WithLabelValues(obs.Model, statusSuccess, "").Inc()
		p.tokens.WithLabelValues(obs.Model, "prompt").Add(float64(obs.PromptTokens))
		p.tokens.WithLabelValues(obs.Model, "completion").Add(float64(obs.CompletionTokens))
	} else {
		p.requests.WithLabelValues(obs.Model, statusError, obs.ErrorType).Inc()
	}
	p.duration.WithLabelValues(obs.Model).Observe(obs.Duration.Seconds())
}

// IncThrottle implements Recorder.
func (p *PrometheusRecorder) IncThrottle(model, reason string) {
	p.throttled.WithLabelValues(model, reason).Inc()
}
