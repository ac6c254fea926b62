// Package metrics holds the application's Prometheus registry and a query
// client for reading usage back from a Prometheus server.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	llmmetrics "storyqa/pkg/agent/middleware/metrics"
	"storyqa/pkg/logx"
)

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("metrics")

// Registry owns every storyqa collector. A nil *Registry records nothing.
type Registry struct {
	reg         *prometheus.Registry
	llm         *llmmetrics.PrometheusRecorder
	generations *prometheus.CounterVec
	cases       *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewRegistry creates a registry with the LLM, generation and publish
// collectors plus the Go runtime collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		llm: llmmetrics.NewPrometheusRecorder(reg),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyqa_generations_total",
				Help: "Test case generation runs by path (model or rules)",
			},
			[]string{"path"},
		),
		cases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyqa_generated_cases_total",
				Help: "Test cases produced by path",
			},
			[]string{"path"},
		),
		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyqa_published_tests_total",
				Help: "Test issues created in the tracker by project and status",
			},
			[]string{"project", "status"},
		),
	}
}

// Recorder returns the LLM middleware recorder, or a no-op for a nil registry.
func (r *Registry) Recorder() llmmetrics.Recorder {
	if r == nil {
		return llmmetrics.Nop()
	}
	return r.llm
}

// ObserveGeneration counts one generation run and its cases.
func (r *Registry) ObserveGeneration(path string, cases int) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(path).Inc()
	r.cases.WithLabelValues(path).Add(float64(cases))
}

// ObservePublished counts one attempted test issue creation.
func (r *Registry) ObservePublished(project string, ok bool) {
	if r == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	r.published.WithLabelValues(project, status).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WriteText dumps every storyqa_ and llm_ family in text format. Runtime
// collectors are left out of the snapshot.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if !isAppFamily(mf.GetName()) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func isAppFamily(name string) bool {
	return strings.HasPrefix(name, "llm_") || strings.HasPrefix(name, "storyqa_")
}
