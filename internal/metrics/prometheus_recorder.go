package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "refbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	taskDuration    prom.Histogram
	taskOutcome     *prom.CounterVec
	commandDuration *prom.HistogramVec
	lastSuccess     *prom.GaugeVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.taskDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Total duration of a task run",
		Buckets:   prom.ExponentialBuckets(1, 2, 12),
	})
	pr.taskOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_outcomes_total",
		Help:      "Task runs by final status",
	}, []string{"outcome"})
	pr.commandDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Duration of individual build commands",
		Buckets:   prom.ExponentialBuckets(0.1, 4, 10),
	}, []string{"exit_code"})
	pr.lastSuccess = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful publish per repository",
	}, []string{"repository"})
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.taskDuration, pr.taskOutcome, pr.commandDuration, pr.lastSuccess)
	return pr
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.reg
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveTaskDuration(d time.Duration) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskOutcome(outcome OutcomeLabel) {
	if p == nil || p.taskOutcome == nil {
		return
	}
	p.taskOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveCommandDuration(d time.Duration, exitCode int) {
	if p == nil || p.commandDuration == nil {
		return
	}
	p.commandDuration.WithLabelValues(strconv.Itoa(exitCode)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetLastSuccess(repository string, t time.Time) {
	if p == nil || p.lastSuccess == nil {
		return
	}
	p.lastSuccess.WithLabelValues(repository).Set(float64(t.Unix()))
}
