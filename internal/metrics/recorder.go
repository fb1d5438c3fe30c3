package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel enumerates the final status of a task run.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for task and stage metrics.
// Implementations must tolerate being called from a single task goroutine
// and from several tasks running at once.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveTaskDuration(d time.Duration)
	IncTaskOutcome(outcome OutcomeLabel)
	ObserveCommandDuration(d time.Duration, exitCode int)
	SetLastSuccess(repository string, t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveTaskDuration(time.Duration)          {}
func (NoopRecorder) IncTaskOutcome(OutcomeLabel)                {}
func (NoopRecorder) ObserveCommandDuration(time.Duration, int)  {}
func (NoopRecorder) SetLastSuccess(string, time.Time)           {}
