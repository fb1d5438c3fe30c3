package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

// Event type names.
const (
	TypeTaskStarted    = "TaskStarted"
	TypeStageCompleted = "StageCompleted"
	TypeTaskFinished   = "TaskFinished"
	TypeTaskFailed     = "TaskFailed"
)

// TaskStartedMeta describes what a run is about to build.
type TaskStartedMeta struct {
	Repository  string `json:"repository"`
	Ref         string `json:"ref"`
	PreviewID   string `json:"preview_id,omitempty"`
	Destination string `json:"destination"`
}

// TaskStarted is emitted when a run begins.
type TaskStarted struct {
	BaseEvent
	Meta TaskStartedMeta
}

func newBase(taskID, runID, eventType string, v any) (BaseEvent, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError(ErrMarshalPayloadFailed.Message()).
			WithCause(err).
			WithContext("task_id", taskID).
			WithContext("event_type", eventType).
			Build()
	}
	return BaseEvent{
		EventTaskID:    taskID,
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}, nil
}

// NewTaskStarted creates a TaskStarted event.
func NewTaskStarted(taskID, runID string, meta TaskStartedMeta) (*TaskStarted, error) {
	base, err := newBase(taskID, runID, TypeTaskStarted, meta)
	if err != nil {
		return nil, err
	}
	return &TaskStarted{BaseEvent: base, Meta: meta}, nil
}

// StageCompleted is emitted after each pipeline stage that succeeded.
type StageCompleted struct {
	BaseEvent
	Stage    string
	Duration time.Duration
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(taskID, runID, stage string, duration time.Duration) (*StageCompleted, error) {
	base, err := newBase(taskID, runID, TypeStageCompleted, map[string]any{
		"stage":       stage,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &StageCompleted{BaseEvent: base, Stage: stage, Duration: duration}, nil
}

// TaskFinished is emitted when a run published its artifacts.
type TaskFinished struct {
	BaseEvent
	Destination string
	Duration    time.Duration
}

// NewTaskFinished creates a TaskFinished event.
func NewTaskFinished(taskID, runID, destination string, duration time.Duration) (*TaskFinished, error) {
	base, err := newBase(taskID, runID, TypeTaskFinished, map[string]any{
		"destination": destination,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &TaskFinished{BaseEvent: base, Destination: destination, Duration: duration}, nil
}

// TaskFailed is emitted when a run aborted.
type TaskFailed struct {
	BaseEvent
	Stage    string
	Category string
	Error    string
	Duration time.Duration
}

// NewTaskFailed creates a TaskFailed event. stage may be empty when the
// failure happened outside a pipeline stage.
func NewTaskFailed(taskID, runID, stage, category, message string, duration time.Duration) (*TaskFailed, error) {
	base, err := newBase(taskID, runID, TypeTaskFailed, map[string]any{
		"stage":       stage,
		"category":    category,
		"error":       message,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &TaskFailed{BaseEvent: base, Stage: stage, Category: category, Error: message, Duration: duration}, nil
}
