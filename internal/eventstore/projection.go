// Package eventstore persists build task lifecycle events and projects them
// into per-run summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	runStatusRunning  = "running"
	runStatusFinished = "finished"
	runStatusFailed   = "failed"
)

// RunSummary is a read model summarizing a finished or in-progress run.
type RunSummary struct {
	RunID          string                   `json:"run_id"`
	TaskID         string                   `json:"task_id"`
	Status         string                   `json:"status"` // "running", "finished", "failed"
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	Duration       time.Duration            `json:"duration,omitempty"`
	Destination    string                   `json:"destination,omitempty"`
	StageDurations map[string]time.Duration `json:"stage_durations,omitempty"`
	ErrorStage     string                   `json:"error_stage,omitempty"`
	ErrorMessage   string                   `json:"error_message,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary // runID -> summary
	history  []*RunSummary          // completed runs, newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a new projection backed by the given store.
// store may be nil when events are only fed through Apply.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	p.Reset(events)
	return nil
}

// Reset replaces the projection state with one built from events.
func (p *RunHistoryProjection) Reset(events []Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
	p.lastSync = time.Now()
}

// Apply processes a single event and updates the projection.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			TaskID:    event.TaskID(),
			Status:    runStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeTaskStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = runStatusRunning
		var meta TaskStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Destination = meta.Destination
		}

	case TypeStageCompleted:
		var payload struct {
			Stage      string `json:"stage"`
			DurationMS int64  `json:"duration_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Stage != "" {
			if summary.StageDurations == nil {
				summary.StageDurations = make(map[string]time.Duration)
			}
			summary.StageDurations[payload.Stage] = time.Duration(payload.DurationMS) * time.Millisecond
		}

	case TypeTaskFinished:
		p.completeLocked(summary, event.Timestamp(), runStatusFinished)
		var payload struct {
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Destination != "" {
			summary.Destination = payload.Destination
		}
		p.addToHistoryLocked(summary)

	case TypeTaskFailed:
		p.completeLocked(summary, event.Timestamp(), runStatusFailed)
		var payload struct {
			Stage string `json:"stage"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *RunHistoryProjection) completeLocked(summary *RunSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status
}

// addToHistoryLocked adds a completed run to history if not already present.
func (p *RunHistoryProjection) addToHistoryLocked(summary *RunSummary) {
	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}

	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops completed runs that fell out of the bounded history.
// Running runs are kept. Caller must hold p.mu.
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, summary := range p.runs {
		if summary.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// GetHistory returns completed runs, newest first.
func (p *RunHistoryProjection) GetHistory() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]RunSummary, len(p.history))
	for i, h := range p.history {
		result[i] = *h
	}
	return result
}

// GetRun returns the summary for a specific run.
func (p *RunHistoryProjection) GetRun(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.runs[runID]
	if !exists {
		return RunSummary{}, false
	}
	return *summary, true
}

// GetActiveRuns returns runs that have started but not completed.
func (p *RunHistoryProjection) GetActiveRuns() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var active []RunSummary
	for _, summary := range p.runs {
		if summary.Status == runStatusRunning {
			active = append(active, *summary)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	return active
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
