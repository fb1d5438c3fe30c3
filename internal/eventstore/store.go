package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds an event to the store. The store assigns ID and keeps the
	// event's own timestamp.
	Append(ctx context.Context, e Event) error

	// GetByTask retrieves all events for a task identity across runs.
	GetByTask(ctx context.Context, taskID string) ([]Event, error)

	// GetByRun retrieves all events of a single run.
	GetByRun(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
