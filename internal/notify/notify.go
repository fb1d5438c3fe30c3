// Package notify forwards build task lifecycle events to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
)

// TypeTaskLog is the message type carrying a run's complete log buffer.
const TypeTaskLog = "TaskLog"

// Message is the wire form of a published notification.
type Message struct {
	TaskID    string          `json:"task_id"`
	RunID     string          `json:"run_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Lines     []string        `json:"lines,omitempty"`
}

// FromEvent converts a lifecycle event into a Message.
func FromEvent(e eventstore.Event) Message {
	var payload json.RawMessage
	if p := e.Payload(); len(p) > 0 {
		payload = json.RawMessage(p)
	}
	return Message{
		TaskID:    e.TaskID(),
		RunID:     e.RunID(),
		Type:      e.Type(),
		Timestamp: e.Timestamp(),
		Payload:   payload,
	}
}

// LogMessage builds the message carrying a run's log lines.
func LogMessage(taskID, runID string, lines []string) Message {
	return Message{
		TaskID:    taskID,
		RunID:     runID,
		Type:      TypeTaskLog,
		Timestamp: time.Now(),
		Lines:     lines,
	}
}

// Publisher delivers messages to an event bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NoopPublisher drops every message.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Message) error { return nil }
func (NoopPublisher) Close() error                           { return nil }

// MemoryPublisher records messages in memory. It is safe for concurrent use.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned from Publish instead of recording.
	Err error
}

func (m *MemoryPublisher) Publish(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Messages returns a copy of the recorded messages.
func (m *MemoryPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Types returns the recorded message types in order.
func (m *MemoryPublisher) Types() []string {
	msgs := m.Messages()
	types := make([]string, len(msgs))
	for i, msg := range msgs {
		types[i] = msg.Type
	}
	return types
}
