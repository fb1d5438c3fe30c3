package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
)

func TestFromEvent(t *testing.T) {
	e, err := eventstore.NewStageCompleted("acme_site@main", "run-1", "fetch", 2*time.Second)
	require.NoError(t, err)

	msg := FromEvent(e)
	require.Equal(t, "acme_site@main", msg.TaskID)
	require.Equal(t, "run-1", msg.RunID)
	require.Equal(t, eventstore.TypeStageCompleted, msg.Type)
	require.Equal(t, e.Timestamp(), msg.Timestamp)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded struct {
		Payload struct {
			Stage      string `json:"stage"`
			DurationMS int64  `json:"duration_ms"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "fetch", decoded.Payload.Stage)
	require.Equal(t, int64(2000), decoded.Payload.DurationMS)
}

func TestLogMessage(t *testing.T) {
	msg := LogMessage("acme_site@main", "run-1", []string{"a", "b"})
	require.Equal(t, TypeTaskLog, msg.Type)
	require.Equal(t, []string{"a", "b"}, msg.Lines)
	require.Nil(t, msg.Payload)
}

func TestMemoryPublisher(t *testing.T) {
	var m MemoryPublisher
	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, Message{Type: "TaskStarted"}))
	require.NoError(t, m.Publish(ctx, Message{Type: "TaskFinished"}))
	require.Equal(t, []string{"TaskStarted", "TaskFinished"}, m.Types())

	m.Err = errors.New("bus down")
	require.ErrorIs(t, m.Publish(ctx, Message{Type: "TaskLog"}), m.Err)
	require.Len(t, m.Messages(), 2)
}

func TestNewNATSPublisherRequiresSubject(t *testing.T) {
	_, err := NewNATSPublisher(context.Background(), "nats://127.0.0.1:4222", "", nil)
	require.Error(t, err)
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher(context.Background(), "nats://127.0.0.1:1", "refbuilder.tasks", nil)
	require.Error(t, err)
}

func TestNATSPublisherSubject(t *testing.T) {
	p := &NATSPublisher{subject: "refbuilder.tasks"}
	require.Equal(t, "refbuilder.tasks.TaskFailed", p.Subject(Message{Type: "TaskFailed"}))
}
