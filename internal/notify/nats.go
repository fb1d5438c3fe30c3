package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

const (
	streamName     = "REFBUILDER_TASKS"
	publishTimeout = 5 * time.Second
)

// NATSPublisher publishes messages to a JetStream stream. Each message goes
// to "<subject>.<type>".
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url and makes sure a stream captures
// "<subject>.>".
func NewNATSPublisher(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	subject = strings.TrimSuffix(subject, ".")
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}

	conn, err := nats.Connect(url, nats.Name("refbuilder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Build task lifecycle events",
		Subjects:    []string{subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", streamName, err)
	}

	logger.Info("NATS publisher initialized", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, js: js, subject: subject, logger: logger}, nil
}

// Subject returns the subject msg is published on.
func (p *NATSPublisher) Subject(msg Message) string {
	return p.subject + "." + msg.Type
}

func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.Subject(msg), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}

	p.logger.Debug("Published task message",
		logfields.TaskID(msg.TaskID), logfields.RunID(msg.RunID), slog.String("type", msg.Type))
	return nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
