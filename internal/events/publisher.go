package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/dexbuilder/internal/config"
)

const publishTimeout = 5 * time.Second

// Publisher publishes run lifecycle events to NATS JetStream. A nil
// Publisher is valid and drops every event, so callers never branch on
// whether event publication is configured.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	prefix  string
	log     *slog.Logger
}

// NewPublisher connects to NATS using the events configuration. Returns an
// error when events are disabled so callers can distinguish "off" from
// "broken"; use MaybeNewPublisher for optional wiring.
func NewPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("events config is required")
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publication is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{
		conn:   conn,
		js:     js,
		prefix: cfg.SubjectPrefix,
		log:    slog.Default().With("component", "events"),
	}

	slog.Info("NATS publisher initialized for run events",
		"url", cfg.URL,
		"subject_prefix", cfg.SubjectPrefix)

	return p, nil
}

// MaybeNewPublisher returns nil when events are disabled and an error only
// when they are enabled but the connection fails.
func MaybeNewPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return NewPublisher(cfg)
}

// RunStarted publishes a run start event.
func (p *Publisher) RunStarted(ev *RunStartedEvent) error {
	if p == nil {
		return nil
	}
	return p.publish("run.started", ev, func() { ev.Timestamp = time.Now() })
}

// RunCompleted publishes the final run summary.
func (p *Publisher) RunCompleted(ev *RunCompletedEvent) error {
	if p == nil {
		return nil
	}
	return p.publish("run.completed", ev, func() { ev.Timestamp = time.Now() })
}

// Issue publishes a single report issue.
func (p *Publisher) Issue(ev *IssueEvent) error {
	if p == nil {
		return nil
	}
	return p.publish("run.issue", ev, func() { ev.Timestamp = time.Now() })
}

func (p *Publisher) publish(name string, event any, stamp func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	stamp()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := subjectFor(p.prefix, name)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Debug("Published run event", "subject", subject)
	return nil
}

func subjectFor(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	p.conn.Close()
	return nil
}
