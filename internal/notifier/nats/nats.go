package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/plotwatch/plotwatch/internal/notifier"
)

type Config struct {
	URL     string        `flag:"url" desc:"nats server url" default:"nats://localhost:4222" validate:"required"`
	Subject string        `flag:"subject" desc:"subject prefix, events are published to <subject>.<priority>" default:"plotwatch.events" validate:"required"`
	Timeout time.Duration `flag:"timeout" desc:"nats connection timeout" default:"10s"`
}

type Client interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes envelopes on a nats subject per priority.
type NATS struct {
	subject string
	client  Client
}

func New(config *Config) (*NATS, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	opts := []natsgo.Option{
		natsgo.Name("plotwatch"),
		natsgo.Timeout(config.Timeout),
		natsgo.RetryOnFailedConnect(true),
		natsgo.PingInterval(20 * time.Second),
		natsgo.MaxPingsOutstanding(2),
	}

	nc, err := natsgo.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return NewWithClient(config, nc)
}

func NewWithClient(config *Config, client Client) (*NATS, error) {
	if config.Subject == "" {
		return nil, fmt.Errorf("NATS subject is required")
	}

	return &NATS{
		subject: config.Subject,
		client:  client,
	}, nil
}

func (n *NATS) Name() string {
	return "nats"
}

func (n *NATS) Notify(ctx context.Context, envelope *notifier.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%s", n.subject, envelope.Event.Priority)
	if err := n.client.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return n.client.FlushWithContext(ctx)
}

func (n *NATS) Close() error {
	n.client.Close()
	return nil
}
