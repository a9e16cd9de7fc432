package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"

	"github.com/plotwatch/plotwatch/internal/notifier"
)

type Config struct {
	ProjectID string `flag:"project-id" desc:"gcp project id" validate:"required"`
	Topic     string `flag:"topic" desc:"pub/sub topic events are published to" validate:"required"`
}

type Client interface {
	Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) (string, error)
	Close() error
}

type clientWrapper struct {
	*pubsub.Client
}

func (w *clientWrapper) Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) (string, error) {
	publisher := w.Client.Publisher(topic)
	result := publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	return result.Get(ctx)
}

// PubSub publishes envelopes to a google cloud pub/sub topic.
type PubSub struct {
	topic  string
	client Client
}

func New(config *Config) (*PubSub, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	client, err := pubsub.NewClient(context.Background(), config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	return NewWithClient(config, &clientWrapper{client})
}

func NewWithClient(config *Config, client Client) (*PubSub, error) {
	if config.Topic == "" {
		return nil, fmt.Errorf("missing topic")
	}

	return &PubSub{
		topic:  config.Topic,
		client: client,
	}, nil
}

func (p *PubSub) Name() string {
	return "pubsub"
}

func (p *PubSub) Notify(ctx context.Context, envelope *notifier.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	_, err = p.client.Publish(ctx, p.topic, data, map[string]string{
		"id":       envelope.Id,
		"priority": envelope.Event.Priority.String(),
		"service":  envelope.Event.Service.String(),
	})
	return err
}

func (p *PubSub) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
