package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/plotwatch/plotwatch/internal/notifier"
)

type Config struct {
	QueueURL string `flag:"queue-url" desc:"sqs queue url, https://sqs.<region>.amazonaws.com/<account>/<queue>" validate:"required,url"`
}

type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS sends envelopes to an aws sqs queue.
type SQS struct {
	queueURL string
	region   string
	client   Client
}

func New(config *Config) (*SQS, error) {
	return NewWithClient(config, nil)
}

func NewWithClient(config *Config, client Client) (*SQS, error) {
	if config.QueueURL == "" {
		return nil, errors.New("missing sqs queue url")
	}

	region, err := parse(config.QueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQS URL: %w", err)
	}

	if client == nil {
		awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = sqs.NewFromConfig(awsConfig)
	}

	return &SQS{
		queueURL: config.QueueURL,
		region:   region,
		client:   client,
	}, nil
}

func (s *SQS) Name() string {
	return "sqs"
}

func (s *SQS) Notify(ctx context.Context, envelope *notifier.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	priority := envelope.Event.Priority.String()
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &s.queueURL,
		MessageBody: ptr(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"priority": {
				DataType:    ptr("String"),
				StringValue: &priority,
			},
		},
	}, func(o *sqs.Options) {
		o.Region = s.region
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (s *SQS) Close() error {
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

// Parse the SQS URL to extract region.
// Expected format: https://sqs.region.amazonaws.com/account/queue-name
func parse(queueURL string) (string, error) {
	url := strings.TrimSpace(queueURL)

	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	if !strings.HasPrefix(url, "sqs.") {
		return "", errors.New("invalid SQS URL format: must start with sqs")
	}

	url = strings.TrimPrefix(url, "sqs.")

	parts := strings.Split(url, ".")
	if len(parts) < 2 {
		return "", errors.New("invalid SQS URL format: missing region")
	}

	region := parts[0]
	if region == "" {
		return "", errors.New("invalid SQS URL format: empty region")
	}

	return region, nil
}
