package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/util"
	"github.com/plotwatch/plotwatch/internal/version"
)

type Config struct {
	Url         string            `flag:"url" desc:"url events are posted to" validate:"required,url"`
	Headers     map[string]string `flag:"headers" desc:"extra request headers"`
	ConnTimeout time.Duration     `flag:"conn-timeout" desc:"http connection timeout" default:"10s"`
}

// Webhook posts envelopes as json to a fixed url.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func New(config *Config) (*Webhook, error) {
	if config.Url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	return &Webhook{
		url:     config.Url,
		headers: config.Headers,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: config.ConnTimeout,
				}).DialContext,
			},
		},
	}, nil
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Notify(ctx context.Context, envelope *notifier.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", version.UserAgent())
	for _, k := range util.OrderedKeys(w.headers) {
		req.Header.Set(k, w.headers[k])
	}

	// set non-overridable headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", envelope.Id)

	res, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", res.StatusCode)
	}

	return nil
}

func (w *Webhook) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
