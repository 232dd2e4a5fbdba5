package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/httpclient"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// WebhookConfig configures the webhook publisher.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Headers map[string]string
}

// Webhook posts each event as JSON. 5xx and 429 replies are retried.
type Webhook struct {
	url    string
	client *httpclient.Client
	log    logger.LoggerInterface
}

var _ app.EventPublisher = (*Webhook)(nil)

// NewWebhook returns a webhook publisher.
func NewWebhook(cfg WebhookConfig, log logger.LoggerInterface) (*Webhook, error) {
	client, err := httpclient.New(
		httpclient.WithProviderName("webhook"),
		httpclient.WithTracer(otel.Tracer("github.com/fd1az/torus-bridge/business/bridge/infra/notify")),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithRetries(cfg.Retries, cfg.Backoff),
		httpclient.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return nil, err
	}
	return &Webhook{url: cfg.URL, client: client, log: log}, nil
}

// Publish implements app.EventPublisher.
func (w *Webhook) Publish(ctx context.Context, event app.Event) error {
	resp, err := w.client.PostJSON(ctx, w.url, event, nil)
	if err != nil {
		return err
	}
	w.log.Debug(ctx, "webhook delivered", "type", event.Type, "status", resp.StatusCode)
	return nil
}
