package channels

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

// webhookPayload is the document posted to custom webhook endpoints. The
// receiver gets the structured notification rather than a pre-rendered
// string.
type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Webhook delivers the notification as JSON to an arbitrary HTTP endpoint.
type Webhook struct {
	logger zerolog.Logger
	poster *poster
	url    string
	limit  int
}

// WebhookOption customises the Webhook channel.
type WebhookOption func(*Webhook)

// WithWebhookHTTPClient injects a custom HTTP client.
func WithWebhookHTTPClient(client HTTPClient) WebhookOption {
	return func(w *Webhook) {
		if client != nil {
			w.poster = newPoster(client)
		}
	}
}

// NewWebhook validates the channel configuration and constructs the channel.
func NewWebhook(cfg config.WebhookConfig, logger zerolog.Logger, opts ...WebhookOption) (*Webhook, error) {
	endpoint, err := util.ValidateHTTPURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: custom webhook url (%v)", ErrMissingConfig, err)
	}

	webhook := &Webhook{
		logger: componentLogger(logger, "webhook"),
		poster: newPoster(nil),
		url:    endpoint,
		limit:  cfg.MaxLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(webhook)
		}
	}
	return webhook, nil
}

// Kind implements Channel.
func (w *Webhook) Kind() models.ChannelKind {
	return models.KindWebhook
}

// Send posts the notification to the configured endpoint.
func (w *Webhook) Send(ctx context.Context, note models.Notification) error {
	payload := webhookPayload{
		Subject: note.Subject,
		Body:    Truncate(note.Body, w.limit),
	}

	status, body, err := w.poster.postJSON(ctx, w.url, nil, payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return failSend(classifyStatus(status), fmt.Errorf("webhook: http %d: %s", status, snippet(body)))
	}

	w.logger.Debug().Msg("webhook delivered")
	return nil
}
