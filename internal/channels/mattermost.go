package channels

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

// Mattermost posts the notification to an incoming webhook.
type Mattermost struct {
	logger zerolog.Logger
	poster *poster
	url    string
	limit  int
}

// MattermostOption customises the Mattermost channel.
type MattermostOption func(*Mattermost)

// WithMattermostHTTPClient injects a custom HTTP client.
func WithMattermostHTTPClient(client HTTPClient) MattermostOption {
	return func(m *Mattermost) {
		if client != nil {
			m.poster = newPoster(client)
		}
	}
}

// NewMattermost validates the channel configuration and constructs the
// channel.
func NewMattermost(cfg config.WebhookConfig, logger zerolog.Logger, opts ...MattermostOption) (*Mattermost, error) {
	endpoint, err := util.ValidateHTTPURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: mattermost webhook url (%v)", ErrMissingConfig, err)
	}

	mattermost := &Mattermost{
		logger: componentLogger(logger, "mattermost"),
		poster: newPoster(nil),
		url:    endpoint,
		limit:  cfg.MaxLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mattermost)
		}
	}
	return mattermost, nil
}

// Kind implements Channel.
func (m *Mattermost) Kind() models.ChannelKind {
	return models.KindMattermost
}

// Send posts the notification to the webhook.
func (m *Mattermost) Send(ctx context.Context, note models.Notification) error {
	payload := map[string]string{
		"text": Truncate(chatMessage(note, "**"), m.limit),
	}

	status, body, err := m.poster.postJSON(ctx, m.url, nil, payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return failSend(classifyStatus(status), fmt.Errorf("mattermost: http %d: %s", status, snippet(body)))
	}

	m.logger.Debug().Msg("mattermost message posted")
	return nil
}
