package channels

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

const discordMessageLimit = 2000

// Discord posts the notification to an incoming webhook. Discord answers
// 204 on plain posts and 200 when ?wait=true is used; both count as
// delivered.
type Discord struct {
	logger zerolog.Logger
	poster *poster
	url    string
	limit  int
}

// DiscordOption customises the Discord channel.
type DiscordOption func(*Discord)

// WithDiscordHTTPClient injects a custom HTTP client.
func WithDiscordHTTPClient(client HTTPClient) DiscordOption {
	return func(d *Discord) {
		if client != nil {
			d.poster = newPoster(client)
		}
	}
}

// NewDiscord validates the channel configuration and constructs the channel.
// The API's own 2000 character cap applies when no limit is set.
func NewDiscord(cfg config.WebhookConfig, logger zerolog.Logger, opts ...DiscordOption) (*Discord, error) {
	endpoint, err := util.ValidateHTTPURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: discord webhook url (%v)", ErrMissingConfig, err)
	}

	limit := cfg.MaxLength
	if limit <= 0 || limit > discordMessageLimit {
		limit = discordMessageLimit
	}

	discord := &Discord{
		logger: componentLogger(logger, "discord"),
		poster: newPoster(nil),
		url:    endpoint,
		limit:  limit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(discord)
		}
	}
	return discord, nil
}

// Kind implements Channel.
func (d *Discord) Kind() models.ChannelKind {
	return models.KindDiscord
}

// Send posts the notification to the webhook.
func (d *Discord) Send(ctx context.Context, note models.Notification) error {
	payload := map[string]string{
		"content": Truncate(chatMessage(note, "**"), d.limit),
	}

	status, body, err := d.poster.postJSON(ctx, d.url, nil, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return failSend(classifyStatus(status), fmt.Errorf("discord: http %d: %s", status, snippet(body)))
	}

	d.logger.Debug().Msg("discord message posted")
	return nil
}
