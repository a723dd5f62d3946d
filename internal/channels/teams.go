package channels

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

// Teams posts a MessageCard to an incoming webhook connector.
type Teams struct {
	logger zerolog.Logger
	poster *poster
	url    string
	limit  int
}

// TeamsOption customises the Teams channel.
type TeamsOption func(*Teams)

// WithTeamsHTTPClient injects a custom HTTP client.
func WithTeamsHTTPClient(client HTTPClient) TeamsOption {
	return func(t *Teams) {
		if client != nil {
			t.poster = newPoster(client)
		}
	}
}

// NewTeams validates the channel configuration and constructs the channel.
func NewTeams(cfg config.WebhookConfig, logger zerolog.Logger, opts ...TeamsOption) (*Teams, error) {
	endpoint, err := util.ValidateHTTPURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: teams webhook url (%v)", ErrMissingConfig, err)
	}

	teams := &Teams{
		logger: componentLogger(logger, "teams"),
		poster: newPoster(nil),
		url:    endpoint,
		limit:  cfg.MaxLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(teams)
		}
	}
	return teams, nil
}

// Kind implements Channel.
func (t *Teams) Kind() models.ChannelKind {
	return models.KindTeams
}

type teamsCard struct {
	Type    string `json:"@type"`
	Context string `json:"@context"`
	Summary string `json:"summary"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// Send posts the notification card to the connector.
func (t *Teams) Send(ctx context.Context, note models.Notification) error {
	payload := teamsCard{
		Type:    "MessageCard",
		Context: "http://schema.org/extensions",
		Summary: note.Subject,
		Title:   note.Subject,
		Text:    Truncate(note.Body, t.limit),
	}

	status, body, err := t.poster.postJSON(ctx, t.url, nil, payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return failSend(classifyStatus(status), fmt.Errorf("teams: http %d: %s", status, snippet(body)))
	}

	t.logger.Debug().Msg("teams card posted")
	return nil
}
