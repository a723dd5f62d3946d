package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

const defaultSlackBaseURL = "https://slack.com/api"

// Slack posts chat messages through the chat.postMessage API. Transport
// success is not enough here: the response body carries its own ok flag.
type Slack struct {
	logger  zerolog.Logger
	poster  *poster
	token   string
	channel string
	limit   int
	baseURL string
}

// SlackOption customises the Slack channel.
type SlackOption func(*Slack)

// WithSlackHTTPClient injects a custom HTTP client.
func WithSlackHTTPClient(client HTTPClient) SlackOption {
	return func(s *Slack) {
		if client != nil {
			s.poster = newPoster(client)
		}
	}
}

// WithSlackBaseURL overrides the API base URL, typically for tests.
func WithSlackBaseURL(baseURL string) SlackOption {
	return func(s *Slack) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// NewSlack validates the channel configuration and constructs the channel.
func NewSlack(cfg config.SlackConfig, logger zerolog.Logger, opts ...SlackOption) (*Slack, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: slack token", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, fmt.Errorf("%w: slack channel", ErrMissingConfig)
	}

	slack := &Slack{
		logger:  componentLogger(logger, "slack"),
		poster:  newPoster(nil),
		token:   strings.TrimSpace(cfg.Token),
		channel: normalizeSlackChannel(cfg.Channel),
		limit:   cfg.MaxLength,
		baseURL: defaultSlackBaseURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(slack)
		}
	}
	return slack, nil
}

// Kind implements Channel.
func (s *Slack) Kind() models.ChannelKind {
	return models.KindSlack
}

// Send posts the notification to the configured channel.
func (s *Slack) Send(ctx context.Context, note models.Notification) error {
	payload := map[string]string{
		"channel": s.channel,
		"text":    Truncate(chatMessage(note, "*"), s.limit),
	}
	headers := map[string]string{"Authorization": "Bearer " + s.token}

	status, body, err := s.poster.postJSON(ctx, s.baseURL+"/chat.postMessage", headers, payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return failSend(classifyStatus(status), fmt.Errorf("slack: http %d: %s", status, snippet(body)))
	}

	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return failSend(models.ReasonUnknown, fmt.Errorf("slack: decode response: %v", err))
	}
	if !parsed.OK {
		return failSend(classifySlackError(parsed.Error), fmt.Errorf("slack: api error: %s", parsed.Error))
	}

	s.logger.Debug().Str("channel", s.channel).Msg("slack message posted")
	return nil
}

func classifySlackError(apiError string) string {
	switch apiError {
	case "invalid_auth", "not_authed", "token_revoked", "account_inactive":
		return models.ReasonAuthRejected
	case "rate_limited", "ratelimited":
		return models.ReasonRateLimited
	default:
		return models.ReasonRejected
	}
}

// normalizeSlackChannel adds the # prefix to bare channel names. IDs and
// user targets pass through untouched.
func normalizeSlackChannel(channel string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" || strings.HasPrefix(channel, "#") || strings.HasPrefix(channel, "@") {
		return channel
	}
	if strings.HasPrefix(channel, "C") || strings.HasPrefix(channel, "G") || strings.HasPrefix(channel, "D") {
		if len(channel) >= 9 && strings.ToUpper(channel) == channel {
			return channel
		}
	}
	return "#" + channel
}
