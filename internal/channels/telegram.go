package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	telegramMessageLimit   = 4096
)

// Telegram delivers notifications through a bot's sendMessage endpoint.
type Telegram struct {
	logger  zerolog.Logger
	poster  *poster
	token   string
	chatID  string
	limit   int
	baseURL string
}

// TelegramOption customises the Telegram channel.
type TelegramOption func(*Telegram)

// WithTelegramHTTPClient injects a custom HTTP client.
func WithTelegramHTTPClient(client HTTPClient) TelegramOption {
	return func(t *Telegram) {
		if client != nil {
			t.poster = newPoster(client)
		}
	}
}

// WithTelegramBaseURL overrides the API base URL, typically for tests.
func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(t *Telegram) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			t.baseURL = trimmed
		}
	}
}

// NewTelegram validates the channel configuration and constructs the
// channel. The API's own 4096 character cap applies when no limit is set.
func NewTelegram(cfg config.TelegramConfig, logger zerolog.Logger, opts ...TelegramOption) (*Telegram, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("%w: telegram bot token", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, fmt.Errorf("%w: telegram chat id", ErrMissingConfig)
	}

	limit := cfg.MaxLength
	if limit <= 0 || limit > telegramMessageLimit {
		limit = telegramMessageLimit
	}

	telegram := &Telegram{
		logger:  componentLogger(logger, "telegram"),
		poster:  newPoster(nil),
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
		limit:   limit,
		baseURL: defaultTelegramBaseURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(telegram)
		}
	}
	return telegram, nil
}

// Kind implements Channel.
func (t *Telegram) Kind() models.ChannelKind {
	return models.KindTelegram
}

// Send posts the notification to the configured chat.
func (t *Telegram) Send(ctx context.Context, note models.Notification) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       Truncate(chatMessage(note, "*"), t.limit),
		"parse_mode": "Markdown",
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	status, body, err := t.poster.postJSON(ctx, endpoint, nil, payload)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return failSend(classifyStatus(status), fmt.Errorf("telegram: http %d: %s", status, snippet(body)))
	}

	t.logger.Debug().Str("chat_id", t.chatID).Msg("telegram message sent")
	return nil
}
