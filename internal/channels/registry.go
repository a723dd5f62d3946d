package channels

import (
	"errors"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels/twilio"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

// ConfigError records a channel that was enabled but whose configuration was
// rejected. The channel stays in the registry as a skipped stub so every
// dispatch reports it instead of dropping it.
type ConfigError struct {
	Kind models.ChannelKind
	Err  error
}

// Registry holds the constructed channels in a stable dispatch order.
type Registry struct {
	channels []Channel
	errs     []ConfigError
}

// BuildOption adjusts channel construction, primarily for tests.
type BuildOption func(*buildSettings)

type buildSettings struct {
	httpClient      HTTPClient
	twilioBaseURL   string
	slackBaseURL    string
	telegramBaseURL string
}

// WithTransport injects one HTTP client into every channel that performs
// HTTP calls.
func WithTransport(client HTTPClient) BuildOption {
	return func(s *buildSettings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTwilioEndpoint overrides the Twilio API base URL.
func WithTwilioEndpoint(baseURL string) BuildOption {
	return func(s *buildSettings) {
		s.twilioBaseURL = baseURL
	}
}

// WithSlackEndpoint overrides the Slack API base URL.
func WithSlackEndpoint(baseURL string) BuildOption {
	return func(s *buildSettings) {
		s.slackBaseURL = baseURL
	}
}

// WithTelegramEndpoint overrides the Telegram API base URL.
func WithTelegramEndpoint(baseURL string) BuildOption {
	return func(s *buildSettings) {
		s.telegramBaseURL = baseURL
	}
}

// Build constructs every enabled channel from the configuration. Channels
// that are enabled but misconfigured are registered as skipped stubs and
// reported through ConfigErrors. At least one channel must be enabled.
func Build(cfg config.ChannelsConfig, logger zerolog.Logger, opts ...BuildOption) (*Registry, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	var settings buildSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	registry := &Registry{}
	add := func(kind models.ChannelKind, ch Channel, err error) {
		if err != nil {
			registry.errs = append(registry.errs, ConfigError{Kind: kind, Err: err})
			registry.channels = append(registry.channels, newSkipped(kind, err))
			logger.Warn().
				Str("channel", string(kind)).
				Err(err).
				Msg("channel configuration rejected; sends will be skipped")
			return
		}
		registry.channels = append(registry.channels, ch)
		logger.Info().
			Str("channel", string(kind)).
			Msg("channel initialised")
	}

	var twilioClient *twilio.Client
	if cfg.SMS.Enabled || cfg.Voice.Enabled || cfg.WhatsApp.Enabled {
		client, err := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, logger, settings.twilioOptions()...)
		if err != nil {
			logger.Warn().Err(err).Msg("twilio client unavailable; phone channels will be skipped")
		} else {
			twilioClient = client
		}
	}

	if cfg.SMS.Enabled {
		ch, err := NewSMS(cfg.SMS, cfg.MaxSMSLength, twilioClient, logger)
		add(models.KindSMS, ch, err)
	}
	if cfg.Voice.Enabled {
		ch, err := NewVoice(cfg.Voice, twilioClient, logger)
		add(models.KindVoice, ch, err)
	}
	if cfg.WhatsApp.Enabled {
		ch, err := NewWhatsApp(cfg.WhatsApp, twilioClient, logger)
		add(models.KindWhatsApp, ch, err)
	}
	if cfg.Slack.Enabled {
		ch, err := NewSlack(cfg.Slack, logger, settings.slackOptions()...)
		add(models.KindSlack, ch, err)
	}
	if cfg.Telegram.Enabled {
		ch, err := NewTelegram(cfg.Telegram, logger, settings.telegramOptions()...)
		add(models.KindTelegram, ch, err)
	}
	if cfg.Discord.Enabled {
		ch, err := NewDiscord(cfg.Discord, logger, WithDiscordHTTPClient(settings.httpClient))
		add(models.KindDiscord, ch, err)
	}
	if cfg.Teams.Enabled {
		ch, err := NewTeams(cfg.Teams, logger, WithTeamsHTTPClient(settings.httpClient))
		add(models.KindTeams, ch, err)
	}
	if cfg.Mattermost.Enabled {
		ch, err := NewMattermost(cfg.Mattermost, logger, WithMattermostHTTPClient(settings.httpClient))
		add(models.KindMattermost, ch, err)
	}
	if cfg.Custom.Enabled {
		ch, err := NewWebhook(cfg.Custom, logger, WithWebhookHTTPClient(settings.httpClient))
		add(models.KindWebhook, ch, err)
	}

	if len(registry.channels) == 0 {
		return nil, errors.New("channels: no channel enabled")
	}
	return registry, nil
}

// Channels returns the constructed channels in dispatch order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Kinds returns the kind of every registered channel in dispatch order.
func (r *Registry) Kinds() []models.ChannelKind {
	kinds := make([]models.ChannelKind, 0, len(r.channels))
	for _, ch := range r.channels {
		kinds = append(kinds, ch.Kind())
	}
	return kinds
}

// ConfigErrors returns the channels whose configuration was rejected.
func (r *Registry) ConfigErrors() []ConfigError {
	out := make([]ConfigError, len(r.errs))
	copy(out, r.errs)
	return out
}

func (s buildSettings) twilioOptions() []twilio.Option {
	var opts []twilio.Option
	if s.httpClient != nil {
		opts = append(opts, twilio.WithHTTPClient(s.httpClient))
	}
	if s.twilioBaseURL != "" {
		opts = append(opts, twilio.WithBaseURL(s.twilioBaseURL))
	}
	return opts
}

func (s buildSettings) slackOptions() []SlackOption {
	var opts []SlackOption
	if s.httpClient != nil {
		opts = append(opts, WithSlackHTTPClient(s.httpClient))
	}
	if s.slackBaseURL != "" {
		opts = append(opts, WithSlackBaseURL(s.slackBaseURL))
	}
	return opts
}

func (s buildSettings) telegramOptions() []TelegramOption {
	var opts []TelegramOption
	if s.httpClient != nil {
		opts = append(opts, WithTelegramHTTPClient(s.httpClient))
	}
	if s.telegramBaseURL != "" {
		opts = append(opts, WithTelegramBaseURL(s.telegramBaseURL))
	}
	return opts
}
