package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the notification engine.
// Everything is sourced from the environment so a deployment is fully
// described by its .env file.
type Config struct {
	App       AppConfig
	Mailbox   MailboxConfig
	Scheduler SchedulerConfig
	Dispatch  DispatchConfig
	Journal   JournalConfig
	Events    EventsConfig
	Channels  ChannelsConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
	LogFile  string
	APIAddr  string
}

// MailboxConfig defines the IMAP account that is polled for unread mail.
type MailboxConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Mailbox            string
	UseTLS             bool
	InsecureSkipVerify bool
	FilterSenders      []string
	MaxPerCycle        int
}

// SchedulerConfig controls poll cadence and failure backoff.
type SchedulerConfig struct {
	CheckIntervalSeconds int
	BaseBackoffSeconds   int
	MaxBackoffSeconds    int
}

// DispatchConfig tunes the channel fan-out for each matched message.
type DispatchConfig struct {
	Policy             string
	Concurrency        int
	SendTimeoutSeconds int
	HistorySize        int
}

// JournalConfig selects the delivery journal backend. An empty path keeps
// the journal in memory only.
type JournalConfig struct {
	Path string
}

// EventsConfig wires the optional Kafka event stream. Events always go to
// the log; a broker list adds the Kafka sink on top.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// TwilioConfig stores the Twilio account shared by the SMS, voice and
// WhatsApp channels.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// PhoneChannelConfig configures one Twilio backed channel.
type PhoneChannelConfig struct {
	Enabled    bool
	FromNumber string
	ToNumbers  []string
	MaxLength  int
}

// SlackConfig configures the Slack chat channel.
type SlackConfig struct {
	Enabled   bool
	Token     string
	Channel   string
	MaxLength int
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	MaxLength int
}

// WebhookConfig configures one webhook style channel.
type WebhookConfig struct {
	Enabled   bool
	URL       string
	MaxLength int
}

// ChannelsConfig wraps configuration for every notification channel.
type ChannelsConfig struct {
	MaxSMSLength int
	Twilio       TwilioConfig
	SMS          PhoneChannelConfig
	Voice        PhoneChannelConfig
	WhatsApp     PhoneChannelConfig
	Slack        SlackConfig
	Telegram     TelegramConfig
	Discord      WebhookConfig
	Teams        WebhookConfig
	Mattermost   WebhookConfig
	Custom       WebhookConfig
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.LogFile = ldr.getString("LOG_FILE", "", false)
	cfg.App.APIAddr = ldr.getString("API_ADDR", "", false)

	cfg.Mailbox.Host = ldr.getString("IMAP_HOST", "", true)
	cfg.Mailbox.Port = ldr.getInt("IMAP_PORT", 993, false)
	cfg.Mailbox.Username = ldr.getString("IMAP_USERNAME", "", true)
	cfg.Mailbox.Password = ldr.getString("IMAP_PASSWORD", "", true)
	cfg.Mailbox.Mailbox = ldr.getString("IMAP_MAILBOX", "INBOX", false)
	cfg.Mailbox.UseTLS = ldr.getBool("IMAP_USE_TLS", true, false)
	cfg.Mailbox.InsecureSkipVerify = ldr.getBool("IMAP_INSECURE_SKIP_VERIFY", false, false)
	cfg.Mailbox.FilterSenders = ldr.getStringSlice("FILTER_SENDERS", false)
	cfg.Mailbox.MaxPerCycle = ldr.getInt("MAX_PER_CYCLE", 5, false)

	cfg.Scheduler.CheckIntervalSeconds = ldr.getInt("CHECK_INTERVAL_SECONDS", 60, false)
	cfg.Scheduler.BaseBackoffSeconds = ldr.getInt("BASE_BACKOFF_SECONDS", 10, false)
	cfg.Scheduler.MaxBackoffSeconds = ldr.getInt("MAX_BACKOFF_SECONDS", 300, false)

	cfg.Dispatch.Policy = ldr.getString("DISPATCH_POLICY", "at-least-one-success", false)
	cfg.Dispatch.Concurrency = ldr.getInt("DISPATCH_CONCURRENCY", 4, false)
	cfg.Dispatch.SendTimeoutSeconds = ldr.getInt("SEND_TIMEOUT_SECONDS", 30, false)
	cfg.Dispatch.HistorySize = ldr.getInt("HISTORY_SIZE", 100, false)

	cfg.Journal.Path = ldr.getString("JOURNAL_PATH", "", false)

	cfg.Events.KafkaBrokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Events.KafkaTopic = ldr.getString("KAFKA_EVENTS_TOPIC", "mailwatch.events", false)

	cfg.Channels.MaxSMSLength = ldr.getInt("MAX_SMS_LENGTH", 1600, false)

	cfg.Channels.Twilio.AccountSID = ldr.getString("TWILIO_ACCOUNT_SID", "", false)
	cfg.Channels.Twilio.AuthToken = ldr.getString("TWILIO_AUTH_TOKEN", "", false)

	cfg.Channels.SMS.Enabled = ldr.getBool("SMS_ENABLED", false, false)
	cfg.Channels.SMS.FromNumber = ldr.getString("SMS_FROM_NUMBER", "", false)
	cfg.Channels.SMS.ToNumbers = ldr.getStringSlice("SMS_TO_NUMBERS", false)
	cfg.Channels.SMS.MaxLength = ldr.getInt("SMS_MAX_LENGTH", 0, false)

	cfg.Channels.Voice.Enabled = ldr.getBool("VOICE_ENABLED", false, false)
	cfg.Channels.Voice.FromNumber = ldr.getString("VOICE_FROM_NUMBER", "", false)
	cfg.Channels.Voice.ToNumbers = ldr.getStringSlice("VOICE_TO_NUMBERS", false)
	cfg.Channels.Voice.MaxLength = ldr.getInt("VOICE_MAX_LENGTH", 0, false)

	cfg.Channels.WhatsApp.Enabled = ldr.getBool("WHATSAPP_ENABLED", false, false)
	cfg.Channels.WhatsApp.FromNumber = ldr.getString("WHATSAPP_FROM_NUMBER", "", false)
	cfg.Channels.WhatsApp.ToNumbers = ldr.getStringSlice("WHATSAPP_TO_NUMBERS", false)
	cfg.Channels.WhatsApp.MaxLength = ldr.getInt("WHATSAPP_MAX_LENGTH", 0, false)

	cfg.Channels.Slack.Enabled = ldr.getBool("SLACK_ENABLED", false, false)
	cfg.Channels.Slack.Token = ldr.getString("SLACK_TOKEN", "", false)
	cfg.Channels.Slack.Channel = ldr.getString("SLACK_CHANNEL", "", false)
	cfg.Channels.Slack.MaxLength = ldr.getInt("SLACK_MAX_LENGTH", 0, false)

	cfg.Channels.Telegram.Enabled = ldr.getBool("TELEGRAM_ENABLED", false, false)
	cfg.Channels.Telegram.BotToken = ldr.getString("TELEGRAM_BOT_TOKEN", "", false)
	cfg.Channels.Telegram.ChatID = ldr.getString("TELEGRAM_CHAT_ID", "", false)
	cfg.Channels.Telegram.MaxLength = ldr.getInt("TELEGRAM_MAX_LENGTH", 0, false)

	cfg.Channels.Discord.Enabled = ldr.getBool("DISCORD_ENABLED", false, false)
	cfg.Channels.Discord.URL = ldr.getString("DISCORD_WEBHOOK_URL", "", false)
	cfg.Channels.Discord.MaxLength = ldr.getInt("DISCORD_MAX_LENGTH", 0, false)

	cfg.Channels.Teams.Enabled = ldr.getBool("TEAMS_ENABLED", false, false)
	cfg.Channels.Teams.URL = ldr.getString("TEAMS_WEBHOOK_URL", "", false)
	cfg.Channels.Teams.MaxLength = ldr.getInt("TEAMS_MAX_LENGTH", 0, false)

	cfg.Channels.Mattermost.Enabled = ldr.getBool("MATTERMOST_ENABLED", false, false)
	cfg.Channels.Mattermost.URL = ldr.getString("MATTERMOST_WEBHOOK_URL", "", false)
	cfg.Channels.Mattermost.MaxLength = ldr.getInt("MATTERMOST_MAX_LENGTH", 0, false)

	cfg.Channels.Custom.Enabled = ldr.getBool("CUSTOM_WEBHOOK_ENABLED", false, false)
	cfg.Channels.Custom.URL = ldr.getString("CUSTOM_WEBHOOK_URL", "", false)
	cfg.Channels.Custom.MaxLength = ldr.getInt("CUSTOM_WEBHOOK_MAX_LENGTH", 0, false)

	if cfg.Scheduler.CheckIntervalSeconds <= 0 {
		ldr.addError("CHECK_INTERVAL_SECONDS must be positive")
	}
	if cfg.Dispatch.Concurrency <= 0 {
		ldr.addError("DISPATCH_CONCURRENCY must be positive")
	}
	if cfg.Mailbox.MaxPerCycle <= 0 {
		ldr.addError("MAX_PER_CYCLE must be positive")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
