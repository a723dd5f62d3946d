package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels/twilio"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

const whatsappPrefix = "whatsapp:"

// WhatsApp delivers notifications through Twilio's WhatsApp messaging API.
// Addresses are plain E.164 numbers in configuration; the wire prefix is
// added here.
type WhatsApp struct {
	logger zerolog.Logger
	client *twilio.Client
	from   string
	to     []string
	limit  int
}

// NewWhatsApp validates the channel configuration and constructs the channel.
func NewWhatsApp(cfg config.PhoneChannelConfig, client *twilio.Client, logger zerolog.Logger) (*WhatsApp, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: twilio credentials", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("%w: whatsapp from number", ErrMissingConfig)
	}
	to, err := util.NormalizeE164List(stripWhatsAppPrefixes(cfg.ToNumbers))
	if err != nil {
		return nil, fmt.Errorf("%w: whatsapp destinations (%v)", ErrMissingConfig, err)
	}

	return &WhatsApp{
		logger: componentLogger(logger, "whatsapp"),
		client: client,
		from:   formatWhatsAppAddress(cfg.FromNumber),
		to:     to,
		limit:  cfg.MaxLength,
	}, nil
}

// Kind implements Channel.
func (w *WhatsApp) Kind() models.ChannelKind {
	return models.KindWhatsApp
}

// Send messages every configured destination in turn.
func (w *WhatsApp) Send(ctx context.Context, note models.Notification) error {
	body := Truncate(textMessage(note), w.limit)

	for _, to := range w.to {
		result, err := w.client.SendMessage(ctx, w.from, formatWhatsAppAddress(to), body)
		if err != nil {
			return failSend(twilio.Classify(result, err), fmt.Errorf("whatsapp to %s: %v", to, err))
		}
		w.logger.Debug().Str("to", to).Str("sid", result.SID).Msg("whatsapp message sent")
	}
	return nil
}

func formatWhatsAppAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return number
	}
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

func stripWhatsAppPrefixes(numbers []string) []string {
	out := make([]string, 0, len(numbers))
	for _, number := range numbers {
		out = append(out, strings.TrimPrefix(strings.TrimSpace(number), whatsappPrefix))
	}
	return out
}
