package channels

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels/twilio"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

// Voice places a call through the shared Twilio account and reads the
// notification aloud via inline TwiML.
type Voice struct {
	logger zerolog.Logger
	client *twilio.Client
	from   string
	to     []string
	limit  int
}

// NewVoice validates the channel configuration and constructs the channel.
func NewVoice(cfg config.PhoneChannelConfig, client *twilio.Client, logger zerolog.Logger) (*Voice, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: twilio credentials", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("%w: voice from number", ErrMissingConfig)
	}
	to, err := util.NormalizeE164List(cfg.ToNumbers)
	if err != nil {
		return nil, fmt.Errorf("%w: voice destinations (%v)", ErrMissingConfig, err)
	}

	return &Voice{
		logger: componentLogger(logger, "voice"),
		client: client,
		from:   strings.TrimSpace(cfg.FromNumber),
		to:     to,
		limit:  cfg.MaxLength,
	}, nil
}

// Kind implements Channel.
func (v *Voice) Kind() models.ChannelKind {
	return models.KindVoice
}

// Send calls every configured destination in turn.
func (v *Voice) Send(ctx context.Context, note models.Notification) error {
	message := Truncate(textMessage(note), v.limit)
	twiml := fmt.Sprintf("<Response><Say>%s</Say></Response>", xmlEscape(message))

	for _, to := range v.to {
		result, err := v.client.PlaceCall(ctx, v.from, to, twiml)
		if err != nil {
			return failSend(twilio.Classify(result, err), fmt.Errorf("voice call to %s: %v", to, err))
		}
		v.logger.Debug().Str("to", to).Str("sid", result.SID).Msg("voice call placed")
	}
	return nil
}

func xmlEscape(s string) string {
	var buf strings.Builder
	// EscapeText only fails on writer errors, which a Builder never returns
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
