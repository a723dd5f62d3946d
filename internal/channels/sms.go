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

// SMS delivers notifications as text messages through the shared Twilio
// account. Long messages are truncated to the configured limit.
type SMS struct {
	logger zerolog.Logger
	client *twilio.Client
	from   string
	to     []string
	limit  int
}

// NewSMS validates the channel configuration and constructs the channel.
// The fallback limit applies when the channel has no limit of its own.
func NewSMS(cfg config.PhoneChannelConfig, fallbackLimit int, client *twilio.Client, logger zerolog.Logger) (*SMS, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: twilio credentials", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("%w: sms from number", ErrMissingConfig)
	}
	to, err := util.NormalizeE164List(cfg.ToNumbers)
	if err != nil {
		return nil, fmt.Errorf("%w: sms destinations (%v)", ErrMissingConfig, err)
	}

	limit := cfg.MaxLength
	if limit <= 0 {
		limit = fallbackLimit
	}

	return &SMS{
		logger: componentLogger(logger, "sms"),
		client: client,
		from:   strings.TrimSpace(cfg.FromNumber),
		to:     to,
		limit:  limit,
	}, nil
}

// Kind implements Channel.
func (s *SMS) Kind() models.ChannelKind {
	return models.KindSMS
}

// Send texts every configured destination. The first failure stops the loop
// and is reported for the whole send.
func (s *SMS) Send(ctx context.Context, note models.Notification) error {
	body := Truncate(textMessage(note), s.limit)

	for _, to := range s.to {
		result, err := s.client.SendMessage(ctx, s.from, to, body)
		if err != nil {
			return failSend(twilio.Classify(result, err), fmt.Errorf("sms to %s: %v", to, err))
		}
		s.logger.Debug().Str("to", to).Str("sid", result.SID).Msg("sms sent")
	}
	return nil
}
