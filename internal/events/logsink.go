package events

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/models"
)

// LogSink renders events as structured log lines. Cycle summaries and mark
// failures are surfaced at higher levels; the per-message chatter stays at
// debug so a quiet mailbox produces a quiet log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a sink writing to the supplied logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

// Emit implements Sink.
func (s *LogSink) Emit(_ context.Context, event models.Event) error {
	entry := s.logger.Debug()
	switch event.Type {
	case models.EventCycleFinished:
		entry = s.logger.Info()
	case models.EventMarkSeenFailed:
		entry = s.logger.Warn()
	}

	entry = entry.Str("event", event.Type)
	if event.CycleID != "" {
		entry = entry.Str("cycle_id", event.CycleID)
	}
	if event.MessageID != "" {
		entry = entry.Str("message_id", event.MessageID)
	}
	if event.Sender != "" {
		entry = entry.Str("sender", event.Sender)
	}
	if event.Matched != nil {
		entry = entry.Bool("matched", *event.Matched)
	}
	if event.Handled != nil {
		entry = entry.Bool("handled", *event.Handled)
	}
	if event.Channel != "" {
		entry = entry.Str("channel", string(event.Channel))
	}
	if event.Result != nil {
		entry = entry.
			Str("outcome", string(event.Result.Outcome)).
			Str("reason", event.Result.Reason).
			Bool("deduped", event.Result.Deduped).
			Dur("duration", event.Result.Duration)
	}
	if event.Stats != nil {
		entry = entry.
			Uint64("seq", event.Stats.Seq).
			Int("scanned", event.Stats.Scanned).
			Int("matched", event.Stats.Matched).
			Int("dispatched", event.Stats.Dispatched).
			Int("marked", event.Stats.Marked).
			Dur("cycle_duration", event.Stats.Duration)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}

	entry.Msg("engine event")
	return nil
}
