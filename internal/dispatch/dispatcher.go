// Package dispatch fans a notification out to every registered channel,
// classifies the per-channel outcomes, and decides whether the message
// counts as handled. One channel failing never prevents the others from
// being attempted.
package dispatch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/mailwatch/internal/channels"
	"github.com/example/mailwatch/internal/events"
	"github.com/example/mailwatch/internal/journal"
	"github.com/example/mailwatch/internal/models"
)

const defaultSendTimeout = 30 * time.Second

// Summary aggregates the per-channel results for one dispatched message.
type Summary struct {
	MessageID string                  `json:"message_id"`
	From      string                  `json:"from"`
	Subject   string                  `json:"subject"`
	Results   []models.DispatchResult `json:"results"`
	Handled   bool                    `json:"handled"`
	Sent      int                     `json:"sent"`
	Failed    int                     `json:"failed"`
	Skipped   int                     `json:"skipped"`
	Deduped   int                     `json:"deduped"`
	At        time.Time               `json:"at"`
}

// Config contains the dispatcher tuning knobs.
type Config struct {
	Policy      Policy
	Concurrency int
	SendTimeout time.Duration
}

// Dependencies collects the dispatcher's collaborators. Channels and Journal
// are required; Events and History may be nil.
type Dependencies struct {
	Channels []channels.Channel
	Journal  journal.Journal
	Events   events.Sink
	History  *History
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Dispatcher sends notifications over a fixed set of channels with bounded
// concurrency and records every terminal outcome in the journal.
type Dispatcher struct {
	policy      Policy
	sendTimeout time.Duration
	channels    []channels.Channel
	journal     journal.Journal
	events      events.Sink
	history     *History
	logger      zerolog.Logger

	semaphore *semaphore.Weighted

	now func() time.Time
}

// New constructs a dispatcher using the supplied configuration and
// collaborators.
func New(cfg Config, deps Dependencies) (*Dispatcher, error) {
	if len(deps.Channels) == 0 {
		return nil, errors.New("dispatch: at least one channel is required")
	}
	if deps.Journal == nil {
		return nil, errors.New("dispatch: journal dependency is required")
	}
	if cfg.Concurrency < 1 {
		return nil, errors.New("dispatch: concurrency must be >= 1")
	}

	policy := cfg.Policy
	if policy == "" {
		policy = PolicyAtLeastOne
	}

	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "dispatcher").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Dispatcher{
		policy:      policy,
		sendTimeout: sendTimeout,
		channels:    deps.Channels,
		journal:     deps.Journal,
		events:      deps.Events,
		history:     deps.History,
		logger:      logger,
		semaphore:   semaphore.NewWeighted(int64(cfg.Concurrency)),
		now:         nowFunc,
	}, nil
}

// Policy returns the handled-decision policy in effect.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// Dispatch fans the notification out to every channel and aggregates the
// results. The caller's context gates starting new work; sends that already
// hold a slot run to their own timeout even when the caller is stopping, so
// a shutdown never strands a half-delivered message.
func (d *Dispatcher) Dispatch(ctx context.Context, note models.Notification) Summary {
	results := make([]models.DispatchResult, len(d.channels))
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		if outcome, ok := d.journal.Lookup(note.MessageID, ch.Kind()); ok && outcome == models.OutcomeSent {
			results[i] = models.DispatchResult{
				MessageID: note.MessageID,
				Channel:   ch.Kind(),
				Outcome:   models.OutcomeSent,
				Deduped:   true,
				At:        d.now(),
			}
			d.logger.Debug().
				Str("message_id", note.MessageID).
				Str("channel", string(ch.Kind())).
				Msg("dispatcher: channel already delivered; skipping send")
			continue
		}

		if err := d.semaphore.Acquire(base, 1); err != nil {
			results[i] = models.DispatchResult{
				MessageID: note.MessageID,
				Channel:   ch.Kind(),
				Outcome:   models.OutcomeFailed,
				Reason:    models.ReasonUnknown,
				Detail:    err.Error(),
				At:        d.now(),
			}
			continue
		}

		wg.Add(1)
		go func(i int, ch channels.Channel) {
			defer wg.Done()
			defer d.semaphore.Release(1)
			results[i] = d.send(base, ch, note)
		}(i, ch)
	}
	wg.Wait()

	summary := Summary{
		MessageID: note.MessageID,
		From:      note.From,
		Subject:   note.Subject,
		Results:   results,
		Handled:   d.policy.Handled(results),
		At:        d.now(),
	}
	for _, result := range results {
		switch result.Outcome {
		case models.OutcomeSent:
			summary.Sent++
		case models.OutcomeSkipped:
			summary.Skipped++
		case models.OutcomeFailed:
			summary.Failed++
		}
		if result.Deduped {
			summary.Deduped++
			continue
		}
		d.recordOutcome(result)
		d.emitResult(ctx, result)
	}

	if d.history != nil {
		d.history.Add(summary)
	}

	d.logger.Info().
		Str("message_id", note.MessageID).
		Str("policy", string(d.policy)).
		Bool("handled", summary.Handled).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("deduped", summary.Deduped).
		Msg("dispatcher: message dispatched")

	return summary
}

func (d *Dispatcher) send(ctx context.Context, ch channels.Channel, note models.Notification) models.DispatchResult {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := d.now()
	err := ch.Send(sendCtx, note)
	duration := d.now().Sub(start)

	result := models.DispatchResult{
		MessageID: note.MessageID,
		Channel:   ch.Kind(),
		Duration:  duration,
		At:        d.now(),
	}

	switch {
	case err == nil:
		result.Outcome = models.OutcomeSent
	case errors.Is(err, channels.ErrMissingConfig):
		result.Outcome = models.OutcomeSkipped
		result.Reason = models.ReasonMissingConfig
		result.Detail = err.Error()
	default:
		result.Outcome = models.OutcomeFailed
		result.Reason = channels.Reason(err)
		result.Detail = err.Error()
	}

	if result.Outcome == models.OutcomeFailed {
		d.logger.Warn().
			Str("message_id", note.MessageID).
			Str("channel", string(ch.Kind())).
			Str("reason", result.Reason).
			Dur("duration", duration).
			Err(err).
			Msg("dispatcher: channel send failed")
	} else {
		d.logger.Debug().
			Str("message_id", note.MessageID).
			Str("channel", string(ch.Kind())).
			Str("outcome", string(result.Outcome)).
			Dur("duration", duration).
			Msg("dispatcher: channel send finished")
	}

	return result
}

func (d *Dispatcher) recordOutcome(result models.DispatchResult) {
	err := d.journal.Record(journal.Entry{
		MessageID: result.MessageID,
		Channel:   result.Channel,
		Outcome:   result.Outcome,
		Reason:    result.Reason,
		At:        result.At,
	})
	if err != nil {
		d.logger.Error().
			Str("message_id", result.MessageID).
			Str("channel", string(result.Channel)).
			Err(err).
			Msg("dispatcher: failed to record journal entry")
	}
}

func (d *Dispatcher) emitResult(ctx context.Context, result models.DispatchResult) {
	if d.events == nil {
		return
	}
	event := models.Event{
		Type:      models.EventChannelResult,
		MessageID: result.MessageID,
		Channel:   result.Channel,
		Result:    &result,
		Timestamp: d.now(),
	}
	if err := d.events.Emit(ctx, event); err != nil {
		d.logger.Error().
			Str("message_id", result.MessageID).
			Str("channel", string(result.Channel)).
			Err(err).
			Msg("dispatcher: failed to emit channel result event")
	}
}
