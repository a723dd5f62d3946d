// Package scheduler drives the poll loop: connect to the mailbox, scan for
// unread messages, dispatch the ones that pass the sender filter, mark the
// handled ones seen, sleep, repeat. Cycles are strictly serialized; a slow
// cycle delays the next one rather than overlapping it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/dispatch"
	"github.com/example/mailwatch/internal/events"
	"github.com/example/mailwatch/internal/filter"
	"github.com/example/mailwatch/internal/mailbox"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/normalize"
)

// State describes what the engine is doing right now.
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateDispatching State = "dispatching"
	StateStopping    State = "stopping"
	StateStopped     State = "stopped"
)

// Config contains the scheduler timing knobs.
type Config struct {
	Interval    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Dispatcher fans one notification out to the registered channels and
// reports whether the message counts as handled.
type Dispatcher interface {
	Dispatch(ctx context.Context, note models.Notification) dispatch.Summary
}

// Dependencies collects the scheduler's collaborators. Mailbox and
// Dispatcher are required; Events may be nil.
type Dependencies struct {
	Mailbox    mailbox.Client
	Filter     filter.Set
	Dispatcher Dispatcher
	Events     events.Sink
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Engine runs poll cycles until its context is cancelled.
type Engine struct {
	cfg        Config
	mailbox    mailbox.Client
	filter     filter.Set
	dispatcher Dispatcher
	events     events.Sink
	logger     zerolog.Logger

	state atomic.Value
	seq   atomic.Uint64

	lastMu    sync.RWMutex
	lastCycle *models.CycleStats

	now func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// New constructs a scheduler engine using the supplied configuration and
// collaborators.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("scheduler: check interval must be positive")
	}
	if deps.Mailbox == nil {
		return nil, errors.New("scheduler: mailbox dependency is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("scheduler: dispatcher dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "scheduler").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	eng := &Engine{
		cfg:        cfg,
		mailbox:    deps.Mailbox,
		filter:     deps.Filter,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		logger:     logger,
		now:        nowFunc,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	eng.state.Store(StateIdle)
	return eng, nil
}

// State reports the engine's current phase.
func (e *Engine) State() State {
	if state, ok := e.state.Load().(State); ok {
		return state
	}
	return StateIdle
}

// LastCycle returns the stats of the most recently finished cycle.
func (e *Engine) LastCycle() (models.CycleStats, bool) {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	if e.lastCycle == nil {
		return models.CycleStats{}, false
	}
	return *e.lastCycle, true
}

// Run executes the poll loop until ctx is cancelled. The startup connection
// check runs first so credential mistakes surface immediately instead of on
// the first scheduled cycle.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.verifyStartup(ctx); err != nil {
		e.setState(StateStopped)
		return err
	}

	e.logger.Info().
		Dur("interval", e.cfg.Interval).
		Strs("filter", e.filter.Rules()).
		Msg("scheduler: poll loop started")

	failures := 0
	for {
		if ctx.Err() != nil {
			e.setState(StateStopping)
			break
		}

		stats := e.runCycle(ctx)
		if stats.Error != "" {
			failures++
		} else {
			failures = 0
		}

		if ctx.Err() != nil {
			e.setState(StateStopping)
			break
		}

		delay := e.cfg.Interval
		if failures > 0 {
			delay = e.computeBackoff(failures)
			e.logger.Warn().
				Int("consecutive_failures", failures).
				Dur("delay", delay).
				Msg("scheduler: backing off after failed cycle")
		}

		e.setState(StateIdle)
		if !e.wait(ctx, delay) {
			e.setState(StateStopping)
			break
		}
	}

	e.setState(StateStopped)
	e.logger.Info().Msg("scheduler: poll loop stopped")
	return nil
}

// verifyStartup opens and closes one session before the loop begins. Only
// authentication failures are fatal; anything transient is left for the
// scheduled cycles to retry.
func (e *Engine) verifyStartup(ctx context.Context) error {
	session, err := e.mailbox.Connect(ctx)
	if err != nil {
		if errors.Is(err, mailbox.ErrAuth) {
			return fmt.Errorf("scheduler: startup check: %w", err)
		}
		e.logger.Warn().Err(err).Msg("scheduler: startup check failed; will retry on schedule")
		return nil
	}
	if err := session.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("scheduler: closing startup session")
	}
	e.logger.Info().Msg("scheduler: mailbox connection verified")
	return nil
}

func (e *Engine) runCycle(ctx context.Context) models.CycleStats {
	stats := models.CycleStats{
		CycleID:   uuid.NewString(),
		Seq:       e.seq.Add(1),
		StartedAt: e.now(),
	}
	e.setState(StateScanning)
	e.emit(ctx, models.Event{
		Type:      models.EventCycleStarted,
		CycleID:   stats.CycleID,
		Timestamp: stats.StartedAt,
	})

	logger := e.logger.With().
		Str("cycle_id", stats.CycleID).
		Uint64("seq", stats.Seq).
		Logger()

	finish := func(err error) models.CycleStats {
		if err != nil {
			stats.Error = err.Error()
		}
		stats.Duration = e.now().Sub(stats.StartedAt)
		e.storeLastCycle(stats)
		e.emit(ctx, models.Event{
			Type:      models.EventCycleFinished,
			CycleID:   stats.CycleID,
			Stats:     &stats,
			Error:     stats.Error,
			Timestamp: e.now(),
		})
		if err != nil {
			logger.Error().
				Err(err).
				Dur("duration", stats.Duration).
				Msg("scheduler: cycle aborted")
		} else {
			logger.Debug().
				Int("scanned", stats.Scanned).
				Int("matched", stats.Matched).
				Int("marked", stats.Marked).
				Dur("duration", stats.Duration).
				Msg("scheduler: cycle finished")
		}
		return stats
	}

	session, err := e.mailbox.Connect(ctx)
	if err != nil {
		return finish(fmt.Errorf("connect: %w", err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("scheduler: closing mailbox session")
		}
	}()

	ids, err := session.ListUnread(ctx)
	if err != nil {
		return finish(fmt.Errorf("list unread: %w", err))
	}
	stats.Scanned = len(ids)
	if len(ids) == 0 {
		return finish(nil)
	}
	logger.Info().Int("unread", len(ids)).Msg("scheduler: unread messages found")

	for _, id := range ids {
		if ctx.Err() != nil {
			e.setState(StateStopping)
			logger.Info().Msg("scheduler: stop requested; leaving remaining messages unread")
			break
		}

		raw, err := session.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, mailbox.ErrFetch) {
				logger.Warn().
					Str("message_id", id).
					Err(err).
					Msg("scheduler: skipping unreadable message")
				continue
			}
			return finish(fmt.Errorf("fetch %s: %w", id, err))
		}

		matched := e.filter.Match(raw.From)
		e.emit(ctx, models.Event{
			Type:      models.EventMessageFiltered,
			CycleID:   stats.CycleID,
			MessageID: id,
			Sender:    raw.From,
			Matched:   &matched,
			Timestamp: e.now(),
		})
		if !matched {
			logger.Debug().
				Str("message_id", id).
				Str("sender", raw.From).
				Msg("scheduler: sender not in filter; message left unread")
			continue
		}
		stats.Matched++

		note := normalize.Extract(raw)

		e.setState(StateDispatching)
		summary := e.dispatcher.Dispatch(ctx, note)
		e.setState(StateScanning)
		stats.Dispatched++

		handled := summary.Handled
		e.emit(ctx, models.Event{
			Type:      models.EventMessageDispatched,
			CycleID:   stats.CycleID,
			MessageID: id,
			Sender:    raw.From,
			Handled:   &handled,
			Timestamp: e.now(),
		})
		if !handled {
			logger.Warn().
				Str("message_id", id).
				Int("sent", summary.Sent).
				Int("failed", summary.Failed).
				Int("skipped", summary.Skipped).
				Msg("scheduler: message not handled; left unread for retry")
			continue
		}

		// The mark must land even when a stop arrived during dispatch;
		// otherwise the next run re-delivers a handled message.
		if err := session.MarkSeen(context.WithoutCancel(ctx), id); err != nil {
			logger.Error().
				Str("message_id", id).
				Err(err).
				Msg("scheduler: failed to mark message seen; duplicates possible next cycle")
			e.emit(ctx, models.Event{
				Type:      models.EventMarkSeenFailed,
				CycleID:   stats.CycleID,
				MessageID: id,
				Error:     err.Error(),
				Timestamp: e.now(),
			})
			continue
		}
		stats.Marked++
	}

	return finish(nil)
}

func (e *Engine) setState(state State) {
	e.state.Store(state)
}

func (e *Engine) storeLastCycle(stats models.CycleStats) {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	e.lastCycle = &stats
}

func (e *Engine) emit(ctx context.Context, event models.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(ctx, event); err != nil {
		e.logger.Error().
			Str("event", event.Type).
			Err(err).
			Msg("scheduler: failed to emit event")
	}
}

func (e *Engine) computeBackoff(failures int) time.Duration {
	if e.cfg.BaseBackoff <= 0 {
		return e.cfg.Interval
	}

	multiplier := math.Pow(2, float64(failures-1))
	raw := time.Duration(float64(e.cfg.BaseBackoff) * multiplier)
	if e.cfg.MaxBackoff > 0 && raw > e.cfg.MaxBackoff {
		raw = e.cfg.MaxBackoff
	}

	return e.fullJitter(raw)
}

func (e *Engine) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	n := e.rnd.Int63n(int64(max) + 1)
	return time.Duration(n)
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
