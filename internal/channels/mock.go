package channels

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/models"
)

// Scenario enumerates supported behaviours for the mock channel.
type Scenario string

const (
	ScenarioSuccess     Scenario = "success"
	ScenarioRateLimited Scenario = "rate_limited"
	ScenarioRejected    Scenario = "rejected"
	ScenarioTimeout     Scenario = "timeout"
)

// MockOption customises the mock channel at construction time.
type MockOption func(*Mock)

// WithScenario overrides the default scenario.
func WithScenario(s Scenario) MockOption {
	return func(m *Mock) {
		m.scenario = s
	}
}

// WithMockLatency sets the artificial latency inserted before responding.
func WithMockLatency(d time.Duration) MockOption {
	return func(m *Mock) {
		if d < 0 {
			d = 0
		}
		m.latency = d
	}
}

// Mock implements a deterministic channel suitable for tests and dry runs.
type Mock struct {
	logger   zerolog.Logger
	kind     models.ChannelKind
	scenario Scenario
	latency  time.Duration

	mu   sync.Mutex
	sent []models.Notification
}

// NewMock constructs a mock channel reporting the given kind.
func NewMock(kind models.ChannelKind, logger zerolog.Logger, opts ...MockOption) *Mock {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	mock := &Mock{
		logger:   componentLogger(logger, "mock"),
		kind:     kind,
		scenario: ScenarioSuccess,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mock)
		}
	}
	return mock
}

// Kind implements Channel.
func (m *Mock) Kind() models.ChannelKind {
	return m.kind
}

// Send simulates delivery according to the configured scenario.
func (m *Mock) Send(ctx context.Context, note models.Notification) error {
	select {
	case <-ctx.Done():
		return failSend(models.ReasonTimeout, ctx.Err())
	default:
	}

	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return failSend(models.ReasonTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	switch m.scenario {
	case ScenarioSuccess:
		m.record(note)
		m.logger.Debug().Str("kind", string(m.kind)).Msg("mock delivery accepted")
		return nil
	case ScenarioRateLimited:
		return failSend(models.ReasonRateLimited, fmt.Errorf("mock %s: rate limited", m.kind))
	case ScenarioRejected:
		return failSend(models.ReasonRejected, fmt.Errorf("mock %s: recipient rejected", m.kind))
	case ScenarioTimeout:
		return failSend(models.ReasonTimeout, fmt.Errorf("mock %s: deadline exceeded", m.kind))
	default:
		return failSend(models.ReasonUnknown, fmt.Errorf("mock %s: unknown scenario %q", m.kind, m.scenario))
	}
}

// Sent returns a copy of the notifications accepted so far.
func (m *Mock) Sent() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Mock) record(note models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, note)
}
