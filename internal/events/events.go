// Package events publishes engine lifecycle events to pluggable sinks. The
// scheduler and dispatcher emit one event per notable step of a poll cycle;
// sinks decide whether that becomes a log line, a Kafka record, or both.
package events

import (
	"context"
	"errors"

	"github.com/example/mailwatch/internal/models"
)

// Sink consumes engine events. Implementations must be safe for concurrent
// use; the dispatcher emits channel results from multiple goroutines.
type Sink interface {
	Emit(ctx context.Context, event models.Event) error
}

// Multi fans every event out to all sinks. A failing sink never blocks the
// others; errors are joined and reported together.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, event models.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
