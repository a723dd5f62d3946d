package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/mailwatch/internal/models"
)

// skipped stands in for a channel whose configuration was rejected. Every
// send reports the original problem so each dispatch records the channel as
// skipped instead of silently dropping it.
type skipped struct {
	kind models.ChannelKind
	err  error
}

func newSkipped(kind models.ChannelKind, err error) *skipped {
	if err == nil {
		err = fmt.Errorf("%w: %s configuration rejected", ErrMissingConfig, kind)
	}
	if !errors.Is(err, ErrMissingConfig) {
		err = fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}
	return &skipped{kind: kind, err: err}
}

func (s *skipped) Kind() models.ChannelKind {
	return s.kind
}

func (s *skipped) Send(context.Context, models.Notification) error {
	return s.err
}
