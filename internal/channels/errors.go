package channels

import (
	"context"
	"errors"

	"github.com/example/mailwatch/internal/models"
)

// ErrMissingConfig marks a channel that was enabled without its required
// settings. Sends on such a channel are skipped, never attempted.
var ErrMissingConfig = errors.New("channel config incomplete")

// SendError carries the reason classification for a failed send.
type SendError struct {
	ReasonCode string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return e.ReasonCode
	}
	return e.ReasonCode + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func failSend(reason string, err error) error {
	return &SendError{ReasonCode: reason, Err: err}
}

// Reason extracts the failure reason code from a send error. Errors without
// a classification degrade to timeouts or unknown.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.ReasonCode
	}
	if errors.Is(err, ErrMissingConfig) {
		return models.ReasonMissingConfig
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ReasonTimeout
	}
	return models.ReasonUnknown
}
