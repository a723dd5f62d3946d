package mailbox

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying mailbox failures. Callers use errors.Is to
// decide how much of a cycle survives: auth and network failures abort the
// cycle, a fetch failure skips one message, a mark failure is only logged.
var (
	ErrAuth    = errors.New("mailbox auth error")
	ErrNetwork = errors.New("mailbox network error")
	ErrFetch   = errors.New("mailbox fetch error")
	ErrMark    = errors.New("mailbox mark error")
)

func wrapAuth(err error) error {
	if err == nil {
		return ErrAuth
	}
	return fmt.Errorf("%w: %v", ErrAuth, err)
}

func wrapNetwork(err error) error {
	if err == nil {
		return ErrNetwork
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func wrapFetch(err error) error {
	if err == nil {
		return ErrFetch
	}
	return fmt.Errorf("%w: %v", ErrFetch, err)
}

func wrapMark(err error) error {
	if err == nil {
		return ErrMark
	}
	return fmt.Errorf("%w: %v", ErrMark, err)
}
