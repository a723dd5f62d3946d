package dispatch

import (
	"fmt"
	"strings"

	"github.com/example/mailwatch/internal/models"
)

// Policy decides when a message counts as handled, which is what gates
// marking it seen in the mailbox.
type Policy string

const (
	// PolicyAtLeastOne treats a message as handled once any channel
	// accepted it.
	PolicyAtLeastOne Policy = "at-least-one-success"
	// PolicyBestEffort treats every dispatched message as handled,
	// regardless of channel outcomes.
	PolicyBestEffort Policy = "best-effort"
	// PolicyRequireAll treats a message as handled only when every
	// registered channel accepted it.
	PolicyRequireAll Policy = "require-all"
)

// ParsePolicy normalises a configured policy name. An empty value selects
// PolicyAtLeastOne.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyAtLeastOne:
		return PolicyAtLeastOne, nil
	case PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyRequireAll:
		return PolicyRequireAll, nil
	default:
		return "", fmt.Errorf("dispatch: unknown policy %q", raw)
	}
}

// Handled applies the policy to a set of per-channel results. Deduplicated
// results count as successes; they represent deliveries that already
// happened.
func (p Policy) Handled(results []models.DispatchResult) bool {
	if len(results) == 0 {
		return false
	}
	switch p {
	case PolicyBestEffort:
		return true
	case PolicyRequireAll:
		for _, result := range results {
			if result.Outcome != models.OutcomeSent {
				return false
			}
		}
		return true
	default:
		for _, result := range results {
			if result.Outcome == models.OutcomeSent {
				return true
			}
		}
		return false
	}
}
