// Package mailbox abstracts the mail store the engine polls. The engine sees
// sessions and opaque message IDs; everything IMAP specific stays behind the
// Client interface so tests can substitute an in-memory mailbox.
package mailbox

import (
	"context"

	"github.com/example/mailwatch/internal/models"
)

// Session is one live connection to the mailbox. Sessions are scoped to a
// single poll cycle and must not be shared across cycles.
type Session interface {
	// ListUnread returns the IDs of unread messages, newest first, capped
	// at the configured per-cycle limit.
	ListUnread(ctx context.Context) ([]string, error)
	// Fetch retrieves one full message without marking it seen.
	Fetch(ctx context.Context, id string) (*models.RawMessage, error)
	// MarkSeen flags the message as seen so later cycles skip it.
	MarkSeen(ctx context.Context, id string) error
	// Close logs out and releases the connection.
	Close() error
}

// Client opens mailbox sessions.
type Client interface {
	Connect(ctx context.Context) (Session, error)
}
