// Package channels implements every notification destination the engine can
// fan out to. Each channel turns the neutral subject/body payload into its
// own wire format; construction failures downgrade a channel to a skipped
// stub instead of blocking the rest of the fleet.
package channels

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/models"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Channel delivers one notification to a single destination kind. A nil
// return means the provider confirmed delivery. Failures are classified
// through SendError; ErrMissingConfig marks channels that never attempt the
// wire at all.
type Channel interface {
	Kind() models.ChannelKind
	Send(ctx context.Context, note models.Notification) error
}

const truncationMarker = "..."

// Truncate shortens msg to at most limit runes. The marker counts against
// the limit so the wire payload never exceeds it.
func Truncate(msg string, limit int) string {
	if limit <= 0 {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	marker := []rune(truncationMarker)
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + truncationMarker
}

// textMessage renders the single-string form used by the phone channels.
func textMessage(note models.Notification) string {
	if strings.TrimSpace(note.Body) == "" {
		return note.Subject
	}
	return note.Subject + ": " + note.Body
}

// chatMessage renders the bold-subject form used by the chat channels.
func chatMessage(note models.Notification, bold string) string {
	subject := bold + note.Subject + bold
	if strings.TrimSpace(note.Body) == "" {
		return subject
	}
	return subject + "\n" + note.Body
}

func componentLogger(logger zerolog.Logger, name string) zerolog.Logger {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return logger.With().Str("component", "channel").Str("channel", name).Logger()
}
