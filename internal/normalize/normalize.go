// Package normalize turns raw RFC 5322 messages into the channel-agnostic
// notification payload. Parsing is forgiving throughout: header or body
// damage degrades to raw or empty values and never aborts a poll cycle.
package normalize

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/util"
)

const (
	missingSubject = "(no subject)"
	maxPartBytes   = 1 << 20
)

// ParseMessage builds a RawMessage from the full source of one mail message.
// The fallback time is used when the Date header is absent or unreadable.
func ParseMessage(id string, raw []byte, fallback time.Time) *models.RawMessage {
	msg := &models.RawMessage{ID: id, Raw: cloneBytes(raw), ReceivedAt: fallback}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return msg
	}
	if entity == nil {
		return msg
	}

	header := gomail.Header{Header: entity.Header}

	if subject, err := header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(entity.Header.Get("Subject"))
	}

	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = strings.ToLower(strings.TrimSpace(addrs[0].Address))
	} else {
		msg.From = fallbackAddress(entity.Header.Get("From"))
	}

	if date, err := header.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date
	}

	return msg
}

// Extract produces the notification for a message. The first text/plain part
// that is not an attachment wins; HTML-only messages are stripped to text;
// anything unreadable yields an empty body.
func Extract(msg *models.RawMessage) models.Notification {
	note := models.Notification{
		MessageID:  msg.ID,
		From:       msg.From,
		Subject:    msg.Subject,
		ReceivedAt: msg.ReceivedAt,
	}
	if note.Subject == "" {
		note.Subject = missingSubject
	}
	note.Body = extractBody(msg.Raw)
	return note
}

func extractBody(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return ""
	}
	if entity == nil {
		return ""
	}

	var plain, html string
	walk(entity, &plain, &html)

	if trimmed := strings.TrimSpace(plain); trimmed != "" {
		return trimmed
	}
	if html != "" {
		return htmlToText(html)
	}
	return ""
}

func walk(entity *message.Entity, plain, html *string) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				return
			}
			walk(part, plain, html)
			if *plain != "" {
				return
			}
		}
	}

	if isAttachment(entity.Header) {
		return
	}

	mediaType, _, err := entity.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	switch {
	case strings.EqualFold(mediaType, "text/plain") && *plain == "":
		*plain = readPart(entity.Body)
	case strings.EqualFold(mediaType, "text/html") && *html == "":
		*html = readPart(entity.Body)
	}
}

func isAttachment(header message.Header) bool {
	disposition, _, err := header.ContentDisposition()
	if err != nil {
		return false
	}
	return strings.EqualFold(disposition, "attachment")
}

func readPart(r io.Reader) string {
	if r == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

func fallbackAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if normalized, err := util.NormalizeEmail(raw); err == nil {
		return normalized
	}
	if start := strings.LastIndex(raw, "<"); start >= 0 {
		if end := strings.Index(raw[start:], ">"); end > 1 {
			return strings.ToLower(strings.TrimSpace(raw[start+1 : start+end]))
		}
	}
	return strings.ToLower(raw)
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
