package models

import "time"

// RawMessage is one mail message pulled from the mailbox before any
// normalisation. ID is opaque to callers; the IMAP client uses the message
// UID, which is stable for the lifetime of a session.
type RawMessage struct {
	ID         string
	From       string
	Subject    string
	Raw        []byte
	ReceivedAt time.Time
}

// Notification is the channel-agnostic payload produced from a matched
// message. Channels decide how subject and body are combined, decorated and
// truncated for their wire format.
type Notification struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}
