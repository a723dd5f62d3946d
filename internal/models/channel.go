package models

import "time"

// ChannelKind identifies one notification channel implementation.
type ChannelKind string

const (
	KindSMS        ChannelKind = "sms"
	KindVoice      ChannelKind = "voice"
	KindWhatsApp   ChannelKind = "whatsapp"
	KindSlack      ChannelKind = "slack"
	KindTelegram   ChannelKind = "telegram"
	KindDiscord    ChannelKind = "discord"
	KindTeams      ChannelKind = "teams"
	KindMattermost ChannelKind = "mattermost"
	KindWebhook    ChannelKind = "webhook"
)

// AllKinds lists every supported channel kind in registry order.
func AllKinds() []ChannelKind {
	return []ChannelKind{
		KindSMS,
		KindVoice,
		KindWhatsApp,
		KindSlack,
		KindTelegram,
		KindDiscord,
		KindTeams,
		KindMattermost,
		KindWebhook,
	}
}

// Outcome is the terminal state of one channel send.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Reason codes attached to skipped and failed dispatch results.
const (
	ReasonAuthRejected  = "auth_rejected"
	ReasonRateLimited   = "rate_limited"
	ReasonNetwork       = "network_error"
	ReasonRejected      = "rejected"
	ReasonTimeout       = "timeout"
	ReasonMissingConfig = "missing_config"
	ReasonUnknown       = "unknown"
)

// DispatchResult records the terminal outcome of one channel send for one
// message. Deduped marks results synthesised from an earlier success in the
// delivery journal; no provider call happened for those.
type DispatchResult struct {
	MessageID string        `json:"message_id"`
	Channel   ChannelKind   `json:"channel"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Deduped   bool          `json:"deduped,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}
