package models

import "time"

// Engine event types emitted to the configured sinks.
const (
	EventCycleStarted      = "cycle_started"
	EventCycleFinished     = "cycle_finished"
	EventMessageFiltered   = "message_filtered"
	EventMessageDispatched = "message_dispatched"
	EventChannelResult     = "channel_result"
	EventMarkSeenFailed    = "mark_seen_failed"
)

// CycleStats summarises one poll cycle for the status API and cycle events.
type CycleStats struct {
	CycleID    string        `json:"cycle_id"`
	Seq        uint64        `json:"seq"`
	Scanned    int           `json:"scanned"`
	Matched    int           `json:"matched"`
	Dispatched int           `json:"dispatched"`
	Marked     int           `json:"marked"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
}

// Event is the structured record the engine emits for every notable step of
// a poll cycle. Only the fields relevant to the event type are populated.
type Event struct {
	Type      string          `json:"type"`
	CycleID   string          `json:"cycle_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Matched   *bool           `json:"matched,omitempty"`
	Handled   *bool           `json:"handled,omitempty"`
	Channel   ChannelKind     `json:"channel,omitempty"`
	Result    *DispatchResult `json:"result,omitempty"`
	Stats     *CycleStats     `json:"stats,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
