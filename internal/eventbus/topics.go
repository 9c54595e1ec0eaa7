package eventbus

import "time"

// Event types published by the monitor.
const (
	SessionStarted = "session.started"
	SessionEnded   = "session.ended"

	NotifySent    = "notify.sent"
	NotifyFailed  = "notify.failed"
	NotifyDropped = "notify.dropped"

	// Logged carries a LoggedEvent payload for every gated candidate.
	Logged = "event.logged"
)

// Started is the payload of SessionStarted.
type Started struct {
	RunID string
	At    time.Time
}

// Delivery is the payload of the notify.* events.
type Delivery struct {
	Channel  string        `json:"channel"`
	Category string        `json:"category,omitempty"`
	Text     string        `json:"text"`
	Took     time.Duration `json:"took"`
	Error    string        `json:"error,omitempty"`
}

// LoggedEvent is the payload of Logged.
type LoggedEvent struct {
	Category string
	Severity int
	Remote   bool
}
