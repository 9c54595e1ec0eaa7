package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SessionRecord is one finished Deployed period.
type SessionRecord struct {
	RunID    string    `json:"run_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Kills    int       `json:"kills"`
	Bounties int64     `json:"bounties"`
	Merits   int64     `json:"merits,omitempty"`
	KillType string    `json:"kill_type"`
	// KillsSeconds is the time spanned between the first and last kill.
	KillsSeconds int64 `json:"kills_seconds"`
}

// Delivery is the outcome of one remote send.
type Delivery struct {
	At       time.Time `json:"at"`
	RunID    string    `json:"run_id"`
	Channel  string    `json:"channel"`
	Category string    `json:"category,omitempty"`
	Text     string    `json:"text"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}
