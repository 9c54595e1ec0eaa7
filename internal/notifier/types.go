package notifier

import (
	"time"

	"afkmon/internal/transport"
)

// Config controls the async delivery pipeline.
type Config struct {
	Enabled     bool
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
}

// Job is one queued remote message.
type Job struct {
	Message  transport.Message
	Category string
}

type HistoryItem struct {
	At    time.Time
	Text  string
	Error string
}

const historyLimit = 100
