package storage

import (
	"context"
	"errors"
	"strings"

	logx "afkmon/pkg/logx"
)

// Store is the persistence API used by the monitor.
type Store interface {
	RecordSession(ctx context.Context, r SessionRecord) error
	AppendDelivery(ctx context.Context, d Delivery) error
	// Sessions returns the newest sessions first, at most limit (0 = all).
	Sessions(ctx context.Context, limit int) ([]SessionRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
