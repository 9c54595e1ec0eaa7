// Package storage persists finished sessions and notification deliveries.
//
// Two drivers exist:
//   - "file": JSON Lines files next to the configured path
//   - "sqlite": a single SQLite database (pure Go driver)
//
// Storage is optional; Open returns a nil Store when it is disabled.
package storage
