package storage

import (
	"context"
	"errors"
	"time"

	"releasewatch/internal/release"
)

var (
	// ErrPersist wraps every failure to write the log.
	ErrPersist = errors.New("persist notification log")
	// ErrLocked means another process holds the log.
	ErrLocked = errors.New("notification log is locked by another process")
	// ErrReadOnly is returned by Save on a store opened read-only.
	ErrReadOnly = errors.New("storage opened read-only")
)

// DefaultPath is the legacy log file name.
const DefaultPath = "lancamentos_notificados.json"

// Config configures storage.
//
// Driver values:
//   - "json" (default, alias "file")
//   - "sqlite" (alias "sqlite3")
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// ReadOnly skips the writer lock; Save fails with ErrReadOnly.
	ReadOnly bool
}

// Entry is one row of the notification history.
type Entry struct {
	Seq        int            `json:"seq"`
	Record     release.Record `json:"record"`
	NotifiedAt time.Time      `json:"notified_at,omitzero"` // zero when the driver does not track it
}

// Store is the persistence API used by the poll loop and the CLI.
type Store interface {
	// Load returns the records in notification order. A store that was never
	// written returns an empty slice.
	Load(ctx context.Context) ([]release.Record, error)
	// Save persists the full log. Errors wrap ErrPersist.
	Save(ctx context.Context, records []release.Record) error
	// History returns the records with their sequence numbers.
	History(ctx context.Context) ([]Entry, error)
	Close() error
}
