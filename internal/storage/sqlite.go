package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"releasewatch/internal/release"
	logx "releasewatch/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db       *sql.DB
	log      logx.Logger
	readOnly bool

	mu    sync.Mutex
	known map[string]struct{}
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log, readOnly: cfg.ReadOnly}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) History(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, link, title, artist, notified_at FROM notified ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.Seq, &e.Record.Link, &e.Record.Title, &e.Record.Artist, &at); err != nil {
			return nil, err
		}
		e.NotifiedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Load(ctx context.Context) ([]release.Record, error) {
	entries, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]release.Record, len(entries))
	known := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		out[i] = e.Record
		known[e.Record.Link] = struct{}{}
	}
	s.mu.Lock()
	s.known = known
	s.mu.Unlock()
	return out, nil
}

// Save inserts the records not yet in the table, in order, inside one
// transaction. Rows already present are left as they are.
func (s *sqliteStore) Save(ctx context.Context, records []release.Record) error {
	if s.readOnly {
		return fmt.Errorf("%w: %w", ErrPersist, ErrReadOnly)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known == nil {
		s.known = map[string]struct{}{}
	}

	var fresh []release.Record
	for _, r := range records {
		if r.Link == "" {
			continue
		}
		if _, ok := s.known[r.Link]; !ok {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.insert(ctx, fresh); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	for _, r := range fresh {
		s.known[r.Link] = struct{}{}
	}
	s.log.Debug("notification log saved", logx.Int("inserted", len(fresh)))
	return nil
}

func (s *sqliteStore) insert(ctx context.Context, recs []release.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notified(link, title, artist, notified_at) VALUES(?,?,?,?)
		 ON CONFLICT(link) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, r.Link, r.Title, r.Artist, now); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
