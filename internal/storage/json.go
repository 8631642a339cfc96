package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"releasewatch/internal/release"
	logx "releasewatch/pkg/logx"
)

// jsonStore keeps the whole log in one JSON array file.
//
// Writes go to <path>.tmp which is synced and renamed over <path>, so a crash
// leaves either the previous or the new log, never a partial one.
type jsonStore struct {
	path     string
	readOnly bool
	log      logx.Logger

	mu sync.Mutex
}

func openJSON(cfg Config, log logx.Logger) (Store, error) {
	return &jsonStore{path: cfg.Path, readOnly: cfg.ReadOnly, log: log}, nil
}

func (s *jsonStore) Close() error { return nil }

func (s *jsonStore) Load(ctx context.Context) ([]release.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("notification log not found, starting empty", logx.String("path", s.path))
		return []release.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []release.Record{}, nil
	}
	var out []release.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if out == nil {
		out = []release.Record{}
	}
	return out, nil
}

func (s *jsonStore) History(ctx context.Context) ([]Entry, error) {
	recs, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{Seq: i + 1, Record: r}
	}
	return out, nil
}

func (s *jsonStore) Save(ctx context.Context, records []release.Record) error {
	_ = ctx
	if s.readOnly {
		return fmt.Errorf("%w: %w", ErrPersist, ErrReadOnly)
	}
	if records == nil {
		records = []release.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.log.Debug("notification log saved", logx.Int("records", len(records)))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
