package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	logx "releasewatch/pkg/logx"
)

// Open initializes the configured store and takes the writer lock.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultPath
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	var lock *flock.Flock
	if !cfg.ReadOnly {
		var err error
		if lock, err = acquireLock(cfg.Path); err != nil {
			return nil, err
		}
	}

	var (
		st  Store
		err error
	)
	switch driver {
	case "", "json", "file":
		st, err = openJSON(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	default:
		err = errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		releaseLock(lock)
		return nil, err
	}
	if lock == nil {
		return st, nil
	}
	return &locked{Store: st, lock: lock}, nil
}

func acquireLock(path string) (*flock.Flock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return fl, nil
}

func releaseLock(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

type locked struct {
	Store
	lock *flock.Flock
}

func (l *locked) Close() error {
	err := l.Store.Close()
	releaseLock(l.lock)
	return err
}
