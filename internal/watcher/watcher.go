// Package watcher runs the poll loop: fetch the listing page, extract the
// releases, keep the ones not yet notified and dispatch them.
package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"releasewatch/internal/dispatch"
	"releasewatch/internal/extract"
	"releasewatch/internal/release"
	logx "releasewatch/pkg/logx"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type Extractor interface {
	Extract(r io.Reader) (extract.Result, error)
}

// Loader reads the persisted notification log.
type Loader interface {
	Load(ctx context.Context) ([]release.Record, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, log *release.Log, newestFirst []release.Release) dispatch.Report
}

type Deps struct {
	Fetcher    Fetcher
	Extractor  Extractor
	Loader     Loader
	Dispatcher Dispatcher
	Log        logx.Logger

	// OnCycle, if set, is called after every cycle from the loop goroutine.
	OnCycle func(CycleResult)
}

type Config struct {
	Schedule cron.Schedule
	// RunOnStart runs the first cycle immediately instead of waiting for the
	// first scheduled time.
	RunOnStart bool
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Started     time.Time       `json:"started"`
	Duration    time.Duration   `json:"duration"`
	Entries     int             `json:"entries"`
	Extracted   int             `json:"extracted"`
	Diagnostics int             `json:"diagnostics"`
	New         int             `json:"new"`
	Report      dispatch.Report `json:"report"`
	LogSize     int             `json:"log_size"`
	Err         string          `json:"error,omitempty"`
}

type Watcher struct {
	deps Deps
	cfg  Config
	log  logx.Logger

	// notified is owned by the loop goroutine.
	notified *release.Log

	mu   sync.Mutex
	last *CycleResult
	next time.Time
}

func New(deps Deps, cfg Config) (*Watcher, error) {
	if deps.Fetcher == nil || deps.Extractor == nil || deps.Loader == nil || deps.Dispatcher == nil {
		return nil, errors.New("watcher: fetcher, extractor, loader and dispatcher are required")
	}
	if cfg.Schedule == nil {
		cfg.Schedule = cron.Every(10 * time.Minute)
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{deps: deps, cfg: cfg, log: log.With(logx.String("comp", "watcher"))}, nil
}

// Load reads the notification log from storage. It is called once; later
// calls are no-ops.
func (w *Watcher) Load(ctx context.Context) error {
	if w.notified != nil {
		return nil
	}
	recs, err := w.deps.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load notification log: %w", err)
	}
	w.notified = release.NewLog(recs)
	w.log.Info("notification log loaded", logx.Int("records", w.notified.Len()))
	return nil
}

// RunOnce performs a single FETCH → EXTRACT → FILTER → DISPATCH cycle.
//
// A fetch failure returns a *source.FetchError, an extraction failure an
// *extract.Failure; in both cases the log is left untouched.
func (w *Watcher) RunOnce(ctx context.Context) (CycleResult, error) {
	res := CycleResult{Started: time.Now()}
	err := w.runOnce(ctx, &res)
	res.Duration = time.Since(res.Started)
	if err != nil {
		res.Err = err.Error()
	}
	if w.notified != nil {
		res.LogSize = w.notified.Len()
	}

	w.mu.Lock()
	last := res
	w.last = &last
	w.mu.Unlock()
	if w.deps.OnCycle != nil {
		w.deps.OnCycle(res)
	}
	return res, err
}

func (w *Watcher) runOnce(ctx context.Context, res *CycleResult) error {
	if err := w.Load(ctx); err != nil {
		return err
	}

	body, err := w.deps.Fetcher.Fetch(ctx)
	if err != nil {
		w.log.Warn("page fetch failed, skipping cycle", logx.Err(err))
		return err
	}

	page, err := w.deps.Extractor.Extract(bytes.NewReader(body))
	if err != nil {
		w.log.Error("release extraction failed, skipping cycle", logx.Err(err))
		return err
	}
	res.Entries = page.Entries
	res.Extracted = len(page.Releases)
	res.Diagnostics = len(page.Diagnostics)
	for _, d := range page.Diagnostics {
		w.log.Warn("list entry skipped",
			logx.Int("index", d.Index),
			logx.String("kind", string(d.Kind)),
			logx.String("reason", d.Reason),
		)
		w.log.Debug("skipped entry markup", logx.Int("index", d.Index), logx.String("snippet", d.Snippet))
	}

	novel := release.Novel(page.Releases, w.notified)
	res.New = len(novel)
	if len(novel) == 0 {
		w.log.Debug("no new releases", logx.Int("extracted", res.Extracted))
		return nil
	}
	w.log.Info("new releases found", logx.Int("count", len(novel)))

	res.Report = w.deps.Dispatcher.Dispatch(ctx, w.notified, novel)
	w.log.Info("dispatch finished",
		logx.Int("sent", res.Report.Sent),
		logx.Int("failed", res.Report.Failed),
		logx.Int("persist_failed", res.Report.PersistFailed),
		logx.Int("quarantined", res.Report.Quarantined),
		logx.Bool("cancelled", res.Report.Cancelled),
	)
	return nil
}

// Run loads the log and polls on the configured schedule until ctx is
// cancelled. Cycle failures are logged and never stop the loop; only a
// failure to load the log is returned.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Load(ctx); err != nil {
		return err
	}
	if w.cfg.RunOnStart {
		_, _ = w.RunOnce(ctx)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := time.Now()
		next := w.cfg.Schedule.Next(now)
		w.mu.Lock()
		w.next = next
		w.mu.Unlock()
		w.log.Debug("next poll scheduled", logx.Time("at", next))

		t := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		_, _ = w.RunOnce(ctx)
	}
}

// Status is a point-in-time view for health output.
type Status struct {
	Last *CycleResult `json:"last_cycle,omitempty"`
	Next time.Time    `json:"next_poll,omitempty"`
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{Next: w.next}
	if w.last != nil {
		last := *w.last
		st.Last = &last
	}
	return st
}
