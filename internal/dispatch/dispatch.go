// Package dispatch sends notifications for new releases one at a time, oldest
// first, and records each successful send in the notification log.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"releasewatch/internal/release"
	kit "releasewatch/internal/transport"
	logx "releasewatch/pkg/logx"
)

const (
	// DefaultInterItemDelay is the pause before every send.
	DefaultInterItemDelay = 10 * time.Second
	// DefaultSendTimeout bounds one send or one persist.
	DefaultSendTimeout = 30 * time.Second
)

// Notifier delivers one photo message.
type Notifier interface {
	SendPhoto(ctx context.Context, to kit.ChatTarget, p kit.Photo) (kit.MessageRef, error)
}

// Persister durably writes the full log.
type Persister interface {
	Save(ctx context.Context, records []release.Record) error
}

type Config struct {
	Target kit.ChatTarget

	// InterItemDelay is waited before every send. Zero means no wait.
	InterItemDelay time.Duration

	// MaxAttempts quarantines a release after that many failed sends, for the
	// lifetime of the process. Zero retries forever.
	MaxAttempts int

	// SendTimeout bounds a send (and its persist) once started; 0 means
	// DefaultSendTimeout.
	SendTimeout time.Duration
}

// Report summarizes one Dispatch call.
type Report struct {
	Sent          int  `json:"sent"`
	Failed        int  `json:"failed"`
	PersistFailed int  `json:"persist_failed"`
	Quarantined   int  `json:"quarantined"`
	Skipped       int  `json:"skipped"`
	Cancelled     bool `json:"cancelled"`
}

func (r Report) String() string {
	return fmt.Sprintf("sent=%d failed=%d persist_failed=%d quarantined=%d skipped=%d cancelled=%t",
		r.Sent, r.Failed, r.PersistFailed, r.Quarantined, r.Skipped, r.Cancelled)
}

// Dispatch is driven by a single goroutine. Quarantined may be called from
// any goroutine.
type Dispatcher struct {
	cfg       Config
	notifier  Notifier
	persister Persister
	log       logx.Logger

	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	attempts map[string]int // failed sends per link
}

func New(cfg Config, n Notifier, p Persister, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.InterItemDelay < 0 {
		cfg.InterItemDelay = 0
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		cfg:       cfg,
		notifier:  n,
		persister: p,
		log:       log.With(logx.String("comp", "dispatch")),
		sleep:     sleepCtx,
		attempts:  map[string]int{},
	}
}

// Caption is the message text sent with the cover image.
func Caption(r release.Release) string {
	return fmt.Sprintf("Novo Lançamento no site Multitracks Brasil!\n%s, de %s\n%s", r.Title, r.Artist, r.Link)
}

// Dispatch notifies newestFirst in reverse (chronological) order.
//
// A release is appended to log only after its send succeeded, and the log is
// persisted right after every append. A failed send leaves log untouched so
// the release is retried on the next cycle. Cancelling ctx stops the batch
// before the next send; a send already started is completed and persisted.
func (d *Dispatcher) Dispatch(ctx context.Context, log *release.Log, newestFirst []release.Release) Report {
	var rep Report
	for _, r := range release.Reverse(newestFirst) {
		if log.Contains(r.Link) {
			rep.Skipped++
			continue
		}
		if d.quarantined(r.Link) {
			rep.Quarantined++
			continue
		}

		if err := d.sleep(ctx, d.cfg.InterItemDelay); err != nil {
			rep.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}

		switch d.deliver(ctx, log, r) {
		case outcomeSent:
			rep.Sent++
		case outcomeSendFailed:
			rep.Failed++
		case outcomePersistFailed:
			rep.PersistFailed++
		}
	}
	return rep
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSendFailed
	outcomePersistFailed
)

func (d *Dispatcher) deliver(ctx context.Context, log *release.Log, r release.Release) outcome {
	lg := d.log.With(logx.String("link", r.Link))

	// Detached from ctx so shutdown does not abort a send halfway.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()

	ref, err := d.notifier.SendPhoto(opCtx, d.cfg.Target, kit.Photo{URL: r.ImageURL, Caption: Caption(r)})
	if err != nil {
		n := d.failed(r.Link)
		lg.Warn("delivery failed", logx.Err(err), logx.Int("attempt", n))
		if d.cfg.MaxAttempts > 0 && n >= d.cfg.MaxAttempts {
			lg.Error("release quarantined after repeated delivery failures",
				logx.String("title", r.Title), logx.Int("attempts", n))
		}
		return outcomeSendFailed
	}
	d.mu.Lock()
	delete(d.attempts, r.Link)
	d.mu.Unlock()

	n := log.Len()
	log.Append(r.Record())
	if err := d.persister.Save(opCtx, log.Records()); err != nil {
		log.Truncate(n)
		lg.Error("notification sent but log not persisted", logx.Err(err), logx.String("title", r.Title))
		return outcomePersistFailed
	}
	lg.Info("release notified",
		logx.String("title", r.Title),
		logx.String("artist", r.Artist),
		logx.Int("message_id", ref.MessageID),
	)
	return outcomeSent
}

// failed records one more failed send of link and returns the count.
func (d *Dispatcher) failed(link string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts[link]++
	return d.attempts[link]
}

func (d *Dispatcher) quarantined(link string) bool {
	if d.cfg.MaxAttempts <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[link] >= d.cfg.MaxAttempts
}

// Quarantined returns the links that are no longer retried, sorted.
func (d *Dispatcher) Quarantined() []string {
	if d.cfg.MaxAttempts <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for link, n := range d.attempts {
		if n >= d.cfg.MaxAttempts {
			out = append(out, link)
		}
	}
	sort.Strings(out)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
