package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"releasewatch/internal/config"
	"releasewatch/internal/dispatch"
	"releasewatch/internal/extract"
	"releasewatch/internal/health"
	rtsup "releasewatch/internal/runtime/supervisor"
	"releasewatch/internal/schedule"
	"releasewatch/internal/source"
	"releasewatch/internal/storage"
	"releasewatch/internal/transport/telegram"
	"releasewatch/internal/watcher"
	logx "releasewatch/pkg/logx"
	"releasewatch/pkg/systemd"
)

// Options selects the config source.
type Options struct {
	ConfigPath string
	// ConfigOptional lets the environment alone configure the service when
	// the file does not exist.
	ConfigOptional bool
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	store   storage.Store
	disp    *dispatch.Dispatcher
	watch   *watcher.Watcher
	health  *health.Service
	sd      *systemd.Notifier

	sched       schedule.Parsed
	sendTimeout time.Duration
}

func New(opts Options) (*App, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfgm := config.NewManager(opts.ConfigPath, opts.ConfigOptional)
	cfgm.SetEnv(getenv)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	tcfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(tcfg, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; enable the Telegram sink only once the
	// target is known so Apply does not warn about a missing chat.
	baseLogCfg := cfg.Logging.LogxConfig()
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	applyLogTarget(logSvc, cfg)
	logSvc.Apply(cfg.Logging.LogxConfig())
	log = log.With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, log: log, logs: logSvc, adapter: ad}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	sc, err := StorageConfig(cfg, false)
	if err != nil {
		return err
	}
	store, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.store = store
	a.log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	srcCfg, err := SourceConfig(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	fetcher := source.New(srcCfg)

	ext, err := extract.New(ExtractOptions(cfg))
	if err != nil {
		return a.closeStore(err)
	}

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	a.disp = dispatch.New(dcfg, a.adapter, store, a.log)
	a.sendTimeout = dcfg.SendTimeout

	loc, err := cfg.Watch.Location()
	if err != nil {
		return a.closeStore(err)
	}
	sched, parsed, err := schedule.Compile(cfg.Watch.Schedule, loc)
	if err != nil {
		return a.closeStore(fmt.Errorf("watch.schedule: %w", err))
	}
	a.sched = parsed

	a.sd = systemd.NewNotifier(a.log)

	runOnStart := cfg.Watch.RunOnStart == nil || *cfg.Watch.RunOnStart
	a.watch, err = watcher.New(watcher.Deps{
		Fetcher:    fetcher,
		Extractor:  ext,
		Loader:     store,
		Dispatcher: a.disp,
		Log:        a.log,
		OnCycle:    a.onCycle,
	}, watcher.Config{Schedule: sched, RunOnStart: runOnStart})
	if err != nil {
		return a.closeStore(err)
	}

	hcfg, err := mapHealthConfig(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	a.health = health.New(hcfg, a.status, a.log)

	a.log.Info("watch configured",
		logx.String("url", fetcher.URL()),
		logx.String("schedule", parsed.String()),
		logx.Int64("chat_id", dcfg.Target.ChatID),
		logx.Int("topic_id", dcfg.Target.ThreadID),
		logx.Duration("inter_item_delay", dcfg.InterItemDelay),
	)
	return nil
}

func (a *App) closeStore(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}

func applyLogTarget(svc *logx.Service, cfg *config.Config) {
	chatID, err := cfg.Telegram.LogChat()
	if err != nil {
		chatID = 0
	}
	svc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
}

func (a *App) onCycle(res watcher.CycleResult) {
	if res.Err != "" {
		a.sd.Status("last cycle failed: " + res.Err)
		return
	}
	a.sd.Status(fmt.Sprintf("last cycle %s: %d new, %d sent, %d logged",
		res.Started.Format(time.RFC3339), res.New, res.Report.Sent, res.LogSize))
}

// AppStatus is served on /status.
type AppStatus struct {
	Schedule    string            `json:"schedule"`
	Watcher     watcher.Status    `json:"watcher"`
	Quarantined []string          `json:"quarantined,omitempty"`
	Tasks       []rtsup.TaskStats `json:"tasks,omitempty"`
}

func (a *App) status() any {
	st := AppStatus{
		Schedule:    a.sched.String(),
		Watcher:     a.watch.Status(),
		Quarantined: a.disp.Quarantined(),
	}
	if a.sup != nil {
		st.Tasks = a.sup.Snapshot()
	}
	return st
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// RunOnce performs a single poll cycle without starting background work.
func (a *App) RunOnce(ctx context.Context) (watcher.CycleResult, error) {
	return a.watch.RunOnce(ctx)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	// a broken notification log is fatal after a few tries
	a.sup.GoRestart("watcher", a.watch.Run,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		rtsup.WithMaxRestarts(3),
	)

	a.health.Start(a.sup.Context())

	if every := a.sd.WatchdogInterval(); every > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					a.sd.Watchdog()
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.Ready()
	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts: keep only the latest config
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig applies the live sections of newCfg and reports the rest.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	// target first so Apply does not warn when Telegram logging is enabled
	applyLogTarget(a.logs, newCfg)
	a.logs.Apply(newCfg.Logging.LogxConfig())

	if pending := config.NeedsRestart(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(pending, ",")))
	}
	a.log.Info("config applied", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// An in-flight send keeps running past this cancel; the watcher returns
	// once it has been persisted.
	a.sup.Cancel()

	// bounded step so one component can't stall the whole stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("health", 2*time.Second, func(c context.Context) error { a.health.Stop(c); return nil })
	step("supervisor", supervisorStopTimeout(a.sendTimeout), func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("telegram", time.Second, func(context.Context) error { return a.adapter.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// supervisorStopTimeout outlasts one in-flight send plus its persist.
func supervisorStopTimeout(send time.Duration) time.Duration {
	if send <= 0 {
		send = dispatch.DefaultSendTimeout
	}
	return send + 5*time.Second
}

// Close releases resources of an app that was never started.
func (a *App) Close() error {
	err := a.closeStore(nil)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
