package app

import (
	"strings"
	"time"

	"releasewatch/internal/config"
	"releasewatch/internal/dispatch"
	"releasewatch/internal/extract"
	"releasewatch/internal/health"
	"releasewatch/internal/source"
	"releasewatch/internal/storage"
	kit "releasewatch/internal/transport"
	"releasewatch/internal/transport/telegram"
)

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, config.DefaultTelegramTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:   cfg.Telegram.Token,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: timeout,
		// sending needs no getMe round trip; a bad token surfaces on the first send
		Offline: true,
	}, nil
}

// SourceConfig maps the source section.
func SourceConfig(cfg *config.Config) (source.Config, error) {
	timeout, err := config.ParseDurationOrDefault("source.timeout", cfg.Source.Timeout, 30*time.Second)
	if err != nil {
		return source.Config{}, err
	}
	return source.Config{URL: cfg.Source.URL, UserAgent: cfg.Source.UserAgent, Timeout: timeout}, nil
}

// ExtractOptions maps the extract section onto extractor options.
func ExtractOptions(cfg *config.Config) extract.Options {
	e := cfg.Extract
	return extract.Options{
		Container:  e.Container,
		Entry:      e.Entry,
		Title:      e.Title,
		Artist:     e.Artist,
		Link:       e.Link,
		Image:      e.Image,
		Origin:     e.Origin,
		ThumbToken: e.ThumbToken,
		FullToken:  e.FullToken,
	}
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	chatID, topicID, err := cfg.Telegram.Target()
	if err != nil {
		return dispatch.Config{}, err
	}
	delay, err := cfg.Watch.Delay()
	if err != nil {
		return dispatch.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("watch.send_timeout", cfg.Watch.SendTimeout, dispatch.DefaultSendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Target:         kit.ChatTarget{ChatID: chatID, ThreadID: topicID},
		InterItemDelay: delay,
		MaxAttempts:    cfg.Watch.MaxAttempts,
		SendTimeout:    sendTimeout,
	}, nil
}

// StorageConfig maps the storage section.
func StorageConfig(cfg *config.Config, readOnly bool) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
		ReadOnly:    readOnly,
	}, nil
}

func mapHealthConfig(cfg *config.Config) (health.Config, error) {
	h := cfg.Health
	rt, err := config.ParseDurationOrDefault("health.read_timeout", h.ReadTimeout, 10*time.Second)
	if err != nil {
		return health.Config{}, err
	}
	// 0 keeps /debug/pprof/profile usable
	wt, err := config.ParseDurationField("health.write_timeout", h.WriteTimeout)
	if err != nil {
		return health.Config{}, err
	}
	it, err := config.ParseDurationOrDefault("health.idle_timeout", h.IdleTimeout, 60*time.Second)
	if err != nil {
		return health.Config{}, err
	}
	return health.Config{
		Enabled:      h.Enabled,
		Addr:         h.Addr,
		StaticDir:    h.StaticDir,
		Pprof:        h.Pprof,
		PprofToken:   h.PprofToken,
		ReadTimeout:  rt,
		WriteTimeout: wt,
		IdleTimeout:  it,
	}, nil
}
