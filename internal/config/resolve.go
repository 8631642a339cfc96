package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"releasewatch/internal/schedule"
	logx "releasewatch/pkg/logx"
)

// Environment variables that override the file.
const (
	EnvBotToken = "BOT_TOKEN"
	EnvChatID   = "CHAT_ID"
	EnvTopicID  = "TOPIC_ID"
)

var (
	ErrMissingToken  = errors.New("telegram token is required (telegram.token or BOT_TOKEN)")
	ErrMissingChatID = errors.New("telegram chat id is required (telegram.chat_id or CHAT_ID)")
)

// ApplyEnv overrides the Telegram target with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv(EnvBotToken)); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvChatID)); v != "" {
		c.Telegram.ChatID = json.Number(v)
	}
	if v := strings.TrimSpace(getenv(EnvTopicID)); v != "" {
		c.Telegram.TopicID = json.Number(v)
	}
}

// ApplyDefaults fills the fields that have a non-zero default.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Watch.Schedule) == "" {
		c.Watch.Schedule = schedule.DefaultSpec
	}
	if c.Watch.RunOnStart == nil {
		on := true
		c.Watch.RunOnStart = &on
	}
	if strings.TrimSpace(c.Watch.InterItemDelay) == "" {
		c.Watch.InterItemDelay = "10s"
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "json"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
}

// Target returns the numeric chat and topic ids. A zero topic means the chat
// itself.
func (t TelegramConfig) Target() (chatID int64, topicID int, err error) {
	raw := strings.TrimSpace(t.ChatID.String())
	if raw == "" {
		return 0, 0, ErrMissingChatID
	}
	chatID, err = strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID == 0 {
		return 0, 0, fmt.Errorf("telegram.chat_id: %q is not a numeric chat id", raw)
	}
	if raw := strings.TrimSpace(t.TopicID.String()); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			return 0, 0, fmt.Errorf("telegram.topic_id: %q is not a numeric topic id", raw)
		}
		topicID = id
	}
	return chatID, topicID, nil
}

// LogChat returns the ops log chat id, 0 when unset.
func (t TelegramConfig) LogChat() (int64, error) {
	raw := strings.TrimSpace(t.GroupLog.String())
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: %q is not a numeric chat id", raw)
	}
	return id, nil
}

// Location returns the schedule timezone (local time when unset).
func (w WatchConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(w.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("watch.timezone: %w", err)
	}
	return loc, nil
}

// Delay returns inter_item_delay; an explicit "0s" disables the pause.
func (w WatchConfig) Delay() (time.Duration, error) {
	if strings.TrimSpace(w.InterItemDelay) == "" {
		return 10 * time.Second, nil
	}
	return ParseDurationField("watch.inter_item_delay", w.InterItemDelay)
}

// Validate checks everything that can be checked without network access.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add(ErrMissingToken)
	}
	_, _, err := c.Telegram.Target()
	add(err)
	_, err = c.Telegram.LogChat()
	add(err)

	if u := strings.TrimSpace(c.Source.URL); u != "" {
		pu, err := url.Parse(u)
		if err != nil || pu.Scheme == "" || pu.Host == "" {
			add(fmt.Errorf("source.url: %q must be an absolute URL", u))
		}
	}
	_, err = ParseDurationField("source.timeout", c.Source.Timeout)
	add(err)

	loc, err := c.Watch.Location()
	add(err)
	if err == nil {
		if _, _, err := schedule.Compile(c.Watch.Schedule, loc); err != nil {
			add(fmt.Errorf("watch.schedule: %w", err))
		}
	}
	_, err = c.Watch.Delay()
	add(err)
	add(c.checkSendTimeouts())
	if c.Watch.MaxAttempts < 0 {
		add(errors.New("watch.max_attempts must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "json", "file", "sqlite", "sqlite3":
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	add(err)

	for _, f := range []struct{ path, raw string }{
		{"health.read_timeout", c.Health.ReadTimeout},
		{"health.write_timeout", c.Health.WriteTimeout},
		{"health.idle_timeout", c.Health.IdleTimeout},
	} {
		_, err = ParseDurationField(f.path, f.raw)
		add(err)
	}

	add(c.Logging.Validate())
	return errors.Join(errs...)
}

// Validate checks the logging section alone; it gates hot reloads.
func (l LoggingConfig) Validate() error {
	var errs []error
	if l.Level != "" && !logx.ValidLevel(l.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", l.Level))
	}
	if l.Telegram.MinLevel != "" && !logx.ValidLevel(l.Telegram.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.telegram.min_level: unknown level %q", l.Telegram.MinLevel))
	}
	if l.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("logging.telegram.rate_per_sec must be >= 0"))
	}
	return errors.Join(errs...)
}

// LogxConfig converts the logging section.
func (l LoggingConfig) LogxConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// checkSendTimeouts keeps the Bot API client timeout within watch.send_timeout:
// the HTTP client timeout is what actually bounds a send, and shutdown only
// waits send_timeout for the in-flight one.
func (c *Config) checkSendTimeouts() error {
	send, err := ParseDurationOrDefault("watch.send_timeout", c.Watch.SendTimeout, DefaultSendTimeout)
	if err != nil {
		return err
	}
	client, err := ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, DefaultTelegramTimeout)
	if err != nil {
		return err
	}
	if client > send {
		return fmt.Errorf("telegram.timeout (%s) must not exceed watch.send_timeout (%s)", client, send)
	}
	return nil
}
