package config

import "encoding/json"

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings ("10s", "10m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Source   SourceConfig   `json:"source"`
	Extract  ExtractConfig  `json:"extract"`
	Watch    WatchConfig    `json:"watch"`
	Storage  StorageConfig  `json:"storage"`
	Health   HealthConfig   `json:"health"`
	Logging  LoggingConfig  `json:"logging"`
}

// TelegramConfig holds the notification target.
//
// chat_id and topic_id accept a JSON number or a numeric string. They are
// overridden by the BOT_TOKEN, CHAT_ID and TOPIC_ID environment variables.
type TelegramConfig struct {
	Token   string      `json:"token"`
	ChatID  json.Number `json:"chat_id"`
	TopicID json.Number `json:"topic_id,omitempty"`

	// APIURL overrides the Bot API endpoint (self-hosted Bot API server).
	APIURL string `json:"api_url,omitempty"`
	// Timeout bounds one Bot API request and must not exceed
	// watch.send_timeout.
	Timeout string `json:"timeout,omitempty"`

	// GroupLog is the chat receiving error logs when logging.telegram is on.
	GroupLog json.Number `json:"group_log,omitempty"`
}

type SourceConfig struct {
	URL       string `json:"url"`
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

// ExtractConfig overrides the listing selectors. Empty fields keep the
// built-in Multitracks Brasil values.
type ExtractConfig struct {
	Container  string `json:"container,omitempty"`
	Entry      string `json:"entry,omitempty"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Link       string `json:"link,omitempty"`
	Image      string `json:"image,omitempty"`
	Origin     string `json:"origin,omitempty"`
	ThumbToken string `json:"thumb_token,omitempty"`
	FullToken  string `json:"full_token,omitempty"`
}

// WatchConfig controls the poll loop.
//
// Defaults:
//   - schedule: "10m" (cron expressions and HH:MM intervals are accepted)
//   - run_on_start: true
//   - inter_item_delay: "10s"
//   - max_attempts: 0 (retry forever)
//   - send_timeout: "30s"
type WatchConfig struct {
	Schedule       string `json:"schedule"`
	Timezone       string `json:"timezone,omitempty"`
	RunOnStart     *bool  `json:"run_on_start,omitempty"`
	InterItemDelay string `json:"inter_item_delay"`
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	SendTimeout    string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the notification log backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./releasewatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HealthConfig controls the optional HTTP health server.
//
// Security note: pprof on a non-loopback addr is only mounted with a token.
type HealthConfig struct {
	Enabled    bool   `json:"enabled"`
	Addr       string `json:"addr,omitempty"` // default ":8080"
	StaticDir  string `json:"static_dir,omitempty"`
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"` // do not log

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
