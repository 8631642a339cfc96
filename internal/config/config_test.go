package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func load(t *testing.T, path string, env func(string) string) (*Config, error) {
	t.Helper()
	m := NewManager(path, true)
	m.SetEnv(env)
	return m.Load()
}

const minimalJSON = `{
  "telegram": {"token": "123:abc", "chat_id": -1001234, "topic_id": "42"},
  "source": {"url": "https://multitracks.com.br/songs/?order=recent"}
}`

func TestLoadJSONWithDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, writeFile(t, "config.json", minimalJSON), noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	chat, topic, err := cfg.Telegram.Target()
	if err != nil || chat != -1001234 || topic != 42 {
		t.Fatalf("Target = %d, %d, %v", chat, topic, err)
	}
	if cfg.Watch.Schedule != "10m" || cfg.Storage.Driver != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Watch.RunOnStart == nil || !*cfg.Watch.RunOnStart {
		t.Fatal("run_on_start should default to true")
	}
	if d, _ := cfg.Watch.Delay(); d != 10*time.Second {
		t.Fatalf("Delay = %v", d)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	yml := `
telegram:
  token: "123:abc"
  chat_id: -100987
watch:
  schedule: "*/10 * * * *"
  inter_item_delay: 0s
  max_attempts: 5
storage:
  driver: sqlite
  path: ./data/releasewatch.db
`
	cfg, err := load(t, writeFile(t, "config.yaml", yml), noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if chat, topic, _ := cfg.Telegram.Target(); chat != -100987 || topic != 0 {
		t.Fatalf("Target = %d, %d", chat, topic)
	}
	if d, _ := cfg.Watch.Delay(); d != 0 {
		t.Fatalf("explicit 0s delay = %v", d)
	}
	if cfg.Watch.MaxAttempts != 5 || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram": {"token": "x", "chat_id": 1, "chat": 2}}`)
	if _, err := load(t, path, noEnv); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvOnlyConfiguration(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.json")
	cfg, err := load(t, path, envMap(map[string]string{
		EnvBotToken: "999:zzz",
		EnvChatID:   "-100555",
		EnvTopicID:  "7",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	chat, topic, _ := cfg.Telegram.Target()
	if cfg.Telegram.Token != "999:zzz" || chat != -100555 || topic != 7 {
		t.Fatalf("cfg.Telegram = %+v", cfg.Telegram)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, writeFile(t, "config.json", minimalJSON), envMap(map[string]string{EnvChatID: "-1"}))
	if err != nil {
		t.Fatal(err)
	}
	if chat, _, _ := cfg.Telegram.Target(); chat != -1 {
		t.Fatalf("chat = %d", chat)
	}
}

func TestValidateTelegramTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		env  map[string]string
		want error
		msg  string
	}{
		{name: "missing token", env: map[string]string{EnvChatID: "1"}, want: ErrMissingToken},
		{name: "missing chat", env: map[string]string{EnvBotToken: "t"}, want: ErrMissingChatID},
		{name: "non numeric chat", env: map[string]string{EnvBotToken: "t", EnvChatID: "@channel"}, msg: "not a numeric chat id"},
		{name: "non numeric topic", env: map[string]string{EnvBotToken: "t", EnvChatID: "1", EnvTopicID: "general"}, msg: "not a numeric topic id"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := load(t, filepath.Join(t.TempDir(), "none.json"), envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("err = %v, want containing %q", err, tt.msg)
			}
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()
	body := `{
  "telegram": {"token": "t", "chat_id": 1},
  "watch": {"schedule": "whenever", "inter_item_delay": "soon"},
  "storage": {"driver": "redis"},
  "logging": {"level": "loud"}
}`
	_, err := load(t, writeFile(t, "config.json", body), noEnv)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"watch.schedule", "watch.inter_item_delay", "storage.driver", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateTelegramTimeoutWithinSendTimeout(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		client  string
		send    string
		wantErr bool
	}{
		{name: "defaults"},
		{name: "client shorter", client: "10s", send: "20s"},
		{name: "equal", client: "45s", send: "45s"},
		{name: "client longer than default send", client: "60s", wantErr: true},
		{name: "client longer than send", client: "20s", send: "10s", wantErr: true},
		{name: "send shorter than default client", send: "5s", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := &Config{}
			c.Telegram.Token = "t"
			c.Telegram.ChatID = "1"
			c.Telegram.Timeout = tc.client
			c.Watch.SendTimeout = tc.send
			c.ApplyDefaults()

			err := c.Validate()
			if tc.wantErr {
				if err == nil || !strings.Contains(err.Error(), "must not exceed watch.send_timeout") {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestRequiredFileMissing(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.json"), false)
	m.SetEnv(noEnv)
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for missing required file")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := &Config{}
	a.ApplyDefaults()
	b := *a
	b.Logging.Level = "debug"
	b.Health.Enabled = true

	changed, _ := SummarizeChange(a, &b)
	if strings.Join(changed, ",") != "health,logging" {
		t.Fatalf("changed = %v", changed)
	}
	if restart := NeedsRestart(changed); len(restart) != 1 || restart[0] != "health" {
		t.Fatalf("NeedsRestart = %v", restart)
	}
}

func TestWatchPublishesValidChange(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", minimalJSON)
	m := NewManager(path, false)
	m.SetEnv(noEnv)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	updated := strings.Replace(minimalJSON, `"source"`, `"logging": {"level": "debug"}, "source"`, 1)
	deadline := time.After(10 * time.Second)
	for {
		// rewrite until the watcher is up and picks the change
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatal("Get did not return the committed config")
			}
			return
		case <-time.After(500 * time.Millisecond):
		case <-deadline:
			t.Fatal("no config published")
		}
	}
}
