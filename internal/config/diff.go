package config

import (
	"reflect"
	"strings"

	logx "releasewatch/pkg/logx"
)

// LiveSections lists the sections applied without a restart.
var LiveSections = map[string]bool{"logging": true}

// SummarizeChange returns the changed top-level sections and safe log fields
// describing them (secrets are never included).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)

	// never log the token itself
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.ChatID != nt.ChatID || ot.TopicID != nt.TopicID ||
		strings.TrimSpace(ot.APIURL) != strings.TrimSpace(nt.APIURL) ||
		ot.Timeout != nt.Timeout || ot.GroupLog != nt.GroupLog {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.chat_id", nt.ChatID.String()),
			logx.String("telegram.topic_id", nt.TopicID.String()),
		)
	}
	if oldCfg.Source != newCfg.Source {
		changed = append(changed, "source")
		attrs = append(attrs, logx.String("source.url", newCfg.Source.URL))
	}
	if oldCfg.Extract != newCfg.Extract {
		changed = append(changed, "extract")
	}
	if !reflect.DeepEqual(oldCfg.Watch, newCfg.Watch) {
		changed = append(changed, "watch")
		attrs = append(attrs, logx.String("watch.schedule", newCfg.Watch.Schedule))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Health != newCfg.Health {
		changed = append(changed, "health")
		attrs = append(attrs,
			logx.Bool("health.enabled", newCfg.Health.Enabled),
			logx.String("health.addr", newCfg.Health.Addr),
			logx.Bool("health.pprof_token_set", newCfg.Health.PprofToken != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	return changed, attrs
}

// NeedsRestart reports the changed sections that are not applied live.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
