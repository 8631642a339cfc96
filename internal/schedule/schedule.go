// Package schedule parses the poll schedule.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec polls every ten minutes.
const DefaultSpec = "10m"

// Kind describes the normalized kind of a schedule string.
type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

// Parsed represents a parsed schedule string.
//
// Supported forms:
//   - Cron: "*/10 * * * *", "0 */10 * * * *" (seconds optional), "@hourly", "@every 10m"
//   - Interval duration: "10m", "1h30m"
//   - Interval HH:MM: "00:10" (10 minutes), "02:30" (2 hours 30 minutes)
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Parsed struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

func (p Parsed) String() string {
	if p.Kind == KindCron {
		return "cron " + p.Cron
	}
	return "every " + p.Every.String()
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses a schedule string into either a cron expression or an
// interval duration.
func Parse(raw string) (Parsed, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Parsed{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Parsed{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return Parsed{Kind: KindCron, Cron: expr, Source: "cron"}, nil
	}
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			d, src, err := parseInterval(s[len(prefix):])
			if err != nil {
				return Parsed{}, err
			}
			return Parsed{Kind: KindInterval, Every: d, Source: src}, nil
		}
	}

	// whitespace or a leading '@' means cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return Parsed{Kind: KindCron, Cron: s, Source: "cron"}, nil
	}

	if reHHMM.MatchString(s) {
		d, err := parseHHMMDuration(s)
		if err != nil {
			return Parsed{}, err
		}
		return Parsed{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Parsed{}, fmt.Errorf("interval must be > 0")
		}
		return Parsed{Kind: KindInterval, Every: d, Source: "duration"}, nil
	}

	return Parsed{}, fmt.Errorf(
		"invalid schedule %q (use cron like '*/10 * * * *', HH:MM like '00:10', or duration like '10m')",
		raw,
	)
}

// Compile parses raw and returns the schedule to poll on. Cron expressions are
// evaluated in loc (nil means local time).
func Compile(raw string, loc *time.Location) (cron.Schedule, Parsed, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, Parsed{}, err
	}
	if p.Kind == KindInterval {
		if p.Every < time.Second {
			return nil, Parsed{}, fmt.Errorf("interval must be at least 1s, got %s", p.Every)
		}
		return cron.Every(p.Every), p, nil
	}

	sched, err := parser.Parse(p.Cron)
	if err != nil {
		return nil, Parsed{}, fmt.Errorf("invalid cron schedule %q: %w", p.Cron, err)
	}
	// an explicit CRON_TZ= prefix wins over loc
	if spec, ok := sched.(*cron.SpecSchedule); ok && loc != nil && !strings.Contains(p.Cron, "TZ=") {
		spec.Location = loc
	}
	return sched, p, nil
}

func parseInterval(v string) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		return d, "hhmm", err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '10m'/'1h30m')", v)
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("interval must be > 0")
	}
	return d, "duration", nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
