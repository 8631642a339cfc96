package schedule

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/10 * * * *", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: KindCron, source: "cron"},
		{name: "default", raw: DefaultSpec, kind: KindInterval, source: "duration", duration: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: KindInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every:00:10", kind: KindInterval, source: "hhmm", duration: 10 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5m", "00:00", "01:75", "interval:"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
	}
}

func TestCompileInterval(t *testing.T) {
	t.Parallel()
	sched, p, err := Compile("10m", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "every 10m0s" {
		t.Fatalf("String = %q", p.String())
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if next := sched.Next(now); !next.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("Next = %v", next)
	}
}

func TestCompileCronInLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("BRT", -3*3600)
	sched, _, err := Compile("0 9 * * *", loc)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC) // 10:00 BRT
	next := sched.Next(now).In(loc)
	if next.Hour() != 9 || next.Day() != 2 {
		t.Fatalf("Next = %v", next)
	}
}

func TestCompileRejectsBadCron(t *testing.T) {
	t.Parallel()
	if _, _, err := Compile("cron:61 * * * *", nil); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := Compile("500ms", nil); err == nil {
		t.Fatal("expected error for sub-second interval")
	}
}
