package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"releasewatch/internal/release"
	logx "releasewatch/pkg/logx"
)

func sample() []release.Record {
	return []release.Record{
		{Link: "https://multitracks.com.br/songs/a/", Title: "Canção A", Artist: "Banda Ação"},
		{Link: "https://multitracks.com.br/songs/b/", Title: "B", Artist: "Artista B"},
	}
}

func open(t *testing.T, cfg Config) Store {
	t.Helper()
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%+v): %v", cfg, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"json", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "log."+driver)
			st := open(t, Config{Driver: driver, Path: path})
			ctx := context.Background()

			got, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load empty: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("Load empty = %#v, want empty non-nil slice", got)
			}

			recs := sample()
			if err := st.Save(ctx, recs[:1]); err != nil {
				t.Fatalf("Save 1: %v", err)
			}
			if err := st.Save(ctx, recs); err != nil {
				t.Fatalf("Save 2: %v", err)
			}
			// saving the same log again is a no-op
			if err := st.Save(ctx, recs); err != nil {
				t.Fatalf("Save 3: %v", err)
			}

			got, err = st.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got) != 2 || got[0] != recs[0] || got[1] != recs[1] {
				t.Fatalf("Load = %+v, want %+v", got, recs)
			}

			hist, err := st.History(ctx)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(hist) != 2 || hist[0].Seq >= hist[1].Seq || hist[1].Record.Link != recs[1].Link {
				t.Fatalf("History = %+v", hist)
			}
		})
	}
}

func TestJSONFileFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultPath)
	st := open(t, Config{Driver: "json", Path: path})

	if err := st.Save(context.Background(), sample()[:1]); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{
		"[\n    {\n        \"link\": ",
		`"titulo": "Canção A"`,
		`"artista": "Banda Ação"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("file missing %q:\n%s", want, s)
		}
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestJSONLoadsLegacyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultPath)
	legacy := `[
    {
        "link": "https://multitracks.com.br/songs/x/",
        "titulo": "X",
        "artista": "Y"
    }
]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	st := open(t, Config{Path: path})
	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "X" || got[0].Artist != "Y" {
		t.Fatalf("Load = %+v", got)
	}
}

func TestJSONCorruptFileFailsLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st := open(t, Config{Path: path})
	if _, err := st.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSaveFailureWrapsErrPersist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")
	st := open(t, Config{Path: path})

	// a directory where the temporary file should go makes the write fail
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	err := st.Save(context.Background(), sample())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
}

func TestSecondWriterIsLockedOut(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "log.json")
	first := open(t, Config{Path: path})

	if _, err := Open(Config{Path: path}, logx.Nop()); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Open err = %v, want ErrLocked", err)
	}

	// readers do not take the lock
	ro := open(t, Config{Path: path, ReadOnly: true})
	if err := ro.Save(context.Background(), sample()); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("read-only Save err = %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	again, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	_ = again.Close()
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "redis", Path: filepath.Join(t.TempDir(), "x")}, logx.Nop())
	if err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("err = %v", err)
	}
}
