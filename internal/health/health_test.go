package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "releasewatch/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestStatusRendersStatusFunc(t *testing.T) {
	t.Parallel()
	s := New(Config{}, func() any { return map[string]int{"log_size": 7} }, logx.Nop())
	rec := get(t, s.Handler(), "/status")
	var body struct {
		Uptime string         `json:"uptime"`
		Status map[string]int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if body.Status["log_size"] != 7 || body.Uptime == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestStaticDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{StaticDir: dir}, nil, logx.Nop())
	rec := get(t, s.Handler(), "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<h1>hi</h1>") {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}

func TestPprofToken(t *testing.T) {
	t.Parallel()
	s := New(Config{Pprof: true, PprofToken: "secret"}, nil, logx.Nop())
	h := s.Handler()
	if rec := get(t, h, "/debug/pprof/"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token = %d", rec.Code)
	}
	if rec := get(t, h, "/debug/pprof/?token=secret"); rec.Code != http.StatusOK {
		t.Fatalf("with token = %d", rec.Code)
	}
}

func TestStartServesAndStops(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		addr = s.Addr()
	}
	if addr == "" {
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("GET /healthz = %d %q", resp.StatusCode, b)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	if s.Addr() != "" {
		t.Fatal("listener still registered after Stop")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:9":        true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"bad":            false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
