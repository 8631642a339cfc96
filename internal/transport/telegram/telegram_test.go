package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kit "releasewatch/internal/transport"
	logx "releasewatch/pkg/logx"
)

type botAPI struct {
	mu       sync.Mutex
	methods  []string
	payloads []map[string]any
	fail     bool
}

func (b *botAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p map[string]any
		_ = json.Unmarshal(body, &p)

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		b.mu.Lock()
		b.methods = append(b.methods, method)
		b.payloads = append(b.payloads, p)
		fail := b.fail
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier/HTTP URL specified"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42,"date":1700000000,"chat":{"id":-1001,"type":"supergroup"}}}`))
	}
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSendPhotoUsesTopic(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	ref, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: -1001, ThreadID: 7}, kit.Photo{
		URL:     "https://example.com/284/cover.jpg",
		Caption: "hello",
	})
	if err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if ref.MessageID != 42 || ref.ChatID != -1001 || ref.ThreadID != 7 {
		t.Fatalf("unexpected ref: %+v", ref)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.methods) != 1 || api.methods[0] != "sendPhoto" {
		t.Fatalf("methods = %v, want [sendPhoto]", api.methods)
	}
	p := api.payloads[0]
	if p["photo"] != "https://example.com/284/cover.jpg" {
		t.Fatalf("photo = %v", p["photo"])
	}
	if p["caption"] != "hello" {
		t.Fatalf("caption = %v", p["caption"])
	}
	if p["message_thread_id"] != "7" {
		t.Fatalf("message_thread_id = %v", p["message_thread_id"])
	}
}

func TestSendPhotoReportsAPIError(t *testing.T) {
	api := &botAPI{fail: true}
	a := newTestAdapter(t, api)

	_, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: -1001}, kit.Photo{URL: "https://example.com/x.jpg"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSendPhotoRejectsEmptyURL(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	if _, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: 1}, kit.Photo{}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if len(api.methods) != 0 {
		t.Fatalf("no request expected, got %v", api.methods)
	}
}

func TestSendPhotoHonorsCancelledContext(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.SendPhoto(ctx, kit.ChatTarget{ChatID: 1}, kit.Photo{URL: "https://example.com/x.jpg"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	if got := splitTelegramText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected split: %q", got)
	}

	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitTelegramText(long, 10)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%q)", len(got), got)
	}
	if got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()
	if got := truncateRunes("Lançamento", 20); got != "Lançamento" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("Lançamento", 4); got != "Lan…" {
		t.Fatalf("got %q", got)
	}
}
