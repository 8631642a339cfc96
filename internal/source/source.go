// Package source fetches the release listing page.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the "recent releases" listing of Multitracks Brasil.
const DefaultURL = "https://multitracks.com.br/songs/?order=recent&label=Lan%C3%A7amentos"

const maxBodyBytes = 8 << 20

// FetchError reports a transport failure (Err set) or a non-200 response
// (StatusCode set).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *FetchError) Unwrap() error { return e.Err }

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher issues GET requests for a single fixed page.
type Fetcher struct {
	url       string
	userAgent string
	client    *http.Client
}

func New(cfg Config) *Fetcher {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		u = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "releasewatch/1.0"
	}
	return &Fetcher{url: u, userAgent: ua, client: &http.Client{Timeout: timeout}}
}

// WithClient replaces the HTTP client (tests, proxies).
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	if c != nil {
		f.client = c
	}
	return f
}

func (f *Fetcher) URL() string { return f.url }

// Fetch returns the page body. Any failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: f.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{URL: f.url, Err: errors.New("response body exceeds 8 MiB")}
	}
	return body, nil
}
