// Package extract turns the release listing page into an ordered sequence of
// releases.
//
// Extraction is deliberately forgiving: a single broken list entry produces a
// Diagnostic and is skipped, only a missing list container fails the whole page.
package extract

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"releasewatch/internal/release"
)

// ErrStructureNotFound means the release list container is missing from the
// page, usually because the site was redesigned.
var ErrStructureNotFound = errors.New("release list container not found")

// Failure is returned when the page as a whole cannot be used.
type Failure struct {
	Selector string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed (selector %q): %v", f.Selector, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Options configures the selectors and URL rewriting. Zero fields take the
// values of DefaultOptions.
type Options struct {
	Container string
	Entry     string
	Title     string
	Artist    string
	Link      string
	Image     string

	// Origin is prefixed to site-relative links.
	Origin string

	// ThumbToken is replaced by FullToken in image URLs to get the full-size cover.
	ThumbToken string
	FullToken  string
}

// DefaultOptions matches the Multitracks Brasil listing markup.
func DefaultOptions() Options {
	return Options{
		Container:  "ul#playlist.song-list.mod-new.mod-menu",
		Entry:      "li.song-list--item.media-player--row",
		Title:      "a.song-list--item--primary",
		Artist:     "a.song-list--item--secondary",
		Link:       "a.song-list--item--primary",
		Image:      "img.song-list--item--player-img--img",
		Origin:     "https://multitracks.com.br",
		ThumbToken: "/40/",
		FullToken:  "/284/",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	set := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	set(&o.Container, d.Container)
	set(&o.Entry, d.Entry)
	set(&o.Title, d.Title)
	set(&o.Artist, d.Artist)
	set(&o.Link, d.Link)
	set(&o.Image, d.Image)
	set(&o.Origin, d.Origin)
	set(&o.ThumbToken, d.ThumbToken)
	set(&o.FullToken, d.FullToken)
	return o
}

// Extractor is safe for concurrent use; it holds configuration only.
type Extractor struct {
	opt          Options
	origin       *url.URL
	originPrefix string // origin without trailing slash
}

func New(opt Options) (*Extractor, error) {
	opt = opt.withDefaults()
	prefix := strings.TrimRight(strings.TrimSpace(opt.Origin), "/")
	origin, err := url.Parse(prefix)
	if err != nil {
		return nil, fmt.Errorf("extract: invalid origin %q: %w", opt.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("extract: origin %q must be absolute", opt.Origin)
	}
	return &Extractor{opt: opt, origin: origin, originPrefix: prefix}, nil
}

// Options returns the effective options (defaults applied).
func (x *Extractor) Options() Options { return x.opt }

// Result is the outcome of extracting one page.
type Result struct {
	// Releases in page order (newest first on the "recent" listing).
	Releases []release.Release `json:"releases"`
	// Diagnostics for skipped entries, in page order.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// Entries is the number of list entries seen, skipped ones included.
	Entries int `json:"entries"`
}

// Extract parses the listing markup from r.
func (x *Extractor) Extract(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, &Failure{Selector: x.opt.Container, Err: err}
	}
	return x.ExtractDocument(doc)
}

// ExtractDocument is Extract for an already parsed document.
func (x *Extractor) ExtractDocument(doc *goquery.Document) (Result, error) {
	list := doc.Find(x.opt.Container).First()
	if list.Length() == 0 {
		return Result{}, &Failure{Selector: x.opt.Container, Err: ErrStructureNotFound}
	}

	var res Result
	list.Find(x.opt.Entry).Each(func(i int, entry *goquery.Selection) {
		res.Entries++
		out := x.entry(i, entry)
		if out.Skipped != nil {
			res.Diagnostics = append(res.Diagnostics, *out.Skipped)
			return
		}
		res.Releases = append(res.Releases, out.Release)
	})
	return res, nil
}
