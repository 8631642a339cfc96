package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"releasewatch/internal/release"
)

type DiagnosticKind string

const (
	// KindPartialEntry: the entry lacks one of title, artist, link or image.
	KindPartialEntry DiagnosticKind = "partial_entry"
	// KindEntryParseError: the entry is present but malformed.
	KindEntryParseError DiagnosticKind = "entry_parse_error"
)

// Diagnostic explains why one list entry was skipped.
type Diagnostic struct {
	Index   int            `json:"index"`
	Kind    DiagnosticKind `json:"kind"`
	Reason  string         `json:"reason"`
	Snippet string         `json:"snippet,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("entry %d: %s: %s", d.Index, d.Kind, d.Reason)
}

// Outcome is the per-entry result: exactly one of Release (ok) or Skipped is set.
type Outcome struct {
	Release release.Release
	Skipped *Diagnostic
}

func (x *Extractor) entry(i int, s *goquery.Selection) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = skipped(i, KindEntryParseError, fmt.Sprintf("panic: %v", r), s)
		}
	}()

	titleSel := s.Find(x.opt.Title).First()
	artistSel := s.Find(x.opt.Artist).First()
	linkSel := s.Find(x.opt.Link).First()
	imgSel := s.Find(x.opt.Image).First()

	var missing []string
	if titleSel.Length() == 0 {
		missing = append(missing, "title")
	}
	if artistSel.Length() == 0 {
		missing = append(missing, "artist")
	}
	if linkSel.Length() == 0 {
		missing = append(missing, "link")
	}
	if imgSel.Length() == 0 {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return skipped(i, KindPartialEntry, "missing "+strings.Join(missing, ", "), s)
	}

	href, ok := linkSel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return skipped(i, KindEntryParseError, "link has no href", s)
	}
	link, err := x.absolute(href)
	if err != nil {
		return skipped(i, KindEntryParseError, err.Error(), s)
	}

	src := imageSource(imgSel)
	if src == "" {
		return skipped(i, KindEntryParseError, "image has no src", s)
	}
	img, err := x.absolute(strings.ReplaceAll(src, x.opt.ThumbToken, x.opt.FullToken))
	if err != nil {
		return skipped(i, KindEntryParseError, err.Error(), s)
	}

	title := collapseSpace(titleSel.Text())
	artist := collapseSpace(artistSel.Text())
	if title == "" {
		return skipped(i, KindEntryParseError, "empty title", s)
	}

	return Outcome{Release: release.Release{
		Link:     link,
		Title:    title,
		Artist:   artist,
		ImageURL: img,
	}}
}

// absolute prefixes site-relative references with the configured origin.
// The reference is kept byte for byte: links are identity keys and must match
// the ones already in the notification log.
func (x *Extractor) absolute(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return x.originPrefix + ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	return x.origin.ResolveReference(u).String(), nil
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func skipped(i int, kind DiagnosticKind, reason string, s *goquery.Selection) Outcome {
	return Outcome{Skipped: &Diagnostic{Index: i, Kind: kind, Reason: reason, Snippet: snippet(s)}}
}

func snippet(s *goquery.Selection) string {
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return truncateRunes(collapseSpace(h), 300)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
