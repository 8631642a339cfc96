// Package release holds the release model, the notification log and the
// novelty filter that compares freshly extracted releases against it.
package release

import (
	"encoding/json"
	"strings"
)

// Release is one item listed on the monitored page.
// Link is the identity key; two releases with the same Link are the same release.
type Release struct {
	Link     string `json:"link"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ImageURL string `json:"image_url"`
}

// Record returns the persisted form of r (the image is not stored).
func (r Release) Record() Record {
	return Record{Link: r.Link, Title: r.Title, Artist: r.Artist}
}

// Record is a notified release as stored in the notification log.
//
// The JSON keys match the legacy lancamentos_notificados.json file
// (link/titulo/artista). English keys are accepted on decode.
type Record struct {
	Link   string `json:"link"`
	Title  string `json:"titulo"`
	Artist string `json:"artista"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw struct {
		Link    string `json:"link"`
		Titulo  string `json:"titulo"`
		Artista string `json:"artista"`
		Title   string `json:"title"`
		Artist  string `json:"artist"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Record{
		Link:   strings.TrimSpace(raw.Link),
		Title:  firstNonEmpty(raw.Titulo, raw.Title),
		Artist: firstNonEmpty(raw.Artista, raw.Artist),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
