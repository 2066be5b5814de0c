package session

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// PlayRequest asks for one preview to become audible. It is passed by value
// and never mutated after it is issued.
type PlayRequest struct {
	URL              string  `json:"url"`
	Card             string  `json:"card"`
	TempoHint        float64 `json:"bpm,omitempty"`
	TrackLabel       string  `json:"track,omitempty"`
	GroupLabel       string  `json:"group,omitempty"`
	SingleTrackGroup bool    `json:"single,omitempty"`
	FlashColor       string  `json:"flash_color,omitempty"`
	AutoEndFade      bool    `json:"auto_end_fade"`
	Cover            string  `json:"cover,omitempty"`
}

// Validate checks the fields a request cannot do without.
func (r PlayRequest) Validate() error {
	if strings.TrimSpace(r.Card) == "" {
		return ErrNoCard
	}
	if strings.TrimSpace(r.URL) == "" {
		return ErrEmptyURL
	}
	return nil
}

// Meta returns the fields the visual signal is derived from.
func (r PlayRequest) Meta() visual.Meta {
	return visual.Meta{
		Card:             r.Card,
		TempoHint:        r.TempoHint,
		TrackLabel:       r.TrackLabel,
		GroupLabel:       r.GroupLabel,
		SingleTrackGroup: r.SingleTrackGroup,
		FlashColor:       r.FlashColor,
		Cover:            r.Cover,
	}
}

// Intent is what the hover router hands to the session.
type Intent interface {
	intent()
}

// PlayIntent requests playback of a preview.
type PlayIntent struct {
	Request PlayRequest
}

// StopIntent requests a stop. An empty Card stops unconditionally; otherwise
// the stop only applies while Card owns the latest play intent.
type StopIntent struct {
	Card string
}

func (PlayIntent) intent() {}
func (StopIntent) intent() {}

// NormalizeURL resolves raw against base and returns a canonical source
// location, or "" when raw is blank. Base may be a URL or a directory.
// Local paths come back as absolute, cleaned file paths.
func NormalizeURL(raw, base string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}

	if u, err := url.Parse(v); err == nil && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return u.String()
		case "file":
			return filepath.Clean(filepath.FromSlash(u.Path))
		default:
			return v
		}
	}

	if filepath.IsAbs(v) {
		return filepath.Clean(v)
	}

	base = strings.TrimSpace(base)
	if b, err := url.Parse(base); err == nil && (b.Scheme == "http" || b.Scheme == "https") {
		if ref, err := url.Parse(filepath.ToSlash(v)); err == nil {
			return b.ResolveReference(ref).String()
		}
	}
	if base != "" {
		v = filepath.Join(base, v)
	}
	if abs, err := filepath.Abs(v); err == nil {
		return abs
	}
	return filepath.Clean(v)
}
