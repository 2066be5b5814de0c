// Package catalog holds the records a client describes its cards with.
package catalog

import (
	"strconv"
	"strings"

	"github.com/austinkregel/local-media/previewd/internal/session"
)

// Track is one entry of a group's tracklist.
type Track struct {
	Title       string  `json:"title"`
	BPM         float64 `json:"bpm,omitempty"`
	PreviewURL  string  `json:"preview_url"`
	ExternalURL string  `json:"external_url,omitempty"`
}

// HasPreview reports whether the track can be previewed.
func (t Track) HasPreview() bool {
	return strings.TrimSpace(t.PreviewURL) != ""
}

// Group is a card: an album, single or any other set of tracks.
type Group struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Cover      string  `json:"cover"`
	FlashColor string  `json:"flash_color,omitempty"`
	Tracks     []Track `json:"tracks"`
	GroupURL   string  `json:"group_url,omitempty"`
}

// CardID returns the group's id, or a positional id when it has none.
func (g Group) CardID(index int) string {
	if id := strings.TrimSpace(g.ID); id != "" {
		return id
	}
	return "rel-" + strconv.Itoa(index)
}

// Previewable returns the tracks that have a preview.
func (g Group) Previewable() []Track {
	var out []Track
	for _, t := range g.Tracks {
		if t.HasPreview() {
			out = append(out, t)
		}
	}
	return out
}

// Pick chooses one previewable track using intn, which must behave like
// rand.IntN. It returns false when nothing can be previewed.
func (g Group) Pick(intn func(n int) int) (Track, bool) {
	tracks := g.Previewable()
	if len(tracks) == 0 {
		return Track{}, false
	}
	i := intn(len(tracks))
	if i < 0 || i >= len(tracks) {
		i = 0
	}
	return tracks[i], true
}

// Request builds the play request for track t of g.
func (g Group) Request(t Track, autoEndFade bool) session.PlayRequest {
	bpm := t.BPM
	if bpm < 0 {
		bpm = 0
	}
	return session.PlayRequest{
		URL:              strings.TrimSpace(t.PreviewURL),
		Card:             g.ID,
		TempoHint:        bpm,
		TrackLabel:       t.Title,
		GroupLabel:       g.Title,
		SingleTrackGroup: len(g.Tracks) == 1,
		FlashColor:       g.FlashColor,
		AutoEndFade:      autoEndFade,
		Cover:            strings.TrimSpace(g.Cover),
	}
}
