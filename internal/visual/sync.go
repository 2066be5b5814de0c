// Package visual derives the pulse, glow and "now playing" signals shown
// alongside a preview. Nothing here touches audio.
package visual

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultTempo is used when a tempo hint is missing or not positive.
	DefaultTempo = 120.0

	// MinPulsePeriod floors the pulse so very fast tempos don't flicker.
	MinPulsePeriod = 0.25

	// DefaultColor is the glow used when nothing better is known.
	DefaultColor = "rgba(255, 209, 102, 0.90)"

	tintAlpha = 0.90
)

// Meta is the track metadata a visual signal is derived from.
type Meta struct {
	Card             string
	TempoHint        float64
	TrackLabel       string
	GroupLabel       string
	SingleTrackGroup bool
	FlashColor       string
	Cover            string
}

// Signal is the visual state derived for one request.
type Signal struct {
	Card       string
	Period     float64
	Color      string
	NowPlaying string
	Cover      string
}

// Options tune the policy constants.
type Options struct {
	DefaultColor   string
	DefaultTempo   float64
	MinPulsePeriod float64
}

// Sync resolves visual signals. It keeps the tints reported for each card.
type Sync struct {
	defaultColor string
	defaultTempo float64
	minPeriod    float64
	tints        map[string]string
}

// NewSync creates a Sync, filling zero options with the package defaults.
func NewSync(opts Options) *Sync {
	s := &Sync{
		defaultColor: DefaultColor,
		defaultTempo: DefaultTempo,
		minPeriod:    MinPulsePeriod,
		tints:        make(map[string]string),
	}
	if c, ok := NormalizeColor(opts.DefaultColor); ok {
		s.defaultColor = c
	}
	if opts.DefaultTempo > 0 {
		s.defaultTempo = opts.DefaultTempo
	}
	if opts.MinPulsePeriod > 0 {
		s.minPeriod = opts.MinPulsePeriod
	}
	return s
}

// PulsePeriod returns max(0.25, 60/bpm) seconds using the package defaults.
func PulsePeriod(bpm float64) float64 {
	return pulsePeriod(bpm, DefaultTempo, MinPulsePeriod)
}

func pulsePeriod(bpm, fallback, floor float64) float64 {
	if !(bpm > 0) {
		bpm = fallback
	}
	period := 60 / bpm
	if period < floor {
		return floor
	}
	return period
}

// PulsePeriod returns the pulse period in seconds for a tempo hint.
func (s *Sync) PulsePeriod(bpm float64) float64 {
	return pulsePeriod(bpm, s.defaultTempo, s.minPeriod)
}

// ResolveColor picks the flash color, then the card's cached tint, then the default.
func (s *Sync) ResolveColor(m Meta) string {
	if c, ok := NormalizeColor(m.FlashColor); ok {
		return c
	}
	if c, ok := s.tints[m.Card]; ok {
		return c
	}
	return s.defaultColor
}

// NowPlayingText formats the label shown in the now playing indicator.
func (s *Sync) NowPlayingText(m Meta) string {
	return NowPlayingText(m)
}

// NowPlayingText is "<track> — <group>", or just the group for single-track groups.
func NowPlayingText(m Meta) string {
	track := strings.TrimSpace(m.TrackLabel)
	group := strings.TrimSpace(m.GroupLabel)
	if m.SingleTrackGroup || track == "" {
		return group
	}
	if group == "" {
		return track
	}
	return track + " — " + group
}

// Signal derives the full visual signal for m.
func (s *Sync) Signal(m Meta) Signal {
	return Signal{
		Card:       m.Card,
		Period:     s.PulsePeriod(m.TempoHint),
		Color:      s.ResolveColor(m),
		NowPlaying: s.NowPlayingText(m),
		Cover:      m.Cover,
	}
}

// RememberTint caches a sampled tint for card. Invalid colors are ignored.
func (s *Sync) RememberTint(card, color string) bool {
	c, ok := NormalizeColor(color)
	if !ok || card == "" {
		return false
	}
	s.tints[card] = c
	return true
}

// Tint returns the cached tint for card.
func (s *Sync) Tint(card string) (string, bool) {
	c, ok := s.tints[card]
	return c, ok
}

// NormalizeColor turns #rgb / #rrggbb into an rgba() string. CSS functional
// notations are passed through unchanged.
func NormalizeColor(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	lower := strings.ToLower(v)
	for _, prefix := range []string{"rgb(", "rgba(", "hsl(", "hsla("} {
		if strings.HasPrefix(lower, prefix) && strings.HasSuffix(lower, ")") {
			return v, true
		}
	}

	if !strings.HasPrefix(v, "#") {
		v = "#" + v
	}
	if len(v) != 4 && len(v) != 7 {
		return "", false
	}
	c, err := colorful.Hex(v)
	if err != nil {
		return "", false
	}
	r, g, b := c.RGB255()
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", r, g, b, tintAlpha), true
}
