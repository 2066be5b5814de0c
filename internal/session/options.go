package session

import (
	"time"

	"github.com/austinkregel/local-media/previewd/internal/fade"
)

// Options are the timing policy of a session.
type Options struct {
	FadeIn       time.Duration
	FadeOut      time.Duration
	SwapFade     time.Duration
	ReaffirmFade time.Duration
	DuckFade     time.Duration
	UnduckFade   time.Duration
	Frame        time.Duration

	// StopSlack is added to FadeOut before the resource is paused.
	StopSlack time.Duration

	MinEndFadeDuration time.Duration
	EndFadeFraction    float64

	// MediaBase resolves relative preview locations.
	MediaBase string
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		FadeIn:             300 * time.Millisecond,
		FadeOut:            2000 * time.Millisecond,
		SwapFade:           180 * time.Millisecond,
		ReaffirmFade:       180 * time.Millisecond,
		DuckFade:           250 * time.Millisecond,
		UnduckFade:         300 * time.Millisecond,
		Frame:              fade.DefaultFrame,
		StopSlack:          30 * time.Millisecond,
		MinEndFadeDuration: 6 * time.Second,
		EndFadeFraction:    0.25,
	}
}

// withDefaults fills zero durations from DefaultOptions. Negative values are
// kept and mean "immediately".
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	fill := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&o.FadeIn, d.FadeIn)
	fill(&o.FadeOut, d.FadeOut)
	fill(&o.SwapFade, d.SwapFade)
	fill(&o.ReaffirmFade, d.ReaffirmFade)
	fill(&o.DuckFade, d.DuckFade)
	fill(&o.UnduckFade, d.UnduckFade)
	fill(&o.Frame, d.Frame)
	fill(&o.MinEndFadeDuration, d.MinEndFadeDuration)
	if o.StopSlack < 0 {
		o.StopSlack = 0
	}
	if o.EndFadeFraction <= 0 || o.EndFadeFraction > 1 {
		o.EndFadeFraction = d.EndFadeFraction
	}
	return o
}
