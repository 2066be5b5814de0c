package session

import "time"

// audibleFloor is the gain below which an end fade is pointless.
const audibleFloor = 0.01

// Watcher decides when a clip nearing its end should fade out by itself.
// Eligibility is settled on the first progress tick with a known duration.
type Watcher struct {
	minDuration time.Duration
	fraction    float64
	fadeOut     time.Duration

	auto      bool
	evaluated bool
	allowed   bool
	armed     bool
}

// NewWatcher creates a watcher for clips of at least minDuration.
func NewWatcher(minDuration time.Duration, fraction float64, fadeOut time.Duration) *Watcher {
	return &Watcher{minDuration: minDuration, fraction: fraction, fadeOut: fadeOut}
}

// Reset starts watching a new clip.
func (w *Watcher) Reset(autoEndFade bool) {
	w.auto = autoEndFade
	w.evaluated = false
	w.allowed = false
	w.armed = false
}

// Disarm stops watching the current clip.
func (w *Watcher) Disarm() {
	w.evaluated = true
	w.armed = false
}

// Allowed reports whether the current clip qualifies for an end fade.
func (w *Watcher) Allowed() bool { return w.allowed }

// Armed reports whether the end fade is still pending.
func (w *Watcher) Armed() bool { return w.armed }

// Window returns how long before the end of a clip of length dur the fade starts.
func (w *Watcher) Window(dur time.Duration) time.Duration {
	window := time.Duration(float64(dur) * w.fraction)
	if w.fadeOut < window {
		return w.fadeOut
	}
	return window
}

// Observe handles a progress tick. When the fade is due it disarms and
// returns the fade length, which is always the configured fade-out; the
// window only decides when it starts.
func (w *Watcher) Observe(pos, dur time.Duration, gain float64) (time.Duration, bool) {
	if !w.evaluated {
		if dur <= 0 {
			return 0, false
		}
		w.evaluated = true
		w.allowed = w.auto && dur >= w.minDuration
		w.armed = w.allowed
	}
	if !w.armed || dur <= 0 {
		return 0, false
	}

	window := w.Window(dur)
	if dur-pos > window || gain <= audibleFloor {
		return 0, false
	}
	w.armed = false
	return w.fadeOut, true
}
