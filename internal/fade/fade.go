// Package fade ramps the gain of an audio channel linearly over time.
package fade

import (
	"time"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
)

// DefaultFrame approximates one display frame at 60Hz.
const DefaultFrame = 16 * time.Millisecond

// Channel is a single gain control in [0,1].
type Channel interface {
	Gain() float64
	SetGain(v float64)
}

// Ramp drives one Channel. Only one ramp runs at a time; starting a new one
// cancels the previous ramp and continues from the channel's current gain.
// All methods must be called on the scheduler's goroutine.
type Ramp struct {
	ch    Channel
	sched eventloop.Scheduler
	frame time.Duration

	timer  eventloop.Timer
	from   float64
	to     float64
	start  time.Time
	length time.Duration

	// OnStep, when set, observes every gain written by the ramp.
	OnStep func(gain float64)
}

// New creates a ramp sampling once per frame. A non-positive frame uses DefaultFrame.
func New(ch Channel, sched eventloop.Scheduler, frame time.Duration) *Ramp {
	if frame <= 0 {
		frame = DefaultFrame
	}
	return &Ramp{ch: ch, sched: sched, frame: frame}
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RampTo moves the gain to target over d. A non-positive d applies the target immediately.
func (r *Ramp) RampTo(target float64, d time.Duration) {
	r.Cancel()

	r.from = Clamp(r.ch.Gain())
	r.to = Clamp(target)
	r.start = r.sched.Now()
	r.length = d

	if d <= 0 {
		r.write(r.to)
		return
	}
	r.schedule(r.frame)
}

// Cancel stops the ramp in progress, leaving the gain where it is.
func (r *Ramp) Cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Active reports whether a ramp is in progress.
func (r *Ramp) Active() bool {
	return r.timer != nil
}

func (r *Ramp) schedule(delay time.Duration) {
	r.timer = r.sched.AfterFunc(delay, r.step)
}

func (r *Ramp) step() {
	elapsed := r.sched.Now().Sub(r.start)
	p := float64(elapsed) / float64(r.length)
	if p >= 1 {
		r.timer = nil
		r.write(r.to)
		return
	}
	r.write(r.from + (r.to-r.from)*p)

	// Land the last sample exactly on the ramp's end.
	next := r.frame
	if remaining := r.length - elapsed; remaining < next {
		next = remaining
	}
	r.schedule(next)
}

func (r *Ramp) write(v float64) {
	v = Clamp(v)
	r.ch.SetGain(v)
	if r.OnStep != nil {
		r.OnStep(v)
	}
}
