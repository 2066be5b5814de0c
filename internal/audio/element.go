// Package audio decodes preview clips and plays them through a single output.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/session"
)

// progressInterval matches how often a media element reports timeupdate.
const progressInterval = 250 * time.Millisecond

// Sink is the playback side of Output.
type Sink interface {
	Load(pcm []byte, onEnd func())
	Play()
	Pause()
	Paused() bool
	SetGain(v float64)
	Gain() float64
	Position() time.Duration
	Duration() time.Duration
	SampleRate() int
	Channels() int
}

// Listener receives playback events on the event loop.
type Listener interface {
	OnProgress(pos, dur time.Duration)
	OnEnded()
}

// Element is the one shared audio element. Each Start begins a new
// generation; decodes, progress ticks and end events from an older
// generation are dropped.
type Element struct {
	mu         sync.Mutex
	sink       Sink
	decoder    Decoder
	post       eventloop.Poster
	listener   Listener
	logger     *log.Logger
	generation uint64
	cancel     context.CancelFunc
	current    string
	ticker     chan struct{}

	progressEvery time.Duration
}

// NewElement creates an element playing through sink. Callbacks are
// delivered through post.
func NewElement(sink Sink, decoder Decoder, post eventloop.Poster, logger *log.Logger) *Element {
	return &Element{
		sink:          sink,
		decoder:       decoder,
		post:          post,
		logger:        logging.Component(logger, "audio"),
		progressEvery: progressInterval,
	}
}

// SetListener sets the receiver of progress and end events.
func (e *Element) SetListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// Start implements session.Resource. It decodes src in the background and
// plays it from the beginning.
func (e *Element) Start(src string, done func(error)) {
	e.mu.Lock()
	e.stopLocked()
	e.generation++
	gen := e.generation
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.current = src
	e.mu.Unlock()

	go e.load(ctx, gen, src, done)
}

func (e *Element) load(ctx context.Context, gen uint64, src string, done func(error)) {
	started := time.Now()
	pcm, err := e.decoder.Decode(ctx, src, e.sink.SampleRate(), e.sink.Channels())

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.logger.Debug("load superseded", "generation", gen, "src", src)
		e.post.Post(func() { done(session.ErrSuperseded) })
		return
	}
	if err != nil {
		e.current = ""
		e.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			err = session.ErrSuperseded
		}
		e.post.Post(func() { done(err) })
		return
	}

	e.sink.Load(pcm, func() { e.ended(gen) })
	e.sink.Play()
	stop := make(chan struct{})
	e.ticker = stop
	e.mu.Unlock()

	e.logger.Debug("playing", "src", src, "duration", e.sink.Duration(), "decode", time.Since(started))
	go e.progress(gen, stop)
	e.post.Post(func() { done(nil) })
}

// progress reports position until stop is closed or the generation changes.
func (e *Element) progress(gen uint64, stop chan struct{}) {
	t := time.NewTicker(e.progressEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !e.tick(gen) {
				return
			}
		}
	}
}

func (e *Element) tick(gen uint64) bool {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return false
	}
	l := e.listener
	pos, dur := e.sink.Position(), e.sink.Duration()
	e.mu.Unlock()

	if l != nil {
		e.post.Post(func() { l.OnProgress(pos, dur) })
	}
	return true
}

func (e *Element) ended(gen uint64) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.stopTickerLocked()
	l := e.listener
	e.mu.Unlock()

	e.logger.Debug("ended", "generation", gen)
	if l != nil {
		e.post.Post(l.OnEnded)
	}
}

// Pause stops playback and abandons any load in flight.
func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.generation++
}

func (e *Element) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.stopTickerLocked()
	e.sink.Pause()
}

func (e *Element) stopTickerLocked() {
	if e.ticker != nil {
		close(e.ticker)
		e.ticker = nil
	}
}

// Paused reports whether nothing is audible-capable right now.
func (e *Element) Paused() bool {
	return e.sink.Paused()
}

// Gain returns the output gain.
func (e *Element) Gain() float64 {
	return e.sink.Gain()
}

// SetGain sets the output gain.
func (e *Element) SetGain(v float64) {
	e.sink.SetGain(v)
}

// Position returns the playback position of the current clip.
func (e *Element) Position() time.Duration {
	return e.sink.Position()
}

// Duration returns the length of the current clip.
func (e *Element) Duration() time.Duration {
	return e.sink.Duration()
}

// Current returns the source being loaded or played.
func (e *Element) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Close abandons playback.
func (e *Element) Close() {
	e.Pause()
}

var _ session.Resource = (*Element)(nil)
