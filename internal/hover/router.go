// Package hover turns raw pointer events on cards into play and stop intents.
package hover

import (
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/catalog"
	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/session"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Target receives the router's intents.
type Target interface {
	Dispatch(in session.Intent)
	Unlock()
}

// Options configure a Router.
type Options struct {
	// Grace is how long a card may be left before its preview stops.
	Grace time.Duration

	// AutoEndFade is copied onto every request the router builds.
	AutoEndFade bool

	// IntN picks a random index in [0,n). Defaults to rand.IntN.
	IntN func(n int) int
}

// Router debounces enter/leave per card. It must run on the scheduler's goroutine.
type Router struct {
	target Target
	sched  eventloop.Scheduler
	board  *visual.Board
	opts   Options
	logger *log.Logger

	timers map[string]eventloop.Timer
	last   map[string]session.PlayRequest
}

// New creates a router.
func New(target Target, sched eventloop.Scheduler, board *visual.Board, opts Options, logger *log.Logger) *Router {
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	if opts.IntN == nil {
		opts.IntN = rand.Intn
	}
	return &Router{
		target: target,
		sched:  sched,
		board:  board,
		opts:   opts,
		logger: logging.Component(logger, "hover"),
		timers: make(map[string]eventloop.Timer),
		last:   make(map[string]session.PlayRequest),
	}
}

// Enter handles the pointer entering a card. A card re-entered within its
// grace window keeps its preview; otherwise a random track is picked.
func (r *Router) Enter(g catalog.Group) {
	card := g.ID
	r.board.SetOpen(card, true)
	defer r.board.Flush()

	if r.cancelGrace(card) {
		if req, ok := r.last[card]; ok {
			r.logger.Debug("re-entered within grace", "card", card)
			r.play(req)
			return
		}
	}
	r.playPick(g)
}

// Leave handles the pointer leaving a card.
func (r *Router) Leave(card string) {
	if _, pending := r.timers[card]; pending {
		return
	}
	r.timers[card] = r.sched.AfterFunc(r.opts.Grace, func() {
		r.expire(card)
	})
}

func (r *Router) expire(card string) {
	delete(r.timers, card)
	r.board.SetOpen(card, false)
	r.target.Dispatch(session.StopIntent{Card: card})
	r.board.Flush()
}

// HoverTrack plays a specific track row of an open card.
func (r *Router) HoverTrack(g catalog.Group, index int) bool {
	if index < 0 || index >= len(g.Tracks) {
		return false
	}
	if !r.play(g.Request(g.Tracks[index], r.opts.AutoEndFade)) {
		return false
	}
	r.cancelGrace(g.ID)
	return true
}

// Toggle flips a card's tracklist. It counts as a user gesture; opening also
// starts a random preview.
func (r *Router) Toggle(g catalog.Group) {
	r.target.Unlock()

	card := g.ID
	open := !r.board.IsOpen(card)
	r.board.SetOpen(card, open)
	if open {
		r.playPick(g)
	}
	r.board.Flush()
}

// ClickOutside closes every open card and stops playback. It does nothing
// when no card is open.
func (r *Router) ClickOutside() {
	open := r.board.OpenCards()
	if len(open) == 0 {
		return
	}
	for _, card := range open {
		r.board.SetOpen(card, false)
	}
	for card := range r.timers {
		r.cancelGrace(card)
	}
	r.target.Dispatch(session.StopIntent{})
	r.board.Flush()
}

// Pending reports whether card has a grace timer running.
func (r *Router) Pending(card string) bool {
	_, ok := r.timers[card]
	return ok
}

func (r *Router) playPick(g catalog.Group) {
	track, ok := g.Pick(r.opts.IntN)
	if !ok {
		r.logger.Debug("no previewable track", "card", g.ID)
		return
	}
	r.play(g.Request(track, r.opts.AutoEndFade))
}

func (r *Router) play(req session.PlayRequest) bool {
	if err := req.Validate(); err != nil {
		r.logger.Debug("dropping play request", "card", req.Card, "err", err)
		return false
	}
	r.last[req.Card] = req
	r.target.Dispatch(session.PlayIntent{Request: req})
	return true
}

func (r *Router) cancelGrace(card string) bool {
	t, ok := r.timers[card]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.timers, card)
	return true
}
