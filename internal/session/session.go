// Package session owns the shared preview player and decides which request is
// audible. Every method must run on the scheduler's goroutine.
package session

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/fade"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Resource is the single audio element shared by every card.
type Resource interface {
	// Start loads url and plays it from the beginning. done is invoked on
	// the session's goroutine once playback started or failed.
	Start(url string, done func(err error))
	Pause()
	Paused() bool
	Gain() float64
	SetGain(v float64)
}

// Preference is the user's stored audio preference.
type Preference struct {
	Muted  bool    `json:"muted"`
	Volume float64 `json:"volume"`
}

// PreferenceSource is read every time a fade begins.
type PreferenceSource interface {
	Preference() Preference
}

// State is a read-only copy of the session's playback state.
type State struct {
	CurrentURL     string `json:"current_url"`
	CurrentCard    string `json:"current_card"`
	IsFadingOut    bool   `json:"is_fading_out"`
	EndFadeArmed   bool   `json:"end_fade_armed"`
	EndFadeAllowed bool   `json:"end_fade_allowed"`
	SessionToken   uint64 `json:"session_token"`
}

// Status extends State with the session's inputs, for diagnostics.
type Status struct {
	State
	Unlocked bool       `json:"unlocked"`
	Ducked   bool       `json:"ducked"`
	Playing  bool       `json:"playing"`
	Gain     float64    `json:"gain"`
	Pref     Preference `json:"preference"`
}

// Session arbitrates play and stop requests over one Resource.
type Session struct {
	res    Resource
	sched  eventloop.Scheduler
	prefs  PreferenceSource
	sync   *visual.Sync
	board  *visual.Board
	opts   Options
	logger *log.Logger

	ramp    *fade.Ramp
	watcher *Watcher

	state State

	unlocked bool
	ducked   bool

	// swapping is set while a source change waits for its quick fade.
	swapping bool

	// latestCard owns the most recent play intent.
	latestCard string
	gateCard   string

	pendingStop eventloop.Timer
}

// New creates a session. Zero options are replaced by DefaultOptions.
func New(res Resource, sched eventloop.Scheduler, prefs PreferenceSource, sync *visual.Sync, board *visual.Board, opts Options, logger *log.Logger) *Session {
	opts = opts.withDefaults()
	s := &Session{
		res:     res,
		sched:   sched,
		prefs:   prefs,
		sync:    sync,
		board:   board,
		opts:    opts,
		logger:  logging.Component(logger, "session"),
		watcher: NewWatcher(opts.MinEndFadeDuration, opts.EndFadeFraction, opts.FadeOut),
	}
	s.ramp = fade.New(res, sched, opts.Frame)
	s.ramp.OnStep = board.PublishGain
	return s
}

// Dispatch applies an intent from the hover router.
func (s *Session) Dispatch(in Intent) {
	switch v := in.(type) {
	case PlayIntent:
		s.RequestPlay(v.Request)
	case StopIntent:
		if v.Card == "" {
			s.RequestStop()
		} else {
			s.RequestStopFor(v.Card)
		}
	}
}

// State returns a copy of the playback state.
func (s *Session) State() State {
	st := s.state
	st.EndFadeAllowed = s.watcher.Allowed()
	st.EndFadeArmed = s.watcher.Armed()
	return st
}

// Status returns the state together with the session's inputs.
func (s *Session) Status() Status {
	return Status{
		State:    s.State(),
		Unlocked: s.unlocked,
		Ducked:   s.ducked,
		Playing:  !s.res.Paused(),
		Gain:     s.res.Gain(),
		Pref:     s.prefs.Preference(),
	}
}

// Unlocked reports whether a user gesture has been seen.
func (s *Session) Unlocked() bool {
	return s.unlocked
}

// Unlock records the first user gesture; audio is refused until then.
func (s *Session) Unlock() {
	if s.unlocked {
		return
	}
	s.unlocked = true
	s.board.HideGatePrompt()
	s.board.Flush()
	s.logger.Debug("audio unlocked")
}

// RequestPlay makes req the audible preview.
func (s *Session) RequestPlay(req PlayRequest) {
	if !s.unlocked {
		s.gatedPlay(req)
		return
	}

	req.URL = NormalizeURL(req.URL, s.opts.MediaBase)
	if req.URL == "" {
		s.logger.Debug("ignoring play request", "card", req.Card, "err", ErrEmptyURL)
		return
	}
	req.Cover = NormalizeURL(req.Cover, s.opts.MediaBase)
	s.latestCard = req.Card
	if s.gateCard != "" && s.gateCard != req.Card {
		s.board.SetPulsing(s.gateCard, false, 0)
	}
	s.gateCard = ""

	if req.URL == s.state.CurrentURL && !s.res.Paused() {
		if s.swapping {
			// The clip is still audible; drop the swap away from it.
			s.state.SessionToken++
			s.swapping = false
			s.logger.Debug("swap abandoned", "url", req.URL)
		}
		s.reaffirm(req)
		return
	}
	s.swap(req)
}

// gatedPlay shows which card would play until the user interacts.
func (s *Session) gatedPlay(req PlayRequest) {
	if s.gateCard != "" && s.gateCard != req.Card {
		s.board.SetPulsing(s.gateCard, false, 0)
	}
	s.gateCard = req.Card
	s.board.SetPulsing(req.Card, true, s.sync.PulsePeriod(req.TempoHint))
	s.board.ShowGatePrompt()
	s.board.Flush()
}

func (s *Session) reaffirm(req PlayRequest) {
	s.cancelPendingStop()
	s.state.IsFadingOut = false
	s.ramp.RampTo(s.target(), s.opts.ReaffirmFade)

	if prev := s.state.CurrentCard; prev != req.Card {
		s.board.SetPulsing(prev, false, 0)
		s.state.CurrentCard = req.Card
	}
	s.board.Apply(s.sync.Signal(req.Meta()))
	s.board.Flush()
}

func (s *Session) swap(req PlayRequest) {
	s.cancelPendingStop()
	s.state.SessionToken++
	token := s.state.SessionToken

	s.state.IsFadingOut = false
	s.swapping = true
	s.ramp.RampTo(0, s.opts.SwapFade)

	s.sched.AfterFunc(s.opts.SwapFade, func() {
		s.startSource(token, req)
	})
}

func (s *Session) startSource(token uint64, req PlayRequest) {
	if token != s.state.SessionToken {
		s.logger.Debug("swap superseded", "token", token, "url", req.URL)
		return
	}
	s.swapping = false
	s.ramp.RampTo(0, 0)

	prev := s.state.CurrentCard
	s.state.CurrentURL = req.URL
	s.state.CurrentCard = req.Card
	s.watcher.Disarm()

	if prev != "" && prev != req.Card {
		s.board.SetPulsing(prev, false, 0)
		s.board.Flush()
	}

	s.res.Start(req.URL, func(err error) {
		s.started(token, req, err)
	})
}

func (s *Session) started(token uint64, req PlayRequest, err error) {
	if token != s.state.SessionToken {
		s.logger.Debug("start superseded", "token", token, "url", req.URL)
		return
	}
	if err != nil {
		s.logger.Debug("preview did not start", "url", req.URL, "err", err)
		s.state.CurrentURL = ""
		s.state.CurrentCard = ""
		s.board.ClearPlayback()
		s.board.Flush()
		return
	}

	s.ramp.RampTo(s.target(), s.opts.FadeIn)
	s.watcher.Reset(req.AutoEndFade)
	s.board.Apply(s.sync.Signal(req.Meta()))
	s.board.Flush()
}

// RequestStop fades out and pauses whatever is playing.
func (s *Session) RequestStop() {
	s.cancelPendingStop()
	s.latestCard = ""
	s.gateCard = ""

	// Advancing the token abandons swaps that have not started yet.
	s.state.SessionToken++
	token := s.state.SessionToken

	s.swapping = false
	s.state.IsFadingOut = true
	s.watcher.Disarm()
	s.ramp.RampTo(0, s.opts.FadeOut)

	s.pendingStop = s.sched.AfterFunc(s.opts.FadeOut+s.opts.StopSlack, func() {
		s.finishStop(token)
	})
}

func (s *Session) finishStop(token uint64) {
	s.pendingStop = nil
	if token != s.state.SessionToken {
		return
	}
	s.res.Pause()
	s.state.IsFadingOut = false
	s.board.ClearPlayback()
	s.board.Flush()
}

// RequestStopFor stops on behalf of card. A card that no longer owns the
// latest play intent only has its own visuals cleared.
func (s *Session) RequestStopFor(card string) {
	if !s.unlocked || (s.latestCard != "" && s.latestCard != card) {
		if card == s.gateCard {
			s.gateCard = ""
		}
		s.board.SetPulsing(card, false, 0)
		s.board.Flush()
		return
	}
	s.RequestStop()
}

func (s *Session) cancelPendingStop() {
	if s.pendingStop != nil {
		s.pendingStop.Stop()
		s.pendingStop = nil
	}
}

// target is the gain a fade-in aims for right now.
func (s *Session) target() float64 {
	p := s.prefs.Preference()
	if p.Muted || s.ducked {
		return 0
	}
	return fade.Clamp(p.Volume)
}

// retarget moves the gain to the current target unless a fade-out owns it.
func (s *Session) retarget(d time.Duration) {
	if s.state.IsFadingOut || s.swapping || s.res.Paused() {
		return
	}
	s.ramp.RampTo(s.target(), d)
}

// PreferencesChanged re-applies the stored preference to the playing preview.
func (s *Session) PreferencesChanged() {
	s.retarget(s.opts.ReaffirmFade)
}

// Duck silences the preview while another player is active.
func (s *Session) Duck() {
	s.ducked = true
	s.retarget(s.opts.DuckFade)
}

// Unduck restores the preference-derived gain.
func (s *Session) Unduck() {
	s.ducked = false
	s.retarget(s.opts.UnduckFade)
}

// Ducked reports whether the session is ducked.
func (s *Session) Ducked() bool {
	return s.ducked
}

// OnProgress receives playback progress from the resource.
func (s *Session) OnProgress(pos, dur time.Duration) {
	if s.state.IsFadingOut || s.swapping {
		return
	}
	length, ok := s.watcher.Observe(pos, dur, s.res.Gain())
	if !ok {
		return
	}
	s.logger.Debug("fading out near end", "url", s.state.CurrentURL, "fade", length)
	s.state.IsFadingOut = true
	s.ramp.RampTo(0, length)
}

// OnEnded is called when the current clip finished on its own.
func (s *Session) OnEnded() {
	s.state.IsFadingOut = false
	s.watcher.Disarm()
	s.board.ClearPlayback()
	s.board.Flush()
}
