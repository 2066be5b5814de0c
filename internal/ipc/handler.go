package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/catalog"
	"github.com/austinkregel/local-media/previewd/internal/hover"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/prefs"
	"github.com/austinkregel/local-media/previewd/internal/session"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Doer runs fn on the event loop and waits for it.
type Doer interface {
	Do(ctx context.Context, fn func()) error
}

// TintSaver persists sampled tints.
type TintSaver interface {
	Put(card, color string) error
}

// Deps are the components a Handler drives. Tints may be nil.
type Deps struct {
	Loop    Doer
	Session *session.Session
	Router  *hover.Router
	Board   *visual.Board
	Sync    *visual.Sync
	Prefs   *prefs.Store
	Tints   TintSaver
}

// Handler executes commands. Everything that touches playback state runs
// on the loop.
type Handler struct {
	Deps
	logger *log.Logger
}

// NewHandler creates a command handler
func NewHandler(deps Deps, logger *log.Logger) *Handler {
	return &Handler{Deps: deps, logger: logging.Component(logger, "ipc")}
}

// Handle executes one request. Subscriptions are connection-scoped and
// handled by the server.
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	switch req.Cmd {
	case CmdGesture:
		return h.handleGesture(ctx, req)
	case CmdEnter:
		return h.withGroup(ctx, req, h.Router.Enter)
	case CmdToggle:
		return h.withGroup(ctx, req, h.Router.Toggle)
	case CmdLeave:
		return h.handleLeave(ctx, req)
	case CmdHoverTrack:
		return h.handleHoverTrack(ctx, req)
	case CmdClickOutside:
		return h.run(ctx, h.Router.ClickOutside)
	case CmdStop:
		return h.handleStop(ctx, req)
	case CmdDuck:
		return h.run(ctx, h.Session.Duck)
	case CmdUnduck:
		return h.run(ctx, h.Session.Unduck)
	case CmdTint:
		return h.handleTint(ctx, req)
	case CmdStatus:
		return h.handleStatus(ctx)
	case CmdGetPrefs:
		return h.prefsResponse()
	case CmdSetPrefs:
		return h.handleSetPrefs(ctx, req)
	default:
		return NewErrorResponse("unknown command")
	}
}

// run executes fn on the loop and publishes whatever it changed.
func (h *Handler) run(ctx context.Context, fn func()) *Response {
	err := h.Loop.Do(ctx, func() {
		fn()
		h.Board.Flush()
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewSuccessResponse(nil)
	return resp
}

func decode(req *Request, v interface{}) error {
	if len(req.Data) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s request: %w", req.Cmd, err)
	}
	return nil
}

func (h *Handler) handleGesture(ctx context.Context, req *Request) *Response {
	var g GestureRequest
	if err := decode(req, &g); err != nil {
		return NewErrorResponse(err.Error())
	}
	if !IsGesture(g.Kind) {
		return NewErrorResponse(fmt.Sprintf("%q is not a user gesture", g.Kind))
	}
	return h.run(ctx, h.Session.Unlock)
}

func (h *Handler) withGroup(ctx context.Context, req *Request, fn func(catalog.Group)) *Response {
	var g GroupRequest
	if err := decode(req, &g); err != nil {
		return NewErrorResponse(err.Error())
	}
	g.Group.ID = g.Group.CardID(g.Position)
	return h.run(ctx, func() { fn(g.Group) })
}

func (h *Handler) handleLeave(ctx context.Context, req *Request) *Response {
	var c CardRequest
	if err := decode(req, &c); err != nil {
		return NewErrorResponse(err.Error())
	}
	if c.Card == "" {
		return NewErrorResponse(session.ErrNoCard.Error())
	}
	return h.run(ctx, func() { h.Router.Leave(c.Card) })
}

func (h *Handler) handleHoverTrack(ctx context.Context, req *Request) *Response {
	var t HoverTrackRequest
	if err := decode(req, &t); err != nil {
		return NewErrorResponse(err.Error())
	}
	t.Group.ID = t.Group.CardID(t.Position)
	if t.Index < 0 || t.Index >= len(t.Group.Tracks) {
		return NewErrorResponse(fmt.Sprintf("track %d out of range", t.Index))
	}
	if err := t.Group.Request(t.Group.Tracks[t.Index], false).Validate(); err != nil {
		return NewErrorResponse(fmt.Sprintf("track %d: %v", t.Index, err))
	}

	played := false
	resp := h.run(ctx, func() { played = h.Router.HoverTrack(t.Group, t.Index) })
	if resp.Success && !played {
		return NewErrorResponse(fmt.Sprintf("track %d has no preview", t.Index))
	}
	return resp
}

func (h *Handler) handleStop(ctx context.Context, req *Request) *Response {
	var c CardRequest
	if len(req.Data) > 0 {
		if err := decode(req, &c); err != nil {
			return NewErrorResponse(err.Error())
		}
	}
	return h.run(ctx, func() { h.Session.Dispatch(session.StopIntent{Card: c.Card}) })
}

func (h *Handler) handleTint(ctx context.Context, req *Request) *Response {
	var t TintRequest
	if err := decode(req, &t); err != nil {
		return NewErrorResponse(err.Error())
	}
	if t.Card == "" {
		return NewErrorResponse(session.ErrNoCard.Error())
	}
	color, ok := visual.NormalizeColor(t.Color)
	if !ok {
		return NewErrorResponse(fmt.Sprintf("invalid color %q", t.Color))
	}

	resp := h.run(ctx, func() { h.Sync.RememberTint(t.Card, color) })
	if !resp.Success || h.Tints == nil {
		return resp
	}
	if err := h.Tints.Put(t.Card, color); err != nil {
		h.logger.Warn("failed to persist tint", "card", t.Card, "err", err)
	}
	return resp
}

func (h *Handler) handleStatus(ctx context.Context) *Response {
	var status StatusResponse
	err := h.Loop.Do(ctx, func() {
		snap := h.Board.Snapshot()
		status = StatusResponse{
			Status:     h.Session.Status(),
			OpenCards:  h.Board.OpenCards(),
			GlowColor:  snap.GlowColor,
			NowPlaying: snap.NowPlaying,
			Visible:    snap.NowPlayingVisible,
			GatePrompt: snap.GatePrompt,
		}
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewSuccessResponse(status)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (h *Handler) prefsResponse() *Response {
	resp, err := NewSuccessResponse(PrefsResponse{
		Path:   h.Prefs.Path(),
		Values: h.Prefs.All(),
		Pref:   h.Prefs.Preference(),
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (h *Handler) handleSetPrefs(ctx context.Context, req *Request) *Response {
	var p SetPrefsRequest
	if err := decode(req, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	if len(p.Values) == 0 {
		return NewErrorResponse("no values to set")
	}
	for key, value := range p.Values {
		if _, err := prefs.Normalize(key, value); err != nil {
			return NewErrorResponse(err.Error())
		}
	}
	for key, value := range p.Values {
		if err := h.Prefs.Set(key, value); err != nil {
			return NewErrorResponse(err.Error())
		}
	}
	h.logger.Info("preferences updated", "values", p.Values)

	if resp := h.run(ctx, h.Session.PreferencesChanged); !resp.Success {
		return resp
	}
	return h.prefsResponse()
}
