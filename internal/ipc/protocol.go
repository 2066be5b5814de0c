// Package ipc handles inter-process communication between the daemon and clients.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/local-media/previewd/internal/catalog"
	"github.com/austinkregel/local-media/previewd/internal/session"
)

// CommandType represents the type of command
type CommandType string

const (
	// Input events
	CmdGesture      CommandType = "gesture"
	CmdEnter        CommandType = "enter"
	CmdLeave        CommandType = "leave"
	CmdHoverTrack   CommandType = "hoverTrack"
	CmdToggle       CommandType = "toggle"
	CmdClickOutside CommandType = "clickOutside"

	// Playback control
	CmdStop   CommandType = "stop"
	CmdDuck   CommandType = "duck"
	CmdUnduck CommandType = "unduck"
	CmdTint   CommandType = "tint"

	CmdStatus   CommandType = "status"
	CmdGetPrefs CommandType = "getPrefs"
	CmdSetPrefs CommandType = "setPrefs"

	// Push subscriptions
	CmdSubscribe   CommandType = "subscribe"
	CmdUnsubscribe CommandType = "unsubscribe"
)

// Push message types
const (
	PushVisual = "visual"
	PushGain   = "gain"
)

// gestureKinds are the input events that count as a user gesture.
var gestureKinds = map[string]bool{
	"pointerdown": true,
	"keydown":     true,
	"touchstart":  true,
	"click":       true,
}

// IsGesture reports whether an input event of this kind unlocks audio.
func IsGesture(kind string) bool {
	return gestureKinds[kind]
}

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// GestureRequest is the data for a gesture command
type GestureRequest struct {
	Kind string `json:"kind"`
}

// GroupRequest is the data for enter and toggle commands. Position is the
// card's place in the client's list and names groups that carry no id.
type GroupRequest struct {
	Group    catalog.Group `json:"group"`
	Position int           `json:"position,omitempty"`
}

// CardRequest is the data for leave and stop commands. An empty card on
// stop means a global stop.
type CardRequest struct {
	Card string `json:"card"`
}

// HoverTrackRequest is the data for a hoverTrack command
type HoverTrackRequest struct {
	Group    catalog.Group `json:"group"`
	Position int           `json:"position,omitempty"`
	Index    int           `json:"index"`
}

// TintRequest is the data for a tint command
type TintRequest struct {
	Card  string `json:"card"`
	Color string `json:"color"`
}

// SetPrefsRequest is the data for a setPrefs command
type SetPrefsRequest struct {
	Values map[string]string `json:"values"`
}

// PrefsResponse is the response to getPrefs and setPrefs
type PrefsResponse struct {
	Path   string             `json:"path"`
	Values map[string]string  `json:"values"`
	Pref   session.Preference `json:"preference"`
}

// SubscribeRequest is the data for a subscribe command. Gain pushes are opt-in.
type SubscribeRequest struct {
	Gain bool `json:"gain"`
}

// StatusResponse is the response to a status command
type StatusResponse struct {
	session.Status
	OpenCards  []string `json:"open_cards"`
	GlowColor  string   `json:"glow_color"`
	NowPlaying string   `json:"now_playing"`
	Visible    bool     `json:"now_playing_visible"`
	GatePrompt bool     `json:"gate_prompt"`
}

// GainPush is the data of a gain push
type GainPush struct {
	Gain float64 `json:"gain"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// NewRequest builds a request with data marshaled as its payload
func NewRequest(cmd CommandType, data interface{}) (*Request, error) {
	req := &Request{Cmd: cmd}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		req.Data = raw
	}
	return req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}
