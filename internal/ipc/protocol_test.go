package ipc

import (
	"encoding/json"
	"testing"
)

func TestEncodeRequest(t *testing.T) {
	req := &Request{
		Cmd: CmdStatus,
	}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}

	// Verify it's valid JSON
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Result is not valid JSON: %v", err)
	}

	if decoded["cmd"] != "status" {
		t.Errorf("Expected cmd 'status', got '%v'", decoded["cmd"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("Expected data to be omitted")
	}
}

func TestDecodeRequestWithData(t *testing.T) {
	data := []byte(`{"cmd":"enter","data":{"group":{"id":"alb-1","title":"First Light","tracks":[{"title":"Intro","bpm":150,"preview_url":"/p/intro.mp3"}]}}}`)

	req, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}

	if req.Cmd != CmdEnter {
		t.Errorf("Expected cmd 'enter', got '%s'", req.Cmd)
	}

	var g GroupRequest
	if err := json.Unmarshal(req.Data, &g); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}

	if g.Group.ID != "alb-1" {
		t.Errorf("Expected id 'alb-1', got '%s'", g.Group.ID)
	}
	if len(g.Group.Tracks) != 1 || g.Group.Tracks[0].BPM != 150 {
		t.Errorf("Expected one track at 150 bpm, got %+v", g.Group.Tracks)
	}
}

func TestDecodeRequestInvalid(t *testing.T) {
	_, err := DecodeRequest([]byte(`not valid json`))
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(CmdLeave, CardRequest{Card: "alb-1"})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if string(req.Data) != `{"card":"alb-1"}` {
		t.Errorf("Expected card payload, got %s", req.Data)
	}

	req, err = NewRequest(CmdClickOutside, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Data != nil {
		t.Errorf("Expected no data, got %s", req.Data)
	}
}

func TestNewSuccessResponse(t *testing.T) {
	resp, err := NewSuccessResponse(GainPush{Gain: 0.5})
	if err != nil {
		t.Fatalf("NewSuccessResponse failed: %v", err)
	}

	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if resp.Error != "" {
		t.Errorf("Expected empty error, got '%s'", resp.Error)
	}

	var push GainPush
	if err := json.Unmarshal(resp.Data, &push); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	if push.Gain != 0.5 {
		t.Errorf("Expected gain 0.5, got %v", push.Gain)
	}
}

func TestNewSuccessResponseNilData(t *testing.T) {
	resp, err := NewSuccessResponse(nil)
	if err != nil {
		t.Fatalf("NewSuccessResponse failed: %v", err)
	}
	if resp.Data != nil {
		t.Errorf("Expected nil data, got %s", resp.Data)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something went wrong")

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Error != "something went wrong" {
		t.Errorf("Expected error 'something went wrong', got '%s'", resp.Error)
	}
}

func TestNewPushMessage(t *testing.T) {
	msg, err := NewPushMessage(PushGain, GainPush{Gain: 0.25})
	if err != nil {
		t.Fatalf("NewPushMessage failed: %v", err)
	}

	var push PushMessage
	if err := json.Unmarshal(msg, &push); err != nil {
		t.Fatalf("Failed to unmarshal push: %v", err)
	}
	if push.Type != "gain" {
		t.Errorf("Expected type 'gain', got '%s'", push.Type)
	}
	if string(push.Data) != `{"gain":0.25}` {
		t.Errorf("Expected gain payload, got %s", push.Data)
	}
}

func TestIsGesture(t *testing.T) {
	tests := map[string]bool{
		"pointerdown": true,
		"keydown":     true,
		"touchstart":  true,
		"click":       true,
		"pointermove": false,
		"scroll":      false,
		"":            false,
	}
	for kind, want := range tests {
		if got := IsGesture(kind); got != want {
			t.Errorf("IsGesture(%q): expected %v, got %v", kind, want, got)
		}
	}
}
