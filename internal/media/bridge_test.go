package media

import (
	"testing"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

type fakeSession struct {
	NoOpSession
	handler  CommandHandler
	metadata []Metadata
	states   []PlaybackState
}

func (f *fakeSession) UpdateMetadata(m Metadata) error {
	f.metadata = append(f.metadata, m)
	return nil
}

func (f *fakeSession) UpdatePlaybackState(s PlaybackState) error {
	f.states = append(f.states, s)
	return nil
}

func (f *fakeSession) SetCommandHandler(h CommandHandler) { f.handler = h }

func TestBridgeMirrorsNowPlaying(t *testing.T) {
	s := &fakeSession{}
	b := NewBridge(s, eventloop.NewManual(), func() {}, logging.Discard())

	b.PublishVisual(visual.Snapshot{NowPlaying: "Intro — Album", NowPlayingVisible: true})
	b.PublishVisual(visual.Snapshot{NowPlaying: "Intro — Album", NowPlayingVisible: true})
	b.PublishVisual(visual.Snapshot{NowPlaying: "Intro — Album", NowPlayingVisible: false})

	if len(s.metadata) != 1 || s.metadata[0].Title != "Intro — Album" {
		t.Errorf("Expected one metadata update, got %+v", s.metadata)
	}
	if len(s.states) != 2 || s.states[0] != StatePlaying || s.states[1] != StateStopped {
		t.Errorf("Expected playing then stopped, got %v", s.states)
	}
}

func TestBridgeSendsCoverArt(t *testing.T) {
	s := &fakeSession{}
	b := NewBridge(s, eventloop.NewManual(), func() {}, logging.Discard())

	b.PublishVisual(visual.Snapshot{NowPlaying: "Intro — Album", NowPlayingVisible: true, NowPlayingCover: "/srv/covers/album.jpg"})
	b.PublishVisual(visual.Snapshot{NowPlaying: "Intro — Album", NowPlayingVisible: true, NowPlayingCover: "https://example.com/b.jpg"})

	if len(s.metadata) != 2 {
		t.Fatalf("Expected a metadata update per cover, got %+v", s.metadata)
	}
	if s.metadata[0].ArtURL != "file:///srv/covers/album.jpg" {
		t.Errorf("Expected file url, got %q", s.metadata[0].ArtURL)
	}
	if s.metadata[1].ArtURL != "https://example.com/b.jpg" {
		t.Errorf("Expected http url kept, got %q", s.metadata[1].ArtURL)
	}
}

func TestArtURL(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"covers/a.jpg":          "",
		"/tmp/a b.jpg":          "file:///tmp/a%20b.jpg",
		"https://example.com/x": "https://example.com/x",
	}
	for in, want := range tests {
		if got := artURL(in); got != want {
			t.Errorf("artURL(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestBridgeCommandsStopOnLoop(t *testing.T) {
	s := &fakeSession{}
	m := eventloop.NewManual()
	stops := 0
	NewBridge(s, m, func() { stops++ }, logging.Discard())

	if s.handler == nil {
		t.Fatal("Expected bridge to register as command handler")
	}

	for _, cmd := range []Command{CmdStop, CmdPause, CmdPlayPause, CmdPlay} {
		if err := s.handler.OnCommand(cmd); err != nil {
			t.Errorf("%s: unexpected error %v", cmd, err)
		}
	}
	if stops != 0 {
		t.Fatal("Expected stop to wait for the loop")
	}

	m.Flush()
	if stops != 3 {
		t.Errorf("Expected 3 stops, got %d", stops)
	}
}

func TestCommandString(t *testing.T) {
	tests := map[Command]string{
		CmdPlay:      "Play",
		CmdPause:     "Pause",
		CmdPlayPause: "PlayPause",
		CmdStop:      "Stop",
		Command(99):  "Unknown",
	}
	for cmd, want := range tests {
		if got := cmd.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
