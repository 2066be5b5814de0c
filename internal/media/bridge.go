package media

import (
	"net/url"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Bridge mirrors the now playing indicator into an OS media session and
// turns the OS's stop controls into a stop on the event loop.
type Bridge struct {
	session Session
	post    eventloop.Poster
	stop    func()
	logger  *log.Logger

	// Loop-confined.
	playing bool
	title   string
	cover   string
}

// NewBridge wires s. stop runs on the loop when the OS asks playback to end.
func NewBridge(s Session, post eventloop.Poster, stop func(), logger *log.Logger) *Bridge {
	b := &Bridge{
		session: s,
		post:    post,
		stop:    stop,
		logger:  logging.Component(logger, "media"),
	}
	s.SetCommandHandler(b)
	return b
}

// OnCommand implements CommandHandler. Play is refused: previews only start
// from a hover.
func (b *Bridge) OnCommand(cmd Command) error {
	switch cmd {
	case CmdStop, CmdPause, CmdPlayPause:
		b.logger.Debug("os media command", "cmd", cmd)
		b.post.Post(b.stop)
	}
	return nil
}

// PublishVisual implements visual.Publisher.
func (b *Bridge) PublishVisual(s visual.Snapshot) {
	if s.NowPlayingVisible && (s.NowPlaying != b.title || s.NowPlayingCover != b.cover) {
		b.title = s.NowPlaying
		b.cover = s.NowPlayingCover
		meta := Metadata{Title: s.NowPlaying, ArtURL: artURL(s.NowPlayingCover)}
		if err := b.session.UpdateMetadata(meta); err != nil {
			b.logger.Debug("failed to update metadata", "err", err)
		}
	}
	if s.NowPlayingVisible == b.playing {
		return
	}
	b.playing = s.NowPlayingVisible
	state := StateStopped
	if b.playing {
		state = StatePlaying
	}
	if err := b.session.UpdatePlaybackState(state); err != nil {
		b.logger.Debug("failed to update playback state", "err", err)
	}
}

// PublishGain implements visual.Publisher. The OS only sees the label.
func (b *Bridge) PublishGain(float64) {}

// artURL turns a cover location into the URI form media sessions expect.
// Relative paths cannot be resolved by the OS and are dropped.
func artURL(cover string) string {
	if cover == "" {
		return ""
	}
	if u, err := url.Parse(cover); err == nil && len(u.Scheme) > 1 {
		return cover
	}
	if !filepath.IsAbs(cover) {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(cover)}).String()
}

// Close releases the OS session.
func (b *Bridge) Close() error {
	return b.session.Close()
}
