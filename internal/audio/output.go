package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 2
	bytesPerSample    = 2 // 16-bit

	// Bound oto's read-ahead so gain changes are heard within a few frames.
	// 50ms at 44100Hz stereo 16-bit = 8820 bytes
	bufferMs = 50
)

// device is the part of oto.Player the output drives.
type device interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// Output plays one decoded clip at a time through Oto and applies the gain
// to every sample it hands out.
type Output struct {
	context    *oto.Context
	player     device
	sampleRate int
	channels   int

	mu     sync.Mutex
	cond   *sync.Cond // wakes Read on Play and Close
	clip   []byte
	offset int
	gain   float64
	paused bool
	closed bool
	onEnd  func()
}

// NewOutput creates an Oto-backed output.
func NewOutput(sampleRate, channels int) (*Output, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if channels <= 0 {
		channels = defaultChannels
	}

	ctx, ready, err := oto.NewContext(sampleRate, channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o := newOutput(sampleRate, channels)
	o.context = ctx

	player := ctx.NewPlayer(o)
	if s, ok := player.(interface{ SetBufferSize(int) }); ok {
		s.SetBufferSize(sampleRate * channels * bytesPerSample * bufferMs / 1000)
	}
	o.player = player
	return o, nil
}

func newOutput(sampleRate, channels int) *Output {
	o := &Output{
		sampleRate: sampleRate,
		channels:   channels,
		paused:     true,
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Read implements io.Reader for the Oto player.
func (o *Output) Read(p []byte) (int, error) {
	o.mu.Lock()

	for o.paused && !o.closed {
		o.cond.Wait()
	}
	if o.closed {
		o.mu.Unlock()
		return 0, io.EOF
	}

	// Past the end of the clip: silence keeps the stream alive.
	if o.offset >= len(o.clip) {
		o.mu.Unlock()
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, o.clip[o.offset:])
	o.offset += n
	applyGain(p[:n], o.gain)

	// The end is reported once the last bytes reach the device buffer, so
	// it leads the audible end by up to one buffer of latency.
	var ended func()
	if o.offset >= len(o.clip) {
		o.paused = true
		ended, o.onEnd = o.onEnd, nil
	}
	o.mu.Unlock()

	if ended != nil {
		ended()
	}
	return n, nil
}

// applyGain scales 16-bit little-endian PCM samples in place.
func applyGain(data []byte, gain float64) {
	if gain >= 1.0 {
		return
	}
	for i := 0; i < len(data)-1; i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * gain)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// Load replaces the clip and rewinds. onEnd runs once when the clip has been
// read to its end. The output stays paused until Play.
func (o *Output) Load(pcm []byte, onEnd func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.paused = true
	if o.player != nil && o.player.IsPlaying() {
		o.player.Pause()
	}
	o.clip = pcm
	o.offset = 0
	o.onEnd = onEnd
}

// Play starts or resumes the clip.
func (o *Output) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.offset >= len(o.clip) {
		return
	}
	o.paused = false
	o.cond.Broadcast()
	if o.player != nil && !o.player.IsPlaying() {
		o.player.Play()
	}
}

// Pause pauses playback, keeping the position.
func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.paused = true // before pausing the device so Read cannot resume it
	if o.player != nil && o.player.IsPlaying() {
		o.player.Pause()
	}
}

// Paused reports whether the output is silent because it is paused or done.
func (o *Output) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// SetGain sets the gain, clamped to [0,1].
func (o *Output) SetGain(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	o.gain = v
}

// Gain returns the current gain.
func (o *Output) Gain() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gain
}

func (o *Output) bytesToDuration(n int) time.Duration {
	perSecond := o.sampleRate * o.channels * bytesPerSample
	if perSecond == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(perSecond))
}

// Position returns how much of the clip has been handed to the device.
func (o *Output) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bytesToDuration(o.offset)
}

// Duration returns the length of the loaded clip.
func (o *Output) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bytesToDuration(len(o.clip))
}

// SampleRate returns the sample rate
func (o *Output) SampleRate() int {
	return o.sampleRate
}

// Channels returns the number of channels
func (o *Output) Channels() int {
	return o.channels
}

// Close releases the audio output resources
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.cond.Broadcast()
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Ensure Output implements io.Reader
var _ io.Reader = (*Output)(nil)
