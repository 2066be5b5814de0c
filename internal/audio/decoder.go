package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxClip bounds how much of a source is decoded into memory.
const maxClip = 5 * time.Minute

var (
	// ErrUnsupportedFormat is returned when no decoder handles a source.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFFmpegMissing is returned when ffmpeg is required but not installed.
	ErrFFmpegMissing = errors.New("ffmpeg not found in PATH")
)

// Decoder turns a source into interleaved signed 16-bit little-endian PCM.
type Decoder interface {
	Decode(ctx context.Context, src string, sampleRate, channels int) ([]byte, error)
}

// clipLimit returns the byte budget for maxClip at the given format.
func clipLimit(sampleRate, channels int) int {
	return int(maxClip/time.Second) * sampleRate * channels * bytesPerSample
}

// FFmpegDecoder uses FFmpeg for audio decoding
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a new FFmpeg-based decoder
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegMissing, err)
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}, nil
}

// Decode runs ffmpeg on src, which may be a path or an http(s) url.
func (d *FFmpegDecoder) Decode(ctx context.Context, src string, sampleRate, channels int) ([]byte, error) {
	args := []string{
		"-nostdin",
		"-v", "error",
		"-i", src,
		"-t", fmt.Sprintf("%.0f", maxClip.Seconds()),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var pcm bytes.Buffer
	limit := clipLimit(sampleRate, channels)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 && pcm.Len() < limit {
			pcm.Write(buf[:n])
		}
		if readErr != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("ffmpeg failed: %s", msg)
	}
	if pcm.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", src)
	}
	return alignFrames(pcm.Bytes(), channels), nil
}

// alignFrames trims a trailing partial frame.
func alignFrames(pcm []byte, channels int) []byte {
	frame := channels * bytesPerSample
	return pcm[:len(pcm)-len(pcm)%frame]
}

// AutoDecoder decodes mp3 and wav natively and hands everything else, or
// anything the native path rejects, to ffmpeg when it is available.
type AutoDecoder struct {
	Native *BeepDecoder
	FFmpeg *FFmpegDecoder
}

// Decode implements Decoder.
func (d *AutoDecoder) Decode(ctx context.Context, src string, sampleRate, channels int) ([]byte, error) {
	var nativeErr error
	if d.Native != nil && d.Native.Supports(src) {
		pcm, err := d.Native.Decode(ctx, src, sampleRate, channels)
		if err == nil || ctx.Err() != nil {
			return pcm, err
		}
		nativeErr = err
	}
	if d.FFmpeg != nil {
		return d.FFmpeg.Decode(ctx, src, sampleRate, channels)
	}
	if nativeErr != nil {
		return nil, nativeErr
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
}

// NewDecoder builds the decoder named by kind: "native", "ffmpeg" or "auto".
func NewDecoder(kind string) (Decoder, error) {
	native := NewBeepDecoder(nil)
	switch kind {
	case "native":
		return native, nil
	case "ffmpeg":
		return NewFFmpegDecoder()
	case "", "auto":
		ff, err := NewFFmpegDecoder()
		if err != nil {
			ff = nil
		}
		return &AutoDecoder{Native: native, FFmpeg: ff}, nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", kind)
	}
}
