package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// BeepDecoder decodes mp3 and wav sources in-process.
type BeepDecoder struct {
	open Opener
}

// NewBeepDecoder creates a decoder reading sources through open. A nil
// opener uses OpenSource.
func NewBeepDecoder(open Opener) *BeepDecoder {
	if open == nil {
		open = OpenSource
	}
	return &BeepDecoder{open: open}
}

// Supports reports whether src has an extension the decoder understands.
func (d *BeepDecoder) Supports(src string) bool {
	switch Ext(src) {
	case ".mp3", ".wav":
		return true
	}
	return false
}

// Decode implements Decoder.
func (d *BeepDecoder) Decode(ctx context.Context, src string, sampleRate, channels int) ([]byte, error) {
	rc, err := d.open(ctx, src)
	if err != nil {
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch Ext(src) {
	case ".mp3":
		streamer, format, err = mp3.Decode(rc)
	case ".wav":
		streamer, format, err = wav.Decode(rc)
	default:
		rc.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
	}
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", src, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if target := beep.SampleRate(sampleRate); format.SampleRate != target {
		s = beep.Resample(4, format.SampleRate, target, s)
	}

	pcm, err := render(ctx, s, channels, clipLimit(sampleRate, channels))
	if err != nil {
		return nil, err
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", src, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio in %s", src)
	}
	return pcm, nil
}

// render drains s into 16-bit PCM, stopping at limit bytes.
func render(ctx context.Context, s beep.Streamer, channels, limit int) ([]byte, error) {
	samples := make([][2]float64, 1024)
	frame := make([]byte, channels*bytesPerSample)
	var pcm []byte

	for len(pcm) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := s.Stream(samples)
		for _, sample := range samples[:n] {
			if channels == 1 {
				binary.LittleEndian.PutUint16(frame, uint16(toInt16((sample[0]+sample[1])/2)))
			} else {
				binary.LittleEndian.PutUint16(frame[0:], uint16(toInt16(sample[0])))
				binary.LittleEndian.PutUint16(frame[2:], uint16(toInt16(sample[1])))
				for c := 2; c < channels; c++ {
					copy(frame[c*2:], frame[0:2])
				}
			}
			pcm = append(pcm, frame...)
		}
		if !ok {
			break
		}
	}
	if len(pcm) > limit {
		pcm = pcm[:limit]
	}
	return pcm, nil
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}
