package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"kaleido/internal/analysis"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// Clip is a decoded PCM file with samples scaled to the full int32 range,
// interleaved by channel.
type Clip struct {
	Samples    []int32
	Channels   int
	SampleRate int
	BitDepth   int
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// LoadWAV reads a PCM WAV file into memory.
func LoadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return clip, nil
}

// DecodeWAV decodes a PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	bitDepth := int(d.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	channels := int(d.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	shift := uint(32 - bitDepth)
	samples := make([]int32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			v -= 128 // 8-bit PCM is unsigned.
		}
		samples[i] = int32(v) << shift
	}

	return &Clip{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(d.SampleRate),
		BitDepth:   bitDepth,
	}, nil
}

// startFile decodes the file and plays it on the default output device.
func (e *Engine) startFile(path string) error {
	clip, err := LoadWAV(path)
	if err != nil {
		return err
	}
	if len(clip.Samples) == 0 {
		return fmt.Errorf("audio file %s has no samples", path)
	}

	e.useClip(clip)

	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate),
		e.config.Audio.FramesPerBuffer, e.processOutputStream)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	e.stream = stream

	alog.Infof("playing %s: %d ch @ %d Hz, %d-bit, %v (loop=%t)",
		path, clip.Channels, clip.SampleRate, clip.BitDepth, clip.Duration().Round(time.Millisecond), e.config.Audio.Loop)
	return nil
}

// useClip makes clip the playback source and tells a rate-aware sink the
// clip's sample rate.
func (e *Engine) useClip(clip *Clip) {
	e.clip = clip
	e.playPos = 0
	e.channels = clip.Channels
	e.allocate(e.config.Audio.FramesPerBuffer, clip.Channels)
	if rs, ok := e.sink.(analysis.RateSink); ok {
		rs.SetSampleRate(float64(clip.SampleRate))
	}
}

// processOutputStream is the playback callback: it fills out from the clip
// and analyses exactly what is played.
func (e *Engine) processOutputStream(out []int32) {
	finished := e.fillFromClip(out)
	e.processBuffer(out)
	if finished {
		e.finish()
	}
}

// fillFromClip copies the next samples into out, wrapping when looping. It
// pads with silence and returns true once a non-looping clip is exhausted.
func (e *Engine) fillFromClip(out []int32) bool {
	samples := e.clip.Samples
	n := copy(out, samples[e.playPos:])
	e.playPos += n

	for n < len(out) {
		if !e.config.Audio.Loop || len(samples) == 0 {
			clear(out[n:])
			return true
		}
		m := copy(out[n:], samples)
		e.playPos = m
		n += m
	}
	return false
}
