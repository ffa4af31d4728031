package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"kaleido/internal/config"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingPath returns the explicit recording file, or a timestamped name
// inside the output directory, creating the directory.
func RecordingPath(cfg config.RecordingConfig, now time.Time) (string, error) {
	if cfg.File != "" {
		return cfg.File, nil
	}
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	return filepath.Join(dir, "kaleido-"+now.Format("20060102-150405")+".wav"), nil
}

func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	bitDepth := e.config.Recording.BitDepth
	switch bitDepth {
	case 16, 24, 32:
	case 0:
		bitDepth = 32
	default:
		return fmt.Errorf("unsupported recording bit depth: %d", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	sampleRate := int(e.config.Audio.SampleRate)
	e.wavEncoder = wav.NewEncoder(file, sampleRate, bitDepth, e.channels, 1)
	e.recordShift = uint(32 - bitDepth)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
		Data:           make([]int, e.config.Audio.FramesPerBuffer*e.channels),
	}

	atomic.StoreInt32(&e.isRecording, 1)
	alog.Infof("recording input to %s (%d-bit)", filename, bitDepth)

	return nil
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

// IsRecording reports whether input is being written to disk.
func (e *Engine) IsRecording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

// writeRecording converts one interleaved buffer to the encoder's depth and
// appends it.
func (e *Engine) writeRecording(buffer []int32) {
	data := e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	n := min(len(buffer), len(data))
	for i := range n {
		data[i] = int(buffer[i] >> e.recordShift)
	}
	e.sampleBuf.Data = data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		alog.Errorf("error writing to WAV file: %v", err)
	}
}
