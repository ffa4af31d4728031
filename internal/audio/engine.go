// SPDX-License-Identifier: MIT
/*
Package audio captures or plays audio with PortAudio and feeds a mono mixdown
to the spectral analyser.

Two sources are supported:
- Input mode captures from a device, gates quiet buffers to silence and can
  record the raw input to WAV.
- File mode decodes a PCM WAV file, plays it on the default output device and
  analyses what is played, optionally looping.

The PortAudio callbacks use pre-allocated buffers only; the analyser copies
what it needs before the callback returns.
*/
package audio

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"kaleido/internal/analysis"
	"kaleido/internal/config"
	applog "kaleido/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var alog = applog.New("audio")

type Engine struct {
	// Core configuration and state.
	config   *config.Config
	sink     analysis.SampleSink
	channels int

	onStart   func()
	startOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	// Audio input handling.
	inputBuffer  []int32
	monoBuffer   []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	stream       *portaudio.Stream

	// File playback, touched only by the output callback once started.
	clip    *Clip
	playPos int

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	recordShift uint             // Right shift from int32 to the recorded bit depth
}

// NewEngine prepares an engine that writes mono samples to sink. No device
// is opened until Start.
func NewEngine(cfg *config.Config, sink analysis.SampleSink) *Engine {
	e := &Engine{
		config:   cfg,
		sink:     sink,
		channels: cfg.Audio.InputChannels,
		done:     make(chan struct{}),
	}
	e.gateEnabled = cfg.Audio.GateEnabled
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	e.allocate(cfg.Audio.FramesPerBuffer, e.channels)
	return e
}

// OnStart registers fn to run once, when audio first starts flowing.
func (e *Engine) OnStart(fn func()) {
	e.onStart = fn
}

// Done is closed when a non-looping file has played to the end. It never
// closes in input mode.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Start opens the configured source: the WAV file when one is set, the input
// device otherwise.
func (e *Engine) Start() error {
	var err error
	if e.config.Audio.File != "" {
		err = e.startFile(e.config.Audio.File)
	} else {
		err = e.startInput()
	}
	if err != nil {
		return err
	}

	e.startOnce.Do(func() {
		if e.onStart != nil {
			e.onStart()
		}
	})
	return nil
}

func (e *Engine) startInput() error {
	device, err := InputDevice(e.config.Audio.InputDevice)
	if err != nil {
		return err
	}
	e.inputDevice = device

	if e.config.Audio.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   device,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	e.stream = stream

	alog.Infof("capturing from %q: %d ch @ %.0f Hz, %d frames, latency %v",
		device.Name, e.channels, e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer, e.inputLatency)
	return nil
}

// Stop halts and closes the active stream.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	stream := e.stream
	e.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// Close stops recording and the stream. It is safe to call more than once.
func (e *Engine) Close() error {
	var errs []error
	if atomic.LoadInt32(&e.isRecording) == 1 {
		errs = append(errs, e.StopRecording())
	}
	errs = append(errs, e.Stop())
	return errors.Join(errs...)
}

// allocate sizes the callback buffers for frames × channels.
func (e *Engine) allocate(frames, channels int) {
	e.inputBuffer = make([]int32, frames*channels)
	e.monoBuffer = make([]int32, frames)
}

// processInputStream is the input callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	buffer := e.inputBuffer[:n]
	e.processBuffer(buffer)

	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		e.writeRecording(buffer)
	}
}

// processBuffer mixes an interleaved buffer to mono and hands it to the
// sink. Buffers below the gate are delivered as silence so the spectrum
// decays instead of freezing.
func (e *Engine) processBuffer(buffer []int32) {
	if e.sink == nil {
		return
	}
	mono := e.mixdown(buffer)
	if !e.gateOpen(buffer) {
		clear(mono)
	}
	e.sink.Write(mono)
}

// mixdown averages interleaved channels into the mono buffer.
func (e *Engine) mixdown(buffer []int32) []int32 {
	channels := max(1, e.channels)
	frames := min(len(buffer)/channels, len(e.monoBuffer))
	mono := e.monoBuffer[:frames]

	if channels == 1 {
		copy(mono, buffer)
		return mono
	}
	for i := range mono {
		var sum int64
		for c := range channels {
			sum += int64(buffer[i*channels+c])
		}
		mono[i] = int32(sum / int64(channels))
	}
	return mono
}

func (e *Engine) finish() {
	e.doneOnce.Do(func() { close(e.done) })
}
