// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"math/cmplx"
	"sync"

	applog "kaleido/internal/log"
	"kaleido/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Resolution and smoothing limits.
const (
	MinResolutionExponent = 8
	MaxResolutionExponent = 14
	MaxSmoothing          = 0.99

	ringCapacity = 1 << MaxResolutionExponent
)

var alog = applog.New("analysis")

// Frame is one byte spectrum: resolution/2 magnitudes mapped to 0..255.
type Frame []uint8

// Options configures the decibel mapping and window of an Analyser.
type Options struct {
	MinDecibels float64    // Level mapped to 0.
	MaxDecibels float64    // Level mapped to 255.
	Window      WindowFunc // Window applied before the FFT.
	SampleRate  float64    // Used only by FrequencyForBin.
}

// DefaultOptions mirrors the browser analyser the renderer was tuned against.
func DefaultOptions() Options {
	return Options{
		MinDecibels: -90,
		MaxDecibels: -10,
		Window:      Blackman,
		SampleRate:  44100,
	}
}

// Analyser turns the most recent audio samples into a smoothed byte
// spectrum. The audio thread writes samples with Write; the render loop
// calls Configure and Poll.
type Analyser struct {
	opts Options

	// Sample ring written by the audio callback.
	ringMu  sync.Mutex
	ring    []float64
	ringPos int

	// Analysis state, reallocated on resolution changes.
	mu        sync.Mutex
	size      int
	smoothing float64
	fft       *fourier.FFT
	window    []float64
	input     []float64    // Windowed time-domain block.
	coeffs    []complex128 // FFT output, size/2+1 values.
	smoothed  []float64    // Smoothed linear magnitudes, size/2 values.
	frame     Frame        // Output handed to consumers.
}

// NewAnalyser returns an analyser with resolution 2^resolutionExponent.
func NewAnalyser(resolutionExponent int, smoothing float64, opts Options) *Analyser {
	if opts.MaxDecibels <= opts.MinDecibels {
		alog.Warnf("invalid decibel range [%.1f, %.1f], using defaults", opts.MinDecibels, opts.MaxDecibels)
		def := DefaultOptions()
		opts.MinDecibels, opts.MaxDecibels = def.MinDecibels, def.MaxDecibels
	}
	a := &Analyser{
		opts: opts,
		ring: make([]float64, ringCapacity),
	}
	a.Configure(resolutionExponent, smoothing)
	return a
}

// Configure sets the resolution and smoothing constant. A resolution change
// discards every buffer of the previous size, including the smoothing
// history and the frame returned by earlier Polls.
func (a *Analyser) Configure(resolutionExponent int, smoothing float64) {
	size := bitint.ClampedPow2(resolutionExponent, MinResolutionExponent, MaxResolutionExponent)
	smoothing = clampSmoothing(smoothing)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.smoothing = smoothing
	if size == a.size {
		return
	}

	bins := size / 2
	a.size = size
	a.fft = fourier.NewFFT(size)
	a.window = windowCoefficients(size, a.opts.Window)
	a.input = make([]float64, size)
	a.coeffs = make([]complex128, bins+1)
	a.smoothed = make([]float64, bins)
	a.frame = make(Frame, bins)

	alog.Debugf("resolution set to %d (%d bins, window %s)", size, bins, a.opts.Window)
}

// Poll computes a fresh frame from the latest samples. With no audio written
// the frame is all zeros.
func (a *Analyser) Poll() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.copyLatest(a.input)
	for i := range a.input {
		a.input[i] *= a.window[i]
	}

	a.fft.Coefficients(a.coeffs, a.input)

	tau := a.smoothing
	norm := 1.0 / float64(a.size)
	scale := 255.0 / (a.opts.MaxDecibels - a.opts.MinDecibels)
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) * norm
		s := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s
		a.frame[k] = toByte((decibels(s) - a.opts.MinDecibels) * scale)
	}

	return a.frame
}

// copyLatest fills dst with the most recent len(dst) samples, oldest first.
func (a *Analyser) copyLatest(dst []float64) {
	a.ringMu.Lock()
	n := len(dst)
	start := (a.ringPos - n + ringCapacity) % ringCapacity
	first := copy(dst, a.ring[start:])
	if first < n {
		copy(dst[first:], a.ring[:n-first])
	}
	a.ringMu.Unlock()
}

// Write appends mono int32 samples to the ring.
func (a *Analyser) Write(samples []int32) {
	const norm = 1.0 / float64(0x80000000)
	a.ringMu.Lock()
	for _, s := range samples {
		a.ring[a.ringPos] = float64(s) * norm
		a.ringPos = (a.ringPos + 1) % ringCapacity
	}
	a.ringMu.Unlock()
}

// WriteFloat appends mono samples already scaled to [-1, 1].
func (a *Analyser) WriteFloat(samples []float64) {
	a.ringMu.Lock()
	for _, s := range samples {
		a.ring[a.ringPos] = s
		a.ringPos = (a.ringPos + 1) % ringCapacity
	}
	a.ringMu.Unlock()
}

// Reset silences the ring and clears the smoothing history.
func (a *Analyser) Reset() {
	a.ringMu.Lock()
	clear(a.ring)
	a.ringPos = 0
	a.ringMu.Unlock()

	a.mu.Lock()
	clear(a.smoothed)
	clear(a.frame)
	a.mu.Unlock()
}

// Resolution returns the current FFT size.
func (a *Analyser) Resolution() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Smoothing returns the current smoothing constant.
func (a *Analyser) Smoothing() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smoothing
}

// SetSampleRate sets the rate used by FrequencyForBin. Non-positive rates
// are ignored.
func (a *Analyser) SetSampleRate(rate float64) {
	if !(rate > 0) {
		return
	}
	a.mu.Lock()
	a.opts.SampleRate = rate
	a.mu.Unlock()
}

// FrequencyForBin returns the center frequency (Hz) of bin i at the current
// resolution, or 0 when i is out of range.
func (a *Analyser) FrequencyForBin(i int) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.frame) {
		return 0
	}
	return float64(i) * a.opts.SampleRate / float64(a.size)
}

func clampSmoothing(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Min(MaxSmoothing, math.Max(0, s))
}

func decibels(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}

func toByte(v float64) uint8 {
	if !(v > 0) { // Also catches NaN and -Inf.
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
