// SPDX-License-Identifier: MIT
package analysis

// SampleSink receives mono audio from the audio engine. Implementations are
// called from the real-time audio callback and must not block for long or
// retain the slice.
type SampleSink interface {
	Write(samples []int32)
}

// RateSink is a SampleSink that wants to know the rate of the audio it is
// fed. The engine calls SetSampleRate whenever the stream rate changes.
type RateSink interface {
	SampleSink
	SetSampleRate(rate float64)
}

// FrameSource produces byte spectra for the render loop.
type FrameSource interface {
	// Configure sets the analysis size to 2^resolutionExponent and the
	// temporal smoothing constant. Both are clamped.
	Configure(resolutionExponent int, smoothing float64)
	// Poll refreshes and returns the current frame. The frame is owned by
	// the source and is valid until the next Poll or Configure call.
	Poll() Frame
}

// Compile-time checks for interface implementations.
var (
	_ SampleSink  = (*Analyser)(nil)
	_ RateSink    = (*Analyser)(nil)
	_ FrameSource = (*Analyser)(nil)
)
