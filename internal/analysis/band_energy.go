// SPDX-License-Identifier: MIT
package analysis

// Band partition of a frame, as index bounds rather than frequencies. The
// mapping to Hz depends on resolution and is only approximate.
const (
	BassEnd = 40  // Bass is [0, BassEnd).
	MidsEnd = 160 // Mids is [BassEnd, MidsEnd); highs run to the end.
)

// BandEnergies is one reading of the three perceptual bands, each in [0,1].
// Flux is their unweighted mean.
type BandEnergies struct {
	Bass  float64 `json:"bass"`
	Mids  float64 `json:"mids"`
	Highs float64 `json:"highs"`
	Flux  float64 `json:"flux"`
}

// Extract reduces a frame to band energies. It is pure: the same frame
// always yields the same reading. Band bounds past the end of the frame
// produce empty bands with energy 0.
func Extract(frame Frame) BandEnergies {
	bass := bandMean(frame, 0, BassEnd)
	mids := bandMean(frame, BassEnd, MidsEnd)
	highs := bandMean(frame, MidsEnd, len(frame))
	return BandEnergies{
		Bass:  bass,
		Mids:  mids,
		Highs: highs,
		Flux:  (bass + mids + highs) / 3,
	}
}

// bandMean returns the mean of frame[start:end] normalized by 255, clipping
// the bounds to the frame.
func bandMean(frame Frame, start, end int) float64 {
	end = min(end, len(frame))
	if start >= end {
		return 0
	}
	var sum int
	for _, v := range frame[start:end] {
		sum += int(v)
	}
	return float64(sum) / float64(end-start) / 255
}
