// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestGateToggle(t *testing.T) {
	engine := &Engine{gateThreshold: highThreshold}

	// A disabled gate passes everything, even silence.
	if !engine.gateOpen(quietBuffer) {
		t.Error("disabled gate closed on a quiet buffer")
	}

	engine.EnableGate()
	engine.EnableGate()
	if !engine.gateEnabled || engine.gateOpen(quietBuffer) {
		t.Error("enabled gate should hold back a quiet buffer")
	}

	engine.DisableGate()
	if engine.gateEnabled {
		t.Error("gate still enabled after DisableGate()")
	}
}

func TestGateThresholdConversion(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.1, 0},
		{0, 0},
		{0.001, 0.001},
		{0.25, 0.25},
		{0.999, 0.999},
		{1, 1},
		{1.5, 1},
	}

	engine := &Engine{}
	for _, tt := range tests {
		t.Run(formatFloat(tt.in), func(t *testing.T) {
			engine.SetGateThreshold(tt.in)
			if got := engine.GetGateThreshold(); absFloat(got-tt.want) > 1e-6 {
				t.Errorf("GetGateThreshold() = %.6f, want %.6f", got, tt.want)
			}
			// The stored threshold is proportional to full scale.
			if want := int32(tt.want * math.MaxInt32); absInt32(engine.gateThreshold-want) > 100 {
				t.Errorf("gateThreshold = %d, want ~%d", engine.gateThreshold, want)
			}
		})
	}
}

func TestGateOpen(t *testing.T) {
	tests := []struct {
		desc      string
		buffer    []int32
		threshold float64
		open      bool
	}{
		{"quiet below tiny threshold", quietBuffer, 0.0001, true},
		{"quiet below mid threshold", quietBuffer, 0.1, false},
		{"loud over mid threshold", loudBuffer, 0.1, true},
		{"loud under near full scale", loudBuffer, 0.999, false},
		{"silence at zero threshold", make([]int32, 16), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			engine := &Engine{gateEnabled: true}
			engine.SetGateThreshold(tt.threshold)
			if got := engine.gateOpen(tt.buffer); got != tt.open {
				t.Errorf("gateOpen() = %v, want %v (peak %d, threshold %d)",
					got, tt.open, peakAmplitude(tt.buffer), engine.gateThreshold)
			}
		})
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		desc   string
		buffer []int32
		want   int32
	}{
		{"empty", nil, 0},
		{"positive peak", []int32{1, 5, -3}, 5},
		{"negative peak", []int32{1, -9, 3}, 9},
		{"full scale", []int32{math.MaxInt32, -math.MaxInt32}, math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := peakAmplitude(tt.buffer); got != tt.want {
				t.Errorf("peakAmplitude() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGateNoAllocs(t *testing.T) {
	engine := &Engine{gateEnabled: true, gateThreshold: lowThreshold}

	allocs := testing.AllocsPerRun(100, func() {
		_ = engine.gateOpen(testBuffer)
	})
	if allocs > 0 {
		t.Errorf("gateOpen allocated %.1f times per call", allocs)
	}
}

func BenchmarkGateOpen(b *testing.B) {
	benchmarks := []struct {
		name      string
		buffer    []int32
		threshold int32
		enabled   bool
	}{
		{"disabled", testBuffer, lowThreshold, false},
		{"quiet/low", quietBuffer, lowThreshold, true},
		{"normal/low", testBuffer, lowThreshold, true},
		{"loud/high", loudBuffer, highThreshold, true},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			engine := &Engine{gateEnabled: bm.enabled, gateThreshold: bm.threshold}
			b.ReportAllocs()
			for b.Loop() {
				_ = engine.gateOpen(bm.buffer)
			}
		})
	}
}

func absInt32(x int32) int32 {
	mask := x >> 31
	return (x ^ mask) - mask
}
