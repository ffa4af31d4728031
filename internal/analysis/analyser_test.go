// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"kaleido/pkg/utils"
)

const testSampleRate = 44100.0

func newTestAnalyser(exp int, smoothing float64) *Analyser {
	opts := DefaultOptions()
	opts.SampleRate = testSampleRate
	return NewAnalyser(exp, smoothing, opts)
}

func TestSilentInputProducesZeroFrame(t *testing.T) {
	a := newTestAnalyser(11, 0.78)

	frame := a.Poll()
	if len(frame) != 1024 {
		t.Fatalf("frame length: got %d, want 1024", len(frame))
	}
	for i, v := range frame {
		if v != 0 {
			t.Fatalf("bin %d: got %d, want 0 for silence", i, v)
		}
	}
}

func TestResolutionChangeReallocates(t *testing.T) {
	a := newTestAnalyser(11, 0.5)
	a.Write(utils.GenerateSineWave(4096, testSampleRate, 1000))
	old := a.Poll()

	a.Configure(12, 0.5)
	next := a.Poll()

	if len(next) != 2048 {
		t.Fatalf("frame length after resize: got %d, want 2048", len(next))
	}
	if a.Resolution() != 4096 {
		t.Errorf("resolution: got %d, want 4096", a.Resolution())
	}
	if &old[0] == &next[0] {
		t.Error("resolution change must not reuse the previous frame buffer")
	}
}

func TestConfigureClampsInputs(t *testing.T) {
	tests := []struct {
		exp       int
		smoothing float64
		wantSize  int
		wantTau   float64
	}{
		{3, -1, 256, 0},
		{11, 0.78, 2048, 0.78},
		{20, 1.5, 16384, MaxSmoothing},
	}

	a := newTestAnalyser(11, 0)
	for _, tt := range tests {
		a.Configure(tt.exp, tt.smoothing)
		if got := a.Resolution(); got != tt.wantSize {
			t.Errorf("Configure(%d): size %d, want %d", tt.exp, got, tt.wantSize)
		}
		if got := a.Smoothing(); got != tt.wantTau {
			t.Errorf("Configure(%v): smoothing %v, want %v", tt.smoothing, got, tt.wantTau)
		}
		if got := len(a.Poll()); got != tt.wantSize/2 {
			t.Errorf("Configure(%d): frame length %d, want %d", tt.exp, got, tt.wantSize/2)
		}
	}
}

func TestSinePeakLandsInExpectedBin(t *testing.T) {
	a := newTestAnalyser(11, 0)
	a.Write(utils.GenerateSineWave(2048, testSampleRate, 1000))

	frame := a.Poll()
	peak := utils.FindPeakBin(frame, 0, len(frame)-1)

	rate := float64(testSampleRate)
	want := int(1000 * 2048 / rate)
	if peak < want-1 || peak > want+1 {
		t.Errorf("peak bin: got %d, want %d±1", peak, want)
	}
	if frame[peak] < 200 {
		t.Errorf("peak level: got %d, want a loud bin", frame[peak])
	}
	if got := a.FrequencyForBin(peak); got < 950 || got > 1050 {
		t.Errorf("peak frequency: got %.1f Hz, want ~1000 Hz", got)
	}
}

func TestSmoothingDecaysAfterSilence(t *testing.T) {
	a := newTestAnalyser(11, 0.9)
	a.Write(utils.GenerateComplexWave(2048, testSampleRate))
	loud := a.Poll()
	peak := utils.FindPeakBin(loud, 0, len(loud)-1)
	before := loud[peak]

	a.Write(make([]int32, 2048))
	after := a.Poll()[peak]

	if after == 0 {
		t.Error("smoothing should keep energy from the previous frame")
	}
	if after > before {
		t.Errorf("smoothed level rose during silence: %d -> %d", before, after)
	}
}

func TestResetClearsHistory(t *testing.T) {
	a := newTestAnalyser(10, 0.9)
	a.Write(utils.GenerateComplexWave(1024, testSampleRate))
	a.Poll()

	a.Reset()
	for i, v := range a.Poll() {
		if v != 0 {
			t.Fatalf("bin %d: got %d after Reset, want 0", i, v)
		}
	}
}

func TestFrequencyForBinOutOfRange(t *testing.T) {
	a := newTestAnalyser(10, 0)
	if a.FrequencyForBin(-1) != 0 || a.FrequencyForBin(512) != 0 {
		t.Error("out of range bins should map to 0 Hz")
	}
}

func TestSetSampleRateMovesBinFrequencies(t *testing.T) {
	a := newTestAnalyser(10, 0)

	tests := []struct {
		rate float64
		want float64
	}{
		{48000, 48000.0 / 1024},
		{0, 48000.0 / 1024},
		{-1, 48000.0 / 1024},
		{22050, 22050.0 / 1024},
	}
	for _, tt := range tests {
		a.SetSampleRate(tt.rate)
		if got := a.FrequencyForBin(1); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SetSampleRate(%v): bin 1 = %v Hz, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestPollZeroAllocations(t *testing.T) {
	a := newTestAnalyser(11, 0.78)
	a.Write(utils.GenerateComplexWave(2048, testSampleRate))

	allocs := testing.AllocsPerRun(100, func() {
		a.Poll()
	})
	if allocs > 0 {
		t.Errorf("Poll allocates %v times per run, want 0", allocs)
	}
}

func TestWriteZeroAllocations(t *testing.T) {
	a := newTestAnalyser(11, 0.78)
	samples := utils.GenerateSineWave(512, testSampleRate, 440)

	allocs := testing.AllocsPerRun(100, func() {
		a.Write(samples)
	})
	if allocs > 0 {
		t.Errorf("Write allocates %v times per run, want 0", allocs)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", Blackman, false},
		{"Blackman", Blackman, false},
		{"hanning", Hann, false},
		{" Nuttall ", Nuttall, false},
		{"triangle", Blackman, true},
	}

	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func BenchmarkPoll(b *testing.B) {
	a := newTestAnalyser(11, 0.78)
	a.Write(utils.GenerateComplexWave(2048, testSampleRate))
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		a.Poll()
	}
}
