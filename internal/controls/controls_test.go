package controls

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampedRanges(t *testing.T) {
	c := Controls{
		SegmentCount:       2,
		RotationSpeed:      5,
		HueCenter:          -30,
		Distortion:         1.5,
		ColorWarp:          -1,
		TrailAmount:        0.9,
		ResolutionExponent: 20,
		Smoothing:          1,
		EnergyBoost:        0.1,
	}.Clamped()

	assert.Equal(t, 3, c.SegmentCount)
	assert.Equal(t, 2.0, c.RotationSpeed)
	assert.Equal(t, 330.0, c.HueCenter)
	assert.Equal(t, 1.0, c.Distortion)
	assert.Equal(t, 0.0, c.ColorWarp)
	assert.Equal(t, 0.6, c.TrailAmount)
	assert.Equal(t, 14, c.ResolutionExponent)
	assert.Equal(t, 0.99, c.Smoothing)
	assert.Equal(t, 0.6, c.EnergyBoost)
}

func TestSegmentsNeverBelowThree(t *testing.T) {
	assert.Equal(t, 3, Controls{SegmentCount: 2}.Segments())
	assert.Equal(t, 3, Controls{SegmentCount: -7}.Segments())
	assert.Equal(t, 100, Controls{SegmentCount: 100}.Segments())
}

func TestDefaultIsAlreadyClamped(t *testing.T) {
	assert.Equal(t, Default(), Default().Clamped())
}

func TestWith(t *testing.T) {
	c := Default()

	next, err := c.With(FieldSegments, 7.6)
	require.NoError(t, err)
	assert.Equal(t, 8, next.SegmentCount)

	next, err = c.With(FieldHue, 725)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, next.HueCenter, 1e-9)

	next, err = c.With(FieldAutoSpin, 0)
	require.NoError(t, err)
	assert.False(t, next.AutoSpin)

	next, err = c.With(FieldTrail, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, c.TrailAmount, next.TrailAmount, "non-finite input keeps the current value")

	_, err = c.With(Field("zoom"), 1)
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	tests := map[string]Field{
		"segments":      FieldSegments,
		"SegmentCount":  FieldSegments,
		"rotationSpeed": FieldRotation,
		"colorShift":    FieldHue,
		"detail":        FieldResolution,
		" trail ":       FieldTrail,
		"autoSpin":      FieldAutoSpin,
	}
	for in, want := range tests {
		got, err := ParseField(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseField("zoom")
	assert.Error(t, err)
}

func TestFieldsHaveRanges(t *testing.T) {
	for _, f := range Fields() {
		r, ok := RangeOf(f)
		require.True(t, ok, f)
		assert.Less(t, r.Min, r.Max, f)
		assert.Positive(t, r.Step, f)

		_, err := Default().Get(f)
		assert.NoError(t, err, f)
	}
}

func TestStoreSnapshotIsImmutable(t *testing.T) {
	s := NewStore(Default())
	snap := s.Load()

	_, err := s.Set(FieldSegments, 20)
	require.NoError(t, err)

	assert.Equal(t, 12, snap.SegmentCount, "earlier snapshot must not observe later writes")
	assert.Equal(t, 20, s.Load().SegmentCount)
	assert.Equal(t, uint64(1), s.Version())
}

func TestStoreClampsOnWrite(t *testing.T) {
	s := NewStore(Controls{SegmentCount: 1, EnergyBoost: 9})
	assert.Equal(t, 3, s.Load().SegmentCount)
	assert.Equal(t, 2.5, s.Load().EnergyBoost)

	_, err := s.Set(FieldResolution, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Load().ResolutionExponent)

	_, err = s.Set(Field("zoom"), 1)
	assert.Error(t, err)
}

func TestStoreStep(t *testing.T) {
	s := NewStore(Default())

	c, err := s.Step(FieldSegments, 1)
	require.NoError(t, err)
	assert.Equal(t, 13, c.SegmentCount)

	c, err = s.Step(FieldTrail, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.6, c.TrailAmount)

	_, err = s.Set(FieldHue, 359)
	require.NoError(t, err)
	c, err = s.Step(FieldHue, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.HueCenter, 1e-9, "hue wraps around")

	c, err = s.Step(FieldAutoSpin, 1)
	require.NoError(t, err)
	assert.False(t, c.AutoSpin)
}

func TestStoreConcurrentWritersKeepEveryField(t *testing.T) {
	s := NewStore(Default())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Update(func(c *Controls) { c.SegmentCount++ })
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Set(FieldDistortion, float64(i%2))
		}()
	}
	wg.Wait()

	assert.Equal(t, 62, s.Load().SegmentCount)
	assert.Equal(t, uint64(100), s.Version())
}
