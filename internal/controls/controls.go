// SPDX-License-Identifier: MIT
/*
Package controls holds the user-tunable rendering parameters.

Controls is a plain value. The Store publishes it copy-on-write through an
atomic pointer: writers build a new clamped value and swap it in, the render
loop loads one value at the start of a frame and uses it for the whole frame.
Out-of-range input is clamped, never reported as an error.
*/
package controls

import (
	"fmt"
	"math"
	"strings"
)

// Controls is one immutable snapshot of every tunable parameter.
type Controls struct {
	SegmentCount       int     // Radial slices, >= 3.
	RotationSpeed      float64 // Radians per second of automatic spin.
	HueCenter          float64 // Base hue in degrees, [0,360).
	Distortion         float64 // Petal silhouette warp, [0,1].
	ColorWarp          float64 // Per-slice hue spread, [0,1].
	TrailAmount        float64 // Trail persistence, [0,0.6].
	ResolutionExponent int     // Analysis size exponent, [8,14].
	Smoothing          float64 // Analyser time constant, [0,0.99].
	EnergyBoost        float64 // Petal radius gain, [0.6,2.5].
	AutoSpin           bool    // Time-driven rotation and hue drift.
}

// Default returns the control values the renderer was tuned with.
func Default() Controls {
	return Controls{
		SegmentCount:       12,
		RotationSpeed:      0.32,
		HueCenter:          210,
		Distortion:         0.55,
		ColorWarp:          0.72,
		TrailAmount:        0.15,
		ResolutionExponent: 11,
		Smoothing:          0.78,
		EnergyBoost:        1.4,
		AutoSpin:           true,
	}
}

// Field names a control for the string based collaborators (terminal panel,
// websocket commands).
type Field string

const (
	FieldSegments    Field = "segments"
	FieldRotation    Field = "rotationSpeed"
	FieldHue         Field = "hueCenter"
	FieldDistortion  Field = "distortion"
	FieldColorWarp   Field = "colorWarp"
	FieldTrail       Field = "trail"
	FieldResolution  Field = "resolution"
	FieldSmoothing   Field = "smoothing"
	FieldEnergyBoost Field = "energyBoost"
	FieldAutoSpin    Field = "autoSpin"
)

// Range describes the valid interval of a field and its adjustment step.
// Max is the slider bound offered to user interfaces; SegmentCount has no
// hard upper bound.
type Range struct {
	Min, Max, Step float64
	Integer        bool
	Wrap           bool // Values wrap into [Min,Max) instead of clamping.
	Unbounded      bool // Max is only a UI hint.
}

var fieldOrder = []Field{
	FieldSegments, FieldRotation, FieldHue, FieldDistortion, FieldColorWarp,
	FieldTrail, FieldResolution, FieldSmoothing, FieldEnergyBoost, FieldAutoSpin,
}

var ranges = map[Field]Range{
	FieldSegments:    {Min: 3, Max: 48, Step: 1, Integer: true, Unbounded: true},
	FieldRotation:    {Min: 0, Max: 2, Step: 0.01},
	FieldHue:         {Min: 0, Max: 360, Step: 1, Wrap: true},
	FieldDistortion:  {Min: 0, Max: 1, Step: 0.01},
	FieldColorWarp:   {Min: 0, Max: 1, Step: 0.01},
	FieldTrail:       {Min: 0, Max: 0.6, Step: 0.01},
	FieldResolution:  {Min: 8, Max: 14, Step: 1, Integer: true},
	FieldSmoothing:   {Min: 0, Max: 0.99, Step: 0.01},
	FieldEnergyBoost: {Min: 0.6, Max: 2.5, Step: 0.01},
	FieldAutoSpin:    {Min: 0, Max: 1, Step: 1, Integer: true},
}

var aliases = map[string]Field{
	"segmentcount":       FieldSegments,
	"rotation":           FieldRotation,
	"spin":               FieldRotation,
	"hue":                FieldHue,
	"colorshift":         FieldHue,
	"trailamount":        FieldTrail,
	"resolutionexponent": FieldResolution,
	"detail":             FieldResolution,
	"energy":             FieldEnergyBoost,
	"autospinenabled":    FieldAutoSpin,
}

// Fields returns every field in display order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// RangeOf returns the range for f.
func RangeOf(f Field) (Range, bool) {
	r, ok := ranges[f]
	return r, ok
}

// ParseField resolves a case-insensitive field name or alias.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, f := range fieldOrder {
		if strings.ToLower(string(f)) == key {
			return f, nil
		}
	}
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	return "", unknownField(Field(name))
}

// Segments returns the slice count used for geometry, never below 3.
func (c Controls) Segments() int {
	return max(3, c.SegmentCount)
}

// Clamped returns c with every field forced into its valid range.
func (c Controls) Clamped() Controls {
	c.SegmentCount = max(3, c.SegmentCount)
	c.RotationSpeed = clampRange(c.RotationSpeed, ranges[FieldRotation])
	c.HueCenter = wrapHue(c.HueCenter)
	c.Distortion = clampRange(c.Distortion, ranges[FieldDistortion])
	c.ColorWarp = clampRange(c.ColorWarp, ranges[FieldColorWarp])
	c.TrailAmount = clampRange(c.TrailAmount, ranges[FieldTrail])
	c.ResolutionExponent = min(14, max(8, c.ResolutionExponent))
	c.Smoothing = clampRange(c.Smoothing, ranges[FieldSmoothing])
	c.EnergyBoost = clampRange(c.EnergyBoost, ranges[FieldEnergyBoost])
	return c
}

// Get returns the value of f as a float64 (booleans as 0 or 1).
func (c Controls) Get(f Field) (float64, error) {
	switch f {
	case FieldSegments:
		return float64(c.SegmentCount), nil
	case FieldRotation:
		return c.RotationSpeed, nil
	case FieldHue:
		return c.HueCenter, nil
	case FieldDistortion:
		return c.Distortion, nil
	case FieldColorWarp:
		return c.ColorWarp, nil
	case FieldTrail:
		return c.TrailAmount, nil
	case FieldResolution:
		return float64(c.ResolutionExponent), nil
	case FieldSmoothing:
		return c.Smoothing, nil
	case FieldEnergyBoost:
		return c.EnergyBoost, nil
	case FieldAutoSpin:
		if c.AutoSpin {
			return 1, nil
		}
		return 0, nil
	}
	return 0, unknownField(f)
}

// With returns a copy of c with f set to v. Non-finite values leave the
// field unchanged; the result is clamped.
func (c Controls) With(f Field, v float64) (Controls, error) {
	if _, ok := ranges[f]; !ok {
		return c, unknownField(f)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return c.Clamped(), nil
	}

	switch f {
	case FieldSegments:
		c.SegmentCount = roundInt(v)
	case FieldRotation:
		c.RotationSpeed = v
	case FieldHue:
		c.HueCenter = v
	case FieldDistortion:
		c.Distortion = v
	case FieldColorWarp:
		c.ColorWarp = v
	case FieldTrail:
		c.TrailAmount = v
	case FieldResolution:
		c.ResolutionExponent = roundInt(v)
	case FieldSmoothing:
		c.Smoothing = v
	case FieldEnergyBoost:
		c.EnergyBoost = v
	case FieldAutoSpin:
		c.AutoSpin = v != 0
	}
	return c.Clamped(), nil
}

func unknownField(f Field) error {
	return fmt.Errorf("unknown control field %q", f)
}

func clampRange(v float64, r Range) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return math.Min(r.Max, math.Max(r.Min, v))
}

func wrapHue(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func roundInt(v float64) int {
	const limit = 1 << 30
	return int(math.Max(-limit, math.Min(limit, math.Round(v))))
}
