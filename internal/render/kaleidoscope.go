package render

import (
	"math"

	"kaleido/internal/analysis"
	"kaleido/internal/controls"
)

const (
	petalSubdivisions = 6
	sparkleCount      = 64

	minTrailAlpha = 0.08
	maxTrailAlpha = 0.6
)

// trailColor is the dark wash laid over every frame instead of a clear.
var trailColor = [3]uint8{5, 0, 25}

// TrailAlpha is the opacity of the per-frame wash. Lower values fade old
// frames more slowly and leave longer trails; the wash is never fully opaque
// nor fully transparent.
func TrailAlpha(trailAmount float64) float64 {
	return clamp(1-trailAmount, minTrailAlpha, maxTrailAlpha)
}

// frameParams are the per-frame values derived from time, bands and
// controls before any drawing happens.
type frameParams struct {
	baseHue      float64
	rotation     float64
	distortion   float64 // distortionAmount
	twist        float64
	segments     int
	segmentAngle float64
	maxRadius    float64
	ringRadius   float64
}

func deriveParams(t float64, b analysis.BandEnergies, c controls.Controls, width, height int) frameParams {
	spin := 0.0
	if c.AutoSpin {
		spin = 1
	}
	segments := c.Segments()
	maxRadius := 0.55 * float64(min(width, height))
	return frameParams{
		baseHue:      math.Mod(c.HueCenter+t*4*spin, 360),
		rotation:     t*c.RotationSpeed*spin + b.Bass*0.6,
		distortion:   0.54 + c.Distortion*0.8,
		twist:        b.Highs*0.8 + b.Mids*0.3,
		segments:     segments,
		segmentAngle: 2 * math.Pi / float64(segments),
		maxRadius:    maxRadius,
		ringRadius:   maxRadius * clamp(0.2+b.Flux*0.6, 0.2, 0.75),
	}
}

// Kaleidoscope draws the audio-reactive pattern onto its own Surface. The
// output depends only on the arguments of Render and the pixels left by
// earlier frames.
type Kaleidoscope struct {
	surface *Surface
	petal   Path
	stops   [3]Stop
	ring    [2]Stop
}

// NewKaleidoscope returns a renderer with a surface of the given size. A
// zero size is valid; frames are skipped until a resize arrives.
func NewKaleidoscope(width, height int) *Kaleidoscope {
	return &Kaleidoscope{surface: NewSurface(width, height)}
}

// Surface returns the renderer's surface. Other code may read it or request
// a resize but must not draw on it.
func (k *Kaleidoscope) Surface() *Surface {
	return k.surface
}

// Resize schedules a new surface size for the next frame.
func (k *Kaleidoscope) Resize(width, height int) {
	k.surface.RequestResize(width, height)
}

// Render draws one frame at time t (seconds). It returns false without
// drawing when the surface has no area.
func (k *Kaleidoscope) Render(t float64, b analysis.BandEnergies, c controls.Controls) bool {
	s := k.surface
	s.applyResize()
	w, h := s.Size()
	if w == 0 || h == 0 {
		return false
	}
	s.ResetTransform()

	s.Fill(Solid(RGB255(trailColor[0], trailColor[1], trailColor[2], TrailAlpha(c.TrailAmount))), BlendNormal)

	p := deriveParams(t, b, c, w, h)
	cx, cy := float64(w)/2, float64(h)/2

	s.Save()
	s.Translate(cx, cy)
	for i := range p.segments {
		k.drawSlice(i, t, b, c, p)
	}
	s.Restore()

	s.Save()
	s.Translate(cx, cy)
	s.Rotate(p.rotation * 0.6)
	k.ring[0] = Stop{Offset: 0, Color: RGBA{R: 1, G: 1, B: 1, A: 0}}
	k.ring[1] = Stop{Offset: 1, Color: HSLA(p.baseHue+60, 1, 0.7, 0.4+b.Flux*0.45)}
	s.StrokeCircle(0, 0, p.ringRadius, 12+b.Mids*18, RadialGradient{
		R0:    p.ringRadius * 0.55,
		R1:    p.ringRadius,
		Stops: k.ring[:],
	}, BlendNormal)
	s.Restore()

	s.Save()
	s.Translate(cx, cy)
	for i := range sparkleCount {
		f := float64(i) / sparkleCount
		r := p.ringRadius * (1 + math.Sin(t*0.9+f*math.Pi*4+b.Bass*8)*0.3)
		color := HSLA(p.baseHue+f*360+b.Highs*240, 1, (65+b.Flux*20)/100, 0.15+b.Highs*0.4)
		angle := f*2*math.Pi + t*0.6
		s.FillEllipse(math.Cos(angle)*r, math.Sin(angle)*r, 3+b.Highs*7, 3+b.Mids*6, Solid(color), BlendAdditive)
	}
	s.Restore()

	return true
}

// drawSlice draws petal i and its additive mirror image.
func (k *Kaleidoscope) drawSlice(i int, t float64, b analysis.BandEnergies, c controls.Controls, p frameParams) {
	s := k.surface
	fi := float64(i)

	s.Save()
	defer s.Restore()
	s.Rotate(p.segmentAngle*fi + p.rotation)

	radius := p.maxRadius * clamp(b.Flux*c.EnergyBoost*(1+math.Sin(t*1.3+fi)*0.2), 0.2, 1.4)
	inner := radius * 0.08

	// highs → inner opacity, mids → middle hue, bass → outer hue.
	k.stops[0] = Stop{Offset: 0, Color: HSLA(p.baseHue+fi*c.ColorWarp*50, 0.86, 0.60, 0.4+b.Highs*0.6)}
	k.stops[1] = Stop{Offset: 0.5, Color: HSLA(p.baseHue+120+b.Mids*150, 0.90, 0.65, 0.5+b.Mids*0.4)}
	k.stops[2] = Stop{Offset: 1, Color: HSLA(p.baseHue+240+b.Bass*90, 1, 0.70, 0.35+b.Bass*0.5)}
	grad := LinearGradient{X1: radius, Y1: radius * p.distortion, Stops: k.stops[:]}

	k.petal.Reset()
	k.petal.MoveTo(0, -inner)
	for j := range petalSubdivisions + 1 {
		fj := float64(j)
		u := fj / petalSubdivisions
		wave := math.Sin(u*math.Pi*p.distortion+t*1.8+fi*0.4) * p.twist * radius * 0.1
		r := inner + (radius-inner)*u
		offset := math.Sin(t*0.5+fj*0.7+b.Bass*5) * radius * 0.03
		k.petal.LineTo(wave+offset, -r)
	}
	s.FillPath(&k.petal, grad, BlendNormal)

	s.Scale(1, -1)
	k.petal.Reset()
	k.petal.MoveTo(0, inner)
	for j := range petalSubdivisions + 1 {
		fj := float64(j)
		u := fj / petalSubdivisions
		wave := math.Sin(u*math.Pi*p.distortion+t*1.3+fi*0.6) * p.twist * radius * 0.08
		r := inner + (radius-inner)*u
		offset := math.Cos(t*0.6+fj*0.5+b.Highs*6) * radius * 0.04
		k.petal.LineTo(wave+offset, r)
	}
	s.FillPath(&k.petal, grad, BlendAdditive)
}
