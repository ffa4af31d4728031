package render

import "math"

// Paint supplies the fill color of every covered pixel. Coordinates passed
// to a paint are in the user space active when the fill is issued, so a
// gradient follows the surface transform like a canvas gradient does.
type Paint interface {
	at(x, y float64) premul
	uniform() bool
}

// Solid paints every pixel with one color.
type Solid RGBA

func (s Solid) at(float64, float64) premul { return RGBA(s).premul() }
func (Solid) uniform() bool                  { return true }

// Stop is one color stop of a gradient at an offset in [0,1].
type Stop struct {
	Offset float64
	Color  RGBA
}

// LinearGradient interpolates its stops along the line from (X0,Y0) to
// (X1,Y1). Points beyond either end take the nearest stop's color. A
// zero-length line paints nothing.
type LinearGradient struct {
	X0, Y0, X1, Y1 float64
	Stops          []Stop
}

func (g LinearGradient) at(x, y float64) premul {
	dx, dy := g.X1-g.X0, g.Y1-g.Y0
	den := dx*dx + dy*dy
	if den == 0 {
		return premul{}
	}
	t := ((x-g.X0)*dx + (y-g.Y0)*dy) / den
	return stopsAt(g.Stops, t)
}

func (LinearGradient) uniform() bool { return false }

// RadialGradient interpolates its stops between two concentric circles
// centered on (Cx,Cy), from radius R0 to radius R1.
type RadialGradient struct {
	Cx, Cy, R0, R1 float64
	Stops          []Stop
}

func (g RadialGradient) at(x, y float64) premul {
	if g.R1 == g.R0 {
		return premul{}
	}
	d := math.Hypot(x-g.Cx, y-g.Cy)
	return stopsAt(g.Stops, (d-g.R0)/(g.R1-g.R0))
}

func (RadialGradient) uniform() bool { return false }

// stopsAt evaluates sorted stops at t, clamping t to [0,1]. Interpolation
// happens on premultiplied values so fading to transparent does not darken.
func stopsAt(stops []Stop, t float64) premul {
	switch len(stops) {
	case 0:
		return premul{}
	case 1:
		return stops[0].Color.premul()
	}
	t = clamp01(t)
	if t <= stops[0].Offset {
		return stops[0].Color.premul()
	}
	for i := 1; i < len(stops); i++ {
		lo, hi := stops[i-1], stops[i]
		if t > hi.Offset {
			continue
		}
		span := hi.Offset - lo.Offset
		if span <= 0 {
			return hi.Color.premul()
		}
		return lerpPremul(lo.Color.premul(), hi.Color.premul(), (t-lo.Offset)/span)
	}
	return stops[len(stops)-1].Color.premul()
}
