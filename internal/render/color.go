package render

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBA is a straight-alpha color with every channel in [0,1].
type RGBA struct {
	R, G, B, A float64
}

// HSLA builds a color from hue in degrees (any value, wrapped into
// [0,360)), saturation and lightness in [0,1] and alpha in [0,1]. Out of
// range inputs are clamped.
func HSLA(h, s, l, a float64) RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := colorful.Hsl(h, clamp01(s), clamp01(l)).Clamped()
	return RGBA{R: c.R, G: c.G, B: c.B, A: clamp01(a)}
}

// RGB255 builds a color from 8-bit channels and a [0,1] alpha.
func RGB255(r, g, b uint8, a float64) RGBA {
	return RGBA{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
		A: clamp01(a),
	}
}

// Transparent is fully transparent black.
var Transparent = RGBA{}

// premul is a premultiplied color, the form compositing works in.
type premul struct {
	r, g, b, a float64
}

func (c RGBA) premul() premul {
	a := clamp01(c.A)
	return premul{r: clamp01(c.R) * a, g: clamp01(c.G) * a, b: clamp01(c.B) * a, a: a}
}

func lerpPremul(p, q premul, t float64) premul {
	return premul{
		r: p.r + (q.r-p.r)*t,
		g: p.g + (q.g-p.g)*t,
		b: p.b + (q.b-p.b)*t,
		a: p.a + (q.a-p.a)*t,
	}
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
