package render

import (
	"math"

	"golang.org/x/image/math/f64"
)

type point struct{ x, y float64 }

// Path is a list of closed polygonal subpaths in user space. Filling uses the
// nonzero winding rule, so a reversed inner contour cuts a hole.
type Path struct {
	pts    []point
	starts []int
}

// Reset empties the path, keeping its storage.
func (p *Path) Reset() {
	p.pts = p.pts[:0]
	p.starts = p.starts[:0]
}

// MoveTo begins a new subpath at (x,y).
func (p *Path) MoveTo(x, y float64) {
	p.starts = append(p.starts, len(p.pts))
	p.pts = append(p.pts, point{x, y})
}

// LineTo adds a vertex to the current subpath, starting one if needed.
func (p *Path) LineTo(x, y float64) {
	if len(p.starts) == 0 {
		p.MoveTo(x, y)
		return
	}
	p.pts = append(p.pts, point{x, y})
}

// Close ends the current subpath and starts the next one at its first
// vertex. Filling closes subpaths implicitly.
func (p *Path) Close() {
	if n := len(p.starts); n > 0 {
		p.MoveTo(p.pts[p.starts[n-1]].x, p.pts[p.starts[n-1]].y)
	}
}

// Empty reports whether the path has no vertices.
func (p *Path) Empty() bool { return len(p.pts) == 0 }

// Ellipse adds an axis-aligned ellipse as its own subpath. Reverse winds it
// clockwise in device space.
func (p *Path) Ellipse(cx, cy, rx, ry float64, reverse bool) {
	rx, ry = math.Abs(rx), math.Abs(ry)
	n := ellipseSteps(math.Max(rx, ry))
	step := 2 * math.Pi / float64(n)
	if reverse {
		step = -step
	}
	p.MoveTo(cx+rx, cy)
	for i := 1; i < n; i++ {
		a := step * float64(i)
		p.LineTo(cx+rx*math.Cos(a), cy+ry*math.Sin(a))
	}
}

// subpaths calls fn with the vertex range of each subpath.
func (p *Path) subpaths(fn func(pts []point)) {
	for i, start := range p.starts {
		end := len(p.pts)
		if i+1 < len(p.starts) {
			end = p.starts[i+1]
		}
		if end-start >= 2 {
			fn(p.pts[start:end])
		}
	}
}

func ellipseSteps(r float64) int {
	n := int(math.Ceil(2 * math.Pi * r / 3))
	return max(16, min(n, 256))
}

// Affine helpers over f64.Aff3, laid out as [a b c d e f] for
// x' = a*x + b*y + c, y' = d*x + e*y + f.

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// mul returns the transform applying n first, then m.
func mul(m, n f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// invert returns the inverse of m, or false when m is singular.
func invert(m f64.Aff3) (f64.Aff3, bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 || math.IsNaN(det) {
		return f64.Aff3{}, false
	}
	inv := 1 / det
	a, b, d, e := m[4]*inv, -m[1]*inv, -m[3]*inv, m[0]*inv
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, true
}

func floorInt(v float64) int { return int(math.Floor(v)) }
func ceilInt(v float64) int  { return int(math.Ceil(v)) }
