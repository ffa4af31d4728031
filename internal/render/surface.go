/*
Package render draws the kaleidoscope onto a persistent pixel surface.

The Surface keeps its pixels between frames; nothing clears it except a
resize. Shapes are rasterized with golang.org/x/image/vector into a coverage
mask and composited into the premultiplied RGBA buffer with either normal
(source-over) or additive (saturating) blending.
*/
package render

import (
	"image"
	"image/draw"
	"math"
	"sync/atomic"

	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
)

// Blend selects how a fill combines with the pixels already on the surface.
type Blend int

const (
	// BlendNormal is source-over alpha compositing.
	BlendNormal Blend = iota
	// BlendAdditive adds premultiplied channels and saturates at 1, so
	// overlapping shapes brighten rather than cover each other.
	BlendAdditive
)

func (b Blend) String() string {
	if b == BlendAdditive {
		return "additive"
	}
	return "normal"
}

// MaxSurfaceSize bounds each side of a surface. Larger requests are clamped.
const MaxSurfaceSize = 8192

// surfaceSide clamps a requested side length to [0, MaxSurfaceSize].
func surfaceSide(v int) int {
	return min(MaxSurfaceSize, max(0, v))
}

// Surface is a persistent RGBA drawing target with a canvas-like transform
// stack. It is not safe for concurrent drawing; only RequestResize may be
// called from other goroutines.
type Surface struct {
	img     *image.RGBA
	pending atomic.Pointer[image.Point]

	ctm   f64.Aff3
	stack []f64.Aff3

	raster  *vector.Rasterizer
	maskBuf []uint8
	scratch Path
}

// NewSurface returns a transparent surface. Sizes are clamped to
// [0, MaxSurfaceSize].
func NewSurface(width, height int) *Surface {
	return &Surface{
		img:    image.NewRGBA(image.Rect(0, 0, surfaceSide(width), surfaceSide(height))),
		ctm:    identity,
		raster: vector.NewRasterizer(1, 1),
	}
}

// Size returns the current pixel dimensions.
func (s *Surface) Size() (width, height int) {
	b := s.img.Rect
	return b.Dx(), b.Dy()
}

// RequestResize records new dimensions. They take effect at the start of the
// next frame, never in the middle of one. Resizing discards the pixels.
// Each side is clamped to [0, MaxSurfaceSize].
func (s *Surface) RequestResize(width, height int) {
	s.pending.Store(&image.Point{X: surfaceSide(width), Y: surfaceSide(height)})
}

// applyResize installs a pending size. It reports whether the size changed.
func (s *Surface) applyResize() bool {
	p := s.pending.Swap(nil)
	if p == nil {
		return false
	}
	if w, h := s.Size(); w == p.X && h == p.Y {
		return false
	}
	s.img = image.NewRGBA(image.Rect(0, 0, p.X, p.Y))
	return true
}

// Image returns the live pixel buffer. Callers must treat it as read-only
// and must not hold it across frames; use Snapshot to keep a copy.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// Snapshot copies the pixels into dst, reallocating it when the size
// differs, and returns the destination.
func (s *Surface) Snapshot(dst *image.RGBA) *image.RGBA {
	if dst == nil || dst.Rect != s.img.Rect {
		dst = image.NewRGBA(s.img.Rect)
	}
	copy(dst.Pix, s.img.Pix)
	return dst
}

// Save pushes the current transform.
func (s *Surface) Save() {
	s.stack = append(s.stack, s.ctm)
}

// Restore pops the transform pushed by the matching Save. Extra calls are
// ignored.
func (s *Surface) Restore() {
	if n := len(s.stack); n > 0 {
		s.ctm = s.stack[n-1]
		s.stack = s.stack[:n-1]
	}
}

// ResetTransform drops the transform stack and returns to device space.
func (s *Surface) ResetTransform() {
	s.ctm = identity
	s.stack = s.stack[:0]
}

// Translate moves the user-space origin by (tx,ty).
func (s *Surface) Translate(tx, ty float64) {
	s.ctm = mul(s.ctm, f64.Aff3{1, 0, tx, 0, 1, ty})
}

// Rotate turns user space by theta radians, clockwise on screen.
func (s *Surface) Rotate(theta float64) {
	sin, cos := math.Sincos(theta)
	s.ctm = mul(s.ctm, f64.Aff3{cos, -sin, 0, sin, cos, 0})
}

// Scale stretches user space by (sx,sy).
func (s *Surface) Scale(sx, sy float64) {
	s.ctm = mul(s.ctm, f64.Aff3{sx, 0, 0, 0, sy, 0})
}

// Fill paints the entire surface, ignoring the transform for coverage but
// not for gradient coordinates.
func (s *Surface) Fill(paint Paint, blend Blend) {
	r := s.img.Rect
	if r.Empty() {
		return
	}
	s.composite(r, nil, r.Min, paint, blend)
}

// FillPath fills p, transformed by the current transform.
func (s *Surface) FillPath(p *Path, paint Paint, blend Blend) {
	if p.Empty() || s.img.Rect.Empty() {
		return
	}

	// Device-space bounding box of the transformed path.
	minX, minY := 1e300, 1e300
	maxX, maxY := -1e300, -1e300
	for _, pt := range p.pts {
		x, y := apply(s.ctm, pt.x, pt.y)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if !(minX <= maxX && minY <= maxY) {
		return // NaN coordinates.
	}

	// Rasterize over the path bounds, limited to a margin around the
	// surface, and composite only the visible part.
	w, h := s.Size()
	limit := s.img.Rect.Inset(-max(w, h))
	lx0, ly0 := float64(limit.Min.X), float64(limit.Min.Y)
	lx1, ly1 := float64(limit.Max.X), float64(limit.Max.Y)
	bounds := image.Rect(
		floorInt(clamp(minX, lx0, lx1)), floorInt(clamp(minY, ly0, ly1)),
		ceilInt(clamp(maxX, lx0, lx1))+1, ceilInt(clamp(maxY, ly0, ly1))+1,
	).Intersect(limit)
	visible := bounds.Intersect(s.img.Rect)
	if visible.Empty() {
		return
	}

	mask := s.mask(bounds.Dx(), bounds.Dy())
	s.raster.Reset(bounds.Dx(), bounds.Dy())
	s.raster.DrawOp = draw.Src
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)
	p.subpaths(func(pts []point) {
		for i, pt := range pts {
			x, y := apply(s.ctm, pt.x, pt.y)
			if i == 0 {
				s.raster.MoveTo(float32(x-ox), float32(y-oy))
			} else {
				s.raster.LineTo(float32(x-ox), float32(y-oy))
			}
		}
		s.raster.ClosePath()
	})
	s.raster.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	s.composite(visible, mask, bounds.Min, paint, blend)
}

// FillEllipse fills an axis-aligned ellipse in user space.
func (s *Surface) FillEllipse(cx, cy, rx, ry float64, paint Paint, blend Blend) {
	s.scratch.Reset()
	s.scratch.Ellipse(cx, cy, rx, ry, false)
	s.FillPath(&s.scratch, paint, blend)
}

// StrokeCircle draws a ring of the given width centered on radius r.
func (s *Surface) StrokeCircle(cx, cy, r, width float64, paint Paint, blend Blend) {
	half := width / 2
	outer, inner := r+half, max(0, r-half)
	s.scratch.Reset()
	s.scratch.Ellipse(cx, cy, outer, outer, false)
	if inner > 0 {
		s.scratch.Ellipse(cx, cy, inner, inner, true)
	}
	s.FillPath(&s.scratch, paint, blend)
}

// mask returns a reusable coverage buffer of the given size.
func (s *Surface) mask(w, h int) *image.Alpha {
	n := w * h
	if cap(s.maskBuf) < n {
		s.maskBuf = make([]uint8, n)
	}
	return &image.Alpha{Pix: s.maskBuf[:n], Stride: w, Rect: image.Rect(0, 0, w, h)}
}

// composite blends paint into r. Coverage comes from mask, whose pixel (0,0)
// sits at device point origin; a nil mask means full coverage.
func (s *Surface) composite(r image.Rectangle, mask *image.Alpha, origin image.Point, paint Paint, blend Blend) {
	uniform := paint.uniform()
	inv, ok := invert(s.ctm)
	if !ok && !uniform {
		return
	}
	var solid premul
	if uniform {
		solid = paint.at(0, 0)
		if solid == (premul{}) {
			return
		}
	}

	pix := s.img.Pix
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := s.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, row = x+1, row+4 {
			cov := 1.0
			if mask != nil {
				m := mask.Pix[(y-origin.Y)*mask.Stride+(x-origin.X)]
				if m == 0 {
					continue
				}
				cov = float64(m) / 255
			}

			src := solid
			if !uniform {
				ux, uy := apply(inv, float64(x)+0.5, float64(y)+0.5)
				src = paint.at(ux, uy)
			}
			sr, sg, sb, sa := src.r*cov, src.g*cov, src.b*cov, src.a*cov

			d := pix[row : row+4 : row+4]
			dr, dg, db, da := unit(d[0]), unit(d[1]), unit(d[2]), unit(d[3])
			switch blend {
			case BlendAdditive:
				d[0], d[1], d[2], d[3] = byteOf(sr+dr), byteOf(sg+dg), byteOf(sb+db), byteOf(sa+da)
			default:
				k := 1 - sa
				d[0], d[1], d[2], d[3] = byteOf(sr+dr*k), byteOf(sg+dg*k), byteOf(sb+db*k), byteOf(sa+da*k)
			}
		}
	}
}

func unit(b uint8) float64 { return float64(b) / 255 }

func byteOf(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
