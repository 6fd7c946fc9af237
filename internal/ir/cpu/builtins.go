package cpu

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/sdfscene/internal/ir"
)

type builtinFn func(args []vec) vec

// lookupBuiltin returns the implementation of a builtin for the given
// argument types. Float arguments of splatting builtins are broadcast.
func lookupBuiltin(name string, types []ir.Type, result ir.Type) (builtinFn, bool) {
	n := result.Width()
	switch name {
	case "length", "normalize", "dot":
		n = types[0].Width()
	}
	switch name {
	case "abs":
		return unary(n, math32.Abs), true
	case "sqrt":
		return unary(n, math32.Sqrt), true
	case "sin":
		return unary(n, math32.Sin), true
	case "cos":
		return unary(n, math32.Cos), true
	case "floor":
		return unary(n, math32.Floor), true
	case "fract":
		return unary(n, func(x float32) float32 { return x - math32.Floor(x) }), true
	case "sign":
		return unary(n, sign), true
	case "length":
		return func(a []vec) vec { return vec{length(a[0], n)} }, true
	case "normalize":
		return func(a []vec) vec {
			l := length(a[0], n)
			var r vec
			for i := 0; i < n; i++ {
				r[i] = a[0][i] / l
			}
			return r
		}, true
	case "dot":
		return func(a []vec) vec { return vec{dot(a[0], a[1], n)} }, true
	case "atan2":
		return func(a []vec) vec { return vec{math32.Atan2(a[0][0], a[1][0])} }, true
	case "min":
		return splatted(n, types, func(a []float32) float32 { return math32.Min(a[0], a[1]) }), true
	case "max":
		return splatted(n, types, func(a []float32) float32 { return math32.Max(a[0], a[1]) }), true
	case "pow":
		return splatted(n, types, func(a []float32) float32 { return math32.Pow(a[0], a[1]) }), true
	case "clamp":
		return splatted(n, types, func(a []float32) float32 { return clamp(a[0], a[1], a[2]) }), true
	case "mix":
		return splatted(n, types, func(a []float32) float32 { return mix(a[0], a[1], a[2]) }), true
	case "step":
		return splatted(n, types, func(a []float32) float32 { return step(a[0], a[1]) }), true
	case "smoothstep":
		return splatted(n, types, func(a []float32) float32 { return smoothstep(a[0], a[1], a[2]) }), true

	case "merge":
		return scalar2(Merge), true
	case "subtract":
		return scalar2(Subtract), true
	case "intersect":
		return scalar2(Intersect), true
	case "mergeSmooth":
		return scalar3(MergeSmooth), true
	case "subtractSmooth":
		return scalar3(SubtractSmooth), true
	case "intersectSmooth":
		return scalar3(IntersectSmooth), true
	case "fillMask":
		return func(a []vec) vec { return vec{FillMask(a[0][0])} }, true
	case "borderMask":
		return scalar2(BorderMask), true

	case "translate":
		return func(a []vec) vec { return vec{a[0][0] - a[1][0], a[0][1] - a[1][1]} }, true
	case "rotateCW":
		return func(a []vec) vec {
			x, y := RotateCW(a[0][0], a[0][1], a[1][0])
			return vec{x, y}
		}, true
	case "rotateCCW":
		return func(a []vec) vec {
			x, y := RotateCCW(a[0][0], a[0][1], a[1][0])
			return vec{x, y}
		}, true
	case "sdBox":
		return func(a []vec) vec { return vec{sdBox(a[0], a[1])} }, true
	case "sdSegment":
		return func(a []vec) vec { return vec{sdSegment(a[0], a[1], a[2])} }, true
	case "sdTriangle":
		return func(a []vec) vec { return vec{sdTriangle(a[0], a[1], a[2], a[3])} }, true
	case "gradientLinear":
		return func(a []vec) vec { return gradientLinear(a[0], a[1], a[2], a[3], a[4]) }, true
	case "profileSegment":
		return func(a []vec) vec { return vec{ProfileSegment(a[0][0], a[1], a[2], a[3])} }, true
	}
	return nil, false
}

func unary(n int, f func(float32) float32) builtinFn {
	return func(a []vec) vec {
		var r vec
		for i := 0; i < n; i++ {
			r[i] = f(a[0][i])
		}
		return r
	}
}

// splatted applies f component-wise over n components, broadcasting
// Float arguments.
func splatted(n int, types []ir.Type, f func([]float32) float32) builtinFn {
	scalar := make([]bool, len(types))
	for i, t := range types {
		scalar[i] = t == ir.Float
	}
	return func(a []vec) vec {
		var r vec
		var buf [3]float32
		xs := buf[:len(a)]
		for c := 0; c < n; c++ {
			for i := range a {
				if scalar[i] {
					xs[i] = a[i][0]
				} else {
					xs[i] = a[i][c]
				}
			}
			r[c] = f(xs)
		}
		return r
	}
}

func scalar2(f func(a, b float32) float32) builtinFn {
	return func(a []vec) vec { return vec{f(a[0][0], a[1][0])} }
}

func scalar3(f func(a, b, c float32) float32) builtinFn {
	return func(a []vec) vec { return vec{f(a[0][0], a[1][0], a[2][0])} }
}

func sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func clamp(x, lo, hi float32) float32 { return math32.Min(math32.Max(x, lo), hi) }

func mix(a, b, t float32) float32 { return a + (b-a)*t }

func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}

func smoothstep(lo, hi, x float32) float32 {
	t := clamp((x-lo)/(hi-lo), 0, 1)
	return t * t * (3 - 2*t)
}

func length(v vec, n int) float32 { return math32.Sqrt(dot(v, v, n)) }

func dot(a, b vec, n int) float32 {
	var s float32
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// Merge is the hard union of two distances.
func Merge(d1, d2 float32) float32 { return math32.Min(d1, d2) }

// Subtract carves d2 out of d1.
func Subtract(d1, d2 float32) float32 { return math32.Max(d1, -d2) }

// Intersect keeps the overlap of d1 and d2.
func Intersect(d1, d2 float32) float32 { return math32.Max(d1, d2) }

// MergeSmooth is a polynomial smooth union with radius k > 0.
func MergeSmooth(d1, d2, k float32) float32 {
	h := clamp(0.5+0.5*(d2-d1)/k, 0, 1)
	return mix(d2, d1, h) - k*h*(1-h)
}

// SubtractSmooth carves d1 out of d2 with radius k > 0. Argument order is
// swapped relative to Subtract.
func SubtractSmooth(d1, d2, k float32) float32 {
	h := clamp(0.5-0.5*(d2+d1)/k, 0, 1)
	return mix(d2, -d1, h) + k*h*(1-h)
}

// IntersectSmooth is a polynomial smooth intersection with radius k > 0.
func IntersectSmooth(d1, d2, k float32) float32 {
	h := clamp(0.5-0.5*(d2-d1)/k, 0, 1)
	return mix(d2, d1, h) + k*h*(1-h)
}

// FillMask is 1 inside the shape, 0 outside, with a one unit ramp.
func FillMask(d float32) float32 { return clamp(-d, 0, 1) }

// BorderMask covers the band of width w just outside the shape.
func BorderMask(d, w float32) float32 { return clamp(d+w, 0, 1) - clamp(d, 0, 1) }

// RotateCW rotates (x, y) clockwise by a radians.
func RotateCW(x, y, a float32) (float32, float32) {
	sa, ca := math32.Sincos(a)
	return x*ca + y*sa, y*ca - x*sa
}

// RotateCCW rotates (x, y) counter-clockwise by a radians.
func RotateCCW(x, y, a float32) (float32, float32) {
	sa, ca := math32.Sincos(a)
	return x*ca - y*sa, x*sa + y*ca
}

func sdBox(p, b vec) float32 {
	dx := math32.Abs(p[0]) - b[0]
	dy := math32.Abs(p[1]) - b[1]
	ox, oy := math32.Max(dx, 0), math32.Max(dy, 0)
	return math32.Sqrt(ox*ox+oy*oy) + math32.Min(math32.Max(dx, dy), 0)
}

func sdSegment(p, a, b vec) float32 {
	pax, pay := p[0]-a[0], p[1]-a[1]
	bax, bay := b[0]-a[0], b[1]-a[1]
	h := clamp((pax*bax+pay*bay)/math32.Max(bax*bax+bay*bay, 1e-7), 0, 1)
	dx, dy := pax-bax*h, pay-bay*h
	return math32.Sqrt(dx*dx + dy*dy)
}

func sdTriangle(p, p0, p1, p2 vec) float32 {
	e0x, e0y := p1[0]-p0[0], p1[1]-p0[1]
	e1x, e1y := p2[0]-p1[0], p2[1]-p1[1]
	e2x, e2y := p0[0]-p2[0], p0[1]-p2[1]
	v0x, v0y := p[0]-p0[0], p[1]-p0[1]
	v1x, v1y := p[0]-p1[0], p[1]-p1[1]
	v2x, v2y := p[0]-p2[0], p[1]-p2[1]

	edge := func(vx, vy, ex, ey float32) float32 {
		h := clamp((vx*ex+vy*ey)/math32.Max(ex*ex+ey*ey, 1e-7), 0, 1)
		qx, qy := vx-ex*h, vy-ey*h
		return qx*qx + qy*qy
	}
	s := sign(e0x*e2y - e0y*e2x)
	dx := math32.Min(math32.Min(edge(v0x, v0y, e0x, e0y), edge(v1x, v1y, e1x, e1y)), edge(v2x, v2y, e2x, e2y))
	dy := math32.Min(math32.Min(s*(v0x*e0y-v0y*e0x), s*(v1x*e1y-v1y*e1x)), s*(v2x*e2y-v2y*e2x))
	return -math32.Sqrt(dx) * sign(dy)
}

func gradientLinear(p, a, b, ca, cb vec) vec {
	bax, bay := b[0]-a[0], b[1]-a[1]
	h := clamp(((p[0]-a[0])*bax+(p[1]-a[1])*bay)/math32.Max(bax*bax+bay*bay, 1e-7), 0, 1)
	var r vec
	for i := range r {
		r[i] = mix(ca[i], cb[i], h)
	}
	return r
}

// Profile segment interpolation kinds, stored in the z component of a
// segment's start point.
const (
	SegmentLinear     = 0
	SegmentCircle     = 1
	SegmentBezier     = 2
	SegmentSmoothstep = 3
)

// ProfileSegment evaluates a height profile segment at x. s and e hold the
// start and end points (x, height, kind, 0); c holds the bezier control point.
func ProfileSegment(x float32, s, c, e [4]float32) float32 {
	span := math32.Max(e[0]-s[0], 1e-5)
	t := clamp((x-s[0])/span, 0, 1)
	lin := mix(s[1], e[1], t)
	switch s[2] {
	case SegmentCircle:
		r := span * 0.5
		xm := (x - s[0]) - r
		return lin + math32.Sqrt(math32.Max(r*r-xm*xm, 0))
	case SegmentBezier:
		qa := s[0] - 2*c[0] + e[0]
		qb := 2 * (c[0] - s[0])
		qc := s[0] - x
		bt := t
		if math32.Abs(qa) > 1e-6 {
			q := math32.Sqrt(math32.Max(qb*qb-4*qa*qc, 0))
			t1 := (-qb + q) / (2 * qa)
			t2 := (-qb - q) / (2 * qa)
			if t1 >= 0 && t1 <= 1 {
				bt = t1
			} else {
				bt = t2
			}
		} else if math32.Abs(qb) > 1e-6 {
			bt = -qc / qb
		}
		bt = clamp(bt, 0, 1)
		u := 1 - bt
		return u*u*s[1] + 2*u*bt*c[1] + bt*bt*e[1]
	case SegmentSmoothstep:
		return mix(s[1], e[1], smoothstep(0, 1, t))
	}
	return lin
}
