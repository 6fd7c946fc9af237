// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/scene"
)

// far is the distance of empty space.
const far = 1e5

// NormalEpsilon is the central-difference step of generated normal functions.
const NormalEpsilon = 5e-4

var zero2 = ir.Vec(ir.Vec2, ir.F(0), ir.F(0))

// viewUV maps a pixel offset from the viewport center to scene space using
// the header camera. Scene y points up.
func viewUV(pix ir.Expr) ir.Expr {
	flipped := ir.Vec(ir.Vec2, ir.Swz(pix, "x"), ir.Neg(ir.Swz(pix, "y")))
	return ir.Add(ir.Mul(flipped, ir.At(hdrInvZoom)), ir.At2(hdrCamera))
}

// objectSpace sets tuv to uv in the frame of object.
func (g *Geometry) objectSpace(b *ir.Block, tuv ir.Var, uv ir.Expr, object int) {
	rec := g.objectRec(object)
	b.Assign(tuv, ir.Sub(uv, ir.At2(rec+objPos)))
	b.Assign(tuv, ir.Div(tuv, ir.At2(rec+objScale)))
	b.Assign(tuv, ir.B("rotateCW", tuv, ir.At(rec+objRotate)))
}

// shapeBinder resolves the placeholders of a distance template.
func (g *Geometry) shapeBinder(s *scene.Shape, shape, point int, tuv ir.Var) ir.Binder {
	rec := g.shapeRec(shape)
	return func(name string) (ir.Expr, bool) {
		switch name {
		case "uv":
			return tuv, true
		case "width":
			return ir.At(rec + shapeSize), true
		case "height":
			return ir.At(rec + shapeSize + 1), true
		case "size":
			return ir.At2(rec + shapeSize), true
		case "pointCount":
			return ir.F(float32(s.PointCount)), true
		}
		if i, ok := indexed(name, "point_", s.PointCount); ok {
			return ir.At2(g.pointRec(point + i)), true
		}
		if i, ok := indexed(name, "custom_", scene.MaxCustom); ok {
			return ir.At(rec + shapeCustom + i), true
		}
		return nil, false
	}
}

// indexed parses placeholders such as point_2 and reports whether the index
// is below n.
func indexed(name, prefix string, n int) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// shapeDistance appends code setting nd to the distance of shape s at uv.
func (g *Geometry) shapeDistance(b *ir.Block, v *visit, s *scene.Shape, shape, point int, uv ir.Expr, tuv, nd ir.Var) error {
	g.objectSpace(b, tuv, uv, v.object)
	rec := g.shapeRec(shape)
	b.Assign(tuv, ir.Sub(tuv, ir.At2(rec+shapePos)))
	rot := ir.At(rec + shapeRotate)
	if s.PointCount == 0 {
		b.Assign(tuv, ir.B("rotateCW", tuv, rot))
	} else {
		avg := ir.At2(g.pointRec(point))
		for i := 1; i < s.PointCount; i++ {
			avg = ir.Add(avg, ir.At2(g.pointRec(point+i)))
		}
		avg = ir.Div(avg, ir.F(float32(s.PointCount)))
		b.Assign(tuv, ir.Add(ir.B("rotateCW", ir.Sub(tuv, avg), rot), avg))
	}

	d, err := ir.ParseTemplate(s.DistanceTemplate, g.shapeBinder(s, shape, point, tuv))
	if err != nil {
		return fmt.Errorf("shape %q of %q: %w", s.Name, v.obj.Name, err)
	}
	if d.Type() != ir.Float {
		return fmt.Errorf("shape %q of %q: %w: distance is %s", s.Name, v.obj.Name, ir.ErrTemplate, d.Type())
	}
	b.Assign(nd, d)
	if s.SupportsRounding {
		b.Assign(nd, ir.Sub(nd, ir.At(rec+shapeRounding)))
	}
	ann := ir.At(rec + shapeAnnular)
	b.If(ir.Ne(ann, ir.F(0)), func(t *ir.Block) {
		t.Assign(nd, ir.Sub(ir.B("abs", nd), ann))
	})
	if s.Inverted() {
		b.Assign(nd, ir.Neg(nd))
	}
	return nil
}

// combine folds nd into dist with the shape's boolean mode, switching to the
// smooth variant when the shape's smoothing radius is nonzero.
func (g *Geometry) combine(b *ir.Block, mode scene.BooleanMode, shape int, dist, nd ir.Var) {
	k := ir.At(g.shapeRec(shape) + shapeSmooth)
	var hard, soft ir.Expr
	switch mode {
	case scene.Subtract:
		hard = ir.B("subtract", dist, nd)
		soft = ir.B("subtractSmooth", nd, dist, k)
	case scene.Intersect:
		hard = ir.B("intersect", dist, nd)
		soft = ir.B("intersectSmooth", dist, nd, k)
	default:
		hard = ir.B("merge", dist, nd)
		soft = ir.B("mergeSmooth", dist, nd, k)
	}
	b.IfElse(ir.Ne(k, ir.F(0)),
		func(t *ir.Block) { t.Assign(dist, soft) },
		func(e *ir.Block) { e.Assign(dist, hard) })
}

// visitsOf returns the plan entries of root r.
func (g *Geometry) visitsOf(r int) []*visit {
	var out []*visit
	for _, v := range g.plan {
		if v.rootID == r {
			out = append(out, v)
		}
	}
	return out
}

// SDFFunc returns a function sdfN(p vec2) -> float evaluating the shape
// composition of root r at scene point p.
func (g *Geometry) SDFFunc(r int) (*ir.Func, error) {
	f := &ir.Func{
		Name:   fmt.Sprintf("sdf%d", r),
		Params: []ir.Param{{Name: "p", T: ir.Vec2}},
		Result: ir.Float,
	}
	var b ir.Block
	tuv := b.Decl("tuv", zero2)
	nd := b.Decl("nd", ir.F(far))
	dist := b.Decl("d", ir.F(far))
	for _, v := range g.visitsOf(r) {
		var err error
		v.eachShape(func(s *scene.Shape, shape, point int) {
			if err != nil {
				return
			}
			if err = g.shapeDistance(&b, v, s, shape, point, f.Arg(0), tuv, nd); err == nil {
				g.combine(&b, s.Mode, shape, dist, nd)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	b.Return(dist)
	f.Body = b.Stmts()
	return f, nil
}

// NormalFunc returns normalN(p vec2) -> vec2, the normalized central
// difference gradient of sdf with step NormalEpsilon. Flat regions yield
// (0, 1).
func NormalFunc(sdf *ir.Func, name string) *ir.Func {
	f := &ir.Func{
		Name:   name,
		Params: []ir.Param{{Name: "p", T: ir.Vec2}},
		Result: ir.Vec2,
	}
	p := f.Arg(0)
	ex := ir.Vec(ir.Vec2, ir.F(NormalEpsilon), ir.F(0))
	ey := ir.Vec(ir.Vec2, ir.F(0), ir.F(NormalEpsilon))
	var b ir.Block
	grad := b.Decl("grad", ir.Vec(ir.Vec2,
		ir.Sub(ir.CallFunc(sdf, ir.Add(p, ex)), ir.CallFunc(sdf, ir.Sub(p, ex))),
		ir.Sub(ir.CallFunc(sdf, ir.Add(p, ey)), ir.CallFunc(sdf, ir.Sub(p, ey))),
	))
	l := b.Decl("l", ir.B("length", grad))
	b.Return(ir.Sel(ir.Gt(l, ir.F(0)), ir.Div(grad, l), ir.Vec(ir.Vec2, ir.F(0), ir.F(1))))
	f.Body = b.Stmts()
	return f
}

// SDFFuncs returns the distance and normal functions of every root, in root
// order, ready to be prepended to a kernel's Funcs.
func (g *Geometry) SDFFuncs() (sdfs, normals []*ir.Func, err error) {
	for r := range g.roots {
		f, err := g.SDFFunc(r)
		if err != nil {
			return nil, nil, err
		}
		sdfs = append(sdfs, f)
		normals = append(normals, NormalFunc(f, fmt.Sprintf("normal%d", r)))
	}
	return sdfs, normals, nil
}
