// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/scene"
)

// renderStride is the number of output floats per pixel: RGBA.
const renderStride = 4

// channelDefaults are the values of a channel no material writes.
var channelDefaults = [scene.NumChannels]float32{
	scene.Subsurface:     0,
	scene.Roughness:      0.5,
	scene.Metallic:       0,
	scene.Specular:       0.5,
	scene.SpecularTint:   0,
	scene.Clearcoat:      0,
	scene.ClearcoatGloss: 1,
	scene.Anisotropic:    0,
	scene.Sheen:          0,
	scene.SheenTint:      0.5,
}

// channelSet holds the variables of one set of material channels.
type channelSet [scene.NumChannels]ir.Var

func declareChannels(b *ir.Block, prefix string, base [4]float32) channelSet {
	var cs channelSet
	for c := range scene.Channel(scene.NumChannels) {
		name := prefix + "_" + c.String()
		if c == scene.BaseColor {
			cs[c] = b.Decl(name, ir.Vec(ir.Vec4, ir.F(base[0]), ir.F(base[1]), ir.F(base[2]), ir.F(base[3])))
			continue
		}
		cs[c] = b.Decl(name, ir.F(channelDefaults[c]))
	}
	return cs
}

// renderGen emits the render kernel of a Geometry.
type renderGen struct {
	g       *Geometry
	mode    RenderMode
	preview bool

	b    ir.Block
	uv   ir.Var
	tuv  ir.Var
	nd   ir.Var
	dist ir.Var

	objectDist, objectID, materialID ir.Var
	value                            ir.Var
	body, border                     channelSet
	borderWidth, opacity             ir.Var
	normal                           ir.Var

	funcs   []*ir.Func
	normals []*ir.Func
}

// generateRender builds the render kernel: one lane per pixel writing RGBA.
func generateRender(g *Geometry, mode RenderMode, preview bool) (*ir.Kernel, error) {
	r := &renderGen{g: g, mode: mode, preview: preview}
	if err := r.prologue(); err != nil {
		return nil, err
	}
	if err := r.shapes(); err != nil {
		return nil, err
	}
	if mode != Distance {
		if err := r.materials(); err != nil {
			return nil, err
		}
		if err := r.profiles(); err != nil {
			return nil, err
		}
	}
	r.output()

	k := &ir.Kernel{Name: "render", Funcs: r.funcs, Body: r.b.Stmts(), Stride: renderStride}
	if err := ir.Check(k); err != nil {
		return nil, err
	}
	return k, nil
}

func (r *renderGen) prologue() error {
	b := &r.b
	gxy := ir.Vec(ir.Vec2, ir.Lane{Axis: ir.LaneX}, ir.Lane{Axis: ir.LaneY})
	pix := b.Decl("pix", ir.Sub(gxy, ir.At2(hdrCenter)))
	r.uv = b.Decl("uv", viewUV(pix))
	r.tuv = b.Decl("tuv", zero2)
	r.nd = b.Decl("nd", ir.F(far))
	r.dist = b.Decl("dist", ir.F(far))
	r.objectDist = b.Decl("objectDist", ir.F(far))
	r.objectID = b.Decl("objectId", ir.F(-1))
	r.materialID = b.Decl("materialId", ir.F(-1))
	return nil
}

// shapes emits the scene composition, material ownership and nearest object
// tracking in traversal order.
func (r *renderGen) shapes() error {
	b := &r.b
	for _, v := range r.g.plan {
		var err error
		v.eachShape(func(s *scene.Shape, shape, point int) {
			if err != nil {
				return
			}
			if err = r.g.shapeDistance(b, v, s, shape, point, r.uv, r.tuv, r.nd); err != nil {
				return
			}
			b.If(ir.Lt(r.nd, r.dist), func(t *ir.Block) {
				t.Assign(r.materialID, ir.F(float32(v.object)))
			})
			r.g.combine(b, s.Mode, shape, r.dist, r.nd)
		})
		if err != nil {
			return err
		}
		if len(v.obj.Shapes) == 0 {
			continue
		}
		b.If(ir.Lt(r.dist, r.objectDist), func(t *ir.Block) {
			t.Assign(r.objectID, ir.F(float32(v.object)))
			t.Assign(r.objectDist, r.dist)
		})
		if !v.isRoot {
			b.If(ir.Le(r.nd, ir.F(0)), func(t *ir.Block) {
				t.Assign(r.materialID, ir.F(float32(v.object)))
			})
		}
	}
	return nil
}

// materials emits the material code of every object, gated by ownership.
func (r *renderGen) materials() error {
	b := &r.b
	r.value = b.Decl("value", ir.Vec(ir.Vec4, ir.F(0), ir.F(0), ir.F(0), ir.F(0)))
	r.body = declareChannels(b, "body", [4]float32{0.5, 0.5, 0.5, 1})
	r.border = declareChannels(b, "border", [4]float32{1, 1, 1, 1})
	r.borderWidth = b.Decl("borderWidth", ir.F(0))
	r.opacity = b.Decl("opacity", ir.F(1))

	for _, v := range r.g.plan {
		var err error
		rec := r.g.objectRec(v.object)
		b.If(ir.Eq(r.materialID, ir.F(float32(v.object))), func(t *ir.Block) {
			t.Assign(r.borderWidth, ir.At(rec+objBorder))
			t.Assign(r.opacity, ir.At(rec+objOpacity))
			slot := v.material
			for _, m := range v.obj.BodyMaterials {
				if err == nil {
					err = r.material(t, v, m, slot, &r.body)
				}
				slot += m.Slots()
			}
			for _, m := range v.obj.BorderMaterials {
				if err == nil {
					err = r.material(t, v, m, slot, &r.border)
				}
				slot += m.Slots()
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// materialBinder resolves the placeholders of a material template.
func (r *renderGen) materialBinder(m *scene.Material, s int) ir.Binder {
	return func(name string) (ir.Expr, bool) {
		switch name {
		case "uv":
			return r.tuv, true
		case "width":
			return ir.At(s + matSize), true
		case "height":
			return ir.At(s + matSize + 1), true
		case "size":
			return ir.At2(s + matSize), true
		case "value":
			if m.PointCount == 0 {
				return ir.At4(s + matValues), true
			}
			return nil, false
		}
		if i, ok := indexed(name, "point_", m.PointCount); ok {
			return ir.At2(s + matValues + slotStride*i), true
		}
		if i, ok := indexed(name, "pointvalue_", m.PointCount); ok {
			return ir.At4(s + matValues + slotStride*(m.PointCount+i)), true
		}
		if i, ok := indexed(name, "custom_", scene.MaxCustom); ok {
			return ir.At(s + matCustom + i), true
		}
		return nil, false
	}
}

// channelValue adapts a template result to the type of channel c.
func channelValue(c scene.Channel, e ir.Expr) (ir.Expr, error) {
	switch {
	case c == scene.BaseColor && e.Type() == ir.Vec4:
		return e, nil
	case c != scene.BaseColor && e.Type() == ir.Float:
		return e, nil
	case c != scene.BaseColor && e.Type().IsVector():
		return ir.Swz(e, "x"), nil
	}
	return nil, fmt.Errorf("%w: %s value is %s", ir.ErrTemplate, c, e.Type())
}

func (r *renderGen) material(b *ir.Block, v *visit, m *scene.Material, slot int, set *channelSet) error {
	s := r.g.slotRec(slot)
	r.g.objectSpace(b, r.tuv, r.uv, v.object)
	b.Assign(r.tuv, ir.Sub(r.tuv, ir.At2(s+matPos)))
	b.Assign(r.tuv, ir.B("rotateCW", r.tuv, ir.At(s+matRotate)))
	weight := ir.At(s + matOpacity)
	bind := r.materialBinder(m, s)

	if m.IsCompound {
		channels := make([]scene.Channel, 0, len(m.ChannelTemplates))
		for c := range m.ChannelTemplates {
			channels = append(channels, c)
		}
		slices.Sort(channels)
		for _, c := range channels {
			e, err := ir.ParseTemplate(m.ChannelTemplates[c], bind)
			if err == nil {
				e, err = channelValue(c, e)
			}
			if err != nil {
				return fmt.Errorf("material %q of %q: %w", m.Name, v.obj.Name, err)
			}
			b.Assign(set[c], ir.B("mix", set[c], e, weight))
		}
		return nil
	}

	e, err := ir.ParseTemplate(m.ValueTemplate, bind)
	if err != nil {
		return fmt.Errorf("material %q of %q: %w", m.Name, v.obj.Name, err)
	}
	if e.Type() != ir.Vec4 {
		return fmt.Errorf("material %q of %q: %w: value is %s", m.Name, v.obj.Name, ir.ErrTemplate, e.Type())
	}
	b.Assign(r.value, e)
	w := ir.Mul(ir.Swz(r.value, "w"), weight)
	switch m.LimiterType {
	case scene.LimiterRectangle:
		w = ir.Mul(ir.B("fillMask", ir.B("sdBox", r.tuv, ir.At2(s+matLimiter))), w)
	case scene.LimiterSphere:
		w = ir.Mul(ir.B("fillMask", ir.Sub(ir.B("length", r.tuv), ir.At(s+matLimiter))), w)
	case scene.LimiterBorder:
		w = ir.Mul(ir.B("fillMask", ir.Sub(ir.Neg(r.dist), ir.At(s+matLimiter))), w)
	}
	c := m.Channel
	src := ir.Expr(r.value)
	if c != scene.BaseColor {
		src = ir.Swz(r.value, "x")
	}
	b.Assign(set[c], ir.B("mix", set[c], src, w))
	return nil
}

// profileSegments returns the number of segments of a profile, found by its
// terminator record. Malformed profiles have none.
func profileSegments(p []f32.Vec4) int {
	for i := 0; i < len(p); i += 2 {
		if p[i][2] == -1 {
			return i / 2
		}
	}
	return 0
}

// profiles emits a height function per profiled object and the relief
// normal of the pixel.
func (r *renderGen) profiles() error {
	b := &r.b
	r.normal = b.Decl("normal", ir.Vec(ir.Vec3, ir.F(0), ir.F(0), ir.F(1)))
	var profiled []*visit
	for _, v := range r.g.plan {
		if len(v.obj.Profile) == 0 {
			continue
		}
		if profileSegments(v.obj.Profile) == 0 {
			slogger().Warn("builder: ignoring profile without terminator", "object", v.obj.Name)
			continue
		}
		profiled = append(profiled, v)
	}
	if len(profiled) == 0 {
		return nil
	}
	sdfs, normals, err := r.g.SDFFuncs()
	if err != nil {
		return err
	}
	r.funcs = append(r.funcs, sdfs...)
	r.funcs = append(r.funcs, normals...)
	r.normals = normals

	for _, v := range profiled {
		h := r.heightFunc(v)
		r.funcs = append(r.funcs, h)
		n2 := r.normals[v.rootID]
		b.If(ir.And(ir.Le(r.dist, ir.F(0)), ir.Eq(r.objectID, ir.F(float32(v.object)))), func(t *ir.Block) {
			depth := ir.Neg(r.dist)
			slope := ir.Sub(ir.CallFunc(h, ir.Add(depth, ir.F(0.5))), ir.CallFunc(h, ir.Sub(depth, ir.F(0.5))))
			grad := ir.Mul(ir.CallFunc(n2, r.uv), slope)
			t.Assign(r.normal, ir.B("normalize", ir.Vec(ir.Vec3, grad, ir.F(1))))
		})
	}
	return nil
}

// heightFunc returns heightN(x float) -> float, the profile height at depth
// x. Segments are unrolled; each later segment overrides once x reaches its
// start, and the last one clamps to the center height.
func (r *renderGen) heightFunc(v *visit) *ir.Func {
	f := &ir.Func{
		Name:   fmt.Sprintf("height%d", v.object),
		Params: []ir.Param{{Name: "x", T: ir.Float}},
		Result: ir.Float,
	}
	x := f.Arg(0)
	rec := func(i int) int { return r.g.profileRec(v.profile + i) }
	var b ir.Block
	h := b.Decl("h", ir.At(rec(0)+1))
	for k := range profileSegments(v.obj.Profile) {
		start, ctrl, end := rec(2*k), rec(2*k+1), rec(2*k+2)
		b.If(ir.Ge(x, ir.At(start)), func(t *ir.Block) {
			t.Assign(h, ir.B("profileSegment", x, ir.At4(start), ir.At4(ctrl), ir.At4(end)))
		})
	}
	b.Return(h)
	f.Body = b.Stmts()
	return f
}

// light is the normalized direction towards the key light, halfway its
// half vector with the view direction (0, 0, 1).
var light, halfway = func() ([3]float32, [3]float32) {
	l := [3]float32{-0.4, 0.5, 0.75}
	n := math32.Sqrt(l[0]*l[0] + l[1]*l[1] + l[2]*l[2])
	l = [3]float32{l[0] / n, l[1] / n, l[2] / n}
	h := [3]float32{l[0], l[1], l[2] + 1}
	n = math32.Sqrt(h[0]*h[0] + h[1]*h[1] + h[2]*h[2])
	return l, [3]float32{h[0] / n, h[1] / n, h[2] / n}
}()

func vec3(v [3]float32) ir.Expr { return ir.Vec(ir.Vec3, ir.F(v[0]), ir.F(v[1]), ir.F(v[2])) }

// shadeFunc returns shade(base, a, b, c, n) -> vec4. The channels are packed
// as a = (subsurface, roughness, metallic, specular), b = (specularTint,
// clearcoat, clearcoatGloss, anisotropic) and c = (sheen, sheenTint).
func shadeFunc() *ir.Func {
	f := &ir.Func{
		Name: "shade",
		Params: []ir.Param{
			{Name: "base", T: ir.Vec4},
			{Name: "pa", T: ir.Vec4},
			{Name: "pb", T: ir.Vec4},
			{Name: "pc", T: ir.Vec2},
			{Name: "n", T: ir.Vec3},
		},
		Result: ir.Vec4,
	}
	base, pa, pb, pc, n := f.Arg(0), f.Arg(1), f.Arg(2), f.Arg(3), f.Arg(4)
	comp := func(v ir.Var, c string) ir.Expr { return ir.Swz(v, c) }
	one3 := vec3([3]float32{1, 1, 1})

	var b ir.Block
	col := b.Decl("col", ir.Swz(base, "xyz"))
	ndl := b.Decl("ndl", ir.B("max", ir.B("dot", n, vec3(light)), ir.F(0)))
	wrap := b.Decl("wrap", ir.B("mix", ndl, ir.Add(ir.Mul(ndl, ir.F(0.5)), ir.F(0.5)), comp(pa, "x")))
	ndh := b.Decl("ndh", ir.B("max", ir.B("dot", n, vec3(halfway)), ir.F(0)))
	shin := b.Decl("shin", ir.Mul(
		ir.B("mix", ir.F(256), ir.F(4), comp(pa, "y")),
		ir.Sub(ir.F(1), ir.Mul(ir.F(0.5), comp(pb, "w")))))
	specular := b.Decl("specular", ir.Mul(ir.B("pow", ndh, shin), comp(pa, "w")))
	tint := b.Decl("tint", ir.B("mix", one3, col, comp(pb, "x")))
	specCol := b.Decl("specCol", ir.B("mix", tint, col, comp(pa, "z")))
	coat := b.Decl("coat", ir.Mul(
		ir.Mul(ir.B("pow", ndh, ir.B("mix", ir.F(16), ir.F(512), comp(pb, "z"))), comp(pb, "y")),
		ir.F(0.25)))
	rim := b.Decl("rim", ir.Mul(
		ir.B("pow", ir.Sub(ir.F(1), ir.B("max", comp(n, "z"), ir.F(0))), ir.F(5)),
		comp(pc, "x")))
	sheenCol := b.Decl("sheenCol", ir.B("mix", one3, col, comp(pc, "y")))

	diffuse := ir.Mul(ir.Mul(col, ir.Sub(ir.F(1), comp(pa, "z"))), ir.Add(ir.F(0.15), ir.Mul(ir.F(0.85), wrap)))
	lit := b.Decl("lit", ir.Add(ir.Add(diffuse, ir.Mul(specCol, specular)),
		ir.Add(ir.Mul(one3, coat), ir.Mul(sheenCol, rim))))
	b.Return(ir.Vec(ir.Vec4, lit, ir.Swz(base, "w")))
	f.Body = b.Stmts()
	return f
}

func (r *renderGen) shade(f *ir.Func, cs *channelSet) ir.Expr {
	return ir.CallFunc(f,
		cs[scene.BaseColor],
		ir.Vec(ir.Vec4, cs[scene.Subsurface], cs[scene.Roughness], cs[scene.Metallic], cs[scene.Specular]),
		ir.Vec(ir.Vec4, cs[scene.SpecularTint], cs[scene.Clearcoat], cs[scene.ClearcoatGloss], cs[scene.Anisotropic]),
		ir.Vec(ir.Vec2, cs[scene.Sheen], cs[scene.SheenTint]),
		r.normal,
	)
}

// output emits the background, the body and border blend and the store.
func (r *renderGen) output() {
	b := &r.b
	col := b.Decl("col", ir.Vec(ir.Vec4, ir.F(0), ir.F(0), ir.F(0), ir.F(0)))
	if r.preview {
		pix := ir.V("pix", ir.Vec2)
		cell := b.Decl("cell", ir.B("floor", ir.Div(pix, ir.F(12))))
		parity := b.Decl("parity", ir.Mul(ir.B("fract", ir.Div(ir.Add(ir.Swz(cell, "x"), ir.Swz(cell, "y")), ir.F(2))), ir.F(2)))
		bright := ir.Vec(ir.Vec4, ir.F(0.85), ir.F(0.85), ir.F(0.85), ir.F(1))
		dark := ir.Vec(ir.Vec4, ir.F(0.7), ir.F(0.7), ir.F(0.7), ir.F(1))
		b.Assign(col, ir.B("mix", bright, dark, parity))
		frame := ir.B("sdBox", pix, ir.At2(hdrPreview))
		black := ir.Vec(ir.Vec4, ir.F(0), ir.F(0), ir.F(0), ir.F(1))
		b.Assign(col, ir.B("mix", col, black, ir.B("borderMask", frame, ir.F(2))))
	}

	if r.mode == Distance {
		g := b.Decl("g", ir.Add(ir.F(0.5), ir.Mul(ir.F(0.5), ir.B("sin", ir.Mul(r.dist, ir.F(0.25))))))
		inside := ir.Vec(ir.Vec4, ir.Mul(g, ir.F(0.6)), ir.Mul(g, ir.F(0.8)), g, ir.F(1))
		outside := ir.Vec(ir.Vec4, g, ir.Mul(g, ir.F(0.8)), ir.Mul(g, ir.F(0.6)), ir.F(1))
		b.Assign(col, ir.Sel(ir.Le(r.dist, ir.F(0)), inside, outside))
		b.Store(0, col)
		return
	}

	var fill, border ir.Expr = r.body[scene.BaseColor], r.border[scene.BaseColor]
	if r.mode == PBR {
		sh := shadeFunc()
		r.funcs = append(r.funcs, sh)
		fill = r.shade(sh, &r.body)
		border = r.shade(sh, &r.border)
	}
	fillC := b.Decl("fill", fill)
	borderC := b.Decl("borderCol", border)
	b.Assign(col, ir.B("mix", col, fillC,
		ir.Mul(ir.Mul(ir.B("fillMask", r.dist), ir.Swz(fillC, "w")), r.opacity)))
	b.Assign(col, ir.B("mix", col, borderC,
		ir.Mul(ir.Mul(ir.B("borderMask", r.dist, r.borderWidth), ir.Swz(borderC, "w")), r.opacity)))
	b.Store(0, col)
}
