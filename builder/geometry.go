// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/internal/layout"
	"github.com/gogpu/sdfscene/scene"
)

// Record strides in floats.
const (
	headerLen    = 8
	shapeStride  = 12
	pointStride  = 4
	objectStride = 8
	slotStride   = 4
	recordStride = 4
)

// Header fields.
const (
	hdrCamera  = 0 // x, y
	hdrInvZoom = 2
	hdrFrame   = 3
	hdrCenter  = 4 // x, y
	hdrPreview = 6 // half width, half height
)

// Shape record fields.
const (
	shapePos      = 0 // x, y
	shapeSize     = 2 // width, height
	shapeRotate   = 4
	shapeRounding = 5
	shapeAnnular  = 6
	shapeSmooth   = 7
	shapeCustom   = 8 // MaxCustom floats
)

// Object record fields. Values are the transform accumulated from the root.
const (
	objBorder  = 0
	objRotate  = 1
	objScale   = 2 // x, y
	objPos     = 4 // x, y
	objOpacity = 6
)

// Material slot fields, relative to the first slot of a material.
const (
	matPos     = 0  // x, y
	matSize    = 2  // width, height
	matRotate  = 4  // radians
	matOpacity = 5
	matLimiter = 6  // half width, half height
	matCustom  = 8  // MaxCustom floats
	matValues  = 12 // value, or points followed by point values
)

// Object record layout, for kernels that read the objects section directly.
const (
	ObjectStride = objectStride
	ObjectPos    = objPos
	ObjectRotate = objRotate
)

// Extra reserves an additional named section after the scene records, for
// callers that run their own kernels over the same data buffer.
type Extra struct {
	Name string
	Len  int
}

// Header is the per-render global record.
type Header struct {
	Camera        scene.Camera
	Frame         float32
	Width, Height int
	// Preview is the half size of the preview frame drawn around the
	// viewport center. Zero disables the preview background.
	Preview f32.Vec2
}

// Geometry owns the packed data buffer of a set of root objects: its layout,
// the traversal plan the kernels were generated from and the updater that
// refreshes the records.
//
// Thread safety: Geometry is not safe for concurrent use.
type Geometry struct {
	objects []*scene.Object
	walker  walker

	counts Counts
	plan   []*visit
	roots  []*scene.Object
	conns  map[*scene.Object][]*scene.PointConnection

	layout                                                 layout.Layout
	header, shapes, points, objectRecs, materials, profile layout.Section
	buf                                                    *layout.Buffer

	// pointRef maps a control point to its point record.
	pointRef map[scene.PointRef]int
	frames   []pointFrame
}

// pointFrame is the frame of one control point for the connection pass.
type pointFrame struct {
	shape  f32.Vec2 // shape position
	parent f32.Vec2 // accumulated object position
	local  f32.Vec2
}

// NewGeometry plans the buffer of the roots accepted by filter. The point
// connections of every object are ordered once here; a cycle is reported as
// ErrPointCycle.
func NewGeometry(objects []*scene.Object, filter Filter, resolver animation.Resolver, extra ...Extra) (*Geometry, error) {
	g := &Geometry{
		objects:  objects,
		walker:   walker{filter: filter, resolver: resolver},
		conns:    make(map[*scene.Object][]*scene.PointConnection),
		pointRef: make(map[scene.PointRef]int),
	}
	var err error
	g.counts = g.walker.run(objects, func(v *visit) {
		g.plan = append(g.plan, v)
		if v.isRoot {
			g.roots = append(g.roots, v.obj)
		}
		v.eachShape(func(s *scene.Shape, _, point int) {
			for i := range s.PointCount {
				g.pointRef[scene.PointRef{ShapeUUID: s.UUID, Index: i}] = point + i
			}
		})
		if err != nil || len(v.obj.PointConnections) == 0 {
			return
		}
		var order []*scene.PointConnection
		order, err = orderConnections(v.obj)
		g.conns[v.obj] = order
	})
	if err != nil {
		return nil, err
	}

	c := g.counts
	g.header = g.layout.Add("header", headerLen)
	g.shapes = g.layout.Add("shapes", shapeStride*c.Shapes)
	g.points = g.layout.Add("points", pointStride*c.Points)
	g.objectRecs = g.layout.Add("objects", objectStride*c.Objects)
	g.materials = g.layout.Add("materials", slotStride*c.MaterialSlots)
	g.profile = g.layout.Add("profile", recordStride*c.ProfileSlots)
	for _, e := range extra {
		g.layout.Add(e.Name, e.Len)
	}
	g.buf = layout.New(&g.layout)
	g.frames = make([]pointFrame, c.Points)
	return g, nil
}

// orderConnections returns the connections of o so that a connection whose
// master is itself a slave comes after the connection driving it.
func orderConnections(o *scene.Object) ([]*scene.PointConnection, error) {
	driver := make(map[scene.PointRef]*scene.PointConnection)
	for _, c := range o.PointConnections {
		for _, s := range c.Slaves {
			driver[s] = c
		}
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*scene.PointConnection]uint8, len(o.PointConnections))
	out := make([]*scene.PointConnection, 0, len(o.PointConnections))
	var visit func(c *scene.PointConnection) error
	visit = func(c *scene.PointConnection) error {
		switch state[c] {
		case visiting:
			return fmt.Errorf("%w: object %q, shape %s point %d", ErrPointCycle, o.Name, c.Master.ShapeUUID, c.Master.Index)
		case done:
			return nil
		}
		state[c] = visiting
		if d, ok := driver[c.Master]; ok {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[c] = done
		out = append(out, c)
		return nil
	}
	for _, c := range o.PointConnections {
		if err := visit(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Counts returns the record counts the buffer was planned for.
func (g *Geometry) Counts() Counts { return g.counts }

// SetResolver replaces the animation resolver consulted by Update.
func (g *Geometry) SetResolver(r animation.Resolver) { g.walker.resolver = r }

// Roots returns the root objects in traversal order.
func (g *Geometry) Roots() []*scene.Object { return g.roots }

// Buffer returns the packed data buffer.
func (g *Geometry) Buffer() *layout.Buffer { return g.buf }

// Section returns a named section, including extras.
func (g *Geometry) Section(name string) (layout.Section, bool) { return g.layout.Lookup(name) }

// ObjectIndex returns the object record index of o, or -1.
func (g *Geometry) ObjectIndex(o *scene.Object) int {
	for _, v := range g.plan {
		if v.obj == o {
			return v.object
		}
	}
	return -1
}

// objectAt returns the object with record index i.
func (g *Geometry) objectAt(i int) *scene.Object {
	if i < 0 || i >= len(g.plan) {
		return nil
	}
	return g.plan[i].obj
}

func (g *Geometry) shapeRec(i int) int   { return g.shapes.Offset + shapeStride*i }
func (g *Geometry) pointRec(i int) int   { return g.points.Offset + pointStride*i }
func (g *Geometry) objectRec(i int) int  { return g.objectRecs.Offset + objectStride*i }
func (g *Geometry) slotRec(i int) int    { return g.materials.Offset + slotStride*i }
func (g *Geometry) profileRec(i int) int { return g.profile.Offset + recordStride*i }

// SetHeader writes the global record.
func (g *Geometry) SetHeader(h Header) error {
	w := g.buf.Writer(g.header)
	w.Put(h.Camera.X, h.Camera.Y, h.Camera.InvZoom(), h.Frame)
	w.Put(float32(h.Width)/2, float32(h.Height)/2, h.Preview[0], h.Preview[1])
	return w.Err()
}

// Update refreshes every scene record from the current object tree at
// frame. It runs three passes: the traversal writes shapes, objects,
// materials and profiles while collecting point frames, the connection pass
// moves slave points onto their masters, and the point pass writes the
// point records. With advance set, instance roots step their own frame
// counter afterwards.
//
// Update fails with layout.ErrCountMismatch when the tree no longer matches
// the planned layout; rebuild in that case.
func (g *Geometry) Update(frame float32, advance bool) error {
	g.walker.frame = frame
	shapes := g.buf.Writer(g.shapes)
	objects := g.buf.Writer(g.objectRecs)
	materials := g.buf.Writer(g.materials)
	profile := g.buf.Writer(g.profile)
	overflow := false

	counts := g.walker.run(g.objects, func(v *visit) {
		g.writeObject(objects, v)
		v.eachShape(func(s *scene.Shape, _, point int) {
			props := v.resolve(s.UUID, s.Properties)
			writeShape(shapes, s, props)
			for i := range s.PointCount {
				if point+i >= len(g.frames) {
					overflow = true
					return
				}
				g.frames[point+i] = pointFrame{
					shape:  f32.Vec2{props.Get("posX"), props.Get("posY")},
					parent: f32.Vec2{v.xf.PosX, v.xf.PosY},
					local:  s.Point(props, i),
				}
			}
		})
		for _, m := range v.obj.BodyMaterials {
			writeMaterial(materials, m, v.resolve(m.UUID, m.Properties))
		}
		for _, m := range v.obj.BorderMaterials {
			writeMaterial(materials, m, v.resolve(m.UUID, m.Properties))
		}
		for _, r := range v.obj.Profile {
			profile.Put(r[0], r[1], r[2], r[3])
		}
	})
	if overflow || counts != g.counts {
		return fmt.Errorf("%w: scene has %+v, buffer planned for %+v", layout.ErrCountMismatch, counts, g.counts)
	}
	for _, w := range []*layout.Writer{shapes, objects, materials, profile} {
		if err := w.Err(); err != nil {
			return err
		}
	}

	for _, order := range g.conns {
		g.connect(order)
	}

	points := g.buf.Writer(g.points)
	for _, f := range g.frames {
		points.Put(f.local[0], f.local[1], 0, 0)
	}
	if err := points.Err(); err != nil {
		return err
	}

	if advance {
		for _, r := range g.roots {
			r.Advance()
		}
	}
	return nil
}

// connect publishes the world position of each master and moves its slaves
// onto it, in dependency order.
func (g *Geometry) connect(order []*scene.PointConnection) {
	for _, c := range order {
		mi, ok := g.pointRef[c.Master]
		if !ok {
			continue
		}
		m := g.frames[mi]
		c.World = f32.Vec2{
			m.shape[0] + m.parent[0] + m.local[0],
			m.shape[1] + m.parent[1] + m.local[1],
		}
		for _, s := range c.Slaves {
			si, ok := g.pointRef[s]
			if !ok {
				continue
			}
			f := &g.frames[si]
			f.local = f32.Vec2{
				c.World[0] - f.shape[0] - f.parent[0],
				c.World[1] - f.shape[1] - f.parent[1],
			}
		}
	}
}

func (g *Geometry) writeObject(w *layout.Writer, v *visit) {
	xf := v.xf
	rot := xf.Rotate * math32.Pi / 180
	w.Put(v.props.GetOr("border", 0), rot, xf.ScaleX, xf.ScaleY, xf.PosX, xf.PosY, v.props.GetOr("opacity", 1), 0)

	p := v.obj.Properties
	p.Set("trans_rotate", rot)
	p.Set("trans_scaleX", xf.ScaleX)
	p.Set("trans_scaleY", xf.ScaleY)
	p.Set("trans_posX", xf.PosX)
	p.Set("trans_posY", xf.PosY)
}

func writeShape(w *layout.Writer, s *scene.Shape, p scene.Properties) {
	width := p.Get(s.WidthProperty)
	height := p.Get(s.HeightProperty)
	size := min(width, height)
	w.Put(
		p.Get("posX"), p.Get("posY"),
		width, height,
		p.Get("rotate")*math32.Pi/180,
		p.Get("rounding")*size/2,
		p.Get("annular")*size/3.5,
		p.Get("smoothBoolean")*size,
	)
	writeCustom(w, s.CustomProperties, p)
}

func writeCustom(w *layout.Writer, names []string, p scene.Properties) {
	var c [scene.MaxCustom]float32
	for i, name := range names {
		if i == scene.MaxCustom {
			break
		}
		c[i] = p.Get(name)
	}
	w.Put(c[:]...)
}

func writeMaterial(w *layout.Writer, m *scene.Material, p scene.Properties) {
	w.Put(p.Get("posX"), p.Get("posY"), p.Get(m.WidthProperty), p.Get(m.HeightProperty))
	w.Put(p.Get("rotate")*math32.Pi/180, p.GetOr("opacity", 1), p.Get("limiterWidth"), p.Get("limiterHeight"))
	writeCustom(w, m.CustomProperties, p)
	if m.PointCount == 0 {
		w.Put(p.Get("value_x"), p.Get("value_y"), p.Get("value_z"), p.Get("value_w"))
		return
	}
	for i := range m.PointCount {
		w.Put(p.Get(scene.PointKey(i, "x")), p.Get(scene.PointKey(i, "y")), 0, 0)
	}
	for i := range m.PointCount {
		w.Put(
			p.Get(scene.PointValueKey(i, "x")), p.Get(scene.PointValueKey(i, "y")),
			p.Get(scene.PointValueKey(i, "z")), p.Get(scene.PointValueKey(i, "w")),
		)
	}
}
