// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package physics runs 2D impulse-based rigid body physics on scene objects
// whose collision geometry is their signed distance field.
//
// Every collision root (physicsMode Dynamic or Static) gets a Body; dynamic
// roots also get a set of proxy disks. Each step, one sampling kernel
// evaluates the distance field of every other collision object at every disk
// of every dynamic body; the samples are turned into contact manifolds and
// resolved on the CPU.
//
//	p, err := physics.BuildPhysics(ctx, objects, cam)
//	if err != nil { ... }
//	defer p.Release()
//	for range frames {
//		if err := physics.Step(ctx, p, inst, cam); err != nil { ... }
//	}
package physics

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/internal/layout"
	"github.com/gogpu/sdfscene/scene"
)

// ErrNoBuilder is returned by Step when it is called without a physics
// instance, which happens when BuildPhysics found nothing to simulate.
var ErrNoBuilder = errors.New("physics: no physics instance")

// DefaultGravity is the per-step gravity acceleration, y up.
var DefaultGravity = mgl32.Vec2{0, -0.5}

const (
	// sampleStride is (radius - d, d, n.x, n.y) per lane.
	sampleStride = 4
	// laneStride is (offset.x, offset.y, radius, dynamic object record,
	// other root) per lane.
	laneStride = 5
)

// Option configures BuildPhysics.
type Option func(*options)

type options struct {
	device   compute.Device
	gravity  mgl32.Vec2
	resolver animation.Resolver
	contacts ContactResolver
	cell     float32
	frame    float32
}

func defaultOptions() options {
	return options{gravity: DefaultGravity, contacts: SequentialImpulse{}, cell: 1}
}

// WithDevice sets the compute device. The default is a CPU device owned by
// the instance.
func WithDevice(d compute.Device) Option {
	return func(o *options) { o.device = d }
}

// WithGravity sets the gravity applied to every dynamic body.
func WithGravity(g mgl32.Vec2) Option {
	return func(o *options) { o.gravity = g }
}

// WithResolver sets the animation resolver used when Step is called without
// a builder instance.
func WithResolver(r animation.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithContactResolver replaces the SequentialImpulse contact resolver.
func WithContactResolver(r ContactResolver) Option {
	return func(o *options) {
		if r != nil {
			o.contacts = r
		}
	}
}

// WithCellSize sets the grid cell size used to build the proxy disks.
func WithCellSize(size float32) Option {
	return func(o *options) {
		if size > 0 {
			o.cell = size
		}
	}
}

// WithFrame sets the animation frame the proxy disks are built at.
func WithFrame(frame float32) Option {
	return func(o *options) { o.frame = frame }
}

// lane is one (dynamic body, other collision object, disk) sample.
type lane struct {
	dynamic, other int // indices into Instance.bodies
	disk           int
}

// Instance is a compiled physics world.
//
// Thread safety: Instance is not safe for concurrent use.
type Instance struct {
	geo    *builder.Geometry
	kernel *ir.Kernel
	prog   compute.Program
	dev    compute.Device
	// ownDevice is set when the instance created dev and must close it.
	ownDevice bool

	opts  options
	lanes layout.Section
	// bodies are the collision roots in root order.
	bodies []*scene.Object
	dyn    []int
	table  []lane
}

// BuildPhysics creates bodies for the collision roots of objects, proxy
// disks for the dynamic ones, and compiles the sampling kernel. A dynamic
// object without interior gets no disks and never collides. A scene without
// collision objects, or without any dynamic body touching another collision
// object, yields (nil, nil).
func BuildPhysics(ctx context.Context, objects []*scene.Object, camera scene.Camera, opts ...Option) (*Instance, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var bodies []*scene.Object
	for _, obj := range objects {
		if obj.PhysicsMode().Collides() && len(obj.Shapes)+len(obj.Children) > 0 {
			bodies = append(bodies, obj)
		}
	}
	if len(bodies) == 0 {
		slogger().Debug("physics: no collision objects", "objects", len(objects))
		return nil, nil
	}

	p := &Instance{dev: o.device, opts: o, bodies: bodies}
	if p.dev == nil {
		p.dev = compute.NewCPU(0)
		p.ownDevice = true
	}

	diskOpts := []builder.Option{builder.WithCellSize(o.cell), builder.WithFrame(o.frame), builder.WithResolver(o.resolver)}
	for _, obj := range bodies {
		if obj.Disks == nil && obj.PhysicsMode() == scene.PhysicsDynamic {
			d, err := builder.BuildDisk(ctx, p.dev, obj, diskOpts...)
			switch {
			case errors.Is(err, builder.ErrNoInterior):
				slogger().Debug("physics: no proxy disk", "object", obj.Name)
				obj.Disks = []scene.Disk{}
			case err != nil:
				p.Release()
				return nil, fmt.Errorf("physics: %q: %w", obj.Name, err)
			default:
				obj.Disks = []scene.Disk{d}
			}
		}
		obj.Body = scene.NewBody(obj, obj.Disks, o.gravity)
	}

	for i, obj := range bodies {
		if obj.PhysicsMode() != scene.PhysicsDynamic {
			continue
		}
		p.dyn = append(p.dyn, i)
		for j := range bodies {
			if j == i {
				continue
			}
			for k := range obj.Disks {
				p.table = append(p.table, lane{dynamic: i, other: j, disk: k})
			}
		}
	}
	if len(p.table) == 0 {
		slogger().Debug("physics: no sampling lanes", "bodies", len(bodies))
		p.Release()
		return nil, nil
	}

	geo, err := builder.NewGeometry(bodies, builder.FilterPhysics, o.resolver,
		builder.Extra{Name: "lanes", Len: laneStride * len(p.table)})
	if err != nil {
		p.Release()
		return nil, err
	}
	p.geo = geo
	p.lanes, _ = geo.Section("lanes")

	k, err := generateSampler(geo, p.lanes)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: %w", builder.ErrCompile, err)
	}
	p.kernel = k
	if err := p.refresh(o.frame, camera, false); err != nil {
		p.Release()
		return nil, err
	}
	prog, err := p.dev.Compile(k)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: %w", builder.ErrCompile, err)
	}
	p.prog = prog

	slogger().Debug("physics: built world",
		"device", p.dev.Name(),
		"bodies", len(p.bodies),
		"dynamic", len(p.dyn),
		"lanes", len(p.table))
	return p, nil
}

// generateSampler emits the kernel run with one lane per table entry. Each
// lane places its disk in world space from the dynamic object's record and
// samples the distance field and normal of the other root there.
func generateSampler(g *builder.Geometry, lanes layout.Section) (*ir.Kernel, error) {
	sdfs, normals, err := g.SDFFuncs()
	if err != nil {
		return nil, err
	}
	objects, _ := g.Section("objects")

	var b ir.Block
	base := b.Decl("base", ir.Mul(ir.Lane{Axis: ir.LaneIndex}, ir.F(laneStride)))
	off := b.Decl("off", ir.Vec(ir.Vec2, ir.AtIndex(lanes.Offset, base), ir.AtIndex(lanes.Offset+1, base)))
	radius := b.Decl("radius", ir.AtIndex(lanes.Offset+2, base))
	rec := b.Decl("rec", ir.Mul(ir.AtIndex(lanes.Offset+3, base), ir.F(builder.ObjectStride)))
	other := b.Decl("other", ir.AtIndex(lanes.Offset+4, base))
	pos := b.Decl("pos", ir.Vec(ir.Vec2,
		ir.AtIndex(objects.Offset+builder.ObjectPos, rec),
		ir.AtIndex(objects.Offset+builder.ObjectPos+1, rec)))
	center := b.Decl("center", ir.Add(pos, ir.B("rotateCCW", off, ir.AtIndex(objects.Offset+builder.ObjectRotate, rec))))
	d := b.Decl("d", ir.F(1e5))
	n := b.Decl("n", ir.Vec(ir.Vec2, ir.F(0), ir.F(1)))
	for r := range sdfs {
		b.If(ir.Eq(other, ir.F(float32(r))), func(t *ir.Block) {
			t.Assign(d, ir.CallFunc(sdfs[r], center))
			t.Assign(n, ir.CallFunc(normals[r], center))
		})
	}
	b.Store(0, ir.Sub(radius, d))
	b.Store(1, d)
	b.Store(2, n)

	funcs := make([]*ir.Func, 0, 2*len(sdfs))
	funcs = append(funcs, sdfs...)
	funcs = append(funcs, normals...)
	k := &ir.Kernel{Name: "contacts", Funcs: funcs, Body: b.Stmts(), Stride: sampleStride}
	if err := ir.Check(k); err != nil {
		return nil, err
	}
	return k, nil
}

// refresh rewrites the scene records and the lane table.
func (p *Instance) refresh(frame float32, camera scene.Camera, advance bool) error {
	if err := p.geo.Update(frame, advance); err != nil {
		return err
	}
	if err := p.geo.SetHeader(builder.Header{Camera: camera, Frame: frame}); err != nil {
		return err
	}
	w := p.geo.Buffer().Writer(p.lanes)
	for _, l := range p.table {
		obj := p.bodies[l.dynamic]
		d := obj.Disks[l.disk]
		w.Put(d.Offset[0], d.Offset[1], d.Radius, float32(p.geo.ObjectIndex(obj)), float32(l.other))
	}
	return w.Err()
}

// Bodies returns the collision objects in root order.
func (p *Instance) Bodies() []*scene.Object { return p.bodies }

// Kernel returns the generated sampling kernel.
func (p *Instance) Kernel() *ir.Kernel { return p.kernel }

// Release frees the program and, when the instance created it, the device.
func (p *Instance) Release() {
	if p == nil {
		return
	}
	if p.prog != nil {
		p.prog.Release()
		p.prog = nil
	}
	if p.ownDevice && p.dev != nil {
		p.dev.Close()
		p.dev = nil
	}
}
