// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package builder compiles a scene tree into a single data-parallel SDF
// program and keeps its data buffer in sync with the tree.
//
// Build walks the objects once to count records, once to emit the kernel and
// once more (Update) to fill the buffer. All three use the same traversal, so
// record indices baked into the kernel always match the buffer. After a
// build, property edits only require Update; structural edits (adding shapes,
// points or materials) require a new Build.
//
//	inst, err := builder.Build(ctx, objects, cam)
//	if err != nil { ... }
//	defer inst.Release()
//	img, err := inst.Render(ctx, cam, 800, 600, nil)
package builder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/scene"
)

var (
	// ErrCompile is returned when the generated program fails to compile.
	ErrCompile = errors.New("builder: program compilation failed")

	// ErrPointCycle is returned when point connections form a cycle.
	ErrPointCycle = errors.New("builder: point connection cycle")

	// ErrNoInterior is returned by BuildDisk when no sample lies inside the object.
	ErrNoInterior = errors.New("builder: object has no interior")
)

// RenderMode selects what the render kernel writes.
type RenderMode uint8

const (
	// PBR shades the body and border channel sets with a directional light.
	PBR RenderMode = iota
	// Color writes the base colors only.
	Color
	// Distance visualizes the scene distance field.
	Distance
)

// String returns the mode name.
func (m RenderMode) String() string {
	switch m {
	case PBR:
		return "pbr"
	case Color:
		return "color"
	case Distance:
		return "distance"
	}
	return fmt.Sprintf("RenderMode(%d)", m)
}

// Preview draws a checkerboard background and a frame of half size Size
// around the viewport center.
type Preview struct {
	Size f32.Vec2
}

// Option configures Build and BuildDisk.
type Option func(*options)

type options struct {
	device   compute.Device
	preview  *Preview
	mode     RenderMode
	resolver animation.Resolver
	sequence string
	filter   Filter
	frame    float32
	cell     float32
}

func defaultOptions() options {
	return options{mode: PBR, filter: FilterAll, cell: 1}
}

// WithDevice sets the compute device. The default is a CPU device owned by
// the instance.
func WithDevice(d compute.Device) Option {
	return func(o *options) { o.device = d }
}

// WithPreview enables the preview background.
func WithPreview(p Preview) Option {
	return func(o *options) { o.preview = &p }
}

// WithRenderMode sets the render mode. The default is PBR.
func WithRenderMode(m RenderMode) Option {
	return func(o *options) { o.mode = m }
}

// WithResolver sets the animation resolver consulted by the updater.
func WithResolver(r animation.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithSequence animates every root without a sequence of its own with the
// given sequence.
func WithSequence(id string) Option {
	return func(o *options) { o.sequence = id }
}

// WithFilter restricts the roots that are built.
func WithFilter(f Filter) Option {
	return func(o *options) { o.filter = f }
}

// WithFrame sets the initial animation frame.
func WithFrame(frame float32) Option {
	return func(o *options) { o.frame = frame }
}

// WithCellSize sets the world size of one BuildDisk grid cell. The default
// is one unit.
func WithCellSize(size float32) Option {
	return func(o *options) {
		if size > 0 {
			o.cell = size
		}
	}
}

// sequenceResolver substitutes a default sequence for roots without one.
type sequenceResolver struct {
	r   animation.Resolver
	seq string
}

func (s sequenceResolver) Resolve(seq, uuid string, props scene.Properties, frame float32) scene.Properties {
	if seq == "" {
		seq = s.seq
	}
	return animation.Resolve(s.r, seq, uuid, props, frame)
}

func (o *options) animation() animation.Resolver {
	if o.resolver == nil || o.sequence == "" {
		return o.resolver
	}
	return sequenceResolver{r: o.resolver, seq: o.sequence}
}

// Instance is a compiled scene: the geometry buffer plus the render program.
//
// Thread safety: Instance is not safe for concurrent use.
type Instance struct {
	geo    *Geometry
	kernel *ir.Kernel
	prog   compute.Program
	dev    compute.Device
	// ownDevice is set when the instance created dev and must close it.
	ownDevice bool

	opts   options
	camera scene.Camera
	frame  float32
	width  int
	height int
}

// Build compiles objects into an instance. A scene without shapes is valid
// and yields (nil, nil).
func Build(ctx context.Context, objects []*scene.Object, camera scene.Camera, opts ...Option) (*Instance, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := Count(objects, o.filter)
	if counts.Shapes == 0 {
		slogger().Debug("builder: empty scene", "objects", len(objects))
		return nil, nil
	}

	geo, err := NewGeometry(objects, o.filter, o.animation())
	if err != nil {
		return nil, err
	}
	k, err := generateRender(geo, o.mode, o.preview != nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	in := &Instance{geo: geo, kernel: k, dev: o.device, opts: o, camera: camera, frame: o.frame}
	if in.dev == nil {
		in.dev = compute.NewCPU(0)
		in.ownDevice = true
	}
	if err := in.fill(); err != nil {
		in.Release()
		return nil, err
	}
	prog, err := in.dev.Compile(k)
	if err != nil {
		in.Release()
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	in.prog = prog

	slogger().Debug("builder: built scene",
		"device", in.dev.Name(),
		"shapes", counts.Shapes,
		"points", counts.Points,
		"objects", counts.Objects,
		"materialSlots", counts.MaterialSlots,
		"profileSlots", counts.ProfileSlots,
		"floats", geo.Buffer().Len())
	return in, nil
}

// Update refreshes the data buffer from the object tree without recompiling.
// Instance roots advance their playback.
func (in *Instance) Update(camera scene.Camera, frame float32) error {
	in.camera, in.frame = camera, frame
	if err := in.geo.Update(frame, true); err != nil {
		return err
	}
	return in.setHeader(in.width, in.height)
}

// fill writes the initial buffer contents without advancing playback.
func (in *Instance) fill() error {
	if err := in.geo.Update(in.frame, false); err != nil {
		return err
	}
	return in.setHeader(in.width, in.height)
}

func (in *Instance) setHeader(width, height int) error {
	h := Header{Camera: in.camera, Frame: in.frame, Width: width, Height: height}
	if in.opts.preview != nil {
		h.Preview = in.opts.preview.Size
	}
	return in.geo.SetHeader(h)
}

// Frame returns the frame of the last Update.
func (in *Instance) Frame() float32 { return in.frame }

// Resolver returns the animation resolver the instance updates with,
// including the WithSequence default.
func (in *Instance) Resolver() animation.Resolver { return in.opts.animation() }

// Geometry returns the instance's buffer owner.
func (in *Instance) Geometry() *Geometry { return in.geo }

// Kernel returns the generated render kernel.
func (in *Instance) Kernel() *ir.Kernel { return in.kernel }

// Counts returns the record counts of the instance.
func (in *Instance) Counts() Counts { return in.geo.Counts() }

// Device returns the compute device the instance runs on.
func (in *Instance) Device() compute.Device { return in.dev }

// Release frees the program and, when the instance created it, the device.
func (in *Instance) Release() {
	if in == nil {
		return
	}
	if in.prog != nil {
		in.prog.Release()
		in.prog = nil
	}
	if in.ownDevice && in.dev != nil {
		in.dev.Close()
		in.dev = nil
	}
}
