// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/internal/ir/cpu"
	"github.com/gogpu/sdfscene/scene"
)

// DiskGrid is the side of the sampling grid used by BuildDisk.
const DiskGrid = 800

// generateDisk samples sdf over a DiskGrid x DiskGrid grid of the given cell
// size centered on object record 0.
func generateDisk(g *Geometry, sdf *ir.Func, cell float32) *ir.Kernel {
	half := float32(DiskGrid) / 2
	var b ir.Block
	off := b.Decl("off", ir.Mul(ir.Vec(ir.Vec2,
		ir.Sub(ir.Lane{Axis: ir.LaneX}, ir.F(half)),
		ir.Sub(ir.F(half), ir.Lane{Axis: ir.LaneY}),
	), ir.F(cell)))
	b.Store(0, ir.CallFunc(sdf, ir.Add(off, ir.At2(g.objectRec(0)+objPos))))
	return &ir.Kernel{Name: "disk", Funcs: []*ir.Func{sdf}, Body: b.Stmts(), Stride: 1}
}

// BuildDisk approximates the shape composition of o with one disk centered
// on its deepest interior sample. The offset is in o's rest frame. A nil
// device uses a temporary CPU device.
func BuildDisk(ctx context.Context, dev compute.Device, o *scene.Object, opts ...Option) (scene.Disk, error) {
	op := defaultOptions()
	for _, opt := range opts {
		opt(&op)
	}
	if dev == nil {
		cpuDev := compute.NewCPU(0)
		defer cpuDev.Close()
		dev = cpuDev
	}

	g, err := NewGeometry([]*scene.Object{o}, FilterAll, op.animation())
	if err != nil {
		return scene.Disk{}, err
	}
	if err := g.Update(op.frame, false); err != nil {
		return scene.Disk{}, err
	}
	sdf, err := g.SDFFunc(0)
	if err != nil {
		return scene.Disk{}, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	k := generateDisk(g, sdf, op.cell)
	if err := ir.Check(k); err != nil {
		return scene.Disk{}, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	prog, err := dev.Compile(k)
	if err != nil {
		return scene.Disk{}, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	defer prog.Release()

	out, err := prog.Dispatch(ctx, g.Buffer().Data(), DiskGrid, DiskGrid)
	if err != nil {
		return scene.Disk{}, fmt.Errorf("builder: disk %q: %w", o.Name, err)
	}
	best, at := float32(0), -1
	for i, d := range out {
		if d < best {
			best, at = d, i
		}
	}
	if at < 0 {
		return scene.Disk{}, fmt.Errorf("%w: %q", ErrNoInterior, o.Name)
	}

	half := float32(DiskGrid) / 2
	x := (float32(at%DiskGrid) - half) * op.cell
	y := (half - float32(at/DiskGrid)) * op.cell
	rot := o.Properties.Get("rotate") * math32.Pi / 180
	rx, ry := cpu.RotateCW(x, y, rot)
	disk := scene.Disk{Offset: f32.Vec2{rx, ry}, Radius: -best}
	slogger().Debug("builder: disk proxy", "object", o.Name, "offset", disk.Offset, "radius", disk.Radius)
	return disk, nil
}
