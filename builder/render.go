// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"context"
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/scene"
)

// Render draws the scene into a width x height image. The header is
// refreshed with camera; call Update first to pick up property changes.
// dst is reused when its bounds match.
func (in *Instance) Render(ctx context.Context, camera scene.Camera, width, height int, dst *image.NRGBA) (*image.NRGBA, error) {
	if in.prog == nil {
		return nil, compute.ErrReleased
	}
	in.camera, in.width, in.height = camera, width, height
	if err := in.setHeader(width, height); err != nil {
		return nil, err
	}
	out, err := in.prog.Dispatch(ctx, in.geo.Buffer().Data(), width, height)
	if err != nil {
		return nil, fmt.Errorf("builder: render: %w", err)
	}

	bounds := image.Rect(0, 0, width, height)
	if dst == nil || dst.Bounds() != bounds {
		dst = image.NewNRGBA(bounds)
	}
	for y := range height {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+4*width]
		src := out[y*width*renderStride : (y+1)*width*renderStride]
		for i := range row {
			row[i] = toByte(src[i])
		}
	}
	return dst, nil
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// hitStride is (distance, object index, shape index within the object).
const hitStride = 3

// generateHit builds a one-lane kernel evaluating every shape at the pixel
// offset pix from the viewport center and keeping the closest.
func generateHit(g *Geometry, pix [2]float32) (*ir.Kernel, error) {
	var b ir.Block
	uv := b.Decl("uv", viewUV(ir.Vec(ir.Vec2, ir.F(pix[0]), ir.F(pix[1]))))
	tuv := b.Decl("tuv", zero2)
	nd := b.Decl("nd", ir.F(far))
	best := b.Decl("best", ir.F(far))
	obj := b.Decl("obj", ir.F(-1))
	shp := b.Decl("shp", ir.F(-1))
	for _, v := range g.plan {
		var err error
		v.eachShape(func(s *scene.Shape, shape, point int) {
			if err != nil {
				return
			}
			if err = g.shapeDistance(&b, v, s, shape, point, uv, tuv, nd); err != nil {
				return
			}
			b.If(ir.Lt(nd, best), func(t *ir.Block) {
				t.Assign(best, nd)
				t.Assign(obj, ir.F(float32(v.object)))
				t.Assign(shp, ir.F(float32(shape-v.shape)))
			})
		})
		if err != nil {
			return nil, err
		}
	}
	b.Store(0, best)
	b.Store(1, obj)
	b.Store(2, shp)

	k := &ir.Kernel{Name: "hit", Body: b.Stmts(), Stride: hitStride}
	if err := ir.Check(k); err != nil {
		return nil, err
	}
	return k, nil
}

// HitTest selects the object under pixel (x, y) of a width x height
// viewport rendered with the current camera. The hit shape replaces the
// object's selection, or is appended to it with multiSelect. When no shape
// contains the point, a plain selection clears the nearest object's
// selection and returns that object; multiSelect returns nil.
func (in *Instance) HitTest(ctx context.Context, x, y float32, width, height int, multiSelect bool) (*scene.Object, error) {
	if in.dev == nil {
		return nil, compute.ErrReleased
	}
	k, err := generateHit(in.geo, [2]float32{x - float32(width)/2, y - float32(height)/2})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	prog, err := in.dev.Compile(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	defer prog.Release()

	out, err := prog.Dispatch(ctx, in.geo.Buffer().Data(), 1, 1)
	if err != nil {
		return nil, fmt.Errorf("builder: hit test: %w", err)
	}
	dist, objID, shapeID := out[0], int(out[1]), int(out[2])
	o := in.geo.objectAt(objID)
	if dist >= 0 {
		if multiSelect || o == nil {
			return nil, nil
		}
		o.SelectedShapes = nil
		slogger().Debug("builder: hit test miss", "nearest", o.Name, "dist", dist)
		return o, nil
	}
	if o == nil || shapeID < 0 || shapeID >= len(o.Shapes) {
		return nil, nil
	}
	uuid := o.Shapes[shapeID].UUID
	switch {
	case !multiSelect:
		o.SelectedShapes = []string{uuid}
	case !slices.Contains(o.SelectedShapes, uuid):
		o.SelectedShapes = append(o.SelectedShapes, uuid)
	}
	slogger().Debug("builder: hit", "object", o.Name, "shape", uuid, "dist", dist)
	return o, nil
}
