// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package physics

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/internal/ir/cpu"
	"github.com/gogpu/sdfscene/scene"
)

// dt is the fixed step length.
const dt = 1

// Step advances the world by one step and writes the new posX, posY and
// rotate (degrees) of every dynamic body back into its properties. When b is
// given, its frame and animation resolver are used to refresh the collision
// geometry; call b.Update afterwards to render the new positions.
func Step(ctx context.Context, p *Instance, b *builder.Instance, camera scene.Camera) error {
	if p == nil {
		return ErrNoBuilder
	}
	if p.prog == nil {
		return compute.ErrReleased
	}

	for _, o := range p.bodies {
		o.Body.CollisionInfos = o.Body.CollisionInfos[:0]
	}

	frame := p.opts.frame
	if b != nil {
		frame = b.Frame()
		p.geo.SetResolver(b.Resolver())
	}
	if err := p.refresh(frame, camera, false); err != nil {
		return err
	}
	out, err := p.prog.Dispatch(ctx, p.geo.Buffer().Data(), len(p.table), 1)
	if err != nil {
		return fmt.Errorf("physics: step: %w", err)
	}

	for _, i := range p.dyn {
		p.bodies[i].Body.IntegrateForces(dt)
	}
	manifolds := p.manifolds(out)
	p.opts.contacts.Resolve(manifolds, dt)
	for _, i := range p.dyn {
		integrateVelocity(p.bodies[i])
	}
	for _, m := range manifolds {
		m.correct()
	}
	for _, i := range p.dyn {
		o := p.bodies[i]
		o.Body.ClearForces()
		o.Properties.Set("rotate", mgl32.RadToDeg(o.Body.Orientation))
	}

	slogger().Debug("physics: step", "frame", frame, "manifolds", len(manifolds))
	return nil
}

// manifolds groups the penetrating samples of out by (dynamic, other) pair.
// Lanes of one pair are consecutive in the table.
func (p *Instance) manifolds(out []float32) []*Manifold {
	var (
		ms  []*Manifold
		cur *Manifold
	)
	for i, l := range p.table {
		s := out[i*sampleStride : (i+1)*sampleStride]
		pen := s[0]
		if pen <= 0 {
			continue
		}
		a, b := p.bodies[l.dynamic], p.bodies[l.other]
		if cur == nil || cur.A != a || cur.B != b {
			cur = &Manifold{A: a, B: b}
			ms = append(ms, cur)
			touch(a, b)
		}

		disk := a.Disks[l.disk]
		n := mgl32.Vec2{s[2], s[3]}
		ox, oy := cpu.RotateCCW(disk.Offset[0], disk.Offset[1], a.Body.Orientation)
		center := position(a).Add(mgl32.Vec2{ox, oy})
		cur.Contacts = append(cur.Contacts, center.Sub(n.Mul(disk.Radius)))
		if pen > cur.Penetration {
			cur.Penetration = pen
			cur.Normal = n.Mul(-1)
		}
	}
	return ms
}

func touch(a, b *scene.Object) {
	if !slices.Contains(a.Body.CollisionInfos, b) {
		a.Body.CollisionInfos = append(a.Body.CollisionInfos, b)
	}
	if !slices.Contains(b.Body.CollisionInfos, a) {
		b.Body.CollisionInfos = append(b.Body.CollisionInfos, a)
	}
}

// integrateVelocity moves o by its velocity and applies the second half of
// the force integration.
func integrateVelocity(o *scene.Object) {
	body := o.Body
	if body.IsStatic() {
		return
	}
	move(o, body.Velocity.Mul(dt))
	body.Orientation += body.AngularVelocity * dt
	body.IntegrateForces(dt)
}
