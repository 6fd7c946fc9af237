// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package physics

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene/scene"
)

// Positional correction parameters.
const (
	// Slop is the penetration tolerated without correction.
	Slop = 0.05
	// Percent is the share of the remaining penetration corrected per step.
	Percent = 0.4
)

// epsilon pads the resting threshold.
const epsilon = 1e-4

// Manifold is the contact set of dynamic body A against collision object B.
// Normal points from A into B.
type Manifold struct {
	A, B        *scene.Object
	Normal      mgl32.Vec2
	Penetration float32
	Contacts    []mgl32.Vec2
}

// ContactResolver applies the impulses of one step's manifolds. dt is the
// step length.
type ContactResolver interface {
	Resolve(manifolds []*Manifold, dt float32)
}

// SequentialImpulse resolves contacts one after the other with restitution
// and Coulomb friction.
type SequentialImpulse struct{}

// Resolve implements ContactResolver.
func (SequentialImpulse) Resolve(manifolds []*Manifold, dt float32) {
	for _, m := range manifolds {
		m.resolve(dt)
	}
}

func position(o *scene.Object) mgl32.Vec2 {
	return mgl32.Vec2{o.Properties.Get("posX"), o.Properties.Get("posY")}
}

// cross2 is the 2D cross product a x b.
func cross2(a, b mgl32.Vec2) float32 { return a[0]*b[1] - a[1]*b[0] }

// crossSV is w x v for an angular velocity w.
func crossSV(w float32, v mgl32.Vec2) mgl32.Vec2 { return mgl32.Vec2{-w * v[1], w * v[0]} }

func relativeVelocity(a, b *scene.Body, ra, rb mgl32.Vec2) mgl32.Vec2 {
	return b.Velocity.Add(crossSV(b.AngularVelocity, rb)).
		Sub(a.Velocity).Sub(crossSV(a.AngularVelocity, ra))
}

// restitution is min(eA, eB), or zero when every contact moves slower than
// gravity accelerates in one step.
func (m *Manifold) restitution(dt float32) float32 {
	a, b := m.A.Body, m.B.Body
	e := math32.Min(a.Restitution, b.Restitution)
	pa, pb := position(m.A), position(m.B)
	rest := a.Gravity.Mul(dt).LenSqr() + epsilon
	for _, c := range m.Contacts {
		rv := relativeVelocity(a, b, c.Sub(pa), c.Sub(pb))
		if rv.LenSqr() < rest {
			return 0
		}
	}
	return e
}

func (m *Manifold) resolve(dt float32) {
	a, b := m.A.Body, m.B.Body
	if a.InvMass+b.InvMass == 0 || len(m.Contacts) == 0 {
		return
	}
	e := m.restitution(dt)
	count := float32(len(m.Contacts))
	n := m.Normal
	pa, pb := position(m.A), position(m.B)
	sf := math32.Sqrt(a.StaticFriction * b.StaticFriction)
	df := math32.Sqrt(a.DynamicFriction * b.DynamicFriction)

	for _, c := range m.Contacts {
		ra, rb := c.Sub(pa), c.Sub(pb)
		rv := relativeVelocity(a, b, ra, rb)
		vn := rv.Dot(n)
		if vn > 0 {
			continue
		}
		raN, rbN := cross2(ra, n), cross2(rb, n)
		invMassSum := a.InvMass + b.InvMass + raN*raN*a.InvInertia + rbN*rbN*b.InvInertia

		j := -(1 + e) * vn / invMassSum / count
		impulse := n.Mul(j)
		a.ApplyImpulse(impulse.Mul(-1), ra)
		b.ApplyImpulse(impulse, rb)

		rv = relativeVelocity(a, b, ra, rb)
		t := rv.Sub(n.Mul(rv.Dot(n)))
		if t.LenSqr() < epsilon*epsilon {
			continue
		}
		t = t.Normalize()
		jt := -rv.Dot(t) / invMassSum / count
		if math32.Abs(jt) < epsilon {
			continue
		}
		var friction mgl32.Vec2
		if math32.Abs(jt) < j*sf {
			friction = t.Mul(jt)
		} else {
			friction = t.Mul(-j * df)
		}
		a.ApplyImpulse(friction.Mul(-1), ra)
		b.ApplyImpulse(friction, rb)
	}
}

// correct pushes A and B apart along the normal by Percent of the
// penetration beyond Slop, split by inverse mass.
func (m *Manifold) correct() {
	a, b := m.A.Body, m.B.Body
	inv := a.InvMass + b.InvMass
	if inv == 0 {
		return
	}
	depth := math32.Max(m.Penetration-Slop, 0)
	if depth == 0 {
		return
	}
	c := m.Normal.Mul(depth / inv * Percent)
	move(m.A, c.Mul(-a.InvMass))
	move(m.B, c.Mul(b.InvMass))
}

func move(o *scene.Object, d mgl32.Vec2) {
	if d[0] == 0 && d[1] == 0 {
		return
	}
	p := position(o).Add(d)
	o.Properties.Set("posX", p[0])
	o.Properties.Set("posY", p[1])
}
