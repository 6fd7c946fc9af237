// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package physics

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/scene"
)

func near(a, b float32) bool { return math32.Abs(a-b) < 1e-4 }

// pair returns a dynamic unit-mass object at (0, 10) resting its contact
// point (0, 5) on a static object at the origin.
func pair(restitution float32, gravity mgl32.Vec2) (a, b *scene.Object) {
	a = scene.NewObject("a", 0, 10)
	a.Body = &scene.Body{
		Mass: 1, InvMass: 1, Inertia: 1, InvInertia: 1,
		Restitution:     restitution,
		StaticFriction:  0.5,
		DynamicFriction: 0.3,
		Gravity:         gravity,
	}
	b = scene.NewObject("b", 0, 0)
	b.Body = &scene.Body{Restitution: restitution, StaticFriction: 0.5, DynamicFriction: 0.3, Gravity: gravity}
	return a, b
}

func floorManifold(a, b *scene.Object, pen float32) *Manifold {
	return &Manifold{A: a, B: b, Normal: mgl32.Vec2{0, -1}, Penetration: pen, Contacts: []mgl32.Vec2{{0, 5}}}
}

func TestSequentialImpulse(t *testing.T) {
	tests := []struct {
		name        string
		restitution float32
		gravity     mgl32.Vec2
		velocity    mgl32.Vec2
		want        mgl32.Vec2
		wantSpin    float32
	}{
		{"elastic bounce", 1, mgl32.Vec2{}, mgl32.Vec2{0, -5}, mgl32.Vec2{0, 5}, 0},
		{"inelastic", 0, mgl32.Vec2{}, mgl32.Vec2{0, -5}, mgl32.Vec2{0, 0}, 0},
		{"resting contact", 1, mgl32.Vec2{0, -0.5}, mgl32.Vec2{0, -0.3}, mgl32.Vec2{0, 0}, 0},
		{"separating", 1, mgl32.Vec2{}, mgl32.Vec2{0, 5}, mgl32.Vec2{0, 5}, 0},
		// j = 1, |jt| = 3 exceeds j*0.5 so dynamic friction 0.3 applies. The
		// friction impulse (-0.3, 0) acts 5 below the center.
		{"sliding friction", 0, mgl32.Vec2{}, mgl32.Vec2{3, -1}, mgl32.Vec2{2.7, 0}, -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := pair(tt.restitution, tt.gravity)
			a.Body.Velocity = tt.velocity
			SequentialImpulse{}.Resolve([]*Manifold{floorManifold(a, b, 0.01)}, 1)
			got := a.Body.Velocity
			if !near(got[0], tt.want[0]) || !near(got[1], tt.want[1]) {
				t.Errorf("velocity = %v, want %v", got, tt.want)
			}
			if !near(a.Body.AngularVelocity, tt.wantSpin) {
				t.Errorf("angular velocity = %v, want %v", a.Body.AngularVelocity, tt.wantSpin)
			}
			if b.Body.Velocity != (mgl32.Vec2{}) {
				t.Errorf("static body moved: %v", b.Body.Velocity)
			}
		})
	}
}

func TestOffCenterContactSpins(t *testing.T) {
	a, b := pair(0, mgl32.Vec2{})
	a.Body.Velocity = mgl32.Vec2{0, -2}
	m := floorManifold(a, b, 0.01)
	m.Contacts = []mgl32.Vec2{{3, 5}}
	SequentialImpulse{}.Resolve([]*Manifold{m}, 1)
	// Pushing up on the right of the center turns counter-clockwise.
	if a.Body.AngularVelocity <= 0 {
		t.Errorf("angular velocity = %v, want > 0", a.Body.AngularVelocity)
	}
	if a.Body.Velocity[1] <= -2 {
		t.Errorf("normal velocity not reduced: %v", a.Body.Velocity)
	}
}

func TestPositionalCorrection(t *testing.T) {
	tests := []struct {
		pen   float32
		wantY float32
	}{
		{0, 10},
		{Slop, 10},
		{1 + Slop, 10 + Percent},
	}
	for _, tt := range tests {
		a, b := pair(0, mgl32.Vec2{})
		floorManifold(a, b, tt.pen).correct()
		if got := a.Properties.Get("posY"); !near(got, tt.wantY) {
			t.Errorf("pen %v: posY = %v, want %v", tt.pen, got, tt.wantY)
		}
		if got := b.Properties.Get("posY"); got != 0 {
			t.Errorf("pen %v: static posY = %v, want 0", tt.pen, got)
		}
	}
}

func ball(y float32) *scene.Object {
	o := scene.NewObject("ball", 0, y)
	o.Properties.Set("physicsMode", float32(scene.PhysicsDynamic))
	o.Properties.Set("physicsRestitution", 0)
	o.AddShape(scene.NewDisk(0, 0, 5))
	return o
}

// floor has its top edge on y = 0.
func floor() *scene.Object {
	o := scene.NewObject("floor", 0, -5)
	o.Properties.Set("physicsMode", float32(scene.PhysicsStatic))
	o.Properties.Set("physicsRestitution", 0)
	o.AddShape(scene.NewBox(0, 0, 100, 5))
	return o
}

func TestBuildPhysicsEmpty(t *testing.T) {
	ctx := context.Background()
	decor := scene.NewObject("decor", 0, 0)
	decor.AddShape(scene.NewDisk(0, 0, 5))

	tests := []struct {
		name    string
		objects []*scene.Object
	}{
		{"no objects", nil},
		{"no collision objects", []*scene.Object{decor}},
		{"static only", []*scene.Object{floor()}},
		{"lone dynamic", []*scene.Object{ball(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildPhysics(ctx, tt.objects, scene.Camera{})
			if err != nil || p != nil {
				t.Fatalf("BuildPhysics = %v, %v; want nil, nil", p, err)
			}
		})
	}
	if err := Step(ctx, nil, nil, scene.Camera{}); !errors.Is(err, ErrNoBuilder) {
		t.Errorf("Step(nil) error = %v, want ErrNoBuilder", err)
	}
}

func TestBuildPhysics(t *testing.T) {
	b, f := ball(20), floor()
	p, err := BuildPhysics(context.Background(), []*scene.Object{b, f}, scene.Camera{})
	if err != nil {
		t.Fatalf("BuildPhysics: %v", err)
	}
	defer p.Release()

	if got := p.Bodies(); len(got) != 2 || got[0] != b || got[1] != f {
		t.Fatalf("Bodies = %v", got)
	}
	if len(p.table) != 1 {
		t.Errorf("lanes = %d, want 1", len(p.table))
	}
	if len(b.Disks) != 1 || !near(b.Disks[0].Radius, 5) {
		t.Errorf("ball disks = %+v, want one disk of radius 5", b.Disks)
	}
	if b.Body == nil || b.Body.IsStatic() || f.Body == nil || !f.Body.IsStatic() {
		t.Errorf("bodies not created: ball %+v floor %+v", b.Body, f.Body)
	}
	if len(p.Kernel().Funcs) != 4 {
		t.Errorf("kernel funcs = %d, want sdf and normal per body", len(p.Kernel().Funcs))
	}
}

func TestBuildPhysicsWithoutInterior(t *testing.T) {
	ctx := context.Background()
	// Both shapes lie outside the disk grid around their object.
	ground := scene.NewObject("ground", 0, 0)
	ground.Properties.Set("physicsMode", float32(scene.PhysicsStatic))
	ground.AddShape(scene.NewBox(0, -500, 1000, 10))
	far := scene.NewObject("far", 300, 0)
	far.Properties.Set("physicsMode", float32(scene.PhysicsDynamic))
	far.AddShape(scene.NewBox(0, -500, 20, 10))
	b := ball(100)

	p, err := BuildPhysics(ctx, []*scene.Object{b, ground, far}, scene.Camera{})
	if err != nil {
		t.Fatalf("BuildPhysics: %v", err)
	}
	if p == nil {
		t.Fatal("BuildPhysics returned no instance")
	}
	defer p.Release()

	if ground.Disks != nil {
		t.Errorf("static disks = %+v, want none built", ground.Disks)
	}
	if far.Disks == nil || len(far.Disks) != 0 {
		t.Errorf("far disks = %#v, want empty", far.Disks)
	}
	if len(p.table) != 2 {
		t.Errorf("lanes = %d, want ball against ground and far", len(p.table))
	}
	if err := Step(ctx, p, nil, scene.Camera{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(far.Body.CollisionInfos) != 0 {
		t.Errorf("far touched %v", far.Body.CollisionInfos)
	}
}

func TestStepContact(t *testing.T) {
	ctx := context.Background()
	b, f := ball(4), floor()
	p, err := BuildPhysics(ctx, []*scene.Object{b, f}, scene.Camera{}, WithGravity(mgl32.Vec2{}))
	if err != nil {
		t.Fatalf("BuildPhysics: %v", err)
	}
	defer p.Release()

	if err := Step(ctx, p, nil, scene.Camera{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !slices.Contains(b.Body.CollisionInfos, f) || !slices.Contains(f.Body.CollisionInfos, b) {
		t.Errorf("collision infos: ball %v floor %v", b.Body.CollisionInfos, f.Body.CollisionInfos)
	}
	// Penetration 1 is corrected by Percent of 1 - Slop.
	if got, want := b.Properties.Get("posY"), float32(4+(1-Slop)*Percent); math32.Abs(got-want) > 0.01 {
		t.Errorf("posY = %v, want %v", got, want)
	}
}

func TestBallSettlesOnFloor(t *testing.T) {
	ctx := context.Background()
	b, f := ball(12), floor()
	inst, err := builder.Build(ctx, []*scene.Object{b, f}, scene.Camera{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer inst.Release()
	p, err := BuildPhysics(ctx, []*scene.Object{b, f}, scene.Camera{})
	if err != nil {
		t.Fatalf("BuildPhysics: %v", err)
	}
	defer p.Release()

	for i := range 200 {
		if err := Step(ctx, p, inst, scene.Camera{}); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if err := inst.Update(scene.Camera{}, float32(i)); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	if y := b.Properties.Get("posY"); y < 4 || y > 5.5 {
		t.Errorf("posY = %v, want resting near 5", y)
	}
	if got := b.Properties.Get("posX"); !near(got, 0) {
		t.Errorf("posX = %v, want 0", got)
	}
	if got := b.Properties.Get("rotate"); !near(got, 0) {
		t.Errorf("rotate = %v, want 0", got)
	}
	if f.Properties.Get("posY") != -5 {
		t.Errorf("floor moved to %v", f.Properties.Get("posY"))
	}
}
