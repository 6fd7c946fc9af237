package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Default physical parameters of a body whose object does not set them.
const (
	DefaultMass        = 1
	DefaultRestitution = 0.2
	DefaultFriction    = 0.3
)

// Body is the rigid body state of a physics object. Position lives in the
// object's posX/posY properties; Orientation mirrors rotate in radians.
// Static bodies have zero inverse mass and inertia and never move.
type Body struct {
	Velocity mgl32.Vec2
	Force    mgl32.Vec2

	Mass, InvMass       float32
	Inertia, InvInertia float32

	Orientation     float32
	AngularVelocity float32
	Torque          float32

	StaticFriction  float32
	DynamicFriction float32
	Restitution     float32
	Gravity         mgl32.Vec2

	// CollisionInfos lists the objects touched during the last step.
	CollisionInfos []*Object
}

// NewBody creates the body of o from its physicsMass, physicsRestitution and
// physicsFriction properties. Inertia is the sum of the disks' inertia with
// the mass spread by disk area; without disks a unit disk is assumed.
func NewBody(o *Object, disks []Disk, gravity mgl32.Vec2) *Body {
	b := &Body{
		Orientation:     mgl32.DegToRad(o.Properties.Get("rotate")),
		Restitution:     o.Properties.GetOr("physicsRestitution", DefaultRestitution),
		DynamicFriction: o.Properties.GetOr("physicsFriction", DefaultFriction),
		Gravity:         gravity,
	}
	b.StaticFriction = b.DynamicFriction + 0.2
	if o.PhysicsMode() != PhysicsDynamic {
		return b
	}

	b.Mass = o.Properties.GetOr("physicsMass", DefaultMass)
	if b.Mass <= 0 {
		b.Mass = DefaultMass
	}
	b.InvMass = 1 / b.Mass

	var area float32
	for _, d := range disks {
		area += d.Radius * d.Radius
	}
	if area > 0 {
		for _, d := range disks {
			m := b.Mass * d.Radius * d.Radius / area
			off := d.Offset[0]*d.Offset[0] + d.Offset[1]*d.Offset[1]
			b.Inertia += m * (d.Radius*d.Radius/2 + off)
		}
	} else {
		b.Inertia = b.Mass / 2
	}
	b.InvInertia = 1 / b.Inertia
	return b
}

// IsStatic reports whether the body is immovable.
func (b *Body) IsStatic() bool { return b.InvMass == 0 }

// ApplyImpulse applies impulse j at contact vector r from the center of mass.
func (b *Body) ApplyImpulse(j, r mgl32.Vec2) {
	b.Velocity = b.Velocity.Add(j.Mul(b.InvMass))
	b.AngularVelocity += b.InvInertia * (r[0]*j[1] - r[1]*j[0])
}

// ApplyForce accumulates f until the end of the step.
func (b *Body) ApplyForce(f mgl32.Vec2) { b.Force = b.Force.Add(f) }

// IntegrateForces advances velocities by half of dt from the accumulated
// force, torque and gravity.
func (b *Body) IntegrateForces(dt float32) {
	if b.IsStatic() {
		return
	}
	b.Velocity = b.Velocity.Add(b.Force.Mul(b.InvMass).Add(b.Gravity).Mul(dt / 2))
	b.AngularVelocity += b.Torque * b.InvInertia * (dt / 2)
}

// ClearForces resets the accumulated force and torque.
func (b *Body) ClearForces() {
	b.Force = mgl32.Vec2{}
	b.Torque = 0
}

// Speed returns the length of the velocity.
func (b *Body) Speed() float32 { return math32.Hypot(b.Velocity[0], b.Velocity[1]) }
