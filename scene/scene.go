// Package scene is the scene graph consumed by the program generator and the
// physics engine.
//
// An Object owns shapes, body and border materials, child objects and, when
// it takes part in physics, a rigid Body with its proxy disks. Numeric
// parameters live in Properties maps keyed by name. The generator only reads
// the graph; the per-frame updater writes the trans_* keys and point
// connections and the physics step writes posX, posY and rotate.
//
// Required property keys are a precondition: Properties.Get panics when a key
// is missing, as a missing key is a programming error in the code that built
// the graph.
package scene

import (
	"crypto/rand"
	"fmt"
	"maps"

	"golang.org/x/image/math/f32"
)

// Properties holds the named numeric parameters of an object, shape or material.
type Properties map[string]float32

// Get returns the value stored under key and panics if there is none.
func (p Properties) Get(key string) float32 {
	v, ok := p[key]
	if !ok {
		panic(fmt.Sprintf("scene: missing property %q", key))
	}
	return v
}

// GetOr returns the value stored under key or def.
func (p Properties) GetOr(key string, def float32) float32 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is set.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Set stores v under key.
func (p Properties) Set(key string, v float32) { p[key] = v }

// Clone returns a shallow copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// Object is a node of the scene tree.
type Object struct {
	UUID       string
	Name       string
	Properties Properties

	Shapes          []*Shape
	Children        []*Object
	BodyMaterials   []*Material
	BorderMaterials []*Material

	// Profile is a piecewise height field over the distance from the
	// object's edge, see NewProfile. Nil disables relief shading.
	Profile []f32.Vec4

	// Body is set by the physics engine for collision objects, Disks for
	// dynamic ones. An empty Disks takes part in no contacts.
	Body  *Body
	Disks []Disk

	PointConnections []*PointConnection

	// SequenceID selects the animation sequence resolved for this object
	// and its descendants. Empty means no animation.
	SequenceID string

	// Instance objects drive their own frame counter, see Advance.
	Instance       bool
	Frame          float32
	MaxFrame       float32
	AnimationScale float32
	AnimationMode  AnimationMode
	AnimationState AnimationState

	SelectedShapes []string
}

// PhysicsMode reads the physicsMode property. Objects without it are Off.
func (o *Object) PhysicsMode() PhysicsMode {
	return PhysicsMode(o.Properties.GetOr("physicsMode", float32(PhysicsOff)))
}

// AddShape appends s and returns it.
func (o *Object) AddShape(s *Shape) *Shape {
	o.Shapes = append(o.Shapes, s)
	return s
}

// AddChild appends c and returns it.
func (o *Object) AddChild(c *Object) *Object {
	o.Children = append(o.Children, c)
	return c
}

// Shape returns the shape with the given uuid, or nil.
func (o *Object) Shape(uuid string) *Shape {
	for _, s := range o.Shapes {
		if s.UUID == uuid {
			return s
		}
	}
	return nil
}

// Connections returns the connection in which point index of shape is the
// master and the one in which it is a slave. Either may be nil. A point can
// master many points but follows at most one.
func (o *Object) Connections(shape *Shape, index int) (master, slave *PointConnection) {
	for _, pc := range o.PointConnections {
		if pc.Master.ShapeUUID == shape.UUID && pc.Master.Index == index {
			master = pc
		}
		for _, s := range pc.Slaves {
			if s.ShapeUUID == shape.UUID && s.Index == index {
				slave = pc
			}
		}
	}
	return master, slave
}

// Connect makes (slaveShape, slaveIndex) follow (masterShape, masterIndex),
// reusing an existing connection of the master.
func (o *Object) Connect(master PointRef, slave PointRef) *PointConnection {
	for _, pc := range o.PointConnections {
		if pc.Master == master {
			pc.Slaves = append(pc.Slaves, slave)
			return pc
		}
	}
	pc := &PointConnection{Master: master, Slaves: []PointRef{slave}}
	o.PointConnections = append(o.PointConnections, pc)
	return pc
}

// Walk calls fn for o and its descendants in depth-first pre-order.
func (o *Object) Walk(fn func(*Object)) {
	fn(o)
	for _, c := range o.Children {
		c.Walk(fn)
	}
}

// Shape is a parameterized distance primitive inside an object.
type Shape struct {
	UUID       string
	Name       string
	Properties Properties
	Mode       BooleanMode

	// PointCount explicit control points are stored as point_N_x/y.
	PointCount int
	// PointsVariable marks shapes whose point list is edited interactively,
	// so PointCount may change between builds.
	PointsVariable   bool
	SupportsRounding bool

	// CustomProperties name up to four extra properties copied into the
	// shape record and available to the template as __custom_N__.
	CustomProperties []string

	// DistanceTemplate is a distance expression with __placeholders__,
	// e.g. "sdBox(__uv__, float2(__width__, __height__))".
	DistanceTemplate string
	WidthProperty    string
	HeightProperty   string
}

// Inverted reports whether the shape's distance is negated.
func (s *Shape) Inverted() bool { return s.Properties.GetOr("inverse", 0) == 1 }

// Point returns control point i from props.
func (s *Shape) Point(props Properties, i int) f32.Vec2 {
	return f32.Vec2{props.Get(PointKey(i, "x")), props.Get(PointKey(i, "y"))}
}

// MaxCustom is the number of custom slots in a shape or material record.
const MaxCustom = 4

// Material writes one shading channel, or several for compound materials,
// of the object it belongs to.
type Material struct {
	UUID        string
	Name        string
	Properties  Properties
	Channel     Channel
	LimiterType LimiterType
	PointCount  int
	IsCompound  bool

	// ValueTemplate yields the vec4 value blended into Channel. Only the x
	// component is used for scalar channels and w is the blend weight.
	ValueTemplate string
	// ChannelTemplates are written directly by compound materials.
	ChannelTemplates map[Channel]string

	CustomProperties []string
	WidthProperty    string
	HeightProperty   string
}

// Slots returns the number of 4-float material records m occupies: a
// transform, a rotation/limiter and a custom record, followed by one value
// record or two records per control point.
func (m *Material) Slots() int {
	if m.PointCount == 0 {
		return 4
	}
	return 3 + 2*m.PointCount
}

// Camera maps lane coordinates to scene space.
type Camera struct {
	X, Y float32
	Zoom float32
}

// InvZoom returns 1/Zoom, treating a zero zoom as 1.
func (c Camera) InvZoom() float32 {
	if c.Zoom == 0 {
		return 1
	}
	return 1 / c.Zoom
}

// Disk is a circular collision proxy in the owning object's rest frame.
type Disk struct {
	Offset f32.Vec2
	Radius float32
}

// PointRef identifies control point Index of a shape.
type PointRef struct {
	ShapeUUID string
	Index     int
}

// PointConnection publishes the world position of Master each update and
// moves every slave onto it.
type PointConnection struct {
	Master PointRef
	Slaves []PointRef
	World  f32.Vec2
}

// NewUUID returns a random RFC 4122 version 4 identifier.
func NewUUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:]) // crypto/rand.Read never returns an error
	b[6] = b[6]&0x0f | 0x40
	b[8] = b[8]&0x3f | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// PointKey returns the property key of axis ("x" or "y") of control point i.
func PointKey(i int, axis string) string { return fmt.Sprintf("point_%d_%s", i, axis) }

// PointValueKey returns the property key of component c of point value i.
func PointValueKey(i int, c string) string { return fmt.Sprintf("pointvalue_%d_%s", i, c) }
