package scene

import "golang.org/x/image/math/f32"

// shapeProperties returns the keys every shape record needs.
func shapeProperties(x, y float32) Properties {
	return Properties{
		"posX": x, "posY": y, "rotate": 0,
		"rounding": 0, "annular": 0, "smoothBoolean": 0,
	}
}

// NewObject returns an object at (x, y) with unit scale and a two unit border.
func NewObject(name string, x, y float32) *Object {
	return &Object{
		UUID: NewUUID(),
		Name: name,
		Properties: Properties{
			"posX": x, "posY": y, "rotate": 0,
			"scaleX": 1, "scaleY": 1, "border": 2, "opacity": 1,
		},
		AnimationScale: 1,
	}
}

// NewDisk returns a circle of the given radius centered at (x, y).
func NewDisk(x, y, radius float32) *Shape {
	p := shapeProperties(x, y)
	p["radius"] = radius
	return &Shape{
		UUID:             NewUUID(),
		Name:             "Disk",
		Properties:       p,
		SupportsRounding: false,
		DistanceTemplate: "length(__uv__) - __width__",
		WidthProperty:    "radius",
		HeightProperty:   "radius",
	}
}

// NewBox returns a rectangle with half extents (w, h) centered at (x, y).
func NewBox(x, y, w, h float32) *Shape {
	p := shapeProperties(x, y)
	p["width"] = w
	p["height"] = h
	return &Shape{
		UUID:             NewUUID(),
		Name:             "Box",
		Properties:       p,
		SupportsRounding: true,
		DistanceTemplate: "sdBox(__uv__, float2(__width__, __height__))",
		WidthProperty:    "width",
		HeightProperty:   "height",
	}
}

// NewSegment returns a line from a to b, relative to (x, y), of the given
// half width.
func NewSegment(x, y float32, a, b f32.Vec2, halfWidth float32) *Shape {
	p := shapeProperties(x, y)
	p["lineWidth"] = halfWidth
	setPoints(p, a, b)
	return &Shape{
		UUID:             NewUUID(),
		Name:             "Segment",
		Properties:       p,
		PointCount:       2,
		SupportsRounding: false,
		DistanceTemplate: "sdSegment(__uv__, __point_0__, __point_1__) - __width__",
		WidthProperty:    "lineWidth",
		HeightProperty:   "lineWidth",
	}
}

// NewTriangle returns a triangle with corners a, b and c relative to (x, y).
func NewTriangle(x, y float32, a, b, c f32.Vec2) *Shape {
	p := shapeProperties(x, y)
	setPoints(p, a, b, c)
	lo, hi := a, a
	for _, v := range []f32.Vec2{b, c} {
		lo = f32.Vec2{min(lo[0], v[0]), min(lo[1], v[1])}
		hi = f32.Vec2{max(hi[0], v[0]), max(hi[1], v[1])}
	}
	p["sizeX"] = (hi[0] - lo[0]) / 2
	p["sizeY"] = (hi[1] - lo[1]) / 2
	return &Shape{
		UUID:             NewUUID(),
		Name:             "Triangle",
		Properties:       p,
		PointCount:       3,
		PointsVariable:   true,
		SupportsRounding: true,
		DistanceTemplate: "sdTriangle(__uv__, __point_0__, __point_1__, __point_2__)",
		WidthProperty:    "sizeX",
		HeightProperty:   "sizeY",
	}
}

func setPoints(p Properties, pts ...f32.Vec2) {
	for i, pt := range pts {
		p[PointKey(i, "x")] = pt[0]
		p[PointKey(i, "y")] = pt[1]
	}
}

func materialProperties() Properties {
	return Properties{
		"posX": 0, "posY": 0, "rotate": 0,
		"limiterWidth": 0, "limiterHeight": 0, "opacity": 1,
		"value_x": 0, "value_y": 0, "value_z": 0, "value_w": 0,
	}
}

// NewStaticMaterial writes value into channel. For scalar channels only
// value[0] is used; value[3] is the blend weight.
func NewStaticMaterial(channel Channel, value f32.Vec4) *Material {
	p := materialProperties()
	p["value_x"], p["value_y"], p["value_z"], p["value_w"] = value[0], value[1], value[2], value[3]
	return &Material{
		UUID:           NewUUID(),
		Name:           "Static",
		Properties:     p,
		Channel:        channel,
		ValueTemplate:  "__value__",
		WidthProperty:  "limiterWidth",
		HeightProperty: "limiterHeight",
	}
}

// NewGradientMaterial blends linearly from ca at a to cb at b, in the
// material's local space.
func NewGradientMaterial(channel Channel, a, b f32.Vec2, ca, cb f32.Vec4) *Material {
	p := materialProperties()
	setPoints(p, a, b)
	for i, c := range []f32.Vec4{ca, cb} {
		p[PointValueKey(i, "x")] = c[0]
		p[PointValueKey(i, "y")] = c[1]
		p[PointValueKey(i, "z")] = c[2]
		p[PointValueKey(i, "w")] = c[3]
	}
	return &Material{
		UUID:           NewUUID(),
		Name:           "Gradient",
		Properties:     p,
		Channel:        channel,
		PointCount:     2,
		ValueTemplate:  "gradientLinear(__uv__, __point_0__, __point_1__, __pointvalue_0__, __pointvalue_1__)",
		WidthProperty:  "limiterWidth",
		HeightProperty: "limiterHeight",
	}
}

// NewCompoundMaterial writes several channels at once from per-channel
// templates.
func NewCompoundMaterial(name string, templates map[Channel]string) *Material {
	return &Material{
		UUID:             NewUUID(),
		Name:             name,
		Properties:       materialProperties(),
		IsCompound:       true,
		ChannelTemplates: templates,
		WidthProperty:    "limiterWidth",
		HeightProperty:   "limiterHeight",
	}
}

// ProfilePoint starts a profile segment At units inside the edge.
// Control is the quadratic Bezier control point (at, height) of the
// segment and is ignored by other segment types.
type ProfilePoint struct {
	At, Height float32
	Type       SegmentType
	Control    f32.Vec2
}

// NewProfile encodes a profile: the edge record (0, edgeHeight, type, 0)
// and its control record, one (at, height, type, 0) record plus control per
// point, and a terminator (centerAt, centerHeight, -1, -1). Segment i runs
// from start record 2i to start record 2i+2 with control record 2i+1.
func NewProfile(edge ProfilePoint, points []ProfilePoint, centerAt, centerHeight float32) []f32.Vec4 {
	out := make([]f32.Vec4, 0, 2*len(points)+3)
	edge.At = 0
	for _, p := range append([]ProfilePoint{edge}, points...) {
		out = append(out,
			f32.Vec4{p.At, p.Height, float32(p.Type), 0},
			f32.Vec4{p.Control[0], p.Control[1], 0, 0})
	}
	return append(out, f32.Vec4{centerAt, centerHeight, -1, -1})
}
