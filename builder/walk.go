// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package builder

import (
	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/scene"
)

// Filter selects the root objects a traversal visits.
type Filter uint8

const (
	// FilterAll visits every root object.
	FilterAll Filter = iota
	// FilterPhysics visits Static and Dynamic roots. Eligibility is only
	// checked on roots; their descendants are always visited.
	FilterPhysics
)

func (f Filter) accepts(o *scene.Object) bool {
	return f == FilterAll || o.PhysicsMode().Collides()
}

// Transform is the transform accumulated over the enclosing objects.
// Rotate is in degrees.
type Transform struct {
	PosX, PosY     float32
	ScaleX, ScaleY float32
	Rotate         float32
}

// Identity is the transform of the scene root.
func Identity() Transform { return Transform{ScaleX: 1, ScaleY: 1} }

// Then returns t followed by the object transform in props.
func (t Transform) Then(props scene.Properties) Transform {
	return Transform{
		PosX:   t.PosX + props.Get("posX"),
		PosY:   t.PosY + props.Get("posY"),
		ScaleX: t.ScaleX * props.Get("scaleX"),
		ScaleY: t.ScaleY * props.Get("scaleY"),
		Rotate: t.Rotate + props.Get("rotate"),
	}
}

// Counts are the record counts of a traversal.
type Counts struct {
	Shapes        int
	Points        int
	Objects       int
	MaterialSlots int
	ProfileSlots  int
}

// visit describes one object of a traversal. The indices are the first
// record of each kind owned by the object.
type visit struct {
	obj    *scene.Object
	props  scene.Properties
	xf     Transform
	parent Transform
	root   *scene.Object
	rootID int
	isRoot bool

	object, shape, point, material, profile int

	w *walker
}

// resolve returns the animated properties of entity uuid at the frame of
// the visit's root.
func (v *visit) resolve(uuid string, props scene.Properties) scene.Properties {
	return v.w.resolve(v.root, uuid, props)
}

// eachShape calls fn for every shape of the object with its record indices.
func (v *visit) eachShape(fn func(s *scene.Shape, shape, point int)) {
	shape, point := v.shape, v.point
	for _, s := range v.obj.Shapes {
		fn(s, shape, point)
		shape++
		point += s.PointCount
	}
}

// walker is the single traversal shared by the counting pass, the program
// generator and the updater, so all three agree on record order.
type walker struct {
	filter   Filter
	resolver animation.Resolver
	frame    float32
	c        Counts
	roots    int
}

func (w *walker) resolve(root *scene.Object, uuid string, props scene.Properties) scene.Properties {
	frame := w.frame
	if root.Instance {
		frame = root.Frame
	}
	return animation.Resolve(w.resolver, root.SequenceID, uuid, props, frame)
}

// run visits objects in depth-first pre-order and returns the final counts.
func (w *walker) run(objects []*scene.Object, fn func(*visit)) Counts {
	w.c = Counts{}
	w.roots = 0
	for _, o := range objects {
		if !w.filter.accepts(o) {
			continue
		}
		w.object(o, o, Identity(), true, fn)
		w.roots++
	}
	return w.c
}

func (w *walker) object(o, root *scene.Object, parent Transform, isRoot bool, fn func(*visit)) {
	props := w.resolve(root, o.UUID, o.Properties)
	v := &visit{
		obj: o, props: props, parent: parent, xf: parent.Then(props),
		root: root, rootID: w.roots, isRoot: isRoot,
		object: w.c.Objects, shape: w.c.Shapes, point: w.c.Points,
		material: w.c.MaterialSlots, profile: w.c.ProfileSlots,
		w: w,
	}
	if fn != nil {
		fn(v)
	}
	for _, s := range o.Shapes {
		w.c.Shapes++
		w.c.Points += s.PointCount
	}
	w.c.Objects++
	for _, m := range o.BodyMaterials {
		w.c.MaterialSlots += m.Slots()
	}
	for _, m := range o.BorderMaterials {
		w.c.MaterialSlots += m.Slots()
	}
	w.c.ProfileSlots += len(o.Profile)

	for _, c := range o.Children {
		w.object(c, root, v.xf, false, fn)
	}
}

// Count walks objects in generation order and returns the number of
// records of each kind.
func Count(objects []*scene.Object, filter Filter) Counts {
	w := &walker{filter: filter}
	return w.run(objects, nil)
}
