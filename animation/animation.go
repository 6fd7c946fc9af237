// Package animation resolves keyframed property overrides for scene entities.
//
// The per-frame updater treats a Resolver as opaque: it passes the entity's
// current properties and the frame and uses whatever comes back. Timeline is
// the bundled implementation; keys are interpolated with gween tweens so any
// easing function from github.com/tanema/gween/ease can shape a segment.
package animation

import (
	"slices"
	"sync"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/gogpu/sdfscene/scene"
)

// Resolver returns the properties of entity uuid at frame of the given
// sequence. Implementations must not modify props; they return either props
// itself or a new map.
type Resolver interface {
	Resolve(sequenceID, uuid string, props scene.Properties, frame float32) scene.Properties
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(sequenceID, uuid string, props scene.Properties, frame float32) scene.Properties

func (f ResolverFunc) Resolve(sequenceID, uuid string, props scene.Properties, frame float32) scene.Properties {
	return f(sequenceID, uuid, props, frame)
}

// Resolve calls r, treating a nil resolver or an empty sequence as "no
// animation".
func Resolve(r Resolver, sequenceID, uuid string, props scene.Properties, frame float32) scene.Properties {
	if r == nil || sequenceID == "" {
		return props
	}
	return r.Resolve(sequenceID, uuid, props, frame)
}

// Key is a keyframe. Ease shapes the segment that ends at this key; nil
// means linear.
type Key struct {
	Frame float32
	Value float32
	Ease  ease.TweenFunc
}

type track struct {
	sequence, uuid, property string
}

// Timeline stores keyframe tracks per sequence, entity and property.
//
// Thread safety: Timeline is safe for concurrent use.
type Timeline struct {
	mu     sync.RWMutex
	tracks map[track][]Key
	// entities indexes the animated properties of each (sequence, uuid).
	entities map[[2]string][]string
}

var _ Resolver = (*Timeline)(nil)

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		tracks:   make(map[track][]Key),
		entities: make(map[[2]string][]string),
	}
}

// AddKey inserts or replaces the key at k.Frame of the given track.
func (t *Timeline) AddKey(sequenceID, uuid, property string, k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := track{sequenceID, uuid, property}
	keys, ok := t.tracks[id]
	if !ok {
		e := [2]string{sequenceID, uuid}
		t.entities[e] = append(t.entities[e], property)
	}
	i, found := slices.BinarySearchFunc(keys, k.Frame, func(a Key, f float32) int {
		switch {
		case a.Frame < f:
			return -1
		case a.Frame > f:
			return 1
		}
		return 0
	})
	if found {
		keys[i] = k
	} else {
		keys = slices.Insert(keys, i, k)
	}
	t.tracks[id] = keys
}

// MaxFrame returns the last keyed frame of a sequence.
func (t *Timeline) MaxFrame(sequenceID string) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var m float32
	for id, keys := range t.tracks {
		if id.sequence == sequenceID && len(keys) > 0 {
			m = max(m, keys[len(keys)-1].Frame)
		}
	}
	return m
}

// Resolve returns props with every animated property replaced by its value
// at frame. Frames outside the keyed range clamp to the first or last key.
// When nothing is animated props is returned unchanged.
func (t *Timeline) Resolve(sequenceID, uuid string, props scene.Properties, frame float32) scene.Properties {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := t.entities[[2]string{sequenceID, uuid}]
	if len(names) == 0 {
		return props
	}
	out := props.Clone()
	for _, name := range names {
		keys := t.tracks[track{sequenceID, uuid, name}]
		if len(keys) > 0 {
			out[name] = sample(keys, frame)
		}
	}
	return out
}

func sample(keys []Key, frame float32) float32 {
	if frame <= keys[0].Frame {
		return keys[0].Value
	}
	last := keys[len(keys)-1]
	if frame >= last.Frame {
		return last.Value
	}
	i := 1
	for keys[i].Frame < frame {
		i++
	}
	a, b := keys[i-1], keys[i]
	fn := b.Ease
	if fn == nil {
		fn = ease.Linear
	}
	v, _ := gween.New(a.Value, b.Value, b.Frame-a.Frame, fn).Update(frame - a.Frame)
	return v
}
