package scene

import "fmt"

// BooleanMode combines a shape with the distance accumulated so far.
type BooleanMode uint8

const (
	Merge BooleanMode = iota
	Subtract
	Intersect
)

func (m BooleanMode) String() string {
	switch m {
	case Merge:
		return "Merge"
	case Subtract:
		return "Subtract"
	case Intersect:
		return "Intersect"
	}
	return fmt.Sprintf("BooleanMode(%d)", uint8(m))
}

// PhysicsMode is stored in the physicsMode object property.
type PhysicsMode uint8

const (
	PhysicsOff PhysicsMode = iota
	PhysicsStatic
	PhysicsDynamic
	PhysicsCollisionOnly
)

// Collides reports whether objects in mode m take part in collisions as
// bodies (Static or Dynamic).
func (m PhysicsMode) Collides() bool { return m == PhysicsStatic || m == PhysicsDynamic }

func (m PhysicsMode) String() string {
	switch m {
	case PhysicsOff:
		return "Off"
	case PhysicsStatic:
		return "Static"
	case PhysicsDynamic:
		return "Dynamic"
	case PhysicsCollisionOnly:
		return "CollisionOnly"
	}
	return fmt.Sprintf("PhysicsMode(%d)", uint8(m))
}

// LimiterType restricts where a material is applied.
type LimiterType uint8

const (
	LimiterNone LimiterType = iota
	LimiterRectangle
	LimiterSphere
	LimiterBorder
)

// Channel is a physically based shading attribute written by a material.
type Channel uint8

const (
	BaseColor Channel = iota
	Subsurface
	Roughness
	Metallic
	Specular
	SpecularTint
	Clearcoat
	ClearcoatGloss
	Anisotropic
	Sheen
	SheenTint
)

// NumChannels is the number of shading channels.
const NumChannels = 11

var channelNames = [NumChannels]string{
	"baseColor", "subsurface", "roughness", "metallic", "specular", "specularTint",
	"clearcoat", "clearcoatGloss", "anisotropic", "sheen", "sheenTint",
}

func (c Channel) String() string {
	if int(c) < NumChannels {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// SegmentType selects the interpolation of a profile segment.
type SegmentType uint8

const (
	SegmentLinear SegmentType = iota
	SegmentCircle
	SegmentBezier
	SegmentSmoothstep
)

// AnimationMode controls how an instance object advances its frame.
type AnimationMode uint8

const (
	Loop AnimationMode = iota
	InverseLoop
	GotoStart
	GotoEnd
)

// AnimationState reports the playback state after an update.
type AnimationState uint8

const (
	NotAnimating AnimationState = iota
	AtStart
	GoingForward
	GoingBackward
	AtEnd
)

func (s AnimationState) String() string {
	switch s {
	case NotAnimating:
		return "NotAnimating"
	case AtStart:
		return "AtStart"
	case GoingForward:
		return "GoingForward"
	case GoingBackward:
		return "GoingBackward"
	case AtEnd:
		return "AtEnd"
	}
	return fmt.Sprintf("AnimationState(%d)", uint8(s))
}
