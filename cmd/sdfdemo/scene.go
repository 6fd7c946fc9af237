package main

import (
	"fmt"

	"github.com/tanema/gween/ease"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/scene"
)

func parseMode(s string) (builder.RenderMode, error) {
	for _, m := range []builder.RenderMode{builder.PBR, builder.Color, builder.Distance} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: render mode %q", errConfig, s)
}

func solid(o *scene.Object, c f32.Vec4) {
	o.BodyMaterials = append(o.BodyMaterials, scene.NewStaticMaterial(scene.BaseColor, c))
	o.BorderMaterials = append(o.BorderMaterials, scene.NewStaticMaterial(scene.BaseColor, f32.Vec4{0.1, 0.1, 0.1, 1}))
}

func physical(o *scene.Object, mode scene.PhysicsMode) *scene.Object {
	o.Properties.Set("physicsMode", float32(mode))
	return o
}

// demoScene is a floor, a ramp, three falling bodies and an animated
// decoration keyed on the returned timeline.
func demoScene() ([]*scene.Object, *animation.Timeline) {
	floor := physical(scene.NewObject("floor", 0, -250), scene.PhysicsStatic)
	floor.AddShape(scene.NewBox(0, 0, 380, 20))
	solid(floor, f32.Vec4{0.35, 0.35, 0.4, 1})

	ramp := physical(scene.NewObject("ramp", -150, -120), scene.PhysicsStatic)
	ramp.Properties.Set("rotate", -20)
	ramp.AddShape(scene.NewBox(0, 0, 140, 10))
	solid(ramp, f32.Vec4{0.5, 0.4, 0.3, 1})

	ball := physical(scene.NewObject("ball", -200, 150), scene.PhysicsDynamic)
	ball.Properties.Set("physicsRestitution", 0.6)
	ball.AddShape(scene.NewDisk(0, 0, 30))
	ball.BodyMaterials = append(ball.BodyMaterials, scene.NewGradientMaterial(scene.BaseColor,
		f32.Vec2{-30, 0}, f32.Vec2{30, 0}, f32.Vec4{0.9, 0.2, 0.2, 1}, f32.Vec4{0.9, 0.7, 0.2, 1}))
	ball.Profile = scene.NewProfile(scene.ProfilePoint{Type: scene.SegmentCircle}, nil, 10, 6)

	crate := physical(scene.NewObject("crate", 40, 220), scene.PhysicsDynamic)
	crate.Properties.Set("physicsMass", 2)
	box := crate.AddShape(scene.NewBox(0, 0, 35, 35))
	box.Properties.Set("rounding", 6)
	solid(crate, f32.Vec4{0.3, 0.6, 0.9, 1})

	pill := physical(scene.NewObject("pill", 180, 120), scene.PhysicsDynamic)
	pill.AddShape(scene.NewSegment(0, 0, f32.Vec2{-30, 0}, f32.Vec2{30, 0}, 18))
	solid(pill, f32.Vec4{0.3, 0.8, 0.4, 1})

	sun := scene.NewObject("sun", 250, 200)
	sun.SequenceID = "idle"
	sun.AddShape(scene.NewDisk(0, 0, 25))
	solid(sun, f32.Vec4{1, 0.85, 0.3, 1})

	tl := animation.NewTimeline()
	tl.AddKey("idle", sun.UUID, "posY", animation.Key{Frame: 0, Value: 200})
	tl.AddKey("idle", sun.UUID, "posY", animation.Key{Frame: 60, Value: 240, Ease: ease.InOutSine})
	tl.AddKey("idle", sun.UUID, "posY", animation.Key{Frame: 120, Value: 200, Ease: ease.InOutSine})

	return []*scene.Object{floor, ramp, ball, crate, pill, sun}, tl
}
