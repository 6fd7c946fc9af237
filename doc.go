// Package sdfscene compiles 2D scenes built from signed distance fields into
// data-parallel programs and simulates rigid bodies against the same fields.
//
// # Overview
//
// A scene is a forest of [scene.Object] values. Each object carries shapes
// (distance templates combined with boolean modes), body and border
// materials, an optional relief profile and children. The [builder] package
// turns the forest into one kernel plus one packed float buffer; after the
// build only the buffer changes from frame to frame. The [physics] package
// evaluates the distance fields of collision objects at the proxy disks of
// dynamic bodies and resolves the contacts with sequential impulses.
//
// # Quick Start
//
//	rt, err := sdfscene.New(sdfscene.WithHAL())
//	if err != nil { ... }
//	defer rt.Close()
//
//	ball := scene.NewObject("ball", 0, 40)
//	ball.AddShape(scene.NewDisk(0, 0, 10))
//	ball.Properties.Set("physicsMode", float32(scene.PhysicsDynamic))
//	objects := []*scene.Object{ball, floor}
//
//	inst, err := rt.Build(ctx, objects, cam)
//	world, err := rt.BuildPhysics(ctx, objects, cam)
//	for frame := range 120 {
//		_ = rt.Step(ctx, world, inst, cam)
//		_ = inst.Update(cam, float32(frame))
//		img, _ := rt.Render(ctx, inst, cam, 800, 600)
//		...
//	}
//
// # Devices
//
// Kernels run on a [Device]. The default is a CPU device that interprets the
// kernel on a worker pool. [WithHAL] opens the Vulkan backend of
// gogpu/wgpu and falls back to the CPU when no adapter is found;
// [WithDeviceProvider] shares the device of a host application. Compiled
// programs are cached per runtime, so rebuilding an unchanged scene reuses
// its pipeline.
//
// # Coordinate System
//
//   - Scene space is y up; pixel space is y down with the origin top-left
//   - The camera position is the scene point at the viewport center
//   - Object and shape rotations are in degrees, counter-clockwise
package sdfscene

// Version is the current version of the module.
const Version = "0.1.0"
