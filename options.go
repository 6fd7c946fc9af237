package sdfscene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/sdfscene/animation"
	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/physics"
)

// Device compiles and runs kernels. See [WithDevice].
type Device = compute.Device

// Option configures a Runtime during creation.
//
// Example:
//
//	// CPU interpreter on all cores
//	rt, err := sdfscene.New()
//
//	// Vulkan, falling back to the CPU without an adapter
//	rt, err := sdfscene.New(sdfscene.WithHAL())
type Option func(*options)

type options struct {
	device   Device
	hal      bool
	provider gpucontext.DeviceProvider
	workers  int
	cache    int
	resolver animation.Resolver
	gravity  mgl32.Vec2
}

func defaultOptions() options {
	return options{
		cache:   compute.DefaultCacheCapacity,
		gravity: physics.DefaultGravity,
	}
}

// WithDevice runs kernels on d. The runtime does not close a device passed
// this way.
func WithDevice(d Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithHAL opens the Vulkan backend. Without a usable adapter the runtime
// logs a warning and uses the CPU device.
func WithHAL() Option {
	return func(o *options) {
		o.hal = true
	}
}

// WithDeviceProvider shares the GPU device of a host application, such as a
// gogpu window. The provider must expose HAL types.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithWorkers sets the worker count of the CPU device. Zero means
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.workers = n
		}
	}
}

// WithCacheCapacity sets the number of compiled programs kept per cache
// shard.
func WithCacheCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cache = n
		}
	}
}

// WithResolver sets the animation resolver used by Build and BuildPhysics.
func WithResolver(r animation.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithGravity sets the gravity of BuildPhysics worlds.
func WithGravity(g mgl32.Vec2) Option {
	return func(o *options) {
		o.gravity = g
	}
}
