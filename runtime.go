package sdfscene

import (
	"context"
	"errors"
	"image"

	"github.com/gogpu/sdfscene/builder"
	"github.com/gogpu/sdfscene/internal/compute"
	"github.com/gogpu/sdfscene/physics"
	"github.com/gogpu/sdfscene/scene"
)

// ErrClosed is returned by Runtime methods after Close.
var ErrClosed = errors.New("sdfscene: runtime closed")

// Runtime owns a compute device and the program cache shared by every scene
// and physics instance built through it.
//
// Thread safety: the device and cache are safe for concurrent use, but the
// instances a Runtime builds are not.
type Runtime struct {
	cache *compute.Cache
	// owned is set when the runtime opened the device and must close it.
	owned bool
	opts  options
}

// New creates a runtime. Without options kernels run on a CPU device.
func New(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{opts: o}
	dev := o.device
	switch {
	case dev != nil:
	case o.provider != nil:
		d, err := compute.NewHALFromProvider(o.provider)
		if err != nil {
			return nil, err
		}
		// The provider keeps ownership of the underlying device; closing
		// the wrapper only drops our references.
		dev, r.owned = d, true
	case o.hal:
		if d, err := compute.NewHAL(); err == nil {
			dev, r.owned = d, true
		} else {
			Logger().Warn("sdfscene: GPU unavailable, using CPU", "err", err)
		}
	}
	if dev == nil {
		dev, r.owned = compute.NewCPU(o.workers), true
	}
	r.cache = compute.NewCache(dev, o.cache)
	Logger().Info("sdfscene: runtime ready", "device", dev.Name())
	return r, nil
}

// Device returns the runtime's caching device.
func (r *Runtime) Device() Device {
	if r.cache == nil {
		return nil
	}
	return r.cache
}

// CacheStats reports program cache usage.
func (r *Runtime) CacheStats() compute.CacheStats {
	if r.cache == nil {
		return compute.CacheStats{}
	}
	return r.cache.Stats()
}

// Build compiles objects on the runtime's device. Extra builder options are
// applied after the runtime defaults. A scene without shapes yields
// (nil, nil).
func (r *Runtime) Build(ctx context.Context, objects []*scene.Object, camera scene.Camera, opts ...builder.Option) (*builder.Instance, error) {
	if r.cache == nil {
		return nil, ErrClosed
	}
	all := append([]builder.Option{
		builder.WithDevice(r.cache),
		builder.WithResolver(r.opts.resolver),
	}, opts...)
	return builder.Build(ctx, objects, camera, all...)
}

// Render draws in with camera into a new width x height image.
func (r *Runtime) Render(ctx context.Context, in *builder.Instance, camera scene.Camera, width, height int) (*image.NRGBA, error) {
	if r.cache == nil {
		return nil, ErrClosed
	}
	if in == nil {
		return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
	}
	return in.Render(ctx, camera, width, height, nil)
}

// HitTest selects the object under pixel (x, y), see builder.Instance.HitTest.
func (r *Runtime) HitTest(ctx context.Context, in *builder.Instance, x, y float32, width, height int, multiSelect bool) (*scene.Object, error) {
	if r.cache == nil {
		return nil, ErrClosed
	}
	if in == nil {
		return nil, nil
	}
	return in.HitTest(ctx, x, y, width, height, multiSelect)
}

// BuildPhysics creates a physics world on the runtime's device with the
// runtime's gravity and resolver.
func (r *Runtime) BuildPhysics(ctx context.Context, objects []*scene.Object, camera scene.Camera, opts ...physics.Option) (*physics.Instance, error) {
	if r.cache == nil {
		return nil, ErrClosed
	}
	all := append([]physics.Option{
		physics.WithDevice(r.cache),
		physics.WithGravity(r.opts.gravity),
		physics.WithResolver(r.opts.resolver),
	}, opts...)
	return physics.BuildPhysics(ctx, objects, camera, all...)
}

// Step advances p by one step, see physics.Step. A nil world is a no-op so
// scenes without collision objects can be stepped unconditionally.
func (r *Runtime) Step(ctx context.Context, p *physics.Instance, in *builder.Instance, camera scene.Camera) error {
	if r.cache == nil {
		return ErrClosed
	}
	if p == nil {
		return nil
	}
	return physics.Step(ctx, p, in, camera)
}

// Close releases cached programs and, when the runtime opened it, the
// device. Instances built by the runtime must be released first.
func (r *Runtime) Close() {
	if r.cache == nil {
		return
	}
	if r.owned {
		r.cache.Close()
	} else {
		r.cache.Purge()
	}
	r.cache = nil
}
