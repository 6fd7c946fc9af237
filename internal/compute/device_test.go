package compute

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/sdfscene/internal/ir"
)

// gridKernel writes (x, y, data[0] * lane) per lane.
func gridKernel(name string) *ir.Kernel {
	var b ir.Block
	b.Store(0, ir.Lane{Axis: ir.LaneX})
	b.Store(1, ir.Lane{Axis: ir.LaneY})
	b.Store(2, ir.Mul(ir.At(0), ir.Lane{Axis: ir.LaneIndex}))
	return &ir.Kernel{Name: name, Body: b.Stmts(), Stride: 3}
}

func TestCPUDeviceDispatch(t *testing.T) {
	dev := NewCPU(3)
	defer dev.Close()

	prog, err := dev.Compile(gridKernel("grid"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	const w, h = 5, 9
	out, err := prog.Dispatch(context.Background(), []float32{2}, w, h)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(out) != w*h*prog.Stride() {
		t.Fatalf("len(out) = %d, want %d", len(out), w*h*prog.Stride())
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			if out[i] != float32(x) || out[i+1] != float32(y) || out[i+2] != float32(2*(y*w+x)) {
				t.Fatalf("lane (%d,%d) = %v", x, y, out[i:i+3])
			}
		}
	}
}

func TestCPUDeviceErrors(t *testing.T) {
	dev := NewCPU(2)
	defer dev.Close()

	if _, err := dev.Compile(&ir.Kernel{Name: "bad"}); !errors.Is(err, ir.ErrInvalid) {
		t.Errorf("Compile(bad) = %v, want ErrInvalid", err)
	}

	prog, err := dev.Compile(gridKernel("grid"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := prog.Dispatch(context.Background(), nil, 0, 4); !errors.Is(err, ErrGrid) {
		t.Errorf("Dispatch(0x4) = %v, want ErrGrid", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := prog.Dispatch(ctx, []float32{1}, 4, 4); !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch(cancelled) = %v, want context.Canceled", err)
	}

	prog.Release()
	prog.Release()
	if _, err := prog.Dispatch(context.Background(), []float32{1}, 1, 1); !errors.Is(err, ErrReleased) {
		t.Errorf("Dispatch after Release = %v, want ErrReleased", err)
	}
}

// countingDevice records compiles and releases of the programs it hands out.
type countingDevice struct {
	inner    Device
	compiles atomic.Int32
	releases atomic.Int32
	closed   atomic.Bool
}

func (d *countingDevice) Name() string { return "counting" }
func (d *countingDevice) Close()       { d.closed.Store(true); d.inner.Close() }

func (d *countingDevice) Compile(k *ir.Kernel) (Program, error) {
	p, err := d.inner.Compile(k)
	if err != nil {
		return nil, err
	}
	d.compiles.Add(1)
	return &countingProgram{Program: p, dev: d}, nil
}

type countingProgram struct {
	Program
	dev *countingDevice
}

func (p *countingProgram) Release() {
	p.dev.releases.Add(1)
	p.Program.Release()
}

func TestCacheReusesPrograms(t *testing.T) {
	inner := &countingDevice{inner: NewCPU(1)}
	c := NewCache(inner, 4)

	a, err := c.Compile(gridKernel("grid"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := c.Compile(gridKernel("grid"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := inner.compiles.Load(); got != 1 {
		t.Fatalf("underlying compiles = %d, want 1", got)
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Len != 1 {
		t.Errorf("Stats = %+v", st)
	}

	a.Release()
	b.Release()
	if got := inner.releases.Load(); got != 0 {
		t.Errorf("program released while cached: %d releases", got)
	}

	// A different kernel name changes the WGSL header and therefore the key.
	d, err := c.Compile(gridKernel("other"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer d.Release()
	if got := inner.compiles.Load(); got != 2 {
		t.Errorf("underlying compiles = %d, want 2", got)
	}

	c.Close()
	if got := inner.releases.Load(); got != 1 {
		t.Errorf("releases after Close = %d, want 1 (outstanding handle keeps one alive)", got)
	}
	if !inner.closed.Load() {
		t.Error("Close did not close the wrapped device")
	}
}

func TestCacheEvictionKeepsHandlesValid(t *testing.T) {
	inner := &countingDevice{inner: NewCPU(1)}
	c := NewCache(inner, 1)
	defer c.Close()

	// Fill enough distinct kernels to force evictions in at least one shard.
	var progs []Program
	for i := 0; i < 3*cacheShards; i++ {
		p, err := c.Compile(gridKernel("k" + string(rune('a'+i%26)) + string(rune('a'+i/26))))
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		progs = append(progs, p)
	}
	if c.Stats().Evictions == 0 {
		t.Fatal("expected evictions with capacity 1")
	}
	for _, p := range progs {
		if _, err := p.Dispatch(context.Background(), []float32{1}, 2, 2); err != nil {
			t.Fatalf("Dispatch on evicted program: %v", err)
		}
	}
	if got := inner.releases.Load(); got != 0 {
		t.Errorf("releases before handles released = %d, want 0", got)
	}
	for _, p := range progs {
		p.Release()
	}
	if got, want := inner.releases.Load(), int32(c.Stats().Evictions); got != want {
		t.Errorf("releases = %d, want %d (one per evicted program)", got, want)
	}
}

func TestCacheConcurrentCompile(t *testing.T) {
	inner := &countingDevice{inner: NewCPU(2)}
	c := NewCache(inner, 4)
	defer c.Close()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Compile(gridKernel("shared"))
			if err != nil {
				t.Errorf("Compile: %v", err)
				return
			}
			p.Release()
		}()
	}
	wg.Wait()
	if got := inner.compiles.Load(); got != 1 {
		t.Errorf("underlying compiles = %d, want 1", got)
	}
}
