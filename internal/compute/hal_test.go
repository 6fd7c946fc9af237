//go:build !nogpu

package compute

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/sdfscene/internal/ir"
)

// createNoopDevice creates a noop HAL device for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// skipNagaLimitation skips t on known naga gaps, mirroring the shader tests.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
	if strings.Contains(msg, "lowering error") {
		t.Skipf("Skipping: naga lowering limitation: %v", err)
	}
}

func TestCompileSPIRV(t *testing.T) {
	src, words, err := CompileSPIRV(gridKernel("grid"))
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("CompileSPIRV: %v", err)
	}
	if !strings.Contains(src, "@compute @workgroup_size(8, 8, 1)") {
		t.Errorf("WGSL missing entry point:\n%s", src)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Fatalf("SPIR-V magic missing, got %d words", len(words))
	}
}

func TestCompileSPIRVRejectsInvalidKernel(t *testing.T) {
	if _, _, err := CompileSPIRV(&ir.Kernel{Name: "bad"}); !errors.Is(err, ir.ErrInvalid) {
		t.Errorf("CompileSPIRV(bad) = %v, want ErrInvalid", err)
	}
}

func TestHALDeviceCompileOnNoop(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	dev := NewHALWithDevice(device, queue)
	prog, err := dev.Compile(gridKernel("grid"))
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Compile: %v", err)
	}
	hp := prog.(*halProgram)
	if hp.shader == nil || hp.bindLayout == nil || hp.pipeLayout == nil || hp.pipeline == nil {
		t.Error("expected all pipeline objects to be created")
	}
	if prog.Stride() != 3 {
		t.Errorf("Stride() = %d, want 3", prog.Stride())
	}

	prog.Release()
	prog.Release()
	if hp.pipeline != nil || hp.shader != nil {
		t.Error("expected pipeline objects to be destroyed after Release")
	}

	// Shared devices are not destroyed by Close; cleanup destroys them.
	dev.Close()
	dev.Close()
	if _, err := dev.Compile(gridKernel("grid")); err == nil {
		t.Error("Compile on closed device succeeded")
	}
}

func TestNewHALFromProviderRejectsPlainProvider(t *testing.T) {
	if _, err := NewHALFromProvider(nil); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("NewHALFromProvider(nil) = %v, want ErrNoAdapter", err)
	}
}

func TestMakeParams(t *testing.T) {
	b := makeParams(800, 600, 12)
	if len(b) != paramsSize {
		t.Fatalf("len = %d", len(b))
	}
	if b[0] != 0x20 || b[1] != 0x03 || b[4] != 0x58 || b[5] != 0x02 || b[8] != 12 {
		t.Errorf("params = % x", b)
	}
}
