// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compute runs IR kernels on a device.
//
// A Device compiles an ir.Kernel into a Program; a Program is dispatched over
// a width x height lane grid against a packed float32 data buffer and returns
// width*height*Stride output floats, lane-major. Dispatch is a hard barrier:
// it returns only after the results have been read back.
//
// Two devices are provided: CPUDevice evaluates kernels with Go closures on a
// worker pool, HALDevice lowers them to WGSL, compiles to SPIR-V with naga and
// runs them through wgpu/hal.
package compute

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/internal/ir/cpu"
	"github.com/gogpu/sdfscene/internal/parallel"
)

var (
	// ErrNoAdapter is returned when no GPU backend or adapter is available.
	ErrNoAdapter = errors.New("compute: no GPU adapter available")

	// ErrDeviceLost is returned when a submitted dispatch does not complete.
	ErrDeviceLost = errors.New("compute: device lost")

	// ErrReleased is returned when dispatching a released program or closed device.
	ErrReleased = errors.New("compute: program released")

	// ErrGrid is returned for empty or negative dispatch grids.
	ErrGrid = errors.New("compute: invalid dispatch grid")
)

// Device compiles kernels into dispatchable programs.
type Device interface {
	Name() string
	Compile(k *ir.Kernel) (Program, error)
	Close()
}

// Program is a compiled kernel bound to a device.
type Program interface {
	// Stride is the number of output floats per lane.
	Stride() int
	// Dispatch runs one lane per grid cell and returns the output records.
	Dispatch(ctx context.Context, data []float32, width, height int) ([]float32, error)
	// Release frees device resources. Release is idempotent.
	Release()
}

func checkGrid(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrGrid, width, height)
	}
	return nil
}

// CPUDevice evaluates kernels on the CPU.
type CPUDevice struct {
	pool *parallel.Pool
}

var _ Device = (*CPUDevice)(nil)

// NewCPU returns a CPU device with the given number of workers
// (0 means GOMAXPROCS).
func NewCPU(workers int) *CPUDevice {
	return &CPUDevice{pool: parallel.New(workers)}
}

func (d *CPUDevice) Name() string { return "cpu" }

// Compile compiles k to closures.
func (d *CPUDevice) Compile(k *ir.Kernel) (Program, error) {
	p, err := cpu.Compile(k)
	if err != nil {
		return nil, err
	}
	slogger().Debug("compute: compiled cpu program", "kernel", k.Name, "funcs", len(k.Funcs), "stride", k.Stride)
	return &cpuProgram{prog: p, pool: d.pool}, nil
}

// Close stops the worker pool. Programs keep working, single threaded.
func (d *CPUDevice) Close() { d.pool.Close() }

type cpuProgram struct {
	prog     *cpu.Program
	pool     *parallel.Pool
	released atomic.Bool
}

func (p *cpuProgram) Stride() int { return p.prog.Stride() }

func (p *cpuProgram) Dispatch(ctx context.Context, data []float32, width, height int) ([]float32, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}
	if err := checkGrid(width, height); err != nil {
		return nil, err
	}
	out := make([]float32, width*height*p.prog.Stride())
	err := p.pool.Rows(ctx, height, func(y0, y1 int) {
		p.prog.Run(data, out, width, y0, y1)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *cpuProgram) Release() { p.released.Store(true) }
