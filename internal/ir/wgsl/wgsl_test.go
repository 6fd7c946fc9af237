package wgsl

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"

	"github.com/gogpu/sdfscene/internal/ir"
)

func sampleKernel() *ir.Kernel {
	var fb ir.Block
	f := &ir.Func{
		Name:   "sdfObj0",
		Params: []ir.Param{{Name: "p", T: ir.Vec2}},
		Result: ir.Float,
	}
	box := fb.Decl("box", ir.B("sdBox", f.Arg(0), ir.Vec(ir.Vec2, ir.At(0), ir.At(1))))
	fb.Return(ir.B("mergeSmooth", box, ir.B("length", f.Arg(0)), ir.F(0.5)))
	f.Body = fb.Stmts()

	var b ir.Block
	uv := b.Decl("uv", ir.Vec(ir.Vec2, ir.Sub(ir.Lane{Axis: ir.LaneX}, ir.F(8)), ir.Neg(ir.Lane{Axis: ir.LaneY})))
	d := b.Decl("dist", ir.CallFunc(f, uv))
	col := b.Decl("col", ir.Vec(ir.Vec4, ir.F(0)))
	b.If(ir.Le(d, ir.F(0)), func(t *ir.Block) {
		t.Assign(col, ir.B("mix", col, ir.At4(2), ir.B("fillMask", d)))
	})
	b.Store(0, d)
	b.Store(1, ir.B("max", col, ir.F(0)))
	b.Store(5, ir.AtIndex(6, ir.F(1)))
	return &ir.Kernel{Name: "sample", Funcs: []*ir.Func{f}, Body: b.Stmts(), Stride: 6}
}

func TestLowerStructure(t *testing.T) {
	src, err := Lower(sampleKernel())
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	want := []string{
		"var<uniform> sdf_params: Params",
		"var<storage, read> sdf_data: array<f32>",
		"var<storage, read_write> sdf_out: array<f32>",
		"@compute @workgroup_size(8, 8, 1)",
		"fn u_sdfObj0(v_p: vec2<f32>) -> f32 {",
		"sdf_mergeSmooth(",
		"var v_dist: f32 = u_sdfObj0(v_uv);",
		"sdf_out[lane * 6u + 0u] = v_dist;",
		"max(v_col, vec4<f32>(0.0))",
		"sdf_out[lane * 6u + 4u] = sdf_tmp0.w;",
		"sdf_data[6u + u32(1.0)]",
		"(-gy)",
	}
	for _, w := range want {
		if !strings.Contains(src, w) {
			t.Errorf("generated WGSL missing %q", w)
		}
	}
}

func TestLowerRejectsInvalidKernel(t *testing.T) {
	k := &ir.Kernel{Name: "bad", Stride: 1, Body: []ir.Stmt{ir.Store{Slot: 0, Value: ir.V("missing", ir.Float)}}}
	if _, err := Lower(k); !errors.Is(err, ir.ErrInvalid) {
		t.Fatalf("Lower error = %v, want ErrInvalid", err)
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.5, "0.5"},
		{-2, "(-2.0)"},
		{1e-7, "0.0000001"},
		{123456, "123456.0"},
	}
	for _, tt := range tests {
		if got := Float(tt.in); got != tt.want {
			t.Errorf("Float(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLowerCompilesWithNaga(t *testing.T) {
	src, err := Lower(sampleKernel())
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	spirv, err := naga.Compile(src)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		if strings.Contains(msg, "lowering error") {
			t.Skipf("Skipping: naga lowering limitation: %v", err)
		}
		t.Fatalf("naga.Compile: %v\n%s", err, src)
	}
	if len(spirv) < 4 || len(spirv)%4 != 0 {
		t.Fatalf("SPIR-V length %d is not a positive multiple of 4", len(spirv))
	}
	if magic := binary.LittleEndian.Uint32(spirv); magic != 0x07230203 {
		t.Errorf("SPIR-V magic = %#x, want 0x07230203", magic)
	}
}
