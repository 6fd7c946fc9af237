package cpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/sdfscene/internal/ir"
)

func approx(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestBooleanOps(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b float32) float32
		a, b float32
		want float32
	}{
		{"merge", Merge, 3, -1, -1},
		{"subtract", Subtract, 3, -1, 3},
		{"intersect", Intersect, 3, -1, 3},
		{"subtract carves", Subtract, -2, -1, 1},
		{"intersect inside", Intersect, -2, -1, -1},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.a, tt.b); got != tt.want {
			t.Errorf("%s(%v, %v) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSmoothOpsConvergeToHard(t *testing.T) {
	pairs := [][2]float32{{3, -1}, {-1, 3}, {0.5, 0.25}, {-2, -0.5}}
	for _, p := range pairs {
		d1, d2 := p[0], p[1]
		if got, want := MergeSmooth(d1, d2, 1e-4), Merge(d1, d2); !approx(got, want) {
			t.Errorf("MergeSmooth(%v, %v) = %v, want %v", d1, d2, got, want)
		}
		if got, want := IntersectSmooth(d1, d2, 1e-4), Intersect(d1, d2); !approx(got, want) {
			t.Errorf("IntersectSmooth(%v, %v) = %v, want %v", d1, d2, got, want)
		}
		// SubtractSmooth(a, b) carves a out of b.
		if got, want := SubtractSmooth(d2, d1, 1e-4), Subtract(d1, d2); !approx(got, want) {
			t.Errorf("SubtractSmooth(%v, %v) = %v, want %v", d2, d1, got, want)
		}
	}
}

func TestRotate(t *testing.T) {
	x, y := RotateCCW(1, 0, math.Pi/2)
	if !approx(x, 0) || !approx(y, 1) {
		t.Errorf("RotateCCW(1, 0, pi/2) = (%v, %v), want (0, 1)", x, y)
	}
	x, y = RotateCW(1, 0, math.Pi/2)
	if !approx(x, 0) || !approx(y, -1) {
		t.Errorf("RotateCW(1, 0, pi/2) = (%v, %v), want (0, -1)", x, y)
	}
	x, y = RotateCCW(0.3, -2, 1.1)
	x, y = RotateCW(x, y, 1.1)
	if !approx(x, 0.3) || !approx(y, -2) {
		t.Errorf("RotateCW did not invert RotateCCW: (%v, %v)", x, y)
	}
}

func TestProfileSegment(t *testing.T) {
	tests := []struct {
		name    string
		x       float32
		s, c, e [4]float32
		want    float32
	}{
		{"linear mid", 5, [4]float32{0, 0, SegmentLinear}, [4]float32{}, [4]float32{10, 4}, 2},
		{"linear clamps", 15, [4]float32{0, 0, SegmentLinear}, [4]float32{}, [4]float32{10, 4}, 4},
		{"smoothstep mid", 5, [4]float32{0, 0, SegmentSmoothstep}, [4]float32{}, [4]float32{10, 4}, 2},
		{"smoothstep quarter", 2.5, [4]float32{0, 0, SegmentSmoothstep}, [4]float32{}, [4]float32{10, 4}, 4 * 0.15625},
		{"circle apex", 5, [4]float32{0, 0, SegmentCircle}, [4]float32{}, [4]float32{10, 0}, 5},
		{"circle edge", 0, [4]float32{0, 0, SegmentCircle}, [4]float32{}, [4]float32{10, 0}, 0},
		{"bezier ends", 10, [4]float32{0, 0, SegmentBezier}, [4]float32{5, 8}, [4]float32{10, 2}, 2},
		{"bezier symmetric mid", 5, [4]float32{0, 0, SegmentBezier}, [4]float32{5, 8}, [4]float32{10, 0}, 4},
	}
	for _, tt := range tests {
		if got := ProfileSegment(tt.x, tt.s, tt.c, tt.e); !approx(got, tt.want) {
			t.Errorf("%s: ProfileSegment = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func runKernel(t *testing.T, k *ir.Kernel, data []float32, w, h int) []float32 {
	t.Helper()
	p, err := Compile(k)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	out := make([]float32, w*h*p.Stride())
	p.Run(data, out, w, 0, h)
	return out
}

func TestProgramLanesAndFunctions(t *testing.T) {
	// circle(p) = length(p - center) - radius, center/radius from data.
	f := &ir.Func{Name: "circle", Params: []ir.Param{{Name: "p", T: ir.Vec2}}, Result: ir.Float}
	var fb ir.Block
	fb.Return(ir.Sub(ir.B("length", ir.B("translate", f.Arg(0), ir.At2(0))), ir.At(2)))
	f.Body = fb.Stmts()

	var b ir.Block
	p := b.Decl("p", ir.Vec(ir.Vec2, ir.Lane{Axis: ir.LaneX}, ir.Lane{Axis: ir.LaneY}))
	d := b.Decl("d", ir.CallFunc(f, p))
	inside := b.Decl("inside", ir.F(0))
	b.IfElse(ir.Le(d, ir.F(0)),
		func(t *ir.Block) { t.Assign(inside, ir.F(1)) },
		func(e *ir.Block) { e.Assign(inside, ir.F(-1)) })
	b.Store(0, d)
	b.Store(1, inside)
	b.Store(2, ir.Lane{Axis: ir.LaneIndex})
	k := &ir.Kernel{Name: "circle", Funcs: []*ir.Func{f}, Body: b.Stmts(), Stride: 3}

	out := runKernel(t, k, []float32{2, 2, 1.5}, 4, 4)
	lane := func(x, y int) []float32 { i := (y*4 + x) * 3; return out[i : i+3] }

	if got := lane(2, 2); got[0] != -1.5 || got[1] != 1 || got[2] != 10 {
		t.Errorf("center lane = %v, want [-1.5 1 10]", got)
	}
	if got := lane(0, 0); !approx(got[0], float32(math.Sqrt(8))-1.5) || got[1] != -1 {
		t.Errorf("corner lane = %v", got)
	}
}

func TestProgramDynamicLoadsAndSwizzle(t *testing.T) {
	var b ir.Block
	i := b.Decl("i", ir.Lane{Axis: ir.LaneX})
	v := b.Decl("v", ir.Vec(ir.Vec4, ir.AtIndex(0, i), ir.F(1), ir.F(2), ir.F(3)))
	b.Store(0, ir.Swz(v, "wx"))
	b.Store(2, ir.B("clamp", ir.Swz(v, "xy"), ir.F(0), ir.F(1.5)))
	b.Store(4, ir.Sel(ir.Gt(ir.AtIndex(0, i), ir.F(5)), ir.F(1), ir.F(0)))
	b.Store(5, ir.AtIndex(100, i))
	k := &ir.Kernel{Name: "loads", Body: b.Stmts(), Stride: 6}

	out := runKernel(t, k, []float32{4, 7, -3}, 3, 1)
	want := []float32{
		3, 4, 1.5, 1, 0, 0,
		3, 7, 1.5, 1, 1, 0,
		3, -3, 0, 1, 0, 0,
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestProgramNestedFunctionCallsAndEarlyReturn(t *testing.T) {
	abs := &ir.Func{Name: "myAbs", Params: []ir.Param{{Name: "x", T: ir.Float}}, Result: ir.Float}
	var ab ir.Block
	ab.If(ir.Lt(abs.Arg(0), ir.F(0)), func(t *ir.Block) { t.Return(ir.Neg(abs.Arg(0))) })
	ab.Return(abs.Arg(0))
	abs.Body = ab.Stmts()

	twice := &ir.Func{Name: "twiceAbs", Params: []ir.Param{{Name: "y", T: ir.Float}}, Result: ir.Float}
	var tb ir.Block
	a := tb.Decl("a", ir.CallFunc(abs, twice.Arg(0)))
	tb.Return(ir.Add(a, ir.CallFunc(abs, ir.Neg(twice.Arg(0)))))
	twice.Body = tb.Stmts()

	var b ir.Block
	b.Store(0, ir.CallFunc(twice, ir.Sub(ir.Lane{Axis: ir.LaneX}, ir.F(2))))
	k := &ir.Kernel{Name: "nested", Funcs: []*ir.Func{abs, twice}, Body: b.Stmts(), Stride: 1}

	out := runKernel(t, k, nil, 5, 1)
	want := []float32{4, 2, 0, 2, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	_, err := Compile(&ir.Kernel{Name: "bad", Stride: 0})
	if !errors.Is(err, ir.ErrInvalid) {
		t.Fatalf("Compile error = %v, want ErrInvalid", err)
	}
}
