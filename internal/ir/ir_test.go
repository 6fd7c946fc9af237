package ir

import (
	"errors"
	"reflect"
	"testing"
)

func TestBinaryBroadcast(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		l, r Type
		want Type
		ok   bool
	}{
		{"float+float", OpAdd, Float, Float, Float, true},
		{"vec2*float", OpMul, Vec2, Float, Vec2, true},
		{"float*vec4", OpMul, Float, Vec4, Vec4, true},
		{"vec2+vec3", OpAdd, Vec2, Vec3, Void, false},
		{"float<float", OpLt, Float, Float, Bool, true},
		{"vec2<vec2", OpLt, Vec2, Vec2, Void, false},
		{"bool&&bool", OpAnd, Bool, Bool, Bool, true},
		{"float&&bool", OpAnd, Float, Bool, Void, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := binaryType(tt.op, tt.l, tt.r)
			if (err == nil) != tt.ok {
				t.Fatalf("binaryType err = %v, want ok=%v", err, tt.ok)
			}
			if got != tt.want {
				t.Errorf("binaryType = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuiltinTypes(t *testing.T) {
	v2 := V("p", Vec2)
	v4 := V("c", Vec4)
	tests := []struct {
		name string
		fn   string
		args []Expr
		want Type
		ok   bool
	}{
		{"length vec2", "length", []Expr{v2}, Float, true},
		{"min splat", "min", []Expr{v2, F(0)}, Vec2, true},
		{"min float first", "min", []Expr{F(0), v2}, Void, false},
		{"mix scalar t", "mix", []Expr{v4, v4, F(0.5)}, Vec4, true},
		{"clamp splat", "clamp", []Expr{v4, F(0), F(1)}, Vec4, true},
		{"step edge", "step", []Expr{F(0), v2}, Vec2, true},
		{"sdBox", "sdBox", []Expr{v2, v2}, Float, true},
		{"sdBox wrong", "sdBox", []Expr{v2, F(1)}, Void, false},
		{"normalize float", "normalize", []Expr{F(1)}, Void, false},
		{"profileSegment", "profileSegment", []Expr{F(1), v4, v4, v4}, Float, true},
		{"unknown", "noise", []Expr{F(1)}, Void, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewCall(tt.fn, tt.args...)
			if (err == nil) != tt.ok {
				t.Fatalf("NewCall err = %v, want ok=%v", err, tt.ok)
			}
			if err != nil {
				if !errors.Is(err, ErrType) {
					t.Errorf("error %v does not wrap ErrType", err)
				}
				return
			}
			if e.Type() != tt.want {
				t.Errorf("type = %s, want %s", e.Type(), tt.want)
			}
		})
	}
}

func TestHelpersPanicOnTypeError(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrType) {
			t.Fatalf("recover() = %v, want ErrType", r)
		}
	}()
	Add(V("a", Vec2), V("b", Vec3))
}

func TestSwizzleAndConstruct(t *testing.T) {
	c := Vec(Vec4, At2(0), F(1), F(2))
	if c.Type() != Vec4 {
		t.Fatalf("construct type = %s", c.Type())
	}
	if s := Swz(c, "zw"); s.Type() != Vec2 {
		t.Errorf("swizzle type = %s, want vec2", s.Type())
	}
	if s := Swz(c, "a"); s.Type() != Float {
		t.Errorf("swizzle type = %s, want float", s.Type())
	}
	if err := checkSwizzle(Vec2, "z"); err == nil {
		t.Error("checkSwizzle(vec2, z) succeeded")
	}
	if err := checkConstruct(Vec3, []Expr{F(1), F(2)}); err == nil {
		t.Error("checkConstruct(vec3, 2 floats) succeeded")
	}
}

func TestCheck(t *testing.T) {
	okFunc := func() *Func {
		f := &Func{Name: "half", Params: []Param{{Name: "x", T: Float}}, Result: Float}
		var b Block
		b.Return(Mul(f.Arg(0), F(0.5)))
		f.Body = b.Stmts()
		return f
	}

	tests := []struct {
		name string
		k    func() *Kernel
		err  error
	}{
		{
			name: "valid",
			k: func() *Kernel {
				f := okFunc()
				var b Block
				d := b.Decl("d", CallFunc(f, Lane{Axis: LaneX}))
				b.If(Lt(d, F(0)), func(t *Block) { t.Assign(d, F(0)) })
				b.Store(0, d)
				return &Kernel{Name: "k", Funcs: []*Func{f}, Body: b.Stmts(), Stride: 1}
			},
		},
		{
			name: "zero stride",
			k:    func() *Kernel { return &Kernel{Name: "k"} },
			err:  ErrInvalid,
		},
		{
			name: "store past stride",
			k: func() *Kernel {
				var b Block
				b.Store(1, Vec(Vec2, F(0)))
				return &Kernel{Name: "k", Body: b.Stmts(), Stride: 2}
			},
			err: ErrInvalid,
		},
		{
			name: "undeclared",
			k: func() *Kernel {
				var b Block
				b.Store(0, V("nope", Float))
				return &Kernel{Name: "k", Body: b.Stmts(), Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "scoped decl leaks",
			k: func() *Kernel {
				var b Block
				b.If(Lt(F(0), F(1)), func(t *Block) { t.Decl("inner", F(1)) })
				b.Store(0, V("inner", Float))
				return &Kernel{Name: "k", Body: b.Stmts(), Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "redeclared",
			k: func() *Kernel {
				var b Block
				b.Decl("a", F(1))
				b.Decl("a", F(2))
				return &Kernel{Name: "k", Body: b.Stmts(), Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "reserved name",
			k: func() *Kernel {
				var b Block
				b.Decl("lane", F(1))
				return &Kernel{Name: "k", Body: b.Stmts(), Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "function missing return",
			k: func() *Kernel {
				f := &Func{Name: "f", Result: Float, Body: []Stmt{Decl{Name: "x", T: Float, Init: F(1)}}}
				return &Kernel{Name: "k", Funcs: []*Func{f}, Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "lane inside function",
			k: func() *Kernel {
				f := &Func{Name: "f", Result: Float, Body: []Stmt{Return{Value: Lane{}}}}
				return &Kernel{Name: "k", Funcs: []*Func{f}, Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "call before declaration",
			k: func() *Kernel {
				g := &Func{Name: "g", Result: Float, Body: []Stmt{Return{Value: Call{Name: "half", Args: []Expr{F(1)}, T: Float}}}}
				return &Kernel{Name: "k", Funcs: []*Func{g, okFunc()}, Stride: 1}
			},
			err: ErrInvalid,
		},
		{
			name: "return type mismatch",
			k: func() *Kernel {
				f := &Func{Name: "f", Result: Vec2, Body: []Stmt{Return{Value: F(1)}}}
				return &Kernel{Name: "k", Funcs: []*Func{f}, Stride: 1}
			},
			err: ErrType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.k())
			if tt.err == nil {
				if err != nil {
					t.Fatalf("Check: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("Check error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestParseTemplate(t *testing.T) {
	bind := func(name string) (Expr, bool) {
		switch name {
		case "uv":
			return V("uv", Vec2), true
		case "width", "height", "custom_x":
			return At(0), true
		case "color":
			return V("color", Vec4), true
		}
		return nil, false
	}
	tests := []struct {
		src  string
		want Type
		err  bool
	}{
		{"sdBox(__uv__, float2(__width__, __height__))", Float, false},
		{"length(__uv__) - __width__", Float, false},
		{"__uv__.y * 0.5 + sin(__custom_x__ * PI)", Float, false},
		{"mix(__color__, float4(1, 0, 0, 1), 0.25)", Vec4, false},
		{"-abs(__uv__)", Vec2, false},
		{"float(__width__)", Float, false},
		{"sdBox(__uv__)", Void, true},
		{"__missing__ + 1", Void, true},
		{"foo(__uv__)", Void, true},
		{"__uv__.z", Void, true},
		{"\"text\"", Void, true},
		{"length(", Void, true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := ParseTemplate(tt.src, bind)
			if tt.err {
				if !errors.Is(err, ErrTemplate) {
					t.Fatalf("ParseTemplate error = %v, want ErrTemplate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTemplate: %v", err)
			}
			if e.Type() != tt.want {
				t.Errorf("type = %s, want %s", e.Type(), tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("sdTriangle(__uv__, __point_0_x__, __uv__) * __time__")
	want := []string{"uv", "point_0_x", "time"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders = %v, want %v", got, want)
	}
}
