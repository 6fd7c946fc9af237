// Package ir is a small typed expression language for SDF evaluation programs.
//
// The program generator builds kernels out of IR nodes instead of shader text.
// Backends lower a Kernel to a concrete target: package wgsl emits a WGSL
// compute shader for wgpu, package cpu compiles it to Go closures.
//
// All values are float32 based. Vectors have two to four components, Bool is
// only produced by comparisons and consumed by If, Select and logical ops.
package ir

import (
	"errors"
	"fmt"
)

// ErrType is returned when IR nodes are combined with incompatible types.
var ErrType = errors.New("ir: type mismatch")

// Type is the static type of an expression.
type Type uint8

const (
	Void Type = iota
	Float
	Vec2
	Vec3
	Vec4
	Bool
)

// Width returns the number of float32 components of t.
func (t Type) Width() int {
	switch t {
	case Float, Bool:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4:
		return 4
	}
	return 0
}

// IsVector reports whether t is Vec2, Vec3 or Vec4.
func (t Type) IsVector() bool { return t == Vec2 || t == Vec3 || t == Vec4 }

// IsNumeric reports whether t is Float or a vector.
func (t Type) IsNumeric() bool { return t == Float || t.IsVector() }

func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case Float:
		return "float"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// VecOf returns the float vector type with n components (Float for n == 1).
func VecOf(n int) Type {
	switch n {
	case 1:
		return Float
	case 2:
		return Vec2
	case 3:
		return Vec3
	case 4:
		return Vec4
	}
	return Void
}

// Expr is an IR expression node.
type Expr interface {
	Type() Type
	expr()
}

// Const is a float literal.
type Const struct{ Value float32 }

// Var references a local variable or function parameter.
type Var struct {
	Name string
	T    Type
}

// Load reads data[Offset] or, when Index is set, data[Offset + int(Index)].
type Load struct {
	Offset int
	Index  Expr
}

// LaneAxis selects the lane coordinate read by a Lane expression.
type LaneAxis uint8

const (
	LaneX LaneAxis = iota
	LaneY
	LaneIndex
)

// Lane yields the current lane coordinate as a float. Only valid in kernel bodies.
type Lane struct{ Axis LaneAxis }

// Op is a unary or binary operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpNeg
	OpNot
)

var opSymbols = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=", OpEq: "==", OpNe: "!=",
	OpAnd: "&&", OpOr: "||", OpNeg: "-", OpNot: "!",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// IsArith reports whether o is + - * /.
func (o Op) IsArith() bool { return o <= OpDiv }

// IsCompare reports whether o is a comparison.
func (o Op) IsCompare() bool { return o >= OpLt && o <= OpNe }

// Binary applies an arithmetic, comparison or logical operator.
type Binary struct {
	Op   Op
	L, R Expr
	T    Type
}

// Unary applies OpNeg or OpNot.
type Unary struct {
	Op Op
	X  Expr
}

// Call invokes a builtin or a user function declared in the kernel.
type Call struct {
	Name string
	Args []Expr
	T    Type
}

// Swizzle selects vector components, e.g. "x", "xy", "zw".
type Swizzle struct {
	X   Expr
	Sel string
}

// Construct builds a vector from scalars and smaller vectors.
// A single Float argument is splatted.
type Construct struct {
	T    Type
	Args []Expr
}

// Select yields Then when Cond holds, Else otherwise.
type Select struct {
	Cond, Then, Else Expr
}

func (Const) Type() Type       { return Float }
func (v Var) Type() Type       { return v.T }
func (Load) Type() Type        { return Float }
func (Lane) Type() Type        { return Float }
func (b Binary) Type() Type    { return b.T }
func (u Unary) Type() Type     { return u.X.Type() }
func (c Call) Type() Type      { return c.T }
func (s Swizzle) Type() Type   { return VecOf(len(s.Sel)) }
func (c Construct) Type() Type { return c.T }
func (s Select) Type() Type    { return s.Then.Type() }

func (Const) expr()     {}
func (Var) expr()       {}
func (Load) expr()      {}
func (Lane) expr()      {}
func (Binary) expr()    {}
func (Unary) expr()     {}
func (Call) expr()      {}
func (Swizzle) expr()   {}
func (Construct) expr() {}
func (Select) expr()    {}

// SwizzleIndex maps a swizzle letter to its component index.
func SwizzleIndex(c byte) int {
	switch c {
	case 'x', 'r':
		return 0
	case 'y', 'g':
		return 1
	case 'z', 'b':
		return 2
	case 'w', 'a':
		return 3
	}
	return -1
}

// binaryType computes the result type of l op r.
func binaryType(op Op, l, r Type) (Type, error) {
	switch {
	case op.IsArith():
		if !l.IsNumeric() || !r.IsNumeric() {
			break
		}
		if l == r {
			return l, nil
		}
		if l == Float {
			return r, nil
		}
		if r == Float {
			return l, nil
		}
	case op.IsCompare():
		if l == Float && r == Float {
			return Bool, nil
		}
	case op == OpAnd || op == OpOr:
		if l == Bool && r == Bool {
			return Bool, nil
		}
	}
	return Void, fmt.Errorf("%w: %s %s %s", ErrType, l, op, r)
}

func mustBinary(op Op, l, r Expr) Expr {
	t, err := binaryType(op, l.Type(), r.Type())
	if err != nil {
		panic(err)
	}
	return Binary{Op: op, L: l, R: r, T: t}
}

// F returns a float literal.
func F(v float32) Expr { return Const{Value: v} }

// V returns a variable reference.
func V(name string, t Type) Var { return Var{Name: name, T: t} }

// At loads data[offset].
func At(offset int) Expr { return Load{Offset: offset} }

// AtIndex loads data[offset + int(index)].
func AtIndex(offset int, index Expr) Expr { return Load{Offset: offset, Index: index} }

// At2 loads data[offset:offset+2] as a Vec2.
func At2(offset int) Expr { return Construct{T: Vec2, Args: []Expr{At(offset), At(offset + 1)}} }

// At4 loads data[offset:offset+4] as a Vec4.
func At4(offset int) Expr {
	return Construct{T: Vec4, Args: []Expr{At(offset), At(offset + 1), At(offset + 2), At(offset + 3)}}
}

func Add(l, r Expr) Expr { return mustBinary(OpAdd, l, r) }
func Sub(l, r Expr) Expr { return mustBinary(OpSub, l, r) }
func Mul(l, r Expr) Expr { return mustBinary(OpMul, l, r) }
func Div(l, r Expr) Expr { return mustBinary(OpDiv, l, r) }
func Lt(l, r Expr) Expr  { return mustBinary(OpLt, l, r) }
func Le(l, r Expr) Expr  { return mustBinary(OpLe, l, r) }
func Gt(l, r Expr) Expr  { return mustBinary(OpGt, l, r) }
func Ge(l, r Expr) Expr  { return mustBinary(OpGe, l, r) }
func Eq(l, r Expr) Expr  { return mustBinary(OpEq, l, r) }
func Ne(l, r Expr) Expr  { return mustBinary(OpNe, l, r) }
func And(l, r Expr) Expr { return mustBinary(OpAnd, l, r) }
func Or(l, r Expr) Expr  { return mustBinary(OpOr, l, r) }

// Neg negates a numeric expression.
func Neg(x Expr) Expr {
	if !x.Type().IsNumeric() {
		panic(fmt.Errorf("%w: -%s", ErrType, x.Type()))
	}
	return Unary{Op: OpNeg, X: x}
}

// Not negates a Bool expression.
func Not(x Expr) Expr {
	if x.Type() != Bool {
		panic(fmt.Errorf("%w: !%s", ErrType, x.Type()))
	}
	return Unary{Op: OpNot, X: x}
}

// Swz returns a swizzle of x.
func Swz(x Expr, sel string) Expr {
	if err := checkSwizzle(x.Type(), sel); err != nil {
		panic(err)
	}
	return Swizzle{X: x, Sel: sel}
}

// Vec builds a vector of type t.
func Vec(t Type, args ...Expr) Expr {
	if err := checkConstruct(t, args); err != nil {
		panic(err)
	}
	return Construct{T: t, Args: args}
}

// Sel returns cond ? a : b.
func Sel(cond, a, b Expr) Expr {
	if cond.Type() != Bool || a.Type() != b.Type() {
		panic(fmt.Errorf("%w: select(%s, %s, %s)", ErrType, cond.Type(), a.Type(), b.Type()))
	}
	return Select{Cond: cond, Then: a, Else: b}
}

// B calls a builtin, panicking when the arguments do not type check.
func B(name string, args ...Expr) Expr {
	c, err := NewCall(name, args...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCall builds a builtin call, returning an error for unknown builtins or bad arguments.
func NewCall(name string, args ...Expr) (Expr, error) {
	bi, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %q", ErrType, name)
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	t, err := bi.result(types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Call{Name: name, Args: args, T: t}, nil
}

// CallFunc calls a user function.
func CallFunc(f *Func, args ...Expr) Expr {
	if len(args) != len(f.Params) {
		panic(fmt.Errorf("%w: %s expects %d args, got %d", ErrType, f.Name, len(f.Params), len(args)))
	}
	for i, a := range args {
		if a.Type() != f.Params[i].T {
			panic(fmt.Errorf("%w: %s arg %d is %s, want %s", ErrType, f.Name, i, a.Type(), f.Params[i].T))
		}
	}
	return Call{Name: f.Name, Args: args, T: f.Result}
}

func checkSwizzle(t Type, sel string) error {
	if !t.IsVector() || len(sel) == 0 || len(sel) > 4 {
		return fmt.Errorf("%w: .%s on %s", ErrType, sel, t)
	}
	for i := 0; i < len(sel); i++ {
		idx := SwizzleIndex(sel[i])
		if idx < 0 || idx >= t.Width() {
			return fmt.Errorf("%w: .%s on %s", ErrType, sel, t)
		}
	}
	return nil
}

func checkConstruct(t Type, args []Expr) error {
	if !t.IsVector() && t != Float {
		return fmt.Errorf("%w: construct %s", ErrType, t)
	}
	if len(args) == 1 && args[0].Type() == Float {
		return nil
	}
	n := 0
	for _, a := range args {
		if !a.Type().IsNumeric() {
			return fmt.Errorf("%w: construct %s from %s", ErrType, t, a.Type())
		}
		n += a.Type().Width()
	}
	if n != t.Width() {
		return fmt.Errorf("%w: construct %s from %d components", ErrType, t, n)
	}
	return nil
}
