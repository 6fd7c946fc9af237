// Package cpu compiles IR kernels into Go closures.
//
// It is the reference backend: the same kernels lowered to WGSL run on the
// GPU, and every builtin here mirrors the WGSL prelude. A compiled Program is
// immutable and safe for concurrent use; each Run call owns its own stack.
package cpu

import (
	"fmt"

	"github.com/gogpu/sdfscene/internal/ir"
)

type vec [4]float32

type state struct {
	data   []float32
	out    []float32
	stride int
	x, y   float32
	lane   int
	stack  []vec
	sp     int
	ret    bool
	retv   vec
}

type exprFn func(st *state, base int) vec
type stmtFn func(st *state, base int)

type compiledFunc struct {
	body  []stmtFn
	args  int
	slots int
}

// Program is a compiled kernel.
type Program struct {
	name   string
	body   []stmtFn
	slots  int
	stride int
}

// Compile checks and compiles k.
func Compile(k *ir.Kernel) (*Program, error) {
	if err := ir.Check(k); err != nil {
		return nil, err
	}
	funcs := make(map[string]*compiledFunc, len(k.Funcs))
	for _, f := range k.Funcs {
		c := &compiler{funcs: funcs, slots: map[string]int{}}
		for _, p := range f.Params {
			c.alloc(p.Name)
		}
		body := c.block(f.Body)
		funcs[f.Name] = &compiledFunc{body: body, args: len(f.Params), slots: len(c.slots)}
	}
	c := &compiler{funcs: funcs, slots: map[string]int{}}
	body := c.block(k.Body)
	return &Program{name: k.Name, body: body, slots: len(c.slots), stride: k.Stride}, nil
}

// Name returns the kernel name.
func (p *Program) Name() string { return p.name }

// Stride returns the number of floats written per lane.
func (p *Program) Stride() int { return p.stride }

// Run evaluates rows [y0, y1) of a width-wide lane grid. out must hold at
// least width*y1*Stride floats. Loads outside data read as zero.
func (p *Program) Run(data, out []float32, width, y0, y1 int) {
	st := &state{
		data:   data,
		out:    out,
		stride: p.stride,
		stack:  make([]vec, p.slots, p.slots+64),
	}
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			st.x = float32(x)
			st.y = float32(y)
			st.lane = y*width + x
			st.sp = p.slots
			clear(st.stack[:p.slots])
			for _, s := range p.body {
				s(st, 0)
			}
		}
	}
}

type compiler struct {
	funcs map[string]*compiledFunc
	slots map[string]int
}

func (c *compiler) alloc(name string) int {
	i := len(c.slots)
	c.slots[name] = i
	return i
}

func (c *compiler) block(stmts []ir.Stmt) []stmtFn {
	out := make([]stmtFn, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, c.stmt(s))
	}
	return out
}

func run(body []stmtFn, st *state, base int) {
	for _, s := range body {
		s(st, base)
		if st.ret {
			return
		}
	}
}

func (c *compiler) stmt(s ir.Stmt) stmtFn {
	switch s := s.(type) {
	case ir.Decl:
		init := c.expr(s.Init)
		slot := c.alloc(s.Name)
		return func(st *state, base int) { st.stack[base+slot] = init(st, base) }
	case ir.Assign:
		v := c.expr(s.Value)
		slot := c.slots[s.Name]
		return func(st *state, base int) { st.stack[base+slot] = v(st, base) }
	case ir.If:
		cond := c.expr(s.Cond)
		then := c.block(s.Then)
		els := c.block(s.Else)
		return func(st *state, base int) {
			if cond(st, base)[0] != 0 {
				run(then, st, base)
			} else {
				run(els, st, base)
			}
		}
	case ir.Store:
		v := c.expr(s.Value)
		w := s.Value.Type().Width()
		slot := s.Slot
		return func(st *state, base int) {
			r := v(st, base)
			copy(st.out[st.lane*st.stride+slot:], r[:w])
		}
	case ir.Return:
		v := c.expr(s.Value)
		return func(st *state, base int) {
			st.retv = v(st, base)
			st.ret = true
		}
	}
	panic(fmt.Sprintf("cpu: unexpected statement %T", s))
}

func boolVec(b bool) vec {
	if b {
		return vec{1}
	}
	return vec{}
}

func (c *compiler) expr(e ir.Expr) exprFn {
	switch e := e.(type) {
	case ir.Const:
		v := vec{e.Value}
		return func(*state, int) vec { return v }
	case ir.Var:
		slot := c.slots[e.Name]
		return func(st *state, base int) vec { return st.stack[base+slot] }
	case ir.Load:
		off := e.Offset
		if e.Index == nil {
			return func(st *state, _ int) vec {
				if off < len(st.data) {
					return vec{st.data[off]}
				}
				return vec{}
			}
		}
		idx := c.expr(e.Index)
		return func(st *state, base int) vec {
			i := off + int(idx(st, base)[0])
			if i >= 0 && i < len(st.data) {
				return vec{st.data[i]}
			}
			return vec{}
		}
	case ir.Lane:
		switch e.Axis {
		case ir.LaneX:
			return func(st *state, _ int) vec { return vec{st.x} }
		case ir.LaneY:
			return func(st *state, _ int) vec { return vec{st.y} }
		}
		return func(st *state, _ int) vec { return vec{float32(st.lane)} }
	case ir.Binary:
		return c.binary(e)
	case ir.Unary:
		x := c.expr(e.X)
		if e.Op == ir.OpNot {
			return func(st *state, base int) vec { return boolVec(x(st, base)[0] == 0) }
		}
		return func(st *state, base int) vec {
			v := x(st, base)
			return vec{-v[0], -v[1], -v[2], -v[3]}
		}
	case ir.Call:
		return c.call(e)
	case ir.Swizzle:
		x := c.expr(e.X)
		var idx [4]int
		for i := 0; i < len(e.Sel); i++ {
			idx[i] = ir.SwizzleIndex(e.Sel[i])
		}
		n := len(e.Sel)
		return func(st *state, base int) vec {
			v := x(st, base)
			var r vec
			for i := 0; i < n; i++ {
				r[i] = v[idx[i]]
			}
			return r
		}
	case ir.Construct:
		return c.construct(e)
	case ir.Select:
		cond, a, b := c.expr(e.Cond), c.expr(e.Then), c.expr(e.Else)
		return func(st *state, base int) vec {
			// Both arms are evaluated, matching WGSL select.
			av, bv := a(st, base), b(st, base)
			if cond(st, base)[0] != 0 {
				return av
			}
			return bv
		}
	}
	panic(fmt.Sprintf("cpu: unexpected expression %T", e))
}

func (c *compiler) construct(e ir.Construct) exprFn {
	args := make([]exprFn, len(e.Args))
	widths := make([]int, len(e.Args))
	for i, a := range e.Args {
		args[i] = c.expr(a)
		widths[i] = a.Type().Width()
	}
	n := e.T.Width()
	if len(args) == 1 && widths[0] == 1 {
		a := args[0]
		return func(st *state, base int) vec { return splat(a(st, base)[0], n) }
	}
	return func(st *state, base int) vec {
		var r vec
		k := 0
		for i, a := range args {
			v := a(st, base)
			for j := 0; j < widths[i]; j++ {
				r[k] = v[j]
				k++
			}
		}
		return r
	}
}

func splat(f float32, n int) vec {
	var r vec
	for i := 0; i < n; i++ {
		r[i] = f
	}
	return r
}

func (c *compiler) binary(e ir.Binary) exprFn {
	l, r := c.expr(e.L), c.expr(e.R)
	switch e.Op {
	case ir.OpAnd:
		return func(st *state, base int) vec { return boolVec(l(st, base)[0] != 0 && r(st, base)[0] != 0) }
	case ir.OpOr:
		return func(st *state, base int) vec { return boolVec(l(st, base)[0] != 0 || r(st, base)[0] != 0) }
	}
	if e.Op.IsCompare() {
		var cmp func(a, b float32) bool
		switch e.Op {
		case ir.OpLt:
			cmp = func(a, b float32) bool { return a < b }
		case ir.OpLe:
			cmp = func(a, b float32) bool { return a <= b }
		case ir.OpGt:
			cmp = func(a, b float32) bool { return a > b }
		case ir.OpGe:
			cmp = func(a, b float32) bool { return a >= b }
		case ir.OpEq:
			cmp = func(a, b float32) bool { return a == b }
		default:
			cmp = func(a, b float32) bool { return a != b }
		}
		return func(st *state, base int) vec { return boolVec(cmp(l(st, base)[0], r(st, base)[0])) }
	}

	n := e.T.Width()
	lw, rw := e.L.Type().Width(), e.R.Type().Width()
	var op func(a, b float32) float32
	switch e.Op {
	case ir.OpAdd:
		op = func(a, b float32) float32 { return a + b }
	case ir.OpSub:
		op = func(a, b float32) float32 { return a - b }
	case ir.OpMul:
		op = func(a, b float32) float32 { return a * b }
	default:
		op = func(a, b float32) float32 { return a / b }
	}
	return func(st *state, base int) vec {
		a, b := l(st, base), r(st, base)
		if lw == 1 {
			a = splat(a[0], n)
		}
		if rw == 1 {
			b = splat(b[0], n)
		}
		var out vec
		for i := 0; i < n; i++ {
			out[i] = op(a[i], b[i])
		}
		return out
	}
}

func (c *compiler) call(e ir.Call) exprFn {
	args := make([]exprFn, len(e.Args))
	types := make([]ir.Type, len(e.Args))
	for i, a := range e.Args {
		args[i] = c.expr(a)
		types[i] = a.Type()
	}
	if fn, ok := lookupBuiltin(e.Name, types, e.T); ok {
		switch len(args) {
		case 1:
			a0 := args[0]
			return func(st *state, base int) vec {
				return fn([]vec{a0(st, base)})
			}
		default:
			return func(st *state, base int) vec {
				var buf [5]vec
				vals := buf[:len(args)]
				for i, a := range args {
					vals[i] = a(st, base)
				}
				return fn(vals)
			}
		}
	}

	name := e.Name
	funcs := c.funcs
	return func(st *state, base int) vec {
		f := funcs[name]
		var buf [8]vec
		vals := buf[:len(args)]
		for i, a := range args {
			vals[i] = a(st, base)
		}
		nb := st.sp
		st.sp += f.slots
		if st.sp > len(st.stack) {
			st.stack = append(st.stack, make([]vec, st.sp-len(st.stack))...)
		}
		clear(st.stack[nb:st.sp])
		copy(st.stack[nb:], vals)
		run(f.body, st, nb)
		r := st.retv
		st.ret = false
		st.sp = nb
		return r
	}
}
