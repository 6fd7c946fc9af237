package ir

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Check for structurally invalid kernels.
var ErrInvalid = errors.New("ir: invalid kernel")

// reserved names are used by backends for bindings and the entry point.
var reserved = map[string]bool{
	"data": true, "out": true, "params": true, "gid": true, "lane": true,
	"main": true, "gx": true, "gy": true, "fn": true, "var": true, "let": true,
	"return": true, "if": true, "else": true, "loop": true, "for": true,
	"select": true, "true": true, "false": true, "f32": true, "u32": true, "i32": true,
}

// Check verifies that every variable is declared before use, every call
// resolves, types agree and lane-only constructs stay in the kernel body.
// Local names must be unique within a function or kernel body.
func Check(k *Kernel) error {
	if k == nil {
		return fmt.Errorf("%w: nil kernel", ErrInvalid)
	}
	if k.Stride <= 0 {
		return fmt.Errorf("%w: stride %d", ErrInvalid, k.Stride)
	}
	funcs := make(map[string]*Func, len(k.Funcs))
	for _, f := range k.Funcs {
		if reserved[f.Name] || IsBuiltin(f.Name) {
			return fmt.Errorf("%w: function name %q is reserved", ErrInvalid, f.Name)
		}
		if _, dup := funcs[f.Name]; dup {
			return fmt.Errorf("%w: duplicate function %q", ErrInvalid, f.Name)
		}
		c := &checker{funcs: funcs, names: map[string]bool{}, fn: f}
		scope := map[string]Type{}
		for _, p := range f.Params {
			if err := c.declare(scope, p.Name, p.T); err != nil {
				return err
			}
		}
		if err := c.block(scope, f.Body); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if len(f.Body) == 0 {
			return fmt.Errorf("%w: %s has no body", ErrInvalid, f.Name)
		}
		if _, ok := f.Body[len(f.Body)-1].(Return); !ok {
			return fmt.Errorf("%w: %s must end with return", ErrInvalid, f.Name)
		}
		funcs[f.Name] = f
	}
	c := &checker{funcs: funcs, names: map[string]bool{}, stride: k.Stride}
	if err := c.block(map[string]Type{}, k.Body); err != nil {
		return fmt.Errorf("%s: %w", k.Name, err)
	}
	return nil
}

type checker struct {
	funcs  map[string]*Func
	names  map[string]bool
	fn     *Func // nil in the kernel body
	stride int
}

func (c *checker) declare(scope map[string]Type, name string, t Type) error {
	if name == "" || reserved[name] || IsBuiltin(name) {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalid, name)
	}
	if c.names[name] {
		return fmt.Errorf("%w: %q redeclared", ErrInvalid, name)
	}
	if t == Void {
		return fmt.Errorf("%w: %q has no type", ErrInvalid, name)
	}
	c.names[name] = true
	scope[name] = t
	return nil
}

func (c *checker) block(outer map[string]Type, stmts []Stmt) error {
	scope := make(map[string]Type, len(outer))
	for k, v := range outer {
		scope[k] = v
	}
	for _, s := range stmts {
		if err := c.stmt(scope, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) stmt(scope map[string]Type, s Stmt) error {
	switch s := s.(type) {
	case Decl:
		t, err := c.expr(scope, s.Init)
		if err != nil {
			return err
		}
		if t != s.T {
			return fmt.Errorf("%w: %s declared %s, init is %s", ErrType, s.Name, s.T, t)
		}
		return c.declare(scope, s.Name, s.T)
	case Assign:
		want, ok := scope[s.Name]
		if !ok {
			return fmt.Errorf("%w: assignment to undeclared %q", ErrInvalid, s.Name)
		}
		t, err := c.expr(scope, s.Value)
		if err != nil {
			return err
		}
		if t != want {
			return fmt.Errorf("%w: assign %s to %s %s", ErrType, t, want, s.Name)
		}
	case If:
		t, err := c.expr(scope, s.Cond)
		if err != nil {
			return err
		}
		if t != Bool {
			return fmt.Errorf("%w: condition is %s", ErrType, t)
		}
		if err := c.block(scope, s.Then); err != nil {
			return err
		}
		return c.block(scope, s.Else)
	case Store:
		if c.fn != nil {
			return fmt.Errorf("%w: store inside function", ErrInvalid)
		}
		t, err := c.expr(scope, s.Value)
		if err != nil {
			return err
		}
		if !t.IsNumeric() || s.Slot < 0 || s.Slot+t.Width() > c.stride {
			return fmt.Errorf("%w: store of %s at slot %d exceeds stride %d", ErrInvalid, t, s.Slot, c.stride)
		}
	case Return:
		if c.fn == nil {
			return fmt.Errorf("%w: return in kernel body", ErrInvalid)
		}
		t, err := c.expr(scope, s.Value)
		if err != nil {
			return err
		}
		if t != c.fn.Result {
			return fmt.Errorf("%w: return %s from %s function", ErrType, t, c.fn.Result)
		}
	default:
		return fmt.Errorf("%w: unknown statement %T", ErrInvalid, s)
	}
	return nil
}

func (c *checker) expr(scope map[string]Type, e Expr) (Type, error) {
	switch e := e.(type) {
	case Const:
		return Float, nil
	case Var:
		t, ok := scope[e.Name]
		if !ok {
			return Void, fmt.Errorf("%w: undeclared %q", ErrInvalid, e.Name)
		}
		if t != e.T {
			return Void, fmt.Errorf("%w: %s is %s, referenced as %s", ErrType, e.Name, t, e.T)
		}
		return t, nil
	case Load:
		if e.Offset < 0 {
			return Void, fmt.Errorf("%w: negative load offset", ErrInvalid)
		}
		if e.Index != nil {
			t, err := c.expr(scope, e.Index)
			if err != nil {
				return Void, err
			}
			if t != Float {
				return Void, fmt.Errorf("%w: load index is %s", ErrType, t)
			}
		}
		return Float, nil
	case Lane:
		if c.fn != nil {
			return Void, fmt.Errorf("%w: lane read inside function", ErrInvalid)
		}
		return Float, nil
	case Binary:
		l, err := c.expr(scope, e.L)
		if err != nil {
			return Void, err
		}
		r, err := c.expr(scope, e.R)
		if err != nil {
			return Void, err
		}
		t, err := binaryType(e.Op, l, r)
		if err != nil {
			return Void, err
		}
		if t != e.T {
			return Void, fmt.Errorf("%w: %s recorded as %s", ErrType, e.Op, e.T)
		}
		return t, nil
	case Unary:
		t, err := c.expr(scope, e.X)
		if err != nil {
			return Void, err
		}
		if (e.Op == OpNeg && !t.IsNumeric()) || (e.Op == OpNot && t != Bool) {
			return Void, fmt.Errorf("%w: %s%s", ErrType, e.Op, t)
		}
		return t, nil
	case Call:
		types := make([]Type, len(e.Args))
		for i, a := range e.Args {
			t, err := c.expr(scope, a)
			if err != nil {
				return Void, err
			}
			types[i] = t
		}
		if bi, ok := builtins[e.Name]; ok {
			t, err := bi.result(types)
			if err != nil {
				return Void, fmt.Errorf("%s: %w", e.Name, err)
			}
			return t, nil
		}
		f, ok := c.funcs[e.Name]
		if !ok {
			return Void, fmt.Errorf("%w: call to undeclared function %q", ErrInvalid, e.Name)
		}
		if len(types) != len(f.Params) {
			return Void, fmt.Errorf("%w: %s arity", ErrType, f.Name)
		}
		for i, p := range f.Params {
			if types[i] != p.T {
				return Void, fmt.Errorf("%w: %s arg %d", ErrType, f.Name, i)
			}
		}
		return f.Result, nil
	case Swizzle:
		t, err := c.expr(scope, e.X)
		if err != nil {
			return Void, err
		}
		if err := checkSwizzle(t, e.Sel); err != nil {
			return Void, err
		}
		return VecOf(len(e.Sel)), nil
	case Construct:
		for _, a := range e.Args {
			if _, err := c.expr(scope, a); err != nil {
				return Void, err
			}
		}
		if err := checkConstruct(e.T, e.Args); err != nil {
			return Void, err
		}
		return e.T, nil
	case Select:
		ct, err := c.expr(scope, e.Cond)
		if err != nil {
			return Void, err
		}
		a, err := c.expr(scope, e.Then)
		if err != nil {
			return Void, err
		}
		b, err := c.expr(scope, e.Else)
		if err != nil {
			return Void, err
		}
		if ct != Bool || a != b {
			return Void, fmt.Errorf("%w: select(%s, %s, %s)", ErrType, ct, a, b)
		}
		return a, nil
	case nil:
		return Void, fmt.Errorf("%w: nil expression", ErrInvalid)
	}
	return Void, fmt.Errorf("%w: unknown expression %T", ErrInvalid, e)
}
