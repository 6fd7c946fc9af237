package ir

import "fmt"

// Stmt is an IR statement.
type Stmt interface{ stmt() }

// Decl declares and initializes a local variable.
type Decl struct {
	Name string
	T    Type
	Init Expr
}

// Assign overwrites a declared variable.
type Assign struct {
	Name  string
	Value Expr
}

// If executes Then when Cond holds, Else otherwise.
type If struct {
	Cond       Expr
	Then, Else []Stmt
}

// Store writes Value to the lane's output record starting at Slot.
// Vector values occupy consecutive slots. Only valid in kernel bodies.
type Store struct {
	Slot  int
	Value Expr
}

// Return ends a user function with a value.
type Return struct{ Value Expr }

func (Decl) stmt()   {}
func (Assign) stmt() {}
func (If) stmt()     {}
func (Store) stmt()  {}
func (Return) stmt() {}

// Param is a user function parameter.
type Param struct {
	Name string
	T    Type
}

// Func is a user function callable from kernels and other functions
// declared before it.
type Func struct {
	Name   string
	Params []Param
	Result Type
	Body   []Stmt
}

// Arg returns a reference to parameter i.
func (f *Func) Arg(i int) Var { return V(f.Params[i].Name, f.Params[i].T) }

// Kernel is a complete dispatchable program. Each lane runs Body and writes
// Stride floats to the output buffer.
type Kernel struct {
	Name   string
	Funcs  []*Func
	Body   []Stmt
	Stride int
}

// Func looks up a user function by name.
func (k *Kernel) Func(name string) *Func {
	for _, f := range k.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Block accumulates statements.
//
//	var b ir.Block
//	d := b.Decl("d", ir.F(1))
//	b.If(ir.Lt(d, ir.F(0)), func(t *ir.Block) { t.Assign(d, ir.F(0)) })
type Block struct {
	stmts []Stmt
}

// Decl declares name initialized with init and returns a reference to it.
func (b *Block) Decl(name string, init Expr) Var {
	b.stmts = append(b.stmts, Decl{Name: name, T: init.Type(), Init: init})
	return V(name, init.Type())
}

// Assign appends v = e.
func (b *Block) Assign(v Var, e Expr) {
	if v.T != e.Type() {
		panic(fmt.Errorf("%w: assign %s to %s %s", ErrType, e.Type(), v.T, v.Name))
	}
	b.stmts = append(b.stmts, Assign{Name: v.Name, Value: e})
}

// If appends a conditional with only a then branch.
func (b *Block) If(cond Expr, then func(*Block)) {
	b.IfElse(cond, then, nil)
}

// IfElse appends a conditional with both branches. A nil else is omitted.
func (b *Block) IfElse(cond Expr, then, els func(*Block)) {
	if cond.Type() != Bool {
		panic(fmt.Errorf("%w: condition is %s", ErrType, cond.Type()))
	}
	var t, e Block
	then(&t)
	if els != nil {
		els(&e)
	}
	b.stmts = append(b.stmts, If{Cond: cond, Then: t.stmts, Else: e.stmts})
}

// Store appends an output store.
func (b *Block) Store(slot int, v Expr) {
	b.stmts = append(b.stmts, Store{Slot: slot, Value: v})
}

// Return appends a return statement.
func (b *Block) Return(v Expr) {
	b.stmts = append(b.stmts, Return{Value: v})
}

// Append adds already built statements.
func (b *Block) Append(s ...Stmt) { b.stmts = append(b.stmts, s...) }

// Stmts returns the accumulated statements.
func (b *Block) Stmts() []Stmt { return b.stmts }

// Len returns the number of top level statements.
func (b *Block) Len() int { return len(b.stmts) }
