package ir

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

// ErrTemplate is returned for distance or material templates that do not
// parse, reference unknown placeholders or functions, or fail to type check.
var ErrTemplate = errors.New("ir: invalid template")

// Binder resolves a placeholder name (without the surrounding double
// underscores) to an expression.
type Binder func(name string) (Expr, bool)

// ParseTemplate parses a template expression such as
//
//	sdBox(__uv__, float2(__width__, __height__))
//
// Placeholders are identifiers of the form __name__ and are resolved through
// bind. Constructors float, float2..float4 and vec2..vec4 and every builtin are
// available, as is the constant PI.
func ParseTemplate(src string, bind Binder) (Expr, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTemplate, src, err)
	}
	p := templateParser{bind: bind}
	e, err := p.expr(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTemplate, src, err)
	}
	return e, nil
}

// Placeholders lists the distinct placeholder names referenced by src, in
// order of first appearance.
func Placeholders(src string) []string {
	var names []string
	seen := map[string]bool{}
	rest := src
	for {
		i := strings.Index(rest, "__")
		if i < 0 {
			return names
		}
		rest = rest[i+2:]
		j := strings.Index(rest, "__")
		if j < 0 {
			return names
		}
		name := rest[:j]
		rest = rest[j+2:]
		if name == "" || strings.ContainsAny(name, " ()+-*/,.") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
}

type templateParser struct {
	bind Binder
}

func (p templateParser) expr(n ast.Expr) (Expr, error) {
	switch n := n.(type) {
	case *ast.ParenExpr:
		return p.expr(n.X)
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", n.Value)
		}
		v, err := strconv.ParseFloat(n.Value, 32)
		if err != nil {
			return nil, err
		}
		return F(float32(v)), nil
	case *ast.Ident:
		return p.ident(n.Name)
	case *ast.UnaryExpr:
		x, err := p.expr(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			if !x.Type().IsNumeric() {
				return nil, fmt.Errorf("cannot negate %s", x.Type())
			}
			return Unary{Op: OpNeg, X: x}, nil
		case token.ADD:
			return x, nil
		case token.NOT:
			if x.Type() != Bool {
				return nil, fmt.Errorf("cannot negate %s", x.Type())
			}
			return Unary{Op: OpNot, X: x}, nil
		}
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		return p.binary(n)
	case *ast.CallExpr:
		return p.call(n)
	case *ast.SelectorExpr:
		x, err := p.expr(n.X)
		if err != nil {
			return nil, err
		}
		if err := checkSwizzle(x.Type(), n.Sel.Name); err != nil {
			return nil, err
		}
		return Swizzle{X: x, Sel: n.Sel.Name}, nil
	}
	return nil, fmt.Errorf("unsupported syntax %T", n)
}

func (p templateParser) ident(name string) (Expr, error) {
	if len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		inner := name[2 : len(name)-2]
		if p.bind != nil {
			if e, ok := p.bind(inner); ok {
				return e, nil
			}
		}
		return nil, fmt.Errorf("unknown placeholder %s", name)
	}
	if name == "PI" {
		return F(math.Pi), nil
	}
	return nil, fmt.Errorf("unknown identifier %s", name)
}

var binaryOps = map[token.Token]Op{
	token.ADD: OpAdd, token.SUB: OpSub, token.MUL: OpMul, token.QUO: OpDiv,
	token.LSS: OpLt, token.LEQ: OpLe, token.GTR: OpGt, token.GEQ: OpGe,
	token.EQL: OpEq, token.NEQ: OpNe, token.LAND: OpAnd, token.LOR: OpOr,
}

func (p templateParser) binary(n *ast.BinaryExpr) (Expr, error) {
	op, ok := binaryOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
	l, err := p.expr(n.X)
	if err != nil {
		return nil, err
	}
	r, err := p.expr(n.Y)
	if err != nil {
		return nil, err
	}
	t, err := binaryType(op, l.Type(), r.Type())
	if err != nil {
		return nil, err
	}
	return Binary{Op: op, L: l, R: r, T: t}, nil
}

var constructors = map[string]Type{
	"float": Float, "float2": Vec2, "float3": Vec3, "float4": Vec4,
	"vec2": Vec2, "vec3": Vec3, "vec4": Vec4,
}

func (p templateParser) call(n *ast.CallExpr) (Expr, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported call target %T", n.Fun)
	}
	args := make([]Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := p.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	if t, ok := constructors[fn.Name]; ok {
		if t == Float {
			if len(args) != 1 || args[0].Type() != Float {
				return nil, fmt.Errorf("float() takes one float")
			}
			return args[0], nil
		}
		if err := checkConstruct(t, args); err != nil {
			return nil, err
		}
		return Construct{T: t, Args: args}, nil
	}
	return NewCall(fn.Name, args...)
}
