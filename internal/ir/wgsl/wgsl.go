// Package wgsl lowers IR kernels to WGSL compute shaders.
//
// The emitted shader binds a uniform Params block at binding 0, the packed
// scene data as a read-only f32 storage array at binding 1 and the per-lane
// output records as a read-write f32 storage array at binding 2. The entry
// point is "main" with an 8x8 workgroup.
package wgsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/sdfscene/internal/ir"
)

// WorkgroupSize is the edge length of the square workgroup used by main.
const WorkgroupSize = 8

// EntryPoint is the compute entry point name.
const EntryPoint = "main"

const header = `struct Params {
    width: u32,
    height: u32,
    stride: u32,
    pad: u32,
}

@group(0) @binding(0) var<uniform> sdf_params: Params;
@group(0) @binding(1) var<storage, read> sdf_data: array<f32>;
@group(0) @binding(2) var<storage, read_write> sdf_out: array<f32>;
`

// Lower checks k and returns the complete WGSL source.
func Lower(k *ir.Kernel) (string, error) {
	if err := ir.Check(k); err != nil {
		return "", err
	}
	w := &writer{}
	w.sb.WriteString("// kernel: ")
	w.sb.WriteString(k.Name)
	w.sb.WriteString("\n\n")
	w.sb.WriteString(header)
	w.sb.WriteString(prelude)

	for _, f := range k.Funcs {
		w.fn(f)
	}

	w.sb.WriteString("\n@compute @workgroup_size(8, 8, 1)\n")
	w.sb.WriteString("fn main(@builtin(global_invocation_id) gid: vec3<u32>) {\n")
	w.sb.WriteString("    if (gid.x >= sdf_params.width || gid.y >= sdf_params.height) {\n        return;\n    }\n")
	w.sb.WriteString("    let lane = gid.y * sdf_params.width + gid.x;\n")
	w.sb.WriteString("    let gx = f32(gid.x);\n")
	w.sb.WriteString("    let gy = f32(gid.y);\n")
	w.stride = k.Stride
	w.block(k.Body, 1)
	w.sb.WriteString("}\n")
	return w.sb.String(), nil
}

type writer struct {
	sb     strings.Builder
	stride int
	tmp    int
}

func (w *writer) fn(f *ir.Func) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = local(p.Name) + ": " + typeName(p.T)
	}
	fmt.Fprintf(&w.sb, "\nfn %s(%s) -> %s {\n", funcName(f.Name), strings.Join(params, ", "), typeName(f.Result))
	w.block(f.Body, 1)
	w.sb.WriteString("}\n")
}

func (w *writer) indent(depth int) {
	for i := 0; i < depth; i++ {
		w.sb.WriteString("    ")
	}
}

func (w *writer) block(stmts []ir.Stmt, depth int) {
	for _, s := range stmts {
		w.stmt(s, depth)
	}
}

func (w *writer) stmt(s ir.Stmt, depth int) {
	switch s := s.(type) {
	case ir.Decl:
		w.indent(depth)
		fmt.Fprintf(&w.sb, "var %s: %s = %s;\n", local(s.Name), typeName(s.T), expr(s.Init))
	case ir.Assign:
		w.indent(depth)
		fmt.Fprintf(&w.sb, "%s = %s;\n", local(s.Name), expr(s.Value))
	case ir.If:
		w.indent(depth)
		fmt.Fprintf(&w.sb, "if (%s) {\n", expr(s.Cond))
		w.block(s.Then, depth+1)
		if len(s.Else) > 0 {
			w.indent(depth)
			w.sb.WriteString("} else {\n")
			w.block(s.Else, depth+1)
		}
		w.indent(depth)
		w.sb.WriteString("}\n")
	case ir.Store:
		t := s.Value.Type()
		if t == ir.Float {
			w.indent(depth)
			fmt.Fprintf(&w.sb, "sdf_out[%s] = %s;\n", w.slot(s.Slot), expr(s.Value))
			return
		}
		name := "sdf_tmp" + strconv.Itoa(w.tmp)
		w.tmp++
		w.indent(depth)
		fmt.Fprintf(&w.sb, "let %s = %s;\n", name, expr(s.Value))
		for i := 0; i < t.Width(); i++ {
			w.indent(depth)
			fmt.Fprintf(&w.sb, "sdf_out[%s] = %s.%c;\n", w.slot(s.Slot+i), name, "xyzw"[i])
		}
	case ir.Return:
		w.indent(depth)
		fmt.Fprintf(&w.sb, "return %s;\n", expr(s.Value))
	}
}

func (w *writer) slot(i int) string {
	return fmt.Sprintf("lane * %du + %du", w.stride, i)
}

func expr(e ir.Expr) string {
	switch e := e.(type) {
	case ir.Const:
		return Float(e.Value)
	case ir.Var:
		return local(e.Name)
	case ir.Load:
		if e.Index == nil {
			return "sdf_data[" + strconv.Itoa(e.Offset) + "u]"
		}
		return "sdf_data[" + strconv.Itoa(e.Offset) + "u + u32(" + expr(e.Index) + ")]"
	case ir.Lane:
		switch e.Axis {
		case ir.LaneX:
			return "gx"
		case ir.LaneY:
			return "gy"
		}
		return "f32(lane)"
	case ir.Binary:
		return "(" + expr(e.L) + " " + e.Op.String() + " " + expr(e.R) + ")"
	case ir.Unary:
		return "(" + e.Op.String() + expr(e.X) + ")"
	case ir.Call:
		return call(e)
	case ir.Swizzle:
		sel := make([]byte, len(e.Sel))
		for i := 0; i < len(e.Sel); i++ {
			sel[i] = "xyzw"[ir.SwizzleIndex(e.Sel[i])]
		}
		return "(" + expr(e.X) + ")." + string(sel)
	case ir.Construct:
		return typeName(e.T) + "(" + exprs(e.Args) + ")"
	case ir.Select:
		return "select(" + expr(e.Else) + ", " + expr(e.Then) + ", " + expr(e.Cond) + ")"
	}
	panic(fmt.Sprintf("wgsl: unexpected expression %T", e))
}

func exprs(args []ir.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = expr(a)
	}
	return strings.Join(parts, ", ")
}

// native builtins map onto WGSL functions of the same meaning.
var native = map[string]string{
	"abs": "abs", "sqrt": "sqrt", "sin": "sin", "cos": "cos", "floor": "floor",
	"fract": "fract", "sign": "sign", "normalize": "normalize", "length": "length",
	"dot": "dot", "atan2": "atan2", "min": "min", "max": "max", "pow": "pow",
	"clamp": "clamp", "mix": "mix", "step": "step", "smoothstep": "smoothstep",
}

// splatArgs lists the argument positions WGSL wants as vectors when the
// result is a vector but the IR passed a Float.
var splatArgs = map[string][]int{
	"min": {1}, "max": {1}, "pow": {1}, "clamp": {1, 2},
	"step": {0}, "smoothstep": {0, 1},
}

func call(c ir.Call) string {
	name, ok := native[c.Name]
	if !ok {
		if ir.IsBuiltin(c.Name) {
			name = "sdf_" + c.Name
		} else {
			name = funcName(c.Name)
		}
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = expr(a)
		if c.T.IsVector() && a.Type() == ir.Float {
			for _, p := range splatArgs[c.Name] {
				if p == i {
					args[i] = typeName(c.T) + "(" + args[i] + ")"
				}
			}
		}
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

func local(name string) string    { return "v_" + name }
func funcName(name string) string { return "u_" + name }

func typeName(t ir.Type) string {
	switch t {
	case ir.Float:
		return "f32"
	case ir.Vec2:
		return "vec2<f32>"
	case ir.Vec3:
		return "vec3<f32>"
	case ir.Vec4:
		return "vec4<f32>"
	case ir.Bool:
		return "bool"
	}
	panic(fmt.Sprintf("wgsl: no type for %s", t))
}

// Float formats v as a WGSL f32 literal. Negative values are parenthesized.
func Float(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}
