package ir

import "fmt"

type builtin struct {
	result func(args []Type) (Type, error)
}

// builtins is the function library every backend implements.
var builtins = map[string]builtin{
	"abs":   {sameUnary(Float, Vec2, Vec3, Vec4)},
	"sqrt":  {sameUnary(Float, Vec2, Vec3, Vec4)},
	"sin":   {sameUnary(Float, Vec2, Vec3, Vec4)},
	"cos":   {sameUnary(Float, Vec2, Vec3, Vec4)},
	"floor": {sameUnary(Float, Vec2, Vec3, Vec4)},
	"fract": {sameUnary(Float, Vec2, Vec3, Vec4)},
	"sign":  {sameUnary(Float, Vec2, Vec3, Vec4)},

	"normalize": {sameUnary(Vec2, Vec3, Vec4)},
	"length":    {fixed(Float, anyNumeric)},
	"dot":       {dotResult},
	"atan2":     {fixed(Float, Float, Float)},

	"min":        {splatResult(2, 1)},
	"max":        {splatResult(2, 1)},
	"pow":        {splatResult(2, 1)},
	"clamp":      {splatResult(3, 1, 2)},
	"mix":        {splatResult(3, 2)},
	"step":       {stepResult},
	"smoothstep": {smoothstepResult},

	"merge":           {fixed(Float, Float, Float)},
	"subtract":        {fixed(Float, Float, Float)},
	"intersect":       {fixed(Float, Float, Float)},
	"mergeSmooth":     {fixed(Float, Float, Float, Float)},
	"subtractSmooth":  {fixed(Float, Float, Float, Float)},
	"intersectSmooth": {fixed(Float, Float, Float, Float)},
	"fillMask":        {fixed(Float, Float)},
	"borderMask":      {fixed(Float, Float, Float)},

	"translate": {fixed(Vec2, Vec2, Vec2)},
	"rotateCW":  {fixed(Vec2, Vec2, Float)},
	"rotateCCW": {fixed(Vec2, Vec2, Float)},

	"sdBox":      {fixed(Float, Vec2, Vec2)},
	"sdSegment":  {fixed(Float, Vec2, Vec2, Vec2)},
	"sdTriangle": {fixed(Float, Vec2, Vec2, Vec2, Vec2)},

	"gradientLinear": {fixed(Vec4, Vec2, Vec2, Vec2, Vec4, Vec4)},
	"profileSegment": {fixed(Float, Float, Vec4, Vec4, Vec4)},
}

// IsBuiltin reports whether name is part of the builtin library.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// anyNumeric is a placeholder parameter type accepted by fixed.
const anyNumeric Type = 0xff

func fixed(result Type, params ...Type) func([]Type) (Type, error) {
	return func(args []Type) (Type, error) {
		if len(args) != len(params) {
			return Void, fmt.Errorf("%w: want %d args, got %d", ErrType, len(params), len(args))
		}
		for i, p := range params {
			if p == anyNumeric {
				if !args[i].IsNumeric() {
					return Void, fmt.Errorf("%w: arg %d is %s", ErrType, i, args[i])
				}
				continue
			}
			if args[i] != p {
				return Void, fmt.Errorf("%w: arg %d is %s, want %s", ErrType, i, args[i], p)
			}
		}
		return result, nil
	}
}

func sameUnary(allowed ...Type) func([]Type) (Type, error) {
	return func(args []Type) (Type, error) {
		if len(args) != 1 {
			return Void, fmt.Errorf("%w: want 1 arg, got %d", ErrType, len(args))
		}
		for _, t := range allowed {
			if args[0] == t {
				return t, nil
			}
		}
		return Void, fmt.Errorf("%w: arg is %s", ErrType, args[0])
	}
}

// splatResult types functions whose first argument fixes the result type and
// whose remaining arguments either match it or are Float (splattable at the
// positions listed in splat).
func splatResult(n int, splat ...int) func([]Type) (Type, error) {
	return func(args []Type) (Type, error) {
		if len(args) != n {
			return Void, fmt.Errorf("%w: want %d args, got %d", ErrType, n, len(args))
		}
		t := args[0]
		if !t.IsNumeric() {
			return Void, fmt.Errorf("%w: arg 0 is %s", ErrType, t)
		}
		for i := 1; i < n; i++ {
			if args[i] == t {
				continue
			}
			if args[i] == Float && contains(splat, i) {
				continue
			}
			return Void, fmt.Errorf("%w: arg %d is %s, want %s", ErrType, i, args[i], t)
		}
		return t, nil
	}
}

func dotResult(args []Type) (Type, error) {
	if len(args) != 2 || !args[0].IsVector() || args[0] != args[1] {
		return Void, fmt.Errorf("%w: dot(%v)", ErrType, args)
	}
	return Float, nil
}

func stepResult(args []Type) (Type, error) {
	if len(args) != 2 || !args[1].IsNumeric() || (args[0] != Float && args[0] != args[1]) {
		return Void, fmt.Errorf("%w: step(%v)", ErrType, args)
	}
	return args[1], nil
}

func smoothstepResult(args []Type) (Type, error) {
	if len(args) != 3 || !args[2].IsNumeric() {
		return Void, fmt.Errorf("%w: smoothstep(%v)", ErrType, args)
	}
	for _, e := range args[:2] {
		if e != Float && e != args[2] {
			return Void, fmt.Errorf("%w: smoothstep(%v)", ErrType, args)
		}
	}
	return args[2], nil
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
