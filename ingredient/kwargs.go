package ingredient

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/ZhaoFuheng/blendsql/grammar"
)

// EvalKwargs turns the grammar package's parsed Value arguments into Arg
// values, evaluating any argument whose text looks like an expression
// (arithmetic, comparison, or boolean composition over the caller's
// variables, such as `k=2*3` or `threshold=avg_score > 0.5`) through CEL
// rather than passing the raw text straight through. Literals and
// identifiers naming one of vars are passed through without invoking CEL
// at all; any other identifier goes through CEL, which falls back to the
// raw text when it cannot compile or evaluate it.
func EvalKwargs(vars map[string]any, args []grammar.Value, kwargs map[string]grammar.Value) ([]Arg, map[string]Arg, error) {
	outArgs := make([]Arg, 0, len(args))

	for _, v := range args {
		a, err := evalValue(vars, v)
		if err != nil {
			return nil, nil, err
		}

		outArgs = append(outArgs, a)
	}

	outKwargs := make(map[string]Arg, len(kwargs))

	for k, v := range kwargs {
		a, err := evalValue(vars, v)
		if err != nil {
			return nil, nil, err
		}

		outKwargs[k] = a
	}

	return outArgs, outKwargs, nil
}

func evalValue(vars map[string]any, v grammar.Value) (Arg, error) {
	switch v.Kind {
	case grammar.StringValue:
		return Arg{Raw: v.Raw, Value: v.Raw}, nil
	case grammar.NumberValue:
		return Arg{Raw: v.Raw, Value: v.Raw}, nil
	case grammar.BoolValue:
		return Arg{Raw: v.Raw, Value: v.Raw == "true"}, nil
	case grammar.NullValue:
		return Arg{Raw: v.Raw, Value: nil}, nil
	case grammar.IdentValue:
		if val, ok := vars[v.Raw]; ok {
			return Arg{Raw: v.Raw, Value: val}, nil
		}

		// Not a bare variable reference — it may still be an expression
		// over the caller's variables (`threshold=avg_score > 0.5`,
		// `k=2*3`); evalExpr falls back to raw passthrough itself if CEL
		// can't make sense of it.
		return evalExpr(vars, v.Raw)
	case grammar.RawSQLValue:
		return Arg{Raw: v.Raw}, nil
	default:
		return evalExpr(vars, v.Raw)
	}
}

// evalExpr compiles and runs raw as a CEL expression against vars, used
// for kwarg values that reference caller variables in an arithmetic or
// boolean expression rather than naming one outright.
func evalExpr(vars map[string]any, raw string) (Arg, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for name := range vars {
		opts = append(opts, cel.Variable(name, cel.AnyType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return Arg{}, fmt.Errorf("building CEL environment: %w", err)
	}

	ast, issues := env.Compile(raw)
	if issues != nil && issues.Err() != nil {
		// Not a CEL expression (e.g. a bare table/column name or SQL
		// fragment) — pass it through verbatim rather than failing the
		// whole ingredient call.
		return Arg{Raw: raw, Value: raw}, nil
	}

	prg, err := env.Program(ast)
	if err != nil {
		return Arg{}, fmt.Errorf("building CEL program for %q: %w", raw, err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return Arg{Raw: raw, Value: raw}, nil
	}

	return Arg{Raw: raw, Value: out.Value()}, nil
}
