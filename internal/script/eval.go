package script

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bingosuite/rdb/internal/engine"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// evaluator compiles CEL expressions once and evaluates them against
// variable maps. Expressions are parsed but not type checked: variables are
// resolved dynamically at evaluation time.
type evaluator struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

func newEvaluator() (*evaluator, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}
	return &evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (ev *evaluator) check(expr string) error {
	_, iss := ev.env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return iss.Err()
	}
	return nil
}

func (ev *evaluator) program(expr string) (cel.Program, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if prg, ok := ev.programs[expr]; ok {
		return prg, nil
	}
	ast, iss := ev.env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := ev.env.Program(ast)
	if err != nil {
		return nil, err
	}
	ev.programs[expr] = prg
	return prg, nil
}

// eval evaluates expr with vars in scope. Unknown names fail with
// engine.ErrUndefined.
func (ev *evaluator) eval(expr string, vars map[string]any) (any, error) {
	prg, err := ev.program(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		if strings.Contains(err.Error(), "no such attribute") {
			return nil, fmt.Errorf("%w: %v", engine.ErrUndefined, err)
		}
		return nil, err
	}
	return native(out)
}

// native converts a CEL value to the runtime's value set: int64, float64,
// string, bool, []any, map[string]any and nil.
func native(v ref.Val) (any, error) {
	switch v := v.(type) {
	case types.Null:
		return nil, nil
	case types.Bool:
		return bool(v), nil
	case types.Int:
		return int64(v), nil
	case types.Uint:
		return int64(v), nil
	case types.Double:
		return float64(v), nil
	case types.String:
		return string(v), nil
	case types.Bytes:
		return string(v), nil
	case traits.Mapper:
		out := make(map[string]any)
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			k, err := native(key)
			if err != nil {
				return nil, err
			}
			item, err := native(v.Get(key))
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = item
		}
		return out, nil
	case traits.Lister:
		n, ok := v.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("list of unknown size")
		}
		out := make([]any, 0, int(n))
		for i := types.Int(0); i < n; i++ {
			item, err := native(v.Get(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	default:
		if types.IsError(v) {
			return nil, fmt.Errorf("%v", v)
		}
		return v.Value(), nil
	}
}

// truthy is the condition rule for if and while.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// text is how print shows a value: strings verbatim, the rest as displayed
// by the debugger.
func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return engine.Render(v)
}
