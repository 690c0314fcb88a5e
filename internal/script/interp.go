package script

import (
	"errors"
	"fmt"

	"github.com/bingosuite/rdb/internal/engine"
)

const maxDepth = 1000

type interpreter struct {
	eval    *evaluator
	env     *engine.Env
	file    string
	body    []*stmt
	globals map[string]any
	funcs   map[string]*function
	top     *frame
	// echo prints the value of bare expressions.
	echo bool
}

// returnValue unwinds a function body.
type returnValue struct {
	value any
}

func (*returnValue) Error() string {
	return "return outside of a function"
}

func (in *interpreter) define(funcs []*function) {
	for _, fn := range funcs {
		in.funcs[fn.name] = fn
		in.globals[fn.name] = fn
	}
}

func (in *interpreter) module() error {
	f := in.top
	in.env.Hooks.Call(f)
	defer in.env.Hooks.Return(f)

	err := in.exec(f, in.body)
	var ret *returnValue
	if errors.As(err, &ret) {
		return nil
	}
	return err
}

// finish hands an unhandled exception to the hooks once.
func (in *interpreter) finish(err error) error {
	var exc *engine.Exception
	if !errors.As(err, &exc) {
		return err
	}
	if herr := in.env.Hooks.Exception(exc.Frame, exc); herr != nil {
		return herr
	}
	return exc
}

func (in *interpreter) exec(f *frame, body []*stmt) error {
	for i := 0; i < len(body); i++ {
		s := body[i]
		f.block, f.pc, f.line = body, i, s.line
		if err := in.env.Hooks.Line(f); err != nil {
			return err
		}
		if f.jump >= 0 {
			i, f.jump = f.jump, -1
			s = body[i]
			f.pc, f.line = i, s.line
		}
		if err := in.run(f, s); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) run(f *frame, s *stmt) error {
	switch s.kind {
	case stmtPass:
		return nil

	case stmtAssign:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		f.set(s.name, v)

	case stmtCallAssign:
		v, err := in.call(f, s.callee, s.args)
		if err != nil {
			return err
		}
		f.set(s.name, v)

	case stmtCall:
		_, err := in.call(f, s.callee, s.args)
		return err

	case stmtPrint:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		in.env.Console.Output(text(v) + "\n")

	case stmtIf:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		if truthy(v) {
			return in.exec(f, s.body)
		}
		return in.exec(f, s.orelse)

	case stmtWhile:
		for {
			f.line = s.line
			v, err := in.value(f, s.expr)
			if err != nil {
				return err
			}
			if !truthy(v) {
				return nil
			}
			if err := in.exec(f, s.body); err != nil {
				return err
			}
		}

	case stmtReturn:
		var v any
		if s.expr != "" {
			var err error
			if v, err = in.value(f, s.expr); err != nil {
				return err
			}
		}
		return &returnValue{value: v}

	case stmtRaise:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		return raise(f, KindException, text(v))

	case stmtAssert:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		if !truthy(v) {
			return raise(f, KindAssertion, "assertion failed: "+s.expr)
		}

	case stmtInput, stmtGetpass:
		prompt := ""
		if s.expr != "" {
			v, err := in.value(f, s.expr)
			if err != nil {
				return err
			}
			prompt = text(v)
		}
		line, err := in.env.Console.Input(prompt, s.kind == stmtInput)
		if err != nil {
			return err
		}
		f.set(s.name, line)

	case stmtSpawn:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		if in.env.Spawn == nil {
			return raise(f, KindRuntime, "spawning programs is not supported")
		}
		if err := in.env.Spawn(text(v)); err != nil {
			return raise(f, KindRuntime, err.Error())
		}

	case stmtExpr:
		v, err := in.value(f, s.expr)
		if err != nil {
			return err
		}
		if in.echo && v != nil {
			in.env.Console.Output(engine.Render(v) + "\n")
		}
	}
	return nil
}

func (in *interpreter) value(f *frame, expr string) (any, error) {
	v, err := f.Eval(expr)
	switch {
	case err == nil:
		return v, nil
	case engine.IsUndefined(err):
		return nil, raise(f, KindName, err.Error())
	default:
		return nil, raise(f, KindRuntime, err.Error())
	}
}

func (in *interpreter) call(caller *frame, name string, argExprs []string) (any, error) {
	fn, ok := in.funcs[name]
	if !ok {
		return nil, raise(caller, KindName, fmt.Sprintf("function %q is not defined", name))
	}
	if len(argExprs) != len(fn.params) {
		return nil, raise(caller, KindType, fmt.Sprintf("%s() takes %d arguments but %d were given", name, len(fn.params), len(argExprs)))
	}
	if caller.depth+1 >= maxDepth {
		return nil, raise(caller, KindRuntime, "maximum recursion depth exceeded")
	}

	args := make([]any, len(argExprs))
	for i, expr := range argExprs {
		v, err := in.value(caller, expr)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	file := in.file
	if file == "" {
		file = caller.file
	}
	callee := newFrame(caller, file, fn.name, in.eval, in.globals)
	callee.args, callee.line = fn.params, fn.line
	for i, param := range fn.params {
		callee.set(param, args[i])
	}

	in.env.Hooks.Call(callee)
	defer in.env.Hooks.Return(callee)

	err := in.exec(callee, fn.body)
	var ret *returnValue
	if errors.As(err, &ret) {
		return ret.value, nil
	}
	return nil, err
}

func raise(f *frame, kind, message string) *engine.Exception {
	return &engine.Exception{Kind: kind, Message: message, Frame: f}
}
