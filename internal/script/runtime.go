// Package script is the runtime the debugger traces: a small line-oriented
// language whose expressions are CEL.
//
//	# comment
//	name = <expr>
//	name = call f(args)
//	call f(args)
//	print <expr>
//	if <expr> / else / end
//	while <expr> / end
//	func f(a, b) / end
//	return [<expr>]
//	raise <expr>
//	assert <expr>
//	input name [<prompt>]
//	getpass name [<prompt>]
//	spawn <file>
//	pass
package script

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bingosuite/rdb/internal/engine"
)

// Exception kinds raised by the runtime itself.
const (
	KindException = "Exception"
	KindAssertion = "AssertionError"
	KindName      = "NameError"
	KindType      = "TypeError"
	KindRuntime   = "RuntimeError"
)

// Runtime implements engine.Runtime.
type Runtime struct {
	eval *evaluator

	mu    sync.Mutex
	shell *frame
}

var _ engine.Runtime = (*Runtime)(nil)

func New() (*Runtime, error) {
	ev, err := newEvaluator()
	if err != nil {
		return nil, err
	}
	return &Runtime{eval: ev}, nil
}

// Program is a compiled script.
type Program struct {
	filename string
	body     []*stmt
	funcs    []*function
}

var _ engine.Program = (*Program)(nil)

func (p *Program) Filename() string { return p.filename }

// Functions lists the program's functions in definition order.
func (p *Program) Functions() []engine.Function {
	out := make([]engine.Function, 0, len(p.funcs))
	for _, fn := range p.funcs {
		out = append(out, engine.Function{Name: fn.name, Line: fn.line, Doc: fn.doc})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func (r *Runtime) Compile(filename string, src []byte) (engine.Program, error) {
	body, funcs, perr := parse(filename, string(src), r.eval.check)
	if perr != nil {
		return nil, perr.syntax
	}
	return &Program{filename: filename, body: body, funcs: funcs}, nil
}

func (r *Runtime) CheckExpression(expr string) error {
	return r.eval.check(expr)
}

func (r *Runtime) program(prog engine.Program) (*Program, error) {
	p, ok := prog.(*Program)
	if !ok {
		return nil, fmt.Errorf("program %s was not compiled by this runtime", prog.Filename())
	}
	return p, nil
}

func (r *Runtime) Run(prog engine.Program, env *engine.Env) error {
	p, err := r.program(prog)
	if err != nil {
		return err
	}
	in := r.interpreter(p, env)
	return in.finish(in.module())
}

func (r *Runtime) Call(prog engine.Program, function string, env *engine.Env) error {
	p, err := r.program(prog)
	if err != nil {
		return err
	}
	in := r.interpreter(p, env)
	if err := in.module(); err != nil {
		return in.finish(err)
	}
	_, err = in.call(in.top, function, nil)
	return in.finish(err)
}

// Exec runs interactive source in scope. A nil scope uses a shell frame
// that persists across calls.
func (r *Runtime) Exec(scope engine.Frame, source string, env *engine.Env) engine.StatementResult {
	body, funcs, perr := parse("<stdin>", source, r.eval.check)
	if perr != nil {
		if perr.incomplete {
			return engine.NeedsMoreInput()
		}
		return engine.Invalid(perr.syntax)
	}

	f, ok := scope.(*frame)
	if !ok || f == nil {
		f = r.shellFrame()
	}
	in := &interpreter{eval: r.eval, env: env, globals: f.globals, funcs: make(map[string]*function), top: f, echo: true}
	for name, v := range f.globals {
		if fn, ok := v.(*function); ok {
			in.funcs[name] = fn
		}
	}
	in.define(funcs)

	line, block, pc := f.line, f.block, f.pc
	defer func() { f.line, f.block, f.pc = line, block, pc }()
	err := in.exec(f, body)
	var ret *returnValue
	if errors.As(err, &ret) {
		err = nil
	}
	return engine.Complete(err)
}

func (r *Runtime) shellFrame() *frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shell == nil {
		r.shell = newFrame(nil, "<stdin>", moduleFunction, r.eval, make(map[string]any))
	}
	return r.shell
}

func (r *Runtime) interpreter(p *Program, env *engine.Env) *interpreter {
	globals := map[string]any{"argv": argv(env.Argv)}
	in := &interpreter{
		eval:    r.eval,
		env:     env,
		file:    p.filename,
		body:    p.body,
		globals: globals,
		funcs:   make(map[string]*function),
	}
	in.define(p.funcs)
	in.top = newFrame(nil, p.filename, moduleFunction, r.eval, globals)
	return in
}

func argv(args []string) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		out = append(out, a)
	}
	return out
}
