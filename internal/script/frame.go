package script

import (
	"fmt"
	"strings"

	"github.com/bingosuite/rdb/internal/engine"
)

const moduleFunction = "<module>"

// frame is one activation: the module top level or a function call.
type frame struct {
	file     string
	function string
	args     []string
	depth    int
	parent   *frame
	eval     *evaluator

	locals  map[string]any
	globals map[string]any

	line int
	// block and pc locate the statement about to run so SetLine can move
	// within the block.
	block []*stmt
	pc    int
	jump  int
}

var _ engine.Frame = (*frame)(nil)

func newFrame(parent *frame, file, function string, ev *evaluator, globals map[string]any) *frame {
	f := &frame{
		file:     file,
		function: function,
		parent:   parent,
		eval:     ev,
		globals:  globals,
		jump:     -1,
	}
	if parent != nil {
		f.depth = parent.depth + 1
		f.locals = make(map[string]any)
	} else {
		f.locals = globals
	}
	return f
}

func (f *frame) File() string     { return f.file }
func (f *frame) Line() int        { return f.line }
func (f *frame) Function() string { return f.function }
func (f *frame) Depth() int       { return f.depth }

func (f *frame) Arguments() string {
	parts := make([]string, 0, len(f.args))
	for _, name := range f.args {
		parts = append(parts, name+"="+engine.Render(f.locals[name]))
	}
	return strings.Join(parts, ", ")
}

func (f *frame) Parent() engine.Frame {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *frame) Locals() map[string]any {
	return f.locals
}

func (f *frame) Globals() map[string]any {
	return f.globals
}

// scope merges globals and locals, locals winning.
func (f *frame) scope() map[string]any {
	if f.parent == nil {
		return f.globals
	}
	vars := make(map[string]any, len(f.globals)+len(f.locals))
	for k, v := range f.globals {
		vars[k] = v
	}
	for k, v := range f.locals {
		vars[k] = v
	}
	return vars
}

func (f *frame) Eval(expr string) (any, error) {
	return f.eval.eval(expr, f.scope())
}

func (f *frame) set(name string, v any) {
	f.locals[name] = v
}

func (f *frame) SetLine(line int) error {
	for i, s := range f.block {
		if s.line == line {
			f.jump = i
			f.line = line
			return nil
		}
	}
	return fmt.Errorf("line %d is not a statement in the current block", line)
}
