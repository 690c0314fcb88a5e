package engine

import (
	"fmt"

	"github.com/bingosuite/rdb/internal/protocol"
)

// Frame is one activation record of the debuggee, as exposed by a Runtime.
type Frame interface {
	File() string
	Line() int
	Function() string
	// Arguments renders the call arguments, e.g. "a=1, b=2".
	Arguments() string
	// Depth is 0 for the outermost frame.
	Depth() int
	// Parent returns the calling frame, or nil for the outermost one.
	Parent() Frame
	// Eval evaluates an expression in the frame's scope. References to
	// undefined names fail with ErrUndefined.
	Eval(expr string) (any, error)
	Locals() map[string]any
	Globals() map[string]any
	// SetLine moves the next line to execute within the current block.
	SetLine(line int) error
}

// Program is compiled debuggee code.
type Program interface {
	Filename() string
	Functions() []Function
}

type Function struct {
	Name string
	Line int
	// Doc is the comment block directly above the definition.
	Doc string
}

// Hooks are called by the runtime while a program executes.
type Hooks interface {
	// Line is called before each traced line. A non-nil error aborts the
	// program; the runtime returns it from Run unchanged.
	Line(f Frame) error
	Call(f Frame)
	Return(f Frame)
	// Exception is called once for an exception nothing handled, before
	// the runtime returns it.
	Exception(f Frame, exc *Exception) error
}

// Console carries program input and output for one debug session.
type Console interface {
	Output(text string)
	Input(prompt string, echo bool) (string, error)
}

// Env is what a running program sees of the debugger.
type Env struct {
	Hooks   Hooks
	Console Console
	Argv    []string
	// Spawn starts file as a separate program. It may be nil.
	Spawn func(file string) error
}

// Runtime compiles and executes debuggee programs.
type Runtime interface {
	Compile(filename string, src []byte) (Program, error)
	Run(prog Program, env *Env) error
	// Call runs the program's top level, then calls function.
	Call(prog Program, function string, env *Env) error
	// Exec executes source in scope, or in a persistent shell scope when
	// scope is nil.
	Exec(scope Frame, source string, env *Env) StatementResult
	// CheckExpression reports whether expr compiles, without evaluating it.
	CheckExpression(expr string) error
}

// Exception is an error raised by the debuggee.
type Exception struct {
	Kind    string
	Message string
	// Frame is where the exception was raised.
	Frame Frame
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// SyntaxError reports code that does not compile.
type SyntaxError struct {
	Message string
	File    string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

type StatementKind int

const (
	StatementComplete StatementKind = iota
	StatementNeedsMoreInput
	StatementSyntaxError
)

// StatementResult is the outcome of executing one interactive statement.
type StatementResult struct {
	Kind StatementKind
	// Syntax is set for StatementSyntaxError.
	Syntax *SyntaxError
	// Err is a runtime failure of a complete statement.
	Err error
}

func Complete(err error) StatementResult {
	return StatementResult{Kind: StatementComplete, Err: err}
}

func NeedsMoreInput() StatementResult {
	return StatementResult{Kind: StatementNeedsMoreInput}
}

func Invalid(syntax *SyntaxError) StatementResult {
	return StatementResult{Kind: StatementSyntaxError, Syntax: syntax}
}

// Stack renders the frame chain innermost first.
func Stack(f Frame) []protocol.StackEntry {
	var stack []protocol.StackEntry
	for ; f != nil; f = f.Parent() {
		stack = append(stack, protocol.StackEntry{
			Filename:  f.File(),
			Line:      f.Line(),
			Function:  f.Function(),
			Arguments: f.Arguments(),
		})
	}
	return stack
}

// Traceback renders the frame chain outermost first, one line per frame.
func Traceback(f Frame, exc *Exception) []string {
	stack := Stack(f)
	lines := make([]string, 0, len(stack)+1)
	for i := len(stack) - 1; i >= 0; i-- {
		e := stack[i]
		lines = append(lines, fmt.Sprintf("File %q, line %d, in %s", e.Filename, e.Line, e.Function))
	}
	if exc != nil {
		lines = append(lines, exc.Error())
	}
	return lines
}
