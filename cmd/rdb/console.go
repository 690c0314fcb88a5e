package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/internal/session"
	"github.com/peterh/liner"
)

const consoleHelp = `Commands:
  c [!]                continue (! ignores breakpoints)
  s | n | o            step, step over, step out
  u <line>             continue until line
  j <line>             jump to line
  b <file>:<line> [if <cond>]
  cl <file>:<line>     clear breakpoint
  w <expr>             watch expression
  bt                   stack
  v [globals]          variables of the current frame
  q                    stop the program and quit
Anything else runs as a statement in the current frame.`

// debugSession is the part of session.Manager the console drives.
type debugSession interface {
	Continue(id string, special bool) error
	Step(id string) error
	StepOver(id string) error
	StepOut(id string) error
	StepQuit(id string) error
	ContinueUntil(id string, line int) error
	MoveIP(id string, line int) error
	SetBreakpoint(id, file string, line int, set bool, condition string, temporary bool) error
	SetWatch(id, condition string, set, temporary bool) error
	ExecuteStatement(id, statement string) error
	Stack(id string) error
	Variables(id string, frame, scope int, filters []string, maxSize int) error
	RawInput(id, input string) error
}

var _ debugSession = (*session.Manager)(nil)

// rawRequest is an input request from one backend. The answer goes back to
// that backend, which is not always the master.
type rawRequest struct {
	id string
	protocol.RawRequestParams
}

// console is a line-oriented terminal UI over a session. It listens to the
// session for output and stops and drives the master backend.
type console struct {
	session.NopListener

	mgr   debugSession
	line  *liner.State
	out   io.Writer
	mu    sync.Mutex
	id    string
	where string
	more  bool

	raw  chan rawRequest
	exit chan protocol.ExitParams
}

func newConsole(mgr debugSession) *console {
	c := &console{
		mgr:  mgr,
		line: liner.NewLiner(),
		out:  os.Stdout,
		raw:  make(chan rawRequest, 1),
		exit: make(chan protocol.ExitParams, 1),
	}
	c.line.SetCtrlCAborts(true)
	return c
}

func (c *console) Close() {
	_ = c.line.Close()
}

// Run reads commands until the program exits or the user quits.
func (c *console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, `Type "help" for commands.`)
	for {
		select {
		case p := <-c.exit:
			fmt.Fprintf(c.out, "%s exited with status %d %s\n", p.Program, p.Status, p.Message)
			return nil
		case <-ctx.Done():
			return nil
		case req := <-c.raw:
			if err := c.rawInput(req); err != nil {
				return err
			}
			continue
		default:
		}

		input, err := c.line.Prompt(c.prompt())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return c.mgr.StepQuit(c.master())
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" && len(c.raw) == 0 {
			continue
		}
		c.line.AppendHistory(input)

		// The program asked for input while the prompt was up.
		select {
		case req := <-c.raw:
			if err := c.answer(req, input); err != nil {
				return err
			}
			continue
		default:
		}
		if quit, err := c.handle(strings.TrimSpace(input)); quit || err != nil {
			return err
		}
	}
}

func (c *console) prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.more {
		return "... "
	}
	if c.where == "" {
		return "(rdb) "
	}
	return fmt.Sprintf("(rdb %s) ", c.where)
}

func (c *console) master() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *console) rawInput(req rawRequest) error {
	var input string
	var err error
	if req.Echo {
		input, err = c.line.Prompt(req.Prompt)
	} else {
		input, err = c.line.PasswordPrompt(req.Prompt)
	}
	if err != nil {
		return err
	}
	return c.answer(req, input)
}

func (c *console) answer(req rawRequest, input string) error {
	return c.mgr.RawInput(req.id, input)
}

// handle runs one console command. It reports true when the console should
// stop.
func (c *console) handle(input string) (bool, error) {
	id := c.master()
	c.mu.Lock()
	more := c.more
	c.mu.Unlock()
	if more {
		if err := c.mgr.ExecuteStatement(id, input); err != nil {
			fmt.Fprintln(c.out, err)
		}
		return false, nil
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "c", "continue":
		err = c.mgr.Continue(id, arg == "!")
	case "s", "step":
		err = c.mgr.Step(id)
	case "n", "next":
		err = c.mgr.StepOver(id)
	case "o", "out":
		err = c.mgr.StepOut(id)
	case "u", "until":
		err = c.withLine(arg, func(line int) error { return c.mgr.ContinueUntil(id, line) })
	case "j", "jump":
		err = c.withLine(arg, func(line int) error { return c.mgr.MoveIP(id, line) })
	case "b", "break":
		location, condition, _ := strings.Cut(arg, " if ")
		err = c.withLocation(location, func(file string, line int) error {
			return c.mgr.SetBreakpoint("", file, line, true, strings.TrimSpace(condition), false)
		})
	case "cl", "clear":
		err = c.withLocation(arg, func(file string, line int) error {
			return c.mgr.SetBreakpoint("", file, line, false, "", false)
		})
	case "w", "watch":
		err = c.mgr.SetWatch("", arg, true, false)
	case "bt", "where":
		err = c.mgr.Stack(id)
	case "v", "vars":
		scope := 0
		if arg == "globals" {
			scope = 1
		}
		err = c.mgr.Variables(id, 0, scope, nil, 0)
	case "q", "quit":
		return true, c.mgr.StepQuit(id)
	default:
		err = c.mgr.ExecuteStatement(id, input)
	}
	if err != nil {
		fmt.Fprintln(c.out, err)
	}
	return false, nil
}

func (c *console) withLine(arg string, fn func(int) error) error {
	line, err := strconv.Atoi(arg)
	if err != nil || line <= 0 {
		return fmt.Errorf("invalid line number %q", arg)
	}
	return fn(line)
}

func (c *console) withLocation(arg string, fn func(string, int) error) error {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 {
		return fmt.Errorf("usage: <file>:<line>")
	}
	file, err := filepath.Abs(arg[:i])
	if err != nil {
		return err
	}
	return c.withLine(arg[i+1:], func(line int) error { return fn(file, line) })
}

// Session events

func (c *console) OnConnected(id string, master bool) {
	if !master {
		fmt.Fprintf(c.out, "\n[%s connected]\n", id)
		return
	}
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *console) OnMasterLost(id string) {
	fmt.Fprintf(c.out, "\n[lost connection to %s]\n", id)
	select {
	case c.exit <- protocol.ExitParams{Program: id, Status: -1, Message: "(connection lost)"}:
	default:
	}
}

func (c *console) OnLine(id string, p protocol.StackParams) {
	if len(p.Stack) == 0 {
		return
	}
	top := p.Stack[0]
	c.mu.Lock()
	c.where = fmt.Sprintf("%s:%d", top.Filename, top.Line)
	c.mu.Unlock()
	fmt.Fprintf(c.out, "> %s:%d in %s(%s)\n", top.Filename, top.Line, top.Function, top.Arguments)
}

func (c *console) OnStack(id string, p protocol.StackParams) {
	for i, e := range p.Stack {
		fmt.Fprintf(c.out, "#%d %s(%s) at %s:%d\n", i, e.Function, e.Arguments, e.Filename, e.Line)
	}
}

func (c *console) OnException(id string, p protocol.ExceptionParams) {
	fmt.Fprintf(c.out, "Unhandled %s: %s\n", p.Type, p.Message)
	c.OnStack(id, protocol.StackParams{Stack: p.Stack})
}

func (c *console) OnSyntaxError(id string, p protocol.SyntaxParams) {
	fmt.Fprintf(c.out, "%s:%d: %s\n", p.Filename, p.LineNumber, p.Message)
}

func (c *console) OnSignal(id string, p protocol.SignalParams) {
	fmt.Fprintf(c.out, "%s at %s:%d in %s\n", p.Message, p.Filename, p.LineNumber, p.Function)
}

func (c *console) OnExit(id string, p protocol.ExitParams) {
	if id != c.master() {
		fmt.Fprintf(c.out, "\n[%s exited with status %d]\n", id, p.Status)
		return
	}
	select {
	case c.exit <- p:
	default:
	}
}

func (c *console) OnStatement(id string, more bool) {
	c.mu.Lock()
	c.more = more
	c.mu.Unlock()
}

func (c *console) OnRawInput(id string, p protocol.RawRequestParams) {
	select {
	case c.raw <- rawRequest{id: id, RawRequestParams: p}:
	default:
	}
}

func (c *console) OnOutput(id string, text string) {
	fmt.Fprint(c.out, text)
}

func (c *console) OnClearBreakpoint(id string, p protocol.LocationParams) {
	fmt.Fprintf(c.out, "[breakpoint %s:%d cleared]\n", p.Filename, p.Line)
}

func (c *console) OnBreakpointConditionError(id string, p protocol.LocationParams) {
	fmt.Fprintf(c.out, "[condition of breakpoint %s:%d is invalid]\n", p.Filename, p.Line)
}

func (c *console) OnWatchConditionError(id string, condition string) {
	fmt.Fprintf(c.out, "[watch %q is invalid]\n", condition)
}

func (c *console) OnVariables(id string, p protocol.VariablesResponse) {
	for _, v := range p.Variables {
		fmt.Fprintf(c.out, "%s (%s) = %s\n", v.Name, v.Type, v.Value)
	}
}
