// Package engine is the backend side of the debugger. It executes a program
// through a Runtime, decides where execution stops and answers the IDE's
// commands while the program is suspended.
//
// An Engine is driven by a single goroutine: the one calling Serve. The
// program runs on that goroutine too, and a suspended program is simply a
// hook call blocked on the command channel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bingosuite/rdb/internal/breakpoint"
	"github.com/bingosuite/rdb/internal/fatal"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
)

const (
	mainThreadID   = 1
	mainThreadName = "MainThread"
	clientType     = "Script"
)

// FrameWriter sends frames to the IDE. *protocol.Writer implements it.
type FrameWriter interface {
	WriteFrame(f protocol.Frame) error
}

// Spawner starts file as a child program. debug reports whether the child
// should connect back to the IDE.
type Spawner func(file string, debug bool) error

type Options struct {
	// ID is the debugger id stamped on every outgoing frame.
	ID      string
	Runtime Runtime
	Out     FrameWriter
	Spawner Spawner
	// ExitOnFinish makes Serve return once a program has run to completion.
	ExitOnFinish bool
	Version      string

	Logger *zap.SugaredLogger
	Scope  tally.Scope
}

type mode int

const (
	// modeContinue stops at breakpoints and watches only.
	modeContinue mode = iota
	modeStep
	modeStepOver
	modeStepOut
	modeUntil
	// modeFree never stops.
	modeFree
)

type Engine struct {
	opts   Options
	rt     Runtime
	out    FrameWriter
	logger *zap.SugaredLogger
	stats  tally.Scope

	bps     *breakpoint.Table
	watches *breakpoint.WatchTable
	noDebug map[string]struct{}

	handlers map[string]handler

	ctx      context.Context
	commands <-chan protocol.Frame
	signals  chan fatal.Report

	// Execution state.
	running   bool
	finished  bool
	mode      mode
	stepDepth int
	untilLine int
	current   Frame
	selected  int
	last      Frame
	resume    bool
	requested bool
	aborting  bool
	// signaled stops the running program at its next traced line.
	signaled  bool
	shutdown  bool
	terminal  error

	multiprocess bool
	callTrace    bool
	coverage     *coverage
	profile      *profiler
	console      *console
	statement    string
	suite        *suite
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Scope == nil {
		opts.Scope = tally.NoopScope
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	e := &Engine{
		opts:    opts,
		rt:      opts.Runtime,
		out:     opts.Out,
		logger:  opts.Logger.Named("engine"),
		stats:   opts.Scope.SubScope("engine"),
		bps:     breakpoint.NewTable(),
		watches: breakpoint.NewWatchTable(),
		noDebug: make(map[string]struct{}),
		signals: make(chan fatal.Report, 1),
	}
	e.handlers = e.commandTable()
	return e
}

// Breakpoints exposes the engine's table of record.
func (e *Engine) Breakpoints() *breakpoint.Table {
	return e.bps
}

func (e *Engine) Watches() *breakpoint.WatchTable {
	return e.watches
}

// Signal reports a fatal condition. It is safe to call from any goroutine.
func (e *Engine) Signal(r fatal.Report) {
	select {
	case e.signals <- r:
	default:
	}
}

// Serve processes commands until shutdown, until the command channel is
// closed or, with ExitOnFinish, until a program completes.
func (e *Engine) Serve(ctx context.Context, commands <-chan protocol.Frame) error {
	e.ctx, e.commands = ctx, commands
	return e.loop()
}

// ServePassive announces a passive startup, debugs filename from its first
// line and then keeps serving commands.
func (e *Engine) ServePassive(ctx context.Context, commands <-chan protocol.Frame, filename string, argv []string) error {
	e.ctx, e.commands = ctx, commands
	e.emit(protocol.PassiveStartup, protocol.PassiveStartupParams{Filename: filename, Exceptions: true})
	e.debug(filename, argv)
	if e.terminal != nil {
		return e.terminal
	}
	if e.shutdown || e.opts.ExitOnFinish {
		return nil
	}
	return e.loop()
}

func (e *Engine) loop() error {
	for !e.shutdown {
		f, err := e.next()
		if err != nil {
			return err
		}
		e.dispatch(f)
		if e.terminal != nil {
			return e.terminal
		}
		if e.finished && e.opts.ExitOnFinish {
			return nil
		}
	}
	e.logger.Infow("Shutdown requested")
	return nil
}

// next blocks for the next command.
func (e *Engine) next() (protocol.Frame, error) {
	for {
		select {
		case <-e.ctx.Done():
			return protocol.Frame{}, e.ctx.Err()
		case r := <-e.signals:
			e.reportFatal(r)
		case f, ok := <-e.commands:
			if !ok {
				return protocol.Frame{}, ErrDisconnected
			}
			return f, nil
		}
	}
}

// drain handles every command already waiting, without blocking.
func (e *Engine) drain() {
	for e.terminal == nil {
		select {
		case r := <-e.signals:
			e.reportFatal(r)
		case f, ok := <-e.commands:
			if !ok {
				e.terminal = ErrDisconnected
				return
			}
			e.dispatch(f)
		default:
			return
		}
	}
}

func (e *Engine) dispatch(f protocol.Frame) {
	e.stats.Counter("commands").Inc(1)
	h, ok := e.handlers[f.Method]
	if !ok {
		e.logger.Debugw("Ignoring unknown command", "method", f.Method)
		return
	}
	if err := h(f); err != nil {
		e.logger.Warnw("Command failed", "method", f.Method, "error", err)
	}
}

func (e *Engine) emit(method string, params any) {
	f, err := protocol.NewFrame(method, params)
	if err == nil {
		f, err = f.WithDebuggerID(e.opts.ID)
	}
	if err != nil {
		e.logger.Errorw("Failed to build frame", "method", method, "error", err)
		return
	}
	if err := e.out.WriteFrame(f); err != nil {
		e.logger.Warnw("Failed to send frame", "method", method, "error", err)
		return
	}
	e.stats.Counter("frames_sent").Inc(1)
}

func (e *Engine) output(text string) {
	e.emit(protocol.ClientOutput, protocol.OutputParams{Text: text})
}

// suspend stops the program at f until a resume command arrives.
func (e *Engine) suspend(f Frame, reason string) error {
	e.current, e.selected, e.resume = f, 0, false
	defer func() { e.current = nil }()

	e.logger.Debugw("Stopped", "reason", reason, "file", f.File(), "line", f.Line())
	if reason != reasonException {
		e.emit(protocol.ResponseLine, protocol.StackParams{Stack: Stack(f), ThreadName: mainThreadName})
	}

	for !e.resume && !e.aborting {
		cmd, err := e.next()
		if err != nil {
			e.terminal = err
			return ErrAbort
		}
		e.dispatch(cmd)
	}
	if e.aborting || e.terminal != nil {
		return ErrAbort
	}
	return nil
}

// setMode arms a stepping mode relative to the frame execution is in.
func (e *Engine) setMode(m mode) {
	e.mode = m
	if f := e.frame(); f != nil {
		e.stepDepth = f.Depth()
	}
	e.requested = e.current == nil && e.running
	e.resume = true
}

// frame is the frame execution is stopped in or last passed through.
func (e *Engine) frame() Frame {
	if e.current != nil {
		return e.current
	}
	return e.last
}

// selectedFrame is the frame introspection commands address.
func (e *Engine) selectedFrame(n int) Frame {
	f := e.current
	for ; f != nil && n > 0; n-- {
		f = f.Parent()
	}
	return f
}

func (e *Engine) resolve(workdir, filename string) string {
	if workdir != "" && !filepath.IsAbs(filename) {
		filename = filepath.Join(workdir, filename)
	}
	if abs, err := filepath.Abs(filename); err == nil {
		filename = abs
	}
	return filepath.Clean(filename)
}

func (e *Engine) compile(filename string) (Program, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return e.rt.Compile(filename, src)
}

func (e *Engine) env(argv []string) *Env {
	if e.console == nil {
		e.console = &console{e: e}
	}
	return &Env{Hooks: e, Console: e.console, Argv: argv, Spawn: e.spawn}
}

func (e *Engine) spawn(file string) error {
	if e.opts.Spawner == nil {
		return fmt.Errorf("spawning programs is not supported")
	}
	return e.opts.Spawner(file, e.multiprocess)
}

// debug runs filename stopping at its first line.
func (e *Engine) debug(filename string, argv []string) {
	e.execute(filename, argv, modeStep)
}

// execute compiles and runs a program to completion and reports its exit.
func (e *Engine) execute(filename string, argv []string, m mode) {
	if e.running {
		e.output("a program is already running\n")
		return
	}
	prog, err := e.compile(filename)
	if err != nil {
		e.reportCompileError(filename, err)
		return
	}

	e.running, e.finished, e.aborting, e.signaled = true, false, false, false
	e.mode, e.last, e.statement = m, nil, ""
	e.console = &console{e: e}
	e.logger.Infow("Running program", "file", filename, "argv", argv)

	err = e.rt.Run(prog, e.env(argv))

	e.running, e.finished, e.last = false, true, nil
	e.exit(filename, err)
}

func (e *Engine) exit(filename string, err error) {
	params := protocol.ExitParams{Program: filename}
	var exc *Exception
	switch {
	case err == nil:
	case errors.Is(err, ErrAbort):
		params.Status = 1
		params.Message = "program terminated by request"
	case errors.As(err, &exc):
		params.Status = 1
		params.Message = exc.Error()
	default:
		params.Status = 1
		params.Message = err.Error()
	}
	if errors.Is(e.terminal, ErrDisconnected) {
		return
	}
	e.logger.Infow("Program exited", "file", filename, "status", params.Status, "message", params.Message)
	e.emit(protocol.ResponseExit, params)
}

func (e *Engine) reportCompileError(filename string, err error) {
	var syn *SyntaxError
	if errors.As(err, &syn) {
		e.emit(protocol.ResponseSyntax, protocol.SyntaxParams{
			Message:         syn.Message,
			Filename:        syn.File,
			LineNumber:      syn.Line,
			CharacterNumber: syn.Column,
			ThreadName:      mainThreadName,
		})
		return
	}
	e.emit(protocol.ResponseExit, protocol.ExitParams{Program: filename, Status: 1, Message: err.Error()})
}

func (e *Engine) reportFatal(r fatal.Report) {
	if r.Location.File == "" {
		if f := e.frame(); f != nil {
			r.Location = fatal.Location{File: f.File(), Line: f.Line(), Function: f.Function()}
		}
	}
	var args string
	if f := e.frame(); f != nil {
		args = f.Arguments()
	}
	e.logger.Errorw("Fatal signal", "kind", r.Kind, "message", r.Message, "file", r.Location.File, "line", r.Location.Line)
	e.emit(protocol.ResponseSignal, protocol.SignalParams{
		Message:    strings.TrimSpace(r.Kind + ": " + r.Message),
		Filename:   r.Location.File,
		LineNumber: r.Location.Line,
		Function:   r.Location.Function,
		Arguments:  args,
	})
	e.signaled = e.running && e.current == nil
}
