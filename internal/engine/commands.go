package engine

import (
	"errors"
	"fmt"
	"os"
	goruntime "runtime"
	"sort"
	"strings"

	"github.com/bingosuite/rdb/internal/protocol"
	"go.uber.org/multierr"
)

var (
	errNotRunning = errors.New("no program is running")
	errNotStopped = errors.New("program is not stopped")
)

type handler func(f protocol.Frame) error

func bind[P any](fn func(p P) error) handler {
	return func(f protocol.Frame) error {
		var p P
		if err := f.Bind(&p); err != nil {
			return err
		}
		return fn(p)
	}
}

func (e *Engine) commandTable() map[string]handler {
	return map[string]handler{
		protocol.RequestLoad:      bind(e.load),
		protocol.RequestRun:       bind(e.run),
		protocol.RequestCoverage:  bind(e.runCoverage),
		protocol.RequestProfile:   bind(e.runProfile),
		protocol.ExecuteStatement: bind(e.executeStatement),

		protocol.RequestStep:          e.step(modeStep),
		protocol.RequestStepOver:      e.step(modeStepOver),
		protocol.RequestStepOut:       e.step(modeStepOut),
		protocol.RequestStepQuit:      e.stepQuit,
		protocol.RequestContinue:      bind(e.cont),
		protocol.RequestContinueUntil: bind(e.continueUntil),
		protocol.RequestMoveIP:        bind(e.moveIP),

		protocol.RequestBreakpoint:       bind(e.setBreakpoint),
		protocol.RequestBreakpointEnable: bind(e.enableBreakpoint),
		protocol.RequestBreakpointIgnore: bind(e.ignoreBreakpoint),
		protocol.RequestWatch:            bind(e.setWatch),
		protocol.RequestWatchEnable:      bind(e.enableWatch),
		protocol.RequestWatchIgnore:      bind(e.ignoreWatch),

		protocol.RequestThreadList:   e.threadList,
		protocol.RequestThreadSet:    bind(e.threadSet),
		protocol.RequestStack:        e.stack,
		protocol.RequestVariables:    bind(e.variables),
		protocol.RequestVariable:     bind(e.variable),
		protocol.RequestCompletion:   bind(e.completion),
		protocol.RequestCapabilities: e.capabilities,
		protocol.RequestBanner:       e.banner,

		protocol.RequestEnvironment:    bind(e.environment),
		protocol.RequestSetNoDebugList: bind(e.setNoDebug),
		protocol.RequestCallTrace:      bind(e.setCallTrace),
		protocol.RawInput:              e.strayInput,
		protocol.RequestShutdown:       e.requestShutdown,

		protocol.RequestUTDiscover: bind(e.utDiscover),
		protocol.RequestUTPrepare:  bind(e.utPrepare),
		protocol.RequestUTRun:      bind(e.utRun),
		protocol.RequestUTStop:     e.utStop,
	}
}

func (e *Engine) load(p protocol.LoadParams) error {
	if p.Workdir != "" {
		if err := os.Chdir(p.Workdir); err != nil {
			e.output(fmt.Sprintf("cannot change to %s: %v\n", p.Workdir, err))
			return fmt.Errorf("failed to change working directory: %w", err)
		}
	}
	e.multiprocess = p.Multiprocess
	e.debug(e.resolve(p.Workdir, p.Filename), p.Argv)
	return nil
}

func (e *Engine) run(p protocol.RunParams) error {
	if p.Workdir != "" {
		if err := os.Chdir(p.Workdir); err != nil {
			return fmt.Errorf("failed to change working directory: %w", err)
		}
	}
	e.execute(e.resolve(p.Workdir, p.Filename), p.Argv, modeFree)
	return nil
}

func (e *Engine) runCoverage(p protocol.CoverageParams) error {
	filename := e.resolve(p.Workdir, p.Filename)
	cov, err := loadCoverage(filename+".coverage.json", p.Erase)
	if err != nil {
		return err
	}
	e.coverage = cov
	defer func() { e.coverage = nil }()

	e.execute(filename, p.Argv, modeFree)
	return cov.save()
}

func (e *Engine) runProfile(p protocol.CoverageParams) error {
	filename := e.resolve(p.Workdir, p.Filename)
	prof, err := loadProfile(filename+".profile.json", p.Erase)
	if err != nil {
		return err
	}
	e.profile = prof
	defer func() { e.profile = nil }()

	e.execute(filename, p.Argv, modeFree)
	return prof.save()
}

func (e *Engine) executeStatement(p protocol.StatementParams) error {
	source := p.Statement
	if e.statement != "" {
		source = e.statement + "\n" + p.Statement
	}

	res := e.rt.Exec(e.selectedFrame(e.selected), source, e.shellEnv())
	switch res.Kind {
	case StatementNeedsMoreInput:
		e.statement = source
		e.emit(protocol.ResponseContinue, nil)
		return nil
	case StatementSyntaxError:
		e.output(res.Syntax.Error() + "\n")
	default:
		if res.Err != nil && !errors.Is(res.Err, ErrAbort) {
			e.output(res.Err.Error() + "\n")
		}
	}
	e.statement = ""
	e.emit(protocol.ResponseOK, nil)
	return nil
}

// shellEnv runs interactive statements without tracing them.
func (e *Engine) shellEnv() *Env {
	env := e.env(nil)
	env.Hooks = nopHooks{}
	return env
}

func (e *Engine) step(m mode) handler {
	return func(protocol.Frame) error {
		if !e.running {
			return errNotRunning
		}
		e.setMode(m)
		return nil
	}
}

func (e *Engine) stepQuit(protocol.Frame) error {
	if !e.running {
		return errNotRunning
	}
	e.aborting, e.resume = true, true
	return nil
}

func (e *Engine) cont(p protocol.ContinueParams) error {
	if !e.running {
		return errNotRunning
	}
	if p.Special {
		e.setMode(modeFree)
		return nil
	}
	e.setMode(modeContinue)
	return nil
}

func (e *Engine) continueUntil(p protocol.LineParams) error {
	if !e.running {
		return errNotRunning
	}
	e.untilLine = p.NewLine
	e.setMode(modeUntil)
	return nil
}

func (e *Engine) moveIP(p protocol.LineParams) error {
	if e.current == nil {
		return errNotStopped
	}
	if err := e.current.SetLine(p.NewLine); err != nil {
		e.output(fmt.Sprintf("cannot jump to line %d: %v\n", p.NewLine, err))
		return err
	}
	return e.stack(protocol.Frame{})
}

func (e *Engine) setBreakpoint(p protocol.BreakpointParams) error {
	filename := e.resolve("", p.Filename)
	if !p.SetBreakpoint {
		e.bps.Remove(filename, p.Line)
		return nil
	}
	bp := e.bps.Set(filename, p.Line, p.Temporary, string(p.Condition))
	if bp.Condition == "" {
		return nil
	}
	if err := e.rt.CheckExpression(bp.Condition); err != nil {
		bp.Inert = true
		e.emit(protocol.ResponseBPConditionError, protocol.LocationParams{Filename: bp.File, Line: bp.Line})
		return fmt.Errorf("invalid breakpoint condition %q: %w", bp.Condition, err)
	}
	return nil
}

func (e *Engine) enableBreakpoint(p protocol.BreakpointEnableParams) error {
	e.bps.Enable(e.resolve("", p.Filename), p.Line, p.Enable)
	return nil
}

func (e *Engine) ignoreBreakpoint(p protocol.BreakpointIgnoreParams) error {
	e.bps.Ignore(e.resolve("", p.Filename), p.Line, p.Count)
	return nil
}

func (e *Engine) setWatch(p protocol.WatchParams) error {
	if !p.SetWatch {
		e.watches.Remove(p.Condition)
		return nil
	}
	w := e.watches.Set(p.Condition, p.Temporary)
	if err := e.rt.CheckExpression(w.Expression); err != nil {
		w.Inert = true
		e.emit(protocol.ResponseWatchConditionError, protocol.WatchConditionParams{Condition: w.Condition})
		return fmt.Errorf("invalid watch expression %q: %w", w.Expression, err)
	}
	return nil
}

func (e *Engine) enableWatch(p protocol.WatchEnableParams) error {
	e.watches.Enable(p.Condition, p.Enable)
	return nil
}

func (e *Engine) ignoreWatch(p protocol.WatchIgnoreParams) error {
	e.watches.Ignore(p.Condition, p.Count)
	return nil
}

func (e *Engine) threadList(protocol.Frame) error {
	e.emit(protocol.ResponseThreadList, protocol.ThreadListParams{
		CurrentID: mainThreadID,
		ThreadList: []protocol.ThreadInfo{
			{ID: mainThreadID, Name: mainThreadName, Broken: e.current != nil},
		},
	})
	return nil
}

func (e *Engine) threadSet(p protocol.ThreadSetParams) error {
	if p.ThreadID != mainThreadID {
		return fmt.Errorf("no thread with id %d", p.ThreadID)
	}
	e.emit(protocol.ResponseThreadSet, protocol.ThreadSetResponse{ThreadID: mainThreadID})
	return e.stack(protocol.Frame{})
}

func (e *Engine) stack(protocol.Frame) error {
	e.emit(protocol.ResponseStack, protocol.StackParams{Stack: Stack(e.frame()), ThreadName: mainThreadName})
	return nil
}

func (e *Engine) variables(p protocol.VariablesParams) error {
	resp := protocol.VariablesResponse{Scope: p.Scope, Variables: []protocol.Variable{}}
	if f := e.selectedFrame(p.FrameNumber); f != nil {
		e.selected = p.FrameNumber
		resp.Variables = dump(entries(scopeOf(f, p.Scope)), p.Filters, p.MaxSize)
	}
	e.emit(protocol.ResponseVariables, resp)
	return nil
}

func (e *Engine) variable(p protocol.VariableParams) error {
	resp := protocol.VariableResponse{Scope: p.Scope, Variable: p.Variable, Variables: []protocol.Variable{}}
	if f := e.selectedFrame(p.FrameNumber); f != nil {
		if v, ok := lookup(scopeOf(f, p.Scope), p.Variable); ok {
			resp.Variables = dump(entries(v), p.Filters, p.MaxSize)
		}
	}
	e.emit(protocol.ResponseVariable, resp)
	return nil
}

func (e *Engine) completion(p protocol.CompletionParams) error {
	seen := make(map[string]struct{})
	if f := e.selectedFrame(e.selected); f != nil {
		for _, scope := range []map[string]any{f.Locals(), f.Globals()} {
			for name := range scope {
				seen[name] = struct{}{}
			}
		}
	}
	completions := []string{}
	for name := range seen {
		if strings.HasPrefix(name, p.Text) {
			completions = append(completions, name)
		}
	}
	sort.Strings(completions)
	e.emit(protocol.ResponseCompletion, protocol.CompletionResponse{Completions: completions, Text: p.Text})
	return nil
}

func (e *Engine) capabilities(protocol.Frame) error {
	e.emit(protocol.ResponseCapabilities, protocol.CapabilitiesParams{
		Capabilities: protocol.HasAll,
		ClientType:   clientType,
	})
	return nil
}

func (e *Engine) banner(protocol.Frame) error {
	e.emit(protocol.ResponseBanner, protocol.BannerParams{
		Version:  e.opts.Version,
		Platform: goruntime.GOOS + "/" + goruntime.GOARCH,
	})
	return nil
}

func (e *Engine) environment(p protocol.EnvironmentParams) error {
	var err error
	for key, value := range p.Environment {
		err = multierr.Append(err, os.Setenv(key, value))
	}
	return err
}

func (e *Engine) setNoDebug(p protocol.NoDebugParams) error {
	e.noDebug = make(map[string]struct{}, len(p.NoDebug))
	for _, file := range p.NoDebug {
		e.noDebug[e.resolve("", file)] = struct{}{}
	}
	return nil
}

func (e *Engine) setCallTrace(p protocol.CallTraceRequestParams) error {
	e.callTrace = p.Enable
	return nil
}

func (e *Engine) strayInput(protocol.Frame) error {
	e.logger.Debugw("Discarding raw input, nothing is reading")
	return nil
}

func (e *Engine) requestShutdown(protocol.Frame) error {
	e.shutdown = true
	if e.running {
		e.aborting, e.resume = true, true
	}
	return nil
}

func scopeOf(f Frame, scope int) map[string]any {
	if scope == 1 {
		return f.Globals()
	}
	return f.Locals()
}

type nopHooks struct{}

func (nopHooks) Line(Frame) error { return nil }
func (nopHooks) Call(Frame) {}
func (nopHooks) Return(Frame) {}
func (nopHooks) Exception(Frame, *Exception) error { return nil }

var _ Hooks = nopHooks{}
