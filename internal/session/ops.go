package session

import (
	"github.com/bingosuite/rdb/internal/protocol"
)

// Typed commands. An empty id broadcasts. Filenames are IDE-local and are
// translated before they reach the wire.

func (m *Manager) remote(path string) string {
	return m.tr.ToRemote(path)
}

func (m *Manager) remember(script string) {
	m.post(func() { m.session.Script = script })
}

func (m *Manager) Load(id, workdir, filename string, argv []string, traceInterpreter, multiprocess bool) error {
	m.remember(filename)
	return m.SendTo(id, protocol.RequestLoad, protocol.LoadParams{
		Workdir:          m.remote(workdir),
		Filename:         m.remote(filename),
		Argv:             argv,
		TraceInterpreter: traceInterpreter,
		Multiprocess:     multiprocess,
	})
}

func (m *Manager) RunScript(id, workdir, filename string, argv []string) error {
	m.remember(filename)
	return m.SendTo(id, protocol.RequestRun, protocol.RunParams{
		Workdir:  m.remote(workdir),
		Filename: m.remote(filename),
		Argv:     argv,
	})
}

func (m *Manager) Coverage(id, workdir, filename string, argv []string, erase bool) error {
	m.remember(filename)
	return m.SendTo(id, protocol.RequestCoverage, m.coverageParams(workdir, filename, argv, erase))
}

func (m *Manager) Profile(id, workdir, filename string, argv []string, erase bool) error {
	m.remember(filename)
	return m.SendTo(id, protocol.RequestProfile, m.coverageParams(workdir, filename, argv, erase))
}

func (m *Manager) coverageParams(workdir, filename string, argv []string, erase bool) protocol.CoverageParams {
	return protocol.CoverageParams{
		Workdir:  m.remote(workdir),
		Filename: m.remote(filename),
		Argv:     argv,
		Erase:    erase,
	}
}

func (m *Manager) ExecuteStatement(id, statement string) error {
	return m.SendTo(id, protocol.ExecuteStatement, protocol.StatementParams{Statement: statement})
}

func (m *Manager) Step(id string) error     { return m.SendTo(id, protocol.RequestStep, nil) }
func (m *Manager) StepOver(id string) error { return m.SendTo(id, protocol.RequestStepOver, nil) }
func (m *Manager) StepOut(id string) error  { return m.SendTo(id, protocol.RequestStepOut, nil) }
func (m *Manager) StepQuit(id string) error { return m.SendTo(id, protocol.RequestStepQuit, nil) }

func (m *Manager) Continue(id string, special bool) error {
	return m.SendTo(id, protocol.RequestContinue, protocol.ContinueParams{Special: special})
}

func (m *Manager) ContinueUntil(id string, line int) error {
	return m.SendTo(id, protocol.RequestContinueUntil, protocol.LineParams{NewLine: line})
}

func (m *Manager) MoveIP(id string, line int) error {
	return m.SendTo(id, protocol.RequestMoveIP, protocol.LineParams{NewLine: line})
}

// SetBreakpoint sets (set=true) or clears a breakpoint. Nothing is recorded
// locally; the backend owns the table.
func (m *Manager) SetBreakpoint(id, file string, line int, set bool, condition string, temporary bool) error {
	return m.SendTo(id, protocol.RequestBreakpoint, protocol.BreakpointParams{
		Filename:      m.remote(file),
		Line:          line,
		Temporary:     temporary,
		SetBreakpoint: set,
		Condition:     protocol.Condition(condition),
	})
}

func (m *Manager) EnableBreakpoint(id, file string, line int, enable bool) error {
	return m.SendTo(id, protocol.RequestBreakpointEnable, protocol.BreakpointEnableParams{
		Filename: m.remote(file),
		Line:     line,
		Enable:   enable,
	})
}

func (m *Manager) IgnoreBreakpoint(id, file string, line, count int) error {
	return m.SendTo(id, protocol.RequestBreakpointIgnore, protocol.BreakpointIgnoreParams{
		Filename: m.remote(file),
		Line:     line,
		Count:    count,
	})
}

func (m *Manager) SetWatch(id, condition string, set, temporary bool) error {
	return m.SendTo(id, protocol.RequestWatch, protocol.WatchParams{
		Temporary: temporary,
		SetWatch:  set,
		Condition: condition,
	})
}

func (m *Manager) EnableWatch(id, condition string, enable bool) error {
	return m.SendTo(id, protocol.RequestWatchEnable, protocol.WatchEnableParams{Condition: condition, Enable: enable})
}

func (m *Manager) IgnoreWatch(id, condition string, count int) error {
	return m.SendTo(id, protocol.RequestWatchIgnore, protocol.WatchIgnoreParams{Condition: condition, Count: count})
}

func (m *Manager) ThreadList(id string) error { return m.SendTo(id, protocol.RequestThreadList, nil) }

func (m *Manager) SetThread(id string, threadID int) error {
	return m.SendTo(id, protocol.RequestThreadSet, protocol.ThreadSetParams{ThreadID: threadID})
}

func (m *Manager) Stack(id string) error { return m.SendTo(id, protocol.RequestStack, nil) }

func (m *Manager) Variables(id string, frame, scope int, filters []string, maxSize int) error {
	return m.SendTo(id, protocol.RequestVariables, protocol.VariablesParams{
		FrameNumber: frame,
		Scope:       scope,
		Filters:     filters,
		MaxSize:     maxSize,
	})
}

func (m *Manager) Variable(id string, path []string, frame, scope int, filters []string, maxSize int) error {
	return m.SendTo(id, protocol.RequestVariable, protocol.VariableParams{
		Variable:    path,
		FrameNumber: frame,
		Scope:       scope,
		Filters:     filters,
		MaxSize:     maxSize,
	})
}

func (m *Manager) Completion(id, text string) error {
	return m.SendTo(id, protocol.RequestCompletion, protocol.CompletionParams{Text: text})
}

func (m *Manager) Capabilities(id string) error { return m.SendTo(id, protocol.RequestCapabilities, nil) }
func (m *Manager) Banner(id string) error       { return m.SendTo(id, protocol.RequestBanner, nil) }

func (m *Manager) SetEnvironment(id string, env map[string]string) error {
	return m.SendTo(id, protocol.RequestEnvironment, protocol.EnvironmentParams{Environment: env})
}

func (m *Manager) SetNoDebugList(id string, files []string) error {
	remote := make([]string, len(files))
	for i, f := range files {
		remote[i] = m.remote(f)
	}
	return m.SendTo(id, protocol.RequestSetNoDebugList, protocol.NoDebugParams{NoDebug: remote})
}

func (m *Manager) RawInput(id, input string) error {
	return m.SendTo(id, protocol.RawInput, protocol.RawInputParams{Input: input})
}

func (m *Manager) CallTrace(id string, enable bool) error {
	return m.SendTo(id, protocol.RequestCallTrace, protocol.CallTraceRequestParams{Enable: enable})
}

func (m *Manager) UTDiscover(id, workdir, filename string) error {
	return m.SendTo(id, protocol.RequestUTDiscover, protocol.UTDiscoverParams{
		Workdir:  m.remote(workdir),
		Filename: m.remote(filename),
	})
}

func (m *Manager) UTPrepare(id, workdir, filename string, testCases, failed []string) error {
	m.remember(filename)
	return m.SendTo(id, protocol.RequestUTPrepare, protocol.UTPrepareParams{
		Workdir:   m.remote(workdir),
		Filename:  m.remote(filename),
		TestCases: testCases,
		Failed:    failed,
	})
}

func (m *Manager) UTRun(id string, debug, failFast bool) error {
	return m.SendTo(id, protocol.RequestUTRun, protocol.UTRunParams{Debug: debug, FailFast: failFast})
}

func (m *Manager) UTStop(id string) error { return m.SendTo(id, protocol.RequestUTStop, nil) }
