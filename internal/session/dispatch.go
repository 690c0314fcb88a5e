package session

import (
	"github.com/bingosuite/rdb/internal/protocol"
)

type handlerFunc func(id string, f protocol.Frame) error

// bind decodes the frame params into a fresh P and hands them to fn.
func bind[P any](fn func(id string, p P)) handlerFunc {
	return func(id string, f protocol.Frame) error {
		var p P
		if err := f.Bind(&p); err != nil {
			return err
		}
		fn(id, p)
		return nil
	}
}

// dispatchTable maps inbound method names to handlers. Methods missing from
// the table are ignored.
func (m *Manager) dispatchTable() map[string]handlerFunc {
	utTest := func(method string) handlerFunc {
		return bind(func(id string, p protocol.UTTestParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnUTTest(id, method, p) })
		})
	}

	return map[string]handlerFunc{
		protocol.ResponseLine: bind(m.onLine),
		protocol.ResponseStack: bind(func(id string, p protocol.StackParams) {
			m.localStack(p.Stack)
			m.emit(func(l Listener) { l.OnStack(id, p) })
		}),
		protocol.ResponseException: bind(func(id string, p protocol.ExceptionParams) {
			m.localStack(p.Stack)
			m.emit(func(l Listener) { l.OnException(id, p) })
		}),
		protocol.ResponseSyntax: bind(func(id string, p protocol.SyntaxParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnSyntaxError(id, p) })
		}),
		protocol.ResponseSignal: bind(func(id string, p protocol.SignalParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnSignal(id, p) })
		}),
		protocol.ResponseExit: bind(func(id string, p protocol.ExitParams) {
			p.Program = m.tr.ToLocal(p.Program)
			m.emit(func(l Listener) { l.OnExit(id, p) })
		}),
		protocol.ResponseCapabilities: bind(func(id string, p protocol.CapabilitiesParams) {
			if id == m.reg.Master() {
				m.session.Capabilities = p.Capabilities
				m.session.ClientType = p.ClientType
			}
			m.emit(func(l Listener) { l.OnCapabilities(id, p) })
		}),
		protocol.ResponseBanner: bind(func(id string, p protocol.BannerParams) {
			m.emit(func(l Listener) { l.OnBanner(id, p) })
		}),
		protocol.ResponseOK: func(id string, _ protocol.Frame) error {
			m.emit(func(l Listener) { l.OnStatement(id, false) })
			return nil
		},
		protocol.ResponseContinue: func(id string, _ protocol.Frame) error {
			m.emit(func(l Listener) { l.OnStatement(id, true) })
			return nil
		},
		protocol.RequestRaw: bind(func(id string, p protocol.RawRequestParams) {
			m.emit(func(l Listener) { l.OnRawInput(id, p) })
		}),
		protocol.ClientOutput: bind(func(id string, p protocol.OutputParams) {
			m.emit(func(l Listener) { l.OnOutput(id, p.Text) })
		}),
		protocol.ResponseClearBreakpoint: bind(func(id string, p protocol.LocationParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnClearBreakpoint(id, p) })
		}),
		protocol.ResponseClearWatch: bind(func(id string, p protocol.WatchConditionParams) {
			m.emit(func(l Listener) { l.OnClearWatch(id, p.Condition) })
		}),
		protocol.ResponseBPConditionError: bind(func(id string, p protocol.LocationParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnBreakpointConditionError(id, p) })
		}),
		protocol.ResponseWatchConditionError: bind(func(id string, p protocol.WatchConditionParams) {
			m.emit(func(l Listener) { l.OnWatchConditionError(id, p.Condition) })
		}),
		protocol.ResponseVariables: bind(func(id string, p protocol.VariablesResponse) {
			m.emit(func(l Listener) { l.OnVariables(id, p) })
		}),
		protocol.ResponseVariable: bind(func(id string, p protocol.VariableResponse) {
			m.emit(func(l Listener) { l.OnVariable(id, p) })
		}),
		protocol.ResponseThreadList: bind(func(id string, p protocol.ThreadListParams) {
			m.emit(func(l Listener) { l.OnThreadList(id, p) })
		}),
		protocol.ResponseThreadSet: bind(func(id string, p protocol.ThreadSetResponse) {
			m.emit(func(l Listener) { l.OnThreadSet(id, p) })
		}),
		protocol.ResponseCompletion: bind(func(id string, p protocol.CompletionResponse) {
			m.emit(func(l Listener) { l.OnCompletion(id, p) })
		}),
		protocol.CallTrace: bind(func(id string, p protocol.CallTraceParams) {
			p.From.Filename = m.tr.ToLocal(p.From.Filename)
			p.To.Filename = m.tr.ToLocal(p.To.Filename)
			m.emit(func(l Listener) { l.OnCallTrace(id, p) })
		}),
		protocol.PassiveStartup: bind(func(id string, p protocol.PassiveStartupParams) {
			p.Filename = m.tr.ToLocal(p.Filename)
			m.emit(func(l Listener) { l.OnPassiveStartup(id, p) })
		}),

		protocol.ResponseUTDiscover: bind(func(id string, p protocol.UTDiscoverResponse) {
			for i := range p.TestCases {
				p.TestCases[i].Filename = m.tr.ToLocal(p.TestCases[i].Filename)
			}
			m.emit(func(l Listener) { l.OnUTDiscover(id, p) })
		}),
		protocol.ResponseUTPrepared: bind(func(id string, p protocol.UTPreparedResponse) {
			m.emit(func(l Listener) { l.OnUTPrepared(id, p) })
		}),
		protocol.ResponseUTStartTest:     utTest(protocol.ResponseUTStartTest),
		protocol.ResponseUTStopTest:      utTest(protocol.ResponseUTStopTest),
		protocol.ResponseUTTestFailed:    utTest(protocol.ResponseUTTestFailed),
		protocol.ResponseUTTestErrored:   utTest(protocol.ResponseUTTestErrored),
		protocol.ResponseUTTestSucceeded: utTest(protocol.ResponseUTTestSucceeded),
		protocol.ResponseUTFinished: bind(func(id string, p protocol.UTFinishedResponse) {
			m.emit(func(l Listener) { l.OnUTFinished(id, p) })
		}),
	}
}

// onLine applies the auto-continue policy before forwarding a stop.
func (m *Manager) onLine(id string, p protocol.StackParams) {
	if m.session.AutoContinue && id != m.reg.Master() {
		if _, done := m.session.continued[id]; !done {
			m.session.continued[id] = struct{}{}
			m.stats.Counter("auto_continues").Inc(1)
			m.logger.Infow("Auto-continuing secondary backend", "debugger", id)
			m.post(func() {
				data, err := encode(protocol.RequestContinue, protocol.ContinueParams{})
				if err == nil {
					err = m.route(id, protocol.RequestContinue, data)
				}
				if err != nil {
					m.logger.Warnw("Auto-continue not delivered", "debugger", id, "error", err)
				}
			})
			return
		}
	}
	m.localStack(p.Stack)
	m.emit(func(l Listener) { l.OnLine(id, p) })
}

func (m *Manager) localStack(stack []protocol.StackEntry) {
	for i := range stack {
		stack[i].Filename = m.tr.ToLocal(stack[i].Filename)
	}
}

