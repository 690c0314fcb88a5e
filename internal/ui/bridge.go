package ui

import (
	"context"
	"time"

	"github.com/bingosuite/rdb/internal/breakpoint"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/internal/session"
	"github.com/bingosuite/rdb/pkg/ws"
	"go.uber.org/zap"
)

// Controller is the part of session.Manager the UI drives.
type Controller interface {
	Info(ctx context.Context) (session.Info, error)
	Shutdown(ctx context.Context) error

	Load(id, workdir, filename string, argv []string, traceInterpreter, multiprocess bool) error
	SetBreakpoint(id, file string, line int, set bool, condition string, temporary bool) error
	EnableBreakpoint(id, file string, line int, enable bool) error
	IgnoreBreakpoint(id, file string, line, count int) error
	SetWatch(id, condition string, set, temporary bool) error
	EnableWatch(id, condition string, enable bool) error
	IgnoreWatch(id, condition string, count int) error
	Continue(id string, special bool) error
	Step(id string) error
	StepOver(id string) error
	StepOut(id string) error
	ExecuteStatement(id, statement string) error
	Stack(id string) error
	Variables(id string, frame, scope int, filters []string, maxSize int) error
	RawInput(id, input string) error
}

var _ Controller = (*session.Manager)(nil)

type Options struct {
	IdleTimeout time.Duration
	// OnIdle runs when the hub shuts down for lack of clients.
	OnIdle func()
	Logger *zap.SugaredLogger
}

// Bridge is a session.Listener that republishes every event to the hub's
// clients. It keeps the display mirror of breakpoints and watches and
// replays it onto every backend that connects.
type Bridge struct {
	ctrl   Controller
	hub    *Hub
	mirror *breakpoint.Mirror
	logger *zap.SugaredLogger
}

var _ session.Listener = (*Bridge)(nil)

func NewBridge(ctrl Controller, opts Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	b := &Bridge{
		ctrl:   ctrl,
		mirror: breakpoint.NewMirror(),
		logger: opts.Logger.Named("ui"),
	}
	b.hub = NewHub(opts.IdleTimeout, b.handleCommand, b.logger)
	b.hub.onIdle = opts.OnIdle
	return b
}

func (b *Bridge) Hub() *Hub {
	return b.hub
}

func (b *Bridge) Mirror() *breakpoint.Mirror {
	return b.mirror
}

// Run serves the hub until ctx is cancelled or it goes idle.
func (b *Bridge) Run(ctx context.Context) {
	b.hub.Run(ctx)
}

// Welcome is the first message sent to a new client.
func (b *Bridge) Welcome(ctx context.Context, clientID string) (ws.Message, error) {
	info, err := b.ctrl.Info(ctx)
	if err != nil {
		return ws.Message{}, err
	}
	welcome := ws.WelcomeEvent{
		ClientID:    clientID,
		Debuggers:   info.Debuggers,
		Breakpoints: []ws.Breakpoint{},
		Watches:     []ws.Watch{},
	}
	for _, bp := range b.mirror.Breakpoints() {
		welcome.Breakpoints = append(welcome.Breakpoints, ws.Breakpoint{
			Filename:    bp.File,
			Line:        bp.Line,
			Condition:   bp.Condition,
			Temporary:   bp.Temporary,
			Enabled:     bp.Enabled,
			IgnoreCount: bp.IgnoreCount,
			Inert:       bp.Inert,
		})
	}
	for _, w := range b.mirror.Watches() {
		welcome.Watches = append(welcome.Watches, ws.Watch{
			Condition:   w.Condition,
			Temporary:   w.Temporary,
			Enabled:     w.Enabled,
			IgnoreCount: w.IgnoreCount,
			Inert:       w.Inert,
		})
	}
	return ws.NewMessage(ws.EventWelcome, welcome)
}

func (b *Bridge) publish(typ ws.EventType, data any) {
	msg, err := ws.NewMessage(typ, data)
	if err != nil {
		b.logger.Errorw("Failed to build event", "type", typ, "error", err)
		return
	}
	b.hub.Broadcast(msg)
}

func (b *Bridge) forward(typ ws.EventType, id string, params any) {
	b.publish(typ, ws.DebuggerEvent{DebuggerID: id, Params: params})
}

// replay sends the mirrored breakpoints and watches to a backend.
func (b *Bridge) replay(id string) {
	for _, bp := range b.mirror.Breakpoints() {
		b.report(b.ctrl.SetBreakpoint(id, bp.File, bp.Line, true, bp.Condition, bp.Temporary))
		if !bp.Enabled {
			b.report(b.ctrl.EnableBreakpoint(id, bp.File, bp.Line, false))
		}
		if bp.IgnoreCount > 0 {
			b.report(b.ctrl.IgnoreBreakpoint(id, bp.File, bp.Line, bp.IgnoreCount))
		}
	}
	for _, w := range b.mirror.Watches() {
		b.report(b.ctrl.SetWatch(id, w.Condition, true, w.Temporary))
		if !w.Enabled {
			b.report(b.ctrl.EnableWatch(id, w.Condition, false))
		}
		if w.IgnoreCount > 0 {
			b.report(b.ctrl.IgnoreWatch(id, w.Condition, w.IgnoreCount))
		}
	}
}

func (b *Bridge) report(err error) {
	if err != nil {
		b.logger.Warnw("Command failed", "error", err)
	}
}

func (b *Bridge) OnConnected(id string, master bool) {
	b.replay(id)
	b.publish(ws.EventConnected, ws.ConnectedEvent{DebuggerID: id, Master: master})
}

func (b *Bridge) OnDisconnected(id string) {
	b.forward(ws.EventDisconnected, id, nil)
}

func (b *Bridge) OnMasterLost(id string) {
	b.forward(ws.EventMasterLost, id, nil)
}

func (b *Bridge) OnSessionEmpty() {
	b.publish(ws.EventSessionEmpty, struct{}{})
}

func (b *Bridge) OnProtocolError(id string, err error) {
	b.publish(ws.EventProtocolError, ws.ErrorEvent{DebuggerID: id, Error: err.Error()})
}

func (b *Bridge) OnLine(id string, p protocol.StackParams)  { b.forward(ws.EventLine, id, p) }
func (b *Bridge) OnStack(id string, p protocol.StackParams) { b.forward(ws.EventStack, id, p) }

func (b *Bridge) OnException(id string, p protocol.ExceptionParams) {
	b.forward(ws.EventException, id, p)
}

func (b *Bridge) OnSyntaxError(id string, p protocol.SyntaxParams) {
	b.forward(ws.EventSyntaxError, id, p)
}

func (b *Bridge) OnSignal(id string, p protocol.SignalParams) { b.forward(ws.EventSignal, id, p) }
func (b *Bridge) OnExit(id string, p protocol.ExitParams)     { b.forward(ws.EventExit, id, p) }

func (b *Bridge) OnCapabilities(id string, p protocol.CapabilitiesParams) {
	b.forward(ws.EventCapabilities, id, p)
}

func (b *Bridge) OnBanner(id string, p protocol.BannerParams) { b.forward(ws.EventBanner, id, p) }

func (b *Bridge) OnStatement(id string, more bool) {
	b.publish(ws.EventStatement, ws.StatementEvent{DebuggerID: id, More: more})
}

func (b *Bridge) OnRawInput(id string, p protocol.RawRequestParams) {
	b.forward(ws.EventRawInput, id, p)
}

func (b *Bridge) OnOutput(id string, text string) {
	b.publish(ws.EventOutput, ws.OutputEvent{DebuggerID: id, Text: text})
}

func (b *Bridge) OnClearBreakpoint(id string, p protocol.LocationParams) {
	b.mirror.ClearBreakpoint(p.Filename, p.Line)
	b.forward(ws.EventClearBreakpoint, id, p)
}

func (b *Bridge) OnClearWatch(id string, condition string) {
	b.mirror.ClearWatch(condition)
	b.publish(ws.EventClearWatch, ws.WatchEvent{DebuggerID: id, Condition: condition})
}

func (b *Bridge) OnBreakpointConditionError(id string, p protocol.LocationParams) {
	b.mirror.MarkConditionError(p.Filename, p.Line)
	b.forward(ws.EventBreakpointConditionError, id, p)
}

func (b *Bridge) OnWatchConditionError(id string, condition string) {
	b.mirror.MarkWatchError(condition)
	b.publish(ws.EventWatchConditionError, ws.WatchEvent{DebuggerID: id, Condition: condition})
}

func (b *Bridge) OnVariables(id string, p protocol.VariablesResponse) {
	b.forward(ws.EventVariables, id, p)
}

func (b *Bridge) OnVariable(id string, p protocol.VariableResponse) {
	b.forward(ws.EventVariable, id, p)
}

func (b *Bridge) OnThreadList(id string, p protocol.ThreadListParams) {
	b.forward(ws.EventThreadList, id, p)
}

func (b *Bridge) OnThreadSet(id string, p protocol.ThreadSetResponse) {
	b.forward(ws.EventThreadSet, id, p)
}

func (b *Bridge) OnCompletion(id string, p protocol.CompletionResponse) {
	b.forward(ws.EventCompletion, id, p)
}

func (b *Bridge) OnCallTrace(id string, p protocol.CallTraceParams) {
	b.forward(ws.EventCallTrace, id, p)
}

func (b *Bridge) OnPassiveStartup(id string, p protocol.PassiveStartupParams) {
	b.forward(ws.EventPassiveStartup, id, p)
}

func (b *Bridge) OnUTDiscover(id string, p protocol.UTDiscoverResponse) {
	b.forward(ws.EventUTDiscover, id, p)
}

func (b *Bridge) OnUTPrepared(id string, p protocol.UTPreparedResponse) {
	b.forward(ws.EventUTPrepared, id, p)
}

func (b *Bridge) OnUTTest(id string, method string, p protocol.UTTestParams) {
	b.publish(ws.EventUTTest, ws.UTTestEvent{DebuggerID: id, Method: method, Params: p})
}

func (b *Bridge) OnUTFinished(id string, p protocol.UTFinishedResponse) {
	b.forward(ws.EventUTFinished, id, p)
}
