package main

import (
	"fmt"
	"io"

	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/pkg/ws"
)

// render prints a server message for a human. Events without a readable
// form are shown by type.
func render(w io.Writer, msg ws.Message) {
	switch ws.EventType(msg.Type) {
	case ws.EventWelcome:
		var e ws.WelcomeEvent
		if msg.Bind(&e) != nil {
			return
		}
		fmt.Fprintf(w, "[welcome %s: %d debuggers, %d breakpoints, %d watches]\n",
			e.ClientID, len(e.Debuggers), len(e.Breakpoints), len(e.Watches))

	case ws.EventConnected:
		var e ws.ConnectedEvent
		if msg.Bind(&e) != nil {
			return
		}
		role := "child"
		if e.Master {
			role = "master"
		}
		fmt.Fprintf(w, "[%s connected as %s]\n", e.DebuggerID, role)

	case ws.EventOutput:
		var e ws.OutputEvent
		if msg.Bind(&e) == nil {
			fmt.Fprint(w, e.Text)
		}

	case ws.EventStatement:
		var e ws.StatementEvent
		if msg.Bind(&e) == nil && e.More {
			fmt.Fprintln(w, "...")
		}

	case ws.EventProtocolError:
		var e ws.ErrorEvent
		if msg.Bind(&e) == nil {
			fmt.Fprintf(w, "[%s: %s]\n", e.DebuggerID, e.Error)
		}

	case ws.EventClearWatch, ws.EventWatchConditionError:
		var e ws.WatchEvent
		if msg.Bind(&e) == nil {
			fmt.Fprintf(w, "[%s %q]\n", msg.Type, e.Condition)
		}

	case ws.EventSessionEmpty:
		fmt.Fprintln(w, "[no debuggers left]")

	default:
		renderDebugger(w, msg)
	}
}

func renderDebugger(w io.Writer, msg ws.Message) {
	var e ws.DebuggerMessage
	if err := msg.Bind(&e); err != nil {
		fmt.Fprintf(w, "[%s]\n", msg.Type)
		return
	}

	switch ws.EventType(msg.Type) {
	case ws.EventLine:
		var p protocol.StackParams
		if e.Bind(&p) == nil && len(p.Stack) > 0 {
			top := p.Stack[0]
			fmt.Fprintf(w, "> %s:%d in %s(%s)\n", top.Filename, top.Line, top.Function, top.Arguments)
		}
	case ws.EventStack:
		var p protocol.StackParams
		if e.Bind(&p) == nil {
			for i, s := range p.Stack {
				fmt.Fprintf(w, "#%d %s(%s) at %s:%d\n", i, s.Function, s.Arguments, s.Filename, s.Line)
			}
		}
	case ws.EventException:
		var p protocol.ExceptionParams
		if e.Bind(&p) == nil {
			fmt.Fprintf(w, "Unhandled %s: %s\n", p.Type, p.Message)
		}
	case ws.EventExit:
		var p protocol.ExitParams
		if e.Bind(&p) == nil {
			fmt.Fprintf(w, "[%s exited with status %d]\n", e.DebuggerID, p.Status)
		}
	case ws.EventRawInput:
		var p protocol.RawRequestParams
		if e.Bind(&p) == nil {
			fmt.Fprintf(w, "[input requested: %q, answer with i <text>]\n", p.Prompt)
		}
	case ws.EventVariables:
		var p protocol.VariablesResponse
		if e.Bind(&p) == nil {
			for _, v := range p.Variables {
				fmt.Fprintf(w, "%s (%s) = %s\n", v.Name, v.Type, v.Value)
			}
		}
	case ws.EventClearBreakpoint, ws.EventBreakpointConditionError:
		var p protocol.LocationParams
		if e.Bind(&p) == nil {
			fmt.Fprintf(w, "[%s %s:%d]\n", msg.Type, p.Filename, p.Line)
		}
	default:
		fmt.Fprintf(w, "[%s %s]\n", msg.Type, e.DebuggerID)
	}
}
