// Package ws is the message vocabulary spoken between the rdb UI fan-out and
// its websocket clients.
package ws

import (
	"encoding/json"
	"fmt"
)

type Message struct {
	Type string          `json:"type"` // EventType or CommandType
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into a message of the given type.
func NewMessage[T ~string](typ T, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s: %w", typ, err)
	}
	return Message{Type: string(typ), Data: raw}, nil
}

// Bind unmarshals the message data into v.
func (m Message) Bind(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", m.Type, err)
	}
	return nil
}

// Event messages (server -> client)
type EventType string

const (
	EventWelcome       EventType = "welcome"
	EventConnected     EventType = "connected"
	EventDisconnected  EventType = "disconnected"
	EventMasterLost    EventType = "masterLost"
	EventSessionEmpty  EventType = "sessionEmpty"
	EventProtocolError EventType = "protocolError"

	EventLine                     EventType = "line"
	EventStack                    EventType = "stack"
	EventException                EventType = "exception"
	EventSyntaxError              EventType = "syntaxError"
	EventSignal                   EventType = "signal"
	EventExit                     EventType = "exit"
	EventCapabilities             EventType = "capabilities"
	EventBanner                   EventType = "banner"
	EventStatement                EventType = "statement"
	EventRawInput                 EventType = "rawInput"
	EventOutput                   EventType = "output"
	EventClearBreakpoint          EventType = "clearBreakpoint"
	EventClearWatch               EventType = "clearWatch"
	EventBreakpointConditionError EventType = "breakpointConditionError"
	EventWatchConditionError      EventType = "watchConditionError"
	EventVariables                EventType = "variables"
	EventVariable                 EventType = "variable"
	EventThreadList               EventType = "threadList"
	EventThreadSet                EventType = "threadSet"
	EventCompletion               EventType = "completion"
	EventCallTrace                EventType = "callTrace"
	EventPassiveStartup           EventType = "passiveStartup"

	EventUTDiscover EventType = "utDiscover"
	EventUTPrepared EventType = "utPrepared"
	EventUTTest     EventType = "utTest"
	EventUTFinished EventType = "utFinished"
)

// WelcomeEvent is the first message a client receives.
type WelcomeEvent struct {
	ClientID    string       `json:"clientId"`
	Debuggers   []string     `json:"debuggers"`
	Breakpoints []Breakpoint `json:"breakpoints"`
	Watches     []Watch      `json:"watches"`
}

type Breakpoint struct {
	Filename    string `json:"filename"`
	Line        int    `json:"line"`
	Condition   string `json:"condition,omitempty"`
	Temporary   bool   `json:"temporary"`
	Enabled     bool   `json:"enabled"`
	IgnoreCount int    `json:"ignoreCount,omitempty"`
	Inert       bool   `json:"inert,omitempty"`
}

type Watch struct {
	Condition   string `json:"condition"`
	Temporary   bool   `json:"temporary"`
	Enabled     bool   `json:"enabled"`
	IgnoreCount int    `json:"ignoreCount,omitempty"`
	Inert       bool   `json:"inert,omitempty"`
}

type ConnectedEvent struct {
	DebuggerID string `json:"debuggerId"`
	Master     bool   `json:"master"`
}

// DebuggerEvent carries the debugger a backend event came from and, for
// most events, the backend's params unchanged.
type DebuggerEvent struct {
	DebuggerID string `json:"debuggerId"`
	Params     any    `json:"params,omitempty"`
}

// DebuggerMessage is DebuggerEvent as a client decodes it.
type DebuggerMessage struct {
	DebuggerID string          `json:"debuggerId"`
	Params     json.RawMessage `json:"params,omitempty"`
}

func (d DebuggerMessage) Bind(v any) error {
	if len(d.Params) == 0 {
		return nil
	}
	return json.Unmarshal(d.Params, v)
}

type ErrorEvent struct {
	DebuggerID string `json:"debuggerId"`
	Error      string `json:"error"`
}

type StatementEvent struct {
	DebuggerID string `json:"debuggerId"`
	More       bool   `json:"more"`
}

type OutputEvent struct {
	DebuggerID string `json:"debuggerId"`
	Text       string `json:"text"`
}

type WatchEvent struct {
	DebuggerID string `json:"debuggerId"`
	Condition  string `json:"condition"`
}

type UTTestEvent struct {
	DebuggerID string `json:"debuggerId"`
	Method     string `json:"method"`
	Params     any    `json:"params"`
}

// Command messages (client -> server). An empty DebuggerID addresses every
// connected backend, or the master for commands that only make sense there.
type CommandType string

const (
	CmdLoad          CommandType = "load"
	CmdSetBreakpoint CommandType = "setBreakpoint"
	CmdSetWatch      CommandType = "setWatch"
	CmdContinue      CommandType = "continue"
	CmdStep          CommandType = "step"
	CmdStepOver      CommandType = "stepOver"
	CmdStepOut       CommandType = "stepOut"
	CmdExecute       CommandType = "execute"
	CmdStack         CommandType = "stack"
	CmdVariables     CommandType = "variables"
	CmdRawInput      CommandType = "rawInput"
	CmdShutdown      CommandType = "shutdown"
)

type LoadCmd struct {
	DebuggerID   string   `json:"debuggerId,omitempty"`
	Workdir      string   `json:"workdir"`
	Filename     string   `json:"filename"`
	Argv         []string `json:"argv"`
	Multiprocess bool     `json:"multiprocess"`
}

// SetBreakpointCmd sets a breakpoint, or clears it when Clear is true.
type SetBreakpointCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
	Filename   string `json:"filename"`
	Line       int    `json:"line"`
	Condition  string `json:"condition,omitempty"`
	Temporary  bool   `json:"temporary"`
	Clear      bool   `json:"clear"`
}

type SetWatchCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
	Condition  string `json:"condition"`
	Temporary  bool   `json:"temporary"`
	Clear      bool   `json:"clear"`
}

type ContinueCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
	Special    bool   `json:"special"`
}

// StepCmd is shared by step, stepOver, stepOut and stack.
type StepCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
}

type ExecuteCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
	Statement  string `json:"statement"`
}

type VariablesCmd struct {
	DebuggerID string   `json:"debuggerId,omitempty"`
	Frame      int      `json:"frame"`
	Scope      int      `json:"scope"`
	Filters    []string `json:"filters"`
	MaxSize    int      `json:"maxSize"`
}

type RawInputCmd struct {
	DebuggerID string `json:"debuggerId,omitempty"`
	Input      string `json:"input"`
}

