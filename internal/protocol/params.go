package protocol

import (
	"encoding/json"
)

// Condition is an optional expression. The empty condition travels as null.
type Condition string

func (c Condition) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Condition(s)
	return nil
}

// Command params (IDE -> backend)

type LoadParams struct {
	Workdir          string   `json:"workdir"`
	Filename         string   `json:"filename"`
	Argv             []string `json:"argv"`
	TraceInterpreter bool     `json:"traceInterpreter"`
	Multiprocess     bool     `json:"multiprocess"`
}

type RunParams struct {
	Workdir  string   `json:"workdir"`
	Filename string   `json:"filename"`
	Argv     []string `json:"argv"`
}

// CoverageParams is shared by RequestCoverage and RequestProfile.
type CoverageParams struct {
	Workdir  string   `json:"workdir"`
	Filename string   `json:"filename"`
	Argv     []string `json:"argv"`
	Erase    bool     `json:"erase"`
}

type StatementParams struct {
	Statement string `json:"statement"`
}

type ContinueParams struct {
	Special bool `json:"special"`
}

// LineParams is shared by RequestContinueUntil and RequestMoveIP.
type LineParams struct {
	NewLine int `json:"newLine"`
}

type BreakpointParams struct {
	Filename      string    `json:"filename"`
	Line          int       `json:"line"`
	Temporary     bool      `json:"temporary"`
	SetBreakpoint bool      `json:"setBreakpoint"`
	Condition     Condition `json:"condition"`
}

type BreakpointEnableParams struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Enable   bool   `json:"enable"`
}

type BreakpointIgnoreParams struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Count    int    `json:"count"`
}

type WatchParams struct {
	Temporary bool   `json:"temporary"`
	SetWatch  bool   `json:"setWatch"`
	Condition string `json:"condition"`
}

type WatchEnableParams struct {
	Condition string `json:"condition"`
	Enable    bool   `json:"enable"`
}

type WatchIgnoreParams struct {
	Condition string `json:"condition"`
	Count     int    `json:"count"`
}

type ThreadSetParams struct {
	ThreadID int `json:"threadID"`
}

type VariablesParams struct {
	FrameNumber int      `json:"frameNumber"`
	Scope       int      `json:"scope"`
	Filters     []string `json:"filters"`
	MaxSize     int      `json:"maxSize"`
}

type VariableParams struct {
	Variable    []string `json:"variable"`
	FrameNumber int      `json:"frameNumber"`
	Scope       int      `json:"scope"`
	Filters     []string `json:"filters"`
	MaxSize     int      `json:"maxSize"`
}

type CompletionParams struct {
	Text string `json:"text"`
}

type EnvironmentParams struct {
	Environment map[string]string `json:"environment"`
}

type NoDebugParams struct {
	NoDebug []string `json:"noDebug"`
}

type CallTraceRequestParams struct {
	Enable bool `json:"enable"`
}

type RawInputParams struct {
	Input string `json:"input"`
}

type UTDiscoverParams struct {
	Workdir  string `json:"workdir"`
	Filename string `json:"filename"`
}

type UTPrepareParams struct {
	Workdir   string   `json:"workdir"`
	Filename  string   `json:"filename"`
	TestCases []string `json:"testcases"`
	Failed    []string `json:"failed"`
}

type UTRunParams struct {
	Debug    bool `json:"debug"`
	FailFast bool `json:"failfast"`
}

// Event params (backend -> IDE)

type DebuggerIDParams struct {
	DebuggerID string `json:"debuggerId"`
}

type StackEntry struct {
	Filename  string `json:"filename"`
	Line      int    `json:"linenumber"`
	Function  string `json:"function"`
	Arguments string `json:"arguments"`
}

// StackParams is carried by ResponseLine and ResponseStack.
type StackParams struct {
	Stack      []StackEntry `json:"stack"`
	ThreadName string       `json:"threadName"`
}

type ExceptionParams struct {
	Type       string       `json:"type"`
	Message    string       `json:"message"`
	Stack      []StackEntry `json:"stack"`
	ThreadName string       `json:"threadName"`
}

type SyntaxParams struct {
	Message         string `json:"message"`
	Filename        string `json:"filename"`
	LineNumber      int    `json:"linenumber"`
	CharacterNumber int    `json:"characternumber"`
	ThreadName      string `json:"threadName"`
}

type SignalParams struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	LineNumber int    `json:"linenumber"`
	Function   string `json:"function"`
	Arguments  string `json:"arguments"`
}

type ExitParams struct {
	Program string `json:"program"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type CapabilitiesParams struct {
	Capabilities int    `json:"capabilities"`
	ClientType   string `json:"clientType"`
}

type BannerParams struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

type RawRequestParams struct {
	Prompt string `json:"prompt"`
	Echo   bool   `json:"echo"`
}

// LocationParams is carried by ResponseClearBreakpoint and
// ResponseBPConditionError.
type LocationParams struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
}

// WatchConditionParams is carried by ResponseClearWatch and
// ResponseWatchConditionError.
type WatchConditionParams struct {
	Condition string `json:"condition"`
}

type Variable struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Expandable bool   `json:"expandable"`
}

type VariablesResponse struct {
	Scope     int        `json:"scope"`
	Variables []Variable `json:"variables"`
}

type VariableResponse struct {
	Scope     int        `json:"scope"`
	Variable  []string   `json:"variable"`
	Variables []Variable `json:"variables"`
}

type ThreadInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Broken bool   `json:"broken"`
}

type ThreadListParams struct {
	CurrentID  int          `json:"currentID"`
	ThreadList []ThreadInfo `json:"threadList"`
}

type ThreadSetResponse struct {
	ThreadID int `json:"threadID"`
}

type CompletionResponse struct {
	Completions []string `json:"completions"`
	Text        string   `json:"text"`
}

type TraceLocation struct {
	Filename string `json:"filename"`
	Line     int    `json:"linenumber"`
	Function string `json:"codename"`
}

type CallTraceParams struct {
	Event string        `json:"event"`
	From  TraceLocation `json:"from"`
	To    TraceLocation `json:"to"`
}

type PassiveStartupParams struct {
	Filename   string `json:"filename"`
	Exceptions bool   `json:"exceptions"`
}

type OutputParams struct {
	Text string `json:"text"`
}

type TestCase struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	LineNumber  int    `json:"linenumber"`
}

type UTDiscoverResponse struct {
	TestCases []TestCase `json:"testCasesList"`
	Exception string     `json:"exception"`
	Message   string     `json:"message"`
}

type UTPreparedResponse struct {
	Count     int    `json:"count"`
	Exception string `json:"exception"`
	Message   string `json:"message"`
}

// UTTestParams is carried by the per-test progress events.
type UTTestParams struct {
	TestName    string   `json:"testname"`
	Description string   `json:"description"`
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Traceback   []string `json:"traceback"`
}

type UTFinishedResponse struct {
	Status int `json:"status"`
}
