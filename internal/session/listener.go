package session

import "github.com/bingosuite/rdb/internal/protocol"

// Listener receives session events. Callbacks run on the manager's dispatch
// goroutine: they must not block, and they must not call the manager's
// query methods (Info, IDs, Flush, WaitForMaster). Command methods are safe.
//
// Every filename a listener sees is already in IDE-local form.
type Listener interface {
	OnConnected(id string, master bool)
	OnDisconnected(id string)
	OnMasterLost(id string)
	OnSessionEmpty()
	OnProtocolError(id string, err error)

	OnLine(id string, p protocol.StackParams)
	OnStack(id string, p protocol.StackParams)
	OnException(id string, p protocol.ExceptionParams)
	OnSyntaxError(id string, p protocol.SyntaxParams)
	OnSignal(id string, p protocol.SignalParams)
	OnExit(id string, p protocol.ExitParams)
	OnCapabilities(id string, p protocol.CapabilitiesParams)
	OnBanner(id string, p protocol.BannerParams)
	// OnStatement reports the result of ExecuteStatement. more is true when
	// the backend needs further lines to complete the statement.
	OnStatement(id string, more bool)
	OnRawInput(id string, p protocol.RawRequestParams)
	OnOutput(id string, text string)
	OnClearBreakpoint(id string, p protocol.LocationParams)
	OnClearWatch(id string, condition string)
	OnBreakpointConditionError(id string, p protocol.LocationParams)
	OnWatchConditionError(id string, condition string)
	OnVariables(id string, p protocol.VariablesResponse)
	OnVariable(id string, p protocol.VariableResponse)
	OnThreadList(id string, p protocol.ThreadListParams)
	OnThreadSet(id string, p protocol.ThreadSetResponse)
	OnCompletion(id string, p protocol.CompletionResponse)
	OnCallTrace(id string, p protocol.CallTraceParams)
	OnPassiveStartup(id string, p protocol.PassiveStartupParams)

	OnUTDiscover(id string, p protocol.UTDiscoverResponse)
	OnUTPrepared(id string, p protocol.UTPreparedResponse)
	// OnUTTest reports per-test progress; method is one of the
	// ResponseUT*Test* event names.
	OnUTTest(id string, method string, p protocol.UTTestParams)
	OnUTFinished(id string, p protocol.UTFinishedResponse)
}

// NopListener implements Listener with no-ops. Embed it to handle a subset of
// events.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnConnected(string, bool)                                   {}
func (NopListener) OnDisconnected(string)                                      {}
func (NopListener) OnMasterLost(string)                                        {}
func (NopListener) OnSessionEmpty()                                            {}
func (NopListener) OnProtocolError(string, error)                              {}
func (NopListener) OnLine(string, protocol.StackParams)                        {}
func (NopListener) OnStack(string, protocol.StackParams)                       {}
func (NopListener) OnException(string, protocol.ExceptionParams)              {}
func (NopListener) OnSyntaxError(string, protocol.SyntaxParams)                {}
func (NopListener) OnSignal(string, protocol.SignalParams)                     {}
func (NopListener) OnExit(string, protocol.ExitParams)                         {}
func (NopListener) OnCapabilities(string, protocol.CapabilitiesParams)         {}
func (NopListener) OnBanner(string, protocol.BannerParams)                     {}
func (NopListener) OnStatement(string, bool)                                   {}
func (NopListener) OnRawInput(string, protocol.RawRequestParams)               {}
func (NopListener) OnOutput(string, string)                                    {}
func (NopListener) OnClearBreakpoint(string, protocol.LocationParams)          {}
func (NopListener) OnClearWatch(string, string)                                {}
func (NopListener) OnBreakpointConditionError(string, protocol.LocationParams) {}
func (NopListener) OnWatchConditionError(string, string)                       {}
func (NopListener) OnVariables(string, protocol.VariablesResponse)             {}
func (NopListener) OnVariable(string, protocol.VariableResponse)               {}
func (NopListener) OnThreadList(string, protocol.ThreadListParams)             {}
func (NopListener) OnThreadSet(string, protocol.ThreadSetResponse)             {}
func (NopListener) OnCompletion(string, protocol.CompletionResponse)           {}
func (NopListener) OnCallTrace(string, protocol.CallTraceParams)               {}
func (NopListener) OnPassiveStartup(string, protocol.PassiveStartupParams)     {}
func (NopListener) OnUTDiscover(string, protocol.UTDiscoverResponse)           {}
func (NopListener) OnUTPrepared(string, protocol.UTPreparedResponse)           {}
func (NopListener) OnUTTest(string, string, protocol.UTTestParams)             {}
func (NopListener) OnUTFinished(string, protocol.UTFinishedResponse)           {}
