package protocol

// Commands (IDE -> backend)
const (
	RequestLoad             = "RequestLoad"
	RequestRun              = "RequestRun"
	RequestCoverage         = "RequestCoverage"
	RequestProfile          = "RequestProfile"
	ExecuteStatement        = "ExecuteStatement"
	RequestStep             = "RequestStep"
	RequestStepOver         = "RequestStepOver"
	RequestStepOut          = "RequestStepOut"
	RequestStepQuit         = "RequestStepQuit"
	RequestContinue         = "RequestContinue"
	RequestContinueUntil    = "RequestContinueUntil"
	RequestMoveIP           = "RequestMoveIP"
	RequestBreakpoint       = "RequestBreakpoint"
	RequestBreakpointEnable = "RequestBreakpointEnable"
	RequestBreakpointIgnore = "RequestBreakpointIgnore"
	RequestWatch            = "RequestWatch"
	RequestWatchEnable      = "RequestWatchEnable"
	RequestWatchIgnore      = "RequestWatchIgnore"
	RequestThreadList       = "RequestThreadList"
	RequestThreadSet        = "RequestThreadSet"
	RequestStack            = "RequestStack"
	RequestVariables        = "RequestVariables"
	RequestVariable         = "RequestVariable"
	RequestCompletion       = "RequestCompletion"
	RequestCapabilities     = "RequestCapabilities"
	RequestBanner           = "RequestBanner"
	RequestEnvironment      = "RequestEnvironment"
	RequestSetNoDebugList   = "RequestSetNoDebugList"
	RequestCallTrace        = "RequestCallTrace"
	RawInput                = "RawInput"
	RequestShutdown         = "RequestShutdown"

	RequestUTDiscover = "RequestUTDiscover"
	RequestUTPrepare  = "RequestUTPrepare"
	RequestUTRun      = "RequestUTRun"
	RequestUTStop     = "RequestUTStop"
)

// Events and responses (backend -> IDE)
const (
	DebuggerID                  = "DebuggerId"
	ResponseLine                = "ResponseLine"
	ResponseStack               = "ResponseStack"
	ResponseException           = "ResponseException"
	ResponseSyntax              = "ResponseSyntax"
	ResponseSignal              = "ResponseSignal"
	ResponseExit                = "ResponseExit"
	ResponseCapabilities        = "ResponseCapabilities"
	ResponseBanner              = "ResponseBanner"
	ResponseOK                  = "ResponseOK"
	ResponseContinue            = "ResponseContinue"
	RequestRaw                  = "RequestRaw"
	ResponseClearBreakpoint     = "ResponseClearBreakpoint"
	ResponseClearWatch          = "ResponseClearWatch"
	ResponseBPConditionError    = "ResponseBPConditionError"
	ResponseWatchConditionError = "ResponseWatchConditionError"
	ResponseVariables           = "ResponseVariables"
	ResponseVariable            = "ResponseVariable"
	ResponseThreadList          = "ResponseThreadList"
	ResponseThreadSet           = "ResponseThreadSet"
	ResponseCompletion          = "ResponseCompletion"
	CallTrace                   = "CallTrace"
	PassiveStartup              = "PassiveStartup"
	ClientOutput                = "ClientOutput"

	ResponseUTDiscover      = "ResponseUTDiscover"
	ResponseUTPrepared      = "ResponseUTPrepared"
	ResponseUTStartTest     = "ResponseUTStartTest"
	ResponseUTStopTest      = "ResponseUTStopTest"
	ResponseUTTestFailed    = "ResponseUTTestFailed"
	ResponseUTTestErrored   = "ResponseUTTestErrored"
	ResponseUTTestSucceeded = "ResponseUTTestSucceeded"
	ResponseUTFinished      = "ResponseUTFinished"
)

// Client capability bits reported in ResponseCapabilities.
const (
	HasDebugger    = 1 << 0
	HasInterpreter = 1 << 1
	HasProfiler    = 1 << 2
	HasCoverage    = 1 << 3
	HasCompleter   = 1 << 4
	HasUnittest    = 1 << 5
	HasShell       = 1 << 6

	HasAll = HasDebugger | HasInterpreter | HasProfiler | HasCoverage |
		HasCompleter | HasUnittest | HasShell
)

// TooBigToShow replaces variable values longer than the requested maxSize.
const TooBigToShow = "@@TOO_BIG_TO_SHOW@@"
