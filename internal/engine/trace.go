package engine

import (
	"path/filepath"

	"github.com/bingosuite/rdb/internal/breakpoint"
	"github.com/bingosuite/rdb/internal/protocol"
)

// Stop reasons.
const (
	reasonBreakpoint = "breakpoint"
	reasonWatch      = "watch"
	reasonStep       = "step"
	reasonException  = "exception"
	reasonRequest    = "request"
	reasonStart      = "start"
	reasonSignal     = "signal"
)

var _ Hooks = (*Engine)(nil)

func (e *Engine) Line(f Frame) error {
	first := e.last == nil
	e.last = f

	e.drain()
	if e.aborting || e.terminal != nil {
		return ErrAbort
	}
	if e.coverage != nil {
		e.coverage.hit(f.File(), f.Line())
	}
	if e.signaled {
		e.signaled = false
		if e.mode != modeFree {
			return e.suspend(f, reasonSignal)
		}
	}
	if e.mode == modeFree || e.skipped(f.File()) {
		return nil
	}

	watchHit := e.checkWatches(f)
	var reason string
	switch {
	case e.stepDone(f):
		switch {
		case first:
			reason = reasonStart
		case e.requested:
			reason = reasonRequest
		default:
			reason = reasonStep
		}
	case e.checkBreakpoint(f):
		reason = reasonBreakpoint
	case watchHit:
		reason = reasonWatch
	default:
		return nil
	}
	e.requested = false
	return e.suspend(f, reason)
}

func (e *Engine) Call(f Frame) {
	if e.profile != nil {
		e.profile.enter(f)
	}
	if e.callTrace {
		e.emit(protocol.CallTrace, protocol.CallTraceParams{
			Event: "call",
			From:  location(f.Parent()),
			To:    location(f),
		})
	}
}

func (e *Engine) Return(f Frame) {
	if e.profile != nil {
		e.profile.leave(f)
	}
	if e.callTrace {
		e.emit(protocol.CallTrace, protocol.CallTraceParams{
			Event: "return",
			From:  location(f),
			To:    location(f.Parent()),
		})
	}
}

func (e *Engine) Exception(f Frame, exc *Exception) error {
	if e.suite != nil && e.suite.active {
		return nil
	}
	e.emit(protocol.ResponseException, protocol.ExceptionParams{
		Type:       exc.Kind,
		Message:    exc.Message,
		Stack:      Stack(f),
		ThreadName: mainThreadName,
	})
	if e.mode == modeFree || e.aborting {
		return nil
	}
	return e.suspend(f, reasonException)
}

func location(f Frame) protocol.TraceLocation {
	if f == nil {
		return protocol.TraceLocation{}
	}
	return protocol.TraceLocation{Filename: f.File(), Line: f.Line(), Function: f.Function()}
}

func (e *Engine) skipped(file string) bool {
	_, ok := e.noDebug[filepath.Clean(file)]
	return ok
}

func (e *Engine) stepDone(f Frame) bool {
	switch e.mode {
	case modeStep:
		return true
	case modeStepOver:
		return f.Depth() <= e.stepDepth
	case modeStepOut:
		return f.Depth() < e.stepDepth
	case modeUntil:
		return f.Depth() < e.stepDepth || (f.Depth() == e.stepDepth && f.Line() >= e.untilLine)
	default:
		return false
	}
}

// checkBreakpoint reports whether a breakpoint at f's location fires.
func (e *Engine) checkBreakpoint(f Frame) bool {
	bp, ok := e.bps.Get(f.File(), f.Line())
	if !ok || !bp.Enabled || bp.Inert {
		return false
	}
	if bp.Condition != "" {
		v, err := f.Eval(bp.Condition)
		if err != nil {
			e.logger.Infow("Breakpoint condition failed", "file", bp.File, "line", bp.Line, "error", err)
			bp.Inert = true
			e.emit(protocol.ResponseBPConditionError, protocol.LocationParams{Filename: bp.File, Line: bp.Line})
			return false
		}
		if !truthy(v) {
			return false
		}
	}
	if !bp.Pass() {
		return false
	}

	e.stats.Counter("breakpoint_hits").Inc(1)
	if bp.Temporary {
		e.bps.Remove(bp.File, bp.Line)
		e.emit(protocol.ResponseClearBreakpoint, protocol.LocationParams{Filename: bp.File, Line: bp.Line})
	}
	return true
}

// checkWatches evaluates every watch once and reports whether any fired.
func (e *Engine) checkWatches(f Frame) bool {
	hit := false
	for _, w := range e.watches.All() {
		if !w.Enabled || w.Inert {
			continue
		}
		v, err := f.Eval(w.Expression)
		undefined := IsUndefined(err)
		if err != nil && (!undefined || w.Mode == breakpoint.TriggerAlways) {
			e.logger.Infow("Watch expression failed", "condition", w.Condition, "error", err)
			w.Inert = true
			e.emit(protocol.ResponseWatchConditionError, protocol.WatchConditionParams{Condition: w.Condition})
			continue
		}
		if !w.Observe(v, undefined) || !w.Pass() {
			continue
		}

		hit = true
		e.stats.Counter("watch_hits").Inc(1)
		if w.Temporary {
			e.watches.Remove(w.Condition)
			e.emit(protocol.ResponseClearWatch, protocol.WatchConditionParams{Condition: w.Condition})
		}
	}
	return hit
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
