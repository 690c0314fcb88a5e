package ui

import (
	"context"
	"fmt"

	"github.com/bingosuite/rdb/pkg/ws"
)

func (b *Bridge) handleCommand(ctx context.Context, cmd ws.Message) {
	if err := b.dispatch(ctx, cmd); err != nil {
		b.logger.Warnw("UI command failed", "type", cmd.Type, "error", err)
	}
}

func (b *Bridge) dispatch(ctx context.Context, cmd ws.Message) error {
	switch ws.CommandType(cmd.Type) {
	case ws.CmdLoad:
		var c ws.LoadCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		return b.ctrl.Load(b.target(ctx, c.DebuggerID), c.Workdir, c.Filename, c.Argv, false, c.Multiprocess)

	case ws.CmdSetBreakpoint:
		var c ws.SetBreakpointCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		if c.Clear {
			b.mirror.ClearBreakpoint(c.Filename, c.Line)
		} else {
			b.mirror.SetBreakpoint(c.Filename, c.Line, c.Temporary, c.Condition)
		}
		return b.ctrl.SetBreakpoint(c.DebuggerID, c.Filename, c.Line, !c.Clear, c.Condition, c.Temporary)

	case ws.CmdSetWatch:
		var c ws.SetWatchCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		if c.Clear {
			b.mirror.ClearWatch(c.Condition)
		} else {
			b.mirror.SetWatch(c.Condition, c.Temporary)
		}
		return b.ctrl.SetWatch(c.DebuggerID, c.Condition, !c.Clear, c.Temporary)

	case ws.CmdContinue:
		var c ws.ContinueCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		return b.ctrl.Continue(b.target(ctx, c.DebuggerID), c.Special)

	case ws.CmdStep, ws.CmdStepOver, ws.CmdStepOut, ws.CmdStack:
		var c ws.StepCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		id := b.target(ctx, c.DebuggerID)
		switch ws.CommandType(cmd.Type) {
		case ws.CmdStep:
			return b.ctrl.Step(id)
		case ws.CmdStepOver:
			return b.ctrl.StepOver(id)
		case ws.CmdStepOut:
			return b.ctrl.StepOut(id)
		default:
			return b.ctrl.Stack(id)
		}

	case ws.CmdExecute:
		var c ws.ExecuteCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		return b.ctrl.ExecuteStatement(b.target(ctx, c.DebuggerID), c.Statement)

	case ws.CmdVariables:
		var c ws.VariablesCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		return b.ctrl.Variables(b.target(ctx, c.DebuggerID), c.Frame, c.Scope, c.Filters, c.MaxSize)

	case ws.CmdRawInput:
		var c ws.RawInputCmd
		if err := cmd.Bind(&c); err != nil {
			return err
		}
		return b.ctrl.RawInput(b.target(ctx, c.DebuggerID), c.Input)

	case ws.CmdShutdown:
		return b.ctrl.Shutdown(ctx)

	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// target resolves an empty debugger id to the master. Without a master the
// id stays empty and the command waits in the session queue.
func (b *Bridge) target(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	info, err := b.ctrl.Info(ctx)
	if err != nil {
		b.logger.Debugw("Could not resolve master", "error", err)
		return ""
	}
	return info.Master
}
