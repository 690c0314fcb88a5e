// Package launcher starts backend processes for the session manager.
package launcher

//go:generate mockgen -destination=launchermock/launcher_mock.go -package=launchermock . Launcher,Process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Spec describes one backend process to start.
type Spec struct {
	Interpreter string
	Args        []string
	Env         []string
	WorkingDir  string
}

// Process is a started backend.
type Process interface {
	Pid() int
	Wait() error
	Kill() error
}

// Launcher starts backend processes.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// Exec launches backends as child processes of the IDE.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
	// StartTimeout bounds how long exec may take to start the process.
	StartTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewExec(logger *zap.SugaredLogger, startTimeout time.Duration) *Exec {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Exec{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		StartTimeout: startTimeout,
		logger:       logger.Named("launcher"),
	}
}

func (e *Exec) Launch(ctx context.Context, spec Spec) (Process, error) {
	if spec.Interpreter == "" {
		return nil, fmt.Errorf("no interpreter configured")
	}
	if e.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.StartTimeout)
		defer cancel()
	}

	path, err := exec.LookPath(spec.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("failed to find interpreter %s: %w", spec.Interpreter, err)
	}

	// The process outlives ctx; ctx only bounds the start.
	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()
	select {
	case err := <-started:
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", path, err)
		}
	case <-ctx.Done():
		go func() {
			if <-started == nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
			}
		}()
		return nil, fmt.Errorf("starting %s: %w", path, ctx.Err())
	}

	e.logger.Infow("Backend started", "interpreter", path, "pid", cmd.Process.Pid, "args", spec.Args)
	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Wait() error {
	return p.cmd.Wait()
}

func (p *process) Kill() error {
	return p.cmd.Process.Kill()
}
