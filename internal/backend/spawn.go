package backend

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// ChildArgs are the command line arguments that start file in a new backend
// process. A debugged child connects back to addr in passive mode; otherwise
// it runs locally.
func ChildArgs(addr, file string, debug bool) ([]string, error) {
	if !debug {
		return []string{"--local", "--file", file}, nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid IDE address %q: %w", addr, err)
	}
	return []string{
		"--host", host,
		"--port", port,
		"--role", RoleChild,
		"--passive",
		"--file", file,
	}, nil
}

func (a *Agent) spawnChild(file string, debug bool) error {
	args, err := ChildArgs(a.opts.Addr, file, debug)
	if err != nil {
		return err
	}
	return startSelf(args, a.logger)
}

// SpawnLocal starts file in a new local backend process.
func SpawnLocal(file string, logger *zap.SugaredLogger) error {
	args, err := ChildArgs("", file, false)
	if err != nil {
		return err
	}
	return startSelf(args, logger)
}

// startSelf runs this binary again with args. The child shares the
// process's terminal and is reaped in the background.
func startSelf(args []string, logger *zap.SugaredLogger) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate backend binary: %w", err)
	}

	cmd := exec.Command(self, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start child: %w", err)
	}
	logger.Infow("Spawned child", "pid", cmd.Process.Pid, "args", args)

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Infow("Child exited", "pid", cmd.Process.Pid, "error", err)
		}
	}()
	return nil
}
