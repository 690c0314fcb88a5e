// Package backend is the debugger process that runs next to the debuggee. It
// connects back to the IDE, introduces itself and serves the IDE's commands
// through an engine.Engine.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/internal/engine"
	"github.com/bingosuite/rdb/internal/fatal"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
)

// Roles a backend announces in its debugger id.
const (
	RoleMain  = "main"
	RoleChild = "child"
)

type Options struct {
	// Addr is the IDE listener, host:port.
	Addr string
	Role string
	// Passive runs File right away instead of waiting for RequestLoad.
	Passive bool
	File    string
	Args    []string

	ConnectRetries int
	ConnectDelay   time.Duration

	Runtime engine.Runtime
	// Spawner starts child programs. Nil uses a Spawner for this binary.
	Spawner engine.Spawner
	Version string

	Logger *zap.SugaredLogger
	Scope  tally.Scope
}

// OptionsFromConfig fills the connect-back settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:           cfg.Server.Addr,
		Role:           RoleMain,
		ConnectRetries: cfg.Backend.ConnectRetries,
		ConnectDelay:   cfg.Backend.ConnectDelay,
	}
}

// DebuggerID is the identity a backend announces: host/pid/role.
func DebuggerID(host string, pid int, role string) string {
	return host + "/" + strconv.Itoa(pid) + "/" + role
}

type Agent struct {
	opts   Options
	id     string
	logger *zap.SugaredLogger
}

func New(opts Options) (*Agent, error) {
	if opts.Runtime == nil {
		return nil, errors.New("a runtime is required")
	}
	if opts.Passive && opts.File == "" {
		return nil, errors.New("passive mode needs a file")
	}
	if opts.Role == "" {
		opts.Role = RoleMain
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Scope == nil {
		opts.Scope = tally.NoopScope
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	a := &Agent{
		opts: opts,
		id:   DebuggerID(host, os.Getpid(), opts.Role),
	}
	a.logger = opts.Logger.Named("backend").With("debuggerId", a.id)
	if a.opts.Spawner == nil {
		a.opts.Spawner = a.spawnChild
	}
	return a, nil
}

func (a *Agent) ID() string {
	return a.id
}

// Run connects to the IDE and serves it until shutdown, disconnect or ctx
// cancellation.
func (a *Agent) Run(ctx context.Context) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			a.logger.Warnw("Failed to close connection", "error", err)
		}
	}()
	a.logger.Infow("Connected", "addr", a.opts.Addr)

	w := protocol.NewWriter(conn)
	hello, err := protocol.NewFrame(protocol.DebuggerID, protocol.DebuggerIDParams{DebuggerID: a.id})
	if err != nil {
		return err
	}
	if err := w.WriteFrame(hello); err != nil {
		return fmt.Errorf("failed to introduce backend: %w", err)
	}

	eng := engine.New(engine.Options{
		ID:      a.id,
		Runtime: a.opts.Runtime,
		Out:     w,
		Spawner: a.opts.Spawner,
		Version: a.opts.Version,
		Logger:  a.opts.Logger,
		Scope:   a.opts.Scope,
	})
	stop := fatal.OnFatalSignal(eng.Signal)
	defer stop()

	commands := make(chan protocol.Frame, 64)
	done := make(chan struct{})
	defer close(done)
	go a.readPump(conn, commands, done)

	if a.opts.Passive {
		err = eng.ServePassive(ctx, commands, a.opts.File, a.opts.Args)
	} else {
		err = eng.Serve(ctx, commands)
	}
	if errors.Is(err, engine.ErrDisconnected) {
		a.logger.Infow("IDE closed the connection")
		return nil
	}
	return err
}

func (a *Agent) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	var conn net.Conn
	op := func() error {
		c, err := d.DialContext(ctx, "tcp", a.opts.Addr)
		if err != nil {
			a.logger.Debugw("Connect attempt failed", "addr", a.opts.Addr, "error", err)
			return err
		}
		conn = c
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.ConnectDelay), uint64(max(a.opts.ConnectRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", a.opts.Addr, err)
	}
	return conn, nil
}

// readPump feeds decoded commands to the engine and closes commands when
// the connection ends.
func (a *Agent) readPump(conn net.Conn, commands chan<- protocol.Frame, done <-chan struct{}) {
	defer close(commands)
	r := protocol.NewReader(conn)
	for {
		f, err := r.ReadFrame()
		if err == nil {
			select {
			case commands <- f:
			case <-done:
				return
			}
			continue
		}
		if protocol.IsMalformed(err) {
			a.logger.Warnw("Discarding malformed command", "error", err)
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			a.logger.Warnw("Read failed", "error", err)
		}
		return
	}
}
