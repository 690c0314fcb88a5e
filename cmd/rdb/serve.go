package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/internal/launcher"
	"github.com/bingosuite/rdb/internal/session"
	"github.com/bingosuite/rdb/internal/ui"
	"github.com/briandowns/spinner"
	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept backends and serve UI clients until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := newIDE(cfg, logger)
		errs, err := d.start(ctx, stop)
		if err != nil {
			return err
		}
		defer d.close()

		if cfg.Backend.AutoStart {
			wait := backoff.NewExponentialBackOff()
			wait.InitialInterval = cfg.Backend.ConnectDelay
			wait.MaxElapsedTime = 0
			d.mgr.AddListener(newRestarter(ctx, d.startDefault, wait, logger))
			if err := d.startDefault(ctx); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		}
	},
}

var (
	multiprocess bool
	workdir      string
)

var debugCmd = &cobra.Command{
	Use:   "debug <script> [args...]",
	Short: "Launch a backend for script and debug it from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		d := newIDE(cfg, logger)
		errs, err := d.start(ctx, stop)
		if err != nil {
			return err
		}
		defer d.close()

		con := newConsole(d.mgr)
		defer con.Close()
		d.mgr.AddListener(con)

		master, err := d.launch(ctx)
		if err != nil {
			return err
		}

		script, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		dir := workdir
		if dir == "" {
			dir = filepath.Dir(script)
		}
		if err := d.mgr.Load(master, dir, script, args[1:], false, multiprocess); err != nil {
			return err
		}

		go func() {
			select {
			case err := <-errs:
				logger.Errorw("Session failed", "error", err)
				stop()
			case <-ctx.Done():
			}
		}()
		return con.Run(ctx)
	},
}

func init() {
	debugCmd.Flags().BoolVar(&multiprocess, "multiprocess", false, "debug child programs too")
	debugCmd.Flags().StringVar(&workdir, "workdir", "", "working directory of the program (default: the script's directory)")
}

// ide is the session manager with its backend listener and UI fan-out.
type ide struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	closer func()

	mgr     *session.Manager
	bridge  *ui.Bridge
	backend net.Listener
}

func newIDE(cfg *config.Config, logger *zap.SugaredLogger) *ide {
	scope, closer := tally.NewRootScope(tally.ScopeOptions{Prefix: "rdb"}, time.Second)

	opts := session.OptionsFromConfig(cfg)
	opts.Launcher = launcher.NewExec(logger, cfg.Session.StartTimeout)
	opts.Logger = logger
	opts.Scope = scope
	mgr := session.New(opts)

	return &ide{
		cfg:    cfg,
		logger: logger,
		closer: func() { _ = closer.Close() },
		mgr:    mgr,
	}
}

// start runs the manager, the backend listener and the UI server. Failures
// after startup arrive on the returned channel. onIdle runs when the UI has
// had no clients for the configured idle timeout.
func (d *ide) start(ctx context.Context, onIdle func()) (<-chan error, error) {
	backend, err := net.Listen("tcp", d.cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for backends: %w", err)
	}
	d.backend = backend

	errs := make(chan error, 3)
	go func() { errs <- d.mgr.Run(ctx) }()
	go func() {
		if err := d.mgr.Serve(ctx, backend); err != nil {
			errs <- err
		}
	}()

	if d.cfg.UI.Addr == "" {
		return errs, nil
	}
	uiLn, err := net.Listen("tcp", d.cfg.UI.Addr)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to listen for UI clients: %w", err)
	}
	d.bridge = ui.NewBridge(d.mgr, ui.Options{
		IdleTimeout: d.cfg.UI.IdleTimeout,
		OnIdle:      onIdle,
		Logger:      d.logger,
	})
	d.mgr.AddListener(d.bridge)
	go d.bridge.Run(ctx)
	go func() {
		if err := ui.NewServer(d.cfg.UI, d.bridge).Serve(ctx, uiLn); err != nil {
			errs <- err
		}
	}()
	return errs, nil
}

// backendSpec is the default backend pointed at the backend listener.
func (d *ide) backendSpec() (launcher.Spec, error) {
	host, port, err := net.SplitHostPort(d.backend.Addr().String())
	if err != nil {
		return launcher.Spec{}, err
	}
	return launcher.Spec{
		Interpreter: d.cfg.Backend.Interpreter,
		Args:        append(append([]string(nil), d.cfg.Backend.Args...), "--host", host, "--port", port),
	}, nil
}

func (d *ide) startDefault(ctx context.Context) error {
	spec, err := d.backendSpec()
	if err != nil {
		return err
	}
	proc, err := d.mgr.StartBackend(ctx, spec)
	if err != nil {
		return err
	}
	d.logger.Infow("Started default backend", "pid", proc.Pid())
	return nil
}

// launch starts a backend and waits for it to become the master.
func (d *ide) launch(ctx context.Context) (string, error) {
	spec, err := d.backendSpec()
	if err != nil {
		return "", err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for the backend to connect..."
	s.Start()
	defer s.Stop()

	if _, err := d.mgr.StartBackend(ctx, spec); err != nil {
		return "", err
	}
	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.Session.StartTimeout)
	defer cancel()
	master, err := d.mgr.WaitForMaster(waitCtx)
	if err != nil {
		return "", fmt.Errorf("backend did not connect: %w", err)
	}
	return master, nil
}

func (d *ide) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.mgr.Shutdown(shutdownCtx); err != nil && !errors.Is(err, session.ErrManagerStopped) {
		d.logger.Debugw("Shutdown failed", "error", err)
	}
	d.closer()
}

// restarter starts the default backend again each time the session empties.
// Restarts back off until a master connects.
type restarter struct {
	session.NopListener

	ctx    context.Context
	start  func(context.Context) error
	logger *zap.SugaredLogger

	mu   sync.Mutex
	wait backoff.BackOff
}

func newRestarter(ctx context.Context, start func(context.Context) error, wait backoff.BackOff, logger *zap.SugaredLogger) *restarter {
	return &restarter{ctx: ctx, start: start, wait: wait, logger: logger}
}

func (r *restarter) OnConnected(id string, master bool) {
	if !master {
		return
	}
	r.mu.Lock()
	r.wait.Reset()
	r.mu.Unlock()
}

// OnSessionEmpty runs on the dispatch goroutine, so the restart happens on
// its own goroutine. A failed launch is retried on the same schedule.
func (r *restarter) OnSessionEmpty() {
	go func() {
		for {
			delay := r.next()
			if delay == backoff.Stop {
				r.logger.Warnw("Giving up restarting the default backend")
				return
			}
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(delay):
			}
			err := r.start(r.ctx)
			if err == nil {
				return
			}
			r.logger.Warnw("Failed to restart the default backend", "error", err)
		}
	}()
}

func (r *restarter) next() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wait.NextBackOff()
}
