// Package session implements the IDE side of the debugger: it accepts backend
// connections, routes commands to them and fans their events out to
// listeners.
//
// All session state is owned by the goroutine running Manager.Run. Sockets,
// API calls and deferred work reach it as events, so the registry and the
// command queue need no locking.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/internal/launcher"
	"github.com/bingosuite/rdb/internal/pathmap"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/internal/registry"
	"github.com/uber-go/tally/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const eventBufferSize = 256

type Options struct {
	AutoContinue    bool
	WriteRetries    int
	WriteRetryDelay time.Duration
	WriteTimeout    time.Duration

	Translator *pathmap.Translator
	Launcher   launcher.Launcher
	Logger     *zap.SugaredLogger
	Scope      tally.Scope
}

// OptionsFromConfig maps the session and translation sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		AutoContinue:    cfg.Session.AutoContinue,
		WriteRetries:    cfg.Session.WriteRetries,
		WriteRetryDelay: cfg.Session.WriteRetryDelay,
		WriteTimeout:    cfg.Session.WriteTimeout,
		Translator:      pathmap.Identity(),
	}
	if cfg.Translation.Enabled {
		opts.Translator = pathmap.New(cfg.Translation.LocalRoot, cfg.Translation.RemoteRoot)
	}
	return opts
}

type eventKind int

const (
	eventAccepted eventKind = iota
	eventFrame
	eventMalformed
	eventClosed
)

type event struct {
	kind  eventKind
	conn  *backendConn
	frame protocol.Frame
	err   error
}

type Manager struct {
	opts   Options
	tr     *pathmap.Translator
	logger *zap.SugaredLogger
	stats  tally.Scope

	reg       *registry.Registry[*backendConn]
	queue     Queue
	session   *Session
	listeners []Listener
	handlers  map[string]handlerFunc

	events chan event

	opsMu sync.Mutex
	ops   []func()
	wake  chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Scope == nil {
		opts.Scope = tally.NoopScope
	}
	if opts.Translator == nil {
		opts.Translator = pathmap.Identity()
	}
	m := &Manager{
		opts:    opts,
		tr:      opts.Translator,
		logger:  opts.Logger.Named("session"),
		stats:   opts.Scope.SubScope("session"),
		session: newSession(opts.AutoContinue),
		events:  make(chan event, eventBufferSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	m.reg = registry.New[*backendConn](registry.Hooks{
		MasterAssigned: m.masterAssigned,
	})
	m.handlers = m.dispatchTable()
	return m
}

// Run processes events until ctx is cancelled. Remaining backends are shut
// down on return.
func (m *Manager) Run(ctx context.Context) error {
	defer m.doneOnce.Do(func() { close(m.done) })
	defer func() {
		if err := m.shutdown(); err != nil {
			m.logger.Warnw("Shutdown on exit failed", "error", err)
		}
	}()

	m.logger.Infow("Session manager running", "session", m.session.ID)
	for {
		m.runOps()

		select {
		case <-ctx.Done():
			m.logger.Infow("Session manager stopping", "session", m.session.ID)
			return nil
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.wake:
		}
	}
}

// Serve accepts backend connections from ln until ctx is cancelled or the
// listener fails.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	m.logger.Infow("Accepting backends", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept backend: %w", err)
		}
		c := newBackendConn(conn, m.opts)
		if !m.deliver(event{kind: eventAccepted, conn: c}) {
			_ = conn.Close()
			return ErrManagerStopped
		}
		go c.readPump(m)
	}
}

// AddListener registers l for every subsequent event.
func (m *Manager) AddListener(l Listener) {
	m.post(func() { m.listeners = append(m.listeners, l) })
}

// Info returns a snapshot of the current session.
func (m *Manager) Info(ctx context.Context) (Info, error) {
	var info Info
	err := m.call(ctx, func() {
		info = Info{
			ID:           m.session.ID.String(),
			Master:       m.reg.Master(),
			Debuggers:    m.reg.ListIDs(),
			Capabilities: m.session.Capabilities,
			ClientType:   m.session.ClientType,
			Interpreter:  m.session.Interpreter,
			Script:       m.session.Script,
			AutoContinue: m.session.AutoContinue,
			Queued:       m.queue.Len(),
			Connections:  m.reg.Len(),
		}
	})
	return info, err
}

// IDs lists the connected debugger ids in sorted order.
func (m *Manager) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := m.call(ctx, func() { ids = m.reg.ListIDs() })
	return ids, err
}

// Flush waits until every operation posted before it has been processed.
func (m *Manager) Flush(ctx context.Context) error {
	return m.call(ctx, func() {})
}

// SetAutoContinue toggles the auto-continue policy of the current session.
func (m *Manager) SetAutoContinue(enabled bool) {
	m.post(func() { m.session.AutoContinue = enabled })
}

// WaitForMaster blocks until the current session has a master backend.
func (m *Manager) WaitForMaster(ctx context.Context) (string, error) {
	var ready chan struct{}
	if err := m.call(ctx, func() { ready = m.session.masterReady }); err != nil {
		return "", err
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.done:
		return "", ErrManagerStopped
	}
	var master string
	err := m.call(ctx, func() { master = m.reg.Master() })
	return master, err
}

// StartBackend tears down the current session, starts a fresh one and
// launches a backend that is expected to connect back to the manager.
func (m *Manager) StartBackend(ctx context.Context, spec launcher.Spec) (launcher.Process, error) {
	if m.opts.Launcher == nil {
		return nil, fmt.Errorf("%w: no launcher configured", ErrBackendUnavailable)
	}
	var shutdownErr error
	if err := m.call(ctx, func() {
		shutdownErr = m.shutdown()
		m.session = newSession(m.opts.AutoContinue)
	}); err != nil {
		return nil, err
	}
	if shutdownErr != nil {
		m.logger.Warnw("Previous session did not shut down cleanly", "error", shutdownErr)
	}

	proc, err := m.opts.Launcher.Launch(ctx, spec)
	if err != nil {
		m.post(func() { m.session = newSession(m.opts.AutoContinue) })
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	m.post(func() { m.session.Interpreter = spec.Interpreter })
	m.logger.Infow("Backend launched", "interpreter", spec.Interpreter, "pid", proc.Pid())
	return proc, nil
}

// Shutdown asks every backend to exit and closes its socket. Shutting down
// an empty session is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	if callErr := m.call(ctx, func() { err = m.shutdown() }); callErr != nil {
		return callErr
	}
	return err
}

// SendTo encodes a command and routes it to id. An empty id broadcasts to
// every connected backend. Without a master the command is queued.
func (m *Manager) SendTo(id, method string, params any) error {
	data, err := encode(method, params)
	if err != nil {
		return err
	}
	m.post(func() {
		if err := m.route(id, method, data); err != nil {
			m.logger.Warnw("Command not delivered", "debugger", id, "method", method, "error", err)
		}
	})
	return nil
}

func encode(method string, params any) ([]byte, error) {
	f, err := protocol.NewFrame(method, params)
	if err != nil {
		return nil, err
	}
	return protocol.Encode(f)
}

// Loop-side plumbing

func (m *Manager) post(fn func()) {
	m.opsMu.Lock()
	m.ops = append(m.ops, fn)
	m.opsMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	m.post(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrManagerStopped
	}
}

// runOps drains posted work, including work posted while draining.
func (m *Manager) runOps() {
	for {
		m.opsMu.Lock()
		ops := m.ops
		m.ops = nil
		m.opsMu.Unlock()
		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			op()
		}
	}
}

func (m *Manager) deliver(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) emit(fn func(l Listener)) {
	for _, l := range m.listeners {
		fn(l)
	}
}

func (m *Manager) handleEvent(ev event) {
	switch ev.kind {
	case eventAccepted:
		m.reg.AcceptPending(ev.conn)
		m.stats.Counter("connections").Inc(1)
		m.logger.Infow("Backend connected", "remote", ev.conn.remote, "total", m.reg.Len())

	case eventFrame:
		if !m.reg.Known(ev.conn) {
			return
		}
		m.stats.Counter("frames_received").Inc(1)
		m.handleFrame(ev.conn, ev.frame)

	case eventMalformed:
		if !m.reg.Known(ev.conn) {
			return
		}
		id, _ := m.reg.IDOf(ev.conn)
		m.stats.Counter("protocol_errors").Inc(1)
		m.logger.Warnw("Discarding malformed frame", "debugger", id, "remote", ev.conn.remote, "error", ev.err)
		m.emit(func(l Listener) { l.OnProtocolError(id, ev.err) })

	case eventClosed:
		m.drop(ev.conn, ev.err)
	}
}

func (m *Manager) handleFrame(c *backendConn, f protocol.Frame) {
	id, named := m.reg.IDOf(c)
	if f.Method == protocol.DebuggerID {
		if named {
			m.logger.Debugw("Ignoring repeated handshake", "debugger", id)
			return
		}
		m.handshake(c, f)
		return
	}
	if !named {
		m.logger.Warnw("Frame before handshake ignored", "remote", c.remote, "method", f.Method)
		return
	}

	h, ok := m.handlers[f.Method]
	if !ok {
		m.logger.Debugw("Ignoring unknown method", "debugger", id, "method", f.Method)
		return
	}
	if err := h(id, f); err != nil {
		m.stats.Counter("protocol_errors").Inc(1)
		m.logger.Warnw("Bad event params", "debugger", id, "method", f.Method, "error", err)
		m.emit(func(l Listener) { l.OnProtocolError(id, err) })
	}
}

func (m *Manager) handshake(c *backendConn, f protocol.Frame) {
	var p protocol.DebuggerIDParams
	if err := f.Bind(&p); err != nil || p.DebuggerID == "" {
		m.logger.Warnw("Invalid handshake", "remote", c.remote, "error", err)
		return
	}

	master, err := m.reg.AssignID(c, p.DebuggerID)
	if errors.Is(err, registry.ErrDuplicateID) {
		m.logger.Warnw("Closing connection with duplicate debugger id", "debugger", p.DebuggerID, "remote", c.remote)
		m.reg.Remove(c)
		_ = c.close()
		return
	}
	if err != nil {
		m.logger.Warnw("Handshake rejected", "debugger", p.DebuggerID, "error", err)
		return
	}

	m.logger.Infow("Backend identified", "debugger", p.DebuggerID, "master", master)
	m.emit(func(l Listener) { l.OnConnected(p.DebuggerID, master) })
}

// masterAssigned runs inside registry.AssignID.
func (m *Manager) masterAssigned(id string) {
	c, ok := m.reg.Lookup(id)
	if !ok {
		return
	}
	m.session.markMaster()

	n, err := m.queue.Drain(func(frame []byte) error {
		return m.write(c, id, frame)
	})
	if n > 0 {
		m.logger.Infow("Flushed queued commands", "debugger", id, "count", n)
	}
	if err != nil {
		return
	}
	for _, method := range []string{protocol.RequestCapabilities, protocol.RequestBanner} {
		data, _ := encode(method, nil)
		if err := m.write(c, id, data); err != nil {
			return
		}
	}
}

// route delivers an encoded command. It must run on the dispatch goroutine.
func (m *Manager) route(id, method string, data []byte) error {
	targets := m.reg.ListIDs()
	if id != "" {
		if c, ok := m.reg.Lookup(id); ok {
			return m.write(c, id, data)
		}
		if m.reg.HasMaster() {
			return fmt.Errorf("%w: %s", ErrUnknownDebugger, id)
		}
	}
	// Without any named backend there is nobody to deliver to yet.
	if id != "" || len(targets) == 0 {
		m.queue.Push(data)
		m.stats.Counter("frames_queued").Inc(1)
		m.logger.Debugw("Queued command until a master connects", "method", method, "queued", m.queue.Len())
		return nil
	}

	var errs error
	for _, target := range targets {
		c, ok := m.reg.Lookup(target)
		if !ok {
			continue
		}
		errs = multierr.Append(errs, m.write(c, target, data))
	}
	return errs
}

func (m *Manager) write(c *backendConn, id string, data []byte) error {
	if err := c.write(data); err != nil {
		m.logger.Warnw("Backend write failed", "debugger", id, "error", err)
		_ = c.close()
		m.post(func() { m.drop(c, err) })
		return err
	}
	m.stats.Counter("frames_sent").Inc(1)
	return nil
}

// drop removes a connection and emits the matching signals.
func (m *Manager) drop(c *backendConn, cause error) {
	_ = c.close()
	rm, ok := m.reg.Remove(c)
	if !ok {
		return
	}
	if rm.Pending {
		m.logger.Infow("Unidentified backend disconnected", "remote", c.remote)
		return
	}

	m.logger.Infow("Backend disconnected", "debugger", rm.ID, "master", rm.WasMaster, "cause", cause)
	m.emit(func(l Listener) { l.OnDisconnected(rm.ID) })
	if rm.WasMaster {
		m.logger.Warnw("Master backend lost", "debugger", rm.ID)
		m.emit(func(l Listener) { l.OnMasterLost(rm.ID) })
	}
	if rm.Empty {
		clear(m.session.continued)
		m.logger.Infow("Session empty", "session", m.session.ID)
		m.emit(func(l Listener) { l.OnSessionEmpty() })
	}
}

// shutdown sends RequestShutdown to every named then every pending
// connection and closes them. It must run on the dispatch goroutine.
func (m *Manager) shutdown() error {
	if m.reg.Len() == 0 && m.queue.Len() == 0 {
		return nil
	}
	data, err := encode(protocol.RequestShutdown, nil)
	if err != nil {
		return err
	}

	var errs error
	closeConn := func(c *backendConn) {
		if err := c.write(data); err != nil {
			errs = multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, c.close())
	}
	for _, id := range m.reg.ListIDs() {
		if c, ok := m.reg.Lookup(id); ok {
			closeConn(c)
		}
	}
	for _, c := range m.reg.Pending() {
		closeConn(c)
	}

	m.reg.Reset()
	m.queue.Clear()
	m.logger.Infow("Session shut down", "session", m.session.ID)
	return errs
}
