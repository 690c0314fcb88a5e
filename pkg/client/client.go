// Package client connects to the rdb UI fan-out over websocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/bingosuite/rdb/pkg/ws"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the execution state of the debuggee as seen from the events.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

var ErrClosed = errors.New("connection closed")

type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan ws.Message
	events    chan ws.Message
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	state     atomic.Value // State
	clientID  atomic.Value // string
	logger    *zap.SugaredLogger
}

// NewClient returns a client for the UI server at serverURL, host:port.
func NewClient(serverURL string, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Client{
		serverURL: serverURL,
		send:      make(chan ws.Message, 256),
		events:    make(chan ws.Message, 256),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
		logger:    logger.Named("client"),
	}
	c.state.Store(StateIdle)
	c.clientID.Store("")
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.serverURL, Path: "/ws/"}
	c.logger.Debugw("Connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}
	c.conn = conn
	return nil
}

// Run starts the read and write pumps.
func (c *Client) Run() error {
	if c.conn == nil {
		return fmt.Errorf("connection not established")
	}
	go c.readPump()
	go c.writePump()
	return nil
}

// Events delivers every message the server sends. It is closed when the
// connection ends.
func (c *Client) Events() <-chan ws.Message {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readPump() {
	defer func() {
		close(c.events)
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.logger.Debugw("Close error", "error", err)
		}
	}()

	for {
		var msg ws.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(msg)
		select {
		case c.events <- msg:
		default:
			c.logger.Warnw("Event buffer full, dropping message", "type", msg.Type)
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warnw("Write error", "error", err)
				return
			}
		case <-c.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
				c.logger.Debugw("Failed to close websocket", "error", err)
			}
			return
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(msg ws.Message) {
	switch ws.EventType(msg.Type) {
	case ws.EventWelcome:
		var welcome ws.WelcomeEvent
		if err := msg.Bind(&welcome); err != nil {
			c.logger.Warnw("Error parsing welcome", "error", err)
			return
		}
		c.clientID.Store(welcome.ClientID)

	case ws.EventLine, ws.EventException, ws.EventSignal:
		c.state.Store(StateStopped)

	case ws.EventExit, ws.EventSessionEmpty, ws.EventMasterLost:
		c.state.Store(StateIdle)
	}
}

// SendCommand queues a command for the server.
func (c *Client) SendCommand(cmdType ws.CommandType, payload any) error {
	msg, err := ws.NewMessage(cmdType, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.closing:
		return ErrClosed
	}
}

func (c *Client) resume(cmdType ws.CommandType, payload any) error {
	if err := c.SendCommand(cmdType, payload); err != nil {
		return err
	}
	c.state.Store(StateRunning)
	return nil
}

func (c *Client) Load(filename string, argv []string, multiprocess bool) error {
	return c.resume(ws.CmdLoad, ws.LoadCmd{Filename: filename, Argv: argv, Multiprocess: multiprocess})
}

func (c *Client) Continue() error {
	return c.resume(ws.CmdContinue, ws.ContinueCmd{})
}

func (c *Client) Step() error     { return c.resume(ws.CmdStep, ws.StepCmd{}) }
func (c *Client) StepOver() error { return c.resume(ws.CmdStepOver, ws.StepCmd{}) }
func (c *Client) StepOut() error  { return c.resume(ws.CmdStepOut, ws.StepCmd{}) }

func (c *Client) Stack() error {
	return c.SendCommand(ws.CmdStack, ws.StepCmd{})
}

func (c *Client) SetBreakpoint(filename string, line int, condition string, temporary bool) error {
	return c.SendCommand(ws.CmdSetBreakpoint, ws.SetBreakpointCmd{
		Filename:  filename,
		Line:      line,
		Condition: condition,
		Temporary: temporary,
	})
}

func (c *Client) ClearBreakpoint(filename string, line int) error {
	return c.SendCommand(ws.CmdSetBreakpoint, ws.SetBreakpointCmd{Filename: filename, Line: line, Clear: true})
}

func (c *Client) SetWatch(condition string, temporary bool) error {
	return c.SendCommand(ws.CmdSetWatch, ws.SetWatchCmd{Condition: condition, Temporary: temporary})
}

func (c *Client) ClearWatch(condition string) error {
	return c.SendCommand(ws.CmdSetWatch, ws.SetWatchCmd{Condition: condition, Clear: true})
}

func (c *Client) Execute(statement string) error {
	return c.SendCommand(ws.CmdExecute, ws.ExecuteCmd{Statement: statement})
}

func (c *Client) Variables(frame, scope int) error {
	return c.SendCommand(ws.CmdVariables, ws.VariablesCmd{Frame: frame, Scope: scope})
}

func (c *Client) RawInput(input string) error {
	return c.SendCommand(ws.CmdRawInput, ws.RawInputCmd{Input: input})
}

func (c *Client) Shutdown() error {
	return c.SendCommand(ws.CmdShutdown, struct{}{})
}

func (c *Client) State() State {
	return c.state.Load().(State)
}

// ID is the id the server assigned, empty until the welcome arrives.
func (c *Client) ID() string {
	return c.clientID.Load().(string)
}

// Close ends the connection with a close message.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.closeOnce.Do(func() { close(c.closing) })
	return nil
}
