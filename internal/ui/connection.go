package ui

import (
	"errors"
	"sync"
	"time"

	"github.com/bingosuite/rdb/pkg/ws"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// pongWait bounds how long a silent client is kept. Pings go out well
	// within it.
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// maxCommandSize caps one inbound command.
	maxCommandSize = 64 << 10
)

// Connection is one UI client of the hub. ReadPump turns the client's
// messages into session commands; WritePump delivers session events and
// keeps the client alive with pings. Both run on their own goroutines.
type Connection struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan ws.Message
	once   sync.Once
	logger *zap.SugaredLogger
}

func NewConnection(conn *websocket.Conn, hub *Hub, id string) *Connection {
	return &Connection{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan ws.Message, clientSendBufferSize),
		logger: hub.logger.With("client", id),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// CloseSend stops the write pump once its queue is drained.
func (c *Connection) CloseSend() {
	c.once.Do(func() { close(c.send) })
}

func (c *Connection) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debugw("Close failed", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ws.Message
		err := c.conn.ReadJSON(&msg)
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.Infow("Unexpected close", "error", err)
			return
		}
		if err != nil {
			return
		}
		c.hub.SendCommand(msg)
	}
}

func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debugw("Close failed", "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debugw("Failed to send close message", "error", err)
				}
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warnw("Write failed", "type", message.Type, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debugw("Ping failed", "error", err)
				return
			}
		}
	}
}
