// Package ui fans session events out to websocket UI clients and feeds their
// commands back into the session manager.
package ui

import (
	"context"
	"sync"
	"time"

	"github.com/bingosuite/rdb/pkg/ws"
	"go.uber.org/zap"
)

const (
	clientSendBufferSize = 256
	eventBufferSize      = 256
	commandBufferSize    = 32
	hubTickerInterval    = 1 * time.Minute
)

// Hub owns the UI connections. Events are broadcast to every connection and
// commands from any connection are handled one at a time on the hub's
// goroutine.
type Hub struct {
	connections map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	events     chan ws.Message
	commands   chan ws.Message
	done       chan struct{}

	handle func(ctx context.Context, cmd ws.Message)
	onIdle func()

	idleTimeout  time.Duration
	tick         time.Duration
	lastActivity time.Time

	logger *zap.SugaredLogger
	mu     sync.RWMutex
}

func NewHub(idleTimeout time.Duration, handle func(context.Context, ws.Message), logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		connections:  make(map[*Connection]struct{}),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		events:       make(chan ws.Message, eventBufferSize),
		commands:     make(chan ws.Message, commandBufferSize),
		done:         make(chan struct{}),
		handle:       handle,
		idleTimeout:  idleTimeout,
		tick:         hubTickerInterval,
		lastActivity: time.Now(),
		logger:       logger.Named("hub"),
	}
}

// Run serves the hub until ctx is cancelled or the hub has been idle, with
// no connections, for longer than the idle timeout.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if h.idleTimeout > 0 && h.Len() == 0 && time.Since(h.lastActivity) > h.idleTimeout {
				h.logger.Infow("Idle with no clients, shutting down", "idleTimeout", h.idleTimeout)
				if h.onIdle != nil {
					h.onIdle()
				}
				return
			}

		case c := <-h.register:
			h.mu.Lock()
			h.connections[c] = struct{}{}
			n := len(h.connections)
			h.mu.Unlock()
			h.lastActivity = time.Now()
			h.logger.Infow("Client connected", "client", c.id, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.connections[c]
			delete(h.connections, c)
			n := len(h.connections)
			h.mu.Unlock()
			if ok {
				c.CloseSend()
				h.lastActivity = time.Now()
				h.logger.Infow("Client disconnected", "client", c.id, "clients", n)
			}

		case event := <-h.events:
			h.lastActivity = time.Now()
			h.mu.RLock()
			var slow []*Connection
			for c := range h.connections {
				select {
				case c.send <- event:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Warnw("Client is too slow, dropping it", "client", c.id)
				h.drop(c)
			}

		case cmd := <-h.commands:
			h.lastActivity = time.Now()
			h.logger.Debugw("Command", "type", cmd.Type)
			if h.handle != nil {
				h.handle(ctx, cmd)
			}
		}
	}
}

func (h *Hub) drop(c *Connection) {
	h.mu.Lock()
	delete(h.connections, c)
	h.mu.Unlock()
	c.CloseSend()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		c.CloseSend()
		delete(h.connections, c)
	}
}

// Len is the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) Register(c *Connection) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues event for every connection. It never blocks: when the
// queue is full the event is dropped.
func (h *Hub) Broadcast(event ws.Message) {
	select {
	case h.events <- event:
	default:
		h.logger.Warnw("Event queue full, dropping event", "type", event.Type)
	}
}

func (h *Hub) SendCommand(cmd ws.Message) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}
