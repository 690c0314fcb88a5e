package session

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/cenkalti/backoff/v4"
)

// backendConn is one backend socket. Reads happen on its own goroutine;
// writes happen on the manager's dispatch goroutine.
type backendConn struct {
	conn   net.Conn
	reader *protocol.Reader
	remote string

	writeTimeout time.Duration
	retries      int
	retryDelay   time.Duration

	closed atomic.Bool
}

func newBackendConn(conn net.Conn, opts Options) *backendConn {
	return &backendConn{
		conn:         conn,
		reader:       protocol.NewReader(conn),
		remote:       conn.RemoteAddr().String(),
		writeTimeout: opts.WriteTimeout,
		retries:      opts.WriteRetries,
		retryDelay:   opts.WriteRetryDelay,
	}
}

// write sends one encoded frame, retrying timed-out writes a bounded number
// of times before giving up on the connection.
func (c *backendConn) write(data []byte) error {
	remaining := data
	op := func() error {
		if c.closed.Load() {
			return backoff.Permanent(net.ErrClosed)
		}
		if c.writeTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		n, err := c.conn.Write(remaining)
		remaining = remaining[n:]
		if err == nil {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(max(c.retries, 0)))
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionDead, c.remote, err)
	}
	return nil
}

func (c *backendConn) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// readPump feeds decoded frames into the manager until the socket fails.
func (c *backendConn) readPump(m *Manager) {
	for {
		f, err := c.reader.ReadFrame()
		if err != nil {
			if protocol.IsMalformed(err) {
				if !m.deliver(event{kind: eventMalformed, conn: c, err: err}) {
					return
				}
				continue
			}
			m.deliver(event{kind: eventClosed, conn: c, err: err})
			return
		}
		if !m.deliver(event{kind: eventFrame, conn: c, frame: f}) {
			return
		}
	}
}
