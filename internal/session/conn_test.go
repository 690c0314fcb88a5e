package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pipeListener hands out in-memory connections. net.Pipe has no buffering,
// so a peer that stops reading blocks the writer at once.
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), done: make(chan struct{})}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "pipe", Net: "pipe"}
}

// dial returns the backend end of a new connection.
func (l *pipeListener) dial() net.Conn {
	server, client := net.Pipe()
	l.conns <- server
	return client
}

type countingConn struct {
	net.Conn
	writes atomic.Int32
}

func (c *countingConn) Write(p []byte) (int, error) {
	c.writes.Add(1)
	return c.Conn.Write(p)
}

var _ = Describe("backendConn", func() {
	var (
		conn *countingConn
		peer net.Conn
		c    *backendConn
	)

	BeforeEach(func() {
		var server net.Conn
		server, peer = net.Pipe()
		conn = &countingConn{Conn: server}
		c = newBackendConn(conn, Options{
			WriteTimeout:    10 * time.Millisecond,
			WriteRetries:    2,
			WriteRetryDelay: time.Millisecond,
		})
		DeferCleanup(func() {
			_ = c.close()
			_ = peer.Close()
		})
	})

	It("should give up after the retry budget when the peer stops reading", func() {
		err := c.write([]byte("000000002{}\n"))
		Expect(err).To(MatchError(ErrConnectionDead))
		Expect(IsTransportError(err)).To(BeTrue())
		Expect(conn.writes.Load()).To(BeEquivalentTo(3))
	})

	It("should finish a write once the peer reads again", func() {
		c.retries = 50
		got := make(chan []byte, 1)
		go func() {
			time.Sleep(15 * time.Millisecond)
			buf := make([]byte, 64)
			n, _ := peer.Read(buf)
			got <- buf[:n]
		}()
		Expect(c.write([]byte("hello"))).To(Succeed())
		Eventually(got).Should(Receive(Equal([]byte("hello"))))
	})

	It("should not write to a closed connection", func() {
		Expect(c.close()).To(Succeed())
		err := c.write([]byte("x"))
		Expect(err).To(MatchError(ErrConnectionDead))
		Expect(err).To(MatchError(net.ErrClosed))
		Expect(conn.writes.Load()).To(BeZero())
	})
})
