package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/internal/session"
	"github.com/bingosuite/rdb/pkg/ws"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UI Suite")
}

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	info     session.Info
	shutdown atomic.Bool
}

func (f *fakeController) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Info(context.Context) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func (f *fakeController) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	return nil
}

func (f *fakeController) Load(id, workdir, filename string, argv []string, trace, multi bool) error {
	return f.record("load %s %s %v", id, filename, multi)
}

func (f *fakeController) SetBreakpoint(id, file string, line int, set bool, condition string, temporary bool) error {
	return f.record("bp %q %s:%d set=%t cond=%q temp=%t", id, file, line, set, condition, temporary)
}

func (f *fakeController) EnableBreakpoint(id, file string, line int, enable bool) error {
	return f.record("bp-enable %q %s:%d %t", id, file, line, enable)
}

func (f *fakeController) IgnoreBreakpoint(id, file string, line, count int) error {
	return f.record("bp-ignore %q %s:%d %d", id, file, line, count)
}

func (f *fakeController) SetWatch(id, condition string, set, temporary bool) error {
	return f.record("watch %q %s set=%t", id, condition, set)
}

func (f *fakeController) EnableWatch(id, condition string, enable bool) error {
	return f.record("watch-enable %q %s %t", id, condition, enable)
}

func (f *fakeController) IgnoreWatch(id, condition string, count int) error {
	return f.record("watch-ignore %q %s %d", id, condition, count)
}

func (f *fakeController) Continue(id string, special bool) error {
	return f.record("continue %s %t", id, special)
}

func (f *fakeController) Step(id string) error     { return f.record("step %s", id) }
func (f *fakeController) StepOver(id string) error { return f.record("over %s", id) }
func (f *fakeController) StepOut(id string) error  { return f.record("out %s", id) }
func (f *fakeController) Stack(id string) error    { return f.record("stack %s", id) }

func (f *fakeController) ExecuteStatement(id, statement string) error {
	return f.record("exec %s %s", id, statement)
}

func (f *fakeController) Variables(id string, frame, scope int, filters []string, maxSize int) error {
	return f.record("vars %s %d %d", id, frame, scope)
}

func (f *fakeController) RawInput(id, input string) error {
	return f.record("raw %s %s", id, input)
}

var _ = Describe("Bridge", func() {
	var (
		ctrl   *fakeController
		bridge *Bridge
		server *httptest.Server
		wsURL  string
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctrl = &fakeController{info: session.Info{
			ID:        "session-1",
			Master:    "host/1/main",
			Debuggers: []string{"host/1/main"},
		}}
		bridge = NewBridge(ctrl, Options{IdleTimeout: time.Minute})

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go bridge.Run(ctx)

		server = httptest.NewServer(NewServer(config.UIConfig{MaxClients: 2}, bridge).Handler())
		wsURL = "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = conn.Close() })
		return conn
	}

	read := func(conn *websocket.Conn) ws.Message {
		Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		var msg ws.Message
		Expect(conn.ReadJSON(&msg)).To(Succeed())
		return msg
	}

	send := func(conn *websocket.Conn, typ ws.CommandType, data any) {
		msg, err := ws.NewMessage(typ, data)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.WriteJSON(msg)).To(Succeed())
	}

	// connect dials and waits until the hub has registered the client.
	connect := func() (*websocket.Conn, ws.WelcomeEvent) {
		before := bridge.Hub().Len()
		conn := dial()
		msg := read(conn)
		Expect(msg.Type).To(Equal(string(ws.EventWelcome)))
		var welcome ws.WelcomeEvent
		Expect(msg.Bind(&welcome)).To(Succeed())
		Eventually(bridge.Hub().Len).Should(Equal(before + 1))
		return conn, welcome
	}

	Describe("Welcome", func() {
		It("should greet clients with the debuggers and the mirror", func() {
			bridge.Mirror().SetBreakpoint("/work/a.rdb", 3, false, "x > 1")
			bridge.Mirror().SetWatch("y ??changed??", false)

			_, welcome := connect()

			Expect(welcome.ClientID).NotTo(BeEmpty())
			Expect(welcome.Debuggers).To(Equal([]string{"host/1/main"}))
			Expect(welcome.Breakpoints).To(Equal([]ws.Breakpoint{
				{Filename: "/work/a.rdb", Line: 3, Condition: "x > 1", Enabled: true},
			}))
			Expect(welcome.Watches).To(Equal([]ws.Watch{{Condition: "y ??changed??", Enabled: true}}))
		})

		It("should reject clients beyond the limit", func() {
			connect()
			connect()

			_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			Expect(err).To(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("Events", func() {
		It("should broadcast backend events to every client", func() {
			c1, _ := connect()
			c2, _ := connect()

			bridge.OnLine("host/1/main", protocol.StackParams{
				Stack: []protocol.StackEntry{{Filename: "/work/a.rdb", Line: 7, Function: "<module>"}},
			})

			for _, conn := range []*websocket.Conn{c1, c2} {
				msg := read(conn)
				Expect(msg.Type).To(Equal(string(ws.EventLine)))
				var ev ws.DebuggerMessage
				Expect(msg.Bind(&ev)).To(Succeed())
				Expect(ev.DebuggerID).To(Equal("host/1/main"))
				var stack protocol.StackParams
				Expect(ev.Bind(&stack)).To(Succeed())
				Expect(stack.Stack[0].Line).To(Equal(7))
			}
		})

		It("should carry output text", func() {
			conn, _ := connect()

			bridge.OnOutput("host/1/main", "hello\n")

			msg := read(conn)
			Expect(msg.Type).To(Equal(string(ws.EventOutput)))
			var ev ws.OutputEvent
			Expect(msg.Bind(&ev)).To(Succeed())
			Expect(ev.Text).To(Equal("hello\n"))
		})

		It("should keep the mirror in step with cleared events", func() {
			bridge.Mirror().SetBreakpoint("/work/a.rdb", 3, true, "")
			bridge.Mirror().SetWatch("z", true)
			bridge.Mirror().SetBreakpoint("/work/a.rdb", 9, false, "nope >")

			bridge.OnClearBreakpoint("host/1/main", protocol.LocationParams{Filename: "/work/a.rdb", Line: 3})
			bridge.OnClearWatch("host/1/main", "z")
			bridge.OnBreakpointConditionError("host/1/main", protocol.LocationParams{Filename: "/work/a.rdb", Line: 9})

			bps := bridge.Mirror().Breakpoints()
			Expect(bps).To(HaveLen(1))
			Expect(bps[0].Line).To(Equal(9))
			Expect(bps[0].Inert).To(BeTrue())
			Expect(bridge.Mirror().Watches()).To(BeEmpty())
		})

		It("should replay the mirror onto a newly connected backend", func() {
			bridge.Mirror().SetBreakpoint("/work/a.rdb", 3, false, "")
			bridge.Mirror().EnableBreakpoint("/work/a.rdb", 3, false)
			bridge.Mirror().SetWatch("x > 1", true)
			bridge.Mirror().IgnoreWatch("x > 1", 2)

			bridge.OnConnected("host/2/child", false)

			Expect(ctrl.Calls()).To(Equal([]string{
				`bp "host/2/child" /work/a.rdb:3 set=true cond="" temp=false`,
				`bp-enable "host/2/child" /work/a.rdb:3 false`,
				`watch "host/2/child" x > 1 set=true`,
				`watch-ignore "host/2/child" x > 1 2`,
			}))
		})
	})

	Describe("Commands", func() {
		It("should address the master when no debugger is named", func() {
			conn, _ := connect()

			send(conn, ws.CmdStep, ws.StepCmd{})
			send(conn, ws.CmdContinue, ws.ContinueCmd{DebuggerID: "host/2/child", Special: true})
			send(conn, ws.CmdExecute, ws.ExecuteCmd{Statement: "print x"})
			send(conn, ws.CmdRawInput, ws.RawInputCmd{Input: "bob"})

			Eventually(ctrl.Calls).Should(Equal([]string{
				"step host/1/main",
				"continue host/2/child true",
				"exec host/1/main print x",
				"raw host/1/main bob",
			}))
		})

		It("should broadcast breakpoints and record them in the mirror", func() {
			conn, _ := connect()

			send(conn, ws.CmdSetBreakpoint, ws.SetBreakpointCmd{Filename: "/work/a.rdb", Line: 4, Condition: "i == 2"})

			Eventually(ctrl.Calls).Should(ContainElement(`bp "" /work/a.rdb:4 set=true cond="i == 2" temp=false`))
			Expect(bridge.Mirror().Breakpoints()).To(HaveLen(1))

			send(conn, ws.CmdSetBreakpoint, ws.SetBreakpointCmd{Filename: "/work/a.rdb", Line: 4, Clear: true})

			Eventually(ctrl.Calls).Should(ContainElement(`bp "" /work/a.rdb:4 set=false cond="" temp=false`))
			Expect(bridge.Mirror().Breakpoints()).To(BeEmpty())
		})

		It("should shut the session down", func() {
			conn, _ := connect()

			send(conn, ws.CmdShutdown, nil)

			Eventually(ctrl.shutdown.Load).Should(BeTrue())
		})

		It("should ignore unknown commands", func() {
			conn, _ := connect()

			Expect(conn.WriteJSON(ws.Message{Type: "bogus"})).To(Succeed())
			send(conn, ws.CmdStack, ws.StepCmd{})

			Eventually(ctrl.Calls).Should(Equal([]string{"stack host/1/main"}))
		})
	})

	Describe("Sessions", func() {
		It("should list the connected debuggers", func() {
			resp, err := http.Get(server.URL + "/sessions")
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = resp.Body.Close() }()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body sessionsResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body).To(Equal(sessionsResponse{
				Session:   "session-1",
				Master:    "host/1/main",
				Debuggers: []string{"host/1/main"},
			}))
		})
	})

	Describe("Disconnect", func() {
		It("should unregister clients that go away", func() {
			conn, _ := connect()

			Expect(conn.Close()).To(Succeed())

			Eventually(bridge.Hub().Len).Should(BeZero())
		})

		It("should drop clients that send oversized commands", func() {
			conn, _ := connect()

			msg, err := ws.NewMessage(ws.CmdExecute, ws.ExecuteCmd{Statement: strings.Repeat("x", maxCommandSize)})
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.WriteJSON(msg)).To(Succeed())

			Eventually(bridge.Hub().Len).Should(BeZero())
			Expect(ctrl.Calls()).NotTo(ContainElement(HavePrefix("exec")))
		})
	})
})

var _ = Describe("Hub", func() {
	It("should give up after the idle timeout with no clients", func() {
		var idle atomic.Bool
		hub := NewHub(50*time.Millisecond, nil, nil)
		hub.tick = 10 * time.Millisecond
		hub.onIdle = func() { idle.Store(true) }

		done := make(chan struct{})
		go func() {
			defer close(done)
			hub.Run(context.Background())
		}()

		Eventually(done, "2s").Should(BeClosed())
		Expect(idle.Load()).To(BeTrue())
	})

	It("should stop accepting work once it has stopped", func() {
		ctx, cancel := context.WithCancel(context.Background())
		hub := NewHub(0, nil, nil)
		done := make(chan struct{})
		go func() {
			defer close(done)
			hub.Run(ctx)
		}()
		cancel()
		Eventually(done).Should(BeClosed())

		Expect(hub.Register(&Connection{id: "late", send: make(chan ws.Message, 1)})).To(BeFalse())
		hub.SendCommand(ws.Message{Type: "step"})
	})

	It("should drop events when nobody drains them", func() {
		hub := NewHub(0, nil, nil)
		for range eventBufferSize + 10 {
			hub.Broadcast(ws.Message{Type: string(ws.EventOutput)})
		}
		Expect(hub.events).To(HaveLen(eventBufferSize))
	})
})
