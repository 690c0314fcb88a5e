package backend

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bingosuite/rdb/internal/engine"
	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/internal/script"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBackend(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backend Suite")
}

// ide accepts a single backend connection.
type ide struct {
	ln   net.Listener
	conn net.Conn
	r    *protocol.Reader
	w    *protocol.Writer
}

func newIDE() *ide {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = ln.Close() })
	return &ide{ln: ln}
}

func (i *ide) accept() {
	conn, err := i.ln.Accept()
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = conn.Close() })
	i.conn = conn
	i.r = protocol.NewReader(conn)
	i.w = protocol.NewWriter(conn)
}

func (i *ide) read() protocol.Frame {
	Expect(i.conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
	f, err := i.r.ReadFrame()
	Expect(err).NotTo(HaveOccurred())
	return f
}

func (i *ide) send(method string, params any) {
	Expect(i.w.WriteFrame(protocol.MustFrame(method, params))).To(Succeed())
}

func newRuntime() engine.Runtime {
	rt, err := script.New()
	Expect(err).NotTo(HaveOccurred())
	return rt
}

func writeScript(src string) string {
	path := filepath.Join(GinkgoT().TempDir(), "prog.rdb")
	Expect(os.WriteFile(path, []byte(src), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Agent", func() {
	var (
		srv  *ide
		errs chan error
	)

	BeforeEach(func() {
		srv = newIDE()
		errs = make(chan error, 1)
	})

	start := func(opts Options) *Agent {
		opts.Addr = srv.ln.Addr().String()
		opts.Runtime = newRuntime()
		opts.Version = "0.1.0"
		opts.ConnectDelay = 10 * time.Millisecond
		a, err := New(opts)
		Expect(err).NotTo(HaveOccurred())
		go func() { errs <- a.Run(context.Background()) }()
		srv.accept()
		return a
	}

	It("should introduce itself with host, pid and role", func() {
		a := start(Options{Role: RoleChild})

		f := srv.read()
		Expect(f.Method).To(Equal(protocol.DebuggerID))
		var hello protocol.DebuggerIDParams
		Expect(f.Bind(&hello)).To(Succeed())
		Expect(hello.DebuggerID).To(Equal(a.ID()))
		Expect(hello.DebuggerID).To(HaveSuffix("/" + RoleChild))

		srv.send(protocol.RequestShutdown, nil)
		Eventually(errs, "5s").Should(Receive(BeNil()))
	})

	It("should serve commands until shutdown", func() {
		start(Options{})
		srv.read()

		srv.send(protocol.RequestBanner, nil)
		f := srv.read()
		Expect(f.Method).To(Equal(protocol.ResponseBanner))
		var banner protocol.BannerParams
		Expect(f.Bind(&banner)).To(Succeed())
		Expect(banner.Version).To(Equal("0.1.0"))

		srv.send(protocol.RequestShutdown, nil)
		Eventually(errs, "5s").Should(Receive(BeNil()))
	})

	It("should start the program right away in passive mode", func() {
		file := writeScript("x = 1\nprint x\n")
		start(Options{Passive: true, File: file})

		Expect(srv.read().Method).To(Equal(protocol.DebuggerID))
		f := srv.read()
		Expect(f.Method).To(Equal(protocol.PassiveStartup))
		var startup protocol.PassiveStartupParams
		Expect(f.Bind(&startup)).To(Succeed())
		Expect(startup.Filename).To(Equal(file))

		f = srv.read()
		Expect(f.Method).To(Equal(protocol.ResponseLine))
		var stack protocol.StackParams
		Expect(f.Bind(&stack)).To(Succeed())
		Expect(stack.Stack[0].Line).To(Equal(1))

		srv.send(protocol.RequestShutdown, nil)
		Eventually(errs, "5s").Should(Receive(BeNil()))
	})

	It("should return when the IDE hangs up", func() {
		start(Options{})
		srv.read()

		Expect(srv.conn.Close()).To(Succeed())
		Eventually(errs, "5s").Should(Receive(BeNil()))
	})

	It("should give up after the configured retries", func() {
		addr := srv.ln.Addr().String()
		Expect(srv.ln.Close()).To(Succeed())

		a, err := New(Options{
			Addr:           addr,
			Runtime:        newRuntime(),
			ConnectRetries: 2,
			ConnectDelay:   time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Run(context.Background())).To(MatchError(ContainSubstring("failed to connect")))
	})

	It("should validate its options", func() {
		_, err := New(Options{})
		Expect(err).To(HaveOccurred())

		_, err = New(Options{Runtime: newRuntime(), Passive: true})
		Expect(err).To(MatchError(ContainSubstring("passive")))
	})
})

var _ = Describe("ChildArgs", func() {
	It("should run children without a debugger locally", func() {
		args, err := ChildArgs("127.0.0.1:4000", "child.rdb", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal([]string{"--local", "--file", "child.rdb"}))
	})

	It("should connect debugged children back as passive children", func() {
		args, err := ChildArgs("127.0.0.1:4000", "child.rdb", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal([]string{
			"--host", "127.0.0.1", "--port", "4000",
			"--role", RoleChild, "--passive", "--file", "child.rdb",
		}))
	})

	It("should reject a malformed address", func() {
		_, err := ChildArgs("nowhere", "child.rdb", true)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Local", func() {
	var (
		stdout, stderr strings.Builder
		stdin          *os.File
	)

	BeforeEach(func() {
		stdout.Reset()
		stderr.Reset()
		r, w, err := os.Pipe()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = r.Close() })
		_, err = w.WriteString("bob\nhunter2\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		stdin = r
	})

	local := func() *Local {
		return &Local{Runtime: newRuntime(), Stdin: stdin, Stdout: &stdout, Stderr: &stderr}
	}

	It("should run a program on the process's terminal", func() {
		file := writeScript("input name 'who? '\ngetpass pw\nprint 'hi ' + name + ' ' + argv[0]\n")

		Expect(local().Run(file, []string{"there"})).To(Succeed())
		Expect(stdout.String()).To(Equal("who? hi bob there\n"))
	})

	It("should print a traceback for unhandled exceptions", func() {
		file := writeScript("raise 'boom'\n")

		err := local().Run(file, nil)

		Expect(err).To(HaveOccurred())
		Expect(stderr.String()).To(HavePrefix("Traceback (most recent call last):\n"))
		Expect(stderr.String()).To(ContainSubstring("boom"))
	})

	It("should fail on a missing file", func() {
		Expect(local().Run(filepath.Join(GinkgoT().TempDir(), "nope.rdb"), nil)).To(HaveOccurred())
	})
})
