package script

import (
	"errors"
	"strings"
	"testing"

	"github.com/bingosuite/rdb/internal/engine"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestScript(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Script Suite")
}

type stop struct {
	line  int
	depth int
	fn    string
}

type recorder struct {
	lines      []stop
	calls      []string
	returns    []string
	exceptions []*engine.Exception
	onLine     func(f engine.Frame) error

	out    strings.Builder
	inputs []string
	echoes []bool
}

func (r *recorder) Line(f engine.Frame) error {
	r.lines = append(r.lines, stop{line: f.Line(), depth: f.Depth(), fn: f.Function()})
	if r.onLine != nil {
		return r.onLine(f)
	}
	return nil
}

func (r *recorder) Call(f engine.Frame) { r.calls = append(r.calls, f.Function()) }
func (r *recorder) Return(f engine.Frame) { r.returns = append(r.returns, f.Function()) }

func (r *recorder) Exception(_ engine.Frame, exc *engine.Exception) error {
	r.exceptions = append(r.exceptions, exc)
	return nil
}

func (r *recorder) Output(text string) { r.out.WriteString(text) }

func (r *recorder) Input(prompt string, echo bool) (string, error) {
	r.echoes = append(r.echoes, echo)
	r.out.WriteString(prompt)
	if len(r.inputs) == 0 {
		return "", errors.New("no input")
	}
	line := r.inputs[0]
	r.inputs = r.inputs[1:]
	return line, nil
}

func (r *recorder) env() *engine.Env {
	return &engine.Env{Hooks: r, Console: r}
}

func (r *recorder) lineNumbers() []int {
	var out []int
	for _, s := range r.lines {
		out = append(out, s.line)
	}
	return out
}

var _ = Describe("Runtime", func() {
	var (
		rt  *Runtime
		rec *recorder
	)

	BeforeEach(func() {
		var err error
		rt, err = New()
		Expect(err).NotTo(HaveOccurred())
		rec = &recorder{}
	})

	compile := func(src string) engine.Program {
		prog, err := rt.Compile("/work/prog.rdb", []byte(src))
		Expect(err).NotTo(HaveOccurred())
		return prog
	}

	run := func(src string) error {
		return rt.Run(compile(src), rec.env())
	}

	Describe("Compile", func() {
		It("should report invalid expressions with their line", func() {
			_, err := rt.Compile("/work/bad.rdb", []byte("x = 1\ny = (x +\n"))

			var syn *engine.SyntaxError
			Expect(errors.As(err, &syn)).To(BeTrue())
			Expect(syn.File).To(Equal("/work/bad.rdb"))
			Expect(syn.Line).To(Equal(2))
		})

		It("should reject a block without end", func() {
			_, err := rt.Compile("/work/bad.rdb", []byte("if true\nprint 1\n"))

			var syn *engine.SyntaxError
			Expect(errors.As(err, &syn)).To(BeTrue())
			Expect(syn.Message).To(ContainSubstring("end"))
		})

		It("should reject a stray end", func() {
			_, err := rt.Compile("/work/bad.rdb", []byte("print 1\nend\n"))
			Expect(err).To(HaveOccurred())
		})

		It("should list functions with the comment above them as doc", func() {
			prog := compile("# Adds two numbers.\nfunc add(a, b)\n  return a + b\nend\n\nfunc test_add()\n  assert call_ok\nend\n")

			Expect(prog.Functions()).To(Equal([]engine.Function{
				{Name: "add", Line: 2, Doc: "Adds two numbers."},
				{Name: "test_add", Line: 6},
			}))
		})
	})

	Describe("Run", func() {
		It("should execute assignments and print", func() {
			Expect(run("x = 1\ny = x + 2  # comment\nprint y\nprint 'a#b'\n")).To(Succeed())
			Expect(rec.out.String()).To(Equal("3\na#b\n"))
		})

		It("should trace every line with its depth", func() {
			Expect(run("func add(a, b)\n  return a + b\nend\nz = call add(1, 2)\nprint z\n")).To(Succeed())

			Expect(rec.lines).To(Equal([]stop{
				{line: 4, depth: 0, fn: "<module>"},
				{line: 2, depth: 1, fn: "add"},
				{line: 5, depth: 0, fn: "<module>"},
			}))
			Expect(rec.calls).To(Equal([]string{"<module>", "add"}))
			Expect(rec.returns).To(Equal([]string{"add", "<module>"}))
			Expect(rec.out.String()).To(Equal("3\n"))
		})

		It("should run loops and branches", func() {
			src := "i = 0\nwhile i < 3\n  i = i + 1\nend\nif i == 3\n  print 'three'\nelse\n  print 'other'\nend\n"
			Expect(run(src)).To(Succeed())
			Expect(rec.out.String()).To(Equal("three\n"))
		})

		It("should expose argv", func() {
			env := rec.env()
			env.Argv = []string{"one", "two"}
			Expect(rt.Run(compile("print size(argv)\nprint argv[1]\n"), env)).To(Succeed())
			Expect(rec.out.String()).To(Equal("2\ntwo\n"))
		})

		It("should hand an unhandled exception to the hooks once", func() {
			err := run("func fail()\n  raise 'boom'\nend\ncall fail()\nprint 'unreachable'\n")

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindException))
			Expect(exc.Message).To(Equal("boom"))
			Expect(exc.Frame.Function()).To(Equal("fail"))
			Expect(exc.Frame.Line()).To(Equal(2))
			Expect(rec.exceptions).To(HaveLen(1))
			Expect(rec.out.String()).To(BeEmpty())
		})

		It("should raise NameError for undefined names", func() {
			err := run("print missing\n")

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindName))
		})

		It("should raise AssertionError for failed asserts", func() {
			err := run("x = 1\nassert x == 2\n")

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindAssertion))
			Expect(exc.Message).To(ContainSubstring("x == 2"))
		})

		It("should reject calls with the wrong number of arguments", func() {
			err := run("func f(a)\n  pass\nend\ncall f(1, 2)\n")

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindType))
		})

		It("should stop when a line hook fails", func() {
			rec.onLine = func(f engine.Frame) error {
				if f.Line() == 2 {
					return engine.ErrAbort
				}
				return nil
			}

			err := run("print 1\nprint 2\nprint 3\n")

			Expect(err).To(MatchError(engine.ErrAbort))
			Expect(rec.out.String()).To(Equal("1\n"))
			Expect(rec.exceptions).To(BeEmpty())
		})

		It("should read input through the console", func() {
			rec.inputs = []string{"bob", "secret"}

			Expect(run("input name 'who? '\ngetpass pw\nprint 'hi ' + name\n")).To(Succeed())

			Expect(rec.out.String()).To(Equal("who? hi bob\n"))
			Expect(rec.echoes).To(Equal([]bool{true, false}))
		})

		It("should spawn through the environment", func() {
			var spawned []string
			env := rec.env()
			env.Spawn = func(file string) error {
				spawned = append(spawned, file)
				return nil
			}

			Expect(rt.Run(compile("spawn 'child.rdb'\n"), env)).To(Succeed())
			Expect(spawned).To(Equal([]string{"child.rdb"}))
		})

		It("should fail spawn without support", func() {
			err := run("spawn 'child.rdb'\n")

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindRuntime))
		})
	})

	Describe("Frame", func() {
		It("should evaluate in locals over globals", func() {
			var seen engine.Frame
			rec.onLine = func(f engine.Frame) error {
				if f.Function() == "show" {
					seen = f
				}
				return nil
			}

			Expect(run("x = 1\ny = 10\nfunc show(x)\n  pass\nend\ncall show(5)\n")).To(Succeed())

			Expect(seen).NotTo(BeNil())
			Expect(seen.Arguments()).To(Equal("x=5"))
			Expect(seen.Eval("x + y")).To(Equal(int64(15)))
			Expect(seen.Locals()).To(HaveKeyWithValue("x", int64(5)))
			Expect(seen.Globals()).To(HaveKeyWithValue("x", int64(1)))
			Expect(seen.Parent().Function()).To(Equal("<module>"))
		})

		It("should report undefined names", func() {
			var evalErr error
			rec.onLine = func(f engine.Frame) error {
				_, evalErr = f.Eval("nope > 1")
				return nil
			}

			Expect(run("pass\n")).To(Succeed())
			Expect(engine.IsUndefined(evalErr)).To(BeTrue())
		})

		It("should convert lists and maps", func() {
			var v any
			rec.onLine = func(f engine.Frame) error {
				var err error
				v, err = f.Eval("{'a': [1, 2.5, 'x', null]}")
				return err
			}

			Expect(run("pass\n")).To(Succeed())
			Expect(v).To(Equal(map[string]any{"a": []any{int64(1), 2.5, "x", nil}}))
		})

		It("should move to another line of the block", func() {
			rec.onLine = func(f engine.Frame) error {
				if f.Line() == 1 {
					return f.SetLine(3)
				}
				return nil
			}

			Expect(run("print 1\nprint 2\nprint 3\n")).To(Succeed())
			Expect(rec.out.String()).To(Equal("3\n"))
		})

		It("should refuse lines outside the block", func() {
			var moveErr error
			rec.onLine = func(f engine.Frame) error {
				if f.Line() == 2 {
					moveErr = f.SetLine(5)
				}
				return nil
			}

			Expect(run("func f()\n  pass\nend\ncall f()\nprint 1\n")).To(Succeed())
			Expect(moveErr).To(HaveOccurred())
		})
	})

	Describe("Call", func() {
		It("should run the top level before the function", func() {
			prog := compile("base = 40\nfunc test_answer()\n  assert base + 2 == 42\nend\n")

			Expect(rt.Call(prog, "test_answer", rec.env())).To(Succeed())
			Expect(rec.lineNumbers()).To(Equal([]int{1, 3}))
		})

		It("should report unknown functions", func() {
			err := rt.Call(compile("pass\n"), "test_missing", rec.env())

			var exc *engine.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Kind).To(Equal(KindName))
		})
	})

	Describe("Exec", func() {
		It("should ask for more input inside an open block", func() {
			res := rt.Exec(nil, "if true", rec.env())
			Expect(res.Kind).To(Equal(engine.StatementNeedsMoreInput))

			res = rt.Exec(nil, "if true\nprint 'yes'\nend", rec.env())
			Expect(res.Kind).To(Equal(engine.StatementComplete))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(rec.out.String()).To(Equal("yes\n"))
		})

		It("should report syntax errors", func() {
			res := rt.Exec(nil, "x = (", rec.env())
			Expect(res.Kind).To(Equal(engine.StatementSyntaxError))
			Expect(res.Syntax).NotTo(BeNil())
		})

		It("should keep a shell scope between statements and echo values", func() {
			Expect(rt.Exec(nil, "x = 5", rec.env()).Err).NotTo(HaveOccurred())
			Expect(rt.Exec(nil, "x * 2", rec.env()).Err).NotTo(HaveOccurred())
			Expect(rec.out.String()).To(Equal("10\n"))
		})

		It("should run in a stopped frame without moving it", func() {
			var res engine.StatementResult
			rec.onLine = func(f engine.Frame) error {
				if f.Line() == 2 {
					res = rt.Exec(f, "x = x + 100", &engine.Env{Hooks: &recorder{}, Console: rec})
					Expect(f.Line()).To(Equal(2))
				}
				return nil
			}

			Expect(run("x = 1\nprint x\n")).To(Succeed())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(rec.out.String()).To(Equal("101\n"))
		})

		It("should return runtime failures", func() {
			res := rt.Exec(nil, "print nope", rec.env())
			Expect(res.Kind).To(Equal(engine.StatementComplete))
			Expect(res.Err).To(HaveOccurred())
		})
	})
})
