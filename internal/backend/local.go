package backend

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bingosuite/rdb/internal/engine"
	"golang.org/x/term"
)

// Local runs programs without an IDE, on the process's own terminal.
type Local struct {
	Runtime engine.Runtime
	Stdin   *os.File
	Stdout  io.Writer
	Stderr  io.Writer
	// Spawn starts a child program. Children of a local run are local too.
	Spawn func(file string) error

	in *bufio.Reader
}

// Run compiles and executes file to completion.
func (l *Local) Run(file string, argv []string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	prog, err := l.Runtime.Compile(file, src)
	if err != nil {
		return err
	}
	if l.in == nil {
		l.in = bufio.NewReader(l.Stdin)
	}
	return l.Runtime.Run(prog, &engine.Env{
		Hooks:   localHooks{stderr: l.Stderr},
		Console: l,
		Argv:    argv,
		Spawn:   l.Spawn,
	})
}

func (l *Local) Output(text string) {
	_, _ = io.WriteString(l.Stdout, text)
}

// Input reads a line from the terminal. Without echo the terminal is put in
// no-echo mode when stdin is one.
func (l *Local) Input(prompt string, echo bool) (string, error) {
	l.Output(prompt)
	fd := int(l.Stdin.Fd())
	if !echo && term.IsTerminal(fd) {
		line, err := term.ReadPassword(fd)
		l.Output("\n")
		return string(line), err
	}
	line, err := l.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type localHooks struct {
	stderr io.Writer
}

func (localHooks) Line(engine.Frame) error { return nil }
func (localHooks) Call(engine.Frame) {}
func (localHooks) Return(engine.Frame) {}

// Exception prints the traceback of an unhandled exception.
func (h localHooks) Exception(f engine.Frame, exc *engine.Exception) error {
	fmt.Fprintln(h.stderr, "Traceback (most recent call last):")
	for _, line := range engine.Traceback(f, exc) {
		fmt.Fprintln(h.stderr, "  "+line)
	}
	return nil
}
