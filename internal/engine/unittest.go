package engine

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/bingosuite/rdb/internal/protocol"
)

const (
	testPrefix = "test_"
	// failureKind marks exceptions that count as test failures rather than
	// errors.
	failureKind = "AssertionError"
)

// suite is the set of tests prepared by RequestUTPrepare.
type suite struct {
	filename string
	prog     Program
	tests    []Function
	active   bool
	stop     bool
}

func testCases(filename string, prog Program) []protocol.TestCase {
	cases := []protocol.TestCase{}
	for _, fn := range prog.Functions() {
		if !strings.HasPrefix(fn.Name, testPrefix) {
			continue
		}
		cases = append(cases, protocol.TestCase{
			ID:          testID(filename, fn.Name),
			Description: fn.Doc,
			Filename:    filename,
			LineNumber:  fn.Line,
		})
	}
	return cases
}

// testID is module.function, the module being the file's base name.
func testID(filename, name string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return base + "." + name
}

func (e *Engine) utDiscover(p protocol.UTDiscoverParams) error {
	filename := e.resolve(p.Workdir, p.Filename)
	resp := protocol.UTDiscoverResponse{TestCases: []protocol.TestCase{}}
	prog, err := e.compile(filename)
	if err != nil {
		resp.Exception, resp.Message = exceptionOf(err)
	} else {
		resp.TestCases = testCases(filename, prog)
	}
	e.emit(protocol.ResponseUTDiscover, resp)
	return nil
}

func (e *Engine) utPrepare(p protocol.UTPrepareParams) error {
	filename := e.resolve(p.Workdir, p.Filename)
	e.suite = nil

	prog, err := e.compile(filename)
	if err != nil {
		resp := protocol.UTPreparedResponse{}
		resp.Exception, resp.Message = exceptionOf(err)
		e.emit(protocol.ResponseUTPrepared, resp)
		return nil
	}

	wanted := p.Failed
	if len(wanted) == 0 {
		wanted = p.TestCases
	}
	selected := make(map[string]struct{}, len(wanted))
	for _, id := range wanted {
		selected[id] = struct{}{}
	}
	s := &suite{filename: filename, prog: prog}
	for _, fn := range prog.Functions() {
		if !strings.HasPrefix(fn.Name, testPrefix) {
			continue
		}
		if _, ok := selected[testID(filename, fn.Name)]; ok || len(selected) == 0 {
			s.tests = append(s.tests, fn)
		}
	}
	e.suite = s
	e.emit(protocol.ResponseUTPrepared, protocol.UTPreparedResponse{Count: len(s.tests)})
	return nil
}

func (e *Engine) utRun(p protocol.UTRunParams) error {
	s := e.suite
	if s == nil {
		e.emit(protocol.ResponseUTFinished, protocol.UTFinishedResponse{Status: 1})
		return errors.New("no tests prepared")
	}
	if e.running {
		return errors.New("a program is already running")
	}

	m := modeFree
	if p.Debug {
		m = modeContinue
	}
	s.active, s.stop = true, false
	e.running, e.aborting = true, false
	defer func() {
		s.active = false
		e.running, e.finished, e.last = false, true, nil
	}()

	status := 0
	for _, fn := range s.tests {
		if s.stop || e.aborting || e.terminal != nil {
			break
		}
		id := testID(s.filename, fn.Name)
		e.emit(protocol.ResponseUTStartTest, protocol.UTTestParams{TestName: fn.Name, Description: fn.Doc})

		e.mode, e.last = m, nil
		err := e.rt.Call(s.prog, fn.Name, e.env(nil))
		ok := e.reportTest(s.filename, fn.Name, id, err)

		e.emit(protocol.ResponseUTStopTest, protocol.UTTestParams{})
		if !ok {
			status = 1
			if p.FailFast {
				break
			}
		}
	}
	if errors.Is(e.terminal, ErrDisconnected) {
		return nil
	}
	e.emit(protocol.ResponseUTFinished, protocol.UTFinishedResponse{Status: status})
	return nil
}

// reportTest emits the outcome of one test and reports whether it passed.
func (e *Engine) reportTest(filename, name, id string, err error) bool {
	params := protocol.UTTestParams{TestName: name, ID: id, Filename: filename}
	var exc *Exception
	switch {
	case err == nil:
		e.emit(protocol.ResponseUTTestSucceeded, params)
		return true
	case errors.As(err, &exc):
		params.Traceback = Traceback(exc.Frame, exc)
		if exc.Kind == failureKind {
			e.emit(protocol.ResponseUTTestFailed, params)
		} else {
			e.emit(protocol.ResponseUTTestErrored, params)
		}
	default:
		params.Traceback = []string{err.Error()}
		e.emit(protocol.ResponseUTTestErrored, params)
	}
	return false
}

func (e *Engine) utStop(protocol.Frame) error {
	if e.suite != nil {
		e.suite.stop = true
	}
	return nil
}

func exceptionOf(err error) (kind, message string) {
	var syn *SyntaxError
	if errors.As(err, &syn) {
		return "SyntaxError", syn.Error()
	}
	return "IOError", err.Error()
}
