package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bingosuite/rdb/internal/engine"
)

type kind int

const (
	stmtPass kind = iota
	stmtAssign
	stmtCallAssign
	stmtCall
	stmtPrint
	stmtIf
	stmtWhile
	stmtFunc
	stmtReturn
	stmtRaise
	stmtAssert
	stmtInput
	stmtGetpass
	stmtSpawn
	// stmtExpr is a bare expression. The shell prints its value.
	stmtExpr
)

type stmt struct {
	kind kind
	line int
	// name is the assignment or input target.
	name   string
	callee string
	expr   string
	args   []string
	body   []*stmt
	orelse []*stmt
}

type function struct {
	name   string
	params []string
	body   []*stmt
	line   int
	doc    string
}

func (f *function) TypeName() string { return "function" }

func (f *function) String() string {
	return fmt.Sprintf("<function %s(%s)>", f.name, strings.Join(f.params, ", "))
}

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)
	callRe   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)$`)
	inputRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\s+(.+))?$`)
)

var keywords = map[string]kind{
	"print":   stmtPrint,
	"if":      stmtIf,
	"while":   stmtWhile,
	"func":    stmtFunc,
	"call":    stmtCall,
	"return":  stmtReturn,
	"raise":   stmtRaise,
	"assert":  stmtAssert,
	"input":   stmtInput,
	"getpass": stmtGetpass,
	"spawn":   stmtSpawn,
	"pass":    stmtPass,
}

// parser turns source lines into a statement tree. Expressions are checked
// with check as they are parsed.
type parser struct {
	file  string
	lines []string
	pos   int
	check func(expr string) error

	funcs []*function
	doc   []string
}

type parseError struct {
	syntax *engine.SyntaxError
	// incomplete is set when the source ended inside an open block.
	incomplete bool
}

func (p *parser) fail(line int, col int, format string, args ...any) *parseError {
	return &parseError{syntax: &engine.SyntaxError{
		Message: fmt.Sprintf(format, args...),
		File:    p.file,
		Line:    line,
		Column:  col,
	}}
}

func parse(file, src string, check func(string) error) ([]*stmt, []*function, *parseError) {
	p := &parser{
		file:  file,
		lines: strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n"),
		check: check,
	}
	body, term, perr := p.block(0)
	if perr != nil {
		return nil, nil, perr
	}
	if term != "" {
		return nil, nil, p.fail(p.pos, 1, "unexpected %q", term)
	}
	return body, p.funcs, nil
}

// block parses statements until end, else or end of input and returns the
// terminator it stopped at.
func (p *parser) block(depth int) ([]*stmt, string, *parseError) {
	var body []*stmt
	for p.pos < len(p.lines) {
		raw := p.lines[p.pos]
		p.pos++
		lineNo := p.pos

		text, comment := stripComment(raw)
		text = strings.TrimSpace(text)
		if text == "" {
			if comment != "" && strings.TrimSpace(raw)[0] == '#' {
				p.doc = append(p.doc, strings.TrimSpace(strings.TrimPrefix(comment, "#")))
			} else {
				p.doc = nil
			}
			continue
		}
		col := strings.Index(raw, text) + 1

		if text == "end" || text == "else" {
			if depth == 0 {
				return nil, "", p.fail(lineNo, col, "unexpected %q", text)
			}
			p.doc = nil
			return body, text, nil
		}

		s, perr := p.statement(text, lineNo, col, depth)
		p.doc = nil
		if perr != nil {
			return nil, "", perr
		}
		if s != nil {
			body = append(body, s)
		}
	}
	if depth > 0 {
		perr := p.fail(len(p.lines), 1, "missing \"end\"")
		perr.incomplete = true
		return nil, "", perr
	}
	return body, "", nil
}

func (p *parser) statement(text string, line, col, depth int) (*stmt, *parseError) {
	word, rest := splitWord(text)
	k, isKeyword := keywords[word]
	if !isKeyword {
		if m := assignRe.FindStringSubmatch(text); m != nil {
			return p.assignment(m[1], strings.TrimSpace(m[2]), line, col)
		}
		if err := p.expr(text, line, col); err != nil {
			return nil, err
		}
		return &stmt{kind: stmtExpr, line: line, expr: text}, nil
	}

	s := &stmt{kind: k, line: line}
	switch k {
	case stmtPass:
		if rest != "" {
			return nil, p.fail(line, col, "unexpected text after pass")
		}
	case stmtPrint, stmtRaise, stmtAssert, stmtSpawn:
		if rest == "" {
			return nil, p.fail(line, col, "%s needs an expression", word)
		}
		s.expr = rest
		if err := p.expr(rest, line, col); err != nil {
			return nil, err
		}
	case stmtReturn:
		s.expr = rest
		if rest != "" {
			if err := p.expr(rest, line, col); err != nil {
				return nil, err
			}
		}
	case stmtCall:
		name, args, err := p.callTarget(rest, line, col)
		if err != nil {
			return nil, err
		}
		s.callee, s.args = name, args
	case stmtInput, stmtGetpass:
		m := inputRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, p.fail(line, col, "%s needs a variable name", word)
		}
		s.name, s.expr = m[1], m[2]
		if s.expr != "" {
			if err := p.expr(s.expr, line, col); err != nil {
				return nil, err
			}
		}
	case stmtIf, stmtWhile:
		if rest == "" {
			return nil, p.fail(line, col, "%s needs a condition", word)
		}
		s.expr = rest
		if err := p.expr(rest, line, col); err != nil {
			return nil, err
		}
		return p.compound(s, depth)
	case stmtFunc:
		return nil, p.funcDef(rest, line, col, depth)
	}
	return s, nil
}

func (p *parser) assignment(target, value string, line, col int) (*stmt, *parseError) {
	if word, rest := splitWord(value); word == "call" {
		name, args, err := p.callTarget(rest, line, col)
		if err != nil {
			return nil, err
		}
		return &stmt{kind: stmtCallAssign, line: line, name: target, callee: name, args: args}, nil
	}
	if err := p.expr(value, line, col); err != nil {
		return nil, err
	}
	return &stmt{kind: stmtAssign, line: line, name: target, expr: value}, nil
}

func (p *parser) compound(s *stmt, depth int) (*stmt, *parseError) {
	body, term, err := p.block(depth + 1)
	if err != nil {
		return nil, err
	}
	s.body = body
	if term == "else" {
		if s.kind != stmtIf {
			return nil, p.fail(p.pos, 1, "else without if")
		}
		orelse, term, err := p.block(depth + 1)
		if err != nil {
			return nil, err
		}
		if term != "end" {
			return nil, p.fail(p.pos, 1, "unexpected %q", term)
		}
		s.orelse = orelse
	}
	return s, nil
}

func (p *parser) funcDef(header string, line, col, depth int) *parseError {
	if depth > 0 {
		return p.fail(line, col, "functions can only be defined at top level")
	}
	doc := strings.Join(p.doc, "\n")
	m := callRe.FindStringSubmatch(header)
	if m == nil {
		return p.fail(line, col, "malformed function header")
	}
	fn := &function{name: m[1], line: line, doc: doc}
	for _, param := range splitArgs(m[2]) {
		if !identRe.MatchString(param) {
			return p.fail(line, col, "invalid parameter %q", param)
		}
		fn.params = append(fn.params, param)
	}
	body, term, err := p.block(depth + 1)
	if err != nil {
		return err
	}
	if term != "end" {
		return p.fail(p.pos, 1, "unexpected %q", term)
	}
	fn.body = body
	p.funcs = append(p.funcs, fn)
	return nil
}

func (p *parser) callTarget(text string, line, col int) (string, []string, *parseError) {
	m := callRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", nil, p.fail(line, col, "malformed call")
	}
	args := splitArgs(m[2])
	for _, arg := range args {
		if err := p.expr(arg, line, col); err != nil {
			return "", nil, err
		}
	}
	return m[1], args, nil
}

func (p *parser) expr(text string, line, col int) *parseError {
	if err := p.check(text); err != nil {
		return p.fail(line, col, "invalid expression %q: %v", text, err)
	}
	return nil
}

func splitWord(text string) (string, string) {
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}

// stripComment splits off a trailing # comment outside string literals.
func stripComment(line string) (string, string) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return line[:i], line[i:]
		}
	}
	return line, ""
}

// splitArgs splits a comma separated list at the top nesting level.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		args  []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}
