package engine

import (
	"github.com/bingosuite/rdb/internal/protocol"
)

// console relays program output and input over the control connection.
type console struct {
	e *Engine
}

var _ Console = (*console)(nil)

func (c *console) Output(text string) {
	c.e.output(text)
}

// Input asks the IDE for a line of input and blocks until it arrives. Other
// commands received meanwhile are handled as usual.
func (c *console) Input(prompt string, echo bool) (string, error) {
	e := c.e
	e.emit(protocol.RequestRaw, protocol.RawRequestParams{Prompt: prompt, Echo: echo})
	for {
		f, err := e.next()
		if err != nil {
			e.terminal = err
			return "", ErrAbort
		}
		if f.Method == protocol.RawInput {
			var p protocol.RawInputParams
			if err := f.Bind(&p); err != nil {
				return "", err
			}
			return p.Input, nil
		}
		e.dispatch(f)
		if e.aborting || e.terminal != nil {
			return "", ErrAbort
		}
	}
}
