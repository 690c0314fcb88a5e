package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// LengthWidth is the number of ASCII digits in a frame's length prefix.
	LengthWidth = 9
	// MaxPayload is the largest payload a 9-digit prefix can describe.
	MaxPayload = 999_999_999
)

// Frame is one protocol message in either direction.
type Frame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// NewFrame marshals params into a frame. A nil params value encodes as an
// empty object so the envelope always carries a mapping.
func NewFrame(method string, params any) (Frame, error) {
	if params == nil {
		return Frame{Method: method, Params: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	return Frame{Method: method, Params: raw}, nil
}

// MustFrame is NewFrame for params that are known to marshal.
func MustFrame(method string, params any) Frame {
	f, err := NewFrame(method, params)
	if err != nil {
		panic(err)
	}
	return f
}

// Bind unmarshals the frame params into v.
func (f Frame) Bind(v any) error {
	if len(f.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Params, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s params: %w", f.Method, err)
	}
	return nil
}

// DebuggerID returns the debuggerId field carried in the params, if any.
func (f Frame) DebuggerID() string {
	var origin struct {
		DebuggerID string `json:"debuggerId"`
	}
	if err := json.Unmarshal(f.Params, &origin); err != nil {
		return ""
	}
	return origin.DebuggerID
}

// WithDebuggerID returns a copy of the frame whose params object carries the
// given debuggerId, overwriting any existing value.
func (f Frame) WithDebuggerID(id string) (Frame, error) {
	fields := map[string]json.RawMessage{}
	if len(f.Params) > 0 && !bytes.Equal(bytes.TrimSpace(f.Params), []byte("null")) {
		if err := json.Unmarshal(f.Params, &fields); err != nil {
			return Frame{}, fmt.Errorf("params of %s are not an object: %w", f.Method, err)
		}
	}
	idRaw, err := json.Marshal(id)
	if err != nil {
		return Frame{}, err
	}
	fields["debuggerId"] = idRaw
	raw, err := json.Marshal(fields)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Method: f.Method, Params: raw}, nil
}

// Encode renders a frame as its length prefix, JSON envelope and a trailing
// newline.
func Encode(f Frame) ([]byte, error) {
	if f.Params == nil {
		f.Params = json.RawMessage(`{}`)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to marshal frame %s: %w", f.Method, err)
	}
	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	out := make([]byte, 0, LengthWidth+len(payload)+1)
	out = fmt.Appendf(out, "%0*d", LengthWidth, len(payload))
	out = append(out, payload...)
	out = append(out, '\n')
	return out, nil
}

// Decode parses the first frame in buf. It returns the number of bytes the
// frame occupied, including any separator newlines before it.
//
// ErrIncomplete is returned with consumed == 0 when buf does not yet hold the
// whole frame. A *MalformedError is returned with consumed covering the bad
// input so the caller can discard it and keep going.
func Decode(buf []byte) (Frame, int, error) {
	start := 0
	for start < len(buf) && (buf[start] == '\n' || buf[start] == '\r') {
		start++
	}
	rest := buf[start:]
	if len(rest) < LengthWidth {
		return Frame{}, 0, ErrIncomplete
	}

	n, err := parseLength(rest[:LengthWidth])
	if err != nil {
		skip := bytes.IndexByte(rest, '\n')
		if skip < 0 {
			skip = len(rest)
		} else {
			skip++
		}
		return Frame{}, start + skip, &MalformedError{Line: append([]byte(nil), rest[:skip]...), Err: err}
	}
	if len(rest) < LengthWidth+n {
		return Frame{}, 0, ErrIncomplete
	}

	payload := rest[LengthWidth : LengthWidth+n]
	consumed := start + LengthWidth + n

	f, err := decodeEnvelope(payload)
	if err != nil {
		return Frame{}, consumed, &MalformedError{Line: append([]byte(nil), payload...), Err: err}
	}
	return f, consumed, nil
}

func parseLength(prefix []byte) (int, error) {
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid length prefix %q", prefix)
		}
	}
	n, err := strconv.Atoi(string(prefix))
	if err != nil {
		return 0, fmt.Errorf("invalid length prefix %q: %w", prefix, err)
	}
	return n, nil
}

func decodeEnvelope(payload []byte) (Frame, error) {
	var envelope struct {
		Method *string         `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Frame{}, fmt.Errorf("undecodable envelope: %w", err)
	}
	if envelope.Method == nil {
		return Frame{}, fmt.Errorf("envelope has no method")
	}
	params := envelope.Params
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		params = json.RawMessage(`{}`)
	} else if params[0] != '{' {
		return Frame{}, fmt.Errorf("params of %s are not a mapping", *envelope.Method)
	}
	return Frame{Method: *envelope.Method, Params: params}, nil
}
