package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params any
	}{
		{name: "empty params", method: RequestBanner},
		{name: "breakpoint", method: RequestBreakpoint, params: BreakpointParams{Filename: "a.py", Line: 10, SetBreakpoint: true}},
		{name: "embedded newline", method: ExecuteStatement, params: StatementParams{Statement: "x = 1\ny = 2\n"}},
		{name: "unicode", method: ClientOutput, params: OutputParams{Text: "héllo wörld ✓ 日本語"}},
		{name: "html characters", method: ExecuteStatement, params: StatementParams{Statement: "a < b && c > d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFrame(tt.method, tt.params)
			require.NoError(t, err)

			data, err := Encode(f)
			require.NoError(t, err)

			got, consumed, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, len(data)-1, consumed)
			assert.Equal(t, f, got)
		})
	}
}

func TestEncodeLengthPrefix(t *testing.T) {
	f := MustFrame(RequestBanner, nil)
	data, err := Encode(f)
	require.NoError(t, err)

	payload := `{"method":"RequestBanner","params":{}}`
	assert.Equal(t, "000000038"+payload+"\n", string(data))
	assert.Len(t, payload, 38)
}

func TestDecodeIncomplete(t *testing.T) {
	payload := `{"method":"RequestStack","params":{"a":1}}`
	require.Len(t, payload, 42)
	full := "000000042" + payload

	_, consumed, err := Decode([]byte(full[:9+40]))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Zero(t, consumed)

	f, consumed, err := Decode([]byte(full))
	require.NoError(t, err)
	assert.Equal(t, len(full), consumed)
	assert.Equal(t, RequestStack, f.Method)
	assert.JSONEq(t, `{"a":1}`, string(f.Params))
}

func TestDecodeShortPrefix(t *testing.T) {
	_, consumed, err := Decode([]byte("0000"))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Zero(t, consumed)
}

func TestDecodeMalformed(t *testing.T) {
	t.Run("bad payload is skipped", func(t *testing.T) {
		bad := "000000005hello"
		good, err := Encode(MustFrame(RequestStack, nil))
		require.NoError(t, err)

		buf := append([]byte(bad), good...)
		_, consumed, err := Decode(buf)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
		assert.ErrorIs(t, err, ErrMalformed)
		assert.NotErrorIs(t, err, ErrIncomplete)
		var m *MalformedError
		require.ErrorAs(t, err, &m)
		assert.Equal(t, []byte("hello"), m.Line)
		assert.Equal(t, len(bad), consumed)

		f, _, err := Decode(buf[consumed:])
		require.NoError(t, err)
		assert.Equal(t, RequestStack, f.Method)
	})

	t.Run("bad prefix skips the line", func(t *testing.T) {
		buf := []byte("garbage!!\n")
		_, consumed, err := Decode(buf)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Equal(t, len(buf), consumed)
	})

	t.Run("params must be a mapping", func(t *testing.T) {
		payload := `{"method":"X","params":[1]}`
		buf := []byte("0000000" + "27" + payload)
		_, _, err := Decode(buf)
		assert.True(t, IsMalformed(err))
	})

	t.Run("method is required", func(t *testing.T) {
		payload := `{"params":{}}`
		buf := []byte("0000000" + "13" + payload)
		_, _, err := Decode(buf)
		assert.True(t, IsMalformed(err))
	})
}

func TestDecodeNullParams(t *testing.T) {
	payload := `{"method":"RequestStack","params":null}`
	buf := []byte("0000000" + "39" + payload)
	f, _, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{}`), f.Params)
}

func TestWithDebuggerID(t *testing.T) {
	f := MustFrame(ResponseLine, StackParams{ThreadName: "MainThread"})
	tagged, err := f.WithDebuggerID("host/1/main")
	require.NoError(t, err)
	assert.Equal(t, "host/1/main", tagged.DebuggerID())

	var p StackParams
	require.NoError(t, tagged.Bind(&p))
	assert.Equal(t, "MainThread", p.ThreadName)

	empty, err := Frame{Method: ResponseOK}.WithDebuggerID("x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"debuggerId":"x"}`, string(empty.Params))
}

func TestConditionNull(t *testing.T) {
	raw, err := json.Marshal(BreakpointParams{Filename: "a.py", Line: 10, SetBreakpoint: true})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"condition":null`)

	var p BreakpointParams
	require.NoError(t, json.Unmarshal([]byte(`{"condition":"x > 1"}`), &p))
	assert.Equal(t, Condition("x > 1"), p.Condition)
}

func TestReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(MustFrame(RequestStep, nil)))
	buf.WriteString("000000003abc\n")
	require.NoError(t, w.WriteFrame(MustFrame(ExecuteStatement, StatementParams{Statement: "a\nb"})))

	r := NewReader(&buf)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, RequestStep, f.Method)

	_, err = r.ReadFrame()
	assert.True(t, IsMalformed(err))

	f, err = r.ReadFrame()
	require.NoError(t, err)
	var p StatementParams
	require.NoError(t, f.Bind(&p))
	assert.Equal(t, "a\nb", p.Statement)

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderByteAtATime(t *testing.T) {
	data, err := Encode(MustFrame(RequestBanner, nil))
	require.NoError(t, err)

	r := NewReader(&oneByteReader{r: strings.NewReader(string(data))})
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, RequestBanner, f.Method)
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader(strings.NewReader("000000042{\"method\""))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type oneByteReader struct {
	r io.Reader
}

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}
