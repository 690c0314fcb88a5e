package main

import (
	"bytes"
	"testing"

	"github.com/bingosuite/rdb/internal/protocol"
	"github.com/bingosuite/rdb/pkg/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderString(t *testing.T, typ ws.EventType, data any) string {
	t.Helper()
	msg, err := ws.NewMessage(typ, data)
	require.NoError(t, err)
	var buf bytes.Buffer
	render(&buf, msg)
	return buf.String()
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		typ  ws.EventType
		data any
		want string
	}{
		{
			name: "line",
			typ:  ws.EventLine,
			data: ws.DebuggerEvent{DebuggerID: "h/1/main", Params: protocol.StackParams{
				Stack: []protocol.StackEntry{{Filename: "/w/a.rdb", Line: 4, Function: "f", Arguments: "x"}},
			}},
			want: "> /w/a.rdb:4 in f(x)\n",
		},
		{
			name: "output",
			typ:  ws.EventOutput,
			data: ws.OutputEvent{DebuggerID: "h/1/main", Text: "hello\n"},
			want: "hello\n",
		},
		{
			name: "connected",
			typ:  ws.EventConnected,
			data: ws.ConnectedEvent{DebuggerID: "h/1/main", Master: true},
			want: "[h/1/main connected as master]\n",
		},
		{
			name: "exit",
			typ:  ws.EventExit,
			data: ws.DebuggerEvent{DebuggerID: "h/1/main", Params: protocol.ExitParams{Status: 2}},
			want: "[h/1/main exited with status 2]\n",
		},
		{
			name: "unformatted",
			typ:  ws.EventBanner,
			data: ws.DebuggerEvent{DebuggerID: "h/1/main"},
			want: "[banner h/1/main]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderString(t, tt.typ, tt.data))
		})
	}
}

func TestParseLocation(t *testing.T) {
	file, line, err := parseLocation("/w/a:b.rdb:12")
	require.NoError(t, err)
	assert.Equal(t, "/w/a:b.rdb", file)
	assert.Equal(t, 12, line)

	_, _, err = parseLocation("a.rdb")
	assert.Error(t, err)
	_, _, err = parseLocation("a.rdb:0")
	assert.Error(t, err)
}
