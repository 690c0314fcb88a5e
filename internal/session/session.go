package session

import (
	"github.com/google/uuid"
)

// Session is the state of one debug run. It is recreated on every restart.
type Session struct {
	ID           uuid.UUID
	Capabilities int
	ClientType   string
	Interpreter  string
	Script       string
	AutoContinue bool

	// continued holds ids that were auto-continued once. It is cleared only
	// when the session empties.
	continued map[string]struct{}
	// masterReady is closed when the first master is assigned.
	masterReady chan struct{}
}

func newSession(autoContinue bool) *Session {
	return &Session{
		ID:           uuid.New(),
		AutoContinue: autoContinue,
		continued:    make(map[string]struct{}),
		masterReady:  make(chan struct{}),
	}
}

func (s *Session) markMaster() {
	select {
	case <-s.masterReady:
	default:
		close(s.masterReady)
	}
}

// Info is a snapshot of a Session taken on the dispatch goroutine.
type Info struct {
	ID           string   `json:"id"`
	Master       string   `json:"master"`
	Debuggers    []string `json:"debuggers"`
	Capabilities int      `json:"capabilities"`
	ClientType   string   `json:"clientType"`
	Interpreter  string   `json:"interpreter"`
	Script       string   `json:"script"`
	AutoContinue bool     `json:"autoContinue"`
	Queued       int      `json:"queued"`
	// Connections counts named and pending sockets.
	Connections  int      `json:"connections"`
}
