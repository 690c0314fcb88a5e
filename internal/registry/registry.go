// Package registry tracks backend connections for one debug session: sockets
// that have connected but not yet announced themselves (pending) and sockets
// that sent their DebuggerId handshake (named). The first named connection
// becomes the session master.
//
// A Registry is owned by a single dispatch goroutine and does no locking.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrAlreadyNamed is returned when a connection announces itself twice.
	ErrAlreadyNamed = errors.New("connection already has a debugger id")

	// ErrDuplicateID is returned when a live connection already owns the id.
	ErrDuplicateID = errors.New("debugger id already in use")

	// ErrUnknownConnection is returned for connections never accepted.
	ErrUnknownConnection = errors.New("unknown connection")
)

// Hooks are invoked synchronously from the registry's mutators.
type Hooks struct {
	MasterAssigned func(id string)
	MasterLost     func(id string)
	Empty          func()
}

// Removal describes what a Remove call did.
type Removal struct {
	ID        string
	Pending   bool
	WasMaster bool
	Empty     bool
}

type Registry[C comparable] struct {
	pending map[C]struct{}
	named   map[string]C
	ids     map[C]string
	master  string
	hooks   Hooks
}

func New[C comparable](hooks Hooks) *Registry[C] {
	return &Registry[C]{
		pending: make(map[C]struct{}),
		named:   make(map[string]C),
		ids:     make(map[C]string),
		hooks:   hooks,
	}
}

// AcceptPending records a freshly accepted connection.
func (r *Registry[C]) AcceptPending(c C) {
	if _, named := r.ids[c]; named {
		return
	}
	r.pending[c] = struct{}{}
}

// AssignID moves a pending connection into the named map. It reports whether
// the connection became master.
func (r *Registry[C]) AssignID(c C, id string) (bool, error) {
	if existing, named := r.ids[c]; named {
		return false, fmt.Errorf("%w: %s", ErrAlreadyNamed, existing)
	}
	if _, pending := r.pending[c]; !pending {
		return false, ErrUnknownConnection
	}
	if _, taken := r.named[id]; taken {
		return false, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	delete(r.pending, c)
	r.named[id] = c
	r.ids[c] = id

	if r.master != "" {
		return false, nil
	}
	r.master = id
	if r.hooks.MasterAssigned != nil {
		r.hooks.MasterAssigned(id)
	}
	return true, nil
}

// Remove forgets a connection. Pending membership is checked first since a
// socket may disconnect before ever announcing itself.
func (r *Registry[C]) Remove(c C) (Removal, bool) {
	if _, pending := r.pending[c]; pending {
		delete(r.pending, c)
		return Removal{Pending: true}, true
	}

	id, named := r.ids[c]
	if !named {
		return Removal{}, false
	}
	delete(r.ids, c)
	delete(r.named, id)

	rm := Removal{ID: id}
	if id == r.master {
		r.master = ""
		rm.WasMaster = true
		if r.hooks.MasterLost != nil {
			r.hooks.MasterLost(id)
		}
	}
	if len(r.named) == 0 && len(r.pending) == 0 {
		rm.Empty = true
		if r.hooks.Empty != nil {
			r.hooks.Empty()
		}
	}
	return rm, true
}

// Reset drops every connection without invoking hooks.
func (r *Registry[C]) Reset() {
	r.pending = make(map[C]struct{})
	r.named = make(map[string]C)
	r.ids = make(map[C]string)
	r.master = ""
}

// ListIDs returns the named debugger ids in sorted order.
func (r *Registry[C]) ListIDs() []string {
	ids := make([]string, 0, len(r.named))
	for id := range r.named {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry[C]) Lookup(id string) (C, bool) {
	c, ok := r.named[id]
	return c, ok
}

func (r *Registry[C]) IDOf(c C) (string, bool) {
	id, ok := r.ids[c]
	return id, ok
}

func (r *Registry[C]) IsPending(c C) bool {
	_, ok := r.pending[c]
	return ok
}

// Known reports whether c is pending or named.
func (r *Registry[C]) Known(c C) bool {
	if r.IsPending(c) {
		return true
	}
	_, ok := r.ids[c]
	return ok
}

func (r *Registry[C]) Pending() []C {
	out := make([]C, 0, len(r.pending))
	for c := range r.pending {
		out = append(out, c)
	}
	return out
}

func (r *Registry[C]) Master() string {
	return r.master
}

func (r *Registry[C]) HasMaster() bool {
	return r.master != ""
}

// Len counts pending and named connections.
func (r *Registry[C]) Len() int {
	return len(r.pending) + len(r.named)
}
