// Package breakpoint holds the breakpoint and watch-expression registries.
//
// Table and WatchTable are the backend's tables of record and are owned by
// the execution engine's goroutine; they are not safe for concurrent use.
// Mirror is the IDE-side display copy.
package breakpoint

import (
	"path/filepath"
	"sort"
)

// Key identifies a breakpoint location.
type Key struct {
	File string
	Line int
}

func NewKey(file string, line int) Key {
	return Key{File: filepath.Clean(file), Line: line}
}

type Breakpoint struct {
	File        string
	Line        int
	Temporary   bool
	Condition   string
	Enabled     bool
	IgnoreCount int

	// Inert is set after the condition failed to evaluate. The breakpoint
	// stays registered but never fires until it is set again.
	Inert bool
}

func (b *Breakpoint) Key() Key {
	return Key{File: b.File, Line: b.Line}
}

// Pass records one pass through the location with the condition satisfied
// and reports whether the breakpoint fires. A positive ignore count absorbs
// the pass instead.
func (b *Breakpoint) Pass() bool {
	if b.IgnoreCount > 0 {
		b.IgnoreCount--
		return false
	}
	return true
}

// Table maps locations to breakpoints, at most one per location.
type Table struct {
	entries map[Key]*Breakpoint
	files   map[string]int
}

func NewTable() *Table {
	return &Table{
		entries: make(map[Key]*Breakpoint),
		files:   make(map[string]int),
	}
}

// Set creates or replaces the breakpoint at file:line. A replaced breakpoint
// starts over enabled, with no ignore count and a fresh condition.
func (t *Table) Set(file string, line int, temporary bool, condition string) *Breakpoint {
	key := NewKey(file, line)
	if _, exists := t.entries[key]; !exists {
		t.files[key.File]++
	}
	bp := &Breakpoint{
		File:      key.File,
		Line:      line,
		Temporary: temporary,
		Condition: condition,
		Enabled:   true,
	}
	t.entries[key] = bp
	return bp
}

// Remove deletes the breakpoint at file:line, reporting whether one existed.
func (t *Table) Remove(file string, line int) bool {
	key := NewKey(file, line)
	if _, exists := t.entries[key]; !exists {
		return false
	}
	delete(t.entries, key)
	if t.files[key.File]--; t.files[key.File] <= 0 {
		delete(t.files, key.File)
	}
	return true
}

func (t *Table) Get(file string, line int) (*Breakpoint, bool) {
	bp, ok := t.entries[NewKey(file, line)]
	return bp, ok
}

func (t *Table) Enable(file string, line int, enable bool) bool {
	bp, ok := t.Get(file, line)
	if ok {
		bp.Enabled = enable
	}
	return ok
}

func (t *Table) Ignore(file string, line int, count int) bool {
	bp, ok := t.Get(file, line)
	if ok {
		bp.IgnoreCount = max(count, 0)
	}
	return ok
}

// HasFile reports whether any breakpoint is set in file.
func (t *Table) HasFile(file string) bool {
	return t.files[filepath.Clean(file)] > 0
}

func (t *Table) Len() int {
	return len(t.entries)
}

// All returns the breakpoints ordered by file, then line.
func (t *Table) All() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(t.entries))
	for _, bp := range t.entries {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}
