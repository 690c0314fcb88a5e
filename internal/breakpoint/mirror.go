package breakpoint

import (
	"sort"
	"sync"
)

// Mirror is the IDE's display copy of the breakpoints and watches it has
// asked backends to hold. It is kept consistent by the explicit clear events
// backends emit, and is replayed onto newly connected backends.
type Mirror struct {
	mu          sync.RWMutex
	breakpoints map[Key]Breakpoint
	watches     map[string]Watch
	watchOrder  []string
}

func NewMirror() *Mirror {
	return &Mirror{
		breakpoints: make(map[Key]Breakpoint),
		watches:     make(map[string]Watch),
	}
}

func (m *Mirror) SetBreakpoint(file string, line int, temporary bool, condition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NewKey(file, line)
	m.breakpoints[key] = Breakpoint{
		File:      key.File,
		Line:      line,
		Temporary: temporary,
		Condition: condition,
		Enabled:   true,
	}
}

func (m *Mirror) ClearBreakpoint(file string, line int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NewKey(file, line)
	_, ok := m.breakpoints[key]
	delete(m.breakpoints, key)
	return ok
}

func (m *Mirror) EnableBreakpoint(file string, line int, enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NewKey(file, line)
	if bp, ok := m.breakpoints[key]; ok {
		bp.Enabled = enable
		m.breakpoints[key] = bp
	}
}

func (m *Mirror) IgnoreBreakpoint(file string, line int, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NewKey(file, line)
	if bp, ok := m.breakpoints[key]; ok {
		bp.IgnoreCount = max(count, 0)
		m.breakpoints[key] = bp
	}
}

// MarkConditionError flags a breakpoint whose condition a backend rejected.
func (m *Mirror) MarkConditionError(file string, line int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NewKey(file, line)
	if bp, ok := m.breakpoints[key]; ok {
		bp.Inert = true
		m.breakpoints[key] = bp
	}
}

func (m *Mirror) SetWatch(condition string, temporary bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expr, mode := ParseCondition(condition)
	if _, exists := m.watches[condition]; !exists {
		m.watchOrder = append(m.watchOrder, condition)
	}
	m.watches[condition] = Watch{
		Condition:  condition,
		Expression: expr,
		Mode:       mode,
		Temporary:  temporary,
		Enabled:    true,
	}
}

func (m *Mirror) ClearWatch(condition string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watches[condition]; !ok {
		return false
	}
	delete(m.watches, condition)
	for i, c := range m.watchOrder {
		if c == condition {
			m.watchOrder = append(m.watchOrder[:i], m.watchOrder[i+1:]...)
			break
		}
	}
	return true
}

func (m *Mirror) EnableWatch(condition string, enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[condition]; ok {
		w.Enabled = enable
		m.watches[condition] = w
	}
}

func (m *Mirror) IgnoreWatch(condition string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[condition]; ok {
		w.IgnoreCount = max(count, 0)
		m.watches[condition] = w
	}
}

func (m *Mirror) MarkWatchError(condition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[condition]; ok {
		w.Inert = true
		m.watches[condition] = w
	}
}

// Breakpoints returns a snapshot ordered by file, then line.
func (m *Mirror) Breakpoints() []Breakpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Breakpoint, 0, len(m.breakpoints))
	for _, bp := range m.breakpoints {
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

// Watches returns a snapshot in creation order.
func (m *Mirror) Watches() []Watch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Watch, 0, len(m.watchOrder))
	for _, c := range m.watchOrder {
		out = append(out, m.watches[c])
	}
	return out
}
