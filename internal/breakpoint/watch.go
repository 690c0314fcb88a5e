package breakpoint

import (
	"reflect"
	"strings"
)

type TriggerMode int

const (
	TriggerAlways TriggerMode = iota
	TriggerOnChange
	TriggerOnCreation
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerOnChange:
		return "changed"
	case TriggerOnCreation:
		return "created"
	default:
		return "always"
	}
}

// Wire suffixes selecting a trigger mode.
const (
	suffixCreated = "??created??"
	suffixChanged = "??changed??"
)

// ParseCondition splits a wire condition into its expression and mode.
func ParseCondition(raw string) (string, TriggerMode) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasSuffix(trimmed, suffixCreated):
		return strings.TrimSpace(strings.TrimSuffix(trimmed, suffixCreated)), TriggerOnCreation
	case strings.HasSuffix(trimmed, suffixChanged):
		return strings.TrimSpace(strings.TrimSuffix(trimmed, suffixChanged)), TriggerOnChange
	default:
		return trimmed, TriggerAlways
	}
}

// FormatCondition is the inverse of ParseCondition.
func FormatCondition(expr string, mode TriggerMode) string {
	switch mode {
	case TriggerOnCreation:
		return expr + " " + suffixCreated
	case TriggerOnChange:
		return expr + " " + suffixChanged
	default:
		return expr
	}
}

type Watch struct {
	// Condition is the wire form, including any mode suffix. It is the key.
	Condition   string
	Expression  string
	Mode        TriggerMode
	Temporary   bool
	Enabled     bool
	IgnoreCount int
	Inert       bool

	defined bool
	value   any
}

// Pass has the same ignore-count semantics as Breakpoint.Pass.
func (w *Watch) Pass() bool {
	if w.IgnoreCount > 0 {
		w.IgnoreCount--
		return false
	}
	return true
}

// Observe feeds one evaluation result into the watch and reports whether its
// trigger condition is met. undefined means the expression references names
// that do not exist yet.
func (w *Watch) Observe(value any, undefined bool) bool {
	switch w.Mode {
	case TriggerOnCreation:
		was := w.defined
		w.defined = !undefined
		return !was && w.defined
	case TriggerOnChange:
		if undefined {
			w.defined = false
			w.value = nil
			return false
		}
		if !w.defined {
			w.defined = true
			w.value = value
			return false
		}
		if reflect.DeepEqual(w.value, value) {
			return false
		}
		w.value = value
		return true
	default:
		if undefined {
			return false
		}
		b, ok := value.(bool)
		return ok && b
	}
}

// WatchTable keeps watches in creation order, keyed by wire condition.
type WatchTable struct {
	order   []string
	entries map[string]*Watch
}

func NewWatchTable() *WatchTable {
	return &WatchTable{entries: make(map[string]*Watch)}
}

// Set creates or replaces the watch for condition.
func (t *WatchTable) Set(condition string, temporary bool) *Watch {
	expr, mode := ParseCondition(condition)
	if _, exists := t.entries[condition]; !exists {
		t.order = append(t.order, condition)
	}
	w := &Watch{
		Condition:  condition,
		Expression: expr,
		Mode:       mode,
		Temporary:  temporary,
		Enabled:    true,
	}
	t.entries[condition] = w
	return w
}

func (t *WatchTable) Remove(condition string) bool {
	if _, exists := t.entries[condition]; !exists {
		return false
	}
	delete(t.entries, condition)
	for i, c := range t.order {
		if c == condition {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *WatchTable) Get(condition string) (*Watch, bool) {
	w, ok := t.entries[condition]
	return w, ok
}

func (t *WatchTable) Enable(condition string, enable bool) bool {
	w, ok := t.entries[condition]
	if ok {
		w.Enabled = enable
	}
	return ok
}

func (t *WatchTable) Ignore(condition string, count int) bool {
	w, ok := t.entries[condition]
	if ok {
		w.IgnoreCount = max(count, 0)
	}
	return ok
}

func (t *WatchTable) Len() int {
	return len(t.order)
}

// All returns the watches in creation order.
func (t *WatchTable) All() []*Watch {
	out := make([]*Watch, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, t.entries[c])
	}
	return out
}
