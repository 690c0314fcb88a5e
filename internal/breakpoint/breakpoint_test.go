package breakpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableKeyedByLocation(t *testing.T) {
	table := NewTable()
	table.Set("/src/a.rdb", 10, false, "")
	table.Set("/src/./a.rdb", 10, true, "x > 1")

	require.Equal(t, 1, table.Len())
	bp, ok := table.Get("/src/a.rdb", 10)
	require.True(t, ok)
	assert.True(t, bp.Temporary)
	assert.Equal(t, "x > 1", bp.Condition)
	assert.True(t, bp.Enabled)
	assert.True(t, table.HasFile("/src/a.rdb"))

	assert.True(t, table.Remove("/src/a.rdb", 10))
	assert.False(t, table.Remove("/src/a.rdb", 10))
	assert.False(t, table.HasFile("/src/a.rdb"))
	assert.Zero(t, table.Len())
}

func TestTableEnableIgnore(t *testing.T) {
	table := NewTable()
	assert.False(t, table.Enable("a", 1, false))
	assert.False(t, table.Ignore("a", 1, 3))

	table.Set("a", 1, false, "")
	assert.True(t, table.Enable("a", 1, false))
	assert.True(t, table.Ignore("a", 1, -4))

	bp, _ := table.Get("a", 1)
	assert.False(t, bp.Enabled)
	assert.Zero(t, bp.IgnoreCount)
}

func TestTableResetOnReplace(t *testing.T) {
	table := NewTable()
	bp := table.Set("a", 1, false, "bad(")
	bp.Inert = true
	bp.IgnoreCount = 5

	bp = table.Set("a", 1, false, "x == 1")
	assert.False(t, bp.Inert)
	assert.Zero(t, bp.IgnoreCount)
}

func TestIgnoreCountFiresOnPassNPlusOne(t *testing.T) {
	for n := 0; n < 5; n++ {
		bp := &Breakpoint{Enabled: true, IgnoreCount: n}
		passes := 0
		for !bp.Pass() {
			passes++
			assert.Equal(t, n-passes, bp.IgnoreCount)
		}
		assert.Equal(t, n, passes, "fires on pass %d", n+1)
		assert.Zero(t, bp.IgnoreCount)
	}
}

func TestTableAllOrdered(t *testing.T) {
	table := NewTable()
	table.Set("b", 2, false, "")
	table.Set("a", 9, false, "")
	table.Set("a", 3, false, "")

	var got []Key
	for _, bp := range table.All() {
		got = append(got, bp.Key())
	}
	assert.Equal(t, []Key{{"a", 3}, {"a", 9}, {"b", 2}}, got)
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw  string
		expr string
		mode TriggerMode
	}{
		{raw: "x > 3", expr: "x > 3", mode: TriggerAlways},
		{raw: "total ??created??", expr: "total", mode: TriggerOnCreation},
		{raw: "items.size() ??changed??", expr: "items.size()", mode: TriggerOnChange},
	}
	for _, tt := range tests {
		expr, mode := ParseCondition(tt.raw)
		assert.Equal(t, tt.expr, expr)
		assert.Equal(t, tt.mode, mode)
		assert.Equal(t, tt.raw, FormatCondition(expr, mode))
	}
}

func TestWatchObserve(t *testing.T) {
	t.Run("always fires on true", func(t *testing.T) {
		w := &Watch{Mode: TriggerAlways}
		assert.False(t, w.Observe(false, false))
		assert.True(t, w.Observe(true, false))
		assert.False(t, w.Observe(int64(1), false))
		assert.False(t, w.Observe(nil, true))
	})

	t.Run("on change caches the first value", func(t *testing.T) {
		w := &Watch{Mode: TriggerOnChange}
		assert.False(t, w.Observe(int64(1), false))
		assert.False(t, w.Observe(int64(1), false))
		assert.True(t, w.Observe(int64(2), false))
		assert.False(t, w.Observe(int64(2), false))
	})

	t.Run("on creation fires on the undefined to defined edge", func(t *testing.T) {
		w := &Watch{Mode: TriggerOnCreation}
		assert.False(t, w.Observe(nil, true))
		assert.True(t, w.Observe(int64(0), false))
		assert.False(t, w.Observe(int64(5), false))
		assert.False(t, w.Observe(nil, true))
		assert.True(t, w.Observe(int64(1), false))
	})
}

func TestWatchTable(t *testing.T) {
	table := NewWatchTable()
	table.Set("a > 1", false)
	w := table.Set("b ??changed??", true)
	assert.Equal(t, "b", w.Expression)
	assert.Equal(t, TriggerOnChange, w.Mode)
	table.Set("a > 1", true)

	require.Equal(t, 2, table.Len())
	all := table.All()
	assert.Equal(t, "a > 1", all[0].Condition)
	assert.True(t, all[0].Temporary)

	assert.True(t, table.Enable("b ??changed??", false))
	assert.True(t, table.Ignore("b ??changed??", 2))
	got, _ := table.Get("b ??changed??")
	assert.False(t, got.Enabled)
	assert.Equal(t, 2, got.IgnoreCount)

	assert.True(t, table.Remove("a > 1"))
	assert.False(t, table.Remove("a > 1"))
	assert.Equal(t, 1, table.Len())
}

func TestMirror(t *testing.T) {
	m := NewMirror()
	m.SetBreakpoint("/src/b.rdb", 4, false, "")
	m.SetBreakpoint("/src/a.rdb", 7, true, "n == 2")
	m.EnableBreakpoint("/src/b.rdb", 4, false)
	m.IgnoreBreakpoint("/src/b.rdb", 4, 2)
	m.MarkConditionError("/src/a.rdb", 7)

	bps := m.Breakpoints()
	require.Len(t, bps, 2)
	assert.Equal(t, "/src/a.rdb", bps[0].File)
	assert.True(t, bps[0].Inert)
	assert.False(t, bps[1].Enabled)
	assert.Equal(t, 2, bps[1].IgnoreCount)

	assert.True(t, m.ClearBreakpoint("/src/a.rdb", 7))
	assert.Len(t, m.Breakpoints(), 1)

	m.SetWatch("x ??created??", false)
	m.SetWatch("y > 2", true)
	m.MarkWatchError("y > 2")
	ws := m.Watches()
	require.Len(t, ws, 2)
	assert.Equal(t, TriggerOnCreation, ws[0].Mode)
	assert.True(t, ws[1].Inert)
	assert.True(t, m.ClearWatch("x ??created??"))
	assert.False(t, m.ClearWatch("x ??created??"))
}
