package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bingosuite/rdb/internal/protocol"
)

type entry struct {
	name  string
	value any
}

// entries lists the members of a scope, list or map in display order.
func entries(v any) []entry {
	switch v := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]entry, 0, len(names))
		for _, name := range names {
			out = append(out, entry{name: name, value: v[name]})
		}
		return out
	case []any:
		out := make([]entry, 0, len(v))
		for i, item := range v {
			out = append(out, entry{name: strconv.Itoa(i), value: item})
		}
		return out
	default:
		return nil
	}
}

func dump(items []entry, filters []string, maxSize int) []protocol.Variable {
	skip := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		skip[f] = struct{}{}
	}
	vars := make([]protocol.Variable, 0, len(items))
	for _, it := range items {
		typ := typeName(it.value)
		if _, ok := skip[typ]; ok {
			continue
		}
		value := Render(it.value)
		if maxSize > 0 && len(value) > maxSize {
			value = protocol.TooBigToShow
		}
		vars = append(vars, protocol.Variable{
			Name:       it.name,
			Type:       typ,
			Value:      value,
			Expandable: expandable(it.value),
		})
	}
	return vars
}

// lookup descends from scope along path, one list index or map key per step.
func lookup(scope map[string]any, path []string) (any, bool) {
	var cur any = scope
	for _, name := range path {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[name]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(name)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int, int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case interface{ TypeName() string }:
		return v.TypeName()
	default:
		return fmt.Sprintf("%T", v)
	}
}

func expandable(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	default:
		return false
	}
}

// Render formats a runtime value the way the debugger displays it.
func Render(v any) string {
	var b strings.Builder
	renderTo(&b, v)
	return b.String()
}

func renderTo(b *strings.Builder, v any) {
	switch v := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(v))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			renderTo(b, item)
		}
		b.WriteByte(']')
	case map[string]any:
		b.WriteByte('{')
		for i, it := range entries(v) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(it.name))
			b.WriteString(": ")
			renderTo(b, it.value)
		}
		b.WriteByte('}')
	default:
		fmt.Fprint(b, v)
	}
}
