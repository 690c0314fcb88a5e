package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// coverage records executed lines per file.
type coverage struct {
	path  string
	lines map[string]map[int]struct{}
}

type coverageData struct {
	Files map[string][]int `json:"files"`
}

// loadCoverage reads prior data from path unless erase is set. A missing
// file starts empty.
func loadCoverage(path string, erase bool) (*coverage, error) {
	c := &coverage{path: path, lines: make(map[string]map[int]struct{})}
	if erase {
		return c, nil
	}
	var data coverageData
	if err := readJSON(path, &data); err != nil {
		return nil, err
	}
	for file, lines := range data.Files {
		for _, line := range lines {
			c.hit(file, line)
		}
	}
	return c, nil
}

func (c *coverage) hit(file string, line int) {
	set, ok := c.lines[file]
	if !ok {
		set = make(map[int]struct{})
		c.lines[file] = set
	}
	set[line] = struct{}{}
}

func (c *coverage) save() error {
	data := coverageData{Files: make(map[string][]int, len(c.lines))}
	for file, set := range c.lines {
		lines := make([]int, 0, len(set))
		for line := range set {
			lines = append(lines, line)
		}
		sort.Ints(lines)
		data.Files[file] = lines
	}
	return writeJSON(c.path, data)
}

type profileEntry struct {
	Calls int           `json:"calls"`
	Total time.Duration `json:"totalNs"`
}

// profiler records call counts and cumulative time per function.
type profiler struct {
	path      string
	functions map[string]*profileEntry
	started   []time.Time
	now       func() time.Time
}

func loadProfile(path string, erase bool) (*profiler, error) {
	p := &profiler{path: path, functions: make(map[string]*profileEntry), now: time.Now}
	if erase {
		return p, nil
	}
	var data struct {
		Functions map[string]*profileEntry `json:"functions"`
	}
	if err := readJSON(path, &data); err != nil {
		return nil, err
	}
	for name, entry := range data.Functions {
		if entry != nil {
			p.functions[name] = entry
		}
	}
	return p, nil
}

func profileKey(f Frame) string {
	return f.File() + ":" + f.Function()
}

func (p *profiler) enter(f Frame) {
	entry, ok := p.functions[profileKey(f)]
	if !ok {
		entry = &profileEntry{}
		p.functions[profileKey(f)] = entry
	}
	entry.Calls++
	p.started = append(p.started, p.now())
}

func (p *profiler) leave(f Frame) {
	n := len(p.started)
	if n == 0 {
		return
	}
	start := p.started[n-1]
	p.started = p.started[:n-1]
	if entry, ok := p.functions[profileKey(f)]; ok {
		entry.Total += p.now().Sub(start)
	}
}

func (p *profiler) save() error {
	return writeJSON(p.path, map[string]any{"functions": p.functions})
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
