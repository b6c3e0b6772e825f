package ir

import (
	"fmt"
	"sort"
)

// Module is a set of named global functions with a designated entry point.
type Module struct {
	Functions map[string]*Func
	Entry     string

	// order preserves definition order for deterministic iteration.
	order []string
}

// NewModule returns an empty module with the given entry name.
func NewModule(entry string) *Module {
	return &Module{Functions: make(map[string]*Func), Entry: entry}
}

// Add registers a global function definition.
func (m *Module) Add(fn *Func) error {
	if _, dup := m.Functions[fn.Name]; dup {
		return fmt.Errorf("duplicate global function %q", fn.Name)
	}
	m.Functions[fn.Name] = fn
	m.order = append(m.order, fn.Name)
	return nil
}

// Names returns the global function names in definition order.
func (m *Module) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// SortedNames returns the global function names sorted alphabetically.
func (m *Module) SortedNames() []string {
	out := m.Names()
	sort.Strings(out)
	return out
}
