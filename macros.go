package mutator

import (
	"sort"
	"sync"
)

// table is a name to operation map safe for concurrent use.
type table struct {
	ops map[Name]Operation
	mu  sync.RWMutex
}

func newTable() table {
	return table{ops: make(map[Name]Operation)}
}

func (t *table) register(name Name, op Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[name] = op
}

func (t *table) lookup(name Name) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[name]
	return op, ok
}

func (t *table) names() []Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]Name, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *table) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops)
}

// Macros is a registry of user-supplied operations addressable by name.
//
// A Macros value is meant to be created once and shared by pointer with
// every Mutator that should see the same vocabulary. Entries live for the
// lifetime of the registry and cannot be removed; registering a name again
// replaces the previous operation.
type Macros struct {
	table
}

// NewMacros creates an empty macro registry.
func NewMacros() *Macros {
	return &Macros{table: newTable()}
}

var (
	defaultMacros     *Macros
	defaultMacrosOnce sync.Once
)

// DefaultMacros returns the process-wide registry used by Mutators that
// were not given one explicitly.
func DefaultMacros() *Macros {
	defaultMacrosOnce.Do(func() {
		defaultMacros = NewMacros()
	})
	return defaultMacros
}

// Register stores op under name, replacing any earlier registration.
func (m *Macros) Register(name Name, op Operation) {
	m.register(name, op)
}

// Lookup returns the operation registered under name.
func (m *Macros) Lookup(name Name) (Operation, bool) {
	return m.lookup(name)
}

// Has reports whether name is registered.
func (m *Macros) Has(name Name) bool {
	_, ok := m.lookup(name)
	return ok
}

// Names returns the registered names in sorted order.
func (m *Macros) Names() []Name {
	return m.names()
}

// Len returns the number of registered macros.
func (m *Macros) Len() int {
	return m.len()
}
