package vm

import "github.com/weftlang/weft/internal/typesystem"

// GlobalBuiltin is one entry of the fixed, ordered built-in registry: the
// compiler consults Name/Type to resolve identifiers and type-check calls;
// the VM consults the same index to dispatch Invoke. Supplying this table
// to both sides is the contract by which built-ins plug in.
type GlobalBuiltin struct {
	Name   string
	Type   typesystem.Function
	Invoke func(m *Machine, args []Value) (Value, error)
}

// Globals is the ordered built-in table. Order is significant: GET_GLOBAL
// addresses entries by index, and that index is assigned once, at
// compiler/VM construction, from this slice's position.
type Globals struct {
	entries []GlobalBuiltin
	index   map[string]int
}

// NewGlobals builds a Globals table from an ordered list of built-ins.
func NewGlobals(builtins []GlobalBuiltin) *Globals {
	g := &Globals{entries: builtins, index: make(map[string]int, len(builtins))}
	for i, b := range builtins {
		g.index[b.Name] = i
	}
	return g
}

// Resolve returns the index of name and whether it exists.
func (g *Globals) Resolve(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

func (g *Globals) At(i int) GlobalBuiltin { return g.entries[i] }
func (g *Globals) Len() int               { return len(g.entries) }
