package vm

import "github.com/weftlang/weft/internal/typesystem"

// Local is one append-only entry of a function's compile-time locals
// table. It is always referenced by pointer so that a later expression
// can patch Type in place when it asserts a concrete type against a
// still-Unknown parameter (auto-inferring its parameter type).
type Local struct {
	Name     string
	Depth    int
	Type     typesystem.Type
	Captured bool // true once a nested function captures this local as an upvalue
}

// UpvalueDesc mirrors vm.UpvalueDesc at compile time: Index/IsLocal
// describe how the enclosing function furnishes this capture.
type Upvalue = UpvalueDesc

// FuncState holds the compile-time state of one function body (or the
// top-level script, which is itself treated as a function). Nesting
// mirrors lexical nesting via the enclosing pointer.
type FuncState struct {
	enclosing *FuncState
	chunk     *Chunk
	name      string // the function's own binding name ("" if anonymous/top-level); used to reject recursive self-reference
	locals    []*Local
	depth     int
	upvalues  []UpvalueDesc
}

func newFuncState(enclosing *FuncState, name string) *FuncState {
	return &FuncState{enclosing: enclosing, chunk: NewChunk(), name: name}
}

// beginScope increments the lexical depth.
func (fs *FuncState) beginScope() { fs.depth++ }

// endScope decrements the depth and emits one POP_LOCAL per local retired
// from this scope, maintaining the runtime invariant that the locals
// stack mirrors this table exactly.
func (fs *FuncState) endScope(line int) {
	fs.depth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].Depth > fs.depth {
		fs.chunk.WriteOp(OP_POP_LOCAL, line)
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// addLocal appends a new local at the current depth and returns it so the
// caller can retain a patchable handle (e.g. to finalize an Unknown
// parameter type later).
func (fs *FuncState) addLocal(name string, t typesystem.Type) *Local {
	lcl := &Local{Name: name, Depth: fs.depth, Type: t}
	fs.locals = append(fs.locals, lcl)
	return lcl
}

// resolveLocal looks up name among this function's own locals, innermost
// scope first.
func (fs *FuncState) resolveLocal(name string) *Local {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].Name == name {
			return fs.locals[i]
		}
	}
	return nil
}

// localIndex returns target's position in fs.locals, which — because
// locals are only ever appended or popped from the tail — is exactly the
// frame-relative slot GET_LOCAL/PUSH_LOCAL address.
func (fs *FuncState) localIndex(target *Local) int {
	for i, l := range fs.locals {
		if l == target {
			return i
		}
	}
	return -1
}

// addUpvalue records (or dedups) a capture descriptor for this function.
func (fs *FuncState) addUpvalue(index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, UpvalueDesc{Index: index, IsLocal: isLocal})
	return len(fs.upvalues) - 1
}

// resolveUpvalue implements chained upvalue resolution: if name is
// a local of the immediately enclosing function, capture it directly
// (IsLocal true) and mark it Captured; otherwise recurse outward and, on
// success, forward the enclosing function's own upvalue (IsLocal false).
func resolveUpvalue(fs *FuncState, name string) (index int, typ typesystem.Type, ok bool) {
	if fs.enclosing == nil {
		return -1, nil, false
	}
	if lcl := fs.enclosing.resolveLocal(name); lcl != nil {
		lcl.Captured = true
		idx := fs.enclosing.localIndex(lcl)
		return fs.addUpvalue(idx, true), lcl.Type, true
	}
	if upIdx, typ, ok := resolveUpvalue(fs.enclosing, name); ok {
		return fs.addUpvalue(upIdx, false), typ, true
	}
	return -1, nil, false
}
