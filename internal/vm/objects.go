package vm

import (
	"strings"

	"github.com/weftlang/weft/internal/typesystem"
)

// Object is implemented by every heap-resident value: strings, arrays,
// blocks, functions, closures, and built-ins. All are referenced by
// pointer so they are shared (reference-counted, in spirit — Go's GC frees
// what reference counting would, since the object graph this language can
// construct is acyclic by construction) rather than copied.
type Object interface {
	TypeName() string
	Inspect() string
}

// StringObj is a UTF-8 byte sequence.
type StringObj struct {
	Value string
}

func (s *StringObj) TypeName() string { return "string" }
func (s *StringObj) Inspect() string  { return s.Value }

// ArrayObj is a homogeneous ordered sequence of values. The element type
// is purely a compile-time fact (typesystem.Array, already checked by the
// compiler); the heap object only needs the values themselves.
type ArrayObj struct {
	Elements []Value
}

func (a *ArrayObj) TypeName() string { return "array" }

// Inspect is the concatenation of the elements' display forms, with no
// brackets or separators — identical to CONCATENATE over the elements.
func (a *ArrayObj) Inspect() string {
	var sb strings.Builder
	for _, e := range a.Elements {
		sb.WriteString(e.Display())
	}
	return sb.String()
}

// BlockObj is a record-like value: fields are stored positionally. Names
// are carried alongside the values (rather than looked up through the
// static Block type, which the heap object has no reference to) so that
// Inspect and the to_yaml built-in can render them.
type BlockObj struct {
	Fields     []Value
	FieldNames []string
}

func (b *BlockObj) TypeName() string { return "block" }
func (b *BlockObj) Inspect() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, v := range b.Fields {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(b.FieldNames[i])
		sb.WriteString("=")
		sb.WriteString(v.Display())
	}
	sb.WriteString("}")
	return sb.String()
}

// FunctionObj is a compiled function: code plus the metadata needed to
// invoke it and, if it closes over anything, to resolve its upvalues.
type FunctionObj struct {
	Name     string
	Chunk    *Chunk
	Arity    int
	Upvalues []UpvalueDesc
	Type     typesystem.Function
}

func (f *FunctionObj) TypeName() string { return "function" }
func (f *FunctionObj) Inspect() string  { return "<fn " + f.Name + ">" }

// UpvalueDesc describes, from the perspective of the function that
// captures it, how to obtain one upvalue: either directly from a local of
// the immediately enclosing function (IsLocal true) or by forwarding an
// upvalue already captured by the enclosing function (IsLocal false).
type UpvalueDesc struct {
	Index   int
	IsLocal bool
}

// ClosureObj pairs a FunctionObj with the concrete values its upvalues were
// bound to at MAKE_CLOSURE time (captured by value, not reference).
type ClosureObj struct {
	Function *FunctionObj
	Upvalues []Value
}

func (c *ClosureObj) TypeName() string { return "function" }
func (c *ClosureObj) Inspect() string  { return "<closure " + c.Function.Name + ">" }

// BuiltinObj references one entry of the built-in registry by index, so
// that passing a built-in as data (rather than auto-calling it) is a plain
// Value like any other.
type BuiltinObj struct {
	Index int
	Name  string
}

func (b *BuiltinObj) TypeName() string { return "function" }
func (b *BuiltinObj) Inspect() string  { return "<builtin " + b.Name + ">" }
