package vm

import "fmt"

// Kind tags a Value's payload: primitives live inline, heap objects live
// behind the Obj field so small values never allocate.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindBoolean
	KindObject
)

// Value is the tagged union every VM stack slot holds.
type Value struct {
	Kind   Kind
	Number int32
	Bool   bool
	Obj    Object
}

// Nil is the language's nil value: the empty string, the same
// representation emitNilValue compiles into bytecode — there is no
// separate runtime tag for it, so a built-in returning "no result" and a
// compiled `()` compare equal and print identically.
func Nil() Value               { return Value{Kind: KindObject, Obj: &StringObj{Value: ""}} }
func NumberVal(n int32) Value  { return Value{Kind: KindNumber, Number: n} }
func BoolVal(b bool) Value     { return Value{Kind: KindBoolean, Bool: b} }
func ObjectVal(o Object) Value { return Value{Kind: KindObject, Obj: o} }

// IsNil reports whether v is the language's nil value (an empty string).
// Kind == KindNil also counts, for the zero Value{} an error path may
// still hold.
func (v Value) IsNil() bool {
	if v.Kind == KindNil {
		return true
	}
	s, ok := v.Obj.(*StringObj)
	return ok && s.Value == ""
}

// Display renders v the way CONCATENATE and println stringify a value —
// the single display form shared by both.
func (v Value) Display() string {
	switch v.Kind {
	case KindNil:
		return ""
	case KindNumber:
		return fmt.Sprintf("%d", v.Number)
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindObject:
		return v.Obj.Inspect()
	default:
		return ""
	}
}

// Equal implements primitive equality: numbers and booleans by value,
// strings by content (two distinct constant-pool entries holding "a"
// compare equal, and so do nil values, which are empty strings under the
// hood). Equality of other objects is unspecified and falls back to
// pointer identity — true only for the very same heap value.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindNumber:
		return a.Number == b.Number
	case KindBoolean:
		return a.Bool == b.Bool
	case KindObject:
		if as, ok := a.Obj.(*StringObj); ok {
			bs, ok := b.Obj.(*StringObj)
			return ok && as.Value == bs.Value
		}
		return a.Obj == b.Obj
	default:
		return false
	}
}

// TypeName returns the runtime type name used in RuntimeError messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return v.Obj.TypeName()
	default:
		return "?"
	}
}
