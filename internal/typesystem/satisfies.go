package typesystem

// Satisfies implements the "sub satisfies constraint" relation:
// reflexive on primitives; Any absorbs anything as a constraint, and an
// Any-typed value satisfies anything it's checked against in turn (an
// array element, call argument, or field fetched out of an Any-typed
// position carries no static guarantee either way); Array(a) satisfies
// Array(b) if a satisfies b (or a is Nil, permitting empty literals);
// Block(A) satisfies Block(B) iff every field of B has a same-named
// field in A whose type satisfies it (width + depth subtyping);
// Function is covariant in return and pairwise in parameters, zipped up
// to the shorter parameter list — intentionally neither contravariant
// nor arity-checked, two known simplifications (see DESIGN.md).
func Satisfies(sub, constraint Type) bool {
	if _, ok := constraint.(Any); ok {
		return true
	}
	if _, ok := sub.(Any); ok {
		return true
	}

	switch c := constraint.(type) {
	case Number:
		_, ok := sub.(Number)
		return ok
	case String:
		_, ok := sub.(String)
		return ok
	case Boolean:
		_, ok := sub.(Boolean)
		return ok
	case Nil:
		_, ok := sub.(Nil)
		return ok
	case Array:
		s, ok := sub.(Array)
		if !ok {
			return false
		}
		if IsNil(s.Elem) {
			return true
		}
		return Satisfies(s.Elem, c.Elem)
	case Block:
		s, ok := sub.(Block)
		if !ok {
			return false
		}
		for _, cf := range c.Fields {
			sf, _, found := s.Lookup(cf.Name)
			if !found || !Satisfies(sf, cf.Type) {
				return false
			}
		}
		return true
	case Function:
		s, ok := sub.(Function)
		if !ok {
			return false
		}
		// Parameter lists are compared pairwise up to the shorter list;
		// surplus parameters on either side are ignored (see DESIGN.md).
		n := len(s.Params)
		if len(c.Params) < n {
			n = len(c.Params)
		}
		for i := 0; i < n; i++ {
			if !Satisfies(s.Params[i], c.Params[i]) {
				return false
			}
		}
		return Satisfies(s.Return, c.Return)
	default:
		return false
	}
}

// Equal reports whether a and b are the identical type: used only by
// assertSameType for `==`/`!=` operands, which require exact agreement in
// both directions rather than the one-way satisfaction branches, call
// arguments, and array elements check against.
func Equal(a, b Type) bool {
	return Satisfies(a, b) && Satisfies(b, a)
}
