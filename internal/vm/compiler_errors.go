package vm

import (
	"fmt"

	"github.com/weftlang/weft/internal/token"
	"github.com/weftlang/weft/internal/typesystem"
)

// CompileErrorKind classifies a compile-time failure.
type CompileErrorKind int

const (
	UnexpectedEOF CompileErrorKind = iota
	UnexpectedToken
	InvalidTypeAnnotation
	TypeMismatch
	BranchTypeMismatch
	ArgumentTypeMismatch
	ListItemTypeMismatch
	RecursiveCall
	InvalidGetTarget
	InvalidGetIdentifier
)

// CompileError carries a source line and a typed failure kind. The
// compiler aborts on the first one — there is no error recovery.
type CompileError struct {
	Kind CompileErrorKind
	Line int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func errUnexpectedEOF(line int) error {
	return &CompileError{Kind: UnexpectedEOF, Line: line, Msg: "unexpected end of input"}
}

func errUnexpectedToken(line int, tok token.Token) error {
	return &CompileError{Kind: UnexpectedToken, Line: line,
		Msg: fmt.Sprintf("unexpected token %s %q", tok.Type, tok.Lexeme)}
}

func errInvalidTypeAnnotation(line int, s string) error {
	return &CompileError{Kind: InvalidTypeAnnotation, Line: line,
		Msg: fmt.Sprintf("invalid type annotation: %s", s)}
}

func errTypeMismatch(line int, actual, expected typesystem.Type) error {
	return &CompileError{Kind: TypeMismatch, Line: line,
		Msg: fmt.Sprintf("type mismatch: expected %s, got %s", expected, actual)}
}

func errBranchTypeMismatch(line int, t1, t2 typesystem.Type) error {
	return &CompileError{Kind: BranchTypeMismatch, Line: line,
		Msg: fmt.Sprintf("branch type mismatch: then is %s, else is %s", t1, t2)}
}

func errArgumentTypeMismatch(line int, expected, actual typesystem.Type) error {
	return &CompileError{Kind: ArgumentTypeMismatch, Line: line,
		Msg: fmt.Sprintf("argument type mismatch: expected %s, got %s", expected, actual)}
}

func errListItemTypeMismatch(line int, t1, t2 typesystem.Type) error {
	return &CompileError{Kind: ListItemTypeMismatch, Line: line,
		Msg: fmt.Sprintf("array item type mismatch: expected %s, got %s", t1, t2)}
}

func errRecursiveCall(line int, name string) error {
	return &CompileError{Kind: RecursiveCall, Line: line,
		Msg: fmt.Sprintf("recursive reference to %q is not allowed", name)}
}

func errInvalidGetTarget(line int, t typesystem.Type) error {
	return &CompileError{Kind: InvalidGetTarget, Line: line,
		Msg: fmt.Sprintf("cannot use dot access on %s", t)}
}

func errInvalidGetIdentifier(line int, name string) error {
	return &CompileError{Kind: InvalidGetIdentifier, Line: line,
		Msg: fmt.Sprintf("no such field %q", name)}
}
