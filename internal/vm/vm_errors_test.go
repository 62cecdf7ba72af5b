package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/vm"
)

func TestCompileErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind vm.CompileErrorKind
	}{
		{"unexpected eof", `1 +`, vm.UnexpectedEOF},
		{"unexpected token", `1 + )`, vm.UnexpectedToken},
		{"invalid type annotation", `f \ x: wat = x`, vm.InvalidTypeAnnotation},
		{"type mismatch", `1 + "a"`, vm.TypeMismatch},
		{"branch type mismatch", `if true 1 else "a"`, vm.BranchTypeMismatch},
		{"argument type mismatch", `add \ a: number b: number = a + b
add 1 "two"`, vm.ArgumentTypeMismatch},
		{"list item type mismatch", `[1 "two"]`, vm.ListItemTypeMismatch},
		{"recursive call", `loopy \ n: number = loopy n`, vm.RecursiveCall},
		{"invalid get target", `n = 1
n.x`, vm.InvalidGetTarget},
		{"invalid get identifier", `b = { x = 1 }
b.y`, vm.InvalidGetIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(t, tt.src)
			var ce *vm.CompileError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tt.kind, ce.Kind)
		})
	}
}

func TestCompileErrorMessageIncludesLine(t *testing.T) {
	err := compileErr(t, "1\n2\n1 + \"a\"")
	require.EqualError(t, err, `line 3: type mismatch: expected number, got string`)
}

func TestRuntimeErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind vm.RuntimeErrorKind
	}{
		{"index out of bounds", `xs = [1 2]
xs.9`, vm.IndexOutOfBounds},
		{"divide by zero", `1 / 0`, vm.DivideByZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runtimeErr(t, tt.src)
			var re *vm.RuntimeError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tt.kind, re.Kind)
		})
	}
}

func TestNewRuntimeErrorIsGenericKind(t *testing.T) {
	err := vm.NewRuntimeError("bad shape: %d", 3)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, vm.GenericRuntimeError, re.Kind)
	require.Equal(t, "line 0: bad shape: 3", err.Error())
}

func TestNotCallableIsRuntimeError(t *testing.T) {
	globals := vm.NewGlobals(nil)
	m := vm.NewMachine(globals)
	_, err := m.Call(vm.NumberVal(5), nil)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, vm.NotCallable, re.Kind)
}
