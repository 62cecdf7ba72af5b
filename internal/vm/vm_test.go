package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/builtins"
	"github.com/weftlang/weft/internal/vm"
)

// run compiles and executes src against the default built-in registry,
// returning the program's result value and anything written to Stdout.
func run(t *testing.T, src string) (vm.Value, string) {
	t.Helper()
	globals := vm.NewGlobals(builtins.Default())
	fn, err := vm.Compile(src, globals)
	require.NoError(t, err, "compile error")

	m := vm.NewMachine(globals)
	var out bytes.Buffer
	m.Stdout = &out
	result, err := m.Run(fn)
	require.NoError(t, err, "runtime error")
	return result, out.String()
}

func compileErr(t *testing.T, src string) error {
	t.Helper()
	globals := vm.NewGlobals(builtins.Default())
	_, err := vm.Compile(src, globals)
	require.Error(t, err)
	return err
}

func runtimeErr(t *testing.T, src string) error {
	t.Helper()
	globals := vm.NewGlobals(builtins.Default())
	fn, err := vm.Compile(src, globals)
	require.NoError(t, err, "compile error")
	m := vm.NewMachine(globals)
	m.Stdout = &bytes.Buffer{}
	_, err = m.Run(fn)
	require.Error(t, err)
	return err
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"6 * 7", 42},
		{"9 / 2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"-5 + 2", -3},
		{"2147483647 + 1", -2147483648},
	}
	for _, tt := range tests {
		result, _ := run(t, tt.src)
		require.Equal(t, vm.KindNumber, result.Kind, tt.src)
		require.Equal(t, tt.want, result.Number, tt.src)
	}
}

func TestBooleanLogic(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"true && false", false},
		{"true && true", true},
		{"false || false", false},
		{"false || true", true},
		{"!true", false},
		{"!false", true},
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 2", true},
		{"2 >= 3", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"\"a\" == \"a\"", true},
	}
	for _, tt := range tests {
		result, _ := run(t, tt.src)
		require.Equal(t, vm.KindBoolean, result.Kind, tt.src)
		require.Equal(t, tt.want, result.Bool, tt.src)
	}
}

// OP_AND/OP_OR are eager: both operands are compiled and evaluated
// unconditionally, there is no short-circuit jump.
func TestLogicOperandsBothTypeChecked(t *testing.T) {
	compileErr(t, "true && 1")
	compileErr(t, "1 || true")
}

func TestIfExpression(t *testing.T) {
	result, _ := run(t, `if true "yes" else "no"`)
	require.Equal(t, "yes", result.Obj.Inspect())

	result, _ = run(t, `if false "yes" else "no"`)
	require.Equal(t, "no", result.Obj.Inspect())

	// an absent else branch behaves as `else nil`, and the then branch's
	// type must then itself be Nil to agree.
	result, _ = run(t, `if false ()`)
	require.Equal(t, vm.KindObject, result.Kind)
}

// Branch agreement is one-way: the else branch's type only has to
// satisfy the then branch's, not match it exactly, so an Any-typed
// else (an element out of an Array(Any), here) is accepted against a
// concrete then — and the overall type is the then branch's.
func TestIfElseOnlyNeedsToSatisfyThenBranch(t *testing.T) {
	result, _ := run(t, `xs = [1]
ys = map xs \ v: number i: number = v
if true 5 else ys.0`)
	require.Equal(t, vm.KindNumber, result.Kind)
	require.Equal(t, int32(5), result.Number)
}

// An Any-typed value satisfies any concrete constraint it's checked
// against, the same way Any absorbs anything on the constraint side:
// an element pulled out of an Array(Any) can still be used as a
// Number operand.
func TestAnyTypedValueSatisfiesConcreteConstraint(t *testing.T) {
	result, _ := run(t, `xs = [1]
ys = map xs \ v: number i: number = v
ys.0 + 1`)
	require.Equal(t, vm.KindNumber, result.Kind)
	require.Equal(t, int32(2), result.Number)
}

func TestBranchTypeMismatchRejected(t *testing.T) {
	err := compileErr(t, `if true "yes" else 42`)
	var ce *vm.CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, vm.BranchTypeMismatch, ce.Kind)
	require.Contains(t, ce.Error(), "then is string, else is number")
}

func TestGroupConcatenation(t *testing.T) {
	result, _ := run(t, `("a" "b" "c")`)
	require.Equal(t, "abc", result.Obj.Inspect())

	result, _ = run(t, `(1 " " 2)`)
	require.Equal(t, "1 2", result.Obj.Inspect())

	result, _ = run(t, `(42)`)
	require.Equal(t, vm.KindNumber, result.Kind)
	require.Equal(t, int32(42), result.Number)

	result, _ = run(t, `()`)
	require.Equal(t, "", result.Obj.Inspect())
}

// A binding's trailing Nil result is not a concatenation operand: it's
// dropped rather than counted, so a group with exactly one non-Nil
// expression passes that expression through untouched instead of
// stringifying it.
func TestGroupBindingIsNotAConcatenationOperand(t *testing.T) {
	result, _ := run(t, `(x = 5  x)`)
	require.Equal(t, vm.KindNumber, result.Kind)
	require.Equal(t, int32(5), result.Number)
}

func TestArrayLiteralAndIndex(t *testing.T) {
	result, _ := run(t, `xs = [1 2 3]
xs.1`)
	require.Equal(t, int32(2), result.Number)
}

// A binding's trailing Nil result is not an array element either: it's
// dropped before counting or type-checking, so a leading `x = 5` inside
// the literal doesn't make every later element's type have to satisfy Nil.
func TestArrayLiteralSkipsBindingElements(t *testing.T) {
	result, _ := run(t, `[x = 5  x]`)
	arr, ok := result.Obj.(*vm.ArrayObj)
	require.True(t, ok)
	require.Len(t, arr.Elements, 1)
	require.Equal(t, int32(5), arr.Elements[0].Number)
}

func TestArrayElementTypeMismatchRejected(t *testing.T) {
	err := compileErr(t, `[1 "two" 3]`)
	var ce *vm.CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, vm.ListItemTypeMismatch, ce.Kind)
}

func TestArrayIndexOutOfBoundsIsRuntimeError(t *testing.T) {
	err := runtimeErr(t, `xs = [1 2 3]
xs.5`)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, vm.IndexOutOfBounds, re.Kind)
}

func TestDivideByZero(t *testing.T) {
	err := runtimeErr(t, `1 / 0`)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, vm.DivideByZero, re.Kind)
}

func TestBlockLiteralFieldAccess(t *testing.T) {
	result, _ := run(t, `b = { x = 1 y = 2 }
b.y`)
	require.Equal(t, int32(2), result.Number)
}

func TestBlockWithFunctionFieldAutoCalls(t *testing.T) {
	result, out := run(t, `make-counter \ = { x \ n: number = n + 1 }
println(make-counter.x 41)`)
	require.Equal(t, "42\n", out)
	require.True(t, result.IsNil())
}

func TestNamedFunctionDefinitionAndCall(t *testing.T) {
	result, _ := run(t, `add \ a: number b: number = a + b
add 3 4`)
	require.Equal(t, int32(7), result.Number)
}

func TestUpvalueCapture(t *testing.T) {
	result, _ := run(t, `adder \ n: number = \ x: number = x + n
a5 = adder 5
a5 10`)
	require.Equal(t, int32(15), result.Number)
}

// Each `name = expr` appends a fresh local; a later binding that reuses
// the same name shadows it for subsequent lookups but does not disturb
// a closure that already captured the earlier one.
func TestRebindingDoesNotAffectEarlierCapture(t *testing.T) {
	result, _ := run(t, `n = 1
grab \ = n
n = 99
grab + 0`)
	require.Equal(t, int32(1), result.Number)
}

// Each call to make-adder captures its own "n" at MAKE_CLOSURE time; if
// upvalues were captured by live reference into the shared locals stack
// instead of by value, every closure produced inside the loop would end
// up reading whatever the slot held after the LAST iteration.
func TestClosureCapturesValuePerIterationNotByReference(t *testing.T) {
	result, out := run(t, `make-adder \ n: number = \ x: number = x + n
xs = [1 2 3]
adders = map xs \ v: number i: number = make-adder v
results = map adders \ f: \ number = number i: number = f 10
println(results.0)
println(results.1)
println(results.2)`)
	require.Equal(t, "11\n12\n13\n", out)
	require.True(t, result.IsNil())
}

func TestAutoCallSuppressedByTrailingNewline(t *testing.T) {
	// a function reference immediately followed by a statement-ending
	// newline is passed as data, not auto-called.
	result, out := run(t, `identity \ x: number = x
f = identity
println(f 9)`)
	require.Equal(t, "9\n", out)
	require.True(t, result.IsNil())
}

func TestAutoCallSuppressedByRightParen(t *testing.T) {
	// followed directly by `)`, a zero-arg function reference is also
	// passed as data rather than invoked.
	result, out := run(t, `zero \ = 7
println((zero))`)
	require.Contains(t, out, "<fn zero>")
	require.True(t, result.IsNil())
}

func TestMapAndLoopInvokeCallback(t *testing.T) {
	result, _ := run(t, `xs = [1 2 3 4]
ys = map xs \ v: number i: number = v * v
length ys`)
	require.Equal(t, int32(4), result.Number)

	result, out := run(t, `xs = [1 2 3]
loop xs \ v: number i: number = println(v)`)
	require.Equal(t, "1\n2\n3\n", out)
	require.True(t, result.IsNil())
}

func TestEmptyProgramIsNil(t *testing.T) {
	result, _ := run(t, ``)
	require.True(t, result.IsNil())
}

func TestUnaryParameterTypeAutoInference(t *testing.T) {
	// an unannotated parameter's type is inferred from the first
	// expression in the body that asserts a concrete type against it.
	result, _ := run(t, `double \ x = x + x
double 21`)
	require.Equal(t, int32(42), result.Number)
}

func TestUnannotatedParameterNeverAssertedFinalizesToAny(t *testing.T) {
	result, _ := run(t, `identity \ x = x
identity 5`)
	require.Equal(t, int32(5), result.Number)
}
