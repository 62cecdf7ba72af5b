package typesystem_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	ts "github.com/weftlang/weft/internal/typesystem"
)

func TestSatisfiesPrimitives(t *testing.T) {
	require.True(t, ts.Satisfies(ts.Number{}, ts.Number{}))
	require.False(t, ts.Satisfies(ts.Number{}, ts.String{}))
	require.True(t, ts.Satisfies(ts.String{}, ts.Any{}))
	require.True(t, ts.Satisfies(ts.Boolean{}, ts.Any{}))
}

func TestSatisfiesArrayEmptyLiteral(t *testing.T) {
	empty := ts.Array{Elem: ts.Nil{}}
	require.True(t, ts.Satisfies(empty, ts.Array{Elem: ts.Number{}}))
	require.True(t, ts.Satisfies(empty, ts.Array{Elem: ts.String{}}))
}

func TestSatisfiesArrayElement(t *testing.T) {
	nums := ts.Array{Elem: ts.Number{}}
	require.True(t, ts.Satisfies(nums, ts.Array{Elem: ts.Number{}}))
	require.False(t, ts.Satisfies(nums, ts.Array{Elem: ts.String{}}))
}

func TestSatisfiesBlockWidthAndDepth(t *testing.T) {
	wide := ts.Block{Fields: []ts.BlockField{
		{Name: "x", Type: ts.Number{}},
		{Name: "y", Type: ts.String{}},
	}}
	narrow := ts.Block{Fields: []ts.BlockField{
		{Name: "x", Type: ts.Number{}},
	}}
	// a block with extra fields satisfies a constraint naming fewer fields
	require.True(t, ts.Satisfies(wide, narrow))
	// but not vice versa: narrow is missing field y
	require.False(t, ts.Satisfies(narrow, wide))
}

func TestSatisfiesBlockDepthSubtyping(t *testing.T) {
	sub := ts.Block{Fields: []ts.BlockField{
		{Name: "x", Type: ts.Array{Elem: ts.Nil{}}},
	}}
	super := ts.Block{Fields: []ts.BlockField{
		{Name: "x", Type: ts.Array{Elem: ts.Number{}}},
	}}
	require.True(t, ts.Satisfies(sub, super))
}

func TestSatisfiesFunctionCovariantParams(t *testing.T) {
	// deliberately unsound: covariant in parameters, not contravariant
	narrow := ts.Function{Params: []ts.Type{ts.Number{}}, Return: ts.Number{}}
	wide := ts.Function{Params: []ts.Type{ts.Any{}}, Return: ts.Number{}}
	require.True(t, ts.Satisfies(narrow, wide))
}

// Parameter lists zip pairwise up to the shorter list: a function with
// surplus parameters still satisfies a constraint naming fewer, and
// vice versa, as long as the overlapping positions agree.
func TestSatisfiesFunctionIgnoresSurplusParams(t *testing.T) {
	two := ts.Function{Params: []ts.Type{ts.Number{}, ts.String{}}, Return: ts.Number{}}
	one := ts.Function{Params: []ts.Type{ts.Number{}}, Return: ts.Number{}}
	require.True(t, ts.Satisfies(two, one))
	require.True(t, ts.Satisfies(one, two))

	mismatched := ts.Function{Params: []ts.Type{ts.String{}}, Return: ts.Number{}}
	require.False(t, ts.Satisfies(two, mismatched))
}

func TestSatisfiesFunctionCovariantReturn(t *testing.T) {
	f := ts.Function{Params: []ts.Type{ts.Number{}}, Return: ts.Number{}}
	constraint := ts.Function{Params: []ts.Type{ts.Number{}}, Return: ts.Any{}}
	require.True(t, ts.Satisfies(f, constraint))
	require.False(t, ts.Satisfies(constraint, f))
}

func TestEqualRequiresMutualSatisfaction(t *testing.T) {
	require.True(t, ts.Equal(ts.Number{}, ts.Number{}))
	require.False(t, ts.Equal(ts.Number{}, ts.Any{}))
}
