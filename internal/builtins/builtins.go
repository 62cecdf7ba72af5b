// Package builtins supplies the fixed, ordered roster of native callables
// the compiler and VM share as the built-in registry. Each entry is
// a {name, type, invoke} triple; Default returns them in the order their
// GET_GLOBAL index is assigned.
package builtins

import (
	"bufio"
	"fmt"
	"os"

	"github.com/weftlang/weft/internal/typesystem"
	"github.com/weftlang/weft/internal/vm"

	"github.com/dustin/go-humanize"
)

// Default returns the built-in registry this implementation ships: the
// core roster (print, println, write, length, map, loop) plus the
// extension entries in builtins_ext.go (uuid, to_yaml).
func Default() []vm.GlobalBuiltin {
	return []vm.GlobalBuiltin{
		{Name: "print", Type: typesystem.Function{
			Params: []typesystem.Type{typesystem.Any{}},
			Return: typesystem.Nil{},
		}, Invoke: builtinPrint},

		{Name: "println", Type: typesystem.Function{
			Params: []typesystem.Type{typesystem.Any{}},
			Return: typesystem.Nil{},
		}, Invoke: builtinPrintln},

		{Name: "write", Type: typesystem.Function{
			Params: []typesystem.Type{typesystem.String{}, typesystem.Any{}},
			Return: typesystem.Nil{},
		}, Invoke: builtinWrite},

		{Name: "length", Type: typesystem.Function{
			Params: []typesystem.Type{typesystem.Any{}},
			Return: typesystem.Number{},
		}, Invoke: builtinLength},

		{Name: "map", Type: typesystem.Function{
			Params: []typesystem.Type{
				typesystem.Array{Elem: typesystem.Any{}},
				typesystem.Function{
					Params: []typesystem.Type{typesystem.Any{}, typesystem.Number{}},
					Return: typesystem.Any{},
				},
			},
			Return: typesystem.Array{Elem: typesystem.Any{}},
		}, Invoke: builtinMap},

		{Name: "loop", Type: typesystem.Function{
			Params: []typesystem.Type{
				typesystem.Array{Elem: typesystem.Any{}},
				typesystem.Function{
					Params: []typesystem.Type{typesystem.Any{}, typesystem.Number{}},
					Return: typesystem.Any{},
				},
			},
			Return: typesystem.Nil{},
		}, Invoke: builtinLoop},

		uuidBuiltin(),
		toYAMLBuiltin(),
	}
}

func builtinPrint(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	fmt.Fprint(m.Stdout, args[0].Display())
	return vm.Nil(), nil
}

func builtinPrintln(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	fmt.Fprintln(m.Stdout, args[0].Display())
	return vm.Nil(), nil
}

// builtinWrite opens path with truncate+create, writes the UTF-8 bytes of
// args[1]'s display form, and flushes — the language's sole file I/O
// surface. Failures are fatal runtime errors; a partial write's byte
// count is rendered human-readable via go-humanize for the diagnostic.
func builtinWrite(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	path := args[0].Obj.(*vm.StringObj).Value
	content := args[1].Display()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return vm.Value{}, vm.NewRuntimeError("write %q: %v", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n, err := w.WriteString(content)
	if err != nil {
		return vm.Value{}, vm.NewRuntimeError("write %q: wrote %s before error: %v",
			path, humanize.Bytes(uint64(n)), err)
	}
	if err := w.Flush(); err != nil {
		return vm.Value{}, vm.NewRuntimeError("write %q: flush: %v", path, err)
	}
	return vm.Nil(), nil
}

// builtinLength is defined for strings and arrays only.
func builtinLength(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	switch obj := args[0].Obj.(type) {
	case *vm.StringObj:
		return vm.NumberVal(int32(len(obj.Value))), nil
	case *vm.ArrayObj:
		return vm.NumberVal(int32(len(obj.Elements))), nil
	default:
		return vm.Value{}, vm.NewRuntimeError("length is not defined for %s", args[0].TypeName())
	}
}

// builtinMap pushes each element followed by its index before invoking
// the callback, and collects the results into a new array.
func builtinMap(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.ArrayObj)
	callback := args[1]

	results := make([]vm.Value, len(arr.Elements))
	for i, elem := range arr.Elements {
		r, err := m.Call(callback, []vm.Value{elem, vm.NumberVal(int32(i))})
		if err != nil {
			return vm.Value{}, err
		}
		results[i] = r
	}
	return vm.ObjectVal(&vm.ArrayObj{Elements: results}), nil
}

// builtinLoop is map without collecting results.
func builtinLoop(m *vm.Machine, args []vm.Value) (vm.Value, error) {
	arr := args[0].Obj.(*vm.ArrayObj)
	callback := args[1]

	for i, elem := range arr.Elements {
		if _, err := m.Call(callback, []vm.Value{elem, vm.NumberVal(int32(i))}); err != nil {
			return vm.Value{}, err
		}
	}
	return vm.Nil(), nil
}
