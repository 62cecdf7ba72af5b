package builtins

import (
	"github.com/weftlang/weft/internal/typesystem"
	"github.com/weftlang/weft/internal/vm"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// uuidBuiltin returns a fresh random UUIDv4 string per call.
func uuidBuiltin() vm.GlobalBuiltin {
	return vm.GlobalBuiltin{
		Name: "uuid",
		Type: typesystem.Function{Return: typesystem.String{}},
		Invoke: func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
			return vm.ObjectVal(&vm.StringObj{Value: uuid.NewString()}), nil
		},
	}
}

// toYAMLBuiltin marshals any value to YAML text: blocks become maps,
// arrays become sequences, primitives become scalars.
func toYAMLBuiltin() vm.GlobalBuiltin {
	return vm.GlobalBuiltin{
		Name: "to_yaml",
		Type: typesystem.Function{
			Params: []typesystem.Type{typesystem.Any{}},
			Return: typesystem.String{},
		},
		Invoke: func(m *vm.Machine, args []vm.Value) (vm.Value, error) {
			tree := toYAMLTree(args[0])
			out, err := yaml.Marshal(tree)
			if err != nil {
				return vm.Value{}, vm.NewRuntimeError("to_yaml: %v", err)
			}
			return vm.ObjectVal(&vm.StringObj{Value: string(out)}), nil
		},
	}
}

// toYAMLTree converts a Value into the plain interface{} tree yaml.Marshal
// expects: maps, slices, and scalars.
func toYAMLTree(v vm.Value) interface{} {
	switch obj := v.Obj.(type) {
	case nil:
		if v.Kind == vm.KindNumber {
			return v.Number
		}
		if v.Kind == vm.KindBoolean {
			return v.Bool
		}
		return nil
	case *vm.StringObj:
		return obj.Value
	case *vm.ArrayObj:
		out := make([]interface{}, len(obj.Elements))
		for i, e := range obj.Elements {
			out[i] = toYAMLTree(e)
		}
		return out
	case *vm.BlockObj:
		out := make(map[string]interface{}, len(obj.Fields))
		for i, f := range obj.Fields {
			out[obj.FieldNames[i]] = toYAMLTree(f)
		}
		return out
	default:
		return v.Display()
	}
}
