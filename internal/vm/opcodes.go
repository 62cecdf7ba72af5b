package vm

// Opcode is a single VM instruction. Operands, where present, follow
// inline as big-endian u16 values.
type Opcode byte

const (
	// Stack manipulation
	OP_POP   Opcode = iota // discard top
	OP_PUSH                // u16 k — push constants[k]

	// Locals
	OP_PUSH_LOCAL // pop top, append to locals
	OP_POP_LOCAL  // discard top of locals
	OP_GET_LOCAL  // u16 i — push locals[frame_base + i]
	OP_GET_UPVALUE
	OP_GET_GLOBAL // u16 i — push built-ins[i] as value

	// Calls
	OP_CALL // u16 n

	// Aggregates
	OP_MAKE_ARRAY // u16 n — pop n values, push an array
	OP_MAKE_BLOCK // u16 k — constants[k] is the field-name array; pop len(names) values, push a block
	OP_INDEX      // pop index, pop receiver, push receiver[index]
	OP_MAKE_CLOSURE

	// Logic
	OP_OR
	OP_AND
	OP_NOT

	// Arithmetic
	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_NEGATE

	// Strings
	OP_CONCATENATE // u16 n

	// Comparison
	OP_EQUAL
	OP_NOT_EQUAL
	OP_GREATER_THAN
	OP_GREATER_THAN_EQUAL
	OP_LESS_THAN
	OP_LESS_THAN_EQUAL

	// Control flow
	OP_JUMP          // u16 off
	OP_JUMP_IF_FALSE // u16 off
)

// OpcodeNames supports disassembly.
var OpcodeNames = map[Opcode]string{
	OP_POP:         "POP",
	OP_PUSH:        "PUSH",
	OP_PUSH_LOCAL:  "PUSH_LOCAL",
	OP_POP_LOCAL:   "POP_LOCAL",
	OP_GET_LOCAL:   "GET_LOCAL",
	OP_GET_UPVALUE: "GET_UPVALUE",
	OP_GET_GLOBAL:  "GET_GLOBAL",

	OP_CALL: "CALL",

	OP_MAKE_ARRAY:   "MAKE_ARRAY",
	OP_MAKE_BLOCK:   "MAKE_BLOCK",
	OP_INDEX:        "INDEX",
	OP_MAKE_CLOSURE: "MAKE_CLOSURE",

	OP_OR:  "OR",
	OP_AND: "AND",
	OP_NOT: "NOT",

	OP_ADD:      "ADD",
	OP_SUBTRACT: "SUBTRACT",
	OP_MULTIPLY: "MULTIPLY",
	OP_DIVIDE:   "DIVIDE",
	OP_NEGATE:   "NEGATE",

	OP_CONCATENATE: "CONCATENATE",

	OP_EQUAL:              "EQUAL",
	OP_NOT_EQUAL:          "NOT_EQUAL",
	OP_GREATER_THAN:       "GREATER_THAN",
	OP_GREATER_THAN_EQUAL: "GREATER_THAN_EQUAL",
	OP_LESS_THAN:          "LESS_THAN",
	OP_LESS_THAN_EQUAL:    "LESS_THAN_EQUAL",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
}

// hasU16Operand reports whether op is followed by a single u16 operand, for
// both disassembly and the VM's instruction-pointer advance.
func hasU16Operand(op Opcode) bool {
	switch op {
	case OP_PUSH, OP_GET_LOCAL, OP_GET_UPVALUE, OP_GET_GLOBAL, OP_CALL,
		OP_MAKE_ARRAY, OP_MAKE_BLOCK, OP_CONCATENATE, OP_JUMP, OP_JUMP_IF_FALSE:
		return true
	default:
		return false
	}
}
