package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of chunk's bytecode, in the
// `%04d line OPCODE operand` layout used by the CLI's pre-execution dump.
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)

	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", chunk.Lines[offset])
	}

	op := Opcode(chunk.Code[offset])
	name, ok := OpcodeNames[op]
	if !ok {
		fmt.Fprintf(sb, "UNKNOWN(%d)\n", op)
		return offset + 1
	}

	if !hasU16Operand(op) {
		sb.WriteString(name)
		sb.WriteString("\n")
		return offset + 1
	}

	operand := chunk.ReadU16(offset + 1)
	if op == OP_PUSH {
		fmt.Fprintf(sb, "%-16s %4d '%s'\n", name, operand, chunk.Constants[operand].Display())
	} else if op == OP_JUMP || op == OP_JUMP_IF_FALSE {
		target := offset + 3 + int(operand) - 1
		fmt.Fprintf(sb, "%-16s %4d -> %d\n", name, operand, target)
	} else {
		fmt.Fprintf(sb, "%-16s %4d\n", name, operand)
	}
	return offset + 3
}
