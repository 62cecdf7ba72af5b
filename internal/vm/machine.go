package vm

import (
	"io"
	"os"
)

func defaultStdout() io.Writer { return os.Stdout }

// frame is one activation record: the function executing, the upvalues
// it closed over (captured by value at MAKE_CLOSURE time), the
// instruction pointer, and the base offset into the shared locals stack.
type frame struct {
	fn        *FunctionObj
	upvalues  []Value
	ip        int
	localBase int
}

// Machine is the stack VM: one shared value stack for expression
// evaluation, a separate locals stack addressed frame-relatively by
// GET_LOCAL/PUSH_LOCAL/POP_LOCAL, and an explicit frame stack so CALL
// never recurses into the host's own call stack.
type Machine struct {
	globals *Globals
	values  []Value
	locals  []Value
	frames  []*frame

	// Stdout is where the print/println built-ins write; defaulted to
	// os.Stdout by NewMachine but overridable (e.g. by tests, or an
	// embedding host).
	Stdout io.Writer
}

// NewMachine returns a Machine bound to the fixed built-in registry.
func NewMachine(globals *Globals) *Machine {
	return &Machine{globals: globals, Stdout: defaultStdout()}
}

func (m *Machine) pushValue(v Value) { m.values = append(m.values, v) }

func (m *Machine) popChecked(line int) (Value, error) {
	if len(m.values) == 0 {
		return Value{}, errValueStackUnderflow(line)
	}
	v := m.values[len(m.values)-1]
	m.values = m.values[:len(m.values)-1]
	return v, nil
}

// Run executes fn (the compiled script, or any zero-argument function)
// to completion and returns its result value.
func (m *Machine) Run(fn *FunctionObj) (Value, error) {
	m.frames = append(m.frames, &frame{fn: fn, localBase: len(m.locals)})
	return m.runUntil(0)
}

// runUntil drives the frame loop until the frame stack depth falls back to
// depth, returning the value left behind by the frame that was at that
// depth when runUntil was entered. A built-in's callback invocation (Call)
// shares this same loop, parameterized by the depth it started at, so a
// closure called from a built-in gets the identical CALL/return machinery
// as one called directly from bytecode.
func (m *Machine) runUntil(depth int) (Value, error) {
	for len(m.frames) > depth {
		f := m.frames[len(m.frames)-1]
		chunk := f.fn.Chunk

		if f.ip >= len(chunk.Code) {
			result, err := m.popChecked(f.lastLine(chunk))
			if err != nil {
				return Value{}, err
			}
			m.locals = m.locals[:f.localBase]
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) == depth {
				return result, nil
			}
			m.pushValue(result)
			continue
		}

		opcodePos := f.ip
		op := Opcode(chunk.Code[opcodePos])
		line := chunk.Lines[opcodePos]
		f.ip++

		var operand uint16
		if hasU16Operand(op) {
			operand = chunk.ReadU16(f.ip)
			f.ip += 2
		}

		if err := m.step(f, op, operand, line); err != nil {
			return Value{}, err
		}
	}

	return Nil(), nil
}

// Call invokes callee (a FunctionObj, ClosureObj, or BuiltinObj Value)
// with args and returns its result. This is the narrow interface a
// built-in uses to call back into user code (e.g. map/loop invoking their
// callback argument) without reaching into the Machine's frame/value
// stack bookkeeping directly — built-ins only ever see their argument
// slice and this method.
func (m *Machine) Call(callee Value, args []Value) (Value, error) {
	switch obj := callee.Obj.(type) {
	case *BuiltinObj:
		b := m.globals.At(obj.Index)
		return b.Invoke(m, args)

	case *FunctionObj:
		depth := len(m.frames)
		for _, a := range args {
			m.pushValue(a)
		}
		m.frames = append(m.frames, &frame{fn: obj, localBase: len(m.locals)})
		return m.runUntil(depth)

	case *ClosureObj:
		depth := len(m.frames)
		for _, a := range args {
			m.pushValue(a)
		}
		m.frames = append(m.frames, &frame{fn: obj.Function, upvalues: obj.Upvalues, localBase: len(m.locals)})
		return m.runUntil(depth)

	default:
		return Value{}, errNotCallable(0, callee.TypeName())
	}
}

// lastLine returns the line attributed to the last emitted byte, used to
// attribute an implicit-return stack underflow somewhere sensible. Falls
// back to 0 for an empty chunk (never produced by the compiler).
func (f *frame) lastLine(chunk *Chunk) int {
	if len(chunk.Lines) == 0 {
		return 0
	}
	return chunk.Lines[len(chunk.Lines)-1]
}

func (m *Machine) step(f *frame, op Opcode, operand uint16, line int) error {
	switch op {
	case OP_POP:
		_, err := m.popChecked(line)
		return err

	case OP_PUSH:
		m.pushValue(f.fn.Chunk.Constants[operand])
		return nil

	case OP_PUSH_LOCAL:
		v, err := m.popChecked(line)
		if err != nil {
			return err
		}
		m.locals = append(m.locals, v)
		return nil

	case OP_POP_LOCAL:
		if len(m.locals) <= f.localBase {
			return errValueStackUnderflow(line)
		}
		m.locals = m.locals[:len(m.locals)-1]
		return nil

	case OP_GET_LOCAL:
		idx := f.localBase + int(operand)
		if idx < 0 || idx >= len(m.locals) {
			return errIndexOutOfBounds(line, int(operand))
		}
		m.pushValue(m.locals[idx])
		return nil

	case OP_GET_UPVALUE:
		if int(operand) >= len(f.upvalues) {
			return errIndexOutOfBounds(line, int(operand))
		}
		m.pushValue(f.upvalues[operand])
		return nil

	case OP_GET_GLOBAL:
		b := m.globals.At(int(operand))
		m.pushValue(ObjectVal(&BuiltinObj{Index: int(operand), Name: b.Name}))
		return nil

	case OP_CALL:
		return m.execCall(f, int(operand), line)

	case OP_MAKE_ARRAY:
		n := int(operand)
		elems := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			v, err := m.popChecked(line)
			if err != nil {
				return err
			}
			elems[i] = v
		}
		m.pushValue(ObjectVal(&ArrayObj{Elements: elems}))
		return nil

	case OP_MAKE_BLOCK:
		namesObj := f.fn.Chunk.Constants[operand].Obj.(*ArrayObj)
		n := len(namesObj.Elements)
		values := make([]Value, n)
		names := make([]string, n)
		for i := n - 1; i >= 0; i-- {
			v, err := m.popChecked(line)
			if err != nil {
				return err
			}
			values[i] = v
		}
		for i, nv := range namesObj.Elements {
			names[i] = nv.Obj.(*StringObj).Value
		}
		m.pushValue(ObjectVal(&BlockObj{Fields: values, FieldNames: names}))
		return nil

	case OP_INDEX:
		idxVal, err := m.popChecked(line)
		if err != nil {
			return err
		}
		recv, err := m.popChecked(line)
		if err != nil {
			return err
		}
		idx := int(idxVal.Number)
		switch obj := recv.Obj.(type) {
		case *ArrayObj:
			if idx < 0 || idx >= len(obj.Elements) {
				return errIndexOutOfBounds(line, idx)
			}
			m.pushValue(obj.Elements[idx])
			return nil
		case *BlockObj:
			if idx < 0 || idx >= len(obj.Fields) {
				return errIndexOutOfBounds(line, idx)
			}
			m.pushValue(obj.Fields[idx])
			return nil
		default:
			return errIndexOutOfBounds(line, idx)
		}

	case OP_MAKE_CLOSURE:
		v, err := m.popChecked(line)
		if err != nil {
			return err
		}
		fn := v.Obj.(*FunctionObj)
		captured := make([]Value, len(fn.Upvalues))
		for i, uv := range fn.Upvalues {
			if uv.IsLocal {
				captured[i] = m.locals[f.localBase+uv.Index]
			} else {
				captured[i] = f.upvalues[uv.Index]
			}
		}
		m.pushValue(ObjectVal(&ClosureObj{Function: fn, Upvalues: captured}))
		return nil

	case OP_OR:
		return m.binBool(line, func(a, b bool) bool { return a || b })
	case OP_AND:
		return m.binBool(line, func(a, b bool) bool { return a && b })
	case OP_NOT:
		v, err := m.popChecked(line)
		if err != nil {
			return err
		}
		m.pushValue(BoolVal(!v.Bool))
		return nil

	case OP_ADD:
		return m.binNumber(line, func(a, b int32) int32 { return a + b })
	case OP_SUBTRACT:
		return m.binNumber(line, func(a, b int32) int32 { return a - b })
	case OP_MULTIPLY:
		return m.binNumber(line, func(a, b int32) int32 { return a * b })
	case OP_DIVIDE:
		b, err := m.popChecked(line)
		if err != nil {
			return err
		}
		a, err := m.popChecked(line)
		if err != nil {
			return err
		}
		if b.Number == 0 {
			return errDivideByZero(line)
		}
		m.pushValue(NumberVal(a.Number / b.Number))
		return nil
	case OP_NEGATE:
		v, err := m.popChecked(line)
		if err != nil {
			return err
		}
		m.pushValue(NumberVal(-v.Number))
		return nil

	case OP_CONCATENATE:
		n := int(operand)
		parts := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			v, err := m.popChecked(line)
			if err != nil {
				return err
			}
			parts[i] = v
		}
		var sb []byte
		for _, p := range parts {
			sb = append(sb, p.Display()...)
		}
		m.pushValue(ObjectVal(&StringObj{Value: string(sb)}))
		return nil

	case OP_EQUAL:
		a, b, err := m.popPair(line)
		if err != nil {
			return err
		}
		m.pushValue(BoolVal(Equal(a, b)))
		return nil
	case OP_NOT_EQUAL:
		a, b, err := m.popPair(line)
		if err != nil {
			return err
		}
		m.pushValue(BoolVal(!Equal(a, b)))
		return nil
	case OP_GREATER_THAN:
		return m.binCompare(line, func(a, b int32) bool { return a > b })
	case OP_GREATER_THAN_EQUAL:
		return m.binCompare(line, func(a, b int32) bool { return a >= b })
	case OP_LESS_THAN:
		return m.binCompare(line, func(a, b int32) bool { return a < b })
	case OP_LESS_THAN_EQUAL:
		return m.binCompare(line, func(a, b int32) bool { return a <= b })

	case OP_JUMP:
		// f.ip already sits just past this instruction's operand; see
		// patchJump in compiler.go for the matching encoding.
		f.ip = f.ip - 1 + int(operand)
		return nil
	case OP_JUMP_IF_FALSE:
		cond, err := m.popChecked(line)
		if err != nil {
			return err
		}
		if !cond.Bool {
			f.ip = f.ip - 1 + int(operand)
		}
		return nil

	default:
		return errNotCallable(line, "?")
	}
}

// popPair pops b then a, so that a was pushed first (left operand).
func (m *Machine) popPair(line int) (Value, Value, error) {
	b, err := m.popChecked(line)
	if err != nil {
		return Value{}, Value{}, err
	}
	a, err := m.popChecked(line)
	if err != nil {
		return Value{}, Value{}, err
	}
	return a, b, nil
}

func (m *Machine) binNumber(line int, f func(a, b int32) int32) error {
	a, b, err := m.popPair(line)
	if err != nil {
		return err
	}
	m.pushValue(NumberVal(f(a.Number, b.Number)))
	return nil
}

func (m *Machine) binBool(line int, f func(a, b bool) bool) error {
	a, b, err := m.popPair(line)
	if err != nil {
		return err
	}
	m.pushValue(BoolVal(f(a.Bool, b.Bool)))
	return nil
}

func (m *Machine) binCompare(line int, f func(a, b int32) bool) error {
	a, b, err := m.popPair(line)
	if err != nil {
		return err
	}
	m.pushValue(BoolVal(f(a.Number, b.Number)))
	return nil
}

// execCall pops n argument values and the callee, then dispatches: a
// built-in runs immediately against the args slice; a function or
// closure pushes a new frame and restores the args onto the value stack
// for its own PUSH_LOCAL prologue to consume.
func (m *Machine) execCall(caller *frame, n int, line int) error {
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := m.popChecked(line)
		if err != nil {
			return err
		}
		args[i] = v
	}
	callee, err := m.popChecked(line)
	if err != nil {
		return err
	}

	switch obj := callee.Obj.(type) {
	case *BuiltinObj:
		b := m.globals.At(obj.Index)
		result, err := b.Invoke(m, args)
		if err != nil {
			return err
		}
		m.pushValue(result)
		return nil

	case *FunctionObj:
		for _, a := range args {
			m.pushValue(a)
		}
		m.frames = append(m.frames, &frame{fn: obj, localBase: len(m.locals)})
		return nil

	case *ClosureObj:
		for _, a := range args {
			m.pushValue(a)
		}
		m.frames = append(m.frames, &frame{fn: obj.Function, upvalues: obj.Upvalues, localBase: len(m.locals)})
		return nil

	default:
		return errNotCallable(line, callee.TypeName())
	}
}
