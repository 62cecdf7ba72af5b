// Package vm implements the bytecode compiler and stack machine: a
// single-pass compiler that emits directly to a Chunk (no intermediate
// AST), and the Machine that executes the result.
package vm

import (
	"github.com/weftlang/weft/internal/lexer"
	"github.com/weftlang/weft/internal/token"
	"github.com/weftlang/weft/internal/typesystem"
)

// Compiler turns a token stream into a compiled FunctionObj representing
// the whole program (the top-level script is itself a zero-arity,
// zero-upvalue function, same as any other). There is no error recovery:
// the first CompileError aborts the pass.
type Compiler struct {
	lex     *lexer.Lexer
	cur     token.Token
	prev    token.Token
	fs      *FuncState
	globals *Globals

	// lastType/lastLocalRef describe the value most recently left on the
	// stack by compileExpr: lastLocalRef is non-nil only when that value
	// was a bare GET_LOCAL of a local belonging to the CURRENT FuncState,
	// which lets a later type assertion patch an Unknown parameter type in
	// place (auto-inferring its type). Patching is deliberately restricted
	// to the innermost function; a reference captured as an upvalue never
	// patches its owning function's parameter.
	lastType     typesystem.Type
	lastLocalRef *Local
}

// Compile compiles src against the fixed built-in registry globals and
// returns the top-level script as a FunctionObj.
func Compile(src string, globals *Globals) (*FunctionObj, error) {
	c := &Compiler{lex: lexer.New(src), globals: globals}
	c.fs = newFuncState(nil, "")

	if err := c.advance(); err != nil {
		return nil, err
	}
	if err := c.skipNewlines(); err != nil {
		return nil, err
	}

	// The script's overall value is its last top-level expression (Nil if
	// the source is empty): every statement but the last is popped, the
	// same way a block literal's body statements are, but the final one
	// is left on the stack as the program's result.
	count := 0
	for c.cur.Type != token.EOF {
		line := c.cur.Line
		if err := c.compileExpr(); err != nil {
			return nil, err
		}
		count++
		if err := c.skipNewlines(); err != nil {
			return nil, err
		}
		if c.cur.Type != token.EOF {
			c.emit(OP_POP, line)
		}
	}
	if count == 0 {
		c.emitNilValue(0)
	}

	return &FunctionObj{
		Name:  "",
		Chunk: c.fs.chunk,
		Arity: 0,
		Type:  typesystem.Function{Return: typesystem.Nil{}},
	}, nil
}

// advance pulls the next token from the lexer, rejecting the lexer's own
// diagnostic token kinds (an illegal character, an overflowing number
// literal, or an unterminated string) as compile errors immediately.
func (c *Compiler) advance() error {
	c.prev = c.cur
	c.cur = c.lex.Next()
	switch c.cur.Type {
	case token.ILLEGAL_CHAR, token.ILLEGAL_NUMBER, token.UNTERMINATED:
		return errUnexpectedToken(c.cur.Line, c.cur)
	}
	return nil
}

// expect consumes cur if it matches t, else fails.
func (c *Compiler) expect(t token.Type) error {
	if c.cur.Type == token.EOF {
		return errUnexpectedEOF(c.cur.Line)
	}
	if c.cur.Type != t {
		return errUnexpectedToken(c.cur.Line, c.cur)
	}
	return c.advance()
}

// skipNewlines consumes any run of NEWLINE tokens. Used inside group,
// array, and block syntax, and between top-level statements — anywhere
// a line break is not itself a meaningful statement separator.
func (c *Compiler) skipNewlines() error {
	for c.cur.Type == token.NEWLINE {
		if err := c.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) currentChunk() *Chunk { return c.fs.chunk }

func (c *Compiler) emit(op Opcode, line int) { c.fs.chunk.WriteOp(op, line) }

func (c *Compiler) emitU16(op Opcode, operand uint16, line int) {
	c.fs.chunk.WriteOpU16(op, operand, line)
}

// emitNilValue pushes the empty-string constant used as Nil's runtime
// representation: Nil displays as the empty string.
func (c *Compiler) emitNilValue(line int) {
	k := c.currentChunk().AddConstant(ObjectVal(&StringObj{Value: ""}))
	c.emitU16(OP_PUSH, k, line)
}

func (c *Compiler) emitJump(op Opcode, line int) int {
	return c.fs.chunk.WriteOpU16(op, 0xFFFF, line)
}

// patchJump backfills the u16 operand at operandOffset so that, at
// runtime, the jump lands exactly on the next instruction to be emitted.
// The encoding (distance from the byte after the opcode to the target,
// minus one) matches Disassemble's target computation in disasm.go.
func (c *Compiler) patchJump(operandOffset int) {
	target := c.fs.chunk.Len()
	opcodePos := operandOffset - 1
	off := target - opcodePos - 2
	c.fs.chunk.PatchU16(operandOffset, uint16(off))
}

// compileExpr compiles one expression, always leaving exactly one value
// on the stack (including a binding, which — for uniformity with every
// other expression form — leaves a trailing Nil; see valueBinding).
func (c *Compiler) compileExpr() error {
	return c.or()
}

// compileStatement compiles one expression and discards its value. This
// is "expression used as a statement": the top level and block bodies
// both drive a sequence of these.
func (c *Compiler) compileStatement() error {
	line := c.cur.Line
	if err := c.compileExpr(); err != nil {
		return err
	}
	c.emit(OP_POP, line)
	return nil
}

func (c *Compiler) or() error {
	if err := c.and(); err != nil {
		return err
	}
	for c.cur.Type == token.OR {
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.and(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if _, err := c.assertBoolean(lt, lref, line); err != nil {
			return err
		}
		if _, err := c.assertBoolean(rt, rref, line); err != nil {
			return err
		}
		c.emit(OP_OR, line)
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
	}
	return nil
}

func (c *Compiler) and() error {
	if err := c.equality(); err != nil {
		return err
	}
	for c.cur.Type == token.AND {
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.equality(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if _, err := c.assertBoolean(lt, lref, line); err != nil {
			return err
		}
		if _, err := c.assertBoolean(rt, rref, line); err != nil {
			return err
		}
		c.emit(OP_AND, line)
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
	}
	return nil
}

func (c *Compiler) equality() error {
	if err := c.comparison(); err != nil {
		return err
	}
	for c.cur.Type == token.EQUAL || c.cur.Type == token.NOT_EQUAL {
		op := c.cur.Type
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.comparison(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if err := c.assertSameType(lt, lref, rt, rref, line); err != nil {
			return err
		}
		if op == token.EQUAL {
			c.emit(OP_EQUAL, line)
		} else {
			c.emit(OP_NOT_EQUAL, line)
		}
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
	}
	return nil
}

func (c *Compiler) comparison() error {
	if err := c.addition(); err != nil {
		return err
	}
	for c.cur.Type == token.LESS || c.cur.Type == token.LESS_EQUAL ||
		c.cur.Type == token.GREATER || c.cur.Type == token.GREATER_EQUAL {
		op := c.cur.Type
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.addition(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if _, err := c.assertNumber(lt, lref, line); err != nil {
			return err
		}
		if _, err := c.assertNumber(rt, rref, line); err != nil {
			return err
		}
		switch op {
		case token.LESS:
			c.emit(OP_LESS_THAN, line)
		case token.LESS_EQUAL:
			c.emit(OP_LESS_THAN_EQUAL, line)
		case token.GREATER:
			c.emit(OP_GREATER_THAN, line)
		case token.GREATER_EQUAL:
			c.emit(OP_GREATER_THAN_EQUAL, line)
		}
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
	}
	return nil
}

func (c *Compiler) addition() error {
	if err := c.multiplication(); err != nil {
		return err
	}
	for c.cur.Type == token.PLUS || c.cur.Type == token.MINUS {
		op := c.cur.Type
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.multiplication(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if _, err := c.assertNumber(lt, lref, line); err != nil {
			return err
		}
		if _, err := c.assertNumber(rt, rref, line); err != nil {
			return err
		}
		if op == token.PLUS {
			c.emit(OP_ADD, line)
		} else {
			c.emit(OP_SUBTRACT, line)
		}
		c.lastType, c.lastLocalRef = typesystem.Number{}, nil
	}
	return nil
}

func (c *Compiler) multiplication() error {
	if err := c.unary(); err != nil {
		return err
	}
	for c.cur.Type == token.STAR || c.cur.Type == token.SLASH {
		op := c.cur.Type
		line := c.cur.Line
		lt, lref := c.lastType, c.lastLocalRef
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		rt, rref := c.lastType, c.lastLocalRef
		if _, err := c.assertNumber(lt, lref, line); err != nil {
			return err
		}
		if _, err := c.assertNumber(rt, rref, line); err != nil {
			return err
		}
		if op == token.STAR {
			c.emit(OP_MULTIPLY, line)
		} else {
			c.emit(OP_DIVIDE, line)
		}
		c.lastType, c.lastLocalRef = typesystem.Number{}, nil
	}
	return nil
}

func (c *Compiler) unary() error {
	switch c.cur.Type {
	case token.MINUS:
		line := c.cur.Line
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		if _, err := c.assertNumber(c.lastType, c.lastLocalRef, line); err != nil {
			return err
		}
		c.emit(OP_NEGATE, line)
		c.lastType, c.lastLocalRef = typesystem.Number{}, nil
		return nil
	case token.BANG:
		line := c.cur.Line
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		if _, err := c.assertBoolean(c.lastType, c.lastLocalRef, line); err != nil {
			return err
		}
		c.emit(OP_NOT, line)
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
		return nil
	default:
		return c.get()
	}
}

// get parses a primary expression followed by zero or more `.` accesses.
func (c *Compiler) get() error {
	if err := c.primary(); err != nil {
		return err
	}
	for c.cur.Type == token.DOT {
		line := c.cur.Line
		if err := c.advance(); err != nil {
			return err
		}
		recvType := c.lastType
		c.lastLocalRef = nil

		switch rt := recvType.(type) {
		case typesystem.Array:
			if err := c.primary(); err != nil {
				return err
			}
			if _, err := c.assertNumber(c.lastType, c.lastLocalRef, line); err != nil {
				return err
			}
			c.emit(OP_INDEX, line)
			c.lastType, c.lastLocalRef = rt.Elem, nil
		case typesystem.Block:
			if c.cur.Type != token.IDENT {
				return errUnexpectedToken(c.cur.Line, c.cur)
			}
			fieldName := c.cur.Lexeme
			fieldType, fieldIdx, found := rt.Lookup(fieldName)
			if !found {
				return errInvalidGetIdentifier(c.cur.Line, fieldName)
			}
			if err := c.advance(); err != nil {
				return err
			}
			k := c.currentChunk().AddConstant(NumberVal(int32(fieldIdx)))
			c.emitU16(OP_PUSH, k, line)
			c.emit(OP_INDEX, line)
			c.lastType, c.lastLocalRef = fieldType, nil
			if err := c.maybeAutoCall(line); err != nil {
				return err
			}
		default:
			return errInvalidGetTarget(line, recvType)
		}
	}
	return nil
}

// shouldAutoCall reports whether the token following a function-typed
// reference should trigger an automatic call: suppressed only
// directly before `)`, NEWLINE, or EOF.
func (c *Compiler) shouldAutoCall() bool {
	switch c.cur.Type {
	case token.RPAREN, token.NEWLINE, token.EOF:
		return false
	default:
		return true
	}
}

func (c *Compiler) maybeAutoCall(line int) error {
	fn, ok := c.lastType.(typesystem.Function)
	if !ok || !c.shouldAutoCall() {
		return nil
	}
	return c.compileCallArgs(fn, line)
}

// compileCallArgs compiles exactly len(fn.Params) argument expressions at
// unary precedence (tight juxtaposition, matching the auto-call grammar)
// and emits the CALL instruction.
func (c *Compiler) compileCallArgs(fn typesystem.Function, line int) error {
	for _, paramType := range fn.Params {
		argLine := c.cur.Line
		if err := c.unary(); err != nil {
			return err
		}
		argType := c.lastType
		if c.lastLocalRef != nil {
			if _, ok := c.lastLocalRef.Type.(typesystem.Unknown); ok {
				c.lastLocalRef.Type = paramType
				argType = paramType
			}
		}
		if !typesystem.Satisfies(argType, paramType) {
			return errArgumentTypeMismatch(argLine, paramType, argType)
		}
	}
	c.emitU16(OP_CALL, uint16(len(fn.Params)), line)
	c.lastType, c.lastLocalRef = fn.Return, nil
	return nil
}

// assertNumber asserts t (optionally via ref, a patchable Unknown local)
// satisfies Number, returning the (possibly patched) type.
func (c *Compiler) assertNumber(t typesystem.Type, ref *Local, line int) (typesystem.Type, error) {
	return c.assertType(t, ref, typesystem.Number{}, line)
}

func (c *Compiler) assertBoolean(t typesystem.Type, ref *Local, line int) (typesystem.Type, error) {
	return c.assertType(t, ref, typesystem.Boolean{}, line)
}

func (c *Compiler) assertType(t typesystem.Type, ref *Local, want typesystem.Type, line int) (typesystem.Type, error) {
	if ref != nil {
		// Re-read through the ref: an earlier assertion in the same
		// expression may have patched this local since t was captured
		// (e.g. the left operand of `x + x` patching x before the right
		// operand's check runs).
		t = ref.Type
		if _, ok := ref.Type.(typesystem.Unknown); ok {
			ref.Type = want
			return want, nil
		}
	}
	if !typesystem.Satisfies(t, want) {
		return t, errTypeMismatch(line, t, want)
	}
	return t, nil
}

// assertSameType backs `==`/`!=`: if either side is still an Unknown
// parameter, patch it to the other side's type; otherwise the two types
// must satisfy each other.
func (c *Compiler) assertSameType(lt typesystem.Type, lref *Local, rt typesystem.Type, rref *Local, line int) error {
	if lref != nil {
		lt = lref.Type
	}
	if rref != nil {
		rt = rref.Type
	}
	_, lUnknown := lt.(typesystem.Unknown)
	_, rUnknown := rt.(typesystem.Unknown)
	if lref != nil && lUnknown {
		lref.Type = rt
		lt = rt
	}
	if rref != nil && rUnknown {
		rref.Type = lt
		rt = lt
	}
	if !typesystem.Equal(lt, rt) {
		return errTypeMismatch(line, rt, lt)
	}
	return nil
}
