package vm

import (
	"github.com/weftlang/weft/internal/token"
	"github.com/weftlang/weft/internal/typesystem"
)

// primary dispatches on the current token to one of the grammar's primary
// forms: literals, group/concatenation, array, block, if/else, lambda, or
// an identifier (reference, binding, or named-function definition).
func (c *Compiler) primary() error {
	line := c.cur.Line
	switch c.cur.Type {
	case token.NUMBER:
		n, _ := c.cur.Literal.(int32)
		if err := c.advance(); err != nil {
			return err
		}
		k := c.currentChunk().AddConstant(NumberVal(n))
		c.emitU16(OP_PUSH, k, line)
		c.lastType, c.lastLocalRef = typesystem.Number{}, nil
		return nil

	case token.STRING:
		s, _ := c.cur.Literal.(string)
		if err := c.advance(); err != nil {
			return err
		}
		k := c.currentChunk().AddConstant(ObjectVal(&StringObj{Value: s}))
		c.emitU16(OP_PUSH, k, line)
		c.lastType, c.lastLocalRef = typesystem.String{}, nil
		return nil

	case token.TRUE, token.FALSE:
		b := c.cur.Type == token.TRUE
		if err := c.advance(); err != nil {
			return err
		}
		k := c.currentChunk().AddConstant(BoolVal(b))
		c.emitU16(OP_PUSH, k, line)
		c.lastType, c.lastLocalRef = typesystem.Boolean{}, nil
		return nil

	case token.LPAREN:
		return c.group(line)
	case token.LBRACKET:
		return c.arrayLiteral(line)
	case token.LBRACE:
		return c.blockLiteral(line)
	case token.IF:
		return c.ifExpr(line)
	case token.BACKSLASH:
		return c.lambda(line, "")
	case token.IDENT:
		return c.identifier(line)
	case token.EOF:
		return errUnexpectedEOF(line)
	default:
		return errUnexpectedToken(line, c.cur)
	}
}

// identifier resolves name local -> upvalue -> built-in global.
// `name = expr` always introduces a new value binding, even when name
// already resolves: the new local shadows the earlier binding from here
// on, and closures that captured the earlier one keep its value.
// Otherwise, if none resolve, name is being introduced as a function
// binding (`name \ ... = body`). A name that shadows the enclosing
// function's own binding name is rejected as a disallowed recursive
// self-reference.
func (c *Compiler) identifier(line int) error {
	name := c.cur.Lexeme
	if err := c.advance(); err != nil {
		return err
	}

	if c.cur.Type == token.ASSIGN && name != c.fs.name {
		return c.valueBinding(name, line)
	}

	if lcl := c.fs.resolveLocal(name); lcl != nil {
		idx := c.fs.localIndex(lcl)
		c.emitU16(OP_GET_LOCAL, uint16(idx), line)
		c.lastType, c.lastLocalRef = lcl.Type, lcl
		return c.maybeAutoCall(line)
	}

	if upIdx, upType, ok := resolveUpvalue(c.fs, name); ok {
		c.emitU16(OP_GET_UPVALUE, uint16(upIdx), line)
		c.lastType, c.lastLocalRef = upType, nil
		return c.maybeAutoCall(line)
	}

	if gi, ok := c.globals.Resolve(name); ok {
		g := c.globals.At(gi)
		c.emitU16(OP_GET_GLOBAL, uint16(gi), line)
		c.lastType, c.lastLocalRef = g.Type, nil
		return c.maybeAutoCall(line)
	}

	if name == c.fs.name {
		return errRecursiveCall(line, name)
	}

	if c.cur.Type == token.ASSIGN {
		return c.valueBinding(name, line)
	}
	return c.lambda(line, name)
}

// valueBinding compiles `name = expr`: the expression's value is consumed
// entirely into a new local (PUSH_LOCAL), and — for uniformity with every
// other expression form, which always leaves exactly one stack value — a
// trailing Nil is pushed as the binding's own result.
func (c *Compiler) valueBinding(name string, line int) error {
	if err := c.advance(); err != nil { // consume '='
		return err
	}
	if err := c.compileExpr(); err != nil {
		return err
	}
	rhsType := c.lastType
	c.emit(OP_PUSH_LOCAL, line)
	c.fs.addLocal(name, rhsType)
	c.emitNilValue(line)
	c.lastType, c.lastLocalRef = typesystem.Nil{}, nil
	return nil
}

// lambda compiles a function body, whether anonymous (`\ ... = body`,
// name == "") or a named binding (`name \ ... = body`). Parameters are
// registered in a fresh FuncState; unannotated parameters start life as
// Unknown and are patched the first time an expression in the body
// asserts a concrete type against them, finalizing to Any if
// never asserted.
//
// Call arguments are pushed left to right, so the callee's locals table
// must register parameters in REVERSE declaration order: PUSH_LOCAL
// always consumes the value-stack top, so the last-pushed (rightmost
// declared) parameter must be registered first to land in its matching
// slot.
func (c *Compiler) lambda(line int, name string) error {
	if c.cur.Type != token.BACKSLASH {
		return errUnexpectedToken(c.cur.Line, c.cur)
	}
	if err := c.advance(); err != nil {
		return err
	}

	type paramDecl struct {
		name string
		typ  typesystem.Type
	}
	var params []paramDecl
	for c.cur.Type == token.IDENT {
		pname := c.cur.Lexeme
		if err := c.advance(); err != nil {
			return err
		}
		ptype := typesystem.Type(typesystem.Unknown{})
		if c.cur.Type == token.COLON {
			if err := c.advance(); err != nil {
				return err
			}
			t, err := c.parseTypeAnnotation()
			if err != nil {
				return err
			}
			ptype = t
		}
		params = append(params, paramDecl{pname, ptype})
	}
	if err := c.expect(token.ASSIGN); err != nil {
		return err
	}

	parentFS := c.fs
	childFS := newFuncState(parentFS, name)
	c.fs = childFS
	childFS.beginScope()

	paramLocals := make([]*Local, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		paramLocals[i] = childFS.addLocal(params[i].name, params[i].typ)
		childFS.chunk.WriteOp(OP_PUSH_LOCAL, line)
	}

	if err := c.compileExpr(); err != nil {
		c.fs = parentFS
		return err
	}
	bodyType, bodyRef := c.lastType, c.lastLocalRef

	for _, lcl := range paramLocals {
		if _, ok := lcl.Type.(typesystem.Unknown); ok {
			lcl.Type = typesystem.Any{}
		}
	}
	if bodyRef != nil {
		// A body that is a bare parameter reference returns that
		// parameter's final type, not the Unknown placeholder.
		bodyType = bodyRef.Type
	}
	childFS.endScope(line)

	fnType := typesystem.Function{Return: bodyType}
	for _, lcl := range paramLocals {
		fnType.Params = append(fnType.Params, lcl.Type)
	}

	fn := &FunctionObj{
		Name:     name,
		Chunk:    childFS.chunk,
		Arity:    len(params),
		Upvalues: childFS.upvalues,
		Type:     fnType,
	}

	c.fs = parentFS
	k := c.currentChunk().AddConstant(ObjectVal(fn))
	c.emitU16(OP_PUSH, k, line)
	if len(fn.Upvalues) > 0 {
		c.emit(OP_MAKE_CLOSURE, line)
	}
	c.lastType, c.lastLocalRef = fnType, nil

	if name != "" {
		c.emit(OP_PUSH_LOCAL, line)
		c.fs.addLocal(name, fnType)
		c.emitNilValue(line)
		c.lastType, c.lastLocalRef = typesystem.Nil{}, nil
	}
	return nil
}

// group compiles `( e1 e2 ... )`: zero expressions yield Nil, one yields
// that expression untouched, two or more are concatenated to a String.
func (c *Compiler) group(line int) error {
	if err := c.advance(); err != nil { // consume '('
		return err
	}
	c.fs.beginScope()
	if err := c.skipNewlines(); err != nil {
		return err
	}

	var types []typesystem.Type
	for c.cur.Type != token.RPAREN {
		if c.cur.Type == token.EOF {
			return errUnexpectedEOF(c.cur.Line)
		}
		elemLine := c.cur.Line
		if err := c.compileExpr(); err != nil {
			return err
		}
		if _, isNil := c.lastType.(typesystem.Nil); isNil {
			// A binding's trailing Nil result (or an explicit `()`) isn't a
			// concatenation operand: drop its stack slot rather than count it.
			c.emit(OP_POP, elemLine)
		} else {
			types = append(types, c.lastType)
		}
		if err := c.skipNewlines(); err != nil {
			return err
		}
	}
	if err := c.advance(); err != nil { // consume ')'
		return err
	}
	c.fs.endScope(line)

	switch len(types) {
	case 0:
		c.emitNilValue(line)
		c.lastType = typesystem.Nil{}
	case 1:
		c.lastType = types[0]
	default:
		c.emitU16(OP_CONCATENATE, uint16(len(types)), line)
		c.lastType = typesystem.String{}
	}
	c.lastLocalRef = nil
	return nil
}

// arrayLiteral compiles `[ e1 e2 ... ]`. Every element's static type must
// satisfy the first element's (the array satisfies rule handles the
// special case of an empty array literal matching any element type).
func (c *Compiler) arrayLiteral(line int) error {
	if err := c.advance(); err != nil { // consume '['
		return err
	}
	c.fs.beginScope()
	if err := c.skipNewlines(); err != nil {
		return err
	}

	var elemType typesystem.Type = typesystem.Nil{}
	count := 0
	for c.cur.Type != token.RBRACKET {
		if c.cur.Type == token.EOF {
			return errUnexpectedEOF(c.cur.Line)
		}
		elemLine := c.cur.Line
		if err := c.compileExpr(); err != nil {
			return err
		}
		if _, isNil := c.lastType.(typesystem.Nil); isNil {
			// A binding's trailing Nil result isn't an array element: drop
			// its stack slot rather than count or type-check it.
			c.emit(OP_POP, elemLine)
			if err := c.skipNewlines(); err != nil {
				return err
			}
			continue
		}
		if count == 0 {
			elemType = c.lastType
		} else if !typesystem.Satisfies(c.lastType, elemType) {
			return errListItemTypeMismatch(elemLine, elemType, c.lastType)
		}
		count++
		if err := c.skipNewlines(); err != nil {
			return err
		}
	}
	if err := c.advance(); err != nil { // consume ']'
		return err
	}
	c.fs.endScope(line)

	c.emitU16(OP_MAKE_ARRAY, uint16(count), line)
	c.lastType, c.lastLocalRef = typesystem.Array{Elem: elemType}, nil
	return nil
}

// blockLiteral compiles `{ stmt* }`: every statement is compiled as a
// binding or a side-effecting discard, and every local declared directly
// in the block's own scope becomes one positional field, in declaration
// order.
func (c *Compiler) blockLiteral(line int) error {
	if err := c.advance(); err != nil { // consume '{'
		return err
	}
	c.fs.beginScope()
	depth := c.fs.depth
	if err := c.skipNewlines(); err != nil {
		return err
	}

	for c.cur.Type != token.RBRACE {
		if c.cur.Type == token.EOF {
			return errUnexpectedEOF(c.cur.Line)
		}
		if err := c.compileStatement(); err != nil {
			return err
		}
		if err := c.skipNewlines(); err != nil {
			return err
		}
	}
	if err := c.advance(); err != nil { // consume '}'
		return err
	}

	var fields []*Local
	for _, lcl := range c.fs.locals {
		if lcl.Depth == depth {
			fields = append(fields, lcl)
		}
	}
	for _, lcl := range fields {
		idx := c.fs.localIndex(lcl)
		c.emitU16(OP_GET_LOCAL, uint16(idx), line)
	}
	names := make([]Value, len(fields))
	for i, lcl := range fields {
		names[i] = ObjectVal(&StringObj{Value: lcl.Name})
	}
	namesConst := c.currentChunk().AddConstant(ObjectVal(&ArrayObj{Elements: names}))
	c.emitU16(OP_MAKE_BLOCK, namesConst, line)

	c.fs.endScope(line)

	blockType := typesystem.Block{}
	for _, lcl := range fields {
		blockType.Fields = append(blockType.Fields, typesystem.BlockField{Name: lcl.Name, Type: lcl.Type})
	}
	c.lastType, c.lastLocalRef = blockType, nil
	return nil
}

// ifExpr compiles `if cond then [else else_]`. The condition must be
// Boolean; an absent else branch behaves as `else nil`; the else
// branch's type must satisfy the then branch's (one-way, not exact
// agreement — an Any-typed else is accepted against a concrete then,
// the same as any other call or assignment site), and the then
// branch's type is the static type of the whole expression.
func (c *Compiler) ifExpr(line int) error {
	if err := c.advance(); err != nil { // consume 'if'
		return err
	}
	if err := c.compileExpr(); err != nil {
		return err
	}
	if _, err := c.assertBoolean(c.lastType, c.lastLocalRef, line); err != nil {
		return err
	}

	jumpIfFalse := c.emitJump(OP_JUMP_IF_FALSE, line)

	if err := c.compileExpr(); err != nil {
		return err
	}
	thenType := c.lastType

	jumpOverElse := c.emitJump(OP_JUMP, line)
	c.patchJump(jumpIfFalse)

	var elseType typesystem.Type
	if c.cur.Type == token.ELSE {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.compileExpr(); err != nil {
			return err
		}
		elseType = c.lastType
	} else {
		c.emitNilValue(line)
		elseType = typesystem.Nil{}
	}
	c.patchJump(jumpOverElse)

	if !typesystem.Satisfies(elseType, thenType) {
		return errBranchTypeMismatch(line, thenType, elseType)
	}
	c.lastType, c.lastLocalRef = thenType, nil
	return nil
}
