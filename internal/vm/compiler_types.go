package vm

import (
	"github.com/weftlang/weft/internal/token"
	"github.com/weftlang/weft/internal/typesystem"
)

// parseTypeAnnotation parses one type expression: a primitive name
// (number/string/boolean/nil/any), `[ T ]` for an array, `\ T1 T2 ... = R`
// for a function, `( T )` for grouping, or `{ name T1 T2... = R, ... }`
// for a block — a field with zero parameter types before `=` is a
// constant field of that exact type; one or more make it a function
// field.
func (c *Compiler) parseTypeAnnotation() (typesystem.Type, error) {
	switch c.cur.Type {
	case token.IDENT:
		name := c.cur.Lexeme
		if err := c.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "number":
			return typesystem.Number{}, nil
		case "string":
			return typesystem.String{}, nil
		case "boolean":
			return typesystem.Boolean{}, nil
		case "nil":
			return typesystem.Nil{}, nil
		case "any":
			return typesystem.Any{}, nil
		default:
			return nil, errInvalidTypeAnnotation(c.prev.Line, name)
		}

	case token.LBRACKET:
		if err := c.advance(); err != nil {
			return nil, err
		}
		elem, err := c.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		if err := c.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return typesystem.Array{Elem: elem}, nil

	case token.BACKSLASH:
		if err := c.advance(); err != nil {
			return nil, err
		}
		var params []typesystem.Type
		for c.cur.Type != token.ASSIGN {
			if c.cur.Type == token.EOF {
				return nil, errUnexpectedEOF(c.cur.Line)
			}
			t, err := c.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			params = append(params, t)
		}
		if err := c.advance(); err != nil { // consume '='
			return nil, err
		}
		ret, err := c.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		return typesystem.Function{Params: params, Return: ret}, nil

	case token.LPAREN:
		if err := c.advance(); err != nil {
			return nil, err
		}
		t, err := c.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		if err := c.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return t, nil

	case token.LBRACE:
		return c.parseBlockTypeAnnotation()

	default:
		return nil, errInvalidTypeAnnotation(c.cur.Line, c.cur.Lexeme)
	}
}

func (c *Compiler) parseBlockTypeAnnotation() (typesystem.Type, error) {
	if err := c.advance(); err != nil { // consume '{'
		return nil, err
	}
	if err := c.skipNewlines(); err != nil {
		return nil, err
	}

	var fields []typesystem.BlockField
	for c.cur.Type != token.RBRACE {
		if c.cur.Type != token.IDENT {
			return nil, errUnexpectedToken(c.cur.Line, c.cur)
		}
		fname := c.cur.Lexeme
		if err := c.advance(); err != nil {
			return nil, err
		}

		var params []typesystem.Type
		for c.cur.Type != token.ASSIGN {
			if c.cur.Type == token.EOF {
				return nil, errUnexpectedEOF(c.cur.Line)
			}
			t, err := c.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			params = append(params, t)
		}
		if err := c.advance(); err != nil { // consume '='
			return nil, err
		}
		ret, err := c.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}

		var fieldType typesystem.Type
		if len(params) == 0 {
			fieldType = ret
		} else {
			fieldType = typesystem.Function{Params: params, Return: ret}
		}
		fields = append(fields, typesystem.BlockField{Name: fname, Type: fieldType})

		if c.cur.Type == token.COMMA {
			if err := c.advance(); err != nil {
				return nil, err
			}
		}
		if err := c.skipNewlines(); err != nil {
			return nil, err
		}
	}
	if err := c.advance(); err != nil { // consume '}'
		return nil, err
	}
	return typesystem.Block{Fields: fields}, nil
}
