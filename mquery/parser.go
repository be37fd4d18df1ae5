package mquery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMParse wraps M expression parse failures. Callers downgrade the
// affected expression to an Opaque token-stream node.
var ErrMParse = errors.New("m: parse error")

// ParseExpression parses one M expression into the small AST. Expressions
// the grammar does not cover come back as an error; use ParseOrOpaque to
// apply the Opaque fallthrough.
func ParseExpression(src string) (*Node, error) {
	lx := &mLexer{input: src}
	tokens, err := lx.lexAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMParse, err)
	}

	p := &mParser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != mEOF {
		return nil, fmt.Errorf("%w: trailing input at offset %d", ErrMParse, p.peek().pos)
	}
	return node, nil
}

// ParseOrOpaque parses src, falling through to an Opaque node carrying the
// token stream when the expression is not recognized. Only a lexing failure
// is reported as an error.
func ParseOrOpaque(src string) (*Node, error) {
	node, err := ParseExpression(src)
	if err == nil {
		return node, nil
	}

	lx := &mLexer{input: src}
	tokens, lexErr := lx.lexAll()
	if lexErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMParse, lexErr)
	}
	lits := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.typ != mEOF {
			lits = append(lits, tok.lit)
		}
	}
	return &Node{Kind: Opaque, Tokens: lits}, nil
}

type mParser struct {
	tokens []mToken
	pos    int
}

func (p *mParser) peek() mToken { return p.tokens[p.pos] }

func (p *mParser) peekAt(offset int) mToken {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *mParser) advance() mToken {
	tok := p.tokens[p.pos]
	if tok.typ != mEOF {
		p.pos++
	}
	return tok
}

func (p *mParser) expectPunct(lit string) error {
	tok := p.peek()
	if tok.typ != mPunct || tok.lit != lit {
		return fmt.Errorf("%w: expected %q at offset %d", ErrMParse, lit, tok.pos)
	}
	p.advance()
	return nil
}

func (p *mParser) isKeyword(lit string) bool {
	tok := p.peek()
	return tok.typ == mIdent && tok.lit == lit
}

// Precedence, loosest first: or, and, comparison/equality, concatenation,
// additive, multiplicative, "as"/"is" ascription, unary, postfix access.

func (p *mParser) parseExpr() (*Node, error) {
	switch {
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("each"):
		p.advance()
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: Each, Children: []*Node{body}}, nil
	case p.isKeyword("try"):
		return p.parseTry()
	case p.isKeyword("let"):
		return p.parseLet()
	}

	if node, ok, err := p.tryFunctionLiteral(); ok || err != nil {
		return node, err
	}

	return p.parseOr()
}

func (p *mParser) parseIf() (*Node, error) {
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("then") {
		return nil, fmt.Errorf("%w: expected 'then' at offset %d", ErrMParse, p.peek().pos)
	}
	p.advance()
	thenExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, fmt.Errorf("%w: expected 'else' at offset %d", ErrMParse, p.peek().pos)
	}
	p.advance()
	elseExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: If, Children: []*Node{cond, thenExpr, elseExpr}}, nil
}

func (p *mParser) parseTry() (*Node, error) {
	p.advance() // try
	tryExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("otherwise") {
		return nil, fmt.Errorf("%w: expected 'otherwise' at offset %d", ErrMParse, p.peek().pos)
	}
	p.advance()
	otherwiseExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: TryOtherwise, Children: []*Node{tryExpr, otherwiseExpr}}, nil
}

func (p *mParser) parseLet() (*Node, error) {
	p.advance() // let
	var steps []Field
	for {
		nameTok := p.peek()
		if nameTok.typ != mIdent && nameTok.typ != mQuotedIdent {
			return nil, fmt.Errorf("%w: expected step name at offset %d", ErrMParse, nameTok.pos)
		}
		p.advance()
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		steps = append(steps, Field{Name: nameTok.lit, Value: value})

		if p.peek().typ == mPunct && p.peek().lit == "," {
			p.advance()
			continue
		}
		break
	}
	if !p.isKeyword("in") {
		return nil, fmt.Errorf("%w: expected 'in' at offset %d", ErrMParse, p.peek().pos)
	}
	p.advance()
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: Let, Fields: steps, Children: []*Node{body}}, nil
}

// tryFunctionLiteral recognizes "(x, y) => body" by scanning ahead for the
// arrow behind a balanced parameter list.
func (p *mParser) tryFunctionLiteral() (*Node, bool, error) {
	if p.peek().typ != mPunct || p.peek().lit != "(" {
		return nil, false, nil
	}

	depth := 0
	offset := 0
scan:
	for {
		tok := p.peekAt(offset)
		switch {
		case tok.typ == mEOF:
			return nil, false, nil
		case tok.typ == mPunct && tok.lit == "(":
			depth++
		case tok.typ == mPunct && tok.lit == ")":
			depth--
			if depth == 0 {
				break scan
			}
		}
		offset++
	}
	arrow := p.peekAt(offset + 1)
	if arrow.typ != mOp || arrow.lit != "=>" {
		return nil, false, nil
	}

	p.advance() // (
	paramCount := 0
	if !(p.peek().typ == mPunct && p.peek().lit == ")") {
		for {
			nameTok := p.peek()
			if nameTok.typ != mIdent && nameTok.typ != mQuotedIdent {
				return nil, true, fmt.Errorf("%w: expected parameter at offset %d", ErrMParse, nameTok.pos)
			}
			p.advance()
			paramCount++
			// Optional type ascription on the parameter.
			if p.isKeyword("as") {
				p.advance()
				if p.peek().typ != mIdent {
					return nil, true, fmt.Errorf("%w: expected type at offset %d", ErrMParse, p.peek().pos)
				}
				p.advance()
			}
			if p.peek().typ == mPunct && p.peek().lit == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, true, err
	}
	p.advance() // =>
	body, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	return &Node{Kind: FunctionLiteral, ParamCount: paramCount, Children: []*Node{body}}, true, nil
}

func (p *mParser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: BinaryOp, Op: "or", Children: []*Node{left, right}}
	}
	return left, nil
}

func (p *mParser) parseAnd() (*Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: BinaryOp, Op: "and", Children: []*Node{left, right}}
	}
	return left, nil
}

var mComparisonOps = map[string]bool{
	"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *mParser) parseComparison() (*Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		isEq := tok.typ == mPunct && tok.lit == "="
		isOp := tok.typ == mOp && mComparisonOps[tok.lit]
		if !isEq && !isOp {
			return left, nil
		}
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: BinaryOp, Op: tok.lit, Children: []*Node{left, right}}
	}
}

func (p *mParser) parseConcat() (*Node, error) {
	return p.parseBinaryOps([]string{"&"}, p.parseAdditive)
}

func (p *mParser) parseAdditive() (*Node, error) {
	return p.parseBinaryOps([]string{"+", "-"}, p.parseMultiplicative)
}

func (p *mParser) parseMultiplicative() (*Node, error) {
	return p.parseBinaryOps([]string{"*", "/"}, p.parseAscription)
}

func (p *mParser) parseBinaryOps(ops []string, next func() (*Node, error)) (*Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != mOp || !containsString(ops, tok.lit) {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: BinaryOp, Op: tok.lit, Children: []*Node{left, right}}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// parseAscription handles "expr as type" and "expr is type". The type name
// is carried as a Primitive; canonicalization folds its case.
func (p *mParser) parseAscription() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("as") || p.isKeyword("is") {
		op := p.advance().lit
		typeTok := p.peek()
		if typeTok.typ != mIdent {
			return nil, fmt.Errorf("%w: expected type name at offset %d", ErrMParse, typeTok.pos)
		}
		p.advance()
		typeNode := &Node{Kind: Primitive, Literal: "type:" + typeTok.lit}
		left = &Node{Kind: BinaryOp, Op: op, Children: []*Node{left, typeNode}}
	}
	return left, nil
}

func (p *mParser) parseUnary() (*Node, error) {
	tok := p.peek()
	if p.isKeyword("not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: UnaryOp, Op: "not", Children: []*Node{operand}}, nil
	}
	if tok.typ == mOp && (tok.lit == "-" || tok.lit == "+") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// A signed number literal folds into the primitive itself.
		if operand.Kind == Primitive && strings.HasPrefix(operand.Literal, "num:") {
			if tok.lit == "-" {
				return &Node{Kind: Primitive, Literal: "num:-" + operand.Literal[4:]}, nil
			}
			return operand, nil
		}
		return &Node{Kind: UnaryOp, Op: tok.lit, Children: []*Node{operand}}, nil
	}
	return p.parsePostfix()
}

// parsePostfix applies field/item access chains to a primary expression.
func (p *mParser) parsePostfix() (*Node, error) {
	target, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	chain := 0
	for {
		tok := p.peek()
		if tok.typ != mPunct || (tok.lit != "[" && tok.lit != "{") {
			return target, nil
		}
		open := tok.lit
		closing := "]"
		kind := FieldAccess
		if open == "{" {
			closing = "}"
			kind = ItemAccess
		}
		p.advance()
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(closing); err != nil {
			return nil, err
		}
		// Optional "?" marks optional access; not significant to the shape.
		if p.peek().typ == mPunct && p.peek().lit == "?" {
			p.advance()
		}
		chain++
		target = &Node{
			Kind:       Access,
			AccessKind: kind,
			ChainLen:   chain,
			Children:   []*Node{target, key},
		}
	}
}

func (p *mParser) parsePrimary() (*Node, error) {
	tok := p.peek()
	switch tok.typ {
	case mNumber:
		p.advance()
		return &Node{Kind: Primitive, Literal: "num:" + tok.lit}, nil
	case mString:
		p.advance()
		return &Node{Kind: Primitive, Literal: "str:" + tok.lit}, nil
	case mQuotedIdent:
		p.advance()
		return &Node{Kind: Ident, Name: tok.lit}, nil
	case mIdent:
		return p.parseIdentPrimary()
	case mPunct:
		switch tok.lit {
		case "(":
			p.advance()
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			// Parentheses are dropped; precedence lives in the tree shape.
			return inner, nil
		case "[":
			// Distinguish a record literal "[a = 1]" from bare field
			// access "[Region]", which selects from the implicit row.
			next := p.peekAt(1)
			after := p.peekAt(2)
			isRecord := (next.typ == mPunct && next.lit == "]") ||
				((next.typ == mIdent || next.typ == mQuotedIdent) &&
					after.typ == mPunct && after.lit == "=")
			if isRecord {
				return p.parseRecord()
			}
			p.advance()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			return &Node{
				Kind:       Access,
				AccessKind: FieldAccess,
				ChainLen:   1,
				Children:   []*Node{{Kind: Ident, Name: "_"}, key},
			}, nil
		case "{":
			return p.parseList()
		case "@":
			p.advance()
			return p.parsePrimary()
		}
	}
	return nil, fmt.Errorf("%w: unexpected token at offset %d", ErrMParse, tok.pos)
}

func (p *mParser) parseIdentPrimary() (*Node, error) {
	tok := p.advance()
	lower := strings.ToLower(tok.lit)
	switch lower {
	case "true", "false", "null":
		return &Node{Kind: Primitive, Literal: "kw:" + tok.lit}, nil
	case "type":
		// "type text" and friends: swallow the type expression as one
		// primitive.
		typeTok := p.peek()
		if typeTok.typ == mIdent {
			p.advance()
			return &Node{Kind: Primitive, Literal: "type:" + typeTok.lit}, nil
		}
		return &Node{Kind: Primitive, Literal: "type:"}, nil
	}
	if mKeywords[tok.lit] {
		return nil, fmt.Errorf("%w: unexpected keyword %q at offset %d", ErrMParse, tok.lit, tok.pos)
	}

	if p.peek().typ == mPunct && p.peek().lit == "(" {
		p.advance()
		var args []*Node
		if p.peek().typ == mPunct && p.peek().lit == ")" {
			p.advance()
			return &Node{Kind: FunctionCall, Name: tok.lit}, nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().typ == mPunct && p.peek().lit == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &Node{Kind: FunctionCall, Name: tok.lit, Children: args}, nil
	}

	return &Node{Kind: Ident, Name: tok.lit}, nil
}

func (p *mParser) parseRecord() (*Node, error) {
	p.advance() // [
	var fields []Field
	if p.peek().typ == mPunct && p.peek().lit == "]" {
		p.advance()
		return &Node{Kind: Record}, nil
	}
	for {
		nameTok := p.peek()
		if nameTok.typ != mIdent && nameTok.typ != mQuotedIdent {
			return nil, fmt.Errorf("%w: expected field name at offset %d", ErrMParse, nameTok.pos)
		}
		p.advance()
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: nameTok.lit, Value: value})

		if p.peek().typ == mPunct && p.peek().lit == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &Node{Kind: Record, Fields: fields}, nil
}

func (p *mParser) parseList() (*Node, error) {
	p.advance() // {
	var items []*Node
	if p.peek().typ == mPunct && p.peek().lit == "}" {
		p.advance()
		return &Node{Kind: List}, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		// Ranges like {1..10} keep both endpoints.
		if p.peek().typ == mOp && p.peek().lit == ".." {
			p.advance()
			end, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item = &Node{Kind: BinaryOp, Op: "..", Children: []*Node{item, end}}
		}
		items = append(items, item)
		if p.peek().typ == mPunct && p.peek().lit == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &Node{Kind: List, Children: items}, nil
}
