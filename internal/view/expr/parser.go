package expr

import (
	"fmt"
	"strconv"
)

// parser is a recursive-descent parser with conventional precedence:
// || < && < == != < comparisons < + - < * / % < unary < postfix.
type parser struct {
	toks []token
	pos  int
}

func parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.peek().text, p.peek().pos)
	}
	return node, nil
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) next() token  { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOp("==") || p.isOp("!=") {
		op := p.next().text
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOp("<") || p.isOp("<=") || p.isOp(">") || p.isOp(">=") {
		op := p.next().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.isOp("!") || p.isOp("-") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses indexing and method calls, which chain.
func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokLBrack:
			p.next()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if p.peek().kind != tokRBrack {
				return nil, fmt.Errorf("expected ] at position %d", p.peek().pos)
			}
			p.next()
			node = &Index{Recv: node, Index: idx}
		case tokDot:
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, fmt.Errorf("expected method name at position %d", name.pos)
			}
			if p.peek().kind != tokLParen {
				return nil, fmt.Errorf("expected ( after .%s at position %d", name.text, p.peek().pos)
			}
			p.next()
			var args []Node
			for p.peek().kind != tokRParen {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind == tokComma {
					p.next()
				}
			}
			p.next()
			if !allowedMethods[name.text] {
				return nil, fmt.Errorf("method %q is not permitted", name.text)
			}
			node = &Call{Recv: node, Method: name.text, Args: args}
		default:
			return node, nil
		}
	}
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at position %d", t.text, t.pos)
		}
		return &Literal{Value: f}, nil
	case tokString:
		p.next()
		return &Literal{Value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			p.next()
			return &Literal{Value: true}, nil
		case "false":
			p.next()
			return &Literal{Value: false}, nil
		case "null", "None":
			p.next()
			return &Literal{Value: nil}, nil
		case "F":
			p.next()
			if p.peek().kind != tokLParen {
				return nil, fmt.Errorf("expected ( after F at position %d", p.peek().pos)
			}
			p.next()
			path := p.next()
			if path.kind != tokString {
				return nil, fmt.Errorf("F() takes a quoted field path at position %d", path.pos)
			}
			if p.peek().kind != tokRParen {
				return nil, fmt.Errorf("expected ) at position %d", p.peek().pos)
			}
			p.next()
			return &FieldRef{Path: path.text}, nil
		default:
			return nil, fmt.Errorf("unknown identifier %q at position %d", t.text, t.pos)
		}
	case tokLParen:
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ) at position %d", p.peek().pos)
		}
		p.next()
		return node, nil
	case tokLBrack:
		p.next()
		var elems []Node
		for p.peek().kind != tokRBrack {
			el, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
			if p.peek().kind == tokComma {
				p.next()
			}
		}
		p.next()
		return &ListLit{Elems: elems}, nil
	}
	return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
}
