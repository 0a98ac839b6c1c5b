// internal/assistant/query-sandbox/parser.go
package querysandbox

import (
	"fmt"
	"strconv"
	"strings"
)

const maxDepth = 64

type parser struct {
	toks  []token
	pos   int
	depth int
}

// Parse turns one expression into an AST. Exactly one statement is accepted;
// assignment, del and import statements parse so that the validator can
// reject them by kind.
func Parse(src string) (*Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.statement()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.kind {
	case tokEOF:
		return n, nil
	case tokSemicolon:
		return nil, fmt.Errorf("multiple statements are not allowed")
	default:
		return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
	}
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+offset]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s, found %s at offset %d", what, t, t.pos)
	}
	return t, nil
}

func (p *parser) statement() (*Node, error) {
	t := p.peek()
	if t.kind == tokName {
		switch t.text {
		case "import":
			p.next()
			path, err := p.dotted()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeImport, Pos: t.pos, Ident: path}, nil
		case "from":
			p.next()
			path, err := p.dotted()
			if err != nil {
				return nil, err
			}
			if kw, err := p.expect(tokName, "import"); err != nil || kw.text != "import" {
				return nil, fmt.Errorf("expected import after from at offset %d", kw.pos)
			}
			name, err := p.expect(tokName, "name")
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeImport, Pos: t.pos, Ident: path + "." + name.text}, nil
		case "del":
			p.next()
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeDelete, Pos: t.pos, X: x}, nil
		}
		if p.peekAt(1).kind == tokAssign {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeAssign, Pos: t.pos, Ident: t.text, Value: v}, nil
		}
	}
	return p.expr()
}

func (p *parser) dotted() (string, error) {
	first, err := p.expect(tokName, "module name")
	if err != nil {
		return "", err
	}
	parts := []string{first.text}
	for p.peek().kind == tokDot {
		p.next()
		t, err := p.expect(tokName, "module name")
		if err != nil {
			return "", err
		}
		parts = append(parts, t.text)
	}
	return strings.Join(parts, "."), nil
}

func (p *parser) expr() (*Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, fmt.Errorf("expression nested too deeply")
	}

	left, err := p.postfix()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPipe {
		op := p.next()
		right, err := p.postfix()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeBinaryOr, Pos: op.pos, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) postfix() (*Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch t := p.peek(); t.kind {
		case tokDot:
			p.next()
			name, err := p.expect(tokName, "attribute name")
			if err != nil {
				return nil, err
			}
			n = &Node{Kind: NodeAttribute, Pos: name.pos, X: n, Ident: name.text}
		case tokLParen:
			p.next()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			n = &Node{Kind: NodeCall, Pos: t.pos, X: n, Args: args}
		case tokLBracket:
			p.next()
			n, err = p.subscript(n, t.pos)
			if err != nil {
				return nil, err
			}
		default:
			return n, nil
		}
	}
}

func (p *parser) subscript(x *Node, pos int) (*Node, error) {
	var low, high *Node
	var err error
	if k := p.peek().kind; k != tokColon && k != tokRBracket {
		if low, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if p.peek().kind == tokColon {
		p.next()
		if p.peek().kind != tokRBracket {
			if high, err = p.expr(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return nil, err
		}
		return &Node{Kind: NodeSlice, Pos: pos, X: x, Low: low, High: high}, nil
	}
	if _, err := p.expect(tokRBracket, "]"); err != nil {
		return nil, err
	}
	if low == nil {
		return nil, fmt.Errorf("empty subscript at offset %d", pos)
	}
	return &Node{Kind: NodeIndex, Pos: pos, X: x, Low: low}, nil
}

func (p *parser) arguments() ([]*Node, error) {
	var args []*Node
	for p.peek().kind != tokRParen {
		var arg *Node
		if t := p.peek(); t.kind == tokName && p.peekAt(1).kind == tokAssign {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			arg = &Node{Kind: NodeKeyword, Pos: t.pos, Ident: t.text, Value: v}
		} else {
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			arg = v
		}
		args = append(args, arg)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) primary() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokName:
		switch t.text {
		case "True":
			return &Node{Kind: NodeBoolLit, Pos: t.pos, Bool: true}, nil
		case "False":
			return &Node{Kind: NodeBoolLit, Pos: t.pos}, nil
		}
		return &Node{Kind: NodeName, Pos: t.pos, Ident: t.text}, nil
	case tokString:
		return &Node{Kind: NodeStringLit, Pos: t.pos, Str: t.text}, nil
	case tokNumber:
		return number(t, false)
	case tokMinus:
		n, err := p.expect(tokNumber, "number after '-'")
		if err != nil {
			return nil, err
		}
		return number(n, true)
	case tokLBracket:
		var elems []*Node
		for p.peek().kind != tokRBracket {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return nil, err
		}
		return &Node{Kind: NodeList, Pos: t.pos, Args: elems}, nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
}

func number(t token, negative bool) (*Node, error) {
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q at offset %d", t.text, t.pos)
	}
	if negative {
		v = -v
	}
	return &Node{Kind: NodeNumberLit, Pos: t.pos, Num: v, IsInt: !strings.Contains(t.text, ".")}, nil
}
