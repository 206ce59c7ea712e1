// Package filter compiles and evaluates the row-selection expressions used
// to subset wide tables, for example
//
//	[$"Calcio (mg/L)"] > 50 and [$"Punto"] in ('P1', 'P2')
//
// Expressions are parsed into a small tree; nothing is ever executed.
package filter

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// Expr is a compiled expression. It is immutable and safe for concurrent use.
type Expr struct {
	text string
	root Node
	cols []string
}

// Compile parses text into an Expr.
func Compile(text string) (*Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, seen: map[string]bool{}}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		if t.kind == tRParen {
			return nil, &SyntaxError{Pos: t.pos, Msg: "unbalanced ')'"}
		}
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", t.describe())}
	}
	return &Expr{text: text, root: root, cols: p.cols}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string) *Expr {
	e, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string { return e.text }

// Root returns the expression tree.
func (e *Expr) Root() Node { return e.root }

// Columns lists the referenced columns in first-use order.
func (e *Expr) Columns() []string { return append([]string(nil), e.cols...) }

// Check returns the referenced columns that header does not declare.
func (e *Expr) Check(header []string) []string {
	have := map[string]bool{}
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, c := range e.cols {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

type parser struct {
	toks []token
	i    int
	cols []string
	seen map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(k tokKind) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, found %s", tokNames[k], t.describe())}
	}
	return t, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tAnd {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = And{L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	switch t := p.peek(); t.kind {
	case tNot:
		p.next()
		x, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case tLParen:
		p.next()
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tRParen {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unbalanced '(': found %s", c.describe())}
		}
		return x, nil
	case tColumn:
		return p.parseComparison()
	case tEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of expression"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected column reference, found %s", t.describe())}
	}
}

func (p *parser) parseComparison() (Node, error) {
	ct := p.next()
	col := ColumnRef{Name: ct.text}
	if !p.seen[col.Name] {
		p.seen[col.Name] = true
		p.cols = append(p.cols, col.Name)
	}
	negate := false
	if p.peek().kind == tNot {
		p.next()
		negate = true
		if k := p.peek().kind; k != tIn && k != tLike {
			t := p.peek()
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected 'in' or 'like' after 'not', found %s", t.describe())}
		}
	}
	switch t := p.next(); t.kind {
	case tCmp:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Comparison{Col: col, Op: Op(t.text), Lit: lit}, nil
	case tIn:
		open := p.next()
		var closing tokKind
		switch open.kind {
		case tLParen:
			closing = tRParen
		case tLBrack:
			closing = tRBrack
		default:
			return nil, &SyntaxError{Pos: open.pos, Msg: fmt.Sprintf("expected '(' or '[' after 'in', found %s", open.describe())}
		}
		var items []Literal
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			items = append(items, lit)
			if p.peek().kind != tComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(closing); err != nil {
			return nil, err
		}
		return InList{Col: col, Negate: negate, Items: items}, nil
	case tLike:
		s, err := p.expect(tString)
		if err != nil {
			return nil, err
		}
		return &Like{Col: col, Negate: negate, Pattern: s.text, re: likeRegexp(s.text)}, nil
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected comparator, found %s", t.describe())}
	}
}

func (p *parser) parseLiteral() (Literal, error) {
	t := p.next()
	switch t.kind {
	case tNumber:
		return Literal{Text: t.text, Num: t.num, IsNum: true}, nil
	case tString:
		lit := Literal{Text: t.text}
		if ts, ok := (table.Options{}).ParseTime(t.text); ok {
			lit.T, lit.IsTime = ts, true
		}
		return lit, nil
	}
	return Literal{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected literal, found %s", t.describe())}
}
