package filter

import (
	"regexp"
	"strings"
	"time"
)

// Op is a canonical comparison operator.
type Op string

const (
	Eq Op = "="
	Ne Op = "<>"
	Gt Op = ">"
	Ge Op = ">="
	Lt Op = "<"
	Le Op = "<="
)

// Node is an expression tree node.
type Node interface {
	node()
}

// ColumnRef names a table column.
type ColumnRef struct {
	Name string
}

// Literal is a number or string constant. Numeric literals keep their source
// text for text comparisons. IsTime is set when the text parses as a date.
type Literal struct {
	Text   string
	Num    float64
	IsNum  bool
	T      time.Time
	IsTime bool
}

// Comparison is `column op literal`.
type Comparison struct {
	Col ColumnRef
	Op  Op
	Lit Literal
}

// InList is `column [not] in (a, b, ...)`.
type InList struct {
	Col    ColumnRef
	Negate bool
	Items  []Literal
}

// Like is `column [not] like 'pattern'`.
type Like struct {
	Col     ColumnRef
	Negate  bool
	Pattern string
	re      *regexp.Regexp
}

// Not negates its operand.
type Not struct {
	X Node
}

// And is true when both operands are.
type And struct {
	L, R Node
}

// Or is true when either operand is.
type Or struct {
	L, R Node
}

func (Comparison) node() {}
func (InList) node()     {}
func (*Like) node()      {}
func (Not) node()        {}
func (And) node()        {}
func (Or) node()         {}

// likeRegexp compiles a wildcard pattern into an anchored regexp: '%' matches
// any run of characters and '_' exactly one.
func likeRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}
