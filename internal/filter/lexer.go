package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is matched by every *SyntaxError.
var ErrSyntax = errors.New("filter: syntax error")

// SyntaxError reports malformed expression text. Pos is a 0-based byte offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter: syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type tokKind int

const (
	tEOF tokKind = iota
	tColumn
	tString
	tNumber
	tCmp
	tLParen
	tRParen
	tLBrack
	tRBrack
	tComma
	tAnd
	tOr
	tNot
	tIn
	tLike
)

var tokNames = map[tokKind]string{
	tEOF: "end of input", tColumn: "column", tString: "string", tNumber: "number",
	tCmp: "comparator", tLParen: "'('", tRParen: "')'", tLBrack: "'['", tRBrack: "']'",
	tComma: "','", tAnd: "'and'", tOr: "'or'", tNot: "'not'", tIn: "'in'", tLike: "'like'",
}

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tEOF:
		return tokNames[tEOF]
	case tColumn:
		return fmt.Sprintf("column %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '[' && i+1 < len(src) && src[i+1] == '$':
			start := i
			i += 2
			for i < len(src) && src[i] == ' ' {
				i++
			}
			if i >= len(src) || (src[i] != '"' && src[i] != '\'') {
				return nil, &SyntaxError{Pos: i, Msg: "expected quoted column name after '[$'"}
			}
			name, n, err := readString(src, i)
			if err != nil {
				return nil, err
			}
			i = n
			for i < len(src) && src[i] == ' ' {
				i++
			}
			if i >= len(src) || src[i] != ']' {
				return nil, &SyntaxError{Pos: i, Msg: "expected ']' to close column reference"}
			}
			i++
			toks = append(toks, token{kind: tColumn, text: name, pos: start})
		case c == '"' || c == '\'':
			s, n, err := readString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tString, text: s, pos: i})
			i = n
		case c >= '0' && c <= '9' || c == '.' || (c == '-' || c == '+') && i+1 < len(src) && (isDigit(src[i+1]) || src[i+1] == '.'):
			start := i
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == 'e' || src[i] == 'E' ||
				(src[i] == '-' || src[i] == '+') && (src[i-1] == 'e' || src[i-1] == 'E')) {
				i++
			}
			text := src[start:i]
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tNumber, text: text, num: f, pos: start})
		case c == '(':
			toks = append(toks, token{kind: tLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tRParen, text: ")", pos: i})
			i++
		case c == '[':
			toks = append(toks, token{kind: tLBrack, text: "[", pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tRBrack, text: "]", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tComma, text: ",", pos: i})
			i++
		case c == '&':
			toks = append(toks, token{kind: tAnd, text: "&", pos: i})
			i++
		case c == '|':
			toks = append(toks, token{kind: tOr, text: "|", pos: i})
			i++
		case c == '=' || c == '<' || c == '>' || c == '!':
			op, n := readComparator(src, i)
			if op == "" {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unknown comparator %q", src[i:n])}
			}
			toks = append(toks, token{kind: tCmp, text: op, pos: i})
			i = n
		case unicode.IsLetter(rune(c)) || c == '_':
			start := i
			for i < len(src) && (unicode.IsLetter(rune(src[i])) || src[i] == '_' || isDigit(src[i])) {
				i++
			}
			word := src[start:i]
			switch strings.ToLower(word) {
			case "and":
				toks = append(toks, token{kind: tAnd, text: word, pos: start})
			case "or":
				toks = append(toks, token{kind: tOr, text: word, pos: start})
			case "not":
				toks = append(toks, token{kind: tNot, text: word, pos: start})
			case "in":
				toks = append(toks, token{kind: tIn, text: word, pos: start})
			case "like":
				toks = append(toks, token{kind: tLike, text: word, pos: start})
			default:
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected word %q", word)}
			}
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{kind: tEOF, pos: len(src)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// readString reads a quoted literal starting at src[i]. A backslash escapes
// the next character.
func readString(src string, i int) (string, int, error) {
	q := src[i]
	var sb strings.Builder
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if j+1 < len(src) {
				j++
				sb.WriteByte(src[j])
			}
		case q:
			return sb.String(), j + 1, nil
		default:
			sb.WriteByte(src[j])
		}
	}
	return "", len(src), &SyntaxError{Pos: i, Msg: "unterminated string"}
}

// readComparator returns the canonical operator and the offset after it.
func readComparator(src string, i int) (string, int) {
	two := ""
	if i+1 < len(src) {
		two = src[i : i+2]
	}
	switch two {
	case "==":
		return string(Eq), i + 2
	case "!=", "<>":
		return string(Ne), i + 2
	case ">=":
		return string(Ge), i + 2
	case "<=":
		return string(Le), i + 2
	}
	switch src[i] {
	case '=':
		return string(Eq), i + 1
	case '>':
		return string(Gt), i + 1
	case '<':
		return string(Lt), i + 1
	}
	return "", i + 1
}
