// internal/assistant/query-sandbox/lexer.go
package querysandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokNumber
	tokDot
	tokComma
	tokColon
	tokSemicolon
	tokAssign
	tokPipe
	tokMinus
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

var punctuation = map[rune]tokenKind{
	'.': tokDot,
	',': tokComma,
	':': tokColon,
	';': tokSemicolon,
	'=': tokAssign,
	'|': tokPipe,
	'-': tokMinus,
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
}

// lex splits an expression into tokens. Anything outside the grammar's
// alphabet, such as operators, braces or comments, is an error.
func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			return nil, fmt.Errorf("invalid UTF-8 at offset %d", i)
		case unicode.IsSpace(r):
			i += size
		case r == '_' || isASCIILetter(r):
			start := i
			for i < len(src) {
				c := src[i]
				if c == '_' || isASCIILetter(rune(c)) || (c >= '0' && c <= '9') {
					i++
					continue
				}
				break
			}
			out = append(out, token{kind: tokName, text: src[start:i], pos: start})
		case r >= '0' && r <= '9':
			start := i
			seenDot := false
			for i < len(src) {
				c := src[i]
				if c >= '0' && c <= '9' {
					i++
					continue
				}
				if c == '.' && !seenDot && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
					seenDot = true
					i++
					continue
				}
				break
			}
			out = append(out, token{kind: tokNumber, text: src[start:i], pos: start})
		case r == '"' || r == '\'':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, fmt.Errorf("%w at offset %d", err, i)
			}
			out = append(out, token{kind: tokString, text: s, pos: i})
			i += n
		default:
			kind, ok := punctuation[r]
			if !ok {
				return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
			}
			out = append(out, token{kind: kind, text: string(r), pos: i})
			i += size
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(src)})
	return out, nil
}

// lexString reads one quoted literal and returns its value and byte length.
// Only the escapes \\ \' \" \n and \t are recognised.
func lexString(src string) (string, int, error) {
	quote := src[0]
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\n':
			return "", 0, fmt.Errorf("unterminated string")
		case c == '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i++
			switch src[i] {
			case '\\', '\'', '"':
				b.WriteByte(src[i])
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, fmt.Errorf("unsupported escape \\%c", src[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
