package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp  // + - * / ^ =
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokSep // ; or newline
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	if t.kind == tokSep && t.text == "\n" {
		return "newline"
	}
	return t.text
}

// lex splits text into tokens. '#' starts a comment running to the end of
// the line.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := rune(text[i])
		switch {
		case c == '\n':
			toks = append(toks, token{tokSep, "\n", i})
			i++
		case unicode.IsSpace(c):
			i++
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(text) && unicode.IsDigit(rune(text[i+1]))):
			start := i
			i = scanNumber(text, i)
			toks = append(toks, token{tokNumber, text[start:i], start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(text) && (text[i] == '_' || unicode.IsLetter(rune(text[i])) || unicode.IsDigit(rune(text[i]))) {
				i++
			}
			toks = append(toks, token{tokIdent, text[start:i], start})
		case strings.ContainsRune("+-*/^=", c):
			toks = append(toks, token{tokOp, string(c), i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == ';':
			toks = append(toks, token{tokSep, ";", i})
			i++
		default:
			return nil, &ParseError{Pos: i, Token: string(c), Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(text)})
	return toks, nil
}

// scanNumber accepts 12, 1.5, .5, 1e-3 and 2.5E+4
func scanNumber(text string, i int) int {
	digits := func() {
		for i < len(text) && text[i] >= '0' && text[i] <= '9' {
			i++
		}
	}
	digits()
	if i < len(text) && text[i] == '.' {
		i++
		digits()
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < len(text) && (text[j] == '+' || text[j] == '-') {
			j++
		}
		if j < len(text) && text[j] >= '0' && text[j] <= '9' {
			i = j
			digits()
		}
	}
	return i
}
