package parser

import "fmt"

// ParseError is a fatal lexical or grammatical error. Pos is the byte
// offset of the offending token in the input.
type ParseError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("parse error at offset %d near %q: %s", e.Pos, e.Token, e.Msg)
}

func errorAt(t token, format string, args ...interface{}) error {
	return &ParseError{Pos: t.pos, Token: t.String(), Msg: fmt.Sprintf(format, args...)}
}
