package parser

import (
	"fmt"
	"strings"

	"github.com/notargets/DGWeakForm/expr"
)

// Equation is one strong-form PDE "∂u/∂t = rhs" (Transient) or "u = rhs"
type Equation struct {
	Variable  string
	RHS       *expr.Node
	Transient bool
}

func (e Equation) String() string {
	if e.Transient {
		return fmt.Sprintf("dt(%s) = %s", e.Variable, e.RHS)
	}
	return fmt.Sprintf("%s = %s", e.Variable, e.RHS)
}

// ParseStrongForm reads one equation per statement. A left-hand side of
// the form "u_t" or "dt(u)" marks a transient equation for u.
func (p *Parser) ParseStrongForm(text string) ([]Equation, error) {
	st, err := p.start(text)
	if err != nil {
		return nil, err
	}
	var eqs []Equation
	for {
		st.skipSeparators()
		if st.peek().kind == tokEOF {
			break
		}
		eq, err := st.equationHead()
		if err != nil {
			return nil, err
		}
		if !st.isOp("=") {
			return nil, errorAt(st.peek(), "expected '='")
		}
		st.next()
		if eq.RHS, err = st.expression(); err != nil {
			return nil, err
		}
		if err := st.endStatement(); err != nil {
			return nil, err
		}
		eqs = append(eqs, eq)
	}
	if len(eqs) == 0 {
		return nil, &ParseError{Pos: len(text), Msg: "no equation to parse"}
	}
	return eqs, nil
}

func (s *state) equationHead() (Equation, error) {
	t, err := s.expect(tokIdent, "a variable name")
	if err != nil {
		return Equation{}, err
	}
	if t.text == "dt" && s.peek().kind == tokLParen {
		s.next()
		v, err := s.expect(tokIdent, "a variable name")
		if err != nil {
			return Equation{}, err
		}
		if _, err := s.expect(tokRParen, "')'"); err != nil {
			return Equation{}, err
		}
		return Equation{Variable: v.text, Transient: true}, nil
	}
	if base := strings.TrimSuffix(t.text, "_t"); base != t.text && base != "" {
		return Equation{Variable: base, Transient: true}, nil
	}
	return Equation{Variable: t.text}, nil
}
