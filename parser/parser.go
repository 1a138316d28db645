// Package parser reads the textual energy language into expression trees.
//
// A program is a sequence of statements separated by ';' or newlines. Every
// statement but the last may be a definition "name = expr"; the last one is
// the energy expression. Identifiers resolve, in order, to a definition, a
// registered parameter, a declared field, and otherwise to a bare scalar
// symbol.
package parser

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

// Config declares what the parser should know about a problem
type Config struct {
	Fields     map[string]tensor.Shape // discretized unknowns
	Parameters []string                // scalar parameters resolved at evaluation time
	Functions  *expr.FunctionTable     // cloned; nil means the builtins
}

// Parser turns text into nodes of a single arena. It owns its function
// table; RegisterFunction does not affect other parsers.
type Parser struct {
	arena  *expr.Arena
	fields map[string]tensor.Shape
	params map[string]bool
	funcs  *expr.FunctionTable
}

func New(arena *expr.Arena, cfg Config) *Parser {
	p := &Parser{
		arena:  arena,
		fields: make(map[string]tensor.Shape, len(cfg.Fields)),
		params: make(map[string]bool, len(cfg.Parameters)),
	}
	if cfg.Functions != nil {
		p.funcs = cfg.Functions.Clone()
	} else {
		p.funcs = expr.NewFunctionTable()
	}
	for name, s := range cfg.Fields {
		p.fields[name] = s
	}
	for _, name := range cfg.Parameters {
		p.params[name] = true
	}
	return p
}

// Parse is a convenience wrapper for a parser without declarations
func Parse(arena *expr.Arena, text string) (*expr.Node, error) {
	return New(arena, Config{}).Parse(text)
}

// RegisterFunction adds a named function, with optional symbolic partials,
// to this parser's table
func (p *Parser) RegisterFunction(spec expr.FunctionSpec) error {
	return p.funcs.Register(spec)
}

// Functions exposes the table so that engines and evaluators can share the
// registrations made here
func (p *Parser) Functions() *expr.FunctionTable { return p.funcs }

// DeclareField makes name resolve to a field of shape s
func (p *Parser) DeclareField(name string, s tensor.Shape) { p.fields[name] = s }

// Parse reads a program and returns its final expression
func (p *Parser) Parse(text string) (*expr.Node, error) {
	st, err := p.start(text)
	if err != nil {
		return nil, err
	}
	var last *expr.Node
	for {
		st.skipSeparators()
		if st.peek().kind == tokEOF {
			break
		}
		if last != nil {
			// an expression statement followed by more input
			return nil, errorAt(st.peek(), "expression must be the last statement")
		}
		if st.peek().kind == tokIdent && st.peekAt(1).kind == tokOp && st.peekAt(1).text == "=" {
			name := st.next()
			st.next()
			rhs, err := st.expression()
			if err != nil {
				return nil, err
			}
			if err := st.endStatement(); err != nil {
				return nil, err
			}
			st.defs[name.text] = rhs
			continue
		}
		last, err = st.expression()
		if err != nil {
			return nil, err
		}
		if err := st.endStatement(); err != nil {
			return nil, err
		}
	}
	if last == nil {
		return nil, &ParseError{Pos: len(text), Msg: "no expression to parse"}
	}
	return last, nil
}

type state struct {
	p    *Parser
	toks []token
	pos  int
	defs map[string]*expr.Node
}

func (p *Parser) start(text string) (*state, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	return &state{p: p, toks: toks, defs: make(map[string]*expr.Node)}, nil
}

func (s *state) peek() token { return s.toks[s.pos] }

func (s *state) peekAt(k int) token {
	if s.pos+k >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}
	return s.toks[s.pos+k]
}

func (s *state) next() token {
	t := s.toks[s.pos]
	if t.kind != tokEOF {
		s.pos++
	}
	return t
}

func (s *state) isOp(text string) bool {
	t := s.peek()
	return t.kind == tokOp && t.text == text
}

func (s *state) expect(kind tokenKind, what string) (token, error) {
	t := s.peek()
	if t.kind != kind {
		return t, errorAt(t, "expected %s", what)
	}
	return s.next(), nil
}

func (s *state) skipSeparators() {
	for s.peek().kind == tokSep {
		s.next()
	}
}

func (s *state) endStatement() error {
	switch t := s.peek(); t.kind {
	case tokSep, tokEOF:
		return nil
	default:
		return errorAt(t, "unexpected token after expression")
	}
}

// wrap converts a construction failure into an error carrying the
// position of the token that caused it
func (t token) wrap(n *expr.Node, err error) (*expr.Node, error) {
	if err != nil {
		return nil, errors.Wrapf(err, "offset %d", t.pos)
	}
	return n, nil
}

func (s *state) expression() (*expr.Node, error) {
	left, err := s.term()
	if err != nil {
		return nil, err
	}
	for s.isOp("+") || s.isOp("-") {
		op := s.next()
		right, err := s.term()
		if err != nil {
			return nil, err
		}
		bop := expr.OpAdd
		if op.text == "-" {
			bop = expr.OpSub
		}
		if left, err = op.wrap(s.p.arena.Binary(bop, left, right)); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (s *state) term() (*expr.Node, error) {
	left, err := s.power()
	if err != nil {
		return nil, err
	}
	for s.isOp("*") || s.isOp("/") {
		op := s.next()
		right, err := s.power()
		if err != nil {
			return nil, err
		}
		bop := expr.OpMul
		if op.text == "/" {
			bop = expr.OpDivide
		}
		if left, err = op.wrap(s.p.arena.Binary(bop, left, right)); err != nil {
			return nil, err
		}
	}
	return left, nil
}

// power is right associative: a^b^c = a^(b^c)
func (s *state) power() (*expr.Node, error) {
	base, err := s.unary()
	if err != nil {
		return nil, err
	}
	if !s.isOp("^") {
		return base, nil
	}
	op := s.next()
	exp, err := s.power()
	if err != nil {
		return nil, err
	}
	return op.wrap(s.p.arena.Binary(expr.OpPow, base, exp))
}

func (s *state) unary() (*expr.Node, error) {
	switch {
	case s.isOp("+"):
		s.next()
		return s.unary()
	case s.isOp("-"):
		op := s.next()
		literal := s.peek().kind == tokNumber
		x, err := s.unary()
		if err != nil {
			return nil, err
		}
		// a minus sign directly on a number literal is part of the literal
		if literal && x.Kind() == expr.KindConstant && x.Shape().IsScalar() {
			v, _ := x.ScalarConstant()
			return s.p.arena.Real(-v), nil
		}
		return op.wrap(s.p.arena.Unary(expr.OpNegate, x))
	}
	return s.postfix()
}

func (s *state) postfix() (*expr.Node, error) {
	x, err := s.primary()
	if err != nil {
		return nil, err
	}
	for s.peek().kind == tokLBracket {
		open := s.next()
		i, err := s.index()
		if err != nil {
			return nil, err
		}
		if s.peek().kind == tokComma {
			s.next()
			j, err := s.index()
			if err != nil {
				return nil, err
			}
			if x, err = open.wrap(s.p.arena.Component2(x, i, j)); err != nil {
				return nil, err
			}
		} else if isBasis(x) && !x.IsGradient() && basisComponent(x) < 0 {
			if x, err = open.wrap(s.basisNode(x.Kind(), x.Name(), i, false)); err != nil {
				return nil, err
			}
		} else if x, err = open.wrap(s.p.arena.Component(x, i)); err != nil {
			return nil, err
		}
		if _, err := s.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (s *state) index() (int, error) {
	t, err := s.expect(tokNumber, "an integer index")
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(t.text)
	if err != nil || i < 0 {
		return 0, errorAt(t, "index must be a non-negative integer")
	}
	return i, nil
}

func (s *state) primary() (*expr.Node, error) {
	t := s.peek()
	switch t.kind {
	case tokNumber:
		s.next()
		x, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errorAt(t, "malformed number")
		}
		return s.p.arena.Real(x), nil
	case tokLParen:
		s.next()
		x, err := s.expression()
		if err != nil {
			return nil, err
		}
		if _, err := s.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	case tokIdent:
		s.next()
		if s.peek().kind == tokLParen {
			args, err := s.arguments()
			if err != nil {
				return nil, err
			}
			return s.call(t, args)
		}
		return s.resolve(t.text), nil
	}
	return nil, errorAt(t, "expected a number, name or '('")
}

func (s *state) arguments() ([]*expr.Node, error) {
	s.next()
	var args []*expr.Node
	if s.peek().kind == tokRParen {
		s.next()
		return args, nil
	}
	for {
		a, err := s.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if s.peek().kind == tokComma {
			s.next()
			continue
		}
		if _, err := s.expect(tokRParen, "',' or ')'"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (s *state) resolve(name string) *expr.Node {
	if n, ok := s.defs[name]; ok {
		return n
	}
	if s.p.params[name] {
		return s.p.arena.Variable(name, tensor.ScalarShape)
	}
	if shape, ok := s.p.fields[name]; ok {
		return s.p.arena.Field(name, shape, "")
	}
	return s.p.arena.Variable(name, tensor.ScalarShape)
}

var unaryBuiltins = map[string]expr.UnaryOp{
	"grad":        expr.OpGrad,
	"div":         expr.OpDiv,
	"divergence":  expr.OpDiv,
	"laplacian":   expr.OpLaplacian,
	"curl":        expr.OpCurl,
	"norm":        expr.OpNorm,
	"magnitude":   expr.OpNorm,
	"normalize":   expr.OpNormalize,
	"trace":       expr.OpTrace,
	"tr":          expr.OpTrace,
	"det":         expr.OpDet,
	"determinant": expr.OpDet,
	"inv":         expr.OpInverse,
	"inverse":     expr.OpInverse,
	"transpose":   expr.OpTranspose,
	"trans":       expr.OpTranspose,
	"sym":         expr.OpSym,
	"symmetric":   expr.OpSym,
	"skew":        expr.OpSkew,
	"dev":         expr.OpDev,
	"deviatoric":  expr.OpDev,
}

var binaryBuiltins = map[string]expr.BinaryOp{
	"dot":      expr.OpDot,
	"cross":    expr.OpCross,
	"outer":    expr.OpOuter,
	"contract": expr.OpContract,
	"pow":      expr.OpPow,
}

// table functions with a spelling of their own
var aliases = map[string]string{
	"ln": "log",
}

func (s *state) arity(t token, args []*expr.Node, n int) error {
	if len(args) != n {
		return errorAt(t, "%s takes %d argument(s), got %d", t.text, n, len(args))
	}
	return nil
}

func (s *state) call(t token, args []*expr.Node) (*expr.Node, error) {
	a := s.p.arena
	name := t.text
	if op, ok := unaryBuiltins[name]; ok {
		if err := s.arity(t, args, 1); err != nil {
			return nil, err
		}
		if op == expr.OpGrad && isBasis(args[0]) && !args[0].IsGradient() {
			return s.basisGradient(t, args[0])
		}
		return t.wrap(a.Unary(op, args[0]))
	}
	if op, ok := binaryBuiltins[name]; ok {
		if err := s.arity(t, args, 2); err != nil {
			return nil, err
		}
		return t.wrap(a.Binary(op, args[0], args[1]))
	}
	switch name {
	case "test", "phi":
		return s.basis(t, args)
	case "hessian":
		if err := s.arity(t, args, 1); err != nil {
			return nil, err
		}
		g, err := t.wrap(a.Unary(expr.OpGrad, args[0]))
		if err != nil {
			return nil, err
		}
		return t.wrap(a.Unary(expr.OpGrad, g))
	case "vec", "vector":
		if len(args) < 2 || len(args) > 3 {
			if !(len(args) == 1 && a.Dim() == 1) {
				return nil, errorAt(t, "%s takes 2 or 3 components, got %d", name, len(args))
			}
		}
		return t.wrap(a.VectorOf(args...))
	case "sqrt":
		if err := s.arity(t, args, 1); err != nil {
			return nil, err
		}
		return t.wrap(a.Binary(expr.OpPow, args[0], a.Real(0.5)))
	case "W", "doublewell":
		// (x²-1)² expanded so that it differentiates without table partials
		if err := s.arity(t, args, 1); err != nil {
			return nil, err
		}
		b := expr.NewBuilder(a)
		return t.wrap(b.PowReal(b.Sub(b.PowReal(args[0], 2), b.Real(1)), 2), b.Err())
	}
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if spec, ok := s.p.funcs.Lookup(name); ok {
		if spec.Arity >= 0 {
			if err := s.arity(t, args, spec.Arity); err != nil {
				return nil, err
			}
		}
		for _, arg := range args {
			if !arg.Shape().IsScalar() {
				return nil, errorAt(t, "%s takes scalar arguments, got %s", name, arg.Shape())
			}
		}
	}
	// anything else is an opaque function of its arguments
	return a.Function(name, args...), nil
}

func isBasis(n *expr.Node) bool {
	return n.Kind() == expr.KindTestFunction || n.Kind() == expr.KindShapeFunction
}

func basisComponent(n *expr.Node) int {
	i, _ := n.Index()
	return i
}

func (s *state) basisNode(kind expr.Kind, variable string, component int, gradient bool) (*expr.Node, error) {
	shape := tensor.ScalarShape
	if f, ok := s.p.fields[variable]; ok {
		shape = f
	}
	if kind == expr.KindShapeFunction {
		return s.p.arena.ShapeFunction(variable, shape, component, gradient)
	}
	return s.p.arena.TestFunction(variable, shape, component, gradient)
}

// basis reads test(u) and phi(u), the weighting and trial functions that
// appear in weak-form dumps
func (s *state) basis(t token, args []*expr.Node) (*expr.Node, error) {
	if len(args) != 1 || (args[0].Kind() != expr.KindField && args[0].Kind() != expr.KindVariable) {
		return nil, errorAt(t, "%s takes a single variable name", t.text)
	}
	kind := expr.KindTestFunction
	if t.text == "phi" {
		kind = expr.KindShapeFunction
	}
	return t.wrap(s.basisNode(kind, args[0].Name(), -1, false))
}

func (s *state) basisGradient(t token, x *expr.Node) (*expr.Node, error) {
	return t.wrap(s.basisNode(x.Kind(), x.Name(), basisComponent(x), true))
}
