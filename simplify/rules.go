package simplify

import (
	"math"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/tensor"
)

func done(b *expr.Builder, n *expr.Node) (*expr.Node, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	return n, nil
}

// fold turns a successful constant evaluation into a literal
func (s *Simplifier) fold(n *expr.Node, v tensor.Value, err error) *expr.Node {
	if err != nil || !v.Valid() {
		return n
	}
	return s.arena.Constant(v)
}

func scalarConstant(n *expr.Node) (float64, bool) { return n.ScalarConstant() }

// leadingConstant matches c*x with a scalar literal c
func leadingConstant(n *expr.Node) (float64, *expr.Node, bool) {
	if !n.IsBinary(expr.OpMul) {
		return 0, nil, false
	}
	c, ok := n.Left().ScalarConstant()
	if !ok {
		return 0, nil, false
	}
	return c, n.Right(), true
}

func isIdentity(n *expr.Node) bool {
	if !n.IsConstant() || !n.Shape().IsTensor() {
		return false
	}
	return tensor.ApproxEqual(n.Value(), tensor.Identity(n.Shape().Dim))
}

func linearUnary(op expr.UnaryOp) bool {
	switch op {
	case expr.OpGrad, expr.OpDiv, expr.OpLaplacian, expr.OpCurl,
		expr.OpTrace, expr.OpTranspose, expr.OpSym, expr.OpSkew, expr.OpDev:
		return true
	}
	return false
}

func foldUnary(op expr.UnaryOp, v tensor.Value) (tensor.Value, error) {
	switch op {
	case expr.OpNegate:
		return tensor.Neg(v), nil
	case expr.OpTrace:
		return tensor.Trace(v)
	case expr.OpDet:
		return tensor.Det(v)
	case expr.OpInverse:
		return tensor.Inverse(v)
	case expr.OpTranspose:
		return tensor.Transpose(v)
	case expr.OpSym:
		return tensor.Sym(v)
	case expr.OpSkew:
		return tensor.Skew(v)
	case expr.OpDev:
		return tensor.Dev(v)
	case expr.OpNorm:
		return tensor.Norm(v)
	case expr.OpNormalize:
		return tensor.Normalize(v)
	}
	return tensor.Value{}, expr.Unsupported("fold "+op.String(), nil)
}

func (s *Simplifier) unary(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	op, x := n.UnaryOp(), n.Operand()
	if x.IsConstant() {
		if op.IsDerivative() {
			return s.arena.Zero(n.Shape()), nil
		}
		v, err := foldUnary(op, x.Value())
		return s.fold(n, v, err), nil
	}
	switch op {
	case expr.OpNegate:
		if x.IsUnary(expr.OpNegate) {
			return x.Operand(), nil
		}
		if c, y, ok := leadingConstant(x); ok {
			return done(b, b.Mul(b.Real(-c), y))
		}
		return n, nil
	case expr.OpTranspose:
		if x.IsUnary(expr.OpTranspose) {
			return x.Operand(), nil
		}
		if x.IsUnary(expr.OpSym) {
			return x, nil
		}
	case expr.OpSym:
		if x.IsUnary(expr.OpSym) {
			return x, nil
		}
	}
	if linearUnary(op) {
		if x.IsUnary(expr.OpNegate) {
			return done(b, b.Neg(b.Unary(op, x.Operand())))
		}
		if c, y, ok := leadingConstant(x); ok {
			return done(b, b.Scale(c, b.Unary(op, y)))
		}
	}
	return n, nil
}

type term struct {
	coef float64
	node *expr.Node
}

// collect flattens an additive chain into coefficient-weighted terms and
// a constant part
func collect(n *expr.Node, sign float64, terms []term, constant *tensor.Value) []term {
	switch {
	case n.IsBinary(expr.OpAdd):
		terms = collect(n.Left(), sign, terms, constant)
		return collect(n.Right(), sign, terms, constant)
	case n.IsBinary(expr.OpSub):
		terms = collect(n.Left(), sign, terms, constant)
		return collect(n.Right(), -sign, terms, constant)
	}
	c, rest := sign, n
	for {
		if rest.IsUnary(expr.OpNegate) {
			c, rest = -c, rest.Operand()
			continue
		}
		if k, y, ok := leadingConstant(rest); ok {
			c, rest = c*k, y
			continue
		}
		break
	}
	switch {
	case rest.IsConstant():
		*constant, _ = tensor.Add(*constant, tensor.Scale(rest.Value(), c))
		return terms
	case rest.IsBinary(expr.OpAdd), rest.IsBinary(expr.OpSub):
		return collect(rest, c, terms, constant)
	}
	for i := range terms {
		if sameTerm(terms[i].node, rest) {
			terms[i].coef += c
			return terms
		}
	}
	return append(terms, term{coef: c, node: rest})
}

// factors flattens a chain of scalar products
func factors(n *expr.Node, out []*expr.Node) []*expr.Node {
	if n.IsBinary(expr.OpMul) && n.Left().Shape().IsScalar() && n.Right().Shape().IsScalar() {
		return factors(n.Right(), factors(n.Left(), out))
	}
	return append(out, n)
}

// sameTerm compares two terms, treating scalar products as commutative so
// x*y and y*x collect together
func sameTerm(a, c *expr.Node) bool {
	if a.Equal(c) {
		return true
	}
	if !a.IsBinary(expr.OpMul) || !c.IsBinary(expr.OpMul) || !a.Shape().IsScalar() {
		return false
	}
	fa, fc := factors(a, nil), factors(c, nil)
	if len(fa) != len(fc) || len(fa) < 2 {
		return false
	}
	used := make([]bool, len(fc))
outer:
	for _, x := range fa {
		for j, y := range fc {
			if !used[j] && x.Equal(y) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// factorPairs merges a*x and b*x with symbolic scalar a and b into (a+b)*x
func factorPairs(b *expr.Builder, terms []term) []term {
	split := func(t term) (*expr.Node, *expr.Node, bool) {
		n := t.node
		if !n.IsBinary(expr.OpMul) || n.Left().IsConstant() || n.Right().IsConstant() ||
			!n.Left().Shape().IsScalar() {
			return nil, nil, false
		}
		return n.Left(), n.Right(), true
	}
	for i := 0; i < len(terms); i++ {
		ai, xi, ok := split(terms[i])
		if !ok {
			continue
		}
		for j := i + 1; j < len(terms); j++ {
			aj, xj, ok := split(terms[j])
			if !ok || !xi.Equal(xj) {
				continue
			}
			coef := b.Add(scaled(b, terms[i].coef, ai), scaled(b, terms[j].coef, aj))
			terms[i] = term{coef: 1, node: b.Mul(coef, xi)}
			terms = append(terms[:j], terms[j+1:]...)
			if ai, xi, ok = split(terms[i]); !ok {
				break
			}
			j = i
		}
	}
	return terms
}

func scaled(b *expr.Builder, c float64, x *expr.Node) *expr.Node {
	switch {
	case tensor.Close(c, 1):
		return x
	case tensor.Close(c, -1):
		return b.Neg(x)
	}
	return b.Scale(c, x)
}

func (s *Simplifier) sum(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	shape := n.Shape()
	constant := tensor.Zero(shape)
	terms := factorPairs(b, collect(n, 1, nil, &constant))

	var acc *expr.Node
	for _, t := range terms {
		if tensor.Close(t.coef, 0) {
			continue
		}
		mag := math.Abs(t.coef)
		piece := t.node
		switch {
		case acc == nil:
			acc = scaled(b, t.coef, piece)
			continue
		case !tensor.Close(mag, 1):
			piece = b.Scale(mag, piece)
		}
		if t.coef < 0 {
			acc = b.Sub(acc, piece)
		} else {
			acc = b.Add(acc, piece)
		}
	}
	if !tensor.IsZero(constant) {
		switch x, ok := constant.Scalar(); {
		case acc == nil:
			acc = b.Constant(constant)
		case ok && x < 0:
			acc = b.Sub(acc, b.Real(-x))
		default:
			acc = b.Add(acc, b.Constant(constant))
		}
	}
	if acc == nil {
		acc = b.Zero(shape)
	}
	return done(b, acc)
}

// base and exponent of x or pow(x, c)
func powerOf(n *expr.Node) (*expr.Node, float64) {
	if n.IsBinary(expr.OpPow) {
		if e, ok := n.Right().ScalarConstant(); ok {
			return n.Left(), e
		}
	}
	return n, 1
}

func (s *Simplifier) product(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	l, r := n.Left(), n.Right()
	if l.IsZero() || r.IsZero() {
		return s.arena.Zero(n.Shape()), nil
	}
	if l.IsConstant() && r.IsConstant() {
		v, err := tensor.Mul(l.Value(), r.Value())
		return s.fold(n, v, err), nil
	}
	lc, lok := scalarConstant(l)
	rc, rok := scalarConstant(r)
	switch {
	case lok && tensor.Close(lc, 1):
		return r, nil
	case rok && tensor.Close(rc, 1):
		return l, nil
	case isIdentity(l) && r.Shape() == n.Shape():
		return r, nil
	case isIdentity(r) && l.Shape() == n.Shape():
		return l, nil
	case rok:
		return done(b, b.Mul(r, l))
	}
	if lok {
		if r.IsUnary(expr.OpNegate) {
			return done(b, b.Scale(-lc, r.Operand()))
		}
		if k, y, ok := leadingConstant(r); ok {
			return done(b, b.Scale(lc*k, y))
		}
		if tensor.Close(lc, -1) {
			return done(b, b.Neg(r))
		}
		return n, nil
	}
	switch {
	case l.IsUnary(expr.OpNegate):
		return done(b, b.Neg(b.Mul(l.Operand(), r)))
	case r.IsUnary(expr.OpNegate):
		return done(b, b.Neg(b.Mul(l, r.Operand())))
	}
	if k, x, ok := leadingConstant(l); ok {
		return done(b, b.Scale(k, b.Mul(x, r)))
	}
	if k, y, ok := leadingConstant(r); ok {
		return done(b, b.Scale(k, b.Mul(l, y)))
	}
	if l.Shape().IsScalar() && r.Shape().IsScalar() {
		bl, el := powerOf(l)
		br, er := powerOf(r)
		if bl.Equal(br) {
			return done(b, b.PowReal(bl, el+er))
		}
	}
	return n, nil
}

func (s *Simplifier) quotient(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	l, r := n.Left(), n.Right()
	rc, rok := scalarConstant(r)
	switch {
	case l.IsZero() && !(rok && tensor.Close(rc, 0)):
		return s.arena.Zero(n.Shape()), nil
	case rok && tensor.Close(rc, 1):
		return l, nil
	case rok && tensor.Close(rc, 0):
		return n, nil
	case l.IsConstant() && rok:
		v, err := tensor.Div(l.Value(), r.Value())
		return s.fold(n, v, err), nil
	case rok:
		return done(b, b.Scale(1/rc, l))
	case l.Shape().IsScalar() && l.Equal(r):
		return s.arena.Real(1), nil
	case l.IsUnary(expr.OpNegate):
		return done(b, b.Neg(b.Div(l.Operand(), r)))
	}
	if k, x, ok := leadingConstant(l); ok {
		return done(b, b.Scale(k, b.Div(x, r)))
	}
	return n, nil
}

func (s *Simplifier) power(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	l, r := n.Left(), n.Right()
	lc, lok := scalarConstant(l)
	rc, rok := scalarConstant(r)
	switch {
	case rok && tensor.Close(rc, 0):
		return s.arena.Real(1), nil
	case rok && tensor.Close(rc, 1):
		return l, nil
	case lok && rok:
		v, err := tensor.Pow(l.Value(), r.Value())
		return s.fold(n, v, err), nil
	case lok && tensor.Close(lc, 1):
		return s.arena.Real(1), nil
	case lok && tensor.Close(lc, 0) && rok && rc > 0:
		return s.arena.Real(0), nil
	case rok && l.IsBinary(expr.OpPow):
		if a, ok := l.Right().ScalarConstant(); ok && mergesPowers(a, rc) {
			return done(b, b.PowReal(l.Left(), a*rc))
		}
	}
	return n, nil
}

// mergesPowers reports whether (x^a)^b = x^(ab) for every real x where
// the left side is defined. An even a followed by a fractional b loses the
// sign of x: sqrt(x^2) is |x|, not x.
func mergesPowers(a, b float64) bool {
	if isInteger(b) {
		return true
	}
	return isInteger(a) && math.Mod(math.Abs(a), 2) == 1
}

func isInteger(x float64) bool { return x == math.Trunc(x) && !math.IsInf(x, 0) }

func foldBinary(op expr.BinaryOp, l, r tensor.Value) (tensor.Value, error) {
	switch op {
	case expr.OpDot:
		return tensor.Dot(l, r)
	case expr.OpCross:
		return tensor.Cross(l, r)
	case expr.OpOuter:
		return tensor.Outer(l, r)
	case expr.OpContract:
		return tensor.Contract(l, r)
	}
	return tensor.Value{}, expr.Unsupported("fold "+op.String(), nil)
}

// bilinear handles dot, cross, outer and contract
func (s *Simplifier) bilinear(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	op, l, r := n.BinaryOp(), n.Left(), n.Right()
	if l.IsZero() || r.IsZero() {
		return s.arena.Zero(n.Shape()), nil
	}
	if l.IsConstant() && r.IsConstant() {
		v, err := foldBinary(op, l.Value(), r.Value())
		return s.fold(n, v, err), nil
	}
	switch {
	case l.IsUnary(expr.OpNegate):
		return done(b, b.Neg(b.Binary(op, l.Operand(), r)))
	case r.IsUnary(expr.OpNegate):
		return done(b, b.Neg(b.Binary(op, l, r.Operand())))
	case op == expr.OpContract && isIdentity(l):
		return done(b, b.Unary(expr.OpTrace, r))
	case op == expr.OpContract && isIdentity(r):
		return done(b, b.Unary(expr.OpTrace, l))
	}
	if k, x, ok := leadingConstant(l); ok {
		return done(b, b.Scale(k, b.Binary(op, x, r)))
	}
	if k, y, ok := leadingConstant(r); ok {
		return done(b, b.Scale(k, b.Binary(op, l, y)))
	}
	return n, nil
}

func (s *Simplifier) function(n *expr.Node) *expr.Node {
	spec, ok := s.funcs.Lookup(n.Name())
	if !ok {
		return n
	}
	args := make([]float64, n.NumChildren())
	for i := range args {
		x, ok := n.Child(i).ScalarConstant()
		if !ok {
			return n
		}
		args[i] = x
	}
	if spec.Arity >= 0 && spec.Arity != len(args) {
		return n
	}
	y := spec.Eval(args)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return n
	}
	return s.arena.Real(y)
}

func (s *Simplifier) vector(n *expr.Node) (*expr.Node, error) {
	data := make([]float64, n.NumChildren())
	for i := range data {
		x, ok := n.Child(i).ScalarConstant()
		if !ok {
			return n, nil
		}
		data[i] = x
	}
	return s.arena.Constant(tensor.NewVector(data...)), nil
}

func (s *Simplifier) component(n *expr.Node) (*expr.Node, error) {
	b := expr.NewBuilder(s.arena)
	x := n.Operand()
	i, j := n.Index()
	pick := func(y *expr.Node) *expr.Node {
		if j < 0 {
			return b.Component(y, i)
		}
		return b.Component2(y, i, j)
	}
	switch {
	case x.IsConstant():
		var v tensor.Value
		var err error
		if j < 0 {
			v, err = tensor.Component(x.Value(), i)
		} else {
			v, err = tensor.Component2(x.Value(), i, j)
		}
		return s.fold(n, v, err), nil
	case x.Kind() == expr.KindVector && j < 0:
		return x.Child(i), nil
	case x.IsUnary(expr.OpNegate):
		return done(b, b.Neg(pick(x.Operand())))
	}
	if k, y, ok := leadingConstant(x); ok && y.Shape() == x.Shape() {
		return done(b, b.Scale(k, pick(y)))
	}
	return n, nil
}
