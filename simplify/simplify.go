// Package simplify rewrites expression DAGs into smaller equivalent ones.
//
// A pass rewrites bottom-up, visiting each distinct node once. Passes repeat
// until the result stops changing structurally or the pass limit is hit.
// Results are cached by the NodeID of the input, so repeated requests for
// shared sub-expressions cost a map lookup.
package simplify

import (
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/expr"
)

const DefaultMaxPasses = 64

type Simplifier struct {
	arena     *expr.Arena
	funcs     *expr.FunctionTable
	log       *logrus.Entry
	maxPasses int
	cache     map[expr.NodeID]*expr.Node
}

type Option func(*Simplifier)

// WithFunctions sets the table used to fold calls with constant arguments
func WithFunctions(ft *expr.FunctionTable) Option {
	return func(s *Simplifier) { s.funcs = ft }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Simplifier) { s.log = log }
}

func WithMaxPasses(n int) Option {
	return func(s *Simplifier) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

func New(arena *expr.Arena, opts ...Option) *Simplifier {
	s := &Simplifier{
		arena:     arena,
		maxPasses: DefaultMaxPasses,
		cache:     make(map[expr.NodeID]*expr.Node),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.funcs == nil {
		s.funcs = expr.NewFunctionTable()
	}
	if s.log == nil {
		s.log = logrus.WithField("component", "simplify")
	}
	return s
}

// Simplify returns an expression equivalent to n. Simplifying the result
// again returns it unchanged.
func (s *Simplifier) Simplify(n *expr.Node) (*expr.Node, error) {
	if r, ok := s.cache[n.ID()]; ok {
		return r, nil
	}
	cur := n
	converged := false
	for pass := 0; pass < s.maxPasses && !converged; pass++ {
		next, err := s.pass(cur, make(map[expr.NodeID]*expr.Node))
		if err != nil {
			return nil, err
		}
		converged = next == cur || next.Equal(cur)
		cur = next
	}
	if !converged {
		s.log.Debugf("no fixed point after %d passes simplifying %s", s.maxPasses, n)
	}
	s.cache[n.ID()] = cur
	s.cache[cur.ID()] = cur
	return cur, nil
}

// CacheSize is the number of memoised inputs
func (s *Simplifier) CacheSize() int { return len(s.cache) }

func (s *Simplifier) pass(n *expr.Node, memo map[expr.NodeID]*expr.Node) (*expr.Node, error) {
	if r, ok := memo[n.ID()]; ok {
		return r, nil
	}
	if r, ok := s.cache[n.ID()]; ok {
		memo[n.ID()] = r
		return r, nil
	}
	r := n
	if n.NumChildren() > 0 {
		args := make([]*expr.Node, n.NumChildren())
		for i := range args {
			a, err := s.pass(n.Child(i), memo)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		m, err := s.arena.Rebuild(n, args)
		if err != nil {
			return nil, err
		}
		if r, err = s.rewrite(m); err != nil {
			return nil, err
		}
	}
	memo[n.ID()] = r
	return r, nil
}

func (s *Simplifier) rewrite(n *expr.Node) (*expr.Node, error) {
	switch n.Kind() {
	case expr.KindUnary:
		return s.unary(n)
	case expr.KindBinary:
		switch n.BinaryOp() {
		case expr.OpAdd, expr.OpSub:
			return s.sum(n)
		case expr.OpMul:
			return s.product(n)
		case expr.OpDivide:
			return s.quotient(n)
		case expr.OpPow:
			return s.power(n)
		default:
			return s.bilinear(n)
		}
	case expr.KindFunction:
		return s.function(n), nil
	case expr.KindVector:
		return s.vector(n)
	case expr.KindComponent:
		return s.component(n)
	}
	return n, nil
}
