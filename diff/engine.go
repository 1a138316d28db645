package diff

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/simplify"
)

type cacheKey struct {
	id       expr.NodeID
	variable string
}

// Engine differentiates expressions of one arena. Results are memoised by
// node identity, so a sub-expression shared across the DAG is
// differentiated once. An Engine is not safe for concurrent use.
type Engine struct {
	arena *expr.Arena
	funcs *expr.FunctionTable
	simp  *simplify.Simplifier
	log   *logrus.Entry
	cache map[cacheKey]Differential
}

type Option func(*Engine)

// WithFunctions sets the table supplying derivative rules of named functions
func WithFunctions(ft *expr.FunctionTable) Option {
	return func(e *Engine) { e.funcs = ft }
}

// WithSimplifier shares a simplifier (and its cache) with the engine
func WithSimplifier(s *simplify.Simplifier) Option {
	return func(e *Engine) { e.simp = s }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(arena *expr.Arena, opts ...Option) *Engine {
	e := &Engine{
		arena: arena,
		cache: make(map[cacheKey]Differential),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.funcs == nil {
		e.funcs = expr.NewFunctionTable()
	}
	if e.log == nil {
		e.log = logrus.WithField("component", "diff")
	}
	if e.simp == nil {
		e.simp = simplify.New(arena, simplify.WithFunctions(e.funcs), simplify.WithLogger(e.log))
	}
	return e
}

func (e *Engine) Arena() *expr.Arena { return e.arena }

func (e *Engine) Functions() *expr.FunctionTable { return e.funcs }

func (e *Engine) Simplifier() *simplify.Simplifier { return e.simp }

// CacheSize is the number of memoised (node, variable) pairs
func (e *Engine) CacheSize() int { return len(e.cache) }

// Differentiate returns the first variation of x with respect to the
// variable or field named variable. Coefficients are simplified.
func (e *Engine) Differentiate(x *expr.Node, variable string) (Differential, error) {
	d, err := e.differentiate(x, variable)
	if err != nil {
		return nil, errors.Wrapf(err, "differentiating %s with respect to %s", x, variable)
	}
	e.log.Debugf("d/d%s %s = %s (cache %d)", variable, x, d, len(e.cache))
	return d, nil
}

func (e *Engine) differentiate(n *expr.Node, v string) (Differential, error) {
	key := cacheKey{n.ID(), v}
	if d, ok := e.cache[key]; ok {
		return d, nil
	}
	d := Differential{}
	if n.DependsOn(v) {
		raw, err := e.rule(n, v)
		if err != nil {
			return nil, err
		}
		for k, c := range raw {
			s, err := e.simp.Simplify(c)
			if err != nil {
				return nil, err
			}
			if s.IsZero() {
				continue
			}
			d[k] = s
		}
	}
	e.cache[key] = d
	return d, nil
}

func (e *Engine) rule(n *expr.Node, v string) (Differential, error) {
	switch n.Kind() {
	case expr.KindVariable, expr.KindField:
		return Differential{0: e.arena.Real(1)}, nil
	case expr.KindUnary, expr.KindBinary, expr.KindComponent:
		return e.operator(n, v)
	case expr.KindFunction:
		return e.function(n, v)
	case expr.KindVector:
		return e.vector(n, v)
	}
	// constants, test and shape functions carry no dependence
	return Differential{}, nil
}
