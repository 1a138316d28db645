// Package config reads variational problem descriptions from YAML.
//
//	dimension: 2
//	fe_order: 1
//	primary: c
//	variables:
//	  - {name: c, shape: scalar}
//	parameters: {kappa: 0.01}
//	energy: "W(c) + 0.5*kappa*dot(grad(c), grad(c))"
//	splitting: {strategy: optimal, threshold: 2}
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGWeakForm/element"
	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/parser"
	"github.com/notargets/DGWeakForm/split"
	"github.com/notargets/DGWeakForm/tensor"
)

// Optimal asks the planner to compare every strategy
const Optimal = "optimal"

// Problem is one variational problem
type Problem struct {
	Dimension  int                `yaml:"dimension"`
	FEOrder    int                `yaml:"fe_order"`
	Primary    string             `yaml:"primary"`
	Variables  []Variable         `yaml:"variables"`
	Parameters map[string]float64 `yaml:"parameters,omitempty"`
	Energy     string             `yaml:"energy,omitempty"`
	StrongForm string             `yaml:"strong_form,omitempty"`
	Splitting  Splitting          `yaml:"splitting,omitempty"`
}

// Variable declares a discretized unknown or coefficient field
type Variable struct {
	Name  string `yaml:"name"`
	Shape string `yaml:"shape"`
}

// Splitting selects the splitting strategy: recursive, direct, mixed or
// optimal. Threshold is the mixed strategy's recursive depth.
type Splitting struct {
	Strategy  string `yaml:"strategy,omitempty"`
	Threshold int    `yaml:"threshold,omitempty"`
}

// Default is the Cahn–Hilliard problem on P1 triangles
func Default() *Problem {
	return &Problem{
		Dimension:  2,
		FEOrder:    1,
		Primary:    "c",
		Variables:  []Variable{{Name: "c", Shape: "scalar"}},
		Parameters: map[string]float64{"kappa": 0.01},
		Energy:     "W(c) + 0.5*kappa*dot(grad(c), grad(c))",
		Splitting:  Splitting{Strategy: Optimal, Threshold: 2},
	}
}

// Load reads and validates the problem file at path
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading problem file")
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "problem file %s", path)
	}
	return p, nil
}

// Parse decodes and validates a problem. Unknown keys are errors.
func Parse(data []byte) (*Problem, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	p := &Problem{}
	if err := dec.Decode(p); err != nil {
		return nil, errors.Wrap(err, "decoding problem")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal encodes the problem as YAML
func (p *Problem) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate reports every problem with the description at once
func (p *Problem) Validate() (err error) {
	if p.Dimension < 1 || p.Dimension > 3 {
		err = multierr.Append(err, errors.Errorf("dimension must be 1, 2 or 3, have %d", p.Dimension))
	}
	if p.FEOrder < 1 {
		err = multierr.Append(err, errors.Errorf("fe_order must be positive, have %d", p.FEOrder))
	}
	if p.Energy == "" && p.StrongForm == "" {
		err = multierr.Append(err, errors.New("one of energy or strong_form is required"))
	}
	if len(p.Variables) == 0 {
		err = multierr.Append(err, errors.New("no variables declared"))
	}
	seen := make(map[string]bool, len(p.Variables))
	for i, v := range p.Variables {
		switch {
		case v.Name == "":
			err = multierr.Append(err, errors.Errorf("variable %d has no name", i))
		case seen[v.Name]:
			err = multierr.Append(err, errors.Errorf("variable %s declared twice", v.Name))
		}
		seen[v.Name] = true
		dim := p.Dimension
		if dim < 1 {
			dim = 1
		}
		if _, e := tensor.ParseShape(v.Shape, dim); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "variable %s", v.Name))
		}
	}
	if p.Primary == "" {
		err = multierr.Append(err, errors.New("primary variable is required"))
	} else if !seen[p.Primary] {
		err = multierr.Append(err, errors.Errorf("primary variable %s is not declared", p.Primary))
	}
	for name := range p.Parameters {
		if seen[name] {
			err = multierr.Append(err, errors.Errorf("%s is both a variable and a parameter", name))
		}
	}
	if _, _, e := p.Strategy(); e != nil {
		err = multierr.Append(err, e)
	}
	if p.Splitting.Threshold < 0 {
		err = multierr.Append(err, errors.Errorf("splitting threshold must not be negative, have %d",
			p.Splitting.Threshold))
	}
	return err
}

// Shapes maps every declared variable to its shape
func (p *Problem) Shapes() (map[string]tensor.Shape, error) {
	shapes := make(map[string]tensor.Shape, len(p.Variables))
	for _, v := range p.Variables {
		s, err := tensor.ParseShape(v.Shape, p.Dimension)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %s", v.Name)
		}
		shapes[v.Name] = s
	}
	return shapes, nil
}

// Strategy returns the configured splitting strategy. optimal is true
// when every strategy should be compared, and also when none is given.
func (p *Problem) Strategy() (s split.Strategy, optimal bool, err error) {
	name := strings.TrimSpace(p.Splitting.Strategy)
	if name == "" || strings.EqualFold(name, Optimal) {
		return split.Recursive, true, nil
	}
	s, err = split.ParseStrategy(name)
	return s, false, err
}

func (p *Problem) Discretization() element.Discretization {
	return element.Discretization{Order: p.FEOrder, Dimensions: element.Dimensionality(p.Dimension)}
}

// ParameterNames returns the parameter names, sorted
func (p *Problem) ParameterNames() []string {
	names := make([]string, 0, len(p.Parameters))
	for name := range p.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParameterSet binds the parameters for evaluation
func (p *Problem) ParameterSet() (*eval.Parameters, error) {
	builders := make([]*eval.ParamBuilder, 0, len(p.Parameters))
	for _, name := range p.ParameterNames() {
		builders = append(builders, eval.Scalar(name).Bind(p.Parameters[name]))
	}
	return eval.NewParameters(builders...)
}

// Parser returns a parser that knows the problem's fields and parameters
func (p *Problem) Parser(arena *expr.Arena) (*parser.Parser, error) {
	if arena.Dim() != p.Dimension {
		return nil, errors.Errorf("arena dimension %d, problem dimension %d", arena.Dim(), p.Dimension)
	}
	shapes, err := p.Shapes()
	if err != nil {
		return nil, err
	}
	return parser.New(arena, parser.Config{Fields: shapes, Parameters: p.ParameterNames()}), nil
}

// ParseEnergy parses the energy into a fresh arena of the problem's
// dimension
func (p *Problem) ParseEnergy() (*expr.Arena, *expr.Node, error) {
	if p.Energy == "" {
		return nil, nil, errors.New("problem has no energy")
	}
	arena := expr.NewArena(p.Dimension)
	ps, err := p.Parser(arena)
	if err != nil {
		return nil, nil, err
	}
	n, err := ps.Parse(p.Energy)
	if err != nil {
		return nil, nil, errors.Wrap(err, "energy")
	}
	return arena, n, nil
}

func (p *Problem) String() string {
	return fmt.Sprintf("%dD P%d problem in %s", p.Dimension, p.FEOrder, p.Primary)
}
