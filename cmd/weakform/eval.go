package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/tape"
	"github.com/notargets/DGWeakForm/tensor"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [flags] [expression]",
		Short: "evaluate an expression at one point.",
		Long: `Evaluate an expression, or the problem's energy, at a single point.
Field data is given as name=values, where one value is a scalar, dim
values a vector and dim*dim values a row-major tensor, e.g.

	weakform eval "dot(grad(c), grad(c))" --field c=0.5 --grad c=1,2

With --tape the expression is also compiled and run on a tape.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem(cmd)
			if err != nil {
				return err
			}
			_, n, err := parseArgOrEnergy(p, args)
			if err != nil {
				return err
			}
			params, err := p.ParameterSet()
			if err != nil {
				return err
			}
			ctx, err := pointContext(cmd, p.Dimension)
			if err != nil {
				return err
			}
			v, err := eval.New(eval.WithParameters(params)).Evaluate(n, ctx)
			if err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "%s = %s\n", n, v); err != nil {
					return err
				}
				if !getFlag(cmd, "tape") {
					return nil
				}
				tp, ok := tape.Build(n, nil)
				if !ok {
					_, err := fmt.Fprintln(w, "tape: not compilable")
					return err
				}
				tv, ok := tp.Evaluate(tape.InputsFrom(ctx, params, nil))
				if !ok {
					_, err := fmt.Fprintf(w, "tape: missing inputs %v\n", tp.Inputs())
					return err
				}
				_, err := fmt.Fprintf(w, "%stape = %s\n", tp, tv)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringArray("field", nil, "field value, name=values")
	f.StringArray("grad", nil, "field gradient, name=values")
	f.StringArray("hess", nil, "field hessian, name=values")
	f.StringArray("test", nil, "test function value, name=values")
	f.StringArray("test-grad", nil, "test function gradient, name=values")
	f.StringArray("shape", nil, "shape function value, name=values")
	f.StringArray("shape-grad", nil, "shape function gradient, name=values")
	f.String("position", "", "point coordinates, comma separated")
	f.Float64("time", 0, "time")
	f.Bool("tape", false, "also evaluate on a compiled tape")
	return cmd
}

// pointContext builds the evaluation context from the command's flags
func pointContext(cmd *cobra.Command, dim int) (*eval.Context, error) {
	ctx := &eval.Context{
		Fields: make(map[string]eval.FieldData),
		Test:   make(map[string]eval.FunctionData),
		Shape:  make(map[string]eval.FunctionData),
	}
	ctx.Time, _ = cmd.Flags().GetFloat64("time")
	if pos := getString(cmd, "position"); pos != "" {
		xs, err := parseFloats(pos)
		if err != nil {
			return nil, errors.Wrap(err, "position")
		}
		ctx.Position = tensor.NewVector(xs...)
	}
	fields := []struct {
		flag string
		rank tensor.Rank
		set  func(name string, v tensor.Value)
	}{
		{"field", tensor.Scalar, func(n string, v tensor.Value) { f := ctx.Fields[n]; f.Value = v; ctx.Fields[n] = f }},
		{"grad", tensor.Vector, func(n string, v tensor.Value) { f := ctx.Fields[n]; f.Gradient = v; ctx.Fields[n] = f }},
		{"hess", tensor.Tensor2, func(n string, v tensor.Value) { f := ctx.Fields[n]; f.Hessian = v; ctx.Fields[n] = f }},
		{"test", tensor.Scalar, func(n string, v tensor.Value) { f := ctx.Test[n]; f.Value = v; ctx.Test[n] = f }},
		{"test-grad", tensor.Vector, func(n string, v tensor.Value) { f := ctx.Test[n]; f.Gradient = v; ctx.Test[n] = f }},
		{"shape", tensor.Scalar, func(n string, v tensor.Value) { f := ctx.Shape[n]; f.Value = v; ctx.Shape[n] = f }},
		{"shape-grad", tensor.Vector, func(n string, v tensor.Value) { f := ctx.Shape[n]; f.Gradient = v; ctx.Shape[n] = f }},
	}
	for _, fl := range fields {
		entries, _ := cmd.Flags().GetStringArray(fl.flag)
		for _, entry := range entries {
			name, v, err := parseAssignment(entry, dim, fl.rank)
			if err != nil {
				return nil, errors.Wrapf(err, "--%s", fl.flag)
			}
			fl.set(name, v)
		}
	}
	return ctx, nil
}

// parseAssignment reads name=values into a value of rank at least least
// whose shape follows the number of values
func parseAssignment(entry string, dim int, least tensor.Rank) (string, tensor.Value, error) {
	name, values, ok := strings.Cut(entry, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", tensor.Value{}, errors.Errorf("expected name=values, have %q", entry)
	}
	xs, err := parseFloats(values)
	if err != nil {
		return "", tensor.Value{}, errors.Wrapf(err, "%s", name)
	}
	switch n := len(xs); {
	case n == 1 && least == tensor.Scalar:
		return name, tensor.Real(xs[0]), nil
	case n == dim && least <= tensor.Vector:
		return name, tensor.NewVector(xs...), nil
	case n == dim*dim:
		return name, tensor.NewTensor(dim, xs), nil
	}
	return "", tensor.Value{}, errors.Errorf("%s: %d values fit no shape in %d dimensions", name, len(xs), dim)
}

func parseFloats(text string) ([]float64, error) {
	parts := strings.Split(text, ",")
	xs := make([]float64, len(parts))
	for i, s := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}
