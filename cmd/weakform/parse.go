package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notargets/DGWeakForm/config"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/split"
)

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [flags] [expression]",
		Short: "parse an expression and report its shape and derivative orders.",
		Long: `Parse an expression against the fields and parameters of the problem
and print it with its shape and the derivative order of every variable.
Without an argument the problem's energy is parsed; with --strong its
strong form.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem(cmd)
			if err != nil {
				return err
			}
			if getFlag(cmd, "strong") {
				return parseStrong(cmd, p)
			}
			arena, n, err := parseArgOrEnergy(p, args)
			if err != nil {
				return err
			}
			orders := split.NewPlanner(arena, p.FEOrder).RequiredOrders(n)
			return withOutput(cmd, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s\n  shape: %s\n  orders: %s\n  nodes: %d\n",
					n, n.Shape(), formatOrders(orders), arena.Len())
				return err
			})
		},
	}
	cmd.Flags().Bool("strong", false, "parse the problem's strong form")
	return cmd
}

func parseStrong(cmd *cobra.Command, p *config.Problem) error {
	if p.StrongForm == "" {
		return errors.New("problem has no strong_form")
	}
	arena := expr.NewArena(p.Dimension)
	ps, err := p.Parser(arena)
	if err != nil {
		return err
	}
	eqs, err := ps.ParseStrongForm(p.StrongForm)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(w io.Writer) error {
		for _, eq := range eqs {
			if _, err := fmt.Fprintln(w, eq); err != nil {
				return err
			}
		}
		return nil
	})
}

// parseArgOrEnergy parses args[0] when present, else the energy
func parseArgOrEnergy(p *config.Problem, args []string) (*expr.Arena, *expr.Node, error) {
	if len(args) == 0 {
		return p.ParseEnergy()
	}
	arena := expr.NewArena(p.Dimension)
	ps, err := p.Parser(arena)
	if err != nil {
		return nil, nil, err
	}
	n, err := ps.Parse(args[0])
	return arena, n, err
}

func formatOrders(orders map[string]int) string {
	names := make([]string, 0, len(orders))
	for name := range orders {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, orders[name])
	}
	return strings.Join(parts, " ")
}
