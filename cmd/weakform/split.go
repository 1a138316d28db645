package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/DGWeakForm/config"
	"github.com/notargets/DGWeakForm/diff"
	"github.com/notargets/DGWeakForm/expr"
	"github.com/notargets/DGWeakForm/split"
	"github.com/notargets/DGWeakForm/weakform"
)

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [flags] [expression]",
		Short: "plan auxiliary variables for high order derivatives.",
		Long: `Plan split variables for the primary variable of an expression. Without
an argument the Euler-Lagrange form of the problem's energy is split.
The strategy comes from the problem unless --strategy is given; the
optimal strategy compares every candidate and prints them all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem(cmd)
			if err != nil {
				return err
			}
			if s := getString(cmd, "strategy"); s != "" {
				p.Splitting.Strategy = s
			}
			if cmd.Flags().Changed("threshold") {
				p.Splitting.Threshold, _ = cmd.Flags().GetInt("threshold")
			}
			arena, n, err := splitTarget(p, args)
			if err != nil {
				return err
			}
			planner := split.NewPlanner(arena, p.FEOrder)
			strategy, optimal, err := p.Strategy()
			if err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				var best *split.Plan
				if optimal {
					var plans []*split.Plan
					if best, plans, err = planner.ComputeOptimalSplitting(n, p.Primary); err != nil {
						return err
					}
					for _, pl := range plans {
						mark := " "
						if pl == best {
							mark = "*"
						}
						if _, err := fmt.Fprintf(w, "%s %s\n", mark, pl); err != nil {
							return err
						}
					}
				} else if best, err = planner.PlanWith(n, p.Primary, strategy, p.Splitting.Threshold); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s\n", best); err != nil {
					return err
				}
				if err := best.Dump(w); err != nil {
					return err
				}
				t, err := best.Transform(planner, n)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(w, "transformed: %s\n", t)
				return err
			})
		},
	}
	cmd.Flags().String("strategy", "", "recursive, direct, mixed or optimal")
	cmd.Flags().Int("threshold", 0, "recursive depth of the mixed strategy")
	return cmd
}

// splitTarget parses args[0], or derives the strong form of the energy
func splitTarget(p *config.Problem, args []string) (*expr.Arena, *expr.Node, error) {
	arena, n, err := parseArgOrEnergy(p, args)
	if err != nil || len(args) > 0 {
		return arena, n, err
	}
	g := weakform.NewGenerator(diff.NewEngine(arena))
	strong, err := g.EulerLagrange(n, p.Primary)
	return arena, strong, err
}
