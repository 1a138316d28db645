package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/DGWeakForm/kernel"
)

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive [flags] [energy]",
		Short: "derive the weak form of an energy.",
		Long: `Print the first variation, the Euler-Lagrange form, the weighted
residual and its Jacobian for the primary variable of the problem, the
compiled tapes, and whether the discretization needs split variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem(cmd)
			if err != nil {
				return err
			}
			arena, energy, err := parseArgOrEnergy(p, args)
			if err != nil {
				return err
			}
			shapes, err := p.Shapes()
			if err != nil {
				return err
			}
			params, err := p.ParameterSet()
			if err != nil {
				return err
			}
			kr, err := kernel.NewRunner(arena, kernel.Config{
				Discretization: p.Discretization(),
				Parameters:     params,
				DisableTape:    getFlag(cmd, "no-tape"),
			})
			if err != nil {
				return err
			}
			def, err := kr.DefineKernel(p.Primary, energy, p.Primary, shapes[p.Primary])
			if err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				if err := kr.Generator().Dump(w, energy, p.Primary, p.FEOrder); err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
				return def.Dump(w)
			})
		},
	}
	cmd.Flags().Bool("no-tape", false, "skip tape compilation")
	return cmd
}
