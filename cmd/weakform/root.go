package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/DGWeakForm/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "weakform",
		Short: "Derive weak forms and splitting plans from energy functionals.",
		Long: `Derive first variations, Euler-Lagrange equations, weighted residuals
and Jacobians from an energy density, and plan auxiliary variables for
derivatives the discretization cannot represent.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if getFlag(cmd, "verbose") {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	root.PersistentFlags().StringP("config", "f", "", "problem file (defaults to the Cahn-Hilliard problem)")
	root.PersistentFlags().StringP("output", "o", "-", "dump destination")
	root.AddCommand(newParseCmd(), newDeriveCmd(), newSplitCmd(), newEvalCmd())
	return root
}

func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		log.Fatal(err)
	}
	return r
}

func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		log.Fatal(err)
	}
	return r
}

// problem loads the --config file, or the default problem
func problem(cmd *cobra.Command) (*config.Problem, error) {
	path := getString(cmd, "config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// output opens the --output destination. The returned close function is
// always non-nil.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	path := getString(cmd, "output")
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening output")
	}
	return f, f.Close, nil
}

// withOutput runs fn against the --output destination
func withOutput(cmd *cobra.Command, fn func(w io.Writer) error) (err error) {
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()
	return fn(w)
}
