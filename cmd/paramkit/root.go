package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/paramkit/core/formatter"
)

// errInvalid is returned when values fail validation. The report has
// already been printed.
var errInvalid = errors.New("validation failed")

type rootOptions struct {
	cfgFile string
	output  string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "paramkit",
		Short: "Typed parameter schemas with validation and conditional visibility",
		Long: `paramkit loads typed parameter schemas, validates values against them
and serves them over HTTP.

Schemas:
  paramkit check login.yaml            # Check schema files
  paramkit validate -s login.yaml v.json
  paramkit export -s login.yaml v.json --persistable

Server:
  paramkit serve                       # Serve schemas from schemas.dir`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "paramkit.yaml", "config file path")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", fmt.Sprintf("output format %v", formatter.List()))

	cmd.AddCommand(
		newCheckCmd(),
		newValidateCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (o *rootOptions) formatter() (formatter.Formatter, error) {
	f, ok := formatter.Get(o.output)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", o.output, formatter.List())
	}
	return f, nil
}
