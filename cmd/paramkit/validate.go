package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var schemaPath string
	var showStates bool

	cmd := &cobra.Command{
		Use:   "validate <values.json>",
		Short: "Validate a values document against a schema",
		Long: `Validate loads a values-only document into a context and validates
every visible path. Use "-" to read values from stdin.

Exits non-zero when any visible value is invalid.

Examples:
  paramkit validate -s login.yaml values.json
  paramkit validate -s login.yaml values.json --states -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.formatter()
			if err != nil {
				return err
			}
			s, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			c, err := loadContext(cmd, s, args[0])
			if err != nil {
				return err
			}

			report, err := c.ValidateAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fo := formatOptions(s)
			if showStates {
				if err := f.FormatStates(out, c.States(), fo); err != nil {
					return err
				}
			}
			if err := f.FormatReport(out, report, fo); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema file (required)")
	cmd.Flags().BoolVar(&showStates, "states", false, "also print per-path state")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
