package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/paramkit/core/codec"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var schemaPath string
	var persistable, excludeSensitive bool

	cmd := &cobra.Command{
		Use:   "export <values.json>",
		Short: "Export the values of a document through a schema",
		Long: `Export loads a values-only document and writes back the values the
schema keeps. With --persistable, SKIP_SAVE and RUNTIME parameters and
inactive Mode variants are dropped.

Without -o the output is a values-only JSON document that validate and
the HTTP API accept.

Examples:
  paramkit export -s login.yaml values.json --persistable
  paramkit export -s login.yaml values.json --exclude-sensitive -o table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			c, err := loadContext(cmd, s, args[0])
			if err != nil {
				return err
			}

			var preds []state.FlagPredicate
			if persistable {
				preds = append(preds, state.Persistable)
			}
			if excludeSensitive {
				preds = append(preds, state.ExcludeSensitive)
			}
			var values map[string]value.Value
			if len(preds) > 0 {
				values = c.CollectValuesFiltered(state.AllOf(preds...))
			} else {
				values = c.CollectValues()
			}

			out := cmd.OutOrStdout()
			if !cmd.Flags().Changed("output") {
				data, err := codec.EncodeValues(values)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, buf.String())
				return err
			}

			f, err := opts.formatter()
			if err != nil {
				return err
			}
			return f.FormatValues(out, values, formatOptions(s))
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema file (required)")
	cmd.Flags().BoolVar(&persistable, "persistable", false, "drop SKIP_SAVE, RUNTIME and inactive variant values")
	cmd.Flags().BoolVar(&excludeSensitive, "exclude-sensitive", false, "drop SENSITIVE values")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
