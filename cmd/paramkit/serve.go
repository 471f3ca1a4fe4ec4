package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/paramkit/bootstrap"
	"github.com/artpar/paramkit/config"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the schema server",
		Long: `Start the paramkit HTTP server.

The server will:
  - Load configuration from paramkit.yaml (or --config)
  - Or load configuration from PARAMKIT_* environment variables
  - Load every schema file in schemas.dir
  - Serve GET /schemas, GET /schemas/{name} and POST /schemas/{name}/validate
  - Reload on config file changes, SIGHUP and, with schemas.watch, schema changes

Environment variables (for Docker deployments):
  PARAMKIT_SCHEMAS_DIR       - Schema directory (required)
  PARAMKIT_SERVER_PORT       - Server port (default: 8080)
  PARAMKIT_LOG_LEVEL         - Log level: debug, info, warn, error
  PARAMKIT_METRICS_ENABLED   - Expose /metrics

Examples:
  paramkit serve
  paramkit serve --config /etc/paramkit/config.yaml
  PARAMKIT_SCHEMAS_DIR=./schemas paramkit serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			hasConfigFile := false
			if _, err := os.Stat(opts.cfgFile); err == nil {
				hasConfigFile = true
			}

			if !hasConfigFile && !config.HasEnvConfig() {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "No configuration found.")
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Option 1: Create %s with schemas.dir set\n", opts.cfgFile)
				fmt.Fprintln(out, "Option 2: Set PARAMKIT_SCHEMAS_DIR environment variable")
				return nil
			}

			app, err := bootstrap.New(bootstrap.Options{
				ConfigPath: opts.cfgFile,
				Version:    version,
			})
			if err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}

			return app.Run(cmd.Context())
		},
	}
}
