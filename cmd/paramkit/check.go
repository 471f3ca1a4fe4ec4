package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <schema>...",
		Short: "Check that schema files parse and build",
		Long: `Check parses each schema file and builds it, reporting every problem.

Examples:
  paramkit check login.yaml
  paramkit check schemas/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				s, err := loadSchema(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "  %s %s\n", crossMark, path)
					fmt.Fprintf(out, "      %v\n", err)
					continue
				}
				fmt.Fprintf(out, "  %s %s (version %s, %d paths)\n", checkMark, path, s.Version(), s.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schemas failed", failed, len(args))
			}
			return nil
		},
	}
}
