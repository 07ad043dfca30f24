package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fibermap/internal/domain"
	"fibermap/internal/loader"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a topology document offline",
		Long: `Import a JSON or YAML topology document without touching the database.

Every invariant violation is printed; the command exits non-zero when the
document would be rejected by import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loader.LoadRegistry(args[0])
			if err != nil {
				out := cmd.ErrOrStderr()
				fmt.Fprintf(out, "%s: rejected (%s)\n", args[0], domain.Code(err))
				// joined violations arrive one per line
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintf(out, "  - %s\n", line)
				}
				return fmt.Errorf("validation failed: %s", args[0])
			}

			parts := make([]string, 0, len(domain.Kinds()))
			for _, k := range domain.Kinds() {
				parts = append(parts, fmt.Sprintf("%s=%d", k, len(reg.List(k))))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d elements (%s)\n", args[0], reg.Len(), strings.Join(parts, " "))
			return nil
		},
	}
}
