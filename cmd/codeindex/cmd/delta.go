package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newDeltaCmd creates the delta command.
func newDeltaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delta <branch> <base>",
		Short: "Show the chunk membership delta between two branches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				delta, err := eng.Catalog().BranchDelta(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "added (%d):\n", len(delta.Added))
				for _, id := range delta.Added {
					fmt.Fprintf(out, "  + %s\n", id)
				}
				fmt.Fprintf(out, "removed (%d):\n", len(delta.Removed))
				for _, id := range delta.Removed {
					fmt.Fprintf(out, "  - %s\n", id)
				}
				return nil
			})
		},
	}

	return cmd
}
