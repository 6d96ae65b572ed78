package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newGCCmd creates the gc command.
func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove orphaned rows and reconcile the search indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(eng *engine.Engine) error {
				report, err := eng.GC(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "chunks removed:      %d\n", report.Chunks)
				fmt.Fprintf(out, "embeddings removed:  %d\n", report.Embeddings)
				fmt.Fprintf(out, "symbols removed:     %d\n", report.Symbols)
				fmt.Fprintf(out, "call edges removed:  %d\n", report.CallEdges)
				fmt.Fprintf(out, "vectors removed:     %d\n", report.Vectors)
				fmt.Fprintf(out, "keyword docs removed: %d\n", report.Keywords)
				return nil
			})
		},
	}

	return cmd
}
