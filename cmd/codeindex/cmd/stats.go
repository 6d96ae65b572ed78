package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(eng *engine.Engine) error {
				stats, err := eng.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "chunks:          %d\n", stats.Chunks)
				fmt.Fprintf(out, "embeddings:      %d\n", stats.Embeddings)
				fmt.Fprintf(out, "vectors:         %d\n", stats.Vectors)
				fmt.Fprintf(out, "keyword chunks:  %d\n", stats.KeywordChunks)
				return nil
			})
		},
	}

	return cmd
}
