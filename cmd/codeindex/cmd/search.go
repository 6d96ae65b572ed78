package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newSearchCmd creates the search command (BM25 keyword search; vector
// queries need an externally produced embedding and go through the API).
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword (BM25) search over indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				hits, err := eng.SearchKeyword(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "no results")
					return nil
				}

				if limit > 0 && len(hits) > limit {
					hits = hits[:limit]
				}
				for _, hit := range hits {
					if hit.Chunk != nil {
						fmt.Fprintf(out, "%.3f  %s:%d-%d  %s\n",
							hit.Result.Score, hit.Chunk.FilePath,
							hit.Chunk.StartLine, hit.Chunk.EndLine, hit.Chunk.Name)
					} else {
						fmt.Fprintf(out, "%.3f  %s\n", hit.Result.Score, hit.Result.ChunkID)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to print (0 = all)")

	return cmd
}
