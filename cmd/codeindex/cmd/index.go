package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/chunk"
	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var clearBranch bool
	var resolve bool

	cmd := &cobra.Command{
		Use:   "index <branch> <file>...",
		Short: "Index files into a branch",
		Long: `Index reads the given files, chunks them, updates the catalog and
keyword index, and attaches the results to the branch. Content hashes
that still need embeddings are printed; feed them to your embedding
model and attach the vectors through the API.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch := args[0]

			files := make([]chunk.FileInput, 0, len(args)-1)
			for _, path := range args[1:] {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				files = append(files, chunk.FileInput{Path: path, Content: string(content)})
			}

			return withEngine(func(eng *engine.Engine) error {
				ctx := cmd.Context()

				if clearBranch {
					if err := eng.ClearBranch(ctx, branch); err != nil {
						return err
					}
				}

				report, err := eng.IndexFiles(ctx, branch, files)
				if err != nil {
					return err
				}

				if resolve {
					if _, err := eng.ResolveCallEdges(ctx, branch); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "parsed %d files: %d chunks, %d symbols, %d call edges\n",
					report.FilesParsed, report.Chunks, report.Symbols, report.CallEdges)
				if len(report.PendingHashes) > 0 {
					fmt.Fprintf(out, "%d content hashes pending embeddings:\n", len(report.PendingHashes))
					for _, h := range report.PendingHashes {
						fmt.Fprintln(out, h)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearBranch, "clear-branch", false, "Clear the branch's membership sets before indexing")
	cmd.Flags().BoolVar(&resolve, "resolve", true, "Run the call-edge name-binding pass after indexing")

	return cmd
}
