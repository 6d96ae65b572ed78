package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/catalog"
	"github.com/Aman-CERP/codeindex/internal/engine"
)

// newCallersCmd creates the callers command.
func newCallersCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "callers <name>",
		Short: "List call sites on a branch targeting a symbol name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				infos, err := eng.Catalog().Callers(cmd.Context(), args[0], branch)
				if err != nil {
					return err
				}
				printCallInfos(cmd, infos)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "main", "Branch to query")

	return cmd
}

// newCalleesCmd creates the callees command.
func newCalleesCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "callees <symbol-id>",
		Short: "List call sites on a branch originating from a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				infos, err := eng.Catalog().Callees(cmd.Context(), args[0], branch)
				if err != nil {
					return err
				}
				printCallInfos(cmd, infos)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "main", "Branch to query")

	return cmd
}

func printCallInfos(cmd *cobra.Command, infos []catalog.CallerInfo) {
	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "no call edges")
		return
	}
	for _, info := range infos {
		resolved := "unresolved"
		if info.Edge.IsResolved {
			resolved = "resolved"
		}
		fmt.Fprintf(out, "%s:%d:%d  %s -> %s  [%s, %s]\n",
			info.Symbol.FilePath, info.Edge.Line, info.Edge.Col,
			info.Symbol.Name, info.Edge.TargetName,
			info.Edge.CallType, resolved)
	}
}
