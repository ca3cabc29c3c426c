package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagExt  string
	flagJSON bool
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Look up a definition or search the index by similarity",
	Long: `Queries starting with "struct", "class" or "def" are answered by scanning
source files for the definition. Anything else is embedded and matched
against the index.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, _, err := diver.EnsureIndexed(ctx); err != nil {
			return err
		}

		results, err := diver.Search(ctx, strings.Join(args, " "), flagExt)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No results.")
			return nil
		}
		for _, r := range results {
			label := "(exact)"
			if !r.Exact() {
				label = fmt.Sprintf("(distance %.3f)", *r.Distance)
			}
			fmt.Fprintf(out, "== %s %s\n%s\n\n", r.Source, label, r.Snippet)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVarP(&flagExt, "ext", "e", "", "only return files with this extension")
	findCmd.Flags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(findCmd)
}
