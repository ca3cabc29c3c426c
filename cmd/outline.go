package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var outlineCmd = &cobra.Command{
	Use:         "outline <file>",
	Short:       "List the top-level definitions in a source file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{offline: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		o := diver.Outliner()
		if o.Registry().LanguageName(args[0]) == "" {
			return fmt.Errorf("no grammar for %s (supported: %v)", args[0], o.Registry().Languages())
		}
		symbols, err := o.Outline(cmd.Context(), args[0], src)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, s := range symbols {
			fmt.Fprintf(tw, "%d-%d\t%s\t%s\n", s.StartLine, s.EndLine, s.Kind, s.Name)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(outlineCmd)
}
