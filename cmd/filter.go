package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/export"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

var (
	filterRead   readFlags
	filterOutput string
)

var filterCmd = &cobra.Command{
	Use:   "filter <wide-file> <expression>",
	Short: "Select records of a wide table with a filter expression",
	Long: `Evaluates an expression such as

  [$"pH"] >= 6.5 and [$"pH"] <= 8.5 or [$"Punto"] in ('001', '002')

against every record of an exported wide table and prints the matching rows.
Rows lacking a referenced column are skipped and reported.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		wt, err := filterRead.readWide(args[0])
		if err != nil {
			return err
		}
		out, res, err := applyFilter(wt, args[1])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✓ %d of %d records match\n", len(res.Rows), wt.Len())
		for k, row := range res.Rows {
			r := out.Records[k]
			keys := make([]string, len(r.Keys))
			for i, v := range r.Keys {
				keys[i] = v.String()
			}
			fmt.Fprintf(w, "%5d  %-32s  %s=%s\n", row, strings.Join(keys, " / "),
				chem.ErrorLabel, table.FormatFloat(r.ErrorPercent))
		}
		if filterOutput != "" {
			if err := export.WriteFile(filterOutput, out, args[0], cfg.ErrorThreshold); err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Wrote %s\n", filterOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterRead.register(filterCmd)
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "write the matching records (.csv, .md or .json)")
}
