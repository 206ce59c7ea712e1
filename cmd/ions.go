package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
)

var ionsCmd = &cobra.Command{
	Use:   "ions",
	Short: "List the canonical ions, their labels and mg/L to meq/L weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := chem.DefaultWeights()
		sel, err := cfg.Selection()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-5s %-7s %-20s %12s  %s\n", "ION", "TYPE", "COLUMN", "WEIGHT", "SOURCE LABEL")
		for _, ion := range chem.All() {
			kind := "anion"
			if ion.IsCation() {
				kind = "cation"
			}
			label := sel[ion]
			if label == "" {
				label = "(unassigned)"
			}
			fmt.Fprintf(out, "%-5s %-7s %-20s %12.6f  %s\n", ion.Symbol(), kind, ion.MgLabel(), w.Of(ion), label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ionsCmd)
}
