package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hydrochem-cli/internal/export"
)

var (
	runsLimit  int
	runsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs saved with build --save",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := s.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs saved")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %-24s records=%d flagged=%d", shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Source, r.Records, r.Flagged)
			if r.Filter != "" {
				fmt.Fprintf(out, "  filter=%s", r.Filter)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved run (id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		run, err := s.LoadRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if runsOutput != "" {
			if err := export.WriteFile(runsOutput, run.Wide, run.Source, run.Threshold); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote %s\n", runsOutput)
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if run.Filter != "" {
			fmt.Fprintf(out, "Filter: %s\n", run.Filter)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, export.Markdown(run.Wide, run.Source, run.Threshold))
		if len(run.Diagnostics) > 0 {
			fmt.Fprintln(out, "\n[DIAGNOSTICS]")
			for _, d := range run.Diagnostics {
				fmt.Fprintf(out, "- %s\n", d)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 = all)")
	runsShowCmd.Flags().StringVarP(&runsOutput, "output", "o", "", "export the run's wide table (.csv, .md or .json)")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
