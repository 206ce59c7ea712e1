package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/diagram"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/export"
	"github.com/KaramelBytes/hydrochem-cli/internal/metrics"
	"github.com/KaramelBytes/hydrochem-cli/internal/utils"
)

var (
	diaRead     readFlags
	diaRunID    string
	diaKinds    []string
	diaPointCol string
	diaDateCol  string
	diaStyleCol string
	diaColorCol string
	diaFilter   string
	diaOutput   string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [wide-file]",
	Short: "Project records onto Piper, Stiff and Gibbs/Mifflin coordinates",
	Long: `Computes plot-ready coordinates from a wide table (an exported file or a saved run)
and writes them as JSON. Rendering is left to the plotting tool of your choice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			wt     *equivalence.WideTable
			source string
			err    error
		)
		switch {
		case len(args) == 1 && diaRunID != "":
			return fmt.Errorf("pass either a wide file or --run, not both")
		case len(args) == 1:
			source = args[0]
			if wt, err = diaRead.readWide(source); err != nil {
				return err
			}
		case diaRunID != "":
			s, db, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			run, err := s.LoadRun(cmd.Context(), diaRunID)
			if err != nil {
				return err
			}
			wt, source = run.Wide, run.Source
		default:
			return fmt.Errorf("missing wide file (or --run <id>)")
		}

		wt, fres, err := applyFilter(wt, diaFilter)
		if err != nil {
			return err
		}
		kinds, err := diagramKinds(diaKinds)
		if err != nil {
			return err
		}

		tags := diagram.Tags{StyleColumn: diaStyleCol, ColorColumn: diaColorCol}
		rep := export.DiagramReport{Source: source, Filter: diaFilter, Records: wt.Len()}
		rep.Diagnostics = append(rep.Diagnostics, fres.Diagnostics...)
		if kinds["piper"] {
			res, err := diagram.Piper(wt, diagram.PiperOptions{Tags: tags})
			if err != nil {
				return err
			}
			rep.Piper = &res
			rep.Diagnostics = append(rep.Diagnostics, res.Diagnostics...)
			metrics.ObserveDiagnostics(res.Diagnostics)
		}
		if kinds["stiff"] {
			res, err := diagram.Stiff(wt, diagram.StiffOptions{
				PointColumn: firstNonEmpty(diaPointCol, cfg.PointColumn),
				DateColumn:  firstNonEmpty(diaDateCol, cfg.DateColumn),
			})
			switch {
			case errors.Is(err, diagram.ErrMissingColumn) && len(diaKinds) == 0:
				warnf("Warning: skipping Stiff diagram: %v", err)
			case err != nil:
				return err
			default:
				rep.Stiff = &res
				rep.Diagnostics = append(rep.Diagnostics, res.Diagnostics...)
				metrics.ObserveDiagnostics(res.Diagnostics)
			}
		}
		if kinds["ratios"] {
			rs, err := diagram.Ratios(wt, tags)
			if err != nil {
				return err
			}
			rep.Ratios = rs
		}
		for _, d := range rep.Diagnostics {
			if d.Kind != diag.UnknownColumn { // already printed by applyFilter
				warnf("%s", d)
			}
		}

		if diaOutput == "" {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		if err := export.WriteJSON(diaOutput, rep); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s (%d records, %d diagnostics)\n", diaOutput, rep.Records, len(rep.Diagnostics))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagramCmd)
	diaRead.register(diagramCmd)
	diagramCmd.Flags().StringVar(&diaRunID, "run", "", "use a saved run (id or unique prefix) instead of a file")
	diagramCmd.Flags().StringSliceVar(&diaKinds, "kind", nil, "diagrams to compute: piper, stiff, ratios (default all)")
	diagramCmd.Flags().StringVar(&diaPointCol, "point-col", "", "sampling point key column for Stiff (default from config)")
	diagramCmd.Flags().StringVar(&diaDateCol, "date-col", "", "date key column for Stiff (default from config)")
	diagramCmd.Flags().StringVar(&diaStyleCol, "style-col", "", "key column copied to each point as its marker style")
	diagramCmd.Flags().StringVar(&diaColorCol, "color-col", "", "key column copied to each point as its color")
	diagramCmd.Flags().StringVar(&diaFilter, "filter", "", "project only records matching an expression")
	diagramCmd.Flags().StringVarP(&diaOutput, "output", "o", "", "write the JSON report here instead of stdout")
}

func diagramKinds(names []string) (map[string]bool, error) {
	kinds := map[string]bool{}
	if len(names) == 0 {
		names = []string{"piper", "stiff", "ratios"}
	}
	for _, n := range names {
		switch k := strings.ToLower(strings.TrimSpace(n)); k {
		case "piper", "stiff", "ratios":
			kinds[k] = true
		case "gibbs", "mifflin":
			kinds["ratios"] = true
		default:
			return nil, fmt.Errorf("unknown diagram kind: %s (use piper, stiff or ratios)", n)
		}
	}
	return kinds, nil
}
