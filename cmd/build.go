package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/export"
	"github.com/KaramelBytes/hydrochem-cli/internal/metrics"
	"github.com/KaramelBytes/hydrochem-cli/internal/store"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

var (
	buildRead       readFlags
	buildParamCol   string
	buildValueCol   string
	buildGroupCols  []string
	buildIons       []string
	buildUnassigned []string
	buildRenameFile string
	buildFilter     string
	buildOutput     string
	buildSave       bool
	buildThreshold  float64
)

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Pivot a long-format lab export into a wide mg/L + meq/L table",
	Long: `Reads a CSV/TSV/XLSX file with one row per (sample, parameter), maps parameter labels
to the nine canonical ions, converts mg/L to meq/L and computes the charge-balance error.

Ion labels come from the config (labels.<ion>), then --rename-file, then --ion flags.
Configured labels that do not occur in the data are replaced by a guess from the
parameter labels when one matches.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		paramCol := firstNonEmpty(buildParamCol, cfg.ParameterColumn)
		valueCol := firstNonEmpty(buildValueCol, cfg.ValueColumn)
		threshold := cfg.ErrorThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = buildThreshold
		}

		tbl, err := buildRead.readTable(path)
		if err != nil {
			return err
		}
		sel, err := buildSelection(tbl, paramCol)
		if err != nil {
			return err
		}
		rename, err := equivalence.SelectionRename(sel)
		if err != nil {
			return err
		}
		wt, err := equivalence.Build(tbl, rename, equivalence.Options{
			ParameterColumn: paramCol,
			ValueColumn:     valueCol,
			GroupColumns:    buildGroupCols,
		})
		if err != nil {
			return err
		}
		metrics.RecordsBuilt.Add(float64(wt.Len()))
		for _, n := range wt.Notes {
			warnf("Note: %s", n)
		}

		wt, fres, err := applyFilter(wt, buildFilter)
		if err != nil {
			return err
		}
		balance := wt.BalanceDiagnostics(threshold)
		metrics.RecordsFlagged.Add(float64(len(balance)))
		metrics.ObserveDiagnostics(balance)

		fmt.Printf("✓ Built %d records keyed by %s\n", wt.Len(), strings.Join(wt.KeyColumns, ", "))
		if len(balance) > 0 {
			warnf("Warning: %d of %d records exceed the %.4g%% charge-balance threshold", len(balance), wt.Len(), threshold)
			for _, d := range balance {
				debugf("%s", d)
			}
		}

		source := filepath.Base(path)
		if buildOutput != "" {
			if err := export.WriteFile(buildOutput, wt, source, threshold); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote %s\n", buildOutput)
		} else if !buildSave {
			fmt.Print(export.Markdown(wt, source, threshold))
		}

		if buildSave {
			s, db, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			diags := append(append([]diag.Diagnostic{}, fres.Diagnostics...), balance...)
			id, err := s.SaveRun(cmd.Context(), &store.Run{
				Source:      source,
				Filter:      buildFilter,
				Threshold:   threshold,
				Wide:        wt,
				Diagnostics: diags,
			})
			if err != nil {
				return err
			}
			metrics.RunsSaved.Inc()
			fmt.Printf("✓ Saved run %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildRead.register(buildCmd)
	buildCmd.Flags().StringVar(&buildParamCol, "param-col", "", "parameter label column (default from config)")
	buildCmd.Flags().StringVar(&buildValueCol, "value-col", "", "numeric value column (default from config)")
	buildCmd.Flags().StringSliceVar(&buildGroupCols, "group-col", nil, "grouping key columns (default: every other column)")
	buildCmd.Flags().StringArrayVar(&buildIons, "ion", nil, "ion label mapping, e.g. --ion Ca='Calcio total' (repeatable)")
	buildCmd.Flags().StringSliceVar(&buildUnassigned, "unassigned", nil, "ions with no source column, filled with 0")
	buildCmd.Flags().StringVar(&buildRenameFile, "rename-file", "", "YAML file mapping ion symbols to parameter labels")
	buildCmd.Flags().StringVar(&buildFilter, "filter", "", `keep records matching an expression, e.g. [$"Calcio (mg/L)"] > 50`)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "write the wide table (.csv, .md or .json)")
	buildCmd.Flags().BoolVar(&buildSave, "save", false, "persist the run in the SQLite store")
	buildCmd.Flags().Float64Var(&buildThreshold, "threshold", 10, "charge-balance error threshold in percent (default from config)")
}

// buildSelection resolves the ion label for every canonical ion.
func buildSelection(tbl *table.Table, paramCol string) (map[chem.Ion]string, error) {
	sel, err := cfg.Selection()
	if err != nil {
		return nil, err
	}
	present := map[string]bool{}
	var labels []string
	for _, v := range tbl.Distinct(paramCol) {
		present[v.String()] = true
		labels = append(labels, v.String())
	}
	guess := equivalence.SuggestSelection(labels)
	for ion, label := range sel {
		if label == "" || present[label] {
			continue
		}
		if g, ok := guess[ion]; ok {
			debugf("%s: %q not in data, using %q", ion, label, g)
			sel[ion] = g
		}
	}

	if buildRenameFile != "" {
		b, err := os.ReadFile(buildRenameFile)
		if err != nil {
			return nil, fmt.Errorf("read rename file: %w", err)
		}
		var m map[string]string
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse rename file: %w", err)
		}
		for k, label := range m {
			ion, err := chem.ParseIon(k)
			if err != nil {
				return nil, fmt.Errorf("rename file: %w", err)
			}
			sel[ion] = label
		}
	}
	for _, kv := range buildIons {
		k, label, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --ion %q (want ION=label)", kv)
		}
		ion, err := chem.ParseIon(k)
		if err != nil {
			return nil, err
		}
		sel[ion] = label
	}
	for _, k := range buildUnassigned {
		ion, err := chem.ParseIon(k)
		if err != nil {
			return nil, err
		}
		sel[ion] = ""
	}
	return sel, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
