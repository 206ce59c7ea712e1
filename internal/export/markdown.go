package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// Markdown renders a compact report: summary, charge balance, the meq/L
// table and notes.
func Markdown(wt *equivalence.WideTable, source string, threshold float64) string {
	var b strings.Builder
	b.WriteString("[EQUIVALENCE SUMMARY]\n")
	if source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", source))
	}
	b.WriteString(fmt.Sprintf("Records: %d\n", wt.Len()))
	if len(wt.KeyColumns) > 0 {
		b.WriteString(fmt.Sprintf("Keys: %s\n", strings.Join(wt.KeyColumns, ", ")))
	}

	var errs []float64
	undefined := 0
	for _, r := range wt.Records {
		if math.IsNaN(r.ErrorPercent) || math.IsInf(r.ErrorPercent, 0) {
			undefined++
			continue
		}
		errs = append(errs, r.ErrorPercent)
	}
	flagged := wt.Flagged(threshold)
	b.WriteString("\n[CHARGE BALANCE]\n")
	if len(errs) > 0 {
		lo, hi := stats.Bounds(errs)
		b.WriteString(fmt.Sprintf("- error %%: mean %.4g (min %.4g, max %.4g)\n", stats.Mean(errs), lo, hi))
	}
	b.WriteString(fmt.Sprintf("- above %.4g%%: %d of %d", threshold, len(flagged), wt.Len()))
	if undefined > 0 {
		b.WriteString(fmt.Sprintf(" (%d undefined)", undefined))
	}
	b.WriteString("\n")

	if wt.Len() > 0 {
		cols := append([]string(nil), wt.KeyColumns...)
		for _, ion := range chem.All() {
			cols = append(cols, ion.MeqLabel())
		}
		cols = append(cols, chem.TotalCationsLabel, chem.TotalAnionsLabel, chem.ErrorLabel)
		b.WriteString("\n[RECORDS]\n")
		b.WriteString("| ")
		b.WriteString(strings.Join(cols, " | "))
		b.WriteString(" |\n|")
		b.WriteString(strings.Repeat(" --- |", len(cols)))
		b.WriteString("\n")
		for _, r := range wt.Records {
			cells := make([]string, 0, len(cols))
			for _, k := range r.Keys {
				cells = append(cells, safeVal(k.String()))
			}
			for _, ion := range chem.All() {
				cells = append(cells, fmt.Sprintf("%.4g", r.Meq[ion]))
			}
			cells = append(cells,
				fmt.Sprintf("%.4g", r.TotalCations),
				fmt.Sprintf("%.4g", r.TotalAnions),
				table.FormatFloat(roundTo(r.ErrorPercent, 2)))
			b.WriteString("| ")
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString(" |\n")
		}
	}
	if len(wt.Notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range wt.Notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func roundTo(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
