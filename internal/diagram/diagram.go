// Package diagram projects wide equivalence records onto the coordinates of
// the Piper, Stiff, Gibbs and Mifflin classification diagrams. It produces
// numbers only; drawing is left to the caller.
package diagram

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
)

// ErrMissingColumn indicates a configured key column is not in the wide table.
var ErrMissingColumn = errors.New("diagram: missing column")

// Point is a projected sample with the record's optional style and color
// tags copied through.
type Point struct {
	X     float64
	Y     float64
	Style string
	Color string
}

// Tags selects key columns whose values label each projected point.
type Tags struct {
	StyleColumn string
	ColorColumn string
}

func (t Tags) check(wt *equivalence.WideTable) error {
	for _, c := range []string{t.StyleColumn, t.ColorColumn} {
		if c != "" && wt.KeyIndex(c) < 0 {
			return fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return nil
}

func (t Tags) point(wt *equivalence.WideTable, row int, x, y float64) Point {
	return Point{X: x, Y: y, Style: keyText(wt, row, t.StyleColumn), Color: keyText(wt, row, t.ColorColumn)}
}

func keyText(wt *equivalence.WideTable, row int, col string) string {
	if col == "" {
		return ""
	}
	v, ok := wt.Key(row, col)
	if !ok {
		return ""
	}
	return v.String()
}
