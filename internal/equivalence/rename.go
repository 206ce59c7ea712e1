package equivalence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

var (
	// ErrMissingColumn indicates a declared parameter, value or group column
	// is absent from the input header.
	ErrMissingColumn = errors.New("equivalence: missing column")
	// ErrDuplicateTarget indicates two raw labels map to the same ion, or an
	// ion is both assigned and unassigned.
	ErrDuplicateTarget = errors.New("equivalence: duplicate rename target")
	// ErrInvalidGroupColumn indicates the parameter or value column was
	// listed as a group column.
	ErrInvalidGroupColumn = errors.New("equivalence: invalid group column")
)

// StructuralError aborts a build before any row is processed.
type StructuralError struct {
	Op     string
	Column string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Column, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// RenameMap maps raw parameter labels onto canonical ions. Unassigned lists
// ions for which no source label was chosen; they are filled with 0.
type RenameMap struct {
	Assigned   map[string]chem.Ion
	Unassigned []chem.Ion
}

// Validate enforces that every ion has at most one source.
func (m RenameMap) Validate() error {
	seen := map[chem.Ion]string{}
	labels := make([]string, 0, len(m.Assigned))
	for l := range m.Assigned {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		ion := m.Assigned[l]
		if !ion.Valid() {
			return &StructuralError{Op: "rename", Column: l, Err: chem.ErrUnknownIon}
		}
		if prev, ok := seen[ion]; ok {
			return &StructuralError{Op: "rename", Column: l,
				Err: fmt.Errorf("%w: %s already mapped from %q", ErrDuplicateTarget, ion, prev)}
		}
		seen[ion] = l
	}
	for _, ion := range m.Unassigned {
		if prev, ok := seen[ion]; ok {
			return &StructuralError{Op: "rename", Column: prev,
				Err: fmt.Errorf("%w: %s is both assigned and unassigned", ErrDuplicateTarget, ion)}
		}
	}
	return nil
}

func (m RenameMap) isUnassigned(ion chem.Ion) bool {
	for _, u := range m.Unassigned {
		if u == ion {
			return true
		}
	}
	return false
}

// resolve maps a raw label to its ion. Labels without an entry resolve only
// when they already equal a canonical mg/L label.
func (m RenameMap) resolve(label string) (chem.Ion, bool) {
	ion, ok := m.Assigned[label]
	if !ok {
		ion, ok = chem.LookupMgLabel(label)
	}
	if !ok || m.isUnassigned(ion) {
		return 0, false
	}
	return ion, true
}

// SelectionRename builds a RenameMap from a per-ion choice of raw label. An
// empty label marks the ion unassigned.
func SelectionRename(sel map[chem.Ion]string) (RenameMap, error) {
	m := RenameMap{Assigned: map[string]chem.Ion{}}
	for _, ion := range chem.All() {
		label := strings.TrimSpace(sel[ion])
		if label == "" {
			m.Unassigned = append(m.Unassigned, ion)
			continue
		}
		if prev, ok := m.Assigned[label]; ok {
			return RenameMap{}, &StructuralError{Op: "rename", Column: label,
				Err: fmt.Errorf("%w: selected for both %s and %s", ErrDuplicateTarget, prev, ion)}
		}
		m.Assigned[label] = ion
	}
	return m, m.Validate()
}

// IdentityRename maps every canonical mg/L label onto its own ion.
func IdentityRename() RenameMap {
	m := RenameMap{Assigned: map[string]chem.Ion{}}
	for _, ion := range chem.All() {
		m.Assigned[ion.MgLabel()] = ion
	}
	return m
}

// SuggestSelection guesses a source label per ion from the distinct
// parameter labels, matching on the label text without its unit suffix.
// The first matching label wins.
func SuggestSelection(labels []string) map[chem.Ion]string {
	out := map[chem.Ion]string{}
	for _, l := range labels {
		base, _ := table.SplitUnits(l)
		ion, err := chem.ParseIon(base)
		if err != nil {
			continue
		}
		if _, ok := out[ion]; !ok {
			out[ion] = l
		}
	}
	return out
}
