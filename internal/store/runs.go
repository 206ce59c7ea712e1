// Package store persists analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

var (
	// ErrNotFound is returned when no run matches an id or prefix.
	ErrNotFound = errors.New("store: run not found")
	// ErrAmbiguous is returned when an id prefix matches several runs.
	ErrAmbiguous = errors.New("store: ambiguous run id")
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// Run is one persisted Builder output.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Source      string
	Filter      string
	Threshold   float64
	Wide        *equivalence.WideTable
	Diagnostics []diag.Diagnostic
}

// RunSummary is a row of ListRuns.
type RunSummary struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Filter    string
	Records   int
	Flagged   int
}

// storedValue is the JSON form of a key cell.
type storedValue struct {
	Kind string    `json:"k"`
	Num  float64   `json:"n,omitempty"`
	T    time.Time `json:"t,omitempty"`
	Raw  string    `json:"r,omitempty"`
}

func encodeKeys(vs []table.Value) (string, error) {
	out := make([]storedValue, len(vs))
	for i, v := range vs {
		sv := storedValue{Kind: v.Kind.String(), Raw: v.Raw}
		switch v.Kind {
		case table.Number:
			if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
				sv.Kind, sv.Raw = table.Text.String(), v.String()
			} else {
				sv.Num = v.Num
			}
		case table.Time:
			sv.T = v.T
		}
		out[i] = sv
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeKeys(s string) ([]table.Value, error) {
	var in []storedValue
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, err
	}
	out := make([]table.Value, len(in))
	for i, sv := range in {
		switch sv.Kind {
		case table.Number.String():
			out[i] = table.Value{Kind: table.Number, Num: sv.Num, Raw: sv.Raw}
		case table.Time.String():
			out[i] = table.At(sv.T, sv.Raw)
		case table.Text.String():
			out[i] = table.Str(sv.Raw)
		default:
			out[i] = table.Null()
		}
	}
	return out, nil
}

// SaveRun stores run in one transaction and returns its id. A new UUID is
// assigned when run.ID is empty.
func (s *Store) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.Wide == nil {
		return "", errors.New("store: run has no wide table")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	wt := run.Wide
	keyCols, _ := json.Marshal(wt.KeyColumns)
	notes, _ := json.Marshal(append([]string{}, wt.Notes...))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, source, filter, key_columns, notes, threshold, record_count, flagged_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, run.Source, run.Filter, string(keyCols), string(notes), run.Threshold,
		wt.Len(), len(wt.Flagged(run.Threshold))); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for i, r := range wt.Records {
		keys, err := encodeKeys(r.Keys)
		if err != nil {
			return "", fmt.Errorf("encode keys of record %d: %w", i, err)
		}
		mg, _ := json.Marshal(r.Mg)
		meq, _ := json.Marshal(r.Meq)
		var errPct sql.NullFloat64
		if !math.IsNaN(r.ErrorPercent) && !math.IsInf(r.ErrorPercent, 0) {
			errPct = sql.NullFloat64{Float64: r.ErrorPercent, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (run_id, idx, keys, mg, meq, total_cations, total_anions, error_percent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, keys, string(mg), string(meq), r.TotalCations, r.TotalAnions, errPct); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	for i, d := range run.Diagnostics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, seq, kind, row_idx, point, date, column_name, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, string(d.Kind), d.Row, d.Point, d.Date, d.Column, d.Message); err != nil {
			return "", fmt.Errorf("insert diagnostic %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `SELECT id, created_at, source, filter, record_count, flagged_count FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Filter, &r.Records, &r.Flagged); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// resolveID expands a unique id prefix.
func (s *Store) resolveID(ctx context.Context, prefix string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, prefix, prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if id == prefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// LoadRun reads a run by id or unique id prefix.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	id, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	run := &Run{ID: id, Wide: &equivalence.WideTable{Weights: chem.DefaultWeights()}}
	var keyCols, notes string
	if err := s.db.QueryRowContext(ctx, `
		SELECT created_at, source, filter, key_columns, notes, threshold FROM runs WHERE id = ?
	`, id).Scan(&run.CreatedAt, &run.Source, &run.Filter, &keyCols, &notes, &run.Threshold); err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if err := json.Unmarshal([]byte(keyCols), &run.Wide.KeyColumns); err != nil {
		return nil, fmt.Errorf("decode key columns: %w", err)
	}
	if err := json.Unmarshal([]byte(notes), &run.Wide.Notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	if err := s.loadRecords(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadDiagnostics(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) loadRecords(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keys, mg, meq, total_cations, total_anions, error_percent
		FROM records WHERE run_id = ? ORDER BY idx
	`, run.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var keys, mg, meq string
		var errPct sql.NullFloat64
		var r equivalence.Record
		if err := rows.Scan(&keys, &mg, &meq, &r.TotalCations, &r.TotalAnions, &errPct); err != nil {
			return err
		}
		if r.Keys, err = decodeKeys(keys); err != nil {
			return fmt.Errorf("decode keys: %w", err)
		}
		if err := json.Unmarshal([]byte(mg), &r.Mg); err != nil {
			return fmt.Errorf("decode mg: %w", err)
		}
		if err := json.Unmarshal([]byte(meq), &r.Meq); err != nil {
			return fmt.Errorf("decode meq: %w", err)
		}
		r.ErrorPercent = math.NaN()
		if errPct.Valid {
			r.ErrorPercent = errPct.Float64
		}
		run.Wide.Records = append(run.Wide.Records, r)
	}
	return rows.Err()
}

func (s *Store) loadDiagnostics(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, row_idx, point, date, column_name, message
		FROM diagnostics WHERE run_id = ? ORDER BY seq
	`, run.ID)
	if err != nil {
		return fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d diag.Diagnostic
		var kind string
		if err := rows.Scan(&kind, &d.Row, &d.Point, &d.Date, &d.Column, &d.Message); err != nil {
			return err
		}
		d.Kind = diag.Kind(kind)
		run.Diagnostics = append(run.Diagnostics, d)
	}
	return rows.Err()
}
