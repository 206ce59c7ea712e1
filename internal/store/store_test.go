package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func sampleRun(t *testing.T) *Run {
	t.Helper()
	long := table.New("lab", []string{"Punto", "Fecha", "Parametro", "Valor"})
	day := table.At(time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC), "02/03/2021")
	long.Append([]table.Value{table.Str("001"), day, table.Str("Calcio (mg/L)"), table.Num(40.08)})
	long.Append([]table.Value{table.Str("001"), day, table.Str("Cloruros (mg/L)"), table.Num(35.45)})
	long.Append([]table.Value{table.Str("002"), table.Null(), table.Str("Calcio (mg/L)"), table.Num(0)})
	wt, err := equivalence.Build(long, equivalence.IdentityRename(), equivalence.Options{
		ParameterColumn: "Parametro", ValueColumn: "Valor", GroupColumns: []string{"Punto", "Fecha"},
	})
	require.NoError(t, err)
	return &Run{
		Source:    "lab.csv",
		Filter:    `[$"Punto"] like '0%'`,
		Threshold: 10,
		Wide:      wt,
		Diagnostics: []diag.Diagnostic{
			{Kind: diag.UndefinedShares, Row: 1, Message: "cation total 0, anion total 0"},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	v, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestSaveAndLoadRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	run := sampleRun(t)

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.LoadRun(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "lab.csv", got.Source)
	assert.Equal(t, run.Filter, got.Filter)
	assert.Equal(t, []string{"Punto", "Fecha"}, got.Wide.KeyColumns)
	assert.Equal(t, run.Wide.Notes, got.Wide.Notes)
	require.Equal(t, 2, got.Wide.Len())

	first := got.Wide.Records[0]
	assert.Equal(t, "001", first.Keys[0].String())
	assert.Equal(t, table.Time, first.Keys[1].Kind)
	assert.True(t, first.Keys[1].T.Equal(time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, run.Wide.Records[0].Meq, first.Meq)
	assert.InDelta(t, run.Wide.Records[0].ErrorPercent, first.ErrorPercent, 1e-12)

	second := got.Wide.Records[1]
	assert.Equal(t, equivalence.MissingKey, second.Keys[1].String())
	assert.True(t, math.IsNaN(second.ErrorPercent))
	assert.Equal(t, 0.0, second.Mg[chem.Ca])

	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, diag.UndefinedShares, got.Diagnostics[0].Kind)
	assert.Equal(t, 1, got.Diagnostics[0].Row)
}

func TestListRunsAndNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	older := sampleRun(t)
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.SaveRun(ctx, older)
	require.NoError(t, err)
	newer := sampleRun(t)
	newer.Source = "campaña-2.xlsx"
	newer.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.SaveRun(ctx, newer)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "campaña-2.xlsx", runs[0].Source)
	assert.Equal(t, 2, runs[0].Records)
	assert.Equal(t, 2, runs[0].Flagged)

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.LoadRun(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.LoadRun(ctx, "")
	assert.True(t, errors.Is(err, ErrAmbiguous))
}

func TestOpenCreatesDirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "runs.db")
	db, err := Open(p)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, New(db).Migrate(context.Background()))
}
