package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/steelminer/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleReport(id string, ys float64) model.Report {
	page := 3
	r := model.Report{
		DocumentID:  id,
		Source:      "papers/" + id + ".pdf",
		ExtractedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		SourceMeta:  model.SourceMeta{Adapter: "pdf", ContentHash: "abc123", PageCount: 4},
		Result:      model.NewDocumentResult(),
		Quality:     model.QualityScore{Confidence: 0.5},
	}
	r.Result.Composition.Add(model.Measurement{
		Field: "Si", Value: 0.275, Unit: "wt.%", Range: &model.Range{Min: 0.25, Max: 0.30},
		Raw: "Si 0.25~0.30", Metadata: model.Metadata{Method: model.MethodCompositionWindow},
	})
	r.Result.MechanicalProperties.Add(model.Measurement{
		Field: "yield_strength", Value: ys, Unit: "MPa", Raw: "YS 950 MPa",
		Metadata: model.Metadata{Method: model.MethodRuleRegex, Page: &page, Sentence: "YS 950 MPa."},
	})
	r.Result.HeatTreatment.Add(model.Measurement{
		Field: "quenching_medium", Category: "oil", Raw: "quenched in oil",
		Metadata: model.Metadata{Method: model.MethodRuleRegex},
	})
	return r
}

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, "segmenter=auto")
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "segmenter=auto", got.Settings)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, st.FinishRun(ctx, run.ID, RunStatusComplete, 5, 1))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, 5, got.Documents)
	assert.Equal(t, 1, got.Failed)
	assert.NotNil(t, got.FinishedAt)
}

func TestSQLite_RunNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "nonexistent")
	assert.Error(t, err)

	err = st.FinishRun(ctx, "nonexistent", RunStatusFailed, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for range 3 {
		_, err := st.BeginRun(ctx, "")
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

// --- Reports ---

func TestSQLite_SaveAndListReports(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, "")
	require.NoError(t, err)

	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("b", 900)))
	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("a", 950)))

	reports, err := st.ListReports(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "a", reports[0].DocumentID)
	assert.Equal(t, "pdf", reports[0].SourceMeta.Adapter)

	ys, ok := reports[0].Result.MechanicalProperties.First("yield_strength")
	require.True(t, ok)
	assert.Equal(t, 950.0, ys.Value)
	require.NotNil(t, ys.Metadata.Page)
	assert.Equal(t, 3, *ys.Metadata.Page)

	quench, ok := reports[0].Result.HeatTreatment.First("quenching_medium")
	require.True(t, ok)
	assert.Equal(t, "oil", quench.Category)

	empty, err := st.ListReports(ctx, "other-run")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLite_SaveReportReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, "")
	require.NoError(t, err)

	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("a", 900)))
	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("a", 1000)))

	reports, err := st.ListReports(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rows, err := st.QueryMeasurements(ctx, MeasurementFilter{RunID: run.ID, Field: "yield_strength"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, rows[0].Measurement.Value)
}

func TestSQLite_QueryMeasurements(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.BeginRun(ctx, "")
	require.NoError(t, err)
	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("a", 800)))
	require.NoError(t, st.SaveReport(ctx, run.ID, sampleReport("b", 1200)))

	all, err := st.QueryMeasurements(ctx, MeasurementFilter{RunID: run.ID})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	low, high := 1000.0, 1500.0
	strong, err := st.QueryMeasurements(ctx, MeasurementFilter{Field: "yield_strength", Min: &low, Max: &high})
	require.NoError(t, err)
	require.Len(t, strong, 1)
	assert.Equal(t, "b", strong[0].DocumentID)
	assert.Equal(t, model.DomainMechanical, strong[0].Domain)
	assert.Equal(t, run.ID, strong[0].RunID)

	si, err := st.QueryMeasurements(ctx, MeasurementFilter{Domain: model.DomainComposition, Limit: 1})
	require.NoError(t, err)
	require.Len(t, si, 1)
	require.NotNil(t, si[0].Measurement.Range)
	assert.InDelta(t, 0.25, si[0].Measurement.Range.Min, 1e-9)

	// categorical values have no numeric value and never match bounds
	oil, err := st.QueryMeasurements(ctx, MeasurementFilter{Field: "quenching_medium", Min: &low})
	require.NoError(t, err)
	assert.Empty(t, oil)
}
