package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stocksync/internal/database"
	"stocksync/internal/mapping"
	"stocksync/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestGormRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewGormRecorder(testDB(t))

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := &models.SyncRun{
		ID:        "5b0f7c1e-8a43-4d8e-9d0a-3f5a1c2b7e10",
		Tenant:    "acme",
		Status:    models.SyncRunStatusRunning,
		Strategy:  "direct",
		Entities:  []string{models.EntityProducts},
		StartedAt: started,
	}
	require.NoError(t, rec.Start(ctx, run))

	report := &Report{
		RunID:      run.ID,
		Tenant:     "acme",
		Status:     models.SyncRunStatusPartial,
		FinishedAt: started.Add(90 * time.Second),
		DurationMs: 90000,
		Stages: []StageReport{
			{Name: StageFetchSource, Status: StageSucceeded},
			{Name: StageMutate(models.EntityProducts), Status: StageFailed, Error: "context canceled"},
		},
		Decisions: []mapping.Decision{
			{GroupKey: "Shirt", SourceSKUs: []string{"A", "B"}, RelatedProductIDs: []string{}, Decision: mapping.DecisionCreate, Reasoning: "no related product"},
			{GroupKey: "Hat", SourceSKUs: []string{"H"}, RelatedProductIDs: []string{"gid://shopify/Product/7"}, Decision: mapping.DecisionSkip, Reasoning: "identical_data"},
		},
	}
	require.NoError(t, rec.Finish(ctx, run, report))

	got, err := rec.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunStatusPartial, got.Status)
	assert.Equal(t, int64(90000), got.DurationMs)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "mutate_products: context canceled", got.Error)
	assert.Equal(t, []string{models.EntityProducts}, []string(got.Entities))

	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(got.Report), &decoded))
	assert.Equal(t, run.ID, decoded.RunID)
	assert.Len(t, decoded.Stages, 2)

	decisions, err := rec.Decisions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "Hat", decisions[0].GroupKey)
	assert.Equal(t, []string{"A", "B"}, []string(decisions[1].SourceSKUs))

	runs, err := rec.Runs(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].Report)

	runs, err = rec.Runs(ctx, "globex", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGormRecorder_RunNotFound(t *testing.T) {
	_, err := NewGormRecorder(testDB(t)).Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
