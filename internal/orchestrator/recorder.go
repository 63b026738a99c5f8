package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"stocksync/internal/models"
)

var ErrRunNotFound = errors.New("sync run not found")

// GormRecorder keeps the sync_runs audit trail and the product decision log.
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (g *GormRecorder) Start(ctx context.Context, run *models.SyncRun) error {
	if err := g.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Finish stores the final status and report, plus one row per decision.
func (g *GormRecorder) Finish(ctx context.Context, run *models.SyncRun, report *Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	finished := report.FinishedAt
	run.Status = report.Status
	run.FinishedAt = &finished
	run.DurationMs = report.DurationMs
	run.Report = string(body)
	for _, s := range report.Stages {
		if s.Status == StageFailed {
			run.Error = fmt.Sprintf("%s: %s", s.Name, s.Error)
			break
		}
	}

	decisions := make([]models.SyncDecision, 0, len(report.Decisions))
	for _, d := range report.Decisions {
		decisions = append(decisions, models.SyncDecision{
			RunID:             run.ID,
			GroupKey:          d.GroupKey,
			SourceSKUs:        d.SourceSKUs,
			RelatedProductIDs: d.RelatedProductIDs,
			Decision:          d.Decision,
			Reasoning:         d.Reasoning,
		})
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(run).Error; err != nil {
			return fmt.Errorf("failed to update sync run: %w", err)
		}
		if len(decisions) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(decisions, 100).Error; err != nil {
			return fmt.Errorf("failed to store decisions: %w", err)
		}
		return nil
	})
}

// Runs lists a tenant's most recent runs without their report bodies.
func (g *GormRecorder) Runs(ctx context.Context, tenant string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	err := g.db.WithContext(ctx).
		Omit("report").
		Where("tenant = ?", tenant).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

func (g *GormRecorder) Run(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := g.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load sync run: %w", err)
	}
	return &run, nil
}

func (g *GormRecorder) Decisions(ctx context.Context, runID string) ([]models.SyncDecision, error) {
	var decisions []models.SyncDecision
	if err := g.db.WithContext(ctx).Where("run_id = ?", runID).Order("group_key").Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to load decisions: %w", err)
	}
	return decisions, nil
}
