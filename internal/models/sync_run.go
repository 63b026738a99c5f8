package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "RUNNING"
	SyncRunStatusCompleted SyncRunStatus = "COMPLETED"
	SyncRunStatusPartial   SyncRunStatus = "PARTIAL"
	SyncRunStatusFailed    SyncRunStatus = "FAILED"
)

// SyncRun is the audit row for one sync run. Report holds the JSON encoded
// run report once the run has finished.
type SyncRun struct {
	ID         string         `json:"id" gorm:"type:uuid;primaryKey"`
	Tenant     string         `json:"tenant" gorm:"not null;index"`
	Status     SyncRunStatus  `json:"status" gorm:"not null"`
	Strategy   string         `json:"strategy"`
	DryRun     bool           `json:"dry_run"`
	Entities   pq.StringArray `json:"entities" gorm:"type:text"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	DurationMs int64          `json:"duration_ms"`
	Report     string         `json:"report,omitempty" gorm:"type:text"`
	Error      string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// SyncDecision persists one entry of the product decision log.
type SyncDecision struct {
	ID                string         `json:"id" gorm:"type:uuid;primaryKey"`
	RunID             string         `json:"run_id" gorm:"type:uuid;not null;index"`
	GroupKey          string         `json:"group_key" gorm:"not null"`
	SourceSKUs        pq.StringArray `json:"source_skus" gorm:"type:text"`
	RelatedProductIDs pq.StringArray `json:"related_product_ids" gorm:"type:text"`
	Decision          string         `json:"decision" gorm:"not null"`
	Reasoning         string         `json:"reasoning" gorm:"type:text"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (d *SyncDecision) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
