package orchestrator

import (
	"time"

	"stocksync/internal/mapping"
	"stocksync/internal/models"
	"stocksync/internal/mutation"
)

// PlannedChange is one create, update or archive the matcher decided on.
type PlannedChange struct {
	SourceID      string             `json:"sourceId"`
	DestinationID string             `json:"destinationId,omitempty"`
	Operation     mutation.Operation `json:"operation"`
	Changes       []string           `json:"changes,omitempty"`
}

// EntityReport is the mapping and mutation outcome for one entity type.
// Mutation is nil for dry runs and for entities whose mutation stage did not
// run.
type EntityReport struct {
	Mapping  *mapping.Summary    `json:"mapping,omitempty"`
	Planned  []PlannedChange     `json:"planned,omitempty"`
	Skipped  []mapping.Skipped   `json:"skipped,omitempty"`
	Errors   []mapping.ItemError `json:"errors,omitempty"`
	Mutation *mutation.Result    `json:"mutation,omitempty"`
}

func (e *EntityReport) failures() int {
	n := len(e.Errors)
	if e.Mutation != nil {
		n += e.Mutation.Summary.Failed
	}
	return n
}

type Report struct {
	RunID      string                   `json:"runId"`
	Tenant     string                   `json:"tenant"`
	Status     models.SyncRunStatus     `json:"status"`
	DryRun     bool                     `json:"dryRun"`
	Strategy   mutation.Strategy        `json:"strategy"`
	Entities   []string                 `json:"entities"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
	DurationMs int64                    `json:"durationMs"`
	Stages     []StageReport            `json:"stages"`
	Results    map[string]*EntityReport `json:"results"`

	Decisions                []mapping.Decision `json:"decisions,omitempty"`
	DuplicateDestinationSKUs []string           `json:"duplicateDestinationSkus,omitempty"`
	MergedSourceCodes        []string           `json:"mergedSourceCodes,omitempty"`
}

func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// status is FAILED when no mapping stage succeeded, PARTIAL when any stage or
// record failed, COMPLETED otherwise.
func (r *Report) status() models.SyncRunStatus {
	stageFailed := false
	mapped := false
	for _, s := range r.Stages {
		if s.Status != StageSucceeded {
			stageFailed = true
		} else if isMapStage(s.Name) {
			mapped = true
		}
	}
	if !mapped {
		return models.SyncRunStatusFailed
	}
	if stageFailed {
		return models.SyncRunStatusPartial
	}
	for _, e := range r.Results {
		if e.failures() > 0 {
			return models.SyncRunStatusPartial
		}
	}
	return models.SyncRunStatusCompleted
}

func planned[T any](res *mapping.Result[T], ref func(T) (string, string, []mapping.Change)) []PlannedChange {
	out := make([]PlannedChange, 0, len(res.ToCreate)+len(res.ToUpdate)+len(res.ToArchive))
	for _, r := range res.ToCreate {
		id, _, _ := ref(r)
		out = append(out, PlannedChange{SourceID: id, Operation: mutation.OpCreate})
	}
	for _, r := range res.ToUpdate {
		id, dest, changes := ref(r)
		out = append(out, PlannedChange{SourceID: id, DestinationID: dest, Operation: mutation.OpUpdate, Changes: mapping.Changes(changes)})
	}
	for _, a := range res.ToArchive {
		out = append(out, PlannedChange{SourceID: a.Title, DestinationID: a.DestinationID, Operation: mutation.OpArchive})
	}
	return out
}

func entityReport[T any](res *mapping.Result[T], ref func(T) (string, string, []mapping.Change)) *EntityReport {
	summary := res.Summary()
	return &EntityReport{
		Mapping: &summary,
		Planned: planned(res, ref),
		Skipped: res.Skipped,
		Errors:  res.Errors,
	}
}
