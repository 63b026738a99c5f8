// Package mutation applies mapping results to the commerce platform. The same
// create, update and archive sets can be executed directly in rate limited
// batches, fanned out as queued per-record jobs, or submitted as one staged
// bulk import. All three produce the same Result shape.
package mutation

import (
	"errors"
	"time"

	"stocksync/internal/services/shopify"
)

// ErrInvalidRecord marks a record the executor refused to send.
var ErrInvalidRecord = errors.New("invalid mutation record")

type Kind string

const (
	// KindValidation is a field-level rejection by the platform.
	KindValidation Kind = "validation"
	// KindTransport covers network, HTTP, GraphQL and timeout failures.
	KindTransport Kind = "transport"
)

type Strategy string

const (
	StrategyDirect Strategy = "direct"
	StrategyQueue  Strategy = "queue"
	StrategyBulk   Strategy = "bulk"
	StrategyAuto   Strategy = "auto"
)

type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpArchive Operation = "archive"
)

type Success struct {
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId,omitempty"`
	// JobID is set when the record was handed to the queue rather than
	// written.
	JobID string `json:"jobId,omitempty"`
}

type Failure struct {
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId,omitempty"`
	Kind          Kind   `json:"kind"`
	Field         string `json:"field,omitempty"`
	Message       string `json:"message"`
}

type Bucket struct {
	Successful []Success `json:"successful"`
	Failed     []Failure `json:"failed"`
}

func newBucket() Bucket {
	return Bucket{Successful: []Success{}, Failed: []Failure{}}
}

func (b Bucket) Total() int {
	return len(b.Successful) + len(b.Failed)
}

type Summary struct {
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Archived   int           `json:"archived"`
	Failed     int           `json:"failed"`
	Total      int           `json:"total"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
}

// Result is the outcome of executing one entity type's mapping result.
type Result struct {
	Entity   string   `json:"entity"`
	Strategy Strategy `json:"strategy"`
	Created  Bucket   `json:"created"`
	Updated  Bucket   `json:"updated"`
	Archived Bucket   `json:"archived"`
	Summary  Summary  `json:"summary"`
}

func newResult(entity string, strategy Strategy) *Result {
	return &Result{
		Entity:   entity,
		Strategy: strategy,
		Created:  newBucket(),
		Updated:  newBucket(),
		Archived: newBucket(),
	}
}

func (r *Result) bucket(op Operation) *Bucket {
	switch op {
	case OpCreate:
		return &r.Created
	case OpUpdate:
		return &r.Updated
	default:
		return &r.Archived
	}
}

func (r *Result) finish(start time.Time) {
	r.Summary = Summary{
		Created:  len(r.Created.Successful),
		Updated:  len(r.Updated.Successful),
		Archived: len(r.Archived.Successful),
		Failed:   len(r.Created.Failed) + len(r.Updated.Failed) + len(r.Archived.Failed),
		Total:    r.Created.Total() + r.Updated.Total() + r.Archived.Total(),
		Duration: time.Since(start),
	}
	r.Summary.DurationMs = r.Summary.Duration.Milliseconds()
}

// Failures lists every failed record across buckets.
func (r *Result) Failures() []Failure {
	out := make([]Failure, 0, r.Summary.Failed)
	out = append(out, r.Created.Failed...)
	out = append(out, r.Updated.Failed...)
	out = append(out, r.Archived.Failed...)
	return out
}

// classify turns a per-record error into a Failure.
func classify(sourceID, destinationID string, err error) Failure {
	f := Failure{SourceID: sourceID, DestinationID: destinationID, Kind: KindTransport, Message: err.Error()}
	var uerr shopify.UserErrors
	switch {
	case errors.As(err, &uerr):
		f.Kind = KindValidation
		f.Field = uerr.Field()
	case errors.Is(err, ErrInvalidRecord):
		f.Kind = KindValidation
	}
	return f
}
