// Package mapping reconciles ERP records against the commerce platform and
// partitions them into create, update, archive and skip sets. Everything in
// here is a pure function of its two input datasets.
package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks a failure of the whole matcher, as opposed to a
// problem with one record.
var ErrInvalidInput = errors.New("invalid mapping input")

// Skip reasons.
const (
	ReasonIdenticalData = "identical_data"
	ReasonNotSellable   = "not_sellable"
)

// Change is one field-level difference between the desired record and the
// destination record.
type Change struct {
	Field string `json:"field"`
	SKU   string `json:"sku,omitempty"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (c Change) String() string {
	if c.SKU != "" {
		return fmt.Sprintf("variant %s %s: %q -> %q", c.SKU, c.Field, c.From, c.To)
	}
	return fmt.Sprintf("%s: %q -> %q", c.Field, c.From, c.To)
}

// Changes renders a change list as audit text.
func Changes(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}

type Skipped struct {
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId,omitempty"`
	Reason        string `json:"reason"`
}

type ItemError struct {
	SourceID string `json:"sourceId"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (e ItemError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.SourceID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.SourceID, e.Message)
}

// ArchiveRecord is a destination product none of whose SKUs exist in the ERP.
type ArchiveRecord struct {
	DestinationID string   `json:"destinationId"`
	Title         string   `json:"title"`
	SKUs          []string `json:"skus"`
}

// Result is the partition produced by a matcher. Every input record appears in
// exactly one of ToCreate, ToUpdate, Skipped or Errors.
type Result[T any] struct {
	ToCreate  []T             `json:"toCreate"`
	ToUpdate  []T             `json:"toUpdate"`
	ToArchive []ArchiveRecord `json:"toArchive"`
	Skipped   []Skipped       `json:"skipped"`
	Errors    []ItemError     `json:"errors"`
	Processed int             `json:"processed"`
}

// Summary is the count-only view of a Result.
type Summary struct {
	ToCreate  int `json:"toCreate"`
	ToUpdate  int `json:"toUpdate"`
	ToArchive int `json:"toArchive"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Processed int `json:"processed"`
}

func (r *Result[T]) Summary() Summary {
	return Summary{
		ToCreate:  len(r.ToCreate),
		ToUpdate:  len(r.ToUpdate),
		ToArchive: len(r.ToArchive),
		Skipped:   len(r.Skipped),
		Errors:    len(r.Errors),
		Processed: r.Processed,
	}
}

type outcomeKind int

const (
	outcomeCreate outcomeKind = iota
	outcomeUpdate
	outcomeSkip
	outcomeError
)

// outcome is the per-item result folded into a Result.
type outcome[T any] struct {
	kind    outcomeKind
	record  T
	skipped Skipped
	err     ItemError
}

func create[T any](record T) outcome[T] { return outcome[T]{kind: outcomeCreate, record: record} }
func update[T any](record T) outcome[T] { return outcome[T]{kind: outcomeUpdate, record: record} }

func skip[T any](sourceID, destinationID, reason string) outcome[T] {
	return outcome[T]{kind: outcomeSkip, skipped: Skipped{SourceID: sourceID, DestinationID: destinationID, Reason: reason}}
}

func fail[T any](sourceID, field, format string, args ...interface{}) outcome[T] {
	return outcome[T]{kind: outcomeError, err: ItemError{SourceID: sourceID, Field: field, Message: fmt.Sprintf(format, args...)}}
}

// fold applies fn to every item and partitions the outcomes. A panic while
// handling one item becomes that item's error.
func fold[S, T any](items []S, id func(S) string, fn func(S) outcome[T]) Result[T] {
	res := Result[T]{
		ToCreate:  []T{},
		ToUpdate:  []T{},
		ToArchive: []ArchiveRecord{},
		Skipped:   []Skipped{},
		Errors:    []ItemError{},
	}
	for _, item := range items {
		o := guard(id(item), func() outcome[T] { return fn(item) })
		res.add(o)
		res.Processed++
	}
	return res
}

func (r *Result[T]) add(o outcome[T]) {
	switch o.kind {
	case outcomeCreate:
		r.ToCreate = append(r.ToCreate, o.record)
	case outcomeUpdate:
		r.ToUpdate = append(r.ToUpdate, o.record)
	case outcomeSkip:
		r.Skipped = append(r.Skipped, o.skipped)
	case outcomeError:
		r.Errors = append(r.Errors, o.err)
	}
}

func guard[T any](sourceID string, fn func() outcome[T]) (o outcome[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			o = fail[T](sourceID, "", "unexpected error: %v", rec)
		}
	}()
	return fn()
}

// uniqueIDs rejects destination sets that carry the same identifier twice.
func uniqueIDs(kind string, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate %s id %s", ErrInvalidInput, kind, id)
		}
		seen[id] = true
	}
	return nil
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
