package mutation

import (
	"context"
	"errors"
	"fmt"

	"stocksync/internal/mapping"
	"stocksync/internal/metrics"
	"stocksync/internal/services/shopify"
)

// enqueue publishes one job per task, BatchSize jobs per write. A record
// counts as successful once its job is accepted by the queue.
func (e *Executor) enqueue(ctx context.Context, res *Result, tasks []task) {
	size := e.opts.BatchSize
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))

		var jobs []Job
		var queued []task
		for _, t := range tasks[start:end] {
			job, err := NewJob(e.opts.RunID, e.opts.Tenant, res.Entity, t.op, t.sourceID, t.payload)
			if err != nil {
				record(res, t.op, t.sourceID, t.destinationID, err)
				continue
			}
			jobs = append(jobs, job)
			queued = append(queued, t)
		}
		if len(jobs) == 0 {
			continue
		}

		if err := e.queue.Enqueue(ctx, jobs...); err != nil {
			e.logger.Error("Failed to enqueue %d %s jobs: %v", len(jobs), res.Entity, err)
			for _, t := range queued {
				record(res, t.op, t.sourceID, t.destinationID, err)
			}
			continue
		}
		for i, t := range queued {
			b := res.bucket(t.op)
			b.Successful = append(b.Successful, Success{SourceID: t.sourceID, DestinationID: t.destinationID, JobID: jobs[i].ID})
			metrics.Mutations.WithLabelValues(res.Entity, string(t.op), "queued").Inc()
		}
		e.logger.Debug("Enqueued %s jobs %d-%d of %d", res.Entity, start+1, end, len(tasks))
	}
}

// runBulk submits one bulk import whose line i carries vars[i], and maps the
// result lines back onto lines. When the whole operation fails every line
// fails with that error.
func (e *Executor) runBulk(ctx context.Context, entity string, mutation shopify.BulkMutation, lines []task, vars []map[string]interface{}) []taskResult {
	out := make([]taskResult, len(lines))
	if len(lines) == 0 {
		return out
	}

	e.logger.Info("Submitting bulk import of %d %s records", len(lines), entity)
	results, err := e.bulk.RunBulkMutation(ctx, mutation, vars, e.opts.Bulk)
	if err != nil {
		metrics.BulkOperations.WithLabelValues(bulkOutcome(err)).Inc()
		e.logger.Error("Bulk import of %s failed: %v", entity, err)
		for i, t := range lines {
			out[i] = taskResult{task: t, err: err}
		}
		return out
	}
	metrics.BulkOperations.WithLabelValues("completed").Inc()

	byLine := make(map[int]shopify.BulkResult, len(results))
	for _, r := range results {
		byLine[r.Line] = r
	}
	for i, t := range lines {
		r, ok := byLine[i]
		var lineErr error
		switch {
		case !ok:
			lineErr = fmt.Errorf("bulk import returned no result for line %d", i)
		case len(r.UserErrors) > 0:
			lineErr = r.UserErrors
		case r.Error != "":
			lineErr = errors.New(r.Error)
		}
		out[i] = taskResult{task: t, id: r.ID, err: lineErr}
	}
	return out
}

func bulkOutcome(err error) string {
	switch {
	case errors.Is(err, shopify.ErrBulkTimeout):
		return "timeout"
	case errors.Is(err, shopify.ErrBulkFailed):
		return "failed"
	}
	return "error"
}

func (e *Executor) bulkCustomers(ctx context.Context, res *Result, m *mapping.Result[mapping.CustomerRecord]) {
	tr := shopify.NewTransformer()
	for _, set := range []struct {
		op       Operation
		mutation shopify.BulkMutation
		records  []mapping.CustomerRecord
	}{
		{OpCreate, shopify.BulkCustomerCreate, m.ToCreate},
		{OpUpdate, shopify.BulkCustomerUpdate, m.ToUpdate},
	} {
		lines := make([]task, 0, len(set.records))
		vars := make([]map[string]interface{}, 0, len(set.records))
		for _, r := range set.records {
			if set.op == OpUpdate && r.DestinationID == "" {
				record(res, OpUpdate, r.SourceID, "", fmt.Errorf("%w: customer %s has no destination id", ErrInvalidRecord, r.SourceID))
				continue
			}
			if set.op == OpCreate {
				r.DestinationID = ""
			}
			lines = append(lines, task{op: set.op, sourceID: r.SourceID, destinationID: r.DestinationID})
			vars = append(vars, map[string]interface{}{"input": tr.CustomerInput(r)})
		}
		e.collect(res, e.runBulk(ctx, res.Entity, set.mutation, lines, vars))
	}
}

// bulkProducts writes creates and updates in one productSet import. Variant
// removal runs directly before the import and inventory and images directly
// after it, since productSet does not carry them on update.
func (e *Executor) bulkProducts(ctx context.Context, res *Result, m *mapping.ProductResult) {
	tr := shopify.NewTransformer()

	updates := make([]mapping.ProductRecord, 0, len(m.ToUpdate))
	var removals []task
	for _, r := range m.ToUpdate {
		if r.DestinationID == "" {
			record(res, OpUpdate, r.GroupKey, "", fmt.Errorf("%w: product %s has no destination id", ErrInvalidRecord, r.GroupKey))
			continue
		}
		if len(r.VariantsToRemove) > 0 {
			removals = append(removals, task{op: OpUpdate, sourceID: r.GroupKey, destinationID: r.DestinationID, run: func(ctx context.Context) (string, error) {
				return r.DestinationID, e.writer.DeleteVariants(ctx, r.DestinationID, r.VariantsToRemove)
			}})
		}
		updates = append(updates, r)
	}
	failedRemoval := map[string]bool{}
	for _, rr := range e.runBatches(ctx, res.Entity, removals) {
		if rr.err != nil {
			failedRemoval[rr.destinationID] = true
			record(res, OpUpdate, rr.sourceID, rr.destinationID, fmt.Errorf("failed to remove variants: %w", rr.err))
		}
	}

	var lines []task
	var vars []map[string]interface{}
	byDestination := map[string]mapping.ProductRecord{}
	for _, r := range m.ToCreate {
		r.DestinationID = ""
		lines = append(lines, task{op: OpCreate, sourceID: r.GroupKey})
		vars = append(vars, map[string]interface{}{"input": tr.ProductSetInput(r)})
	}
	for _, r := range updates {
		if failedRemoval[r.DestinationID] {
			continue
		}
		byDestination[r.DestinationID] = r
		lines = append(lines, task{op: OpUpdate, sourceID: r.GroupKey, destinationID: r.DestinationID})
		vars = append(vars, map[string]interface{}{"input": tr.ProductSetInput(r)})
	}

	var followUps []task
	for _, lr := range e.runBulk(ctx, res.Entity, shopify.BulkProductSet, lines, vars) {
		if lr.op == OpCreate || lr.err != nil {
			e.collect(res, []taskResult{lr})
			continue
		}
		r := byDestination[lr.destinationID]
		id := lr.id
		if id == "" {
			id = r.DestinationID
		}
		followUps = append(followUps, task{op: OpUpdate, sourceID: r.GroupKey, destinationID: id, run: func(ctx context.Context) (string, error) {
			return id, finishProductUpdate(ctx, e.writer, id, r, nil)
		}})
	}
	e.collect(res, e.runBatches(ctx, res.Entity, followUps))

	archives := make([]task, 0, len(m.ToArchive))
	archiveVars := make([]map[string]interface{}, 0, len(m.ToArchive))
	for _, a := range m.ToArchive {
		archives = append(archives, task{op: OpArchive, sourceID: a.DestinationID, destinationID: a.DestinationID})
		archiveVars = append(archiveVars, map[string]interface{}{"product": tr.ArchiveInput(a.DestinationID)})
	}
	e.collect(res, e.runBulk(ctx, res.Entity, shopify.BulkProductUpdate, archives, archiveVars))
}
