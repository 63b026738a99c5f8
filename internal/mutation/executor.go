package mutation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"stocksync/internal/logger"
	"stocksync/internal/mapping"
	"stocksync/internal/metrics"
	"stocksync/internal/models"
	"stocksync/internal/services/shopify"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 500 * time.Millisecond
)

// BulkRunner submits a staged bulk import. *shopify.Client implements it.
type BulkRunner interface {
	RunBulkMutation(ctx context.Context, mutation shopify.BulkMutation, variables []map[string]interface{}, opts shopify.BulkOptions) ([]shopify.BulkResult, error)
}

// Enqueuer publishes mutation jobs for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...Job) error
}

type Options struct {
	Strategy   Strategy
	BatchSize  int
	BatchDelay time.Duration
	// BulkThreshold is the record count from which the auto strategy
	// switches to a bulk import. 0 disables the switch.
	BulkThreshold int
	Bulk          shopify.BulkOptions

	// RunID and Tenant are stamped on queued jobs.
	RunID  string
	Tenant string
}

type Executor struct {
	writer Writer
	bulk   BulkRunner
	queue  Enqueuer
	opts   Options
	logger *logger.Logger
}

func NewExecutor(writer Writer, opts Options, logger *logger.Logger) *Executor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	return &Executor{writer: writer, opts: opts, logger: logger}
}

func (e *Executor) WithBulk(b BulkRunner) *Executor {
	e.bulk = b
	return e
}

func (e *Executor) WithQueue(q Enqueuer) *Executor {
	e.queue = q
	return e
}

// strategyFor picks the execution strategy for n records. Strategies whose
// collaborator is missing, or that the entity cannot use, fall back to direct.
func (e *Executor) strategyFor(entity string, n int, bulkable bool) Strategy {
	switch e.opts.Strategy {
	case StrategyQueue:
		if e.queue != nil {
			return StrategyQueue
		}
		e.logger.Warn("Queue strategy requested for %s but no queue is configured, running direct", entity)
	case StrategyBulk:
		if bulkable && e.bulk != nil {
			return StrategyBulk
		}
		e.logger.Debug("Bulk strategy not available for %s, running direct", entity)
	case StrategyAuto:
		if bulkable && e.bulk != nil && e.opts.BulkThreshold > 0 && n >= e.opts.BulkThreshold {
			return StrategyBulk
		}
	}
	return StrategyDirect
}

// task is one record's mutation inside a batch.
type task struct {
	op            Operation
	sourceID      string
	destinationID string
	// payload is the record a queued job carries.
	payload interface{}
	run     func(ctx context.Context) (string, error)
}

type taskResult struct {
	task
	id  string
	err error
}

// runBatches executes tasks BatchSize at a time, concurrently within a batch
// and with BatchDelay between batches. Once ctx is done the remaining tasks
// fail with the context error.
func (e *Executor) runBatches(ctx context.Context, entity string, tasks []task) []taskResult {
	out := make([]taskResult, len(tasks))
	size := e.opts.BatchSize

	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		if start > 0 && e.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.opts.BatchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			for i := start; i < len(tasks); i++ {
				out[i] = taskResult{task: tasks[i], err: err}
			}
			e.logger.Warn("Stopped %s mutations after %d of %d: %v", entity, start, len(tasks), err)
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				id, err := safeRun(ctx, tasks[i].run)
				out[i] = taskResult{task: tasks[i], id: id, err: err}
				return nil
			})
		}
		_ = g.Wait()
		e.logger.Debug("Processed %s batch %d-%d of %d", entity, start+1, end, len(tasks))
	}
	return out
}

func safeRun(ctx context.Context, fn func(ctx context.Context) (string, error)) (id string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during mutation: %v", rec)
		}
	}()
	return fn(ctx)
}

func record(res *Result, op Operation, sourceID, destinationID string, err error) {
	b := res.bucket(op)
	if err != nil {
		f := classify(sourceID, destinationID, err)
		b.Failed = append(b.Failed, f)
		metrics.Mutations.WithLabelValues(res.Entity, string(op), string(f.Kind)).Inc()
		return
	}
	b.Successful = append(b.Successful, Success{SourceID: sourceID, DestinationID: destinationID})
	metrics.Mutations.WithLabelValues(res.Entity, string(op), "success").Inc()
}

func (e *Executor) collect(res *Result, results []taskResult) {
	for _, r := range results {
		id := r.id
		if id == "" {
			id = r.destinationID
		}
		record(res, r.op, r.sourceID, id, r.err)
		if r.err != nil {
			e.logger.Warn("Failed to %s %s %s: %v", r.op, res.Entity, r.sourceID, r.err)
		}
	}
}

func (e *Executor) finish(res *Result, start time.Time) *Result {
	res.finish(start)
	e.logger.Info("%s mutations (%s): %d created, %d updated, %d archived, %d failed of %d in %s",
		res.Entity, res.Strategy, res.Summary.Created, res.Summary.Updated, res.Summary.Archived,
		res.Summary.Failed, res.Summary.Total, res.Summary.Duration)
	return res
}

func (e *Executor) ExecuteLocations(ctx context.Context, m *mapping.Result[mapping.LocationRecord]) *Result {
	start := time.Now()
	strategy := e.strategyFor(models.EntityLocations, len(m.ToCreate)+len(m.ToUpdate), false)
	res := newResult(models.EntityLocations, strategy)

	var tasks []task
	add := func(op Operation, r mapping.LocationRecord) {
		tasks = append(tasks, task{op: op, sourceID: r.WarehouseCode, destinationID: r.DestinationID, payload: r, run: func(ctx context.Context) (string, error) {
			return ApplyLocation(ctx, e.writer, op, r)
		}})
	}
	for _, r := range m.ToCreate {
		add(OpCreate, r)
	}
	for _, r := range m.ToUpdate {
		add(OpUpdate, r)
	}

	e.dispatch(ctx, res, tasks)
	return e.finish(res, start)
}

func (e *Executor) ExecuteCustomers(ctx context.Context, m *mapping.Result[mapping.CustomerRecord]) *Result {
	start := time.Now()
	strategy := e.strategyFor(models.EntityCustomers, len(m.ToCreate)+len(m.ToUpdate), true)
	res := newResult(models.EntityCustomers, strategy)

	switch strategy {
	case StrategyBulk:
		e.bulkCustomers(ctx, res, m)
	default:
		var tasks []task
		add := func(op Operation, r mapping.CustomerRecord) {
			tasks = append(tasks, task{op: op, sourceID: r.SourceID, destinationID: r.DestinationID, payload: r, run: func(ctx context.Context) (string, error) {
				return ApplyCustomer(ctx, e.writer, op, r)
			}})
		}
		for _, r := range m.ToCreate {
			add(OpCreate, r)
		}
		for _, r := range m.ToUpdate {
			add(OpUpdate, r)
		}
		e.dispatch(ctx, res, tasks)
	}
	return e.finish(res, start)
}

func (e *Executor) ExecuteProducts(ctx context.Context, m *mapping.ProductResult) *Result {
	start := time.Now()
	n := len(m.ToCreate) + len(m.ToUpdate) + len(m.ToArchive)
	strategy := e.strategyFor(models.EntityProducts, n, true)
	res := newResult(models.EntityProducts, strategy)

	switch strategy {
	case StrategyBulk:
		e.bulkProducts(ctx, res, m)
	default:
		var tasks []task
		add := func(op Operation, r mapping.ProductRecord) {
			tasks = append(tasks, task{op: op, sourceID: r.GroupKey, destinationID: r.DestinationID, payload: r, run: func(ctx context.Context) (string, error) {
				return ApplyProduct(ctx, e.writer, op, r)
			}})
		}
		for _, r := range m.ToCreate {
			add(OpCreate, r)
		}
		for _, r := range m.ToUpdate {
			add(OpUpdate, r)
		}
		for _, a := range m.ToArchive {
			tasks = append(tasks, task{op: OpArchive, sourceID: a.DestinationID, destinationID: a.DestinationID, payload: a, run: func(ctx context.Context) (string, error) {
				return ApplyArchive(ctx, e.writer, a)
			}})
		}
		e.dispatch(ctx, res, tasks)
	}
	return e.finish(res, start)
}

// dispatch runs tasks directly or hands them to the queue, depending on the
// strategy already chosen for res.
func (e *Executor) dispatch(ctx context.Context, res *Result, tasks []task) {
	if res.Strategy == StrategyQueue {
		e.enqueue(ctx, res, tasks)
		return
	}
	e.collect(res, e.runBatches(ctx, res.Entity, tasks))
}
