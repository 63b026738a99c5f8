// Package orchestrator runs a sync: fetch both datasets, map each entity type
// and apply the mutations, as a declared stage graph.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stocksync/internal/credentials"
	"stocksync/internal/lock"
	"stocksync/internal/logger"
	"stocksync/internal/mapping"
	"stocksync/internal/metrics"
	"stocksync/internal/models"
	"stocksync/internal/mutation"
	"stocksync/internal/normalize"
)

const (
	StageFetchSource      = "fetch_source"
	StageFetchDestination = "fetch_destination"
)

func StageMap(entity string) string    { return "map_" + entity }
func StageMutate(entity string) string { return "mutate_" + entity }

func isMapStage(name string) bool {
	for _, e := range models.AllEntities {
		if name == StageMap(e) {
			return true
		}
	}
	return false
}

// SetupError is a failure before any stage ran. No report is produced.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("sync setup failed (%s): %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

type SourceProvider interface {
	FetchSource(ctx context.Context, entities []string) (*models.SourceDataset, error)
}

type DestinationProvider interface {
	FetchDestination(ctx context.Context, entities []string) (*models.DestinationDataset, error)
}

// Clients are the platform clients of one tenant.
type Clients struct {
	Source      SourceProvider
	Destination DestinationProvider
	Writer      mutation.Writer
	Bulk        mutation.BulkRunner
}

type ClientFactory func(b credentials.Bundle) (*Clients, error)

type CredentialStore interface {
	Lookup(ctx context.Context, tenant string) (credentials.Bundle, error)
	MarkSynced(ctx context.Context, tenant string, at time.Time) error
}

type Recorder interface {
	Start(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, run *models.SyncRun, report *Report) error
}

type Options struct {
	Mutation mutation.Options
	LockTTL  time.Duration
	// MapProvinces turns on the province lookup for location addresses.
	MapProvinces bool
}

type Request struct {
	Tenant   string            `json:"tenant"`
	Entities []string          `json:"entities"`
	DryRun   bool              `json:"dryRun"`
	Strategy mutation.Strategy `json:"strategy"`
}

type Orchestrator struct {
	credentials CredentialStore
	clients     ClientFactory
	locker      lock.Locker
	recorder    Recorder
	queue       mutation.Enqueuer
	opts        Options
	logger      *logger.Logger
}

func New(store CredentialStore, clients ClientFactory, opts Options, logger *logger.Logger) *Orchestrator {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Orchestrator{
		credentials: store,
		clients:     clients,
		locker:      lock.NewLocalLocker(),
		opts:        opts,
		logger:      logger,
	}
}

func (o *Orchestrator) WithLocker(l lock.Locker) *Orchestrator {
	o.locker = l
	return o
}

func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

func (o *Orchestrator) WithQueue(q mutation.Enqueuer) *Orchestrator {
	o.queue = q
	return o
}

// ResolveEntities validates the requested entity types and adds the ones they
// depend on. Empty means all. Products always pull in locations.
func ResolveEntities(requested []string) ([]string, error) {
	for _, e := range requested {
		if !models.ValidEntity(e) {
			return nil, fmt.Errorf("unknown entity %q", e)
		}
	}
	want := models.EntitySet(requested)
	if want[models.EntityProducts] {
		want[models.EntityLocations] = true
	}
	var out []string
	for _, e := range models.AllEntities {
		if want[e] {
			out = append(out, e)
		}
	}
	return out, nil
}

func validStrategy(s mutation.Strategy) bool {
	switch s {
	case mutation.StrategyDirect, mutation.StrategyQueue, mutation.StrategyBulk, mutation.StrategyAuto:
		return true
	}
	return false
}

// Run executes one sync for req.Tenant. Only setup failures are returned as
// errors; stage and record failures are part of the report.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Tenant == "" {
		return nil, &SetupError{Op: "request", Err: errors.New("tenant is required")}
	}
	entities, err := ResolveEntities(req.Entities)
	if err != nil {
		return nil, &SetupError{Op: "request", Err: err}
	}
	if req.Strategy == "" {
		req.Strategy = o.opts.Mutation.Strategy
	}
	if req.Strategy == "" {
		req.Strategy = mutation.StrategyAuto
	}
	if !validStrategy(req.Strategy) {
		return nil, &SetupError{Op: "request", Err: fmt.Errorf("unknown strategy %q", req.Strategy)}
	}

	bundle, err := o.credentials.Lookup(ctx, req.Tenant)
	if err != nil {
		return nil, &SetupError{Op: "credentials", Err: err}
	}
	release, err := o.locker.Acquire(ctx, req.Tenant, o.opts.LockTTL)
	if err != nil {
		return nil, &SetupError{Op: "lock", Err: err}
	}
	defer release()

	clients, err := o.clients(bundle)
	if err != nil {
		return nil, &SetupError{Op: "clients", Err: err}
	}

	r := &run{
		o:        o,
		req:      req,
		bundle:   bundle,
		clients:  clients,
		entities: entities,
		id:       uuid.New().String(),
		logger:   o.logger.With("tenant", req.Tenant),
	}
	r.logger = r.logger.With("run_id", r.id)

	g, err := newGraph(r.stages())
	if err != nil {
		return nil, &SetupError{Op: "plan", Err: err}
	}

	report := &Report{
		RunID:     r.id,
		Tenant:    req.Tenant,
		Status:    models.SyncRunStatusRunning,
		DryRun:    req.DryRun,
		Strategy:  req.Strategy,
		Entities:  entities,
		StartedAt: time.Now().UTC(),
		Results:   map[string]*EntityReport{},
	}
	syncRun := &models.SyncRun{
		ID:        r.id,
		Tenant:    req.Tenant,
		Status:    models.SyncRunStatusRunning,
		Strategy:  string(req.Strategy),
		DryRun:    req.DryRun,
		Entities:  entities,
		StartedAt: report.StartedAt,
	}
	if o.recorder != nil {
		if err := o.recorder.Start(ctx, syncRun); err != nil {
			r.logger.Warn("Failed to record run start: %v", err)
		}
	}

	r.logger.Info("Sync started: entities=%v dry_run=%t strategy=%s waves=%v", entities, req.DryRun, req.Strategy, g.Waves())
	report.Stages = g.run(ctx, r.logger)
	r.fill(report)

	report.FinishedAt = time.Now().UTC()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	report.Status = report.status()
	metrics.SyncRuns.WithLabelValues(string(report.Status)).Inc()
	r.logger.Info("Sync finished with status %s in %dms", report.Status, report.DurationMs)

	// The run context may be gone by now; the audit row is written regardless.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if o.recorder != nil {
		if err := o.recorder.Finish(finishCtx, syncRun, report); err != nil {
			r.logger.Error("Failed to record run result: %v", err)
		}
	}
	if !req.DryRun && report.Status != models.SyncRunStatusFailed {
		if err := o.credentials.MarkSynced(finishCtx, req.Tenant, report.FinishedAt); err != nil {
			r.logger.Warn("Failed to stamp connectors: %v", err)
		}
	}
	return report, nil
}

// run holds the state of one sync. Each stage writes only its own fields;
// later stages read them after the wave barrier.
type run struct {
	o        *Orchestrator
	req      Request
	bundle   credentials.Bundle
	clients  *Clients
	entities []string
	id       string
	logger   *logger.Logger

	source      *models.SourceDataset
	destination *models.DestinationDataset

	locations *mapping.Result[mapping.LocationRecord]
	customers *mapping.Result[mapping.CustomerRecord]
	products  *mapping.ProductResult

	locMut  *mutation.Result
	custMut *mutation.Result
	prodMut *mutation.Result
}

// stages declares the run graph. Fetches run first and concurrently, mapping
// runs concurrently per entity, and customer and product mutations wait for
// location mutations. Outside a dry run product mapping also waits for them,
// so inventory resolves against locations created in this run. When the run
// may submit bulk imports, product mutations also wait for customer mutations:
// a shop runs one bulk operation at a time.
func (r *run) stages() []Stage {
	fetched := []string{StageFetchSource, StageFetchDestination}
	stages := []Stage{
		{Name: StageFetchSource, Run: r.fetchSource},
		{Name: StageFetchDestination, Run: r.fetchDestination},
	}

	for _, e := range r.entities {
		s := Stage{Name: StageMap(e), Requires: fetched, Run: r.mapStage(e)}
		if e == models.EntityProducts && !r.req.DryRun {
			s.After = []string{StageMutate(models.EntityLocations)}
		}
		stages = append(stages, s)
	}
	if r.req.DryRun {
		return stages
	}
	for _, e := range r.entities {
		s := Stage{Name: StageMutate(e), Requires: []string{StageMap(e)}, Run: r.mutateStage(e)}
		switch e {
		case models.EntityCustomers:
			s.After = []string{StageMutate(models.EntityLocations)}
		case models.EntityProducts:
			s.After = []string{StageMutate(models.EntityLocations)}
			if r.mayBulk() {
				s.After = append(s.After, StageMutate(models.EntityCustomers))
			}
		}
		stages = append(stages, s)
	}
	return stages
}

func (r *run) mayBulk() bool {
	if r.clients.Bulk == nil {
		return false
	}
	switch r.req.Strategy {
	case mutation.StrategyBulk:
		return true
	case mutation.StrategyAuto:
		return r.o.opts.Mutation.BulkThreshold > 0
	}
	return false
}

func (r *run) fetchSource(ctx context.Context) error {
	ds, err := r.clients.Source.FetchSource(ctx, r.entities)
	if err != nil {
		return fmt.Errorf("failed to fetch source data: %w", err)
	}
	r.source = ds
	return nil
}

func (r *run) fetchDestination(ctx context.Context) error {
	ds, err := r.clients.Destination.FetchDestination(ctx, r.entities)
	if err != nil {
		return fmt.Errorf("failed to fetch destination data: %w", err)
	}
	r.destination = ds
	return nil
}

func (r *run) mapStage(entity string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var summary mapping.Summary
		switch entity {
		case models.EntityLocations:
			m := mapping.NewLocationMatcher(r.logger)
			m.MapProvinces = r.o.opts.MapProvinces
			res, err := m.Match(r.source.Warehouses, r.destination.Locations)
			if err != nil {
				return err
			}
			r.locations, summary = res, res.Summary()
		case models.EntityCustomers:
			res, err := mapping.NewCustomerMatcher(r.logger).Match(r.source.Customers, r.destination.Customers)
			if err != nil {
				return err
			}
			r.customers, summary = res, res.Summary()
		case models.EntityProducts:
			m := mapping.NewProductMatcher(r.logger)
			m.DefaultWarehouse = normalize.DefaultWarehouseCode(r.source.Warehouses, r.bundle.DefaultWarehouse)
			res, err := m.Match(r.source.Products, r.destination.Products, r.stockLocations())
			if err != nil {
				return err
			}
			r.products, summary = res, res.Summary()
		default:
			return fmt.Errorf("unknown entity %q", entity)
		}
		recordMapping(entity, summary)
		r.logger.Info("Mapped %s: %d to create, %d to update, %d to archive, %d skipped, %d errors",
			entity, summary.ToCreate, summary.ToUpdate, summary.ToArchive, summary.Skipped, summary.Errors)
		return nil
	}
}

// stockLocations is the location set product inventory resolves against: the
// fetched locations plus every location mutate_locations wrote, keyed by the
// warehouse code it was written for.
func (r *run) stockLocations() []models.DestinationLocation {
	locations := append([]models.DestinationLocation(nil), r.destination.Locations...)
	if r.locMut == nil {
		return locations
	}

	at := make(map[string]int, len(locations))
	for i, l := range locations {
		at[l.ID] = i
	}
	for _, b := range []mutation.Bucket{r.locMut.Updated, r.locMut.Created} {
		for _, s := range b.Successful {
			if s.DestinationID == "" || s.SourceID == "" {
				continue
			}
			code := models.Metafield{Namespace: models.MetafieldNamespace, Key: models.MetafieldWarehouseCode, Value: s.SourceID}
			if i, ok := at[s.DestinationID]; ok {
				if locations[i].WarehouseCode() == "" {
					locations[i].Metafields = append(append([]models.Metafield(nil), locations[i].Metafields...), code)
				}
				continue
			}
			at[s.DestinationID] = len(locations)
			locations = append(locations, models.DestinationLocation{ID: s.DestinationID, IsActive: true, Metafields: []models.Metafield{code}})
		}
	}
	return locations
}

func recordMapping(entity string, s mapping.Summary) {
	for outcome, n := range map[string]int{
		"create": s.ToCreate, "update": s.ToUpdate, "archive": s.ToArchive, "skip": s.Skipped, "error": s.Errors,
	} {
		if n > 0 {
			metrics.MappingOutcomes.WithLabelValues(entity, outcome).Add(float64(n))
		}
	}
}

func (r *run) executor() *mutation.Executor {
	opts := r.o.opts.Mutation
	opts.Strategy = r.req.Strategy
	opts.RunID = r.id
	opts.Tenant = r.req.Tenant

	e := mutation.NewExecutor(r.clients.Writer, opts, r.logger)
	if r.clients.Bulk != nil {
		e.WithBulk(r.clients.Bulk)
	}
	if r.o.queue != nil {
		e.WithQueue(r.o.queue)
	}
	return e
}

func (r *run) mutateStage(entity string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		switch entity {
		case models.EntityLocations:
			r.locMut = r.executor().ExecuteLocations(ctx, r.locations)
		case models.EntityCustomers:
			r.custMut = r.executor().ExecuteCustomers(ctx, r.customers)
		case models.EntityProducts:
			r.prodMut = r.executor().ExecuteProducts(ctx, r.products)
		default:
			return fmt.Errorf("unknown entity %q", entity)
		}
		return nil
	}
}

// fill copies whatever the stages produced into the report, so partial
// results survive a failed stage.
func (r *run) fill(report *Report) {
	if r.locations != nil {
		report.Results[models.EntityLocations] = entityReport(r.locations, func(l mapping.LocationRecord) (string, string, []mapping.Change) {
			return l.WarehouseCode, l.DestinationID, l.Changes
		})
	}
	if r.customers != nil {
		report.Results[models.EntityCustomers] = entityReport(r.customers, func(c mapping.CustomerRecord) (string, string, []mapping.Change) {
			return c.SourceID, c.DestinationID, c.Changes
		})
	}
	if r.products != nil {
		report.Results[models.EntityProducts] = entityReport(&r.products.Result, func(p mapping.ProductRecord) (string, string, []mapping.Change) {
			return p.GroupKey, p.DestinationID, p.Changes
		})
		report.Decisions = r.products.Decisions
		report.DuplicateDestinationSKUs = r.products.DuplicateDestinationSKUs
		report.MergedSourceCodes = r.products.MergedSourceCodes
	}

	for entity, res := range map[string]*mutation.Result{
		models.EntityLocations: r.locMut,
		models.EntityCustomers: r.custMut,
		models.EntityProducts:  r.prodMut,
	} {
		if res == nil {
			continue
		}
		if report.Results[entity] == nil {
			report.Results[entity] = &EntityReport{}
		}
		report.Results[entity].Mutation = res
	}
}
