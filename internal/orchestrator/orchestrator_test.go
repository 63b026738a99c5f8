package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync/internal/credentials"
	"stocksync/internal/lock"
	"stocksync/internal/logger"
	"stocksync/internal/mapping"
	"stocksync/internal/models"
	"stocksync/internal/mutation"
	"stocksync/internal/services/shopify"
)

func qty(v float64) *float64 { return &v }

type fakeSource struct {
	ds  *models.SourceDataset
	err error
	got []string
}

func (f *fakeSource) FetchSource(_ context.Context, entities []string) (*models.SourceDataset, error) {
	f.got = entities
	return f.ds, f.err
}

type fakeDestination struct {
	ds  *models.DestinationDataset
	err error
}

func (f *fakeDestination) FetchDestination(context.Context, []string) (*models.DestinationDataset, error) {
	return f.ds, f.err
}

type fakeWriter struct {
	mu       sync.Mutex
	calls    []string
	products []mapping.ProductRecord
	failCode string
}

func (w *fakeWriter) log(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, s)
}

func (w *fakeWriter) CreateLocation(_ context.Context, r mapping.LocationRecord) (string, error) {
	w.log("createLocation:" + r.WarehouseCode)
	return "gid://shopify/Location/9", nil
}

func (w *fakeWriter) UpdateLocation(_ context.Context, r mapping.LocationRecord) (string, error) {
	w.log("updateLocation:" + r.WarehouseCode)
	return r.DestinationID, nil
}

func (w *fakeWriter) SaveCustomer(_ context.Context, r mapping.CustomerRecord) (string, error) {
	w.log("saveCustomer:" + r.CustomerCode)
	if r.CustomerCode == w.failCode {
		return "", shopify.UserErrors{{Field: []string{"email"}, Message: "Email has already been taken"}}
	}
	return "gid://shopify/Customer/" + r.CustomerCode, nil
}

func (w *fakeWriter) SetProduct(_ context.Context, r mapping.ProductRecord) (*shopify.ProductSetResult, error) {
	w.log("setProduct:" + r.Title)
	w.mu.Lock()
	w.products = append(w.products, r)
	w.mu.Unlock()
	res := &shopify.ProductSetResult{ProductID: "gid://shopify/Product/1", VariantIDs: map[string]string{}, InventoryItemIDs: map[string]string{}}
	for _, v := range r.Variants {
		res.VariantIDs[v.SKU] = "variant-" + v.SKU
		res.InventoryItemIDs[v.SKU] = "item-" + v.SKU
	}
	return res, nil
}

func (w *fakeWriter) DeleteVariants(_ context.Context, productID string, _ []string) error {
	w.log("deleteVariants:" + productID)
	return nil
}

func (w *fakeWriter) DeleteMetafields(context.Context, []mapping.MetafieldRef) error {
	return nil
}

func (w *fakeWriter) SetInventory(_ context.Context, q []shopify.InventorySet) error {
	w.log("setInventory")
	return nil
}

func (w *fakeWriter) AddImages(_ context.Context, productID string, _ []mapping.ImageRecord) error {
	w.log("addImages:" + productID)
	return nil
}

func (w *fakeWriter) ArchiveProduct(_ context.Context, productID string) error {
	w.log("archive:" + productID)
	return nil
}

func (w *fakeWriter) has(prefix string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

type fakeCredentials struct {
	err    error
	synced []string
}

func (f *fakeCredentials) Lookup(_ context.Context, tenant string) (credentials.Bundle, error) {
	if f.err != nil {
		return credentials.Bundle{}, f.err
	}
	return credentials.Bundle{Tenant: tenant, ShopDomain: "acme.myshopify.com", AccessToken: "token"}, nil
}

func (f *fakeCredentials) MarkSynced(_ context.Context, tenant string, _ time.Time) error {
	f.synced = append(f.synced, tenant)
	return nil
}

type fakeRecorder struct {
	started  int
	finished *Report
}

func (f *fakeRecorder) Start(context.Context, *models.SyncRun) error {
	f.started++
	return nil
}

func (f *fakeRecorder) Finish(_ context.Context, _ *models.SyncRun, report *Report) error {
	f.finished = report
	return nil
}

type fixture struct {
	source      *fakeSource
	destination *fakeDestination
	writer      *fakeWriter
	bulk        mutation.BulkRunner
	creds       *fakeCredentials
	recorder    *fakeRecorder
	orch        *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		source: &fakeSource{ds: &models.SourceDataset{
			Warehouses: []models.SourceWarehouse{{Code: "WH1", Name: "Main", IsDefault: true, Address: models.SourceAddress{Country: "Australia"}}},
			Customers:  []models.SourceCustomer{{Code: "C001", Name: "Jane Smith", Email: "jane@example.com"}},
			Products: []models.SourceProduct{{
				Code:        "SKU-1",
				Description: "Shirt",
				BrandName:   "Acme",
				Price:       19.9,
				IsSellable:  true,
				Stock:       []models.SourceStock{{WarehouseCode: "WH1", AvailableQty: qty(5)}},
			}},
		}},
		destination: &fakeDestination{ds: &models.DestinationDataset{
			Locations: []models.DestinationLocation{{
				ID:         "gid://shopify/Location/1",
				Name:       "Main",
				IsActive:   true,
				Metafields: []models.Metafield{{Namespace: models.MetafieldNamespace, Key: models.MetafieldWarehouseCode, Value: "WH1"}},
			}},
		}},
		writer:   &fakeWriter{},
		creds:    &fakeCredentials{},
		recorder: &fakeRecorder{},
	}
	factory := func(credentials.Bundle) (*Clients, error) {
		return &Clients{Source: f.source, Destination: f.destination, Writer: f.writer, Bulk: f.bulk}, nil
	}
	f.orch = New(f.creds, factory, Options{Mutation: mutation.Options{Strategy: mutation.StrategyDirect}}, logger.Nop()).
		WithRecorder(f.recorder)
	return f
}

// fakeBulk answers every line of a bulk import and tracks how many imports
// overlap.
type fakeBulk struct {
	mu        sync.Mutex
	inFlight  int
	peak      int
	mutations []shopify.BulkMutation
}

func (b *fakeBulk) RunBulkMutation(_ context.Context, m shopify.BulkMutation, vars []map[string]interface{}, _ shopify.BulkOptions) ([]shopify.BulkResult, error) {
	b.mu.Lock()
	b.inFlight++
	b.peak = max(b.peak, b.inFlight)
	b.mutations = append(b.mutations, m)
	b.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	out := make([]shopify.BulkResult, len(vars))
	for i := range vars {
		out[i] = shopify.BulkResult{Line: i, ID: fmt.Sprintf("gid://shopify/Bulk/%d", i)}
	}
	return out, nil
}

func stageStatus(t *testing.T, r *Report, name string) StageStatus {
	t.Helper()
	s, ok := r.Stage(name)
	require.True(t, ok, "stage %s missing", name)
	return s.Status
}

func TestRun_DryRunPlansWithoutWriting(t *testing.T) {
	f := newFixture()

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusCompleted, report.Status)
	assert.Len(t, report.Stages, 5)
	_, ok := report.Stage(StageMutate(models.EntityProducts))
	assert.False(t, ok)
	assert.Empty(t, f.writer.calls)

	require.Contains(t, report.Results, models.EntityCustomers)
	customers := report.Results[models.EntityCustomers]
	assert.Equal(t, 1, customers.Mapping.ToCreate)
	require.Len(t, customers.Planned, 1)
	assert.Equal(t, mutation.OpCreate, customers.Planned[0].Operation)
	assert.Nil(t, customers.Mutation)

	products := report.Results[models.EntityProducts]
	require.NotNil(t, products)
	assert.Equal(t, 1, products.Mapping.ToCreate)
	assert.NotEmpty(t, report.Decisions)

	assert.Equal(t, 1, f.recorder.started)
	assert.Same(t, report, f.recorder.finished)
	assert.Empty(t, f.creds.synced, "dry runs do not stamp connectors")
}

func TestRun_AppliesMutations(t *testing.T) {
	f := newFixture()

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme"})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusCompleted, report.Status)
	assert.Equal(t, StageSucceeded, stageStatus(t, report, StageMutate(models.EntityLocations)))
	assert.Equal(t, StageSucceeded, stageStatus(t, report, StageMutate(models.EntityProducts)))
	assert.Equal(t, mutation.StrategyDirect, report.Strategy)

	assert.True(t, f.writer.has("saveCustomer:C001"))
	assert.True(t, f.writer.has("setProduct:Shirt"))
	assert.True(t, f.writer.has("updateLocation:WH1"))

	customers := report.Results[models.EntityCustomers]
	require.NotNil(t, customers.Mutation)
	assert.Equal(t, 1, customers.Mutation.Summary.Created)
	assert.Equal(t, []string{"acme"}, f.creds.synced)
	assert.NotEmpty(t, report.RunID)
}

func TestRun_RecordFailureIsPartial(t *testing.T) {
	f := newFixture()
	f.writer.failCode = "C001"

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme", Entities: []string{models.EntityCustomers}})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusPartial, report.Status)
	res := report.Results[models.EntityCustomers].Mutation
	require.NotNil(t, res)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, mutation.KindValidation, res.Failures()[0].Kind)
	assert.Equal(t, "email", res.Failures()[0].Field)
}

func TestRun_FetchFailureFailsRun(t *testing.T) {
	f := newFixture()
	f.destination.err = errors.New("shopify unavailable")

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme"})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusFailed, report.Status)
	assert.Equal(t, StageFailed, stageStatus(t, report, StageFetchDestination))
	assert.Equal(t, StageSucceeded, stageStatus(t, report, StageFetchSource))
	assert.Equal(t, StageSkipped, stageStatus(t, report, StageMap(models.EntityCustomers)))
	assert.Equal(t, StageSkipped, stageStatus(t, report, StageMutate(models.EntityProducts)))
	assert.Empty(t, f.writer.calls)
	assert.Empty(t, f.creds.synced)
}

func TestRun_ProductsPullInLocations(t *testing.T) {
	f := newFixture()

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme", Entities: []string{models.EntityProducts}, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []string{models.EntityLocations, models.EntityProducts}, report.Entities)
	assert.Equal(t, []string{models.EntityLocations, models.EntityProducts}, f.source.got)
	_, ok := report.Stage(StageMap(models.EntityCustomers))
	assert.False(t, ok)
}

func TestRun_SetupErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.Run(ctx, Request{})
	var setup *SetupError
	require.ErrorAs(t, err, &setup)
	assert.Equal(t, "request", setup.Op)

	_, err = f.orch.Run(ctx, Request{Tenant: "acme", Entities: []string{"orders"}})
	assert.ErrorContains(t, err, `unknown entity "orders"`)

	_, err = f.orch.Run(ctx, Request{Tenant: "acme", Strategy: "fastest"})
	assert.ErrorContains(t, err, "unknown strategy")

	f.creds.err = credentials.ErrNotFound
	_, err = f.orch.Run(ctx, Request{Tenant: "acme"})
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	assert.Zero(t, f.recorder.started)
}

func TestRun_TenantLocked(t *testing.T) {
	f := newFixture()
	locker := lock.NewLocalLocker()
	f.orch.WithLocker(locker)

	release, err := locker.Acquire(context.Background(), "acme", time.Minute)
	require.NoError(t, err)

	_, err = f.orch.Run(context.Background(), Request{Tenant: "acme"})
	assert.ErrorIs(t, err, lock.ErrLocked)

	release()
	_, err = f.orch.Run(context.Background(), Request{Tenant: "acme", DryRun: true})
	assert.NoError(t, err)
}

func TestRun_ClientFactoryError(t *testing.T) {
	f := newFixture()
	orch := New(f.creds, func(credentials.Bundle) (*Clients, error) {
		return nil, errors.New("bad shop domain")
	}, Options{}, logger.Nop())

	_, err := orch.Run(context.Background(), Request{Tenant: "acme"})
	var setup *SetupError
	require.ErrorAs(t, err, &setup)
	assert.Equal(t, "clients", setup.Op)
}

func TestResolveEntities(t *testing.T) {
	all, err := ResolveEntities(nil)
	require.NoError(t, err)
	assert.Equal(t, models.AllEntities, all)

	got, err := ResolveEntities([]string{models.EntityCustomers, models.EntityLocations})
	require.NoError(t, err)
	assert.Equal(t, []string{models.EntityLocations, models.EntityCustomers}, got)
}

func TestRun_FirstRunStocksNewLocations(t *testing.T) {
	f := newFixture()
	f.destination.ds.Locations = nil

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme"})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusCompleted, report.Status)
	assert.True(t, f.writer.has("createLocation:WH1"))
	require.Len(t, f.writer.products, 1)
	require.Len(t, f.writer.products[0].Variants, 1)
	assert.Equal(t, []mapping.InventoryQuantity{{LocationID: "gid://shopify/Location/9", Available: 5}},
		f.writer.products[0].Variants[0].Inventory)

	mutated, ok := report.Stage(StageMutate(models.EntityLocations))
	require.True(t, ok)
	mapped, ok := report.Stage(StageMap(models.EntityProducts))
	require.True(t, ok)
	assert.False(t, mapped.StartedAt.Before(mutated.StartedAt))
}

func TestRun_BulkImportsDoNotOverlap(t *testing.T) {
	f := newFixture()
	bulk := &fakeBulk{}
	f.bulk = bulk

	report, err := f.orch.Run(context.Background(), Request{Tenant: "acme", Strategy: mutation.StrategyBulk})
	require.NoError(t, err)

	assert.Equal(t, models.SyncRunStatusCompleted, report.Status)
	assert.ElementsMatch(t, []shopify.BulkMutation{shopify.BulkCustomerCreate, shopify.BulkProductSet}, bulk.mutations)
	assert.Equal(t, 1, bulk.peak)
}
