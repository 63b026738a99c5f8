package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stocksync/internal/mapping"
	"stocksync/internal/models"
	"stocksync/internal/services/shopify"
)

type LocationWriter interface {
	CreateLocation(ctx context.Context, r mapping.LocationRecord) (string, error)
	UpdateLocation(ctx context.Context, r mapping.LocationRecord) (string, error)
}

type CustomerWriter interface {
	SaveCustomer(ctx context.Context, r mapping.CustomerRecord) (string, error)
}

type ProductWriter interface {
	SetProduct(ctx context.Context, r mapping.ProductRecord) (*shopify.ProductSetResult, error)
	DeleteVariants(ctx context.Context, productID string, variantIDs []string) error
	DeleteMetafields(ctx context.Context, refs []mapping.MetafieldRef) error
	SetInventory(ctx context.Context, quantities []shopify.InventorySet) error
	AddImages(ctx context.Context, productID string, images []mapping.ImageRecord) error
	ArchiveProduct(ctx context.Context, productID string) error
}

// Writer is the full per-record mutation API. *shopify.Client implements it.
type Writer interface {
	LocationWriter
	CustomerWriter
	ProductWriter
}

func ApplyLocation(ctx context.Context, w LocationWriter, op Operation, r mapping.LocationRecord) (string, error) {
	if op == OpUpdate {
		if r.DestinationID == "" {
			return "", fmt.Errorf("%w: location %s has no destination id", ErrInvalidRecord, r.WarehouseCode)
		}
		return w.UpdateLocation(ctx, r)
	}
	return w.CreateLocation(ctx, r)
}

func ApplyCustomer(ctx context.Context, w CustomerWriter, op Operation, r mapping.CustomerRecord) (string, error) {
	if op == OpUpdate && r.DestinationID == "" {
		return "", fmt.Errorf("%w: customer %s has no destination id", ErrInvalidRecord, r.SourceID)
	}
	if op == OpCreate {
		r.DestinationID = ""
	}
	return w.SaveCustomer(ctx, r)
}

// ApplyProduct writes one product. Updates remove extra variants first, then
// productSet, then inventory and new images; creates carry both in productSet.
func ApplyProduct(ctx context.Context, w ProductWriter, op Operation, r mapping.ProductRecord) (string, error) {
	if op == OpCreate {
		r.DestinationID = ""
		r.Variants = append([]mapping.VariantRecord(nil), r.Variants...)
		for i := range r.Variants {
			r.Variants[i].DestinationID = ""
			r.Variants[i].InventoryItemID = ""
		}
	} else if r.DestinationID == "" {
		return "", fmt.Errorf("%w: product %s has no destination id", ErrInvalidRecord, r.GroupKey)
	}

	if op == OpUpdate && len(r.VariantsToRemove) > 0 {
		if err := w.DeleteVariants(ctx, r.DestinationID, r.VariantsToRemove); err != nil {
			return r.DestinationID, fmt.Errorf("failed to remove variants: %w", err)
		}
	}

	res, err := w.SetProduct(ctx, r)
	if err != nil {
		return r.DestinationID, err
	}
	id := res.ProductID
	if id == "" {
		id = r.DestinationID
	}
	if op == OpCreate {
		return id, nil
	}
	return id, finishProductUpdate(ctx, w, id, r, res)
}

// finishProductUpdate removes stale metafields, sets inventory and attaches new
// images on a product that productSet has already written.
func finishProductUpdate(ctx context.Context, w ProductWriter, productID string, r mapping.ProductRecord, res *shopify.ProductSetResult) error {
	if err := w.DeleteMetafields(ctx, r.StaleMetafields); err != nil {
		return fmt.Errorf("failed to remove stale metafields: %w", err)
	}
	if err := w.SetInventory(ctx, inventorySets(r, res)); err != nil {
		return fmt.Errorf("failed to set inventory: %w", err)
	}
	if err := w.AddImages(ctx, productID, r.NewImages); err != nil {
		return fmt.Errorf("failed to add images: %w", err)
	}
	return nil
}

func ApplyArchive(ctx context.Context, w ProductWriter, a mapping.ArchiveRecord) (string, error) {
	if a.DestinationID == "" {
		return "", fmt.Errorf("%w: archive record has no destination id", ErrInvalidRecord)
	}
	return a.DestinationID, w.ArchiveProduct(ctx, a.DestinationID)
}

// inventorySets resolves each variant's inventory item from the productSet
// response, falling back to the id known before the write.
func inventorySets(r mapping.ProductRecord, res *shopify.ProductSetResult) []shopify.InventorySet {
	var out []shopify.InventorySet
	for _, v := range r.Variants {
		if !v.Tracked {
			continue
		}
		itemID := v.InventoryItemID
		if res != nil && res.InventoryItemIDs[v.SKU] != "" {
			itemID = res.InventoryItemIDs[v.SKU]
		}
		if itemID == "" {
			continue
		}
		for _, q := range v.Inventory {
			out = append(out, shopify.InventorySet{InventoryItemID: itemID, LocationID: q.LocationID, Quantity: q.Available})
		}
	}
	return out
}

// Job is one queued mutation. Payload holds the JSON encoded record.
type Job struct {
	ID        string          `json:"jobId" validate:"required"`
	RunID     string          `json:"runId"`
	Tenant    string          `json:"tenant" validate:"required"`
	Entity    string          `json:"entity" validate:"required,oneof=locations customers products"`
	Operation Operation       `json:"operation" validate:"required,oneof=create update archive"`
	SourceID  string          `json:"sourceId"`
	Attempt   int             `json:"attempt" validate:"gte=0"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	CreatedAt time.Time       `json:"createdAt"`
}

func NewJob(runID, tenant, entity string, op Operation, sourceID string, record interface{}) (Job, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return Job{}, fmt.Errorf("failed to encode %s payload: %w", entity, err)
	}
	return Job{
		ID:        uuid.New().String(),
		RunID:     runID,
		Tenant:    tenant,
		Entity:    entity,
		Operation: op,
		SourceID:  sourceID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Apply executes a queued job against w.
func Apply(ctx context.Context, w Writer, job Job) (string, error) {
	switch job.Entity {
	case models.EntityLocations:
		var r mapping.LocationRecord
		if err := json.Unmarshal(job.Payload, &r); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return ApplyLocation(ctx, w, job.Operation, r)
	case models.EntityCustomers:
		var r mapping.CustomerRecord
		if err := json.Unmarshal(job.Payload, &r); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return ApplyCustomer(ctx, w, job.Operation, r)
	case models.EntityProducts:
		if job.Operation == OpArchive {
			var a mapping.ArchiveRecord
			if err := json.Unmarshal(job.Payload, &a); err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			return ApplyArchive(ctx, w, a)
		}
		var r mapping.ProductRecord
		if err := json.Unmarshal(job.Payload, &r); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return ApplyProduct(ctx, w, job.Operation, r)
	}
	return "", fmt.Errorf("%w: unknown entity %q", ErrInvalidRecord, job.Entity)
}
