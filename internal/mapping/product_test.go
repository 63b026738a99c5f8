package mapping

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync/internal/logger"
	"stocksync/internal/models"
)

func qty(v float64) *float64 { return &v }

var testLocations = []models.DestinationLocation{
	{ID: "gid://shopify/Location/1", Name: "Main", Metafields: warehouseCode("WH1")},
	{ID: "gid://shopify/Location/2", Name: "Overflow", Metafields: warehouseCode("WH2")},
}

func shirt(code, colour string, price float64) models.SourceProduct {
	return models.SourceProduct{
		Code:         code,
		Description:  "Shirt " + colour,
		GroupName:    "Apparel",
		SubGroupName: "Tops",
		BrandName:    "Acme",
		Price:        price,
		Weight:       0.25,
		IsSellable:   true,
		Attributes: []models.SourceAttribute{
			{Name: "Product Title", Value: "Shirt"},
			{Name: "Option 1 Value", Value: colour},
		},
		Stock:    []models.SourceStock{{WarehouseCode: "WH1", AvailableQty: qty(5)}},
		ImageURL: "https://cdn.example.com/img/" + code + ".jpg?v=1",
	}
}

func productFromRecord(r ProductRecord, id string) models.DestinationProduct {
	p := models.DestinationProduct{
		ID:          id,
		Title:       r.Title,
		Handle:      r.Handle,
		ProductType: r.ProductType,
		Vendor:      r.Vendor,
		Status:      r.Status,
		Tags:        r.Tags,
		Metafields:  r.Metafields,
	}
	for i, v := range r.Variants {
		dv := models.DestinationVariant{
			ID:         fmt.Sprintf("%s-v%d", id, i),
			SKU:        v.SKU,
			Title:      v.Title,
			Price:      v.Price,
			Weight:     v.Weight,
			WeightUnit: v.WeightUnit,
			Tracked:    v.Tracked,
			Metafields: v.Metafields,
		}
		for _, q := range v.Inventory {
			dv.InventoryLevels = append(dv.InventoryLevels, models.InventoryLevel{LocationID: q.LocationID, Available: q.Available})
		}
		p.Variants = append(p.Variants, dv)
	}
	for _, img := range r.Images {
		p.Images = append(p.Images, models.DestinationImage{URL: img.URL})
	}
	return p
}

func TestProductMatcher_GroupsSharedTitle(t *testing.T) {
	m := NewProductMatcher(logger.Nop())

	res, err := m.Match([]models.SourceProduct{shirt("A", "Red", 19.9), shirt("B", "Blue", 19.9)}, nil, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 1)
	p := res.ToCreate[0]
	assert.Equal(t, "Shirt", p.GroupKey)
	assert.Equal(t, "shirt", p.Handle)
	assert.Equal(t, "Apparel", p.ProductType)
	assert.Equal(t, "Acme", p.Vendor)
	assert.Equal(t, models.ProductStatusActive, p.Status)
	assert.Equal(t, []string{"Apparel", "Tops"}, p.Tags)
	assert.Equal(t, []string{"Title"}, p.OptionNames)

	require.Len(t, p.Variants, 2)
	assert.Equal(t, "Red", p.Variants[0].Title)
	assert.Equal(t, "Blue", p.Variants[1].Title)
	assert.Equal(t, []string{"Red"}, p.Variants[0].OptionValues)
	assert.Equal(t, "19.90", p.Variants[0].Price)
	assert.Equal(t, []InventoryQuantity{{LocationID: "gid://shopify/Location/1", Available: 5}}, p.Variants[0].Inventory)
	assert.Len(t, p.Images, 2)

	require.Len(t, res.Decisions, 1)
	assert.Equal(t, Decision{
		GroupKey:          "Shirt",
		SourceSKUs:        []string{"A", "B"},
		RelatedProductIDs: []string{},
		Decision:          DecisionCreate,
		Reasoning:         ReasonNoRelatedProduct,
	}, res.Decisions[0])
}

func TestProductMatcher_UngroupedNeverMerge(t *testing.T) {
	a := models.SourceProduct{Code: "A", Description: "Widget", IsSellable: true}
	b := models.SourceProduct{Code: "B", Description: "Widget", IsSellable: true}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{a, b}, nil, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 2)
	assert.Equal(t, "A", res.ToCreate[0].GroupKey)
	assert.Equal(t, "B", res.ToCreate[1].GroupKey)
	assert.Equal(t, "A", res.ToCreate[0].Variants[0].Title)
	assert.Empty(t, res.ToCreate[0].OptionNames)
}

func TestProductMatcher_DeduplicatesAndSumsStock(t *testing.T) {
	first := models.SourceProduct{Code: "A", Description: "Widget", IsSellable: true, Price: 3,
		Stock: []models.SourceStock{{WarehouseCode: "WH1", AvailableQty: qty(5)}}}
	dup := models.SourceProduct{Code: "A", Description: "Ignored", IsSellable: true, Price: 99,
		Stock: []models.SourceStock{
			{WarehouseCode: "WH1", QtyOnHand: qty(3)},
			{WarehouseCode: "WH2", QtyAvailable: qty(2.7)},
			{WarehouseCode: "UNKNOWN", QuantityAvailable: qty(4)},
		}}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{first, dup}, nil, testLocations)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, res.MergedSourceCodes)
	require.Len(t, res.ToCreate, 1)
	v := res.ToCreate[0].Variants[0]
	assert.Equal(t, "3.00", v.Price)
	assert.Equal(t, "Widget", res.ToCreate[0].Title)
	assert.Equal(t, []InventoryQuantity{
		{LocationID: "gid://shopify/Location/1", Available: 12},
		{LocationID: "gid://shopify/Location/2", Available: 2},
	}, v.Inventory)
}

func TestProductMatcher_UnmatchedStockGoesToDefaultWarehouse(t *testing.T) {
	p := models.SourceProduct{Code: "A", Description: "Widget", IsSellable: true, Price: 3,
		Stock: []models.SourceStock{{WarehouseCode: "UNKNOWN", AvailableQty: qty(4)}}}

	m := NewProductMatcher(logger.Nop())
	m.DefaultWarehouse = "WH2"
	res, err := m.Match([]models.SourceProduct{p}, nil, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 1)
	assert.Equal(t, []InventoryQuantity{{LocationID: "gid://shopify/Location/2", Available: 4}}, res.ToCreate[0].Variants[0].Inventory)
}

func TestProductMatcher_FiltersNotSellable(t *testing.T) {
	sources := []models.SourceProduct{
		{Code: "KIT", Description: "Kit part", IsSellable: true, IsComponent: true},
		{Code: "NFS", Description: "Internal", IsSellable: false},
	}

	res, err := NewProductMatcher(logger.Nop()).Match(sources, nil, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 1)
	assert.Equal(t, "KIT", res.ToCreate[0].GroupKey)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, Skipped{SourceID: "NFS", Reason: ReasonNotSellable}, res.Skipped[0])
	assert.Equal(t, 2, res.Processed)
}

func TestProductMatcher_Idempotent(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	sources := []models.SourceProduct{
		shirt("A", "Red", 19.9),
		shirt("B", "Blue", 19.9),
		{Code: "MUG", Description: "Coffee Mug", IsSellable: true, Price: 12.5, Weight: 0.4,
			PriceTiers: []models.SourcePriceTier{{Name: "Tier 1", Value: 11}, {Name: "Tier 2", Value: 0}},
			Images:     []models.SourceImage{{URL: "https://cdn.example.com/mug-side.png"}, {URL: "https://cdn.example.com/mug.png?w=100", IsDefault: true}}},
	}

	first, err := m.Match(sources, nil, testLocations)
	require.NoError(t, err)
	require.Len(t, first.ToCreate, 2)

	state := []models.DestinationProduct{
		productFromRecord(first.ToCreate[0], "gid://shopify/Product/1"),
		productFromRecord(first.ToCreate[1], "gid://shopify/Product/2"),
	}

	second, err := m.Match(sources, state, testLocations)
	require.NoError(t, err)
	assert.Empty(t, second.ToCreate)
	assert.Empty(t, second.ToUpdate)
	assert.Empty(t, second.ToArchive)
	require.Len(t, second.Skipped, 2)
	for _, s := range second.Skipped {
		assert.Equal(t, ReasonIdenticalData, s.Reason)
	}
}

func TestProductMatcher_SinglePriceChange(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	first, err := m.Match([]models.SourceProduct{shirt("A", "Red", 19.9), shirt("B", "Blue", 19.9)}, nil, testLocations)
	require.NoError(t, err)
	state := []models.DestinationProduct{productFromRecord(first.ToCreate[0], "P1")}

	res, err := m.Match([]models.SourceProduct{shirt("A", "Red", 24.5), shirt("B", "Blue", 19.9)}, state, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToUpdate, 1)
	upd := res.ToUpdate[0]
	assert.Equal(t, "P1", upd.DestinationID)
	assert.Equal(t, []Change{{Field: "price", SKU: "A", From: "19.90", To: "24.50"}}, upd.Changes)
	assert.Equal(t, "P1-v0", upd.Variants[0].DestinationID)
}

func TestProductMatcher_PriceFormattingIsNotAChange(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	sources := []models.SourceProduct{{Code: "A", Description: "Widget", IsSellable: true, Price: 5, Weight: 1}}
	first, err := m.Match(sources, nil, nil)
	require.NoError(t, err)

	p := productFromRecord(first.ToCreate[0], "P1")
	p.Variants[0].Price = "5.0"
	p.Variants[0].Weight = 1000.004
	p.Variants[0].WeightUnit = "GRAMS"

	res, err := m.Match(sources, []models.DestinationProduct{p}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.ToUpdate)
	assert.Len(t, res.Skipped, 1)
}

func TestProductMatcher_DroppedSKUIsRemoved(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	first, err := m.Match([]models.SourceProduct{shirt("A", "Red", 19.9), shirt("B", "Blue", 19.9)}, nil, testLocations)
	require.NoError(t, err)
	state := []models.DestinationProduct{productFromRecord(first.ToCreate[0], "P1")}

	res, err := m.Match([]models.SourceProduct{shirt("A", "Red", 19.9)}, state, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToUpdate, 1)
	upd := res.ToUpdate[0]
	assert.Equal(t, []string{"P1-v1"}, upd.VariantsToRemove)
	assert.Equal(t, []string{"B"}, upd.RemovedSKUs)
	for _, c := range upd.Changes {
		assert.NotEqual(t, "A", c.SKU, "variant A must not change: %s", c)
	}
	assert.Empty(t, res.ToArchive)
	assert.Equal(t, DecisionUpdate, res.Decisions[0].Decision)
	assert.True(t, strings.HasPrefix(res.Decisions[0].Reasoning, ReasonExtraVariants))
}

func TestProductMatcher_PartialOverlapCreates(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	state := []models.DestinationProduct{{ID: "P1", Title: "Shirt", Status: models.ProductStatusActive,
		Variants: []models.DestinationVariant{{ID: "v-a", SKU: "A"}}}}

	res, err := m.Match([]models.SourceProduct{shirt("A", "Red", 10), shirt("B", "Blue", 10)}, state, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 1)
	assert.Empty(t, res.ToCreate[0].DestinationID)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, DecisionCreate, res.Decisions[0].Decision)
	assert.Equal(t, []string{"P1"}, res.Decisions[0].RelatedProductIDs)
	assert.True(t, strings.HasPrefix(res.Decisions[0].Reasoning, ReasonPartialOverlap))
}

func TestProductMatcher_AmbiguousGroupIsError(t *testing.T) {
	state := []models.DestinationProduct{
		{ID: "P1", Variants: []models.DestinationVariant{{ID: "v-a", SKU: "A"}}},
		{ID: "P2", Variants: []models.DestinationVariant{{ID: "v-b", SKU: "B"}}},
	}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{shirt("A", "Red", 10), shirt("B", "Blue", 10)}, state, testLocations)
	require.NoError(t, err)

	assert.Empty(t, res.ToCreate)
	assert.Empty(t, res.ToUpdate)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Shirt", res.Errors[0].SourceID)
	assert.Equal(t, []string{"P1", "P2"}, res.Decisions[0].RelatedProductIDs)
	assert.Equal(t, ReasonMultipleProducts, res.Decisions[0].Reasoning)
}

func TestProductMatcher_ExtraSKUFromOtherGroupIsError(t *testing.T) {
	state := []models.DestinationProduct{{ID: "P1", Variants: []models.DestinationVariant{
		{ID: "v-a", SKU: "A"},
		{ID: "v-b", SKU: "B"},
	}}}
	b := models.SourceProduct{Code: "B", Description: "Loose", IsSellable: true}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{shirt("A", "Red", 10), b}, state, testLocations)
	require.NoError(t, err)

	assert.Empty(t, res.ToUpdate)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Shirt", res.Errors[0].SourceID)
	assert.Equal(t, "B", res.Errors[1].SourceID)
}

func TestProductMatcher_Archive(t *testing.T) {
	state := []models.DestinationProduct{
		{ID: "keep", Status: models.ProductStatusActive, Variants: []models.DestinationVariant{{ID: "v1", SKU: "NFS"}}},
		{ID: "gone", Title: "Old", Status: models.ProductStatusActive, Variants: []models.DestinationVariant{{ID: "v2", SKU: "Z1"}, {ID: "v3", SKU: "Z2"}}},
		{ID: "already", Status: models.ProductStatusArchived, Variants: []models.DestinationVariant{{ID: "v4", SKU: "Y"}}},
	}
	sources := []models.SourceProduct{{Code: "NFS", Description: "Internal", IsSellable: false}}

	res, err := NewProductMatcher(logger.Nop()).Match(sources, state, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToArchive, 1)
	assert.Equal(t, ArchiveRecord{DestinationID: "gone", Title: "Old", SKUs: []string{"Z1", "Z2"}}, res.ToArchive[0])
	last := res.Decisions[len(res.Decisions)-1]
	assert.Equal(t, DecisionArchive, last.Decision)
	assert.Equal(t, "Old", last.GroupKey)
	assert.Equal(t, []string{"gone"}, last.RelatedProductIDs)
}

func TestProductMatcher_ReportsDuplicateDestinationSKUs(t *testing.T) {
	state := []models.DestinationProduct{
		{ID: "P1", Variants: []models.DestinationVariant{{ID: "v1", SKU: "DUP"}}},
		{ID: "P2", Variants: []models.DestinationVariant{{ID: "v2", SKU: "DUP"}}},
	}

	res, err := NewProductMatcher(logger.Nop()).Match(nil, state, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"DUP"}, res.DuplicateDestinationSKUs)
	assert.Len(t, res.ToArchive, 2)
}

func TestProductMatcher_BlankCodeIsError(t *testing.T) {
	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{
		{Guid: "g-1", Code: "  ", IsSellable: true},
		{Code: "A", Description: "Widget", IsSellable: true},
	}, nil, nil)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "g-1", res.Errors[0].SourceID)
	assert.Len(t, res.ToCreate, 1)
}

func TestProductMatcher_PriceTiersAndExplicitOptions(t *testing.T) {
	p := models.SourceProduct{
		Code:       "TEE-S-RED",
		IsSellable: true,
		Attributes: []models.SourceAttribute{
			{Name: "product title", Value: "Tee"},
			{Name: "Option Names", Value: "Size, Colour"},
			{Name: "Option 1 Value", Value: "S"},
			{Name: "Option 2 Value", Value: "Red"},
			{Name: "Option 3 Value", Value: "null"},
		},
		PriceTiers: []models.SourcePriceTier{{Value: 10}, {Value: 0}, {Value: 8.5}},
	}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{p}, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.ToCreate, 1)

	rec := res.ToCreate[0]
	assert.Equal(t, []string{"Size", "Colour"}, rec.OptionNames)
	v := rec.Variants[0]
	assert.Equal(t, "S / Red", v.Title)
	assert.Equal(t, []string{"S", "Red"}, v.OptionValues)
	assert.Empty(t, v.Inventory)

	ns := models.MetafieldNamespace
	assert.Equal(t, "TEE-S-RED", models.MetafieldValue(v.Metafields, ns, models.MetafieldProductCode))
	assert.Equal(t, "10.00", models.MetafieldValue(v.Metafields, ns, "sell_price_tier_1"))
	assert.Equal(t, "", models.MetafieldValue(v.Metafields, ns, "sell_price_tier_2"))
	assert.Equal(t, "8.50", models.MetafieldValue(v.Metafields, ns, "sell_price_tier_3"))
}

func TestProductMatcher_TitleGroupAndUngroupedCodeStaySeparate(t *testing.T) {
	loose := models.SourceProduct{Code: "Shirt", Description: "Loose shirt", IsSellable: true}

	res, err := NewProductMatcher(logger.Nop()).Match([]models.SourceProduct{shirt("A", "Red", 10), shirt("B", "Blue", 10), loose}, nil, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToCreate, 2)
	assert.Equal(t, []string{"A", "B"}, res.ToCreate[0].SKUs())
	assert.Equal(t, []string{"Shirt"}, res.ToCreate[1].SKUs())
	assert.Equal(t, "Shirt", res.ToCreate[0].GroupKey)
	assert.Equal(t, "Shirt", res.ToCreate[1].GroupKey)
	assert.Equal(t, "Loose shirt", res.ToCreate[1].Title)
}

func tierProduct(tiers ...float64) models.SourceProduct {
	p := models.SourceProduct{Code: "MUG", Description: "Coffee Mug", IsSellable: true, Price: 12.5, Weight: 0.4}
	for i, v := range tiers {
		p.PriceTiers = append(p.PriceTiers, models.SourcePriceTier{Name: fmt.Sprintf("Tier %d", i+1), Value: v})
	}
	return p
}

func TestProductMatcher_PriceTierChangeIsUpdate(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	first, err := m.Match([]models.SourceProduct{tierProduct(10, 8)}, nil, nil)
	require.NoError(t, err)
	state := []models.DestinationProduct{productFromRecord(first.ToCreate[0], "P1")}

	res, err := m.Match([]models.SourceProduct{tierProduct(10, 7)}, state, nil)
	require.NoError(t, err)

	require.Len(t, res.ToUpdate, 1)
	upd := res.ToUpdate[0]
	assert.Equal(t, []Change{{Field: "sell_price_tier_2", SKU: "MUG", From: "8.00", To: "7.00"}}, upd.Changes)
	assert.Empty(t, upd.StaleMetafields)
	assert.Empty(t, res.Skipped)
}

func TestProductMatcher_ZeroedPriceTierIsRemoved(t *testing.T) {
	m := NewProductMatcher(logger.Nop())
	first, err := m.Match([]models.SourceProduct{tierProduct(10, 8)}, nil, nil)
	require.NoError(t, err)
	state := []models.DestinationProduct{productFromRecord(first.ToCreate[0], "P1")}

	res, err := m.Match([]models.SourceProduct{tierProduct(10, 0)}, state, nil)
	require.NoError(t, err)

	require.Len(t, res.ToUpdate, 1)
	upd := res.ToUpdate[0]
	assert.Equal(t, []Change{{Field: "sell_price_tier_2", SKU: "MUG", From: "8.00", To: ""}}, upd.Changes)
	assert.Equal(t, []MetafieldRef{{OwnerID: "P1-v0", Namespace: models.MetafieldNamespace, Key: "sell_price_tier_2"}}, upd.StaleMetafields)

	// Once the metafield is gone the product is in sync again.
	state[0].Variants[0].Metafields = upd.Variants[0].Metafields
	again, err := m.Match([]models.SourceProduct{tierProduct(10, 0)}, state, nil)
	require.NoError(t, err)
	assert.Empty(t, again.ToUpdate)
	require.Len(t, again.Skipped, 1)
	assert.Equal(t, ReasonIdenticalData, again.Skipped[0].Reason)
}

func TestProductMatcher_ProductsWithoutSKUsAreNotArchived(t *testing.T) {
	state := []models.DestinationProduct{
		{ID: "manual", Title: "Gift card", Status: models.ProductStatusActive, Variants: []models.DestinationVariant{{ID: "v1", SKU: " "}}},
		{ID: "gone", Status: models.ProductStatusActive, Variants: []models.DestinationVariant{{ID: "v2", SKU: "Z1"}}},
	}

	res, err := NewProductMatcher(logger.Nop()).Match(nil, state, testLocations)
	require.NoError(t, err)

	require.Len(t, res.ToArchive, 1)
	assert.Equal(t, "gone", res.ToArchive[0].DestinationID)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, "gone", res.Decisions[0].GroupKey, "untitled products are logged by id")
}
