package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/normalize"
)

// Source attribute names that drive grouping.
const (
	AttrProductTitle = "Product Title"
	AttrOptionNames  = "Option Names"
	attrOptionValue  = "Option %d Value"
)

const (
	maxOptions      = 3
	maxPriceTiers   = 10
	weightTolerance = 0.01

	defaultProductType = "General"
	defaultVendor      = "Unbranded"
	weightUnitKg       = "KILOGRAMS"
)

// Product decisions.
const (
	DecisionCreate  = "create"
	DecisionUpdate  = "update"
	DecisionSkip    = "skip"
	DecisionError   = "error"
	DecisionArchive = "archive"
)

// Decision reasons beyond the shared skip reasons.
const (
	ReasonNoRelatedProduct = "no_related_product"
	ReasonPartialOverlap   = "partial_overlap_missing_skus"
	ReasonExtraVariants    = "extra_destination_variants"
	ReasonFieldsChanged    = "fields_changed"
	ReasonMultipleProducts = "multiple_related_products"
	ReasonSKUInOtherGroup  = "extra_sku_in_other_group"
	ReasonNoSourceSKUs     = "no_source_skus"
	ReasonBlankProductCode = "blank_product_code"
)

// titleOption is the single option used for multi-variant groups that name
// no options of their own.
const titleOption = "Title"

type InventoryQuantity struct {
	LocationID string `json:"locationId"`
	Available  int    `json:"available"`
}

type VariantRecord struct {
	SKU             string              `json:"sku"`
	DestinationID   string              `json:"destinationId,omitempty"`
	InventoryItemID string              `json:"inventoryItemId,omitempty"`
	Title           string              `json:"title"`
	Price           string              `json:"price"`
	Weight          float64             `json:"weight"`
	WeightUnit      string              `json:"weightUnit"`
	Tracked         bool                `json:"tracked"`
	OptionValues    []string            `json:"optionValues,omitempty"`
	Metafields      []models.Metafield  `json:"metafields"`
	Inventory       []InventoryQuantity `json:"inventory,omitempty"`
}

// ProductRecord is the desired state of one destination product built from a
// source group.
type ProductRecord struct {
	GroupKey        string             `json:"groupKey"`
	DestinationID   string             `json:"destinationId,omitempty"`
	Handle          string             `json:"handle"`
	Title           string             `json:"title"`
	DescriptionHTML string             `json:"descriptionHtml"`
	ProductType     string             `json:"productType"`
	Vendor          string             `json:"vendor"`
	Status          string             `json:"status"`
	Tags            []string           `json:"tags"`
	OptionNames     []string           `json:"optionNames,omitempty"`
	Variants        []VariantRecord    `json:"variants"`
	Images          []ImageRecord      `json:"images,omitempty"`
	Metafields      []models.Metafield `json:"metafields"`

	// NewImages is the subset of Images not yet on the destination product.
	NewImages        []ImageRecord `json:"newImages,omitempty"`
	VariantsToRemove []string      `json:"variantsToRemove,omitempty"`
	RemovedSKUs      []string      `json:"removedSkus,omitempty"`
	// StaleMetafields are destination metafields with no desired value, such
	// as a price tier that dropped to zero. productSet keeps them unless they
	// are deleted.
	StaleMetafields []MetafieldRef `json:"staleMetafields,omitempty"`
	Changes         []Change       `json:"changes,omitempty"`
}

// MetafieldRef identifies one metafield on a destination resource.
type MetafieldRef struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

func (r ProductRecord) SKUs() []string {
	skus := make([]string, len(r.Variants))
	for i, v := range r.Variants {
		skus[i] = v.SKU
	}
	return skus
}

// Decision is one entry of the product decision log.
type Decision struct {
	GroupKey          string   `json:"groupKey"`
	SourceSKUs        []string `json:"sourceSkus"`
	RelatedProductIDs []string `json:"relatedProductIds"`
	Decision          string   `json:"decision"`
	Reasoning         string   `json:"reasoning"`
}

// ProductResult extends the shared partition with the decision log.
type ProductResult struct {
	Result[ProductRecord]
	Decisions                []Decision `json:"decisions"`
	DuplicateDestinationSKUs []string   `json:"duplicateDestinationSkus"`
	MergedSourceCodes        []string   `json:"mergedSourceCodes"`
}

type ProductMatcher struct {
	// DefaultWarehouse is the warehouse whose location receives stock from
	// warehouses with no location of their own. Blank means the first
	// location.
	DefaultWarehouse string
	logger           *logger.Logger
}

func NewProductMatcher(logger *logger.Logger) *ProductMatcher {
	return &ProductMatcher{logger: logger}
}

// productUnit is one item of the fold: a group of sellable products, or a
// single source product that was filtered out or is malformed.
type productUnit struct {
	key string
	// group tells titled groups apart from ungrouped products whose code
	// happens to equal some title.
	group   string
	members []models.SourceProduct
	skip    string
	invalid string
}

type skuHit struct {
	product int
	variant int
}

type destinationIndex struct {
	products []models.DestinationProduct
	bySKU    map[string][]skuHit
}

func (idx destinationIndex) variant(h skuHit) models.DestinationVariant {
	return idx.products[h.product].Variants[h.variant]
}

// Match reconciles source products against destination products. Locations
// are used to resolve per-warehouse stock to destination location ids.
func (m *ProductMatcher) Match(sources []models.SourceProduct, products []models.DestinationProduct, locations []models.DestinationLocation) (*ProductResult, error) {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	if err := uniqueIDs("product", ids); err != nil {
		return nil, err
	}

	out := &ProductResult{Decisions: []Decision{}, DuplicateDestinationSKUs: []string{}, MergedSourceCodes: []string{}}

	deduped, invalid, merged := dedupeProducts(sources)
	out.MergedSourceCodes = append(out.MergedSourceCodes, merged...)
	for _, code := range merged {
		m.logger.Warn("Source product %s appears more than once; stock merged into first occurrence", code)
	}

	sourceSKUs := make(map[string]bool, len(deduped))
	for _, p := range deduped {
		sourceSKUs[strings.TrimSpace(p.Code)] = true
	}

	units, groupOf := groupProducts(deduped)
	units = append(invalid, units...)

	idx, dupes := indexDestination(products)
	out.DuplicateDestinationSKUs = append(out.DuplicateDestinationSKUs, dupes...)
	for _, sku := range dupes {
		m.logger.Warn("SKU %s is held by more than one destination variant", sku)
	}

	stock := newStockResolver(locations, m.DefaultWarehouse)

	decide := func(key string, skus, related []string, decision, reasoning string) {
		out.Decisions = append(out.Decisions, Decision{
			GroupKey:          key,
			SourceSKUs:        skus,
			RelatedProductIDs: related,
			Decision:          decision,
			Reasoning:         reasoning,
		})
	}

	out.Result = fold(units, func(u productUnit) string { return u.key }, func(u productUnit) outcome[ProductRecord] {
		if u.invalid != "" {
			decide(u.key, []string{}, []string{}, DecisionError, u.invalid)
			return fail[ProductRecord](u.key, "code", "%s", u.invalid)
		}
		if u.skip != "" {
			decide(u.key, []string{u.key}, []string{}, DecisionSkip, u.skip)
			return skip[ProductRecord](u.key, "", u.skip)
		}

		record := buildProduct(u, stock)
		skus := record.SKUs()

		related := idx.related(skus)
		relatedIDs := make([]string, len(related))
		for i, pi := range related {
			relatedIDs[i] = products[pi].ID
		}

		switch {
		case len(related) == 0:
			decide(u.key, skus, relatedIDs, DecisionCreate, ReasonNoRelatedProduct)
			return create(record)

		case len(related) > 1:
			decide(u.key, skus, relatedIDs, DecisionError, ReasonMultipleProducts)
			m.logger.Error("Group %q spans destination products %v; manual review required", u.key, relatedIDs)
			return fail[ProductRecord](u.key, "sku", "SKUs %v are spread across destination products %v", skus, relatedIDs)
		}

		existing := products[related[0]]
		missing, extra := skuOverlap(skus, existing)

		if len(missing) > 0 {
			decide(u.key, skus, relatedIDs, DecisionCreate, fmt.Sprintf("%s: destination %s lacks %v", ReasonPartialOverlap, existing.ID, missing))
			m.logger.Warn("Group %q partially overlaps %s (missing %v); creating a new product", u.key, existing.ID, missing)
			return create(record)
		}

		for _, v := range extra {
			if other, ok := groupOf[strings.TrimSpace(v.SKU)]; ok && other.group != u.group {
				decide(u.key, skus, relatedIDs, DecisionError, fmt.Sprintf("%s: %s belongs to group %q", ReasonSKUInOtherGroup, v.SKU, other.key))
				return fail[ProductRecord](u.key, "sku", "destination product %s also holds SKU %s from group %q", existing.ID, v.SKU, other.key)
			}
		}

		attachDestination(&record, existing, idx)
		record.Changes = diffProduct(record, existing)
		record.StaleMetafields = staleTiers(record, existing)
		record.NewImages = missingImages(record.Images, existing.Images)

		if len(extra) > 0 {
			for _, v := range extra {
				record.VariantsToRemove = append(record.VariantsToRemove, v.ID)
				record.RemovedSKUs = append(record.RemovedSKUs, v.SKU)
				record.Changes = append(record.Changes, Change{Field: "variant", SKU: v.SKU, From: v.ID, To: "removed"})
			}
			decide(u.key, skus, relatedIDs, DecisionUpdate, fmt.Sprintf("%s: %v", ReasonExtraVariants, record.RemovedSKUs))
			return update(record)
		}

		if len(record.Changes) == 0 {
			decide(u.key, skus, relatedIDs, DecisionSkip, ReasonIdenticalData)
			return skip[ProductRecord](u.key, existing.ID, ReasonIdenticalData)
		}
		decide(u.key, skus, relatedIDs, DecisionUpdate, fmt.Sprintf("%s: %s", ReasonFieldsChanged, strings.Join(Changes(record.Changes), "; ")))
		return update(record)
	})

	for _, p := range products {
		if p.IsArchived() {
			continue
		}
		skus := p.SKUs()
		if len(skus) == 0 {
			m.logger.Debug("Destination product %s has no SKUs; not managed by the ERP, leaving it alone", p.ID)
			continue
		}
		if anyIn(skus, sourceSKUs) {
			continue
		}
		out.ToArchive = append(out.ToArchive, ArchiveRecord{DestinationID: p.ID, Title: p.Title, SKUs: skus})
		decide(normalize.DefaultString(p.Title, p.ID), skus, []string{p.ID}, DecisionArchive, ReasonNoSourceSKUs)
	}

	m.logger.Info("Product mapping: %d to create, %d to update, %d to archive, %d skipped, %d errors",
		len(out.ToCreate), len(out.ToUpdate), len(out.ToArchive), len(out.Skipped), len(out.Errors))
	return out, nil
}

// dedupeProducts keeps the first occurrence of each product code and sums the
// stock of later duplicates into it. Products with a blank code come back as
// invalid units.
func dedupeProducts(sources []models.SourceProduct) (deduped []models.SourceProduct, invalid []productUnit, merged []string) {
	pos := make(map[string]int)
	for i, p := range sources {
		code := strings.TrimSpace(p.Code)
		if code == "" {
			key := p.Guid
			if key == "" {
				key = fmt.Sprintf("#%d", i)
			}
			invalid = append(invalid, productUnit{key: key, invalid: ReasonBlankProductCode})
			continue
		}
		if at, ok := pos[code]; ok {
			deduped[at].Stock = mergeStock(deduped[at].Stock, p.Stock)
			merged = append(merged, code)
			continue
		}
		p.Code = code
		pos[code] = len(deduped)
		deduped = append(deduped, p)
	}
	return deduped, invalid, merged
}

// GroupKey is the explicit product title attribute, or the product's own code.
func GroupKey(p models.SourceProduct) string {
	if title := p.Attribute(AttrProductTitle); title != "" {
		return title
	}
	return strings.TrimSpace(p.Code)
}

// groupID is GroupKey qualified by where the key came from. Only titled
// products share a group.
func groupID(p models.SourceProduct) string {
	if title := p.Attribute(AttrProductTitle); title != "" {
		return "title:" + title
	}
	return "code:" + strings.TrimSpace(p.Code)
}

type groupRef struct {
	group string
	key   string
}

// groupProducts groups sellable products by group in first-seen order and
// turns non-sellable products into skip units. groupOf maps every grouped SKU
// to its group.
func groupProducts(products []models.SourceProduct) ([]productUnit, map[string]groupRef) {
	var units []productUnit
	at := make(map[string]int)
	groupOf := make(map[string]groupRef)
	for _, p := range products {
		if !p.IsSellable {
			units = append(units, productUnit{key: p.Code, skip: ReasonNotSellable})
			continue
		}
		ref := groupRef{group: groupID(p), key: GroupKey(p)}
		groupOf[p.Code] = ref
		if i, ok := at[ref.group]; ok {
			units[i].members = append(units[i].members, p)
			continue
		}
		at[ref.group] = len(units)
		units = append(units, productUnit{key: ref.key, group: ref.group, members: []models.SourceProduct{p}})
	}
	return units, groupOf
}

func indexDestination(products []models.DestinationProduct) (destinationIndex, []string) {
	idx := destinationIndex{products: products, bySKU: make(map[string][]skuHit)}
	var dupes []string
	for pi, p := range products {
		for vi, v := range p.Variants {
			sku := strings.TrimSpace(v.SKU)
			if sku == "" {
				continue
			}
			if len(idx.bySKU[sku]) == 1 {
				dupes = append(dupes, sku)
			}
			idx.bySKU[sku] = append(idx.bySKU[sku], skuHit{product: pi, variant: vi})
		}
	}
	return idx, dupes
}

// related returns the distinct destination products holding any of skus, in
// destination order.
func (idx destinationIndex) related(skus []string) []int {
	seen := make(map[int]bool)
	for _, sku := range skus {
		for _, h := range idx.bySKU[sku] {
			seen[h.product] = true
		}
	}
	out := make([]int, 0, len(seen))
	for pi := range seen {
		out = append(out, pi)
	}
	sort.Ints(out)
	return out
}

func skuOverlap(skus []string, p models.DestinationProduct) (missing []string, extra []models.DestinationVariant) {
	want := make(map[string]bool, len(skus))
	for _, s := range skus {
		want[s] = true
	}
	have := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		sku := strings.TrimSpace(v.SKU)
		have[sku] = true
		if !want[sku] {
			extra = append(extra, v)
		}
	}
	for _, s := range skus {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	return missing, extra
}

func anyIn(skus []string, set map[string]bool) bool {
	for _, s := range skus {
		if set[strings.TrimSpace(s)] {
			return true
		}
	}
	return false
}

func attachDestination(record *ProductRecord, p models.DestinationProduct, idx destinationIndex) {
	record.DestinationID = p.ID
	for i := range record.Variants {
		v := &record.Variants[i]
		for _, h := range idx.bySKU[v.SKU] {
			if idx.products[h.product].ID != p.ID {
				continue
			}
			dv := idx.variant(h)
			v.DestinationID = dv.ID
			v.InventoryItemID = dv.InventoryItemID
			break
		}
	}
}

// stockResolver maps warehouse codes to destination location ids.
type stockResolver struct {
	order    []string
	byCode   map[string]string
	fallback string
}

func newStockResolver(locations []models.DestinationLocation, defaultWarehouse string) stockResolver {
	r := stockResolver{byCode: make(map[string]string)}
	for _, l := range locations {
		r.order = append(r.order, l.ID)
		if code := l.WarehouseCode(); code != "" {
			if _, ok := r.byCode[code]; !ok {
				r.byCode[code] = l.ID
			}
		}
	}
	if len(locations) > 0 {
		r.fallback = locations[0].ID
	}
	if id, ok := r.byCode[strings.TrimSpace(defaultWarehouse)]; ok {
		r.fallback = id
	}
	return r
}

// quantities sums stock per destination location. Warehouses with no matching
// location count against the fallback location.
func (r stockResolver) quantities(stock []models.SourceStock) []InventoryQuantity {
	if r.fallback == "" {
		return nil
	}
	totals := make(map[string]float64)
	for _, s := range stock {
		loc, ok := r.byCode[strings.TrimSpace(s.WarehouseCode)]
		if !ok {
			loc = r.fallback
		}
		qty, _ := AvailableQuantity(s)
		totals[loc] += qty
	}
	var out []InventoryQuantity
	for _, id := range r.order {
		if q, ok := totals[id]; ok {
			out = append(out, InventoryQuantity{LocationID: id, Available: wholeUnits(q)})
		}
	}
	return out
}

func buildProduct(u productUnit, stock stockResolver) ProductRecord {
	first := u.members[0]

	title := first.Attribute(AttrProductTitle)
	if title == "" {
		title = normalize.DefaultString(first.Description, first.Code)
	}

	var optionNames []string
	for _, p := range u.members {
		if names := splitOptionNames(p.Attribute(AttrOptionNames)); len(names) > 0 {
			optionNames = names
			break
		}
	}
	synthesized := false
	if len(optionNames) == 0 && len(u.members) > 1 {
		optionNames = []string{titleOption}
		synthesized = true
	}

	record := ProductRecord{
		GroupKey:        u.key,
		Handle:          normalize.Slugify(title),
		Title:           title,
		DescriptionHTML: description(u.members),
		ProductType:     defaultProductType,
		Vendor:          defaultVendor,
		Status:          models.ProductStatusArchived,
		Tags:            []string{},
		OptionNames:     optionNames,
		Metafields: []models.Metafield{{
			Namespace: models.MetafieldNamespace,
			Key:       models.MetafieldGroupKey,
			Type:      "single_line_text_field",
			Value:     u.key,
		}},
	}

	tags := make(map[string]bool)
	for _, p := range u.members {
		if record.ProductType == defaultProductType && strings.TrimSpace(p.GroupName) != "" {
			record.ProductType = strings.TrimSpace(p.GroupName)
		}
		if record.Vendor == defaultVendor && strings.TrimSpace(p.BrandName) != "" {
			record.Vendor = strings.TrimSpace(p.BrandName)
		}
		if !p.Obsolete {
			record.Status = models.ProductStatusActive
		}
		for _, t := range []string{p.GroupName, p.SubGroupName} {
			if t = strings.TrimSpace(t); t != "" && !tags[t] {
				tags[t] = true
				record.Tags = append(record.Tags, t)
			}
		}
		record.Images = appendImages(record.Images, collectImages(p, title))
		record.Variants = append(record.Variants, buildVariant(p, optionNames, synthesized, stock))
	}
	sort.Strings(record.Tags)
	return record
}

func description(members []models.SourceProduct) string {
	for _, p := range members {
		if notes := strings.TrimSpace(p.Notes); notes != "" {
			return notes
		}
	}
	return strings.TrimSpace(members[0].Description)
}

func splitOptionNames(raw string) []string {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
		if len(names) == maxOptions {
			break
		}
	}
	return names
}

func optionValues(p models.SourceProduct) []string {
	values := make([]string, maxOptions)
	for i := range values {
		v := p.Attribute(fmt.Sprintf(attrOptionValue, i+1))
		if strings.EqualFold(v, "null") {
			v = ""
		}
		values[i] = v
	}
	return values
}

// VariantTitle joins the non-empty option values, or falls back to the SKU.
func VariantTitle(p models.SourceProduct) string {
	var parts []string
	for _, v := range optionValues(p) {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.Code)
	}
	return strings.Join(parts, " / ")
}

func buildVariant(p models.SourceProduct, optionNames []string, synthesized bool, stock stockResolver) VariantRecord {
	title := VariantTitle(p)

	var values []string
	if synthesized {
		values = []string{title}
	} else if len(optionNames) > 0 {
		raw := optionValues(p)
		values = make([]string, len(optionNames))
		for i := range optionNames {
			values[i] = normalize.DefaultString(raw[i], p.Code)
		}
	}

	metafields := []models.Metafield{{
		Namespace: models.MetafieldNamespace,
		Key:       models.MetafieldProductCode,
		Type:      "single_line_text_field",
		Value:     p.Code,
	}}
	for i, tier := range p.PriceTiers {
		if i >= maxPriceTiers {
			break
		}
		if tier.Value == 0 {
			continue
		}
		metafields = append(metafields, models.Metafield{
			Namespace: models.MetafieldNamespace,
			Key:       fmt.Sprintf("%s_%d", models.MetafieldPriceTier, i+1),
			Type:      "number_decimal",
			Value:     decimal.NewFromFloat(tier.Value).StringFixed(2),
		})
	}

	return VariantRecord{
		SKU:          p.Code,
		Title:        title,
		Price:        decimal.NewFromFloat(p.Price).StringFixed(2),
		Weight:       p.Weight,
		WeightUnit:   weightUnitKg,
		Tracked:      p.IsSellable,
		OptionValues: values,
		Metafields:   metafields,
		Inventory:    stock.quantities(p.Stock),
	}
}

// NormalizePrice renders a price with two decimals. Unparseable input is
// returned trimmed.
func NormalizePrice(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return d.StringFixed(2)
}

var weightFactors = map[string]float64{
	"KILOGRAMS": 1,
	"GRAMS":     0.001,
	"POUNDS":    0.45359237,
	"OUNCES":    0.028349523125,
}

// kilograms converts a destination weight to kilograms. An unknown unit is
// taken as kilograms.
func kilograms(weight float64, unit string) float64 {
	if f, ok := weightFactors[strings.ToUpper(unit)]; ok {
		return weight * f
	}
	return weight
}

func diffProduct(want ProductRecord, have models.DestinationProduct) []Change {
	var changes []Change
	add := func(field, sku, from, to string) {
		if strings.TrimSpace(from) != strings.TrimSpace(to) {
			changes = append(changes, Change{Field: field, SKU: sku, From: from, To: to})
		}
	}
	add("title", "", have.Title, want.Title)
	add("status", "", have.Status, want.Status)
	add("productType", "", have.ProductType, want.ProductType)
	add("vendor", "", have.Vendor, want.Vendor)

	bySKU := make(map[string]models.DestinationVariant, len(have.Variants))
	for _, v := range have.Variants {
		bySKU[strings.TrimSpace(v.SKU)] = v
	}
	for _, v := range want.Variants {
		dv, ok := bySKU[v.SKU]
		if !ok {
			continue
		}
		add("price", v.SKU, NormalizePrice(dv.Price), v.Price)
		haveKg := kilograms(dv.Weight, dv.WeightUnit)
		if math.Abs(haveKg-v.Weight) > weightTolerance {
			changes = append(changes, Change{Field: "weight", SKU: v.SKU, From: fmt.Sprintf("%.3f", haveKg), To: fmt.Sprintf("%.3f", v.Weight)})
		}
		if dv.Tracked != v.Tracked {
			changes = append(changes, Change{Field: "tracked", SKU: v.SKU, From: fmt.Sprint(dv.Tracked), To: fmt.Sprint(v.Tracked)})
		}
		changes = append(changes, diffTiers(v, dv)...)
		for _, q := range v.Inventory {
			current, stocked := dv.Available(q.LocationID)
			if current != q.Available && (stocked || q.Available != 0) {
				changes = append(changes, Change{
					Field: "inventory@" + q.LocationID,
					SKU:   v.SKU,
					From:  fmt.Sprint(current),
					To:    fmt.Sprint(q.Available),
				})
			}
		}
	}

	if missing := missingImages(want.Images, have.Images); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, img := range missing {
			names[i] = img.FileName
		}
		changes = append(changes, Change{Field: "images", From: "", To: strings.Join(names, ", ")})
	}
	return changes
}

// tierValues collects the price tier metafields of a variant, keyed by
// metafield key, with prices normalized.
func tierValues(fields []models.Metafield) map[string]string {
	out := make(map[string]string)
	for _, f := range fields {
		if f.Namespace == models.MetafieldNamespace && isTierKey(f.Key) {
			out[f.Key] = NormalizePrice(f.Value)
		}
	}
	return out
}

func isTierKey(key string) bool {
	for i := 1; i <= maxPriceTiers; i++ {
		if key == fmt.Sprintf("%s_%d", models.MetafieldPriceTier, i) {
			return true
		}
	}
	return false
}

// diffTiers compares price tiers in tier order. A tier held by the
// destination but no longer wanted shows up as a change to "".
func diffTiers(want VariantRecord, have models.DestinationVariant) []Change {
	wantTiers, haveTiers := tierValues(want.Metafields), tierValues(have.Metafields)
	var changes []Change
	for i := 1; i <= maxPriceTiers; i++ {
		key := fmt.Sprintf("%s_%d", models.MetafieldPriceTier, i)
		if wantTiers[key] != haveTiers[key] {
			changes = append(changes, Change{Field: key, SKU: want.SKU, From: haveTiers[key], To: wantTiers[key]})
		}
	}
	return changes
}

// staleTiers lists the price tier metafields on matched destination variants
// that the desired variant no longer carries.
func staleTiers(want ProductRecord, have models.DestinationProduct) []MetafieldRef {
	byID := make(map[string]models.DestinationVariant, len(have.Variants))
	for _, v := range have.Variants {
		byID[v.ID] = v
	}
	var out []MetafieldRef
	for _, v := range want.Variants {
		dv, ok := byID[v.DestinationID]
		if v.DestinationID == "" || !ok {
			continue
		}
		wantTiers := tierValues(v.Metafields)
		for _, f := range dv.Metafields {
			if f.Namespace != models.MetafieldNamespace || !isTierKey(f.Key) {
				continue
			}
			if _, ok := wantTiers[f.Key]; !ok {
				out = append(out, MetafieldRef{OwnerID: dv.ID, Namespace: f.Namespace, Key: f.Key})
			}
		}
	}
	return out
}
