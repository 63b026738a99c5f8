package mapping

import (
	"math"

	"stocksync/internal/models"
)

// quantityFields lists the stock row fields that have carried the available
// quantity, highest priority first. QtyOnHand is last because it includes
// allocated stock.
var quantityFields = []struct {
	name string
	get  func(models.SourceStock) *float64
}{
	{"AvailableQty", func(s models.SourceStock) *float64 { return s.AvailableQty }},
	{"QtyAvailable", func(s models.SourceStock) *float64 { return s.QtyAvailable }},
	{"QuantityAvailable", func(s models.SourceStock) *float64 { return s.QuantityAvailable }},
	{"QtyOnHand", func(s models.SourceStock) *float64 { return s.QtyOnHand }},
}

// AvailableQuantity resolves the available quantity of a stock row using the
// first populated field in quantityFields. It returns the field it used, or
// "" and 0 when none is set.
func AvailableQuantity(s models.SourceStock) (float64, string) {
	for _, f := range quantityFields {
		if v := f.get(s); v != nil && !math.IsNaN(*v) {
			return *v, f.name
		}
	}
	return 0, ""
}

// mergeStock sums per-warehouse quantities of b into a. The result stores the
// resolved quantity in AvailableQty so later resolution is unambiguous.
func mergeStock(a, b []models.SourceStock) []models.SourceStock {
	order := make([]string, 0, len(a)+len(b))
	totals := make(map[string]float64)
	for _, rows := range [][]models.SourceStock{a, b} {
		for _, s := range rows {
			qty, _ := AvailableQuantity(s)
			if _, ok := totals[s.WarehouseCode]; !ok {
				order = append(order, s.WarehouseCode)
			}
			totals[s.WarehouseCode] += qty
		}
	}
	out := make([]models.SourceStock, 0, len(order))
	for _, code := range order {
		qty := totals[code]
		out = append(out, models.SourceStock{WarehouseCode: code, AvailableQty: &qty})
	}
	return out
}

// wholeUnits floors a quantity to an integer count. Negative stock is
// reported as zero.
func wholeUnits(q float64) int {
	if q <= 0 {
		return 0
	}
	return int(math.Floor(q))
}
