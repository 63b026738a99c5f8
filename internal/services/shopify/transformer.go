package shopify

import (
	"strings"

	"stocksync/internal/mapping"
	"stocksync/internal/models"
)

const (
	defaultOptionName  = "Title"
	defaultOptionValue = "Default Title"
	availableQuantity  = "available"
)

// Transformer converts between Admin API shapes and the sync's own records.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

func toMetafields(c Connection[Metafield]) []models.Metafield {
	out := make([]models.Metafield, 0, len(c.Nodes))
	for _, m := range c.Nodes {
		out = append(out, models.Metafield{Namespace: m.Namespace, Key: m.Key, Type: m.Type, Value: m.Value})
	}
	return out
}

func (t *Transformer) ToLocation(l Location) models.DestinationLocation {
	return models.DestinationLocation{
		ID:       l.ID,
		Name:     l.Name,
		IsActive: l.IsActive,
		Address: models.Address{
			Address1:     l.Address.Address1,
			Address2:     l.Address.Address2,
			City:         l.Address.City,
			ProvinceCode: l.Address.ProvinceCode,
			CountryCode:  l.Address.CountryCode,
			Zip:          l.Address.Zip,
			Phone:        l.Address.Phone,
		},
		Metafields: toMetafields(l.Metafields),
	}
}

func (t *Transformer) ToCustomer(c Customer) models.DestinationCustomer {
	return models.DestinationCustomer{
		ID:         c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		Metafields: toMetafields(c.Metafields),
	}
}

func (t *Transformer) ToProduct(p Product) models.DestinationProduct {
	out := models.DestinationProduct{
		ID:              p.ID,
		Title:           p.Title,
		Handle:          p.Handle,
		DescriptionHTML: p.DescriptionHTML,
		ProductType:     p.ProductType,
		Vendor:          p.Vendor,
		Status:          p.Status,
		Tags:            p.Tags,
		Metafields:      toMetafields(p.Metafields),
	}
	for _, o := range p.Options {
		out.Options = append(out.Options, models.ProductOption{Name: o.Name, Values: o.Values})
	}
	for _, v := range p.Variants.Nodes {
		dv := models.DestinationVariant{
			ID:              v.ID,
			SKU:             v.SKU,
			Title:           v.Title,
			Price:           v.Price,
			Tracked:         v.InventoryItem.Tracked,
			InventoryItemID: v.InventoryItem.ID,
			Metafields:      toMetafields(v.Metafields),
		}
		if w := v.InventoryItem.Measurement.Weight; w != nil {
			dv.Weight = w.Value
			dv.WeightUnit = w.Unit
		}
		for _, so := range v.SelectedOptions {
			dv.SelectedOptions = append(dv.SelectedOptions, models.SelectedOption{Name: so.Name, Value: so.Value})
		}
		for _, lvl := range v.InventoryItem.InventoryLevels.Nodes {
			for _, q := range lvl.Quantities {
				if q.Name == availableQuantity {
					dv.InventoryLevels = append(dv.InventoryLevels, models.InventoryLevel{LocationID: lvl.Location.ID, Available: q.Quantity})
				}
			}
		}
		out.Variants = append(out.Variants, dv)
	}
	for _, m := range p.Media.Nodes {
		if m.Image != nil && m.Image.URL != "" {
			out.Images = append(out.Images, models.DestinationImage{ID: m.ID, URL: m.Image.URL, Alt: m.Image.AltText})
		}
	}
	return out
}

func metafieldInputs(fields []models.Metafield) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "single_line_text_field"
		}
		out = append(out, map[string]interface{}{
			"namespace": f.Namespace,
			"key":       f.Key,
			"type":      typ,
			"value":     f.Value,
		})
	}
	return out
}

func addressInput(a models.Address) map[string]interface{} {
	in := map[string]interface{}{
		"address1":    a.Address1,
		"address2":    a.Address2,
		"city":        a.City,
		"countryCode": a.CountryCode,
		"zip":         a.Zip,
	}
	if a.ProvinceCode != "" {
		in["provinceCode"] = a.ProvinceCode
	}
	if a.Phone != "" {
		in["phone"] = a.Phone
	}
	return in
}

func (t *Transformer) LocationAddInput(r mapping.LocationRecord) map[string]interface{} {
	return map[string]interface{}{
		"name":                 r.Name,
		"address":              addressInput(r.Address),
		"fulfillsOnlineOrders": true,
		"metafields":           metafieldInputs(r.Metafields),
	}
}

func (t *Transformer) LocationEditInput(r mapping.LocationRecord) map[string]interface{} {
	return map[string]interface{}{
		"name":       r.Name,
		"address":    addressInput(r.Address),
		"metafields": metafieldInputs(r.Metafields),
	}
}

// CustomerInput builds the input for customerCreate, or customerUpdate when
// the record carries a destination id.
func (t *Transformer) CustomerInput(r mapping.CustomerRecord) map[string]interface{} {
	in := map[string]interface{}{
		"firstName":  r.FirstName,
		"lastName":   r.LastName,
		"email":      r.Email,
		"metafields": metafieldInputs(r.Metafields),
	}
	if r.Phone != "" {
		in["phone"] = r.Phone
	}
	if r.DestinationID != "" {
		in["id"] = r.DestinationID
	}
	return in
}

// ProductSetInput builds a productSet input. Creates carry initial inventory
// and images; updates leave both to dedicated calls.
func (t *Transformer) ProductSetInput(r mapping.ProductRecord) map[string]interface{} {
	creating := r.DestinationID == ""

	in := map[string]interface{}{
		"title":           r.Title,
		"handle":          r.Handle,
		"descriptionHtml": r.DescriptionHTML,
		"productType":     r.ProductType,
		"vendor":          r.Vendor,
		"status":          r.Status,
		"tags":            r.Tags,
		"metafields":      metafieldInputs(r.Metafields),
	}
	if !creating {
		in["id"] = r.DestinationID
	}

	names := r.OptionNames
	if len(names) == 0 {
		names = []string{defaultOptionName}
	}
	values := make([][]string, len(names))
	seen := make([]map[string]bool, len(names))
	for i := range seen {
		seen[i] = make(map[string]bool)
	}

	variants := make([]map[string]interface{}, 0, len(r.Variants))
	for _, v := range r.Variants {
		optionValues := make([]map[string]interface{}, len(names))
		for i, name := range names {
			value := defaultOptionValue
			if i < len(v.OptionValues) && strings.TrimSpace(v.OptionValues[i]) != "" {
				value = v.OptionValues[i]
			}
			if !seen[i][value] {
				seen[i][value] = true
				values[i] = append(values[i], value)
			}
			optionValues[i] = map[string]interface{}{"optionName": name, "name": value}
		}

		variant := map[string]interface{}{
			"price":        v.Price,
			"optionValues": optionValues,
			"metafields":   metafieldInputs(v.Metafields),
			"inventoryItem": map[string]interface{}{
				"sku":     v.SKU,
				"tracked": v.Tracked,
				"measurement": map[string]interface{}{
					"weight": map[string]interface{}{"value": v.Weight, "unit": v.WeightUnit},
				},
			},
		}
		if v.DestinationID != "" {
			variant["id"] = v.DestinationID
		}
		if creating && len(v.Inventory) > 0 {
			quantities := make([]map[string]interface{}, len(v.Inventory))
			for i, q := range v.Inventory {
				quantities[i] = map[string]interface{}{
					"locationId": q.LocationID,
					"name":       availableQuantity,
					"quantity":   q.Available,
				}
			}
			variant["inventoryQuantities"] = quantities
		}
		variants = append(variants, variant)
	}

	options := make([]map[string]interface{}, len(names))
	for i, name := range names {
		vals := make([]map[string]interface{}, len(values[i]))
		for j, v := range values[i] {
			vals[j] = map[string]interface{}{"name": v}
		}
		options[i] = map[string]interface{}{"name": name, "values": vals}
	}
	in["productOptions"] = options
	in["variants"] = variants

	if creating && len(r.Images) > 0 {
		in["files"] = t.FileInputs(r.Images)
	}
	return in
}

func (t *Transformer) FileInputs(images []mapping.ImageRecord) []map[string]interface{} {
	files := make([]map[string]interface{}, len(images))
	for i, img := range images {
		files[i] = map[string]interface{}{
			"originalSource": img.URL,
			"alt":            img.Alt,
			"contentType":    "IMAGE",
		}
	}
	return files
}

func (t *Transformer) MediaInputs(images []mapping.ImageRecord) []map[string]interface{} {
	media := make([]map[string]interface{}, len(images))
	for i, img := range images {
		media[i] = map[string]interface{}{
			"originalSource":   img.URL,
			"alt":              img.Alt,
			"mediaContentType": "IMAGE",
		}
	}
	return media
}

// ArchiveInput is the productUpdate input that archives a product.
func (t *Transformer) ArchiveInput(productID string) map[string]interface{} {
	return map[string]interface{}{"id": productID, "status": models.ProductStatusArchived}
}
