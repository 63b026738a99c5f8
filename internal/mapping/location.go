package mapping

import (
	"strings"

	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/normalize"
)

const (
	defaultAddressLine = "Not specified"
	defaultZip         = "00000"
)

// LocationRecord is the desired state of one destination location.
type LocationRecord struct {
	WarehouseCode string             `json:"warehouseCode"`
	DestinationID string             `json:"destinationId,omitempty"`
	Name          string             `json:"name"`
	Address       models.Address     `json:"address"`
	Metafields    []models.Metafield `json:"metafields"`

	// WriteMetafield is set when the location was matched by name and still
	// lacks the warehouse code join key.
	WriteMetafield bool     `json:"writeMetafield,omitempty"`
	Changes        []Change `json:"changes,omitempty"`
}

type LocationMatcher struct {
	Countries    normalize.CodeTable
	Provinces    normalize.CodeTable
	// MapProvinces applies the Provinces table to regions. Off by default:
	// regions are passed through as given.
	MapProvinces bool
	logger       *logger.Logger
}

func NewLocationMatcher(logger *logger.Logger) *LocationMatcher {
	return &LocationMatcher{
		Countries: normalize.Countries,
		Provinces: normalize.Provinces,
		logger:    logger,
	}
}

// Match partitions warehouses into locations to create, update or leave alone.
func (m *LocationMatcher) Match(warehouses []models.SourceWarehouse, locations []models.DestinationLocation) (*Result[LocationRecord], error) {
	ids := make([]string, len(locations))
	for i, l := range locations {
		ids[i] = l.ID
	}
	if err := uniqueIDs("location", ids); err != nil {
		return nil, err
	}

	byCode := make(map[string][]models.DestinationLocation)
	byName := make(map[string]models.DestinationLocation)
	for _, l := range locations {
		if code := l.WarehouseCode(); code != "" {
			byCode[code] = append(byCode[code], l)
		}
		key := foldKey(l.Name)
		if _, ok := byName[key]; !ok {
			byName[key] = l
		}
	}

	seen := make(map[string]bool)
	claimed := make(map[string]string)
	res := fold(warehouses, func(w models.SourceWarehouse) string { return w.Code }, func(w models.SourceWarehouse) outcome[LocationRecord] {
		code := strings.TrimSpace(w.Code)
		if code == "" {
			return fail[LocationRecord](w.Guid, "code", "warehouse code is blank")
		}
		if seen[code] {
			return fail[LocationRecord](code, "code", "duplicate warehouse code in source feed")
		}
		seen[code] = true

		record := m.normalize(w)

		matches := byCode[code]
		if len(matches) > 1 {
			return fail[LocationRecord](code, models.MetafieldWarehouseCode, "%d destination locations carry this warehouse code", len(matches))
		}

		var existing models.DestinationLocation
		if len(matches) == 1 {
			existing = matches[0]
		} else {
			named, ok := byName[foldKey(record.Name)]
			if !ok || named.WarehouseCode() != "" || claimed[named.ID] != "" {
				return create(record)
			}
			existing = named
			record.WriteMetafield = true
		}
		if other := claimed[existing.ID]; other != "" {
			return fail[LocationRecord](code, "name", "destination location %s already matched warehouse %s", existing.ID, other)
		}
		claimed[existing.ID] = code

		record.DestinationID = existing.ID
		record.Changes = diffLocation(record, existing)
		if len(record.Changes) == 0 {
			return skip[LocationRecord](code, existing.ID, ReasonIdenticalData)
		}
		m.logger.Debug("Location %s differs from %s: %v", code, existing.ID, Changes(record.Changes))
		return update(record)
	})

	m.logger.Info("Location mapping: %d to create, %d to update, %d skipped, %d errors",
		len(res.ToCreate), len(res.ToUpdate), len(res.Skipped), len(res.Errors))
	return &res, nil
}

func (m *LocationMatcher) normalize(w models.SourceWarehouse) LocationRecord {
	region := strings.TrimSpace(w.Address.Region)
	if m.MapProvinces {
		region = m.Provinces.Lookup(region)
	}
	return LocationRecord{
		WarehouseCode: strings.TrimSpace(w.Code),
		Name:          normalize.DefaultString(w.Name, w.Code),
		Address: models.Address{
			Address1:     normalize.DefaultString(w.Address.AddressLine1, defaultAddressLine),
			Address2:     strings.TrimSpace(w.Address.AddressLine2),
			City:         normalize.DefaultString(w.Address.City, defaultAddressLine),
			ProvinceCode: region,
			CountryCode:  m.Countries.Lookup(w.Address.Country),
			Zip:          normalize.DefaultString(w.Address.PostalCode, defaultZip),
			Phone:        strings.TrimSpace(w.PhoneNumber),
		},
		Metafields: []models.Metafield{{
			Namespace: models.MetafieldNamespace,
			Key:       models.MetafieldWarehouseCode,
			Type:      "single_line_text_field",
			Value:     strings.TrimSpace(w.Code),
		}},
	}
}

func diffLocation(want LocationRecord, have models.DestinationLocation) []Change {
	var changes []Change
	add := func(field, from, to string) {
		if strings.TrimSpace(from) != strings.TrimSpace(to) {
			changes = append(changes, Change{Field: field, From: from, To: to})
		}
	}
	add("name", have.Name, want.Name)
	add("address1", have.Address.Address1, want.Address.Address1)
	add("address2", have.Address.Address2, want.Address.Address2)
	add("city", have.Address.City, want.Address.City)
	add("provinceCode", have.Address.ProvinceCode, want.Address.ProvinceCode)
	add("countryCode", have.Address.CountryCode, want.Address.CountryCode)
	add("zip", have.Address.Zip, want.Address.Zip)
	add("phone", have.Address.Phone, want.Address.Phone)
	add("metafield."+models.MetafieldWarehouseCode, have.WarehouseCode(), want.WarehouseCode)
	return changes
}
