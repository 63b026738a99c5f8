package models

import "strings"

// MetafieldNamespace holds every join key written to the commerce platform.
const MetafieldNamespace = "unleashed"

const (
	MetafieldWarehouseCode = "warehouse_code"
	MetafieldCustomerCode  = "customer_code"
	MetafieldCustomerName  = "customer_name"
	MetafieldPriceTier     = "sell_price_tier"
	MetafieldProductCode   = "product_code"
	MetafieldGroupKey      = "group_key"
)

const (
	ProductStatusActive   = "ACTIVE"
	ProductStatusArchived = "ARCHIVED"
	ProductStatusDraft    = "DRAFT"
)

type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type,omitempty"`
	Value     string `json:"value"`
}

// MetafieldValue returns the value stored under namespace/key, or "".
func MetafieldValue(fields []Metafield, namespace, key string) string {
	for _, f := range fields {
		if f.Namespace == namespace && f.Key == key {
			return f.Value
		}
	}
	return ""
}

type Address struct {
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	ProvinceCode string `json:"provinceCode"`
	CountryCode  string `json:"countryCode"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
}

type DestinationLocation struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Address    Address     `json:"address"`
	IsActive   bool        `json:"isActive"`
	Metafields []Metafield `json:"metafields,omitempty"`
}

// WarehouseCode is the source warehouse this location was synced from.
func (l DestinationLocation) WarehouseCode() string {
	return MetafieldValue(l.Metafields, MetafieldNamespace, MetafieldWarehouseCode)
}

type DestinationCustomer struct {
	ID         string      `json:"id"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Metafields []Metafield `json:"metafields,omitempty"`
}

func (c DestinationCustomer) CustomerCode() string {
	return MetafieldValue(c.Metafields, MetafieldNamespace, MetafieldCustomerCode)
}

type InventoryLevel struct {
	LocationID string `json:"locationId"`
	Available  int    `json:"available"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type DestinationImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type DestinationVariant struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	Title           string           `json:"title"`
	Price           string           `json:"price"`
	Weight          float64          `json:"weight"`
	WeightUnit      string           `json:"weightUnit"`
	Tracked         bool             `json:"tracked"`
	InventoryItemID string           `json:"inventoryItemId"`
	InventoryLevels []InventoryLevel `json:"inventoryLevels,omitempty"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
	Metafields      []Metafield      `json:"metafields,omitempty"`
}

// Available returns the available quantity at a location and whether the
// variant is stocked there at all.
func (v DestinationVariant) Available(locationID string) (int, bool) {
	for _, l := range v.InventoryLevels {
		if l.LocationID == locationID {
			return l.Available, true
		}
	}
	return 0, false
}

type DestinationProduct struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Handle          string               `json:"handle"`
	DescriptionHTML string               `json:"descriptionHtml"`
	ProductType     string               `json:"productType"`
	Vendor          string               `json:"vendor"`
	Status          string               `json:"status"`
	Tags            []string             `json:"tags,omitempty"`
	Options         []ProductOption      `json:"options,omitempty"`
	Variants        []DestinationVariant `json:"variants"`
	Images          []DestinationImage   `json:"images,omitempty"`
	Metafields      []Metafield          `json:"metafields,omitempty"`
}

func (p DestinationProduct) IsArchived() bool {
	return p.Status == ProductStatusArchived
}

// SKUs lists the non-empty variant SKUs in variant order.
func (p DestinationProduct) SKUs() []string {
	skus := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		if sku := strings.TrimSpace(v.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}
	return skus
}

// DestinationDataset is everything fetched from the commerce platform for one run.
type DestinationDataset struct {
	Locations []DestinationLocation `json:"locations"`
	Customers []DestinationCustomer `json:"customers"`
	Products  []DestinationProduct  `json:"products"`
}
