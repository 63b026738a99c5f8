package models

import "strings"

// Source records are read from the ERP once per sync run and never mutated.

type SourceAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	Region       string `json:"region"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code"`
}

type SourceWarehouse struct {
	Guid        string        `json:"guid"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Address     SourceAddress `json:"address"`
	PhoneNumber string        `json:"phone_number"`
	IsDefault   bool          `json:"is_default"`
	Obsolete    bool          `json:"obsolete"`
}

type SourceContact struct {
	Guid         string `json:"guid"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	MobilePhone  string `json:"mobile_phone"`
}

// SourceCustomer is the unit that becomes a destination customer. When the
// ERP company has contacts, one SourceCustomer is produced per contact and
// Contact is set; the company fields are carried alongside.
type SourceCustomer struct {
	Guid          string         `json:"guid"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	PhoneNumber   string         `json:"phone_number"`
	SellPriceTier string         `json:"sell_price_tier"`
	Obsolete      bool           `json:"obsolete"`
	Address       *SourceAddress `json:"address,omitempty"`
	Contact       *SourceContact `json:"contact,omitempty"`
}

// Identity is the key used in mapping results. Contact-derived customers are
// keyed by company code plus contact guid so that siblings stay distinct.
func (c SourceCustomer) Identity() string {
	if c.Contact != nil && c.Contact.Guid != "" {
		return c.Code + "/" + c.Contact.Guid
	}
	return c.Code
}

type SourceAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SourceImage struct {
	URL       string `json:"url"`
	IsDefault bool   `json:"is_default"`
}

type SourceAttachment struct {
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
	MimeType    string `json:"mime_type"`
}

type SourcePriceTier struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// SourceStock is one warehouse's stock row for a product. The ERP has
// exposed the available quantity under several names over time, so every
// candidate is kept and resolved by AvailableQuantity.
type SourceStock struct {
	WarehouseCode     string   `json:"warehouse_code"`
	AvailableQty      *float64 `json:"available_qty,omitempty"`
	QtyAvailable      *float64 `json:"qty_available,omitempty"`
	QuantityAvailable *float64 `json:"quantity_available,omitempty"`
	QtyOnHand         *float64 `json:"qty_on_hand,omitempty"`
}

type SourceProduct struct {
	Guid         string             `json:"guid"`
	Code         string             `json:"code"`
	Description  string             `json:"description"`
	Notes        string             `json:"notes"`
	GroupName    string             `json:"group_name"`
	SubGroupName string             `json:"sub_group_name"`
	BrandName    string             `json:"brand_name"`
	Price        float64            `json:"price"`
	Weight       float64            `json:"weight"`
	IsSellable   bool               `json:"is_sellable"`
	IsComponent  bool               `json:"is_component"`
	Obsolete     bool               `json:"obsolete"`
	Attributes   []SourceAttribute  `json:"attributes,omitempty"`
	PriceTiers   []SourcePriceTier  `json:"price_tiers,omitempty"`
	Stock        []SourceStock      `json:"stock,omitempty"`
	Images       []SourceImage      `json:"images,omitempty"`
	ImageURL     string             `json:"image_url,omitempty"`
	Attachments  []SourceAttachment `json:"attachments,omitempty"`
}

// Attribute returns the trimmed value of the named attribute, matched case
// insensitively.
func (p SourceProduct) Attribute(name string) string {
	for _, a := range p.Attributes {
		if strings.EqualFold(strings.TrimSpace(a.Name), name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// SourceDataset is everything fetched from the ERP for one run.
type SourceDataset struct {
	Warehouses []SourceWarehouse `json:"warehouses"`
	Customers  []SourceCustomer  `json:"customers"`
	Products   []SourceProduct   `json:"products"`
}
