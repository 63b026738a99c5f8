package unleashed

type Pagination struct {
	NumberOfItems int `json:"NumberOfItems"`
	PageSize      int `json:"PageSize"`
	PageNumber    int `json:"PageNumber"`
	NumberOfPages int `json:"NumberOfPages"`
}

type envelope[T any] struct {
	Pagination Pagination `json:"Pagination"`
	Items      []T        `json:"Items"`
}

type Warehouse struct {
	Guid          string `json:"Guid"`
	WarehouseCode string `json:"WarehouseCode"`
	WarehouseName string `json:"WarehouseName"`
	IsDefault     bool   `json:"IsDefault"`
	StreetNo      string `json:"StreetNo"`
	AddressLine1  string `json:"AddressLine1"`
	AddressLine2  string `json:"AddressLine2"`
	Suburb        string `json:"Suburb"`
	City          string `json:"City"`
	Region        string `json:"Region"`
	Country       string `json:"Country"`
	PostCode      string `json:"PostCode"`
	PhoneNumber   string `json:"PhoneNumber"`
	Obsolete      bool   `json:"Obsolete"`
}

type Address struct {
	AddressType    string `json:"AddressType"`
	StreetAddress  string `json:"StreetAddress"`
	StreetAddress2 string `json:"StreetAddress2"`
	Suburb         string `json:"Suburb"`
	City           string `json:"City"`
	Region         string `json:"Region"`
	Country        string `json:"Country"`
	PostalCode     string `json:"PostalCode"`
}

type Customer struct {
	Guid             string    `json:"Guid"`
	CustomerCode     string    `json:"CustomerCode"`
	CustomerName     string    `json:"CustomerName"`
	Email            string    `json:"Email"`
	PhoneNumber      string    `json:"PhoneNumber"`
	ContactFirstName string    `json:"ContactFirstName"`
	ContactLastName  string    `json:"ContactLastName"`
	SellPriceTier    string    `json:"SellPriceTier"`
	Obsolete         bool      `json:"Obsolete"`
	Addresses        []Address `json:"Addresses"`
}

type Contact struct {
	Guid         string `json:"Guid"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	EmailAddress string `json:"EmailAddress"`
	PhoneNumber  string `json:"PhoneNumber"`
	MobilePhone  string `json:"MobilePhone"`
}

type ProductGroup struct {
	GroupName string `json:"GroupName"`
}

type ProductBrand struct {
	BrandName string `json:"BrandName"`
}

type Attribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type AttributeSet struct {
	SetName    string      `json:"SetName"`
	Attributes []Attribute `json:"Attributes"`
}

// PriceTier values arrive as decimal strings.
type PriceTier struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type Image struct {
	URL       string `json:"Url"`
	IsDefault bool   `json:"IsDefault"`
}

type Attachment struct {
	FileName    string `json:"FileName"`
	DownloadURL string `json:"DownloadUrl"`
	MimeType    string `json:"MimeType"`
}

type Product struct {
	Guid               string        `json:"Guid"`
	ProductCode        string        `json:"ProductCode"`
	ProductDescription string        `json:"ProductDescription"`
	Notes              string        `json:"Notes"`
	ProductGroup       *ProductGroup `json:"ProductGroup"`
	ProductSubGroup    *ProductGroup `json:"ProductSubGroup"`
	ProductBrand       *ProductBrand `json:"ProductBrand"`
	DefaultSellPrice   *float64      `json:"DefaultSellPrice"`
	Weight             *float64      `json:"Weight"`
	IsSellable         bool          `json:"IsSellable"`
	IsComponent        bool          `json:"IsComponent"`
	Obsolete           bool          `json:"Obsolete"`
	AttributeSet       *AttributeSet `json:"AttributeSet"`
	ImageURL           *string       `json:"ImageUrl"`
	Images             []Image       `json:"Images"`
	Attachments        []Attachment  `json:"Attachments"`

	SellPriceTier1  *PriceTier `json:"SellPriceTier1"`
	SellPriceTier2  *PriceTier `json:"SellPriceTier2"`
	SellPriceTier3  *PriceTier `json:"SellPriceTier3"`
	SellPriceTier4  *PriceTier `json:"SellPriceTier4"`
	SellPriceTier5  *PriceTier `json:"SellPriceTier5"`
	SellPriceTier6  *PriceTier `json:"SellPriceTier6"`
	SellPriceTier7  *PriceTier `json:"SellPriceTier7"`
	SellPriceTier8  *PriceTier `json:"SellPriceTier8"`
	SellPriceTier9  *PriceTier `json:"SellPriceTier9"`
	SellPriceTier10 *PriceTier `json:"SellPriceTier10"`
}

func (p Product) priceTiers() []*PriceTier {
	return []*PriceTier{
		p.SellPriceTier1, p.SellPriceTier2, p.SellPriceTier3, p.SellPriceTier4, p.SellPriceTier5,
		p.SellPriceTier6, p.SellPriceTier7, p.SellPriceTier8, p.SellPriceTier9, p.SellPriceTier10,
	}
}

// StockOnHand is one product's stock at the warehouse the request was
// filtered to. Older API versions used different names for the available
// quantity; all are decoded.
type StockOnHand struct {
	ProductCode       string   `json:"ProductCode"`
	ProductGuid       string   `json:"ProductGuid"`
	WarehouseCode     string   `json:"WarehouseCode"`
	AvailableQty      *float64 `json:"AvailableQty"`
	QtyAvailable      *float64 `json:"QtyAvailable"`
	QuantityAvailable *float64 `json:"QuantityAvailable"`
	QtyOnHand         *float64 `json:"QtyOnHand"`
}
