package shopify

import (
	"fmt"
	"strings"
)

type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Connection is a GraphQL connection using the nodes shorthand.
type Connection[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}

type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
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

type Location struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	IsActive   bool                  `json:"isActive"`
	Address    Address               `json:"address"`
	Metafields Connection[Metafield] `json:"metafields"`
}

type Customer struct {
	ID         string                `json:"id"`
	FirstName  string                `json:"firstName"`
	LastName   string                `json:"lastName"`
	Email      string                `json:"email"`
	Phone      string                `json:"phone"`
	Metafields Connection[Metafield] `json:"metafields"`
}

type Weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type Quantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type InventoryLevel struct {
	Location struct {
		ID string `json:"id"`
	} `json:"location"`
	Quantities []Quantity `json:"quantities"`
}

type InventoryItem struct {
	ID          string `json:"id"`
	Tracked     bool   `json:"tracked"`
	Measurement struct {
		Weight *Weight `json:"weight"`
	} `json:"measurement"`
	InventoryLevels Connection[InventoryLevel] `json:"inventoryLevels"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Variant struct {
	ID              string                `json:"id"`
	SKU             string                `json:"sku"`
	Title           string                `json:"title"`
	Price           string                `json:"price"`
	SelectedOptions []SelectedOption      `json:"selectedOptions"`
	InventoryItem   InventoryItem         `json:"inventoryItem"`
	Metafields      Connection[Metafield] `json:"metafields"`
}

type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type Media struct {
	ID               string `json:"id"`
	MediaContentType string `json:"mediaContentType"`
	Image            *struct {
		URL     string `json:"url"`
		AltText string `json:"altText"`
	} `json:"image"`
}

type Product struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Handle          string                `json:"handle"`
	DescriptionHTML string                `json:"descriptionHtml"`
	ProductType     string                `json:"productType"`
	Vendor          string                `json:"vendor"`
	Status          string                `json:"status"`
	Tags            []string              `json:"tags"`
	Options         []ProductOption       `json:"options"`
	Variants        Connection[Variant]   `json:"variants"`
	Media           Connection[Media]     `json:"media"`
	Metafields      Connection[Metafield] `json:"metafields"`
}

// UserError is a field-level validation error from a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is returned when a mutation was rejected by validation rather
// than by transport.
type UserErrors []UserError

func (e UserErrors) Error() string {
	msgs := make([]string, len(e))
	for i, u := range e {
		if len(u.Field) > 0 {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(u.Field, "."), u.Message)
		} else {
			msgs[i] = u.Message
		}
	}
	return strings.Join(msgs, "; ")
}

// Field is the dotted path of the first error, or "".
func (e UserErrors) Field() string {
	if len(e) == 0 {
		return ""
	}
	return strings.Join(e[0].Field, ".")
}

func userErrors(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return UserErrors(errs)
}
