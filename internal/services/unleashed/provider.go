package unleashed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stocksync/internal/logger"
	"stocksync/internal/models"
)

// Provider gathers the full source dataset for a sync run.
type Provider struct {
	client *Client
	logger *logger.Logger

	// FetchContacts expands each customer into its contacts. Disable for
	// accounts where contacts are not maintained.
	FetchContacts bool
	// Concurrency bounds the per-customer and per-warehouse requests.
	Concurrency int
}

func NewProvider(client *Client, logger *logger.Logger) *Provider {
	return &Provider{
		client:        client,
		logger:        logger,
		FetchContacts: true,
		Concurrency:   4,
	}
}

// FetchSource returns warehouses, customers and products for the requested
// entity types. Warehouses are always fetched when products are requested
// since stock is keyed by warehouse.
func (p *Provider) FetchSource(ctx context.Context, entities []string) (*models.SourceDataset, error) {
	want := models.EntitySet(entities)
	dataset := &models.SourceDataset{}

	var warehouses []models.SourceWarehouse
	if want[models.EntityLocations] || want[models.EntityProducts] {
		var err error
		if warehouses, err = p.Warehouses(ctx); err != nil {
			return nil, err
		}
	}
	if want[models.EntityLocations] {
		dataset.Warehouses = warehouses
	}

	g, gctx := errgroup.WithContext(ctx)
	if want[models.EntityCustomers] {
		g.Go(func() error {
			customers, err := p.Customers(gctx)
			dataset.Customers = customers
			return err
		})
	}
	if want[models.EntityProducts] {
		g.Go(func() error {
			products, err := p.Products(gctx, warehouses)
			dataset.Products = products
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("Fetched source dataset: %d warehouses, %d customers, %d products",
		len(dataset.Warehouses), len(dataset.Customers), len(dataset.Products))
	return dataset, nil
}

func (p *Provider) Warehouses(ctx context.Context) ([]models.SourceWarehouse, error) {
	var env envelope[Warehouse]
	if err := p.client.get(ctx, "Warehouses", url.Values{}, &env); err != nil {
		return nil, fmt.Errorf("failed to fetch warehouses: %w", err)
	}
	out := make([]models.SourceWarehouse, len(env.Items))
	for i, w := range env.Items {
		out[i] = toSourceWarehouse(w)
	}
	return out, nil
}

// Customers returns one source customer per contact, or the company itself
// when it has no contacts.
func (p *Provider) Customers(ctx context.Context) ([]models.SourceCustomer, error) {
	customers, err := getAll[Customer](ctx, p.client, "Customers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customers: %w", err)
	}

	contacts := make([][]Contact, len(customers))
	if p.FetchContacts {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.limit())
		for i, c := range customers {
			if c.Guid == "" {
				continue
			}
			g.Go(func() error {
				var env envelope[Contact]
				if err := p.client.get(gctx, "Customers/"+c.Guid+"/Contacts", url.Values{}, &env); err != nil {
					return fmt.Errorf("failed to fetch contacts for %s: %w", c.CustomerCode, err)
				}
				contacts[i] = env.Items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var out []models.SourceCustomer
	for i, c := range customers {
		base := toSourceCustomer(c)
		if len(contacts[i]) == 0 {
			out = append(out, base)
			continue
		}
		for _, ct := range contacts[i] {
			expanded := base
			expanded.Contact = &models.SourceContact{
				Guid:         ct.Guid,
				FirstName:    strings.TrimSpace(ct.FirstName),
				LastName:     strings.TrimSpace(ct.LastName),
				EmailAddress: strings.TrimSpace(ct.EmailAddress),
				PhoneNumber:  strings.TrimSpace(ct.PhoneNumber),
				MobilePhone:  strings.TrimSpace(ct.MobilePhone),
			}
			out = append(out, expanded)
		}
	}
	return out, nil
}

// Products returns every product with its attributes and its stock at each of
// the given warehouses.
func (p *Provider) Products(ctx context.Context, warehouses []models.SourceWarehouse) ([]models.SourceProduct, error) {
	products, err := getAll[Product](ctx, p.client, "Products", url.Values{"includeAttributes": {"true"}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	stock, err := p.stockByProduct(ctx, warehouses)
	if err != nil {
		return nil, err
	}

	out := make([]models.SourceProduct, len(products))
	for i, pr := range products {
		out[i] = toSourceProduct(pr)
		out[i].Stock = stock[strings.TrimSpace(pr.ProductCode)]
	}
	return out, nil
}

func (p *Provider) stockByProduct(ctx context.Context, warehouses []models.SourceWarehouse) (map[string][]models.SourceStock, error) {
	rows := make([][]StockOnHand, len(warehouses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, w := range warehouses {
		if w.Obsolete || w.Code == "" {
			continue
		}
		g.Go(func() error {
			items, err := getAll[StockOnHand](gctx, p.client, "StockOnHand", url.Values{"warehouseCode": {w.Code}})
			if err != nil {
				return fmt.Errorf("failed to fetch stock for warehouse %s: %w", w.Code, err)
			}
			rows[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byProduct := make(map[string][]models.SourceStock)
	for i, items := range rows {
		for _, s := range items {
			code := strings.TrimSpace(s.ProductCode)
			if code == "" {
				continue
			}
			byProduct[code] = append(byProduct[code], models.SourceStock{
				WarehouseCode:     warehouses[i].Code,
				AvailableQty:      s.AvailableQty,
				QtyAvailable:      s.QtyAvailable,
				QuantityAvailable: s.QuantityAvailable,
				QtyOnHand:         s.QtyOnHand,
			})
		}
	}
	return byProduct, nil
}

func (p *Provider) limit() int {
	if p.Concurrency <= 0 {
		return 1
	}
	return p.Concurrency
}

func toSourceWarehouse(w Warehouse) models.SourceWarehouse {
	line1 := strings.TrimSpace(strings.TrimSpace(w.StreetNo) + " " + strings.TrimSpace(w.AddressLine1))
	return models.SourceWarehouse{
		Guid:        w.Guid,
		Code:        strings.TrimSpace(w.WarehouseCode),
		Name:        strings.TrimSpace(w.WarehouseName),
		PhoneNumber: strings.TrimSpace(w.PhoneNumber),
		IsDefault:   w.IsDefault,
		Obsolete:    w.Obsolete,
		Address: models.SourceAddress{
			AddressLine1: line1,
			AddressLine2: strings.TrimSpace(w.AddressLine2),
			City:         firstNonBlank(w.City, w.Suburb),
			Region:       strings.TrimSpace(w.Region),
			Country:      strings.TrimSpace(w.Country),
			PostalCode:   strings.TrimSpace(w.PostCode),
		},
	}
}

func toSourceCustomer(c Customer) models.SourceCustomer {
	out := models.SourceCustomer{
		Guid:          c.Guid,
		Code:          strings.TrimSpace(c.CustomerCode),
		Name:          strings.TrimSpace(c.CustomerName),
		Email:         strings.TrimSpace(c.Email),
		FirstName:     strings.TrimSpace(c.ContactFirstName),
		LastName:      strings.TrimSpace(c.ContactLastName),
		PhoneNumber:   strings.TrimSpace(c.PhoneNumber),
		SellPriceTier: strings.TrimSpace(c.SellPriceTier),
		Obsolete:      c.Obsolete,
	}
	if len(c.Addresses) > 0 {
		a := c.Addresses[0]
		out.Address = &models.SourceAddress{
			AddressLine1: strings.TrimSpace(a.StreetAddress),
			AddressLine2: strings.TrimSpace(a.StreetAddress2),
			City:         firstNonBlank(a.City, a.Suburb),
			Region:       strings.TrimSpace(a.Region),
			Country:      strings.TrimSpace(a.Country),
			PostalCode:   strings.TrimSpace(a.PostalCode),
		}
	}
	return out
}

func toSourceProduct(p Product) models.SourceProduct {
	out := models.SourceProduct{
		Guid:        p.Guid,
		Code:        strings.TrimSpace(p.ProductCode),
		Description: strings.TrimSpace(p.ProductDescription),
		Notes:       strings.TrimSpace(p.Notes),
		IsSellable:  p.IsSellable,
		IsComponent: p.IsComponent,
		Obsolete:    p.Obsolete,
	}
	if p.ProductGroup != nil {
		out.GroupName = strings.TrimSpace(p.ProductGroup.GroupName)
	}
	if p.ProductSubGroup != nil {
		out.SubGroupName = strings.TrimSpace(p.ProductSubGroup.GroupName)
	}
	if p.ProductBrand != nil {
		out.BrandName = strings.TrimSpace(p.ProductBrand.BrandName)
	}
	if p.DefaultSellPrice != nil {
		out.Price = *p.DefaultSellPrice
	}
	if p.Weight != nil {
		out.Weight = *p.Weight
	}
	if p.AttributeSet != nil {
		for _, a := range p.AttributeSet.Attributes {
			out.Attributes = append(out.Attributes, models.SourceAttribute{Name: a.Name, Value: a.Value})
		}
	}
	for _, tier := range p.priceTiers() {
		var st models.SourcePriceTier
		if tier != nil {
			st.Name = tier.Name
			if v, err := decimal.NewFromString(strings.TrimSpace(tier.Value)); err == nil {
				st.Value = v.InexactFloat64()
			}
		}
		out.PriceTiers = append(out.PriceTiers, st)
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, models.SourceImage{URL: img.URL, IsDefault: img.IsDefault})
	}
	if p.ImageURL != nil {
		out.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	for _, a := range p.Attachments {
		out.Attachments = append(out.Attachments, models.SourceAttachment{FileName: a.FileName, DownloadURL: a.DownloadURL, MimeType: a.MimeType})
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
