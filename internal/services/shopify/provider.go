package shopify

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"stocksync/internal/models"
)

// paginate walks a top-level connection field until hasNextPage is false.
func paginate[T any](ctx context.Context, c *Client, query, field string) ([]T, error) {
	var all []T
	cursor := ""
	for page := 1; ; page++ {
		vars := map[string]interface{}{}
		if cursor != "" {
			vars["cursor"] = cursor
		}

		var data map[string]json.RawMessage
		if err := c.Do(ctx, query, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", field, err)
		}
		var conn Connection[T]
		if raw, ok := data[field]; ok {
			if err := json.Unmarshal(raw, &conn); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", field, err)
			}
		}
		all = append(all, conn.Nodes...)

		c.logger.Debug("Fetched %s page %d (%d nodes)", field, page, len(conn.Nodes))
		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			return all, nil
		}
		cursor = conn.PageInfo.EndCursor
	}
}

func (c *Client) Locations(ctx context.Context) ([]models.DestinationLocation, error) {
	nodes, err := paginate[Location](ctx, c, locationsQuery, "locations")
	if err != nil {
		return nil, err
	}
	t := NewTransformer()
	out := make([]models.DestinationLocation, len(nodes))
	for i, n := range nodes {
		out[i] = t.ToLocation(n)
	}
	return out, nil
}

func (c *Client) Customers(ctx context.Context) ([]models.DestinationCustomer, error) {
	nodes, err := paginate[Customer](ctx, c, customersQuery, "customers")
	if err != nil {
		return nil, err
	}
	t := NewTransformer()
	out := make([]models.DestinationCustomer, len(nodes))
	for i, n := range nodes {
		out[i] = t.ToCustomer(n)
	}
	return out, nil
}

func (c *Client) Products(ctx context.Context) ([]models.DestinationProduct, error) {
	nodes, err := paginate[Product](ctx, c, productsQuery, "products")
	if err != nil {
		return nil, err
	}
	t := NewTransformer()
	out := make([]models.DestinationProduct, len(nodes))
	for i, n := range nodes {
		if n.Variants.PageInfo.HasNextPage {
			c.logger.Warn("Product %s has more variants than fetched; extra variants are ignored", n.ID)
		}
		out[i] = t.ToProduct(n)
	}
	return out, nil
}

// FetchDestination returns the destination records for the requested entity
// types. Locations are fetched whenever products are requested since stock
// resolution needs them.
func (c *Client) FetchDestination(ctx context.Context, entities []string) (*models.DestinationDataset, error) {
	want := models.EntitySet(entities)
	dataset := &models.DestinationDataset{}

	g, gctx := errgroup.WithContext(ctx)
	if want[models.EntityLocations] || want[models.EntityProducts] {
		g.Go(func() error {
			locations, err := c.Locations(gctx)
			dataset.Locations = locations
			return err
		})
	}
	if want[models.EntityCustomers] {
		g.Go(func() error {
			customers, err := c.Customers(gctx)
			dataset.Customers = customers
			return err
		})
	}
	if want[models.EntityProducts] {
		g.Go(func() error {
			products, err := c.Products(gctx)
			dataset.Products = products
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("Fetched destination dataset: %d locations, %d customers, %d products",
		len(dataset.Locations), len(dataset.Customers), len(dataset.Products))
	return dataset, nil
}
