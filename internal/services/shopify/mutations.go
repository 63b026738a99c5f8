package shopify

import (
	"context"

	"stocksync/internal/mapping"
)

// InventorySet is one absolute available quantity for an inventory item at a
// location.
type InventorySet struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Quantity        int    `json:"quantity"`
}

// ProductSetResult maps the SKUs of the written product to their variant and
// inventory item ids.
type ProductSetResult struct {
	ProductID        string            `json:"productId"`
	VariantIDs       map[string]string `json:"variantIds"`
	InventoryItemIDs map[string]string `json:"inventoryItemIds"`
}

type idNode struct {
	ID string `json:"id"`
}

func (c *Client) CreateLocation(ctx context.Context, r mapping.LocationRecord) (string, error) {
	var resp struct {
		LocationAdd struct {
			Location   *idNode     `json:"location"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"locationAdd"`
	}
	vars := map[string]interface{}{"input": NewTransformer().LocationAddInput(r)}
	if err := c.Do(ctx, locationAddMutation, vars, &resp); err != nil {
		return "", err
	}
	if err := userErrors(resp.LocationAdd.UserErrors); err != nil {
		return "", err
	}
	return nodeID(resp.LocationAdd.Location), nil
}

func (c *Client) UpdateLocation(ctx context.Context, r mapping.LocationRecord) (string, error) {
	var resp struct {
		LocationEdit struct {
			Location   *idNode     `json:"location"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"locationEdit"`
	}
	vars := map[string]interface{}{"id": r.DestinationID, "input": NewTransformer().LocationEditInput(r)}
	if err := c.Do(ctx, locationEditMutation, vars, &resp); err != nil {
		return "", err
	}
	if err := userErrors(resp.LocationEdit.UserErrors); err != nil {
		return "", err
	}
	return nodeID(resp.LocationEdit.Location), nil
}

// SaveCustomer creates the customer, or updates it when the record carries a
// destination id.
func (c *Client) SaveCustomer(ctx context.Context, r mapping.CustomerRecord) (string, error) {
	mutation, field := customerCreateMutation, "customerCreate"
	if r.DestinationID != "" {
		mutation, field = customerUpdateMutation, "customerUpdate"
	}

	var resp map[string]struct {
		Customer   *idNode     `json:"customer"`
		UserErrors []UserError `json:"userErrors"`
	}
	vars := map[string]interface{}{"input": NewTransformer().CustomerInput(r)}
	if err := c.Do(ctx, mutation, vars, &resp); err != nil {
		return "", err
	}
	payload := resp[field]
	if err := userErrors(payload.UserErrors); err != nil {
		return "", err
	}
	return nodeID(payload.Customer), nil
}

// SetProduct writes the whole product with productSet.
func (c *Client) SetProduct(ctx context.Context, r mapping.ProductRecord) (*ProductSetResult, error) {
	var resp struct {
		ProductSet struct {
			Product *struct {
				ID       string `json:"id"`
				Variants struct {
					Nodes []struct {
						ID            string `json:"id"`
						SKU           string `json:"sku"`
						InventoryItem idNode `json:"inventoryItem"`
					} `json:"nodes"`
				} `json:"variants"`
			} `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productSet"`
	}
	vars := map[string]interface{}{"input": NewTransformer().ProductSetInput(r)}
	if err := c.Do(ctx, productSetMutation, vars, &resp); err != nil {
		return nil, err
	}
	if err := userErrors(resp.ProductSet.UserErrors); err != nil {
		return nil, err
	}

	result := &ProductSetResult{VariantIDs: map[string]string{}, InventoryItemIDs: map[string]string{}}
	if p := resp.ProductSet.Product; p != nil {
		result.ProductID = p.ID
		for _, v := range p.Variants.Nodes {
			result.VariantIDs[v.SKU] = v.ID
			result.InventoryItemIDs[v.SKU] = v.InventoryItem.ID
		}
	}
	return result, nil
}

func (c *Client) DeleteVariants(ctx context.Context, productID string, variantIDs []string) error {
	if len(variantIDs) == 0 {
		return nil
	}
	var resp struct {
		ProductVariantsBulkDelete struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkDelete"`
	}
	vars := map[string]interface{}{"productId": productID, "variantsIds": variantIDs}
	if err := c.Do(ctx, variantsBulkDeleteMutation, vars, &resp); err != nil {
		return err
	}
	return userErrors(resp.ProductVariantsBulkDelete.UserErrors)
}

// DeleteMetafields removes metafields that productSet would otherwise leave
// in place.
func (c *Client) DeleteMetafields(ctx context.Context, refs []mapping.MetafieldRef) error {
	if len(refs) == 0 {
		return nil
	}
	identifiers := make([]map[string]interface{}, len(refs))
	for i, r := range refs {
		identifiers[i] = map[string]interface{}{"ownerId": r.OwnerID, "namespace": r.Namespace, "key": r.Key}
	}
	var resp struct {
		MetafieldsDelete struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsDelete"`
	}
	if err := c.Do(ctx, metafieldsDeleteMutation, map[string]interface{}{"metafields": identifiers}, &resp); err != nil {
		return err
	}
	return userErrors(resp.MetafieldsDelete.UserErrors)
}

// SetInventory sets absolute available quantities, ignoring the compare
// quantity check.
func (c *Client) SetInventory(ctx context.Context, quantities []InventorySet) error {
	if len(quantities) == 0 {
		return nil
	}
	var resp struct {
		InventorySetQuantities struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"inventorySetQuantities"`
	}
	vars := map[string]interface{}{"input": map[string]interface{}{
		"name":                  availableQuantity,
		"reason":                "correction",
		"ignoreCompareQuantity": true,
		"quantities":            quantities,
	}}
	if err := c.Do(ctx, inventorySetQuantitiesMutation, vars, &resp); err != nil {
		return err
	}
	return userErrors(resp.InventorySetQuantities.UserErrors)
}

// AddImages attaches new images to an existing product.
func (c *Client) AddImages(ctx context.Context, productID string, images []mapping.ImageRecord) error {
	if len(images) == 0 {
		return nil
	}
	vars := map[string]interface{}{
		"product": map[string]interface{}{"id": productID},
		"media":   NewTransformer().MediaInputs(images),
	}
	return c.productUpdate(ctx, vars)
}

func (c *Client) ArchiveProduct(ctx context.Context, productID string) error {
	return c.productUpdate(ctx, map[string]interface{}{"product": NewTransformer().ArchiveInput(productID)})
}

func (c *Client) productUpdate(ctx context.Context, vars map[string]interface{}) error {
	var resp struct {
		ProductUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.Do(ctx, productUpdateMutation, vars, &resp); err != nil {
		return err
	}
	return userErrors(resp.ProductUpdate.UserErrors)
}

func nodeID(n *idNode) string {
	if n == nil {
		return ""
	}
	return n.ID
}
