package unleashed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync/internal/logger"
	"stocksync/internal/models"
)

const (
	testID  = "api-id"
	testKey = "secret-key"
)

func page(t *testing.T, w http.ResponseWriter, number, pages int, items interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"Pagination": Pagination{PageNumber: number, NumberOfPages: pages},
		"Items":      items,
	}))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-auth-id") != testID || r.Header.Get("api-auth-signature") != Sign(r.URL.RawQuery, testKey) {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		switch {
		case r.URL.Path == "/Warehouses":
			page(t, w, 1, 1, []Warehouse{
				{Guid: "w1", WarehouseCode: "WH1", WarehouseName: "Main", StreetNo: "1", AddressLine1: "George St", Suburb: "Sydney", Country: "Australia", IsDefault: true},
				{Guid: "w2", WarehouseCode: "OLD", WarehouseName: "Closed", Obsolete: true},
			})
		case r.URL.Path == "/Customers/1":
			page(t, w, 1, 1, []Customer{
				{Guid: "c1", CustomerCode: "ACME", CustomerName: "Acme Ltd", SellPriceTier: "Wholesale"},
				{Guid: "c2", CustomerCode: "SOLO", CustomerName: "Solo Trader", Email: "solo@example.com"},
			})
		case r.URL.Path == "/Customers/c1/Contacts":
			page(t, w, 1, 1, []Contact{
				{Guid: "k1", FirstName: "Ann", LastName: "Lee", EmailAddress: "ann@acme.example.com"},
				{Guid: "k2", FirstName: "Bo", LastName: "Ng"},
			})
		case r.URL.Path == "/Customers/c2/Contacts":
			page(t, w, 1, 1, []Contact{})
		case strings.HasPrefix(r.URL.Path, "/Products/"):
			assert.Equal(t, "true", r.URL.Query().Get("includeAttributes"))
			price := 19.5
			switch r.URL.Path {
			case "/Products/1":
				page(t, w, 1, 2, []Product{{
					ProductCode:      "A",
					DefaultSellPrice: &price,
					IsSellable:       true,
					ProductGroup:     &ProductGroup{GroupName: "Apparel"},
					AttributeSet:     &AttributeSet{Attributes: []Attribute{{Name: "Product Title", Value: "Shirt"}}},
					SellPriceTier1:   &PriceTier{Name: "Trade", Value: "17.2500"},
				}})
			default:
				page(t, w, 2, 2, []Product{{ProductCode: "B", IsSellable: true}})
			}
		case r.URL.Path == "/StockOnHand/1":
			assert.Equal(t, "WH1", r.URL.Query().Get("warehouseCode"))
			qty := 7.0
			page(t, w, 1, 1, []StockOnHand{{ProductCode: "A", QtyOnHand: &qty}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSignIsStable(t *testing.T) {
	assert.Equal(t, Sign("pageSize=200", "key"), Sign("pageSize=200", "key"))
	assert.NotEqual(t, Sign("pageSize=200", "key"), Sign("pageSize=100", "key"))
	assert.NotEmpty(t, Sign("", "key"))
}

func TestProvider_FetchSource(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	p := NewProvider(NewClient(srv.URL, testID, testKey, 1, logger.Nop()), logger.Nop())
	ds, err := p.FetchSource(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, ds.Warehouses, 2)
	assert.Equal(t, "1 George St", ds.Warehouses[0].Address.AddressLine1)
	assert.Equal(t, "Sydney", ds.Warehouses[0].Address.City)

	require.Len(t, ds.Customers, 3)
	assert.Equal(t, "ACME/k1", ds.Customers[0].Identity())
	assert.Equal(t, "ann@acme.example.com", ds.Customers[0].Contact.EmailAddress)
	assert.Equal(t, "Wholesale", ds.Customers[1].SellPriceTier)
	assert.Nil(t, ds.Customers[2].Contact)
	assert.Equal(t, "SOLO", ds.Customers[2].Identity())

	require.Len(t, ds.Products, 2)
	a := ds.Products[0]
	assert.Equal(t, "Shirt", a.Attribute("product title"))
	assert.Equal(t, 19.5, a.Price)
	assert.Equal(t, "Apparel", a.GroupName)
	require.Len(t, a.PriceTiers, 10)
	assert.Equal(t, 17.25, a.PriceTiers[0].Value)
	require.Len(t, a.Stock, 1)
	assert.Equal(t, "WH1", a.Stock[0].WarehouseCode)
	assert.Equal(t, 7.0, *a.Stock[0].QtyOnHand)
	assert.Empty(t, ds.Products[1].Stock)
}

func TestProvider_ScopedFetchSkipsCustomers(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	p := NewProvider(NewClient(srv.URL, testID, testKey, 50, logger.Nop()), logger.Nop())
	ds, err := p.FetchSource(context.Background(), []string{models.EntityProducts})
	require.NoError(t, err)

	assert.Empty(t, ds.Warehouses)
	assert.Empty(t, ds.Customers)
	assert.Len(t, ds.Products, 2)
}

func TestClient_SurfacesAPIErrors(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	p := NewProvider(NewClient(srv.URL, testID, "wrong-key", 50, logger.Nop()), logger.Nop())
	_, err := p.Warehouses(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
