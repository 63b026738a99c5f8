package credentials

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stocksync/internal/database"
	"stocksync/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seed(t *testing.T, db *gorm.DB, connectors ...models.Connector) {
	t.Helper()
	for i := range connectors {
		require.NoError(t, db.Create(&connectors[i]).Error)
	}
}

func shopifyConnector(tenant string) models.Connector {
	return models.Connector{
		Tenant:      tenant,
		Name:        "store",
		Type:        models.ConnectorTypeShopify,
		Status:      models.ConnectorStatusActive,
		Config:      map[string]string{models.CredentialShopDomain: "acme.myshopify.com"},
		Credentials: map[string]string{models.CredentialAccessToken: "shpat_123"},
	}
}

func unleashedConnector(tenant string) models.Connector {
	return models.Connector{
		Tenant:      tenant,
		Name:        "erp",
		Type:        models.ConnectorTypeUnleashed,
		Status:      models.ConnectorStatusActive,
		Config:      map[string]string{models.ConfigDefaultWarehouse: "WH1"},
		Credentials: map[string]string{models.CredentialAPIID: "id", models.CredentialAPIKey: "key"},
	}
}

func TestStore_Lookup(t *testing.T) {
	db := testDB(t)
	seed(t, db, shopifyConnector("acme"), unleashedConnector("acme"), shopifyConnector("other"))

	b, err := NewStore(db).Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, Bundle{
		Tenant:           "acme",
		ShopDomain:       "acme.myshopify.com",
		AccessToken:      "shpat_123",
		UnleashedAPIID:   "id",
		UnleashedAPIKey:  "key",
		DefaultWarehouse: "WH1",
	}, b)
}

func TestStore_LookupUnknownTenant(t *testing.T) {
	_, err := NewStore(testDB(t)).Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LookupMissingCredential(t *testing.T) {
	db := testDB(t)
	seed(t, db, shopifyConnector("acme"))

	_, err := NewStore(db).Lookup(context.Background(), "acme")
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "unleashed api_id")
}

func TestStore_LookupIgnoresInactive(t *testing.T) {
	db := testDB(t)
	inactive := unleashedConnector("acme")
	inactive.Status = models.ConnectorStatusInactive
	seed(t, db, shopifyConnector("acme"), inactive)

	_, err := NewStore(db).Lookup(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestStore_SaveShopifyToken(t *testing.T) {
	db := testDB(t)
	seed(t, db, unleashedConnector("acme"))
	store := NewStore(db)

	_, err := store.SaveShopifyToken(context.Background(), "acme", "acme.myshopify.com", "first")
	require.NoError(t, err)
	_, err = store.SaveShopifyToken(context.Background(), "acme", "acme.myshopify.com", "second")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Connector{}).Where("tenant = ? AND type = ?", "acme", models.ConnectorTypeShopify).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	b, err := store.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "second", b.AccessToken)
}

func TestStore_MarkSynced(t *testing.T) {
	db := testDB(t)
	seed(t, db, shopifyConnector("acme"), unleashedConnector("acme"))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, NewStore(db).MarkSynced(context.Background(), "acme", at))

	var connectors []models.Connector
	require.NoError(t, db.Where("tenant = ?", "acme").Find(&connectors).Error)
	for _, c := range connectors {
		require.NotNil(t, c.LastSync)
		assert.True(t, c.LastSync.Equal(at))
	}
}
