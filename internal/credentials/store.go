// Package credentials resolves a tenant's per-platform credential bundle from
// the connectors table.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"stocksync/internal/models"
)

var (
	ErrNotFound          = errors.New("no connectors configured for tenant")
	ErrMissingCredential = errors.New("missing credential")
)

// Bundle is everything a sync run needs to talk to both platforms.
type Bundle struct {
	Tenant           string
	ShopDomain       string
	AccessToken      string
	UnleashedAPIID   string
	UnleashedAPIKey  string
	DefaultWarehouse string
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Lookup loads the tenant's active connectors. Every credential a run needs
// must be present; the first absent one is reported as ErrMissingCredential.
func (s *Store) Lookup(ctx context.Context, tenant string) (Bundle, error) {
	var connectors []models.Connector
	err := s.db.WithContext(ctx).
		Where("tenant = ? AND status <> ?", tenant, models.ConnectorStatusInactive).
		Order("created_at").
		Find(&connectors).Error
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to load connectors: %w", err)
	}
	if len(connectors) == 0 {
		return Bundle{}, fmt.Errorf("%w: %s", ErrNotFound, tenant)
	}

	b := Bundle{Tenant: tenant}
	for _, c := range connectors {
		switch c.Type {
		case models.ConnectorTypeShopify:
			b.ShopDomain = first(b.ShopDomain, c.Config[models.CredentialShopDomain], c.Credentials[models.CredentialShopDomain])
			b.AccessToken = first(b.AccessToken, c.Credentials[models.CredentialAccessToken])
		case models.ConnectorTypeUnleashed:
			b.UnleashedAPIID = first(b.UnleashedAPIID, c.Credentials[models.CredentialAPIID])
			b.UnleashedAPIKey = first(b.UnleashedAPIKey, c.Credentials[models.CredentialAPIKey])
			b.DefaultWarehouse = first(b.DefaultWarehouse, c.Config[models.ConfigDefaultWarehouse])
		}
	}

	required := []struct{ name, value string }{
		{"shopify " + models.CredentialShopDomain, b.ShopDomain},
		{"shopify " + models.CredentialAccessToken, b.AccessToken},
		{"unleashed " + models.CredentialAPIID, b.UnleashedAPIID},
		{"unleashed " + models.CredentialAPIKey, b.UnleashedAPIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Bundle{}, fmt.Errorf("%w: %s for tenant %s", ErrMissingCredential, r.name, tenant)
		}
	}
	return b, nil
}

// SaveShopifyToken stores the token obtained through OAuth, creating the
// tenant's Shopify connector if it does not exist yet.
func (s *Store) SaveShopifyToken(ctx context.Context, tenant, shopDomain, accessToken string) (*models.Connector, error) {
	var connector models.Connector
	err := s.db.WithContext(ctx).
		Where("tenant = ? AND type = ?", tenant, models.ConnectorTypeShopify).
		First(&connector).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		connector = models.Connector{
			Tenant: tenant,
			Name:   shopDomain,
			Type:   models.ConnectorTypeShopify,
			Status: models.ConnectorStatusActive,
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load shopify connector: %w", err)
	}

	if connector.Config == nil {
		connector.Config = map[string]string{}
	}
	if connector.Credentials == nil {
		connector.Credentials = map[string]string{}
	}
	connector.Config[models.CredentialShopDomain] = shopDomain
	connector.Credentials[models.CredentialAccessToken] = accessToken
	connector.Status = models.ConnectorStatusActive

	if err := s.db.WithContext(ctx).Save(&connector).Error; err != nil {
		return nil, fmt.Errorf("failed to save shopify connector: %w", err)
	}
	return &connector, nil
}

// MarkSynced stamps LastSync on every connector of the tenant.
func (s *Store) MarkSynced(ctx context.Context, tenant string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Connector{}).
		Where("tenant = ?", tenant).
		Update("last_sync", at).Error
	if err != nil {
		return fmt.Errorf("failed to mark connectors synced: %w", err)
	}
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
