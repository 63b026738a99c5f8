package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connector holds one platform's credentials for a tenant. A tenant's
// credential bundle is the union of its SHOPIFY and UNLEASHED connectors.
type Connector struct {
	ID          string            `json:"id" gorm:"type:uuid;primaryKey"`
	Tenant      string            `json:"tenant" gorm:"not null;index"`
	Name        string            `json:"name" gorm:"not null"`
	Type        ConnectorType     `json:"type" gorm:"not null"`
	Status      ConnectorStatus   `json:"status" gorm:"default:ACTIVE"`
	Config      map[string]string `json:"config" gorm:"serializer:json;type:text"`
	Credentials map[string]string `json:"credentials,omitempty" gorm:"serializer:json;type:text"`
	LastSync    *time.Time        `json:"last_sync"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ConnectorType string

const (
	ConnectorTypeShopify   ConnectorType = "SHOPIFY"
	ConnectorTypeUnleashed ConnectorType = "UNLEASHED"
)

type ConnectorStatus string

const (
	ConnectorStatusActive   ConnectorStatus = "ACTIVE"
	ConnectorStatusInactive ConnectorStatus = "INACTIVE"
	ConnectorStatusError    ConnectorStatus = "ERROR"
	ConnectorStatusSyncing  ConnectorStatus = "SYNCING"
)

// Credential keys stored in Connector.Credentials / Connector.Config.
const (
	CredentialShopDomain   = "shop_domain"
	CredentialAccessToken  = "access_token"
	CredentialAPIID        = "api_id"
	CredentialAPIKey       = "api_key"
	ConfigDefaultWarehouse = "default_warehouse"
)

func (c *Connector) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
