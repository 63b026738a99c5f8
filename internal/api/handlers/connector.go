package handlers

import (
	"errors"
	"net/http"

	"stocksync/internal/logger"
	"stocksync/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ConnectorHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewConnectorHandler(db *gorm.DB, logger *logger.Logger) *ConnectorHandler {
	return &ConnectorHandler{
		db:     db,
		logger: logger,
	}
}

type connectorRequest struct {
	Tenant      string                 `json:"tenant" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	Type        models.ConnectorType   `json:"type" binding:"required,oneof=SHOPIFY UNLEASHED"`
	Status      models.ConnectorStatus `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE ERROR SYNCING"`
	Config      map[string]string      `json:"config"`
	Credentials map[string]string      `json:"credentials"`
}

// redact strips secrets before a connector leaves the API.
func redact(c models.Connector) models.Connector {
	c.Credentials = nil
	return c
}

func (h *ConnectorHandler) List(c *gin.Context) {
	var connectors []models.Connector

	query := h.db.WithContext(c.Request.Context()).Order("created_at")
	if tenant := c.Query("tenant"); tenant != "" {
		query = query.Where("tenant = ?", tenant)
	}
	if err := query.Find(&connectors).Error; err != nil {
		h.logger.Error("Failed to fetch connectors: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connectors"})
		return
	}

	for i := range connectors {
		connectors[i] = redact(connectors[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": connectors})
}

func (h *ConnectorHandler) load(c *gin.Context) (*models.Connector, bool) {
	var connector models.Connector
	if err := h.db.WithContext(c.Request.Context()).First(&connector, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connector not found"})
			return nil, false
		}
		h.logger.Error("Failed to fetch connector: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connector"})
		return nil, false
	}
	return &connector, true
}

func (h *ConnectorHandler) Get(c *gin.Context) {
	connector, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": redact(*connector)})
}

func (h *ConnectorHandler) Create(c *gin.Context) {
	var request connectorRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connector := models.Connector{
		Tenant:      request.Tenant,
		Name:        request.Name,
		Type:        request.Type,
		Status:      request.Status,
		Config:      request.Config,
		Credentials: request.Credentials,
	}
	if connector.Status == "" {
		connector.Status = models.ConnectorStatusActive
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&connector).Error; err != nil {
		h.logger.Error("Failed to create connector: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create connector"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": redact(connector)})
}

// Update replaces the connector's fields. Credentials left out of the body
// are kept.
func (h *ConnectorHandler) Update(c *gin.Context) {
	connector, ok := h.load(c)
	if !ok {
		return
	}

	var request connectorRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connector.Tenant = request.Tenant
	connector.Name = request.Name
	connector.Type = request.Type
	if request.Status != "" {
		connector.Status = request.Status
	}
	if request.Config != nil {
		connector.Config = request.Config
	}
	if request.Credentials != nil {
		connector.Credentials = request.Credentials
	}

	if err := h.db.WithContext(c.Request.Context()).Save(connector).Error; err != nil {
		h.logger.Error("Failed to update connector: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update connector"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": redact(*connector)})
}

func (h *ConnectorHandler) Delete(c *gin.Context) {
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Connector{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		h.logger.Error("Failed to delete connector: %v", res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connector"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connector not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
