package handlers

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/services/shopify"

	"github.com/gin-gonic/gin"
)

// stateTTL bounds how long an install may take between redirect and callback.
const stateTTL = 10 * time.Minute

type OAuthFlow interface {
	GenerateAuthURL(shopDomain, redirectURI string) (string, string, error)
	ExchangeCodeForToken(ctx context.Context, shopDomain, code string) (*shopify.TokenResponse, error)
	ValidateCallback(query url.Values) bool
}

type TokenStore interface {
	SaveShopifyToken(ctx context.Context, tenant, shopDomain, accessToken string) (*models.Connector, error)
}

type pendingInstall struct {
	tenant  string
	shop    string
	expires time.Time
}

// ShopifyHandler runs the OAuth install that stores a tenant's Admin API
// token.
type ShopifyHandler struct {
	oauth  OAuthFlow
	tokens TokenStore
	logger *logger.Logger

	mu      sync.Mutex
	pending map[string]pendingInstall
	now     func() time.Time
}

func NewShopifyHandler(oauth OAuthFlow, tokens TokenStore, logger *logger.Logger) *ShopifyHandler {
	return &ShopifyHandler{
		oauth:   oauth,
		tokens:  tokens,
		logger:  logger,
		pending: make(map[string]pendingInstall),
		now:     time.Now,
	}
}

// Install initiates the Shopify OAuth flow
func (h *ShopifyHandler) Install(c *gin.Context) {
	var request struct {
		Tenant      string `json:"tenant" binding:"required"`
		ShopDomain  string `json:"shop_domain" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required,url"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authURL, state, err := h.oauth.GenerateAuthURL(request.ShopDomain, request.RedirectURI)
	if err != nil {
		h.logger.Error("Failed to generate auth URL: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authorization URL"})
		return
	}

	h.mu.Lock()
	now := h.now()
	for s, p := range h.pending {
		if now.After(p.expires) {
			delete(h.pending, s)
		}
	}
	h.pending[state] = pendingInstall{
		tenant:  request.Tenant,
		shop:    shopify.NormalizeShopDomain(request.ShopDomain),
		expires: now.Add(stateTTL),
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
		"message":  "Redirect user to the auth_url to complete OAuth flow",
	})
}

func (h *ShopifyHandler) takeState(state, shop string) (pendingInstall, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[state]
	if !ok {
		return pendingInstall{}, false
	}
	delete(h.pending, state)
	if h.now().After(p.expires) || p.shop != shopify.NormalizeShopDomain(shop) {
		return pendingInstall{}, false
	}
	return p, true
}

// Callback handles the OAuth callback
func (h *ShopifyHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	shop := c.Query("shop")

	if code == "" || state == "" || shop == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}
	if !h.oauth.ValidateCallback(c.Request.URL.Query()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid callback signature"})
		return
	}
	install, ok := h.takeState(state, shop)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or expired install state"})
		return
	}

	tokenResp, err := h.oauth.ExchangeCodeForToken(c.Request.Context(), install.shop, code)
	if err != nil {
		h.logger.Error("Failed to exchange code for token: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	connector, err := h.tokens.SaveShopifyToken(c.Request.Context(), install.tenant, install.shop, tokenResp.AccessToken)
	if err != nil {
		h.logger.Error("Failed to save connector: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save connector"})
		return
	}

	h.logger.Info("Shopify store %s connected for tenant %s", install.shop, install.tenant)
	c.JSON(http.StatusOK, gin.H{
		"message":      "Shopify store connected successfully",
		"connector_id": connector.ID,
		"tenant":       install.tenant,
	})
}
