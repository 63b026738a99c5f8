package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/logger"
)

// Scopes needed to read and write locations, customers, products, inventory
// and files.
var Scopes = []string{
	"read_locations", "write_locations",
	"read_customers", "write_customers",
	"read_products", "write_products",
	"read_inventory", "write_inventory",
	"read_files", "write_files",
}

type OAuthService struct {
	config     *config.Config
	logger     *logger.Logger
	httpClient *http.Client
}

func NewOAuthService(cfg *config.Config, logger *logger.Logger) *OAuthService {
	return &OAuthService{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateAuthURL creates the Shopify OAuth authorization URL and the state
// value the callback must echo.
func (s *OAuthService) GenerateAuthURL(shopDomain string, redirectURI string) (string, string, error) {
	state, err := s.generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	q := url.Values{}
	q.Set("client_id", s.config.ShopifyClientID)
	q.Set("scope", strings.Join(Scopes, ","))
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)

	authURL := fmt.Sprintf("https://%s/admin/oauth/authorize?%s", NormalizeShopDomain(shopDomain), q.Encode())
	return authURL, state, nil
}

// ExchangeCodeForToken exchanges the authorization code for an access token.
func (s *OAuthService) ExchangeCodeForToken(ctx context.Context, shopDomain, code string) (*TokenResponse, error) {
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", NormalizeShopDomain(shopDomain))

	data := url.Values{}
	data.Set("client_id", s.config.ShopifyClientID)
	data.Set("client_secret", s.config.ShopifyClientSecret)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := parseJSONResponse(resp, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}
	return &tokenResp, nil
}

// ValidateCallback checks the hmac parameter of an OAuth callback query
// against the app secret.
func (s *OAuthService) ValidateCallback(query url.Values) bool {
	given := query.Get("hmac")
	if given == "" {
		return false
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		if k != "hmac" && k != "signature" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strings.Join(query[k], ",")
	}

	mac := hmac.New(sha256.New, []byte(s.config.ShopifyClientSecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(given))
}

func (s *OAuthService) generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func parseJSONResponse(resp *http.Response, target interface{}) error {
	return json.NewDecoder(resp.Body).Decode(target)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}
