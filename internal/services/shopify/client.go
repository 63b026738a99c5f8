package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stocksync/internal/logger"
)

const DefaultAPIVersion = "2025-01"

type Client struct {
	shopDomain  string
	accessToken string
	endpoint    string
	httpClient  *http.Client
	logger      *logger.Logger

	// MaxRetries bounds the attempts made for a throttled request.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewClient(shopDomain, accessToken, apiVersion string, logger *logger.Logger) *Client {
	domain := NormalizeShopDomain(shopDomain)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		shopDomain:  domain,
		accessToken: accessToken,
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, apiVersion),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		MaxRetries: 8,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// WithEndpoint points the client at a different GraphQL URL.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// NormalizeShopDomain accepts "shop", "shop.myshopify.com" or a full URL and
// returns the bare myshopify host.
func NormalizeShopDomain(shop string) string {
	shop = strings.TrimSpace(shop)
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimSuffix(shop, "/")
	if shop != "" && !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}
	return shop
}

func (c *Client) ShopDomain() string {
	return c.shopDomain
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message    string        `json:"message"`
	Path       []interface{} `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// GraphQLErrors is a top-level errors array returned with HTTP 200.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphQL errors: " + strings.Join(msgs, "; ")
}

func (e GraphQLErrors) throttled() bool {
	for _, err := range e {
		if err.Extensions.Code == "THROTTLED" || strings.Contains(strings.ToLower(err.Message), "throttled") {
			return true
		}
	}
	return false
}

// HTTPError is a non-200 response from the Admin API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("shopify API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Do executes a query or mutation and decodes its data into out. Throttled
// responses are retried with exponential backoff until MaxRetries or ctx ends.
func (c *Client) Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	var err error
	for attempt := 0; ; attempt++ {
		var data json.RawMessage
		data, err = c.execute(ctx, query, variables)
		if err == nil {
			if out == nil {
				return nil
			}
			if uerr := json.Unmarshal(data, out); uerr != nil {
				return fmt.Errorf("failed to decode response data: %w", uerr)
			}
			return nil
		}
		if !retriable(err) || attempt+1 >= c.MaxRetries {
			return err
		}

		delay := c.BaseDelay * time.Duration(1<<attempt)
		if delay > c.MaxDelay || delay <= 0 {
			delay = c.MaxDelay
		}
		c.logger.Debug("Shopify request throttled, retrying in %s (attempt %d)", delay, attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, GraphQLErrors(gqlResp.Errors)
	}
	return gqlResp.Data, nil
}

func retriable(err error) bool {
	switch e := err.(type) {
	case GraphQLErrors:
		return e.throttled()
	case *HTTPError:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}
