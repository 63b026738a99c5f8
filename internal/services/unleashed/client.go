package unleashed

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stocksync/internal/logger"
)

const DefaultBaseURL = "https://api.unleashedsoftware.com"

type Client struct {
	baseURL    string
	apiID      string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, apiID, apiKey string, pageSize int, logger *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiID:    apiID,
		apiKey:   apiKey,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Sign returns the request signature: the base64 HMAC-SHA256 of the raw query
// string keyed with the API key. An empty query is signed as "".
func Sign(rawQuery, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(rawQuery))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// get performs a signed GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	rawQuery := query.Encode()
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-auth-id", c.apiID)
	req.Header.Set("api-auth-signature", Sign(rawQuery, c.apiKey))
	req.Header.Set("client-type", "stocksync/sync")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// getAll walks every page of a paginated resource. The page number is a path
// segment; query carries the remaining filters.
func getAll[T any](ctx context.Context, c *Client, resource string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("pageSize", strconv.Itoa(c.pageSize))

	var all []T
	for page := 1; ; page++ {
		var env envelope[T]
		if err := c.get(ctx, fmt.Sprintf("%s/%d", resource, page), query, &env); err != nil {
			return nil, err
		}
		all = append(all, env.Items...)

		c.logger.Debug("Fetched %s page %d/%d (%d items)", resource, page, env.Pagination.NumberOfPages, len(env.Items))
		if len(env.Items) == 0 || page >= env.Pagination.NumberOfPages {
			break
		}
	}
	return all, nil
}

type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unleashed %s failed: %d - %s", e.Path, e.StatusCode, e.Body)
}
