package shopify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"
)

var (
	ErrBulkTimeout = errors.New("bulk operation timed out")
	ErrBulkFailed  = errors.New("bulk operation failed")
)

// BulkMutation is the mutation text a bulk operation runs once per JSONL line.
type BulkMutation string

const (
	BulkProductSet     BulkMutation = bulkProductSetMutation
	BulkCustomerCreate BulkMutation = bulkCustomerCreateMutation
	BulkCustomerUpdate BulkMutation = bulkCustomerUpdateMutation
	BulkProductUpdate  BulkMutation = bulkProductUpdateMutation
)

type BulkOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

func (o BulkOptions) withDefaults() BulkOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Minute
	}
	return o
}

// BulkResult is the outcome of one input line. Line is the zero-based index
// into the submitted variables.
type BulkResult struct {
	Line       int        `json:"line"`
	ID         string     `json:"id,omitempty"`
	UserErrors UserErrors `json:"userErrors,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (r BulkResult) Failed() bool {
	return len(r.UserErrors) > 0 || r.Error != ""
}

type stagedTarget struct {
	URL         string `json:"url"`
	ResourceURL string `json:"resourceUrl"`
	Parameters  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters"`
}

func (t stagedTarget) key() string {
	for _, p := range t.Parameters {
		if p.Name == "key" {
			return p.Value
		}
	}
	return ""
}

type bulkOperation struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode"`
	ObjectCount    string `json:"objectCount"`
	URL            string `json:"url"`
	PartialDataURL string `json:"partialDataUrl"`
}

// RunBulkMutation stages one JSONL line per variables entry, runs the bulk
// mutation, waits for it to finish and returns the per-line results sorted by
// line. Lines the platform reported nothing for are absent from the result.
func (c *Client) RunBulkMutation(ctx context.Context, mutation BulkMutation, variables []map[string]interface{}, opts BulkOptions) ([]BulkResult, error) {
	if len(variables) == 0 {
		return nil, nil
	}
	opts = opts.withDefaults()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range variables {
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode bulk variables: %w", err)
		}
	}

	target, err := c.stageUpload(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.upload(ctx, target, buf.Bytes()); err != nil {
		return nil, err
	}

	op, err := c.startBulk(ctx, string(mutation), target.key())
	if err != nil {
		return nil, err
	}
	c.logger.Info("Started bulk operation %s with %d lines", op.ID, len(variables))

	done, err := c.awaitBulk(ctx, op.ID, opts)
	if err != nil {
		return nil, err
	}

	resultURL := done.URL
	if resultURL == "" {
		resultURL = done.PartialDataURL
	}
	if resultURL == "" {
		return nil, nil
	}
	return c.downloadResults(ctx, resultURL)
}

func (c *Client) stageUpload(ctx context.Context) (*stagedTarget, error) {
	var resp struct {
		StagedUploadsCreate struct {
			StagedTargets []stagedTarget `json:"stagedTargets"`
			UserErrors    []UserError    `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	vars := map[string]interface{}{"input": []map[string]interface{}{{
		"resource":   "BULK_MUTATION_VARIABLES",
		"filename":   "bulk_op_vars",
		"mimeType":   "text/jsonl",
		"httpMethod": "POST",
	}}}
	if err := c.Do(ctx, stagedUploadsCreateMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := userErrors(resp.StagedUploadsCreate.UserErrors); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	if len(resp.StagedUploadsCreate.StagedTargets) == 0 {
		return nil, fmt.Errorf("failed to stage upload: no target returned")
	}
	return &resp.StagedUploadsCreate.StagedTargets[0], nil
}

func (c *Client) upload(ctx context.Context, target *stagedTarget, payload []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, p := range target.Parameters {
		if err := form.WriteField(p.Name, p.Value); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := form.CreateFormFile("file", "bulk_op_vars.jsonl")
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload bulk variables: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("failed to upload bulk variables: status %d, body: %s", resp.StatusCode, string(b))
	}
	return nil
}

func (c *Client) startBulk(ctx context.Context, mutation, stagedPath string) (*bulkOperation, error) {
	var resp struct {
		BulkOperationRunMutation struct {
			BulkOperation *bulkOperation `json:"bulkOperation"`
			UserErrors    []UserError    `json:"userErrors"`
		} `json:"bulkOperationRunMutation"`
	}
	vars := map[string]interface{}{"mutation": mutation, "stagedUploadPath": stagedPath}
	if err := c.Do(ctx, bulkOperationRunMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("failed to start bulk operation: %w", err)
	}
	if err := userErrors(resp.BulkOperationRunMutation.UserErrors); err != nil {
		return nil, fmt.Errorf("failed to start bulk operation: %w", err)
	}
	if resp.BulkOperationRunMutation.BulkOperation == nil {
		return nil, fmt.Errorf("failed to start bulk operation: no operation returned")
	}
	return resp.BulkOperationRunMutation.BulkOperation, nil
}

// awaitBulk polls the operation until it reaches a terminal status. The
// timeout is a hard limit; an expired wait is reported as ErrBulkTimeout and
// not retried.
func (c *Client) awaitBulk(ctx context.Context, id string, opts BulkOptions) (*bulkOperation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		var resp struct {
			Node *bulkOperation `json:"node"`
		}
		err := c.Do(pollCtx, bulkOperationQuery, map[string]interface{}{"id": id}, &resp)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return nil, fmt.Errorf("%w: %s after %s", ErrBulkTimeout, id, opts.Timeout)
			}
			return nil, fmt.Errorf("failed to poll bulk operation %s: %w", id, err)
		}

		if op := resp.Node; op != nil {
			switch op.Status {
			case "COMPLETED":
				c.logger.Info("Bulk operation %s completed (%s objects)", id, op.ObjectCount)
				return op, nil
			case "FAILED", "CANCELED", "CANCELLED", "EXPIRED":
				return nil, fmt.Errorf("%w: %s status %s, error code %s", ErrBulkFailed, id, op.Status, op.ErrorCode)
			}
			c.logger.Debug("Bulk operation %s is %s", id, op.Status)
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s after %s", ErrBulkTimeout, id, opts.Timeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) downloadResults(ctx context.Context, url string) ([]BulkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download bulk results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download bulk results: status %d", resp.StatusCode)
	}
	return ParseBulkResults(resp.Body)
}

// ParseBulkResults reads a bulk mutation result file. Each line holds the
// mutation response for one input line plus its __lineNumber.
func ParseBulkResults(r io.Reader) ([]BulkResult, error) {
	var results []BulkResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line struct {
			Data       map[string]map[string]json.RawMessage `json:"data"`
			Errors     []GraphQLError                        `json:"errors"`
			LineNumber int                                   `json:"__lineNumber"`
		}
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("failed to parse bulk result line: %w", err)
		}

		result := BulkResult{Line: line.LineNumber}
		if len(line.Errors) > 0 {
			result.Error = GraphQLErrors(line.Errors).Error()
		}
		for _, payload := range line.Data {
			for key, value := range payload {
				if key == "userErrors" {
					var errs []UserError
					if err := json.Unmarshal(value, &errs); err == nil && len(errs) > 0 {
						result.UserErrors = errs
					}
					continue
				}
				var node *idNode
				if err := json.Unmarshal(value, &node); err == nil && node != nil && node.ID != "" {
					result.ID = node.ID
				}
			}
		}
		results = append(results, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bulk results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Line < results[j].Line })
	return results, nil
}
