package rulestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client is a thin HTTP client for a tabular REST store (PostgREST-style):
// filtered GETs with limit/offset paging, POST inserts that return the
// created representation, and PATCH updates with bounded retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	pageSize   int
	maxRetries int
	logger     *zap.Logger
}

// ClientConfig holds the client settings
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	PageSize       int
	MaxRetries     int
}

// NewClient creates a Client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		pageSize:   pageSize,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// GetAll fetches every row of a table page by page and returns the
// concatenated raw JSON rows
func (c *Client) GetAll(ctx context.Context, table string, filter url.Values) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	offset := 0
	for {
		page, err := c.getPage(ctx, table, filter, c.pageSize, offset)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if len(page) < c.pageSize {
			return rows, nil
		}
		offset += c.pageSize
	}
}

func (c *Client) getPage(ctx context.Context, table string, filter url.Values, limit, offset int) ([]json.RawMessage, error) {
	params := url.Values{}
	for k, vs := range filter {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?%s", c.baseURL, table, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus("GET", table, resp)
	}

	var page []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("GET %s decode failed: %w", table, err)
	}
	return page, nil
}

// Insert posts rows to a table and decodes the returned representation into
// out when out is non-nil
func (c *Client) Insert(ctx context.Context, table string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("POST %s encode failed: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.baseURL, table), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return unexpectedStatus("POST", table, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("POST %s decode failed: %w", table, err)
		}
	}
	return nil
}

// Patch updates the rows matching the filter, retrying transient failures
// with a short backoff
func (c *Client) Patch(ctx context.Context, table string, filter url.Values, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("PATCH %s encode failed: %w", table, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
			fmt.Sprintf("%s/%s?%s", c.baseURL, table, filter.Encode()), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("PATCH %s failed: %w", table, err)
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return nil
			}
			lastErr = unexpectedStatus("PATCH", table, resp)
			if resp.StatusCode < 500 {
				// client errors will not resolve on retry
				return lastErr
			}
		}

		c.logger.Warn("rule store update failed, retrying",
			zap.String("table", table),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return lastErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}
}

func unexpectedStatus(method, table string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s %s: unexpected status %d: %s", method, table, resp.StatusCode, string(body))
}
