package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"inventory-console/internal/models"
	"inventory-console/internal/normalize"
	"inventory-console/internal/query"
)

// StatusError is returned for any non-2xx backend response
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// InventoryClient talks to the inventory REST backend
type InventoryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	normalizer *normalize.Normalizer
}

// NewInventoryClient creates a new inventory client. timeout <= 0 means 5 seconds.
func NewInventoryClient(baseURL, apiKey string, timeout time.Duration, normalizer *normalize.Normalizer) *InventoryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		normalizer: normalizer,
	}
}

// ListItems retrieves one page of items for the given parameters
func (c *InventoryClient) ListItems(ctx context.Context, params query.Parameters) (*models.FetchResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/inventory/items", params.Values(), nil)
	if err != nil {
		return nil, err
	}

	result, err := c.normalizer.List(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode item list: %w", err)
	}

	slog.Debug("Inventory page fetched",
		"page", params.Page,
		"per_page", params.PageSize,
		"items", len(result.Items),
		"total_items", result.TotalItems)

	return result, nil
}

// GetItem retrieves a single item
func (c *InventoryClient) GetItem(ctx context.Context, id int64) (models.InventoryItem, error) {
	body, err := c.do(ctx, http.MethodGet, itemPath(id), nil, nil)
	if err != nil {
		return models.InventoryItem{}, err
	}
	item, err := c.normalizer.ItemJSON(body)
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("failed to decode item %d: %w", id, err)
	}
	return item, nil
}

// CreateItem registers a new item
func (c *InventoryClient) CreateItem(ctx context.Context, form models.ItemForm) (models.InventoryItem, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/inventory/items", nil, models.ItemPayload{Item: form})
	if err != nil {
		return models.InventoryItem{}, err
	}
	item, err := c.normalizer.ItemJSON(body)
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("failed to decode created item: %w", err)
	}
	return item, nil
}

// UpdateItem replaces the editable fields of an item
func (c *InventoryClient) UpdateItem(ctx context.Context, id int64, form models.ItemForm) (models.InventoryItem, error) {
	body, err := c.do(ctx, http.MethodPut, itemPath(id), nil, models.ItemPayload{Item: form})
	if err != nil {
		return models.InventoryItem{}, err
	}
	item, err := c.normalizer.ItemJSON(body)
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("failed to decode updated item %d: %w", id, err)
	}
	return item, nil
}

// RecordUsage sends consumed quantities keyed by item id
func (c *InventoryClient) RecordUsage(ctx context.Context, usages map[int64]int) error {
	_, err := c.do(ctx, http.MethodPost, "/api/inventory/usage", nil, usages)
	return err
}

// Categories lists the categories used by the category filter
func (c *InventoryClient) Categories(ctx context.Context) ([]models.Lookup, error) {
	return c.lookups(ctx, "/api/categories")
}

// Manufacturers lists the manufacturers used by the manufacturer filter
func (c *InventoryClient) Manufacturers(ctx context.Context) ([]models.Lookup, error) {
	return c.lookups(ctx, "/api/manufacturers")
}

// CreateCategory registers a new category
func (c *InventoryClient) CreateCategory(ctx context.Context, name string) (models.Lookup, error) {
	return c.createLookup(ctx, "/api/categories", name)
}

// CreateManufacturer registers a new manufacturer
func (c *InventoryClient) CreateManufacturer(ctx context.Context, name string) (models.Lookup, error) {
	return c.createLookup(ctx, "/api/manufacturers", name)
}

func (c *InventoryClient) lookups(ctx context.Context, path string) ([]models.Lookup, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	lookups, err := normalize.Lookups(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return lookups, nil
}

func (c *InventoryClient) createLookup(ctx context.Context, path, name string) (models.Lookup, error) {
	body, err := c.do(ctx, http.MethodPost, path, nil, models.LookupRequest{Name: name})
	if err != nil {
		return models.Lookup{}, err
	}
	var created models.Lookup
	if err := json.Unmarshal(body, &created); err != nil {
		return models.Lookup{}, fmt.Errorf("failed to decode created lookup: %w: %v", normalize.ErrMalformed, err)
	}
	return created, nil
}

// do performs one request and returns the body of a 2xx response
func (c *InventoryClient) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

func itemPath(id int64) string {
	return "/api/inventory/items/" + strconv.FormatInt(id, 10)
}
