package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inventory-console/internal/models"
	"inventory-console/internal/pagination"
	"inventory-console/internal/query"
)

var (
	// ErrLoadFailed wraps every transport, status or decoding failure of the latest request
	ErrLoadFailed = errors.New("inventory load failed")
	// ErrStaleResponse is returned when a newer request was issued before this one completed
	ErrStaleResponse = errors.New("response superseded by a newer request")
	// ErrInvalidFilter is returned for a filter name outside the known set
	ErrInvalidFilter = errors.New("unknown filter field")
)

// Fetch outcomes reported to Metrics
const (
	OutcomeApplied   = "applied"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// Fetcher loads one page of items from the backend
type Fetcher interface {
	ListItems(ctx context.Context, params query.Parameters) (*models.FetchResult, error)
}

// Notifier shows transient messages to the user
type Notifier interface {
	Notify(level, title, message string) models.Notification
}

// Metrics records fetch outcomes
type Metrics interface {
	RecordFetch(ctx context.Context, outcome string, duration time.Duration)
}

// Options configures one list view. Columns is the subset of columns the page shows.
type Options struct {
	PageSize   int
	PageWindow int
	Columns    []string
	Metrics    Metrics
	Logger     *slog.Logger
}

// DefaultColumns is the full column set of the inventory list
var DefaultColumns = []string{
	"name", "shelfNumber", "category", "manufacturer",
	"currentQuantity", "reorderThreshold", "optimalQuantity", "unit", "status",
}

// Controller holds the state of one inventory list view and mediates between the
// user's interactions and the backend. Only the response of the most recently
// issued request is ever applied.
type Controller struct {
	fetcher    Fetcher
	notifier   Notifier
	metrics    Metrics
	logger     *slog.Logger
	pageSize   int
	pageWindow int
	columns    []string

	mu        sync.Mutex
	params    query.Parameters
	issued    uint64
	result    models.FetchResult
	loaded    bool
	loading   bool
	lastError string
}

// State is the JSON view of a controller
type State struct {
	Params      query.Parameters       `json:"params"`
	Items       []models.InventoryItem `json:"items"`
	TotalItems  int                    `json:"totalItems"`
	TotalPages  int                    `json:"totalPages"`
	CurrentPage int                    `json:"currentPage"`
	Pages       []int                  `json:"pages"`
	HasPrev     bool                   `json:"hasPrev"`
	HasNext     bool                   `json:"hasNext"`
	Loading     bool                   `json:"loading"`
	Loaded      bool                   `json:"loaded"`
	Columns     []string               `json:"columns"`
	LastError   string                 `json:"lastError,omitempty"`
}

// NewController creates a controller with default parameters. Nothing is fetched until Mount.
func NewController(fetcher Fetcher, notifier Notifier, opts Options) *Controller {
	if opts.PageSize < 1 {
		opts.PageSize = query.DefaultPageSize
	}
	if opts.PageWindow < 1 {
		opts.PageWindow = 5
	}
	if len(opts.Columns) == 0 {
		opts.Columns = DefaultColumns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		fetcher:    fetcher,
		notifier:   notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		pageSize:   opts.PageSize,
		pageWindow: opts.PageWindow,
		columns:    append([]string(nil), opts.Columns...),
		params:     query.New(opts.PageSize),
		result:     models.FetchResult{Items: []models.InventoryItem{}},
	}
}

// Mount issues the first fetch with default parameters. Later calls, concurrent ones
// included, do nothing.
func (c *Controller) Mount(ctx context.Context) error {
	_, _, err := c.loadWith(ctx, func(query.Parameters) (query.Parameters, bool) {
		if c.issued > 0 {
			return query.Parameters{}, false
		}
		return query.New(c.pageSize), true
	})
	return err
}

// Load fetches the page described by params. params becomes the current selection
// immediately; the response is applied only if no newer request was issued meanwhile.
// On failure the previous items stay in place and one error notification is shown.
func (c *Controller) Load(ctx context.Context, params query.Parameters) (*models.FetchResult, error) {
	result, _, err := c.loadWith(ctx, func(query.Parameters) (query.Parameters, bool) {
		return params, true
	})
	return result, err
}

// loadWith derives the next parameters from the current ones and issues them in the
// same critical section, so concurrent interactions each build on the previous one.
// next runs with c.mu held; returning false issues nothing.
func (c *Controller) loadWith(ctx context.Context, next func(current query.Parameters) (query.Parameters, bool)) (*models.FetchResult, bool, error) {
	c.mu.Lock()
	params, ok := next(c.params)
	if !ok {
		c.mu.Unlock()
		return nil, false, nil
	}
	c.issued++
	seq := c.issued
	c.params = params
	c.loading = true
	c.mu.Unlock()

	result, err := c.fetch(ctx, seq, params)
	return result, true, err
}

// fetch performs request seq and applies its outcome if it is still the latest
func (c *Controller) fetch(ctx context.Context, seq uint64, params query.Parameters) (*models.FetchResult, error) {
	c.logger.Debug("Inventory fetch issued",
		"seq", seq,
		"page", params.Page,
		"sort_field", params.SortField,
		"sort_order", params.SortOrder)

	start := time.Now()
	result, err := c.fetcher.ListItems(ctx, params)
	duration := time.Since(start)

	c.mu.Lock()
	if seq != c.issued {
		latest := c.issued
		c.mu.Unlock()

		c.recordFetch(ctx, OutcomeDiscarded, duration)
		c.logger.Debug("Discarding stale inventory response",
			"seq", seq,
			"latest_seq", latest,
			"failed", err != nil)
		return nil, ErrStaleResponse
	}

	c.loading = false
	if err != nil {
		c.lastError = err.Error()
		c.mu.Unlock()

		c.recordFetch(ctx, OutcomeFailed, duration)
		c.logger.Warn("Inventory fetch failed",
			"seq", seq,
			"page", params.Page,
			"error", err)
		c.notifier.Notify(models.NotificationError, "エラー", "データの取得に失敗しました。もう一度お試しください。")
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	items := make([]models.InventoryItem, len(result.Items))
	copy(items, result.Items)
	c.result = models.FetchResult{Items: items, TotalItems: result.TotalItems}
	c.loaded = true
	c.lastError = ""
	c.mu.Unlock()

	c.recordFetch(ctx, OutcomeApplied, duration)
	c.logger.Debug("Inventory fetch applied",
		"seq", seq,
		"items", len(items),
		"total_items", result.TotalItems,
		"duration_ms", duration.Milliseconds())

	return result, nil
}

// Refresh re-issues the current parameters, e.g. after a failure or a stock change
func (c *Controller) Refresh(ctx context.Context) error {
	_, _, err := c.loadWith(ctx, func(current query.Parameters) (query.Parameters, bool) {
		return current, true
	})
	return err
}

// Search replaces all filters (explicit search submit) and fetches the first page
func (c *Controller) Search(ctx context.Context, filters query.Filters) error {
	_, _, err := c.loadWith(ctx, func(current query.Parameters) (query.Parameters, bool) {
		return current.WithFilters(filters), true
	})
	return err
}

// SetFilter changes one filter and fetches the first page
func (c *Controller) SetFilter(ctx context.Context, field query.Filter, value string) error {
	switch field {
	case query.FilterSearchTerm, query.FilterShelfNumber, query.FilterCategory, query.FilterManufacturer:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFilter, field)
	}
	_, _, err := c.loadWith(ctx, func(current query.Parameters) (query.Parameters, bool) {
		return current.WithFilter(field, value), true
	})
	return err
}

// Params returns the current selection
func (c *Controller) Params() query.Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// State returns a copy of the view state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	pager := c.pagerLocked()
	items := make([]models.InventoryItem, len(c.result.Items))
	copy(items, c.result.Items)

	return State{
		Params:      c.params,
		Items:       items,
		TotalItems:  c.result.TotalItems,
		TotalPages:  pager.TotalPages(),
		CurrentPage: c.params.Page,
		Pages:       pager.Window(c.pageWindow),
		HasPrev:     pager.HasPrev(),
		HasNext:     pager.HasNext(),
		Loading:     c.loading,
		Loaded:      c.loaded,
		Columns:     append([]string(nil), c.columns...),
		LastError:   c.lastError,
	}
}

func (c *Controller) pagerLocked() pagination.State {
	return pagination.State{
		CurrentPage: c.params.Page,
		PageSize:    c.params.PageSize,
		TotalItems:  c.result.TotalItems,
	}
}

func (c *Controller) recordFetch(ctx context.Context, outcome string, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordFetch(ctx, outcome, duration)
	}
}
