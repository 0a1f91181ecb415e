package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-console/internal/cache"
	"inventory-console/internal/client"
	"inventory-console/internal/logging"
	"inventory-console/internal/middleware"
	"inventory-console/internal/models"
	"inventory-console/internal/query"
	"inventory-console/internal/session"
	"inventory-console/internal/status"
	"inventory-console/internal/view"
)

func intPtr(v int) *int { return &v }

type fakeBackend struct {
	mu sync.Mutex

	listCalls []query.Parameters
	listErr   error
	total     int

	categoryCalls int
	categories    []models.Lookup
	createdNames  []string

	items       map[int64]models.InventoryItem
	createdForm *models.ItemForm
	usages      map[int64]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		total:      25,
		categories: []models.Lookup{{ID: 1, Name: "Hardware"}},
		items: map[int64]models.InventoryItem{
			1: {ID: 1, Name: "Bolt", CurrentQuantity: intPtr(5), ReorderThreshold: intPtr(10), OptimalQuantity: intPtr(50), Status: status.NeedsOrder},
		},
	}
}

func (f *fakeBackend) ListItems(ctx context.Context, params query.Parameters) (*models.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, params)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &models.FetchResult{Items: []models.InventoryItem{f.items[1]}, TotalItems: f.total}, nil
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeBackend) GetItem(ctx context.Context, id int64) (models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return models.InventoryItem{}, &client.StatusError{Method: http.MethodGet, Path: "/api/inventory/items", StatusCode: http.StatusNotFound}
	}
	return item, nil
}

func (f *fakeBackend) CreateItem(ctx context.Context, form models.ItemForm) (models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdForm = &form
	return models.InventoryItem{ID: 2, Name: form.Name}, nil
}

func (f *fakeBackend) UpdateItem(ctx context.Context, id int64, form models.ItemForm) (models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return models.InventoryItem{}, &client.StatusError{Method: http.MethodPut, Path: "/api/inventory/items", StatusCode: http.StatusNotFound}
	}
	return models.InventoryItem{ID: id, Name: form.Name}, nil
}

func (f *fakeBackend) RecordUsage(ctx context.Context, usages map[int64]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usages = usages
	return nil
}

func (f *fakeBackend) Categories(ctx context.Context) ([]models.Lookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryCalls++
	return f.categories, nil
}

func (f *fakeBackend) Manufacturers(ctx context.Context) ([]models.Lookup, error) {
	return []models.Lookup{{ID: 1, Name: "Acme"}}, nil
}

func (f *fakeBackend) CreateCategory(ctx context.Context, name string) (models.Lookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdNames = append(f.createdNames, name)
	created := models.Lookup{ID: int64(len(f.categories) + 1), Name: name}
	f.categories = append(f.categories, created)
	return created, nil
}

func (f *fakeBackend) CreateManufacturer(ctx context.Context, name string) (models.Lookup, error) {
	return models.Lookup{ID: 9, Name: name}, nil
}

type testConsole struct {
	router    *mux.Router
	backend   *fakeBackend
	sessions  *session.Store
	sessionID string
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	backend := newFakeBackend()
	sessions := session.NewStore(session.StoreConfig{Fetcher: backend, Logger: logging.Discard()})
	lookups := cache.NewTTLCache[[]models.Lookup]("lookups", time.Minute, time.Hour)
	t.Cleanup(sessions.Close)
	t.Cleanup(lookups.Stop)

	router := NewRouter(RouterConfig{
		Sessions:    sessions,
		Backend:     backend,
		LookupCache: lookups,
		PageSize:    10,
		SessionTTL:  time.Hour,
	})
	return &testConsole{router: router, backend: backend, sessions: sessions, sessionID: uuid.NewString()}
}

func (c *testConsole) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: c.sessionID})
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) view.State {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state view.State
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&state))
	return state
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))
	c.do(t, http.MethodGet, "/v1/lookups/categories", nil)

	rec := c.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status         string        `json:"status"`
		ActiveSessions int           `json:"active_sessions"`
		Caches         []cache.Stats `json:"caches"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.ActiveSessions)
	require.Len(t, body.Caches, 2)
	assert.Equal(t, "sessions", body.Caches[0].Name)
	assert.Equal(t, 1, body.Caches[0].ActiveEntries)
	assert.Equal(t, "lookups", body.Caches[1].Name)
	assert.Equal(t, 1, body.Caches[1].ActiveEntries)
}

func TestGetView_MountsOnce(t *testing.T) {
	c := newTestConsole(t)

	state := decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Bolt", state.Items[0].Name)
	assert.Equal(t, status.NeedsOrder, state.Items[0].Status)
	assert.Equal(t, 3, state.TotalPages)
	assert.Equal(t, 1, state.CurrentPage)
	assert.Equal(t, []int{1, 2, 3}, state.Pages)

	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))
	assert.Equal(t, 1, c.backend.listCount())
}

func TestGetView_QueryStringLoadsParameters(t *testing.T) {
	c := newTestConsole(t)

	state := decodeState(t, c.do(t, http.MethodGet, "/v1/view?page=2&category=Hardware&sortField=name&sortOrder=desc", nil))
	assert.Equal(t, 2, state.CurrentPage)
	assert.Equal(t, "Hardware", state.Params.Category)
	assert.Equal(t, query.SortByName, state.Params.SortField)
	assert.Equal(t, query.Descending, state.Params.SortOrder)
}

func TestGetView_UnrelatedQueryKeepsSelection(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))
	decodeState(t, c.do(t, http.MethodPost, "/v1/view/filter", models.ViewFilterRequest{Field: "category", Value: "Hardware"}))
	require.Equal(t, 2, c.backend.listCount())

	state := decodeState(t, c.do(t, http.MethodGet, "/v1/view?_=1700000000", nil))
	assert.Equal(t, "Hardware", state.Params.Category)
	assert.Equal(t, 2, c.backend.listCount())
}

func TestViewInteractions(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))

	state := decodeState(t, c.do(t, http.MethodPost, "/v1/view/page", models.ViewPageRequest{Page: 3}))
	assert.Equal(t, 3, state.CurrentPage)

	state = decodeState(t, c.do(t, http.MethodPost, "/v1/view/sort", models.ViewSortRequest{Field: "currentQuantity"}))
	assert.Equal(t, query.SortByCurrentQuantity, state.Params.SortField)
	assert.Equal(t, 1, state.CurrentPage)

	state = decodeState(t, c.do(t, http.MethodPost, "/v1/view/filter", models.ViewFilterRequest{Field: "manufacturer", Value: "Acme"}))
	assert.Equal(t, "Acme", state.Params.Manufacturer)

	state = decodeState(t, c.do(t, http.MethodPost, "/v1/view/search", query.Filters{SearchTerm: "bolt", Category: "すべて"}))
	assert.Equal(t, "bolt", state.Params.SearchTerm)
	assert.Empty(t, state.Params.Manufacturer)
	assert.Empty(t, state.Params.Category)

	decodeState(t, c.do(t, http.MethodPost, "/v1/view/refresh", nil))
	assert.Equal(t, 6, c.backend.listCount())
}

func TestGoToPage_OutOfRangeDoesNotFetch(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))

	state := decodeState(t, c.do(t, http.MethodPost, "/v1/view/page", models.ViewPageRequest{Page: 99}))
	assert.Equal(t, 1, state.CurrentPage)
	assert.Equal(t, 1, c.backend.listCount())
}

func TestViewInteractions_RejectUnknownFields(t *testing.T) {
	c := newTestConsole(t)

	rec := c.do(t, http.MethodPost, "/v1/view/sort", models.ViewSortRequest{Field: "price"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Code)

	rec = c.do(t, http.MethodPost, "/v1/view/filter", models.ViewFilterRequest{Field: "color", Value: "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/view/sort", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "field", decodeError(t, rec).Details[0].Field)

	assert.Equal(t, 0, c.backend.listCount())
}

func TestViewFailure_NotifiesAndKeepsItems(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))

	c.backend.mu.Lock()
	c.backend.listErr = &client.StatusError{Method: http.MethodGet, Path: "/api/inventory/items", StatusCode: http.StatusInternalServerError}
	c.backend.mu.Unlock()

	state := decodeState(t, c.do(t, http.MethodPost, "/v1/view/refresh", nil))
	require.Len(t, state.Items, 1)
	assert.NotEmpty(t, state.LastError)

	rec := c.do(t, http.MethodGet, "/v1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed models.NotificationsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
	require.Equal(t, 1, feed.Count)
	assert.Equal(t, 1, feed.Pending)
	assert.Equal(t, models.NotificationError, feed.Notifications[0].Level)
	assert.Equal(t, int64(1), feed.NextOffset)

	rec = c.do(t, http.MethodPost, "/v1/notifications/"+feed.Notifications[0].ID+"/dismiss", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(t, http.MethodGet, "/v1/notifications", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
	assert.Equal(t, 0, feed.Count)
	assert.Equal(t, 0, feed.Pending)

	rec = c.do(t, http.MethodPost, "/v1/notifications/nope/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications_LongPollReleasedByNotify(t *testing.T) {
	c := newTestConsole(t)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- c.do(t, http.MethodGet, "/v1/notifications?offset=0&wait=5", nil)
	}()

	time.Sleep(50 * time.Millisecond)
	c.sessions.Get(c.sessionID).Notify(models.NotificationInfo, "info", "hello")

	select {
	case rec := <-done:
		var feed models.NotificationsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
		require.Equal(t, 1, feed.Count)
		assert.Equal(t, "hello", feed.Notifications[0].Message)
	case <-time.After(3 * time.Second):
		t.Fatal("long poll was not released")
	}
}

func TestNotifications_InvalidOffset(t *testing.T) {
	c := newTestConsole(t)
	rec := c.do(t, http.MethodGet, "/v1/notifications?offset=-4", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookups_CachedAndInvalidatedOnCreate(t *testing.T) {
	c := newTestConsole(t)

	for i := 0; i < 2; i++ {
		rec := c.do(t, http.MethodGet, "/v1/lookups/categories", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, c.backend.categoryCalls)

	rec := c.do(t, http.MethodPost, "/v1/lookups/categories", models.LookupRequest{Name: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "validation", errResp.Code)
	assert.Equal(t, "name", errResp.Details[0].Field)

	rec = c.do(t, http.MethodPost, "/v1/lookups/categories", models.LookupRequest{Name: "Fasteners"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"Fasteners"}, c.backend.createdNames)

	rec = c.do(t, http.MethodGet, "/v1/lookups/categories", nil)
	var lookups []models.Lookup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lookups))
	assert.Len(t, lookups, 2)
	assert.Equal(t, 2, c.backend.categoryCalls)

	assert.Equal(t, 1, c.sessions.Get(c.sessionID).Feed.Pending())

	rec = c.do(t, http.MethodGet, "/v1/lookups/colors", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func validForm() models.ItemForm {
	return models.ItemForm{
		Name:             "Washer",
		Description:      "M8 washer",
		CategoryID:       "1",
		ManufacturerID:   "1",
		ShelfNumber:      "A-1",
		CurrentQuantity:  10,
		OptimalQuantity:  40,
		ReorderThreshold: 5,
		Unit:             "pcs",
		SupplierInfo:     "Acme Trading",
		Price:            12.5,
	}
}

func TestCreateItem(t *testing.T) {
	c := newTestConsole(t)

	invalid := validForm()
	invalid.Name = " "
	invalid.OptimalQuantity = 0
	rec := c.do(t, http.MethodPost, "/v1/items", invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := map[string]string{}
	for _, d := range decodeError(t, rec).Details {
		fields[d.Field] = d.Issue
	}
	assert.Equal(t, "must not be blank", fields["name"])
	assert.Equal(t, "must be at least 1", fields["optimalQuantity"])
	assert.Nil(t, c.backend.createdForm)

	rec = c.do(t, http.MethodPost, "/v1/items", validForm())
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, c.backend.createdForm)
	assert.Equal(t, "Washer", c.backend.createdForm.Name)

	feed, _, _ := c.sessions.Get(c.sessionID).Feed.Get(0, 10)
	require.Len(t, feed, 1)
	assert.Equal(t, models.NotificationSuccess, feed[0].Level)
}

func TestGetAndUpdateItem(t *testing.T) {
	c := newTestConsole(t)

	rec := c.do(t, http.MethodGet, "/v1/items/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item models.InventoryItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
	assert.Equal(t, "Bolt", item.Name)

	assert.Equal(t, http.StatusNotFound, c.do(t, http.MethodGet, "/v1/items/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(t, http.MethodGet, "/v1/items/abc", nil).Code)

	rec = c.do(t, http.MethodPut, "/v1/items/1", validForm())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodPut, "/v1/items/999", validForm())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, c.sessions.Get(c.sessionID).Feed.Pending(), "one success, one error")
}

func TestRecordUsage(t *testing.T) {
	c := newTestConsole(t)
	decodeState(t, c.do(t, http.MethodGet, "/v1/view", nil))

	rec := c.do(t, http.MethodPost, "/v1/usage", map[string]any{"usages": map[string]int{"1": -2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/usage", map[string]any{"usages": map[string]int{"1": 0}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/usage", map[string]any{"usages": map[string]int{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/usage", map[string]any{"usages": map[string]int{"1": 3, "2": 0}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UsageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Recorded)
	assert.Equal(t, map[int64]int{1: 3}, c.backend.usages)
	assert.Equal(t, 2, c.backend.listCount(), "view reloads after usage")
}

func newAdminRouter(t *testing.T, adminKeys []string) http.Handler {
	t.Helper()
	backend := newFakeBackend()
	sessions := session.NewStore(session.StoreConfig{Fetcher: backend, Logger: logging.Discard()})
	t.Cleanup(sessions.Close)
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:                true,
		Type:                   middleware.RateLimitTypeIP,
		RequestsPerMinute:      100,
		WindowMinutes:          1,
		AdminRequestsPerMinute: 50,
	})
	t.Cleanup(limiter.Stop)

	return NewRouter(RouterConfig{
		Sessions:     sessions,
		Backend:      backend,
		RateLimiter:  limiter,
		PageSize:     10,
		SessionTTL:   time.Hour,
		AdminAPIKeys: adminKeys,
	})
}

func TestAdminRoutes_RequireAdminKey(t *testing.T) {
	router := newAdminRouter(t, []string{"ops-key"})

	send := func(method, path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		// a console session is not enough to reach admin routes
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: uuid.NewString()})
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/v1/admin/rate-limit/reset", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusUnauthorized, send(http.MethodPost, "/v1/admin/rate-limit/reset", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/v1/admin/rate-limit/status", "").Code)

	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/v1/admin/rate-limit/reset", "ops-key").Code)

	rec = send(http.MethodGet, "/v1/admin/rate-limit/status", "ops-key")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats middleware.RateLimitStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 50, stats.AdminRequestsPerMinute)

	// console routes stay reachable without the admin key
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/v1/view", "").Code)
}

func TestAdminRoutes_DisabledWithoutConfiguredKey(t *testing.T) {
	router := newAdminRouter(t, nil)

	for _, key := range []string{"", "anything"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/rate-limit/reset", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "key %q", key)
	}
}
