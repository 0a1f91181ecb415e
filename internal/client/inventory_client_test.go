package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-console/internal/models"
	"inventory-console/internal/normalize"
	"inventory-console/internal/query"
	"inventory-console/internal/status"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *InventoryClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	n, err := normalize.New(status.PolicyPreferBackend)
	require.NoError(t, err)
	return NewInventoryClient(server.URL+"/", "test-key", time.Second, n)
}

func TestListItems_SendsParametersAndNormalizes(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":1,"name":"Bolt","current_quantity":5,"reorder_threshold":10,"optimal_quantity":50}],"total_items":1}`))
	})

	params := query.New(10).WithSort(query.SortByName).WithFilter(query.FilterCategory, "油脂類")
	result, err := c.ListItems(context.Background(), params)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/api/inventory/items", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("page"))
	assert.Equal(t, "10", got.URL.Query().Get("per_page"))
	assert.Equal(t, "name", got.URL.Query().Get("sortField"))
	assert.Equal(t, "asc", got.URL.Query().Get("sortOrder"))
	assert.Equal(t, "油脂類", got.URL.Query().Get("category"))
	assert.Equal(t, "test-key", got.Header.Get("X-API-Key"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))

	require.Len(t, result.Items, 1)
	assert.Equal(t, status.NeedsOrder, result.Items[0].Status)
	assert.Equal(t, 1, result.TotalItems)
}

func TestListItems_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ListItems(context.Background(), query.New(10))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestListItems_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows":[]}`))
	})

	_, err := c.ListItems(context.Background(), query.New(10))

	assert.ErrorIs(t, err, normalize.ErrMalformed)
}

func TestListItems_TransportFailure(t *testing.T) {
	n, err := normalize.New(status.PolicyDerive)
	require.NoError(t, err)
	c := NewInventoryClient("http://127.0.0.1:1", "", 200*time.Millisecond, n)

	_, err = c.ListItems(context.Background(), query.New(10))

	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestGetItem_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inventory/items/42", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetItem(context.Background(), 42)

	assert.True(t, IsNotFound(err))
}

func TestCreateItem_WrapsForm(t *testing.T) {
	var payload map[string]map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"name":"Tap","shelf_number":"C-1","current_quantity":3,"optimal_quantity":10,"reorder_threshold":2}`))
	})

	item, err := c.CreateItem(context.Background(), models.ItemForm{
		Name: "Tap", CategoryID: "2", ManufacturerID: "3", ShelfNumber: "C-1",
		CurrentQuantity: 3, OptimalQuantity: 10, ReorderThreshold: 2, Unit: "本",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(12), item.ID)
	assert.Equal(t, status.Ordering, item.Status)
	require.Contains(t, payload, "item")
	assert.Equal(t, "Tap", payload["item"]["name"])
	assert.Equal(t, "2", payload["item"]["category_id"])
}

func TestUpdateItem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/inventory/items/5", r.URL.Path)
		w.Write([]byte(`{"item":{"id":5,"name":"Renamed"}}`))
	})

	item, err := c.UpdateItem(context.Background(), 5, models.ItemForm{Name: "Renamed"})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", item.Name)
}

func TestRecordUsage_EncodesIDsAsKeys(t *testing.T) {
	var payload map[string]int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inventory/usage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.RecordUsage(context.Background(), map[int64]int{1: 3, 7: 1})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1": 3, "7": 1}, payload)
}

func TestLookups(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/categories":
			w.Write([]byte(`[{"id":1,"name":"油脂類"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/manufacturers":
			w.Write([]byte(`[{"id":3,"name":"ツールテック"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/categories":
			var req models.LookupRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Lookup{ID: 9, Name: req.Name})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	categories, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Lookup{{ID: 1, Name: "油脂類"}}, categories)

	manufacturers, err := c.Manufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Lookup{{ID: 3, Name: "ツールテック"}}, manufacturers)

	created, err := c.CreateCategory(ctx, "切削工具")
	require.NoError(t, err)
	assert.Equal(t, models.Lookup{ID: 9, Name: "切削工具"}, created)

	_, err = c.CreateManufacturer(ctx, "カッティングプロ")
	assert.True(t, IsNotFound(err))
}
