package devbackend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-console/internal/models"
	"inventory-console/internal/query"
)

func intPtr(v int) *int      { return &v }
func idPtr(v int64) *int64 { return &v }

func testDataset() Dataset {
	return Dataset{
		Categories:    []models.Lookup{{ID: 1, Name: "工具"}, {ID: 2, Name: "消耗品"}},
		Manufacturers: []models.Lookup{{ID: 1, Name: "山田製作所"}, {ID: 2, Name: "Acme Corp"}},
		Items: []Record{
			{ID: 1, Name: "ドライバーセット", ShelfNumber: "A-01", CategoryID: idPtr(1), ManufacturerID: idPtr(1), CurrentQuantity: intPtr(12), OptimalQuantity: intPtr(10), ReorderThreshold: intPtr(3)},
			{ID: 2, Name: "軍手", Description: "綿100%", ShelfNumber: "B-01", CategoryID: idPtr(2), ManufacturerID: idPtr(2), CurrentQuantity: intPtr(40), OptimalQuantity: intPtr(30), ReorderThreshold: intPtr(10)},
			{ID: 3, Name: "養生テープ", ShelfNumber: "B-02", CategoryID: idPtr(2), ManufacturerID: idPtr(2), CurrentQuantity: intPtr(8), OptimalQuantity: intPtr(24), ReorderThreshold: intPtr(8)},
			{ID: 4, Name: "単三電池", ShelfNumber: "B-04", CategoryID: idPtr(2), OptimalQuantity: intPtr(10), ReorderThreshold: intPtr(3)},
			{ID: 5, Name: "モンキーレンチ", ShelfNumber: "A-03", CategoryID: idPtr(1), ManufacturerID: idPtr(1), CurrentQuantity: intPtr(5), OptimalQuantity: intPtr(6), ReorderThreshold: intPtr(2)},
		},
	}
}

func ids(records []Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_ListPaginates(t *testing.T) {
	store := NewStore(testDataset(), "")

	params := query.New(2)
	page, total := store.List(params)
	assert.Equal(t, 5, total)
	assert.Equal(t, []int64{1, 2}, ids(page))

	page, total = store.List(params.WithPage(3, 0))
	assert.Equal(t, 5, total)
	assert.Equal(t, []int64{5}, ids(page))

	page, _ = store.List(params.WithPage(9, 0))
	assert.Empty(t, page)
}

func TestStore_ListFilters(t *testing.T) {
	store := NewStore(testDataset(), "")
	base := query.New(10)

	tests := []struct {
		name   string
		params query.Parameters
		want   []int64
	}{
		{"search matches description", base.WithFilter(query.FilterSearchTerm, "綿"), []int64{2}},
		{"shelf is a substring match", base.WithFilter(query.FilterShelfNumber, "b-0"), []int64{2, 3, 4}},
		{"category by name", base.WithFilter(query.FilterCategory, "工具"), []int64{1, 5}},
		{"manufacturer is case insensitive", base.WithFilter(query.FilterManufacturer, "acme"), []int64{2, 3}},
		{"filters combine", base.WithFilter(query.FilterCategory, "消耗品").WithFilter(query.FilterShelfNumber, "B-02"), []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total := store.List(tt.params)
			assert.Equal(t, tt.want, ids(page))
			assert.Equal(t, len(tt.want), total)
		})
	}
}

func TestStore_ListSorts(t *testing.T) {
	store := NewStore(testDataset(), "")

	asc := query.New(10).WithSort(query.SortByCurrentQuantity)
	page, _ := store.List(asc)
	assert.Equal(t, []int64{4, 5, 3, 1, 2}, ids(page), "missing quantity sorts first ascending")

	desc := asc.WithSort(query.SortByCurrentQuantity)
	require.Equal(t, query.Descending, desc.SortOrder)
	page, _ = store.List(desc)
	assert.Equal(t, []int64{2, 1, 3, 5, 4}, ids(page))

	byShelf := query.New(10).WithSort(query.SortByShelfNumber)
	page, _ = store.List(byShelf)
	assert.Equal(t, []int64{1, 5, 2, 3, 4}, ids(page))
}

func TestStore_RecordUsageIsAllOrNothing(t *testing.T) {
	store := NewStore(testDataset(), "")

	err := store.RecordUsage(map[int64]int{1: 2, 3: 100})
	require.ErrorIs(t, err, ErrInsufficientStock)
	r, _ := store.Get(1)
	assert.Equal(t, 12, *r.CurrentQuantity)

	err = store.RecordUsage(map[int64]int{4: 1})
	assert.ErrorIs(t, err, ErrInsufficientStock, "unknown current quantity cannot be consumed")

	err = store.RecordUsage(map[int64]int{99: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.RecordUsage(map[int64]int{1: 2, 3: 8}))
	r, _ = store.Get(1)
	assert.Equal(t, 10, *r.CurrentQuantity)
	r, _ = store.Get(3)
	assert.Equal(t, 0, *r.CurrentQuantity)
}

func validForm() models.ItemForm {
	return models.ItemForm{
		Name:             "保護メガネ",
		Description:      "曇り止め",
		CategoryID:       "1",
		ManufacturerID:   "2",
		ShelfNumber:      "D-02",
		CurrentQuantity:  25,
		OptimalQuantity:  15,
		ReorderThreshold: 5,
		Unit:             "個",
		SupplierInfo:     "直販",
		Price:            780,
	}
}

func TestStore_CreateAndUpdate(t *testing.T) {
	store := NewStore(testDataset(), "")

	created, err := store.Create(validForm())
	require.NoError(t, err)
	assert.Equal(t, int64(6), created.ID)
	assert.Equal(t, int64(2), *created.ManufacturerID)

	form := validForm()
	form.CurrentQuantity = 3
	updated, err := store.Update(created.ID, form)
	require.NoError(t, err)
	assert.Equal(t, 3, *updated.CurrentQuantity)

	_, err = store.Update(42, form)
	assert.ErrorIs(t, err, ErrNotFound)

	form.CategoryID = "x"
	_, err = store.Create(form)
	assert.ErrorIs(t, err, ErrInvalid)

	form.CategoryID = "77"
	_, err = store.Create(form)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Lookups(t *testing.T) {
	store := NewStore(testDataset(), "")

	created, err := store.CreateCategory(" 安全用品 ")
	require.NoError(t, err)
	assert.Equal(t, models.Lookup{ID: 3, Name: "安全用品"}, created)

	_, err = store.CreateCategory("工具")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.CreateManufacturer("  ")
	assert.ErrorIs(t, err, ErrInvalid)

	assert.Len(t, store.Categories(), 3)
	assert.Equal(t, "Acme Corp", store.Manufacturers()[1].Name)
}

func TestStore_PersistsAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	NewStore(testDataset(), path).saveLocked()

	store, err := LoadStore(path, true)
	require.NoError(t, err)
	require.NoError(t, store.RecordUsage(map[int64]int{2: 5}))

	reloaded, err := LoadStore(path, false)
	require.NoError(t, err)
	r, err := reloaded.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 35, *r.CurrentQuantity)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadStore_MissingFile(t *testing.T) {
	_, err := LoadStore(filepath.Join(t.TempDir(), "absent.json"), false)
	assert.Error(t, err)
}
