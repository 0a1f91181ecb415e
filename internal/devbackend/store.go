package devbackend

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-console/internal/models"
	"inventory-console/internal/query"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid request")
	ErrDuplicate         = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Record is one stored item in the backend's own snake_case shape
type Record struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	ShelfNumber      string  `json:"shelf_number"`
	CategoryID       *int64  `json:"category_id"`
	ManufacturerID   *int64  `json:"manufacturer_id"`
	Unit             string  `json:"unit"`
	CurrentQuantity  *int    `json:"current_quantity"`
	OptimalQuantity  *int    `json:"optimal_quantity"`
	ReorderThreshold *int    `json:"reorder_threshold"`
	SupplierInfo     string  `json:"supplier_info"`
	Price            float64 `json:"price"`
	OrderStatus      string  `json:"order_status,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

// Dataset is the seed/persistence file layout
type Dataset struct {
	Categories    []models.Lookup `json:"categories"`
	Manufacturers []models.Lookup `json:"manufacturers"`
	Items         []Record        `json:"items"`
}

// Store keeps the fixture inventory in memory. With a data path, every write is
// persisted back to it with an atomic rename.
type Store struct {
	mu            sync.RWMutex
	items         map[int64]Record
	categories    map[int64]string
	manufacturers map[int64]string
	nextItemID    int64
	dataPath      string
	persist       bool
}

// NewStore creates a store from a dataset. persistPath may be empty.
func NewStore(data Dataset, persistPath string) *Store {
	s := &Store{
		items:         make(map[int64]Record, len(data.Items)),
		categories:    make(map[int64]string, len(data.Categories)),
		manufacturers: make(map[int64]string, len(data.Manufacturers)),
		dataPath:      persistPath,
		persist:       persistPath != "",
	}
	for _, c := range data.Categories {
		s.categories[c.ID] = c.Name
	}
	for _, m := range data.Manufacturers {
		s.manufacturers[m.ID] = m.Name
	}
	for _, r := range data.Items {
		s.items[r.ID] = r
		s.nextItemID = max(s.nextItemID, r.ID)
	}
	return s
}

// LoadStore reads a dataset from path. When persist is set, writes go back to the same file.
func LoadStore(path string, persist bool) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	var data Dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("error parsing dataset: %w", err)
	}

	persistPath := ""
	if persist {
		persistPath = path
	}
	store := NewStore(data, persistPath)

	slog.Info("Dataset loaded",
		"path", path,
		"items", len(data.Items),
		"categories", len(data.Categories),
		"manufacturers", len(data.Manufacturers),
		"persist", persist)

	return store, nil
}

// List filters, sorts and paginates items. It returns the page and the filtered total.
func (s *Store) List(params query.Parameters) ([]Record, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Record, 0, len(s.items))
	for _, r := range s.items {
		if s.matches(r, params.Filters) {
			matched = append(matched, r)
		}
	}

	slices.SortFunc(matched, func(a, b Record) int {
		c := s.compare(a, b, params.SortField)
		if params.SortOrder == query.Descending {
			c = -c
		}
		if c == 0 {
			return cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	total := len(matched)
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= total {
		return []Record{}, total
	}
	end := min(start+params.PageSize, total)
	return matched[start:end], total
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *Store) matches(r Record, f query.Filters) bool {
	if f.SearchTerm != "" && !containsFold(r.Name, f.SearchTerm) && !containsFold(r.Description, f.SearchTerm) {
		return false
	}
	if f.ShelfNumber != "" && !containsFold(r.ShelfNumber, f.ShelfNumber) {
		return false
	}
	if f.Category != "" && !containsFold(s.lookupName(s.categories, r.CategoryID), f.Category) {
		return false
	}
	if f.Manufacturer != "" && !containsFold(s.lookupName(s.manufacturers, r.ManufacturerID), f.Manufacturer) {
		return false
	}
	return true
}

func (s *Store) lookupName(names map[int64]string, id *int64) string {
	if id == nil {
		return ""
	}
	return names[*id]
}

// compareQty orders missing quantities before any reported one
func compareQty(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

func (s *Store) compare(a, b Record, field query.SortField) int {
	switch field {
	case query.SortByName:
		return strings.Compare(a.Name, b.Name)
	case query.SortByShelfNumber:
		return strings.Compare(a.ShelfNumber, b.ShelfNumber)
	case query.SortByCategory:
		return strings.Compare(s.lookupName(s.categories, a.CategoryID), s.lookupName(s.categories, b.CategoryID))
	case query.SortByManufacturer:
		return strings.Compare(s.lookupName(s.manufacturers, a.ManufacturerID), s.lookupName(s.manufacturers, b.ManufacturerID))
	case query.SortByCurrentQuantity:
		return compareQty(a.CurrentQuantity, b.CurrentQuantity)
	case query.SortByOptimalQuantity:
		return compareQty(a.OptimalQuantity, b.OptimalQuantity)
	case query.SortByReorderThreshold:
		return compareQty(a.ReorderThreshold, b.ReorderThreshold)
	default:
		return 0
	}
}

// Get returns one item
func (s *Store) Get(id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[id]
	if !ok {
		return Record{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// CategoryName returns the name of a category id, "" when unknown
func (s *Store) CategoryName(id *int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupName(s.categories, id)
}

// ManufacturerName returns the name of a manufacturer id, "" when unknown
func (s *Store) ManufacturerName(id *int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupName(s.manufacturers, id)
}

func parseRef(value string, names map[int64]string, field string) (*int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", field, value, ErrInvalid)
	}
	if _, ok := names[id]; !ok {
		return nil, fmt.Errorf("%s %d: %w", field, id, ErrNotFound)
	}
	return &id, nil
}

func (s *Store) applyForm(r *Record, form models.ItemForm) error {
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("name is blank: %w", ErrInvalid)
	}
	categoryID, err := parseRef(form.CategoryID, s.categories, "category_id")
	if err != nil {
		return err
	}
	manufacturerID, err := parseRef(form.ManufacturerID, s.manufacturers, "manufacturer_id")
	if err != nil {
		return err
	}

	current, optimal, threshold := form.CurrentQuantity, form.OptimalQuantity, form.ReorderThreshold
	r.Name = strings.TrimSpace(form.Name)
	r.Description = form.Description
	r.ShelfNumber = form.ShelfNumber
	r.CategoryID = categoryID
	r.ManufacturerID = manufacturerID
	r.Unit = form.Unit
	r.CurrentQuantity = &current
	r.OptimalQuantity = &optimal
	r.ReorderThreshold = &threshold
	r.SupplierInfo = form.SupplierInfo
	r.Price = form.Price
	r.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Create registers a new item
func (s *Store) Create(form models.ItemForm) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Record{ID: s.nextItemID + 1}
	if err := s.applyForm(&r, form); err != nil {
		return Record{}, err
	}
	s.nextItemID = r.ID
	s.items[r.ID] = r

	s.saveLocked()
	return r, nil
}

// Update replaces the editable fields of an item
func (s *Store) Update(id int64, form models.ItemForm) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.items[id]
	if !ok {
		return Record{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err := s.applyForm(&r, form); err != nil {
		return Record{}, err
	}
	s.items[id] = r

	s.saveLocked()
	return r, nil
}

// RecordUsage subtracts consumed quantities. Either every entry applies or none does.
func (s *Store) RecordUsage(usages map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, qty := range usages {
		r, ok := s.items[id]
		if !ok {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if qty < 0 {
			return fmt.Errorf("item %d quantity %d: %w", id, qty, ErrInvalid)
		}
		if r.CurrentQuantity == nil || *r.CurrentQuantity < qty {
			return fmt.Errorf("item %d: %w", id, ErrInsufficientStock)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for id, qty := range usages {
		r := s.items[id]
		remaining := *r.CurrentQuantity - qty
		r.CurrentQuantity = &remaining
		r.UpdatedAt = now
		s.items[id] = r
	}

	s.saveLocked()
	return nil
}

// Categories lists categories ordered by id
func (s *Store) Categories() []models.Lookup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLookups(s.categories)
}

// Manufacturers lists manufacturers ordered by id
func (s *Store) Manufacturers() []models.Lookup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLookups(s.manufacturers)
}

// CreateCategory registers a category. Names are unique.
func (s *Store) CreateCategory(name string) (models.Lookup, error) {
	return s.createLookup(s.categories, name)
}

// CreateManufacturer registers a manufacturer. Names are unique.
func (s *Store) CreateManufacturer(name string) (models.Lookup, error) {
	return s.createLookup(s.manufacturers, name)
}

func (s *Store) createLookup(names map[int64]string, name string) (models.Lookup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Lookup{}, fmt.Errorf("name is blank: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastID int64
	for id, existing := range names {
		if existing == name {
			return models.Lookup{}, fmt.Errorf("%q: %w", name, ErrDuplicate)
		}
		lastID = max(lastID, id)
	}
	created := models.Lookup{ID: lastID + 1, Name: name}
	names[created.ID] = name

	s.saveLocked()
	return created, nil
}

func sortedLookups(names map[int64]string) []models.Lookup {
	lookups := make([]models.Lookup, 0, len(names))
	for id, name := range names {
		lookups = append(lookups, models.Lookup{ID: id, Name: name})
	}
	slices.SortFunc(lookups, func(a, b models.Lookup) int { return cmp.Compare(a.ID, b.ID) })
	return lookups
}

func (s *Store) snapshotLocked() Dataset {
	items := make([]Record, 0, len(s.items))
	for _, r := range s.items {
		items = append(items, r)
	}
	slices.SortFunc(items, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return Dataset{
		Categories:    sortedLookups(s.categories),
		Manufacturers: sortedLookups(s.manufacturers),
		Items:         items,
	}
}

// saveLocked persists the dataset. A failed save is logged; the in-memory state stays authoritative.
func (s *Store) saveLocked() {
	if !s.persist {
		return
	}
	if err := s.writeFile(s.snapshotLocked()); err != nil {
		slog.Error("Failed to persist dataset", "path", s.dataPath, "error", err)
	}
}

func (s *Store) writeFile(data Dataset) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling dataset: %w", err)
	}

	tempFilePath := s.dataPath + ".tmp"
	if err := os.WriteFile(tempFilePath, jsonData, 0o644); err != nil {
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := os.Rename(tempFilePath, s.dataPath); err != nil {
		_ = os.Remove(tempFilePath)
		return fmt.Errorf("error replacing dataset file: %w", err)
	}

	slog.Debug("Dataset saved", "path", s.dataPath, "items", len(data.Items))
	return nil
}
