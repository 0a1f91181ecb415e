package query

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is the page size of every inventory list view
const DefaultPageSize = 10

// AllSentinel is the dropdown choice meaning "no filter"
const AllSentinel = "すべて"

// SortOrder is the direction of the active sort
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// SortField names a sortable column
type SortField string

const (
	SortByName             SortField = "name"
	SortByShelfNumber      SortField = "shelfNumber"
	SortByCategory         SortField = "category"
	SortByManufacturer     SortField = "manufacturer"
	SortByCurrentQuantity  SortField = "currentQuantity"
	SortByOptimalQuantity  SortField = "optimalQuantity"
	SortByReorderThreshold SortField = "reorderThreshold"
)

var sortFields = map[SortField]bool{
	SortByName:             true,
	SortByShelfNumber:      true,
	SortByCategory:         true,
	SortByManufacturer:     true,
	SortByCurrentQuantity:  true,
	SortByOptimalQuantity:  true,
	SortByReorderThreshold: true,
}

// Valid reports whether f is one of the sortable columns
func (f SortField) Valid() bool {
	return sortFields[f]
}

// Filter names one of the text filters
type Filter string

const (
	FilterSearchTerm   Filter = "searchTerm"
	FilterShelfNumber  Filter = "shelfNumber"
	FilterCategory     Filter = "category"
	FilterManufacturer Filter = "manufacturer"
)

// Filters holds the text filters. Empty means no filter.
type Filters struct {
	SearchTerm   string `json:"searchTerm,omitempty"`
	ShelfNumber  string `json:"shelfNumber,omitempty"`
	Category     string `json:"category,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// Parameters is the page/filter/sort selection of one list view.
// Values are never modified in place; every With* method returns a new value.
type Parameters struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Filters
	SortField SortField `json:"sortField,omitempty"`
	SortOrder SortOrder `json:"sortOrder"`
}

// New returns the parameters a view starts with
func New(pageSize int) Parameters {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return Parameters{
		Page:      1,
		PageSize:  pageSize,
		SortOrder: Ascending,
	}
}

func normalizeFilterValue(value string) string {
	value = strings.TrimSpace(value)
	if value == AllSentinel {
		return ""
	}
	return value
}

// WithFilter sets a single filter and goes back to the first page.
// An unknown filter leaves the parameters unchanged.
func (p Parameters) WithFilter(field Filter, value string) Parameters {
	value = normalizeFilterValue(value)
	switch field {
	case FilterSearchTerm:
		p.SearchTerm = value
	case FilterShelfNumber:
		p.ShelfNumber = value
	case FilterCategory:
		p.Category = value
	case FilterManufacturer:
		p.Manufacturer = value
	default:
		return p
	}
	p.Page = 1
	return p
}

// WithFilters replaces all filters at once (explicit search submit) and goes back to the first page
func (p Parameters) WithFilters(f Filters) Parameters {
	p.Filters = Filters{
		SearchTerm:   normalizeFilterValue(f.SearchTerm),
		ShelfNumber:  normalizeFilterValue(f.ShelfNumber),
		Category:     normalizeFilterValue(f.Category),
		Manufacturer: normalizeFilterValue(f.Manufacturer),
	}
	p.Page = 1
	return p
}

// WithSort flips the order when field is already the sort field.
// Otherwise it sorts ascending by field from the first page.
func (p Parameters) WithSort(field SortField) Parameters {
	if !field.Valid() {
		return p
	}
	if p.SortField == field {
		if p.SortOrder == Descending {
			p.SortOrder = Ascending
		} else {
			p.SortOrder = Descending
		}
		return p
	}
	p.SortField = field
	p.SortOrder = Ascending
	p.Page = 1
	return p
}

// WithPage moves to page n. totalPages <= 0 means the page count is not known yet.
// Out of range pages leave the parameters unchanged.
func (p Parameters) WithPage(n, totalPages int) Parameters {
	if n < 1 || (totalPages > 0 && n > totalPages) {
		return p
	}
	p.Page = n
	return p
}

// Values encodes the parameters for GET /api/inventory/items
func (p Parameters) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("per_page", strconv.Itoa(p.PageSize))
	setIfNotEmpty(v, string(FilterSearchTerm), p.SearchTerm)
	setIfNotEmpty(v, string(FilterShelfNumber), p.ShelfNumber)
	setIfNotEmpty(v, string(FilterCategory), p.Category)
	setIfNotEmpty(v, string(FilterManufacturer), p.Manufacturer)
	if p.SortField != "" {
		v.Set("sortField", string(p.SortField))
		v.Set("sortOrder", string(p.SortOrder))
	}
	return v
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// selectionKeys are the query string keys FromValues reads
var selectionKeys = []string{
	"page", "per_page",
	string(FilterSearchTerm), string(FilterShelfNumber), string(FilterCategory), string(FilterManufacturer),
	"sortField", "sortOrder",
}

// HasSelection reports whether v carries any key FromValues understands.
// Unrelated keys such as cache busters do not count.
func HasSelection(v url.Values) bool {
	for _, key := range selectionKeys {
		if v.Has(key) {
			return true
		}
	}
	return false
}

// FromValues decodes parameters from a query string, falling back to defaults for
// missing or invalid entries.
func FromValues(v url.Values, defaultPageSize int) Parameters {
	p := New(defaultPageSize)
	if page, err := strconv.Atoi(v.Get("page")); err == nil && page > 0 {
		p.Page = page
	}
	if perPage, err := strconv.Atoi(v.Get("per_page")); err == nil && perPage > 0 {
		p.PageSize = perPage
	}
	p.Filters = Filters{
		SearchTerm:   normalizeFilterValue(v.Get(string(FilterSearchTerm))),
		ShelfNumber:  normalizeFilterValue(v.Get(string(FilterShelfNumber))),
		Category:     normalizeFilterValue(v.Get(string(FilterCategory))),
		Manufacturer: normalizeFilterValue(v.Get(string(FilterManufacturer))),
	}
	if field := SortField(v.Get("sortField")); field.Valid() {
		p.SortField = field
		if SortOrder(strings.ToLower(v.Get("sortOrder"))) == Descending {
			p.SortOrder = Descending
		}
	}
	return p
}
