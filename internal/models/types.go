package models

import (
	"time"

	"inventory-console/internal/status"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Placeholders shown for optional fields the backend left empty
const (
	ShelfNumberUnset      = "未設定"
	CategoryUncategorized = "未分類"
	ManufacturerUnknown   = "不明"
)

// InventoryItem is one normalized row of stock.
// A nil quantity means the backend did not report it.
type InventoryItem struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	ShelfNumber      string        `json:"shelfNumber"`
	Category         string        `json:"category"`
	Manufacturer     string        `json:"manufacturer"`
	Unit             string        `json:"unit"`
	CurrentQuantity  *int          `json:"currentQuantity"`
	OptimalQuantity  *int          `json:"optimalQuantity"`
	ReorderThreshold *int          `json:"reorderThreshold"`
	Status           status.Status `json:"status"`
	StatusLabel      string        `json:"statusLabel"`

	// Detail fields, filled when the backend sends them (edit form)
	Description    string   `json:"description,omitempty"`
	CategoryID     *int64   `json:"categoryId,omitempty"`
	ManufacturerID *int64   `json:"manufacturerId,omitempty"`
	SupplierInfo   string   `json:"supplierInfo,omitempty"`
	Price          *float64 `json:"price,omitempty"`
}

// FetchResult is one page of items plus the total across all pages
type FetchResult struct {
	Items      []InventoryItem `json:"items"`
	TotalItems int             `json:"totalItems"`
}

// Lookup is a category or manufacturer used to fill filter dropdowns
type Lookup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LookupRequest creates a category or manufacturer
type LookupRequest struct {
	Name string `json:"name" validate:"required,notblank"`
}

// ItemForm is the registration/edit form of one item
type ItemForm struct {
	Name             string  `json:"name" validate:"required,notblank"`
	Description      string  `json:"description" validate:"required,notblank"`
	CategoryID       string  `json:"category_id" validate:"required"`
	ManufacturerID   string  `json:"manufacturer_id" validate:"required"`
	ShelfNumber      string  `json:"shelfNumber" validate:"required,notblank"`
	CurrentQuantity  int     `json:"currentQuantity" validate:"min=0"`
	OptimalQuantity  int     `json:"optimalQuantity" validate:"min=1"`
	ReorderThreshold int     `json:"reorderThreshold" validate:"min=0"`
	Unit             string  `json:"unit" validate:"required,notblank"`
	SupplierInfo     string  `json:"supplierInfo" validate:"required,notblank"`
	Price            float64 `json:"price" validate:"min=0"`
}

// ItemPayload wraps the form the way the backend expects it
type ItemPayload struct {
	Item ItemForm `json:"item"`
}

// UsageRequest records consumed quantities keyed by item id
type UsageRequest struct {
	Usages map[int64]int `json:"usages" validate:"required,min=1,dive,gte=0"`
}

// Notification levels
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationError   = "error"
)

// Notification is a transient message shown to the user
type Notification struct {
	ID        string    `json:"id"`
	Offset    int64     `json:"offset"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	Dismissed bool      `json:"dismissed"`
}

// NotificationsResponse is the body of GET /v1/notifications
type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	NextOffset    int64          `json:"nextOffset"`
	HasMore       bool           `json:"hasMore"`
	Count         int            `json:"count"`
	Pending       int            `json:"pending"`
}

// ViewFilterRequest is the body of POST /v1/view/filter
type ViewFilterRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

// ViewSortRequest is the body of POST /v1/view/sort
type ViewSortRequest struct {
	Field string `json:"field" validate:"required"`
}

// ViewPageRequest is the body of POST /v1/view/page
type ViewPageRequest struct {
	Page int `json:"page"`
}
