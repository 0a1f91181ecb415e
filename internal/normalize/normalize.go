package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/itchyny/gojq"

	"inventory-console/internal/models"
	"inventory-console/internal/status"
)

// ErrMalformed is returned when a backend payload does not have the expected shape
var ErrMalformed = errors.New("malformed inventory payload")

// itemProgram maps every raw item shape seen from the backend onto one canonical object.
// jq's // keeps 0 and "" on the left side only when they are not null or false, so a
// reported quantity of 0 is kept.
const itemProgram = `
def text:
  if type == "string" then (if test("^\\s*$") then null else . end)
  elif type == "number" then tostring
  else null end;
def named: if type == "object" then (.name | text) else text end;
def number:
  if type == "number" then .
  elif type == "string" then (try tonumber catch null)
  else null end;
def qty: number | if . == null or . < 0 then null else floor end;
def ref: if type == "object" then (.id | number) else null end;
{
  id: ((.id // .item_id // .itemId) | number),
  name: ((.name // .item_name // .itemName) | text),
  shelfNumber: ((.shelf_number // .shelfNumber) | text),
  category: ((.category | named) // (.category_name | text) // (.categoryName | text) // (.attribute | text)),
  manufacturer: ((.manufacturer | named) // (.manufacturer_name | text) // (.manufacturerName | text)),
  unit: (.unit | text),
  currentQuantity: ((.current_quantity // .currentQuantity) | qty),
  optimalQuantity: ((.optimal_quantity // .optimalQuantity) | qty),
  reorderThreshold: ((.reorder_threshold // .reorderThreshold) | qty),
  status: ((.status // .order_status // .orderStatus) | text),
  description: (.description | text),
  categoryId: (((.category_id // .categoryId) | number) // (.category | ref)),
  manufacturerId: (((.manufacturer_id // .manufacturerId) | number) // (.manufacturer | ref)),
  supplierInfo: ((.supplier_info // .supplierInfo) | text),
  price: (.price | number)
}
`

type canonicalItem struct {
	ID               *float64 `json:"id"`
	Name             *string  `json:"name"`
	ShelfNumber      *string  `json:"shelfNumber"`
	Category         *string  `json:"category"`
	Manufacturer     *string  `json:"manufacturer"`
	Unit             *string  `json:"unit"`
	CurrentQuantity  *int     `json:"currentQuantity"`
	OptimalQuantity  *int     `json:"optimalQuantity"`
	ReorderThreshold *int     `json:"reorderThreshold"`
	Status           *string  `json:"status"`
	Description      *string  `json:"description"`
	CategoryID       *float64 `json:"categoryId"`
	ManufacturerID   *float64 `json:"manufacturerId"`
	SupplierInfo     *string  `json:"supplierInfo"`
	Price            *float64 `json:"price"`
}

// Normalizer turns raw backend items into models.InventoryItem
type Normalizer struct {
	code   *gojq.Code
	policy status.Policy
}

// New compiles the normalization program. policy decides whether backend statuses are trusted.
func New(policy status.Policy) (*Normalizer, error) {
	parsed, err := gojq.Parse(itemProgram)
	if err != nil {
		return nil, fmt.Errorf("failed to parse item program: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile item program: %w", err)
	}
	return &Normalizer{code: code, policy: policy}, nil
}

// Policy returns the status policy in use
func (n *Normalizer) Policy() status.Policy {
	return n.policy
}

// Item normalizes one decoded JSON object
func (n *Normalizer) Item(raw any) (models.InventoryItem, error) {
	if _, ok := raw.(map[string]any); !ok {
		return models.InventoryItem{}, fmt.Errorf("%w: item is %T, not an object", ErrMalformed, raw)
	}

	iter := n.code.Run(raw)
	v, ok := iter.Next()
	if !ok {
		return models.InventoryItem{}, fmt.Errorf("%w: item program produced no output", ErrMalformed)
	}
	if err, isErr := v.(error); isErr {
		return models.InventoryItem{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("failed to encode normalized item: %w", err)
	}
	var c canonicalItem
	if err := json.Unmarshal(encoded, &c); err != nil {
		return models.InventoryItem{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.ID == nil || *c.ID != math.Trunc(*c.ID) {
		return models.InventoryItem{}, fmt.Errorf("%w: item without a valid id", ErrMalformed)
	}
	if c.Name == nil {
		return models.InventoryItem{}, fmt.Errorf("%w: item %d has no name", ErrMalformed, int64(*c.ID))
	}

	backendStatus := valueOr(c.Status, "")
	st := status.Resolve(n.policy, backendStatus, c.CurrentQuantity, c.OptimalQuantity, c.ReorderThreshold)

	return models.InventoryItem{
		ID:               int64(*c.ID),
		Name:             *c.Name,
		ShelfNumber:      valueOr(c.ShelfNumber, models.ShelfNumberUnset),
		Category:         valueOr(c.Category, models.CategoryUncategorized),
		Manufacturer:     valueOr(c.Manufacturer, models.ManufacturerUnknown),
		Unit:             valueOr(c.Unit, ""),
		CurrentQuantity:  c.CurrentQuantity,
		OptimalQuantity:  c.OptimalQuantity,
		ReorderThreshold: c.ReorderThreshold,
		Status:           st,
		StatusLabel:      st.Label(),
		Description:      valueOr(c.Description, ""),
		CategoryID:       integralID(c.CategoryID),
		ManufacturerID:   integralID(c.ManufacturerID),
		SupplierInfo:     valueOr(c.SupplierInfo, ""),
		Price:            c.Price,
	}, nil
}

// Items normalizes a list of decoded JSON objects
func (n *Normalizer) Items(raws []any) ([]models.InventoryItem, error) {
	items := make([]models.InventoryItem, 0, len(raws))
	for i, raw := range raws {
		item, err := n.Item(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ItemJSON normalizes a single item body. Bodies wrapped as {"item": {...}} are unwrapped.
func (n *Normalizer) ItemJSON(body []byte) (models.InventoryItem, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.InventoryItem{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj, ok := raw.(map[string]any); ok {
		if inner, wrapped := obj["item"].(map[string]any); wrapped && obj["id"] == nil {
			raw = inner
		}
	}
	return n.Item(raw)
}

// List normalizes a list response. Accepted envelopes are {items, total_items},
// {items, totalItems} and a bare array.
func (n *Normalizer) List(body []byte) (*models.FetchResult, error) {
	var envelope struct {
		Items      []any `json:"items"`
		TotalItems *int  `json:"total_items"`
		TotalCamel *int  `json:"totalItems"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Try to parse as a direct array
		var direct []any
		if err2 := json.Unmarshal(body, &direct); err2 != nil {
			return nil, fmt.Errorf("%w: not an object or array: %v (original: %v)", ErrMalformed, err2, err)
		}
		items, err := n.Items(direct)
		if err != nil {
			return nil, err
		}
		return &models.FetchResult{Items: items, TotalItems: len(items)}, nil
	}

	if envelope.Items == nil {
		return nil, fmt.Errorf("%w: response has no items", ErrMalformed)
	}

	items, err := n.Items(envelope.Items)
	if err != nil {
		return nil, err
	}

	total := len(items)
	switch {
	case envelope.TotalItems != nil:
		total = *envelope.TotalItems
	case envelope.TotalCamel != nil:
		total = *envelope.TotalCamel
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: negative total %d", ErrMalformed, total)
	}

	return &models.FetchResult{Items: items, TotalItems: total}, nil
}

// Lookups decodes a category/manufacturer list
func Lookups(body []byte) ([]models.Lookup, error) {
	var lookups []models.Lookup
	if err := json.Unmarshal(body, &lookups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return lookups, nil
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func integralID(v *float64) *int64 {
	if v == nil || *v != math.Trunc(*v) {
		return nil
	}
	id := int64(*v)
	return &id
}
