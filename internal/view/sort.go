package view

import (
	"context"
	"errors"
	"fmt"

	"inventory-console/internal/query"
)

// ErrInvalidSortField is returned for a column that cannot be sorted
var ErrInvalidSortField = errors.New("unknown sort field")

// ToggleSort is called by column headers. Clicking the active column flips the order,
// any other column sorts ascending from the first page. Unknown columns fetch nothing.
func (c *Controller) ToggleSort(ctx context.Context, field query.SortField) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}
	_, _, err := c.loadWith(ctx, func(current query.Parameters) (query.Parameters, bool) {
		return current.WithSort(field), true
	})
	return err
}
