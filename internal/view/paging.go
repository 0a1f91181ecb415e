package view

import (
	"context"

	"inventory-console/internal/query"
)

// GoTo moves to page n with filters and sort unchanged. Pages outside [1, totalPages]
// are ignored without fetching; the result reports whether a fetch was issued.
// Before the first response the page count is unknown and any positive page is accepted.
func (c *Controller) GoTo(ctx context.Context, n int) (bool, error) {
	_, issued, err := c.loadWith(ctx, func(current query.Parameters) (query.Parameters, bool) {
		inRange := n >= 1
		if c.loaded {
			inRange = c.pagerLocked().InRange(n)
		}
		if !inRange {
			return current, false
		}
		return current.WithPage(n, 0), true
	})
	if !issued {
		c.logger.Debug("Ignoring out of range page", "page", n)
	}
	return issued, err
}
