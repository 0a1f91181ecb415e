package pagination

// TotalPages returns ceil(totalItems / pageSize), never less than 1 so an empty
// result still shows a single page.
func TotalPages(totalItems, pageSize int) int {
	if pageSize < 1 || totalItems <= 0 {
		return 1
	}
	pages := (totalItems + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// State is the pagination bar of a list view
type State struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalItems  int `json:"totalItems"`
}

// TotalPages returns the page count for the current total
func (s State) TotalPages() int {
	return TotalPages(s.TotalItems, s.PageSize)
}

// InRange reports whether page n exists
func (s State) InRange(n int) bool {
	return n >= 1 && n <= s.TotalPages()
}

// HasPrev reports whether a previous page exists
func (s State) HasPrev() bool {
	return s.CurrentPage > 1
}

// HasNext reports whether a next page exists
func (s State) HasNext() bool {
	return s.CurrentPage < s.TotalPages()
}

// Window returns up to size consecutive page numbers centered on the current page,
// shifted to stay inside [1, TotalPages].
func (s State) Window(size int) []int {
	total := s.TotalPages()
	if size < 1 {
		return nil
	}
	if size > total {
		size = total
	}

	current := s.CurrentPage
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := current - size/2
	if start < 1 {
		start = 1
	}
	if start+size-1 > total {
		start = total - size + 1
	}

	pages := make([]int, size)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}
