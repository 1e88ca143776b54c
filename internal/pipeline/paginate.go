package pipeline

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

// windowSize is the number of page buttons rendered by the dashboard.
const windowSize = 5

// Page is one window of a filtered collection.
// StartIndex is inclusive and EndIndex exclusive, both into the filtered
// collection.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int   `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	StartIndex int   `json:"start_index"`
	EndIndex   int   `json:"end_index"`
	Window     []int `json:"window"`
}

// Paginate slices items into the requested page. The page is clamped to
// [1, TotalPages] so a shrinking filter result never yields an empty
// out-of-range page.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	totalPages := TotalPages(total, pageSize)
	page = ClampPage(page, totalPages)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		StartIndex: start,
		EndIndex:   end,
		Window:     PageWindow(page, totalPages),
	}
}

// TotalPages returns max(1, ceil(n/pageSize)).
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (n + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage forces page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// PageWindow returns the page numbers to render as buttons. Up to five pages
// are shown; beyond that a five-wide window slides with the current page and
// sticks to either end.
func PageWindow(current, totalPages int) []int {
	current = ClampPage(current, totalPages)
	if totalPages <= windowSize {
		return pageRange(1, totalPages)
	}
	switch {
	case current <= 3:
		return pageRange(1, windowSize)
	case current >= totalPages-2:
		return pageRange(totalPages-windowSize+1, totalPages)
	default:
		return pageRange(current-2, current+2)
	}
}

func pageRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}
