// Package pager provides fixed-size chunking over an ordered result set and
// the self-contained signed cursors exchanged with an interactive
// navigation surface. No pagination state is held server-side: every
// navigation step re-derives its view from the cursor and a fresh fetch.
package pager

// DefaultPageSize is the number of items per page.
const DefaultPageSize = 10

// Paginate splits items into fixed-size chunks in order. A non-positive
// size falls back to DefaultPageSize. An empty input yields no pages.
func Paginate[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultPageSize
	}
	var pages [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[i:end])
	}
	return pages
}

// ClampPage saturates a requested page index into [0, totalPages-1]. A
// total of zero pages is treated as a single empty page at index 0.
func ClampPage(requested, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	if requested < 0 {
		return 0
	}
	if requested >= totalPages {
		return totalPages - 1
	}
	return requested
}

// Page returns the page at the clamped index, or nil when there are no
// pages.
func Page[T any](pages [][]T, index int) []T {
	if len(pages) == 0 {
		return nil
	}
	return pages[ClampPage(index, len(pages))]
}
