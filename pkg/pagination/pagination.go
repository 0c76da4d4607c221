// Package pagination provides the opaque-cursor conventions for chunked
// listing operations. Cursors are never inspected here: a cursor is valid
// only for the listing it was issued from, and only the issuing peer can
// decode it.
package pagination

import "github.com/mcpwire/mcpwire/pkg/protocol"

// DefaultPageSize is the recommended page size for listing providers.
const DefaultPageSize = 50

// MaxPageSize caps the page size a provider should return.
const MaxPageSize = 200

// ClampPageSize applies the default and maximum to a provider-chosen size.
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// FirstPage returns params requesting the first page: the cursor parameter
// is absent from the wire, which is distinct from an empty-string cursor.
func FirstPage() protocol.PaginatedParams {
	return protocol.PaginatedParams{}
}

// PageAfter returns params continuing from a previously issued cursor.
func PageAfter(cursor protocol.Cursor) protocol.PaginatedParams {
	return protocol.PaginatedParams{Cursor: &cursor}
}

// HasNextPage reports whether a result points at a further page.
func HasNextPage(result protocol.PaginatedResult) bool {
	return result.NextCursor != ""
}

// Collector drives list-all loops across pages of a single listing query.
type Collector struct {
	nextCursor protocol.Cursor
	started    bool
	exhausted  bool
	totalItems int
}

// NewCollector creates a collector positioned before the first page.
func NewCollector() *Collector {
	return &Collector{}
}

// NextParams returns the params for the next page to fetch: absent cursor
// for the first page, the last returned cursor afterwards.
func (c *Collector) NextParams() protocol.PaginatedParams {
	if !c.started {
		return FirstPage()
	}
	return PageAfter(c.nextCursor)
}

// Update records one fetched page.
func (c *Collector) Update(result protocol.PaginatedResult, itemCount int) {
	c.started = true
	c.totalItems += itemCount
	c.nextCursor = result.NextCursor
	c.exhausted = result.NextCursor == ""
}

// Done reports whether the listing is exhausted.
func (c *Collector) Done() bool {
	return c.started && c.exhausted
}

// TotalItems returns the number of items seen across all pages so far.
func (c *Collector) TotalItems() int {
	return c.totalItems
}
