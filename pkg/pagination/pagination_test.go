package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpwire/mcpwire/pkg/protocol"
)

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampPageSize(0))
	assert.Equal(t, DefaultPageSize, ClampPageSize(-3))
	assert.Equal(t, 10, ClampPageSize(10))
	assert.Equal(t, MaxPageSize, ClampPageSize(MaxPageSize+1))
}

func TestFirstPageOmitsCursor(t *testing.T) {
	assert.Nil(t, FirstPage().Cursor)
}

func TestPageAfterCarriesCursor(t *testing.T) {
	params := PageAfter("c1")
	require.NotNil(t, params.Cursor)
	assert.Equal(t, "c1", *params.Cursor)
}

func TestCollectorDrivesPages(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.Done())
	assert.Nil(t, c.NextParams().Cursor)

	c.Update(protocol.PaginatedResult{NextCursor: "c1"}, 2)
	require.False(t, c.Done())
	require.NotNil(t, c.NextParams().Cursor)
	assert.Equal(t, "c1", *c.NextParams().Cursor)

	c.Update(protocol.PaginatedResult{}, 1)
	assert.True(t, c.Done())
	assert.Equal(t, 3, c.TotalItems())
}

func TestHasNextPage(t *testing.T) {
	assert.True(t, HasNextPage(protocol.PaginatedResult{NextCursor: "x"}))
	assert.False(t, HasNextPage(protocol.PaginatedResult{}))
}
