package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklending/internal/acquisition"
	"booklending/internal/book"
	"booklending/internal/domain"
	"booklending/internal/seed"
	"booklending/internal/store"
)

func TestDemo(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	now := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	sum, err := seed.Demo(ctx, mem, now)
	require.NoError(t, err)
	assert.False(t, sum.Skipped)
	assert.Len(t, sum.Offices, 2)
	assert.Len(t, sum.Users, 6)
	assert.Equal(t, 14, sum.Books)
	assert.Equal(t, 18, sum.Copies)
	assert.Equal(t, 4, sum.Requests)

	berlin := sum.Offices[0]
	books, total, err := mem.List(ctx, book.Query{OfficeID: berlin.ID, Status: domain.StatusInStock, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, books, 5)

	views, err := mem.ListRequests(ctx, acquisition.ListQuery{OfficeID: berlin.ID})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 2, views[0].Request.Likes)
	for _, v := range views {
		assert.Equal(t, len(v.Request.LikedBy), v.Request.Likes)
	}

	again, err := seed.Demo(ctx, mem, now)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestID_IsStable(t *testing.T) {
	assert.Equal(t, seed.ID("office/berlin"), seed.ID("office/berlin"))
	assert.NotEqual(t, seed.ID("office/berlin"), seed.ID("office/lisbon"))
	assert.Len(t, seed.ID("x"), 36)
}
