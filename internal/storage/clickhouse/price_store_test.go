package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

func TestPriceStore_InsertBulkSkipsDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)

	n, err := store.InsertBulk(ctx, []*domain.PricePoint{
		{Asset: "btc", Timestamp: 3600, PriceUSD: 100},
		{Asset: "BTC", Timestamp: 3600, PriceUSD: 100.5},
		{Asset: "BTC", Timestamp: 4000, PriceUSD: 101},
		{Asset: "ETH", Timestamp: 3600, PriceUSD: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.InsertBulk(ctx, []*domain.PricePoint{
		{Asset: "BTC", Timestamp: 3600, PriceUSD: 999},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.InsertBulk(ctx, []*domain.PricePoint{
		{Asset: "BTC", Timestamp: 3600, PriceUSD: 999},
		{Asset: "BTC", Timestamp: 7200, PriceUSD: 102},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	btc, err := store.GetByAsset(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, btc, 3)
	assert.Equal(t, int64(3600), btc[0].Timestamp)
	assert.Equal(t, 100.0, btc[0].PriceUSD)
	assert.Equal(t, int64(7200), btc[2].Timestamp)

	window, err := store.GetByTimeRange(ctx, "btc", 3601, 7200)
	require.NoError(t, err)
	assert.Len(t, window, 2)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "ETH", all[3].Asset)
}

func TestPriceStore_GetLatestTimestamp(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)

	_, err := store.GetLatestTimestamp(ctx, "BTC", false)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = store.InsertBulk(ctx, []*domain.PricePoint{
		{Asset: "BTC", Timestamp: 3600, PriceUSD: 100},
		{Asset: "BTC", Timestamp: 5000, PriceUSD: 101},
	})
	require.NoError(t, err)

	latest, err := store.GetLatestTimestamp(ctx, "BTC", false)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), latest)

	latest, err = store.GetLatestTimestamp(ctx, "BTC", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), latest)
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore(nil)

	n, err := store.InsertBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.InsertBulk(context.Background(), []*domain.PricePoint{{Asset: "BTC", Timestamp: 1, PriceUSD: -1}})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestParseDSN(t *testing.T) {
	opts, err := parseDSN("clickhouse://user:pw@ch.local/prices")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch.local:9000"}, opts.Addr)
	assert.Equal(t, "user", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "prices", opts.Auth.Database)

	_, err = parseDSN("clickhouse:///nohost")
	assert.Error(t, err)
}
