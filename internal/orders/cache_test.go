package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersionInitialises(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)

	require.NoError(t, cache.Bump(ctx))
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, ver)
}

func TestCacheBumpChangesKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "orders", "list", "DRAFT")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.BuildKey(ctx, "orders", "list", "DRAFT")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "orders", "list")
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return map[string]int{"total": 3}, nil
	}

	var first map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 3, first["total"])

	var second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 3, second["total"])
	require.Equal(t, 1, calls)
}

func TestCacheFetchJSONLoaderError(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "orders", "list")
	require.NoError(t, err)

	boom := errors.New("boom")
	var dest map[string]int
	err = cache.FetchJSON(ctx, key, &dest, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestCacheNilClientDelegatesToLoader(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	var dest map[string]int
	err := cache.FetchJSON(ctx, "any", &dest, func(ctx context.Context) (any, error) {
		return map[string]int{"total": 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, dest["total"])
	require.NoError(t, cache.Bump(ctx))
}
