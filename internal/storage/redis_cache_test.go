package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, namespace string) (*RedisResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisResponseCache(client, namespace, 5*time.Minute), mr
}

func TestRedisResponseCache_GetSet(t *testing.T) {
	cache, mr := newTestRedisCache(t, "vidpulse")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "report:public:abc:30")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "report:public:abc:30", []byte(`{"metrics":{}}`)))

	val, ok, err := cache.Get(ctx, "report:public:abc:30")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"metrics":{}}`, string(val))

	assert.True(t, mr.Exists("vidpulse:report:public:abc:30"))
	assert.Equal(t, 5*time.Minute, mr.TTL("vidpulse:report:public:abc:30"))

	mr.FastForward(6 * time.Minute)
	_, ok, err = cache.Get(ctx, "report:public:abc:30")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisResponseCache_DeletePrefix(t *testing.T) {
	cache, mr := newTestRedisCache(t, "")
	ctx := context.Background()

	for _, k := range []string{"report:public:abc:0", "report:public:abc:30", "report:public:abcd:30"} {
		require.NoError(t, cache.Set(ctx, k, []byte("x")))
	}

	require.NoError(t, cache.DeletePrefix(ctx, "report:public:abc:"))

	assert.False(t, mr.Exists("report:public:abc:0"))
	assert.False(t, mr.Exists("report:public:abc:30"))
	assert.True(t, mr.Exists("report:public:abcd:30"))

	require.NoError(t, cache.DeletePrefix(ctx, "report:public:none:"))
}

func TestRedisResponseCache_Unavailable(t *testing.T) {
	cache, mr := newTestRedisCache(t, "")
	mr.Close()

	_, _, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
}
