package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.failGet != nil {
		return "", f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Incr(_ context.Context, key string) (int64, error) {
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeStore) CacheKey(parts ...string) string {
	return "sc:cache:" + strings.Join(parts, ":")
}

func (f *fakeStore) FreshnessKey(dataset string) string {
	return "sc:freshness:" + dataset
}

type payload struct {
	Value int `json:"value"`
}

func TestFetchCachesUntilInvalidated(t *testing.T) {
	store := newFakeStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Value: calls}, nil
	}

	first, err := Fetch(ctx, c, []string{"movement"}, compute)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, []string{"movement"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, store.ttls["sc:cache:v0:movement"])

	token, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), token)

	third, err := Fetch(ctx, c, []string{"movement"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, third.Value)
	assert.Contains(t, store.data, "sc:cache:v1:movement")
}

func TestFetchComputeErrorIsNotCached(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0, nil)
	boom := errors.New("source down")

	_, err := Fetch(context.Background(), c, []string{"x"}, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestFetchFallsThroughOnRedisErrors(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("connection refused")
	c := New(store, 0, nil)

	v, err := Fetch(context.Background(), c, []string{"x"}, func(context.Context) (payload, error) {
		return payload{Value: 9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, v.Value)
}

func TestDisabledCacheAlwaysComputes(t *testing.T) {
	c := Disabled()
	assert.False(t, c.Enabled())

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := Fetch(context.Background(), c, []string{"x"}, func(context.Context) (payload, error) {
			calls++
			return payload{}, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)

	token, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, token)
}

func TestTokenRejectsGarbage(t *testing.T) {
	store := newFakeStore()
	store.data["sc:freshness:transactions"] = "abc"
	_, err := New(store, 0, nil).Token(context.Background())
	require.Error(t, err)
}
