package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFetchCachesWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := New[string](5*time.Minute, 0, WithClock[string](clock))
	require.NoError(t, err)

	var fetches atomic.Int64
	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "value", nil
	}

	v, cached, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.False(t, cached)

	v, cached, err = c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.True(t, cached)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestGetOrFetchExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := New[int](time.Minute, 0, WithClock[int](clock))
	require.NoError(t, err)

	var fetches atomic.Int64
	fetch := func(ctx context.Context) (int, error) {
		fetches.Add(1)
		return int(fetches.Load()), nil
	}

	v, _, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Advance past the TTL; the entry must be refetched.
	now = now.Add(2 * time.Minute)

	v, cached, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, v)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c, err := New[string](time.Minute, 0)
	require.NoError(t, err)

	fetchErr := errors.New("upstream down")
	_, _, err = c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)

	// A subsequent successful fetch must go upstream, not serve a poisoned entry.
	v, cached, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "recovered", v)
}

func TestGetOrFetchErrorKeepsOldEntryExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := New[string](time.Minute, 0, WithClock[string](clock))
	require.NoError(t, err)

	_, _, err = c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "stale", nil
	})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	// Expired entry plus failing fetch: caller sees the error, not the stale value.
	_, _, err = c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	assert.Error(t, err)
}

func TestSingleFlight(t *testing.T) {
	c, err := New[string](time.Minute, 0)
	require.NoError(t, err)

	var fetches atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		fetches.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrFetch(context.Background(), "k", fetch)
		}(i)
	}

	// Give every goroutine a chance to enter GetOrFetch before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c, err := New[string](time.Minute, 0)
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		key := key
		v, _, err := c.GetOrFetch(context.Background(), key, func(ctx context.Context) (string, error) {
			return "v-" + key, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "v-"+key, v)
	}

	hits, misses := c.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(3), misses)
}
