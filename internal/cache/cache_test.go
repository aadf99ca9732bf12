package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m1k1o/go-portal/internal/metrics"
)

func TestGetOrFetch(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	calls := 0
	loader := func() (any, error) {
		calls++
		return "value", nil
	}

	value, err := c.GetOrFetch("key", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	value, err = c.GetOrFetch("key", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", value)
	assert.Equal(t, 1, calls)
}

func TestGetOrFetchExpired(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	calls := 0
	loader := func() (any, error) {
		calls++
		return calls, nil
	}

	_, err := c.GetOrFetch("key", time.Millisecond, loader)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	value, err := c.GetOrFetch("key", time.Millisecond, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	failed := testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("error"))

	_, err := c.GetOrFetch("key", time.Minute, func() (any, error) {
		return nil, errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("error")))

	value, err := c.GetOrFetch("key", time.Minute, func() (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
}

func TestGetOrFetchSharesPendingLoad(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	var calls atomic.Int32
	release := make(chan struct{})

	loader := func() (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrFetch("key", time.Minute, loader)
		}(i)
	}

	// give all callers a chance to join
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, result := range results {
		assert.Equal(t, "value", result)
	}
}

func TestDeleteDuringFetch(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.GetOrFetch("players:list", time.Minute, func() (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	c.Delete("players:list")
	close(release)
	<-done

	value, err := c.GetOrFetch("players:list", time.Minute, func() (any, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
}

func TestDeleteByPattern(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	c.Set(KeyPlayerList, 1, time.Minute)
	c.Set(KeyPlayer("news"), 2, time.Minute)
	c.Set(KeyPlayerID(7), 3, time.Minute)
	c.Set("other", 4, time.Minute)

	c.DeleteByPattern("players:")

	for _, key := range []string{KeyPlayerList, KeyPlayer("news"), KeyPlayerID(7)} {
		_, ok := c.Get(key)
		assert.False(t, ok, key)
	}

	_, ok := c.Get("other")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()

	assert.Zero(t, c.Len())
}

func TestFetchTyped(t *testing.T) {
	c := New(time.Second)
	defer c.Shutdown()

	got, err := Fetch(c, "numbers", time.Minute, func() ([]int, error) {
		return []int{1, 2, 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	_, err = Fetch(c, "numbers", time.Minute, func() (string, error) {
		return "", nil
	})
	assert.Error(t, err)
}

func TestCleanupStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := New(10 * time.Millisecond)
	c.Set("key", 1, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond)

	c.Shutdown()
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "players:list", KeyPlayerList)
	assert.Equal(t, "players:pid:news", KeyPlayer("news"))
	assert.Equal(t, "players:id:42", KeyPlayerID(42))
}

func TestKeysDoNotCollide(t *testing.T) {
	tests := []struct {
		name string
		pId  string
		key  string
	}{
		{"pId named like list", "list", KeyPlayerList},
		{"pId named like list variant", "list:cover", KeyPlayerList + ":cover"},
		{"pId named like numeric id", "id:3", KeyPlayerID(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.key, KeyPlayer(tt.pId))
			assert.NotContains(t, KeyPlayer(tt.pId), KeyPlayerList)
		})
	}
}

func TestFetchPlayerNamedList(t *testing.T) {
	type player struct{ PID string }

	c := New(time.Second)
	defer c.Shutdown()

	p, err := Fetch(c, KeyPlayer("list"), time.Minute, func() (*player, error) {
		return &player{PID: "list"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "list", p.PID)

	players, err := Fetch(c, KeyPlayerList, time.Minute, func() ([]player, error) {
		return []player{{PID: "list"}, {PID: "news"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, players, 2)

	// dropping list views keeps player looked up by pId
	c.DeleteByPattern(KeyPlayerList)
	_, ok := c.Get(KeyPlayer("list"))
	assert.True(t, ok)
}
