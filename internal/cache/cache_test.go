package cache

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func staticFetch(status int, body string, calls *int32) FetchFunc {
	return func(ctx context.Context, url string) (int, []byte, error) {
		atomic.AddInt32(calls, 1)
		return status, []byte(body), nil
	}
}

func TestKeyDependsOnVersion(t *testing.T) {
	a := New(Options{Version: "v3"})
	b := New(Options{Version: "v4"})

	assert.Equal(t, a.Key("https://x/player.js"), a.Key("https://x/player.js"))
	assert.NotEqual(t, a.Key("https://x/player.js"), b.Key("https://x/player.js"))
	assert.NotEqual(t, a.Key("https://x/a.js"), a.Key("https://x/b.js"))
	assert.Len(t, a.Key("u"), 64)
}

func TestDefaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultVersion, c.Version())
	_, ok := c.store.(*MemoryStore)
	assert.True(t, ok)
}

func TestGetOrFetchStoresSuccess(t *testing.T) {
	var calls int32
	c := New(Options{})
	ctx := context.Background()

	e, hit, err := c.GetOrFetch(ctx, "https://x/p.js", staticFetch(http.StatusOK, "js", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "js", string(e.Body))

	e, hit, err = c.GetOrFetch(ctx, "https://x/p.js", staticFetch(http.StatusOK, "other", &calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "js", string(e.Body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrFetchSkipsFailures(t *testing.T) {
	var calls int32
	c := New(Options{})
	ctx := context.Background()

	e, _, err := c.GetOrFetch(ctx, "https://x/p.js", staticFetch(http.StatusForbidden, "no", &calls))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, e.Status)

	_, ok := c.Get("https://x/p.js")
	assert.False(t, ok)

	_, _, err = c.GetOrFetch(ctx, "https://x/p.js", staticFetch(http.StatusForbidden, "no", &calls))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrFetchPropagatesError(t *testing.T) {
	c := New(Options{})
	boom := errors.New("boom")
	_, _, err := c.GetOrFetch(context.Background(), "u", func(ctx context.Context, url string) (int, []byte, error) {
		return 0, nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("u")
	assert.False(t, ok)
}

func TestGetOrFetchSharesConcurrentFetch(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := New(Options{})

	fetch := func(ctx context.Context, url string) (int, []byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return http.StatusOK, []byte("shared"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := c.GetOrFetch(context.Background(), "https://x/p.js", fetch)
			if err == nil {
				results[i] = string(e.Body)
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrFetchHonoursContext(t *testing.T) {
	c := New(Options{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.GetOrFetch(ctx, "u", func(ctx context.Context, url string) (int, []byte, error) {
		<-release
		return http.StatusOK, nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetOrFetchCancelDoesNotAffectOtherWaiters(t *testing.T) {
	c := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value

	fetch := func(ctx context.Context, url string) (int, []byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return 0, nil, err
		}
		return http.StatusOK, []byte("script"), nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(ctxA, "https://x/p.js", fetch)
		errA <- err
	}()
	<-started

	type result struct {
		e   Entry
		err error
	}
	resB := make(chan result, 1)
	go func() {
		e, _, err := c.GetOrFetch(context.Background(), "https://x/p.js", fetch)
		resB <- result{e, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "script", string(b.e.Body))
	assert.Nil(t, fetchErr.Load())

	_, ok := c.Get("https://x/p.js")
	assert.True(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var calls int32
	c := New(Options{TTL: time.Hour, Clock: clock.Now})
	ctx := context.Background()

	_, _, err := c.GetOrFetch(ctx, "u", staticFetch(http.StatusOK, "a", &calls))
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, ok := c.Get("u")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.Get("u")
	assert.False(t, ok)

	_, hit, err := c.GetOrFetch(ctx, "u", staticFetch(http.StatusOK, "b", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPrune(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	c := New(Options{TTL: time.Hour, Clock: clock.Now, Store: store})
	var calls int32

	_, _, err := c.GetOrFetch(context.Background(), "old", staticFetch(http.StatusOK, "a", &calls))
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, _, err = c.GetOrFetch(context.Background(), "new", staticFetch(http.StatusOK, "b", &calls))
	require.NoError(t, err)
	require.NoError(t, store.Set("foreign", Entry{Version: "v1", Status: http.StatusOK, StoredAt: clock.Now()}))

	n, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	c := New(Options{Store: store})
	var calls int32
	_, _, err = c.GetOrFetch(context.Background(), "https://x/p.js", staticFetch(http.StatusOK, "var a=1;", &calls))
	require.NoError(t, err)

	// A second cache over the same directory sees the entry.
	c2 := New(Options{Store: store})
	e, ok := c2.Get("https://x/p.js")
	require.True(t, ok)
	assert.Equal(t, "var a=1;", string(e.Body))

	files, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileStoreCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "bad"+fileSuffix)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := store.Get("bad")
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreDeleteAndRange(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("a", Entry{URL: "a"}))
	require.NoError(t, store.Set("b", Entry{URL: "b"}))

	seen := map[string]bool{}
	require.NoError(t, store.Range(func(key string, e Entry) bool {
		seen[key] = e.URL == key
		return true
	}))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("a"))
	_, ok := store.Get("a")
	assert.False(t, ok)
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestStartJanitor(t *testing.T) {
	c := New(Options{})
	stop, err := c.StartJanitor("@every 1h")
	require.NoError(t, err)
	stop()

	_, err = c.StartJanitor("not a schedule")
	assert.Error(t, err)
}
