package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/shelf/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T, opts ...Option) (*Cache, string) {
	t.Helper()

	env := testutil.NewTestEnv(t)
	dir := env.Path("cache")

	c, err := New(dir, opts...)
	require.NoError(t, err)
	return c, dir
}

func TestPutGetMemoryAndDisk(t *testing.T) {
	c, dir := setupTestCache(t)

	c.Put("info:dune|frank herbert", []byte(`{"genre":"Sci-Fi"}`))

	got, ok := c.Get("info:dune|frank herbert")
	require.True(t, ok)
	assert.Equal(t, `{"genre":"Sci-Fi"}`, string(got))

	// A fresh cache over the same directory finds the value on disk.
	reopened, err := New(dir)
	require.NoError(t, err)
	got, ok = reopened.Get("info:dune|frank herbert")
	require.True(t, ok)
	assert.Equal(t, `{"genre":"Sci-Fi"}`, string(got))
	assert.Equal(t, 1, reopened.mem.len())
}

func TestGetMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestDiskFilesAreContentAddressed(t *testing.T) {
	c, dir := setupTestCache(t)

	c.Put("asset:https://example.com/cover.jpg", []byte("jpeg"))

	path := c.disk.path("asset:https://example.com/cover.jpg")
	rel, err := filepath.Rel(dir, path)
	require.NoError(t, err)
	assert.Len(t, filepath.Base(rel), 64)
	assert.Equal(t, filepath.Base(rel)[:2], filepath.Dir(rel))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestReturnedValuesAreCopies(t *testing.T) {
	c, _ := setupTestCache(t)
	value := []byte("abc")
	c.Put("k", value)
	value[0] = 'z'

	got, _ := c.Get("k")
	got[1] = 'z'

	again, _ := c.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestDiskFailureDoesNotFailPut(t *testing.T) {
	c, dir := setupTestCache(t)
	require.NoError(t, os.RemoveAll(dir))
	// A regular file where the cache directory should be makes every write fail.
	require.NoError(t, os.WriteFile(dir, []byte("blocker"), 0o644))

	c.Put("k", []byte("v"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
}

func TestMemoryOnlyCache(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	c.Put("k", []byte("v"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, "", c.Dir())

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMaxEntriesPolicy(t *testing.T) {
	c, _ := setupTestCache(t, WithPolicy(MaxEntries(2)))
	base := time.Now()
	tick := 0
	c.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	for i := range 3 {
		key := fmt.Sprintf("k%d", i)
		c.Put(key, []byte(key))
		// Spread mtimes so the oldest file is well defined.
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(c.disk.path(key), mtime, mtime))
	}

	assert.Equal(t, 2, c.mem.len())

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DiskEntries)

	_, err = os.Stat(c.disk.path("k0"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMaxEntriesMemoryKeepsRecentlyUsed(t *testing.T) {
	c, err := New("", WithPolicy(MaxEntries(2)))
	require.NoError(t, err)

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("c", []byte("3"))

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestMaxAgePolicy(t *testing.T) {
	c, dir := setupTestCache(t, WithPolicy(MaxAge(time.Hour)))
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("fresh", []byte("1"))
	c.Put("stale", []byte("2"))

	old := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(c.disk.path("stale"), old, old))

	// Reopen so the memory tier is rebuilt from disk timestamps.
	reopened, err := New(dir, WithPolicy(MaxAge(time.Hour)))
	require.NoError(t, err)
	reopened.now = func() time.Time { return now }

	_, ok := reopened.Get("fresh")
	assert.True(t, ok)
	_, ok = reopened.Get("stale")
	assert.False(t, ok)

	_, err = os.Stat(c.disk.path("stale"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMaxAgeExpiresMemoryEntries(t *testing.T) {
	c, err := New("", WithPolicy(MaxAge(time.Minute)))
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k", []byte("v"))
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestExpiredMemoryEntryFallsBackToRewrittenDisk(t *testing.T) {
	c, dir := setupTestCache(t, WithPolicy(MaxAge(time.Hour)))
	c.mem.put("k", []byte("old"), time.Now().Add(-2*time.Hour))

	// Another process refreshed the entry on disk.
	other, err := New(dir, WithPolicy(MaxAge(time.Hour)))
	require.NoError(t, err)
	other.Put("k", []byte("new"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", string(got))
}

func TestExpiryKeepsRewrittenEntries(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		m := newMemoryTier(0)
		stale := time.Now().Add(-time.Hour)
		m.put("k", []byte("old"), stale)
		m.put("k", []byte("new"), time.Now())

		assert.False(t, m.deleteIfStoredAt("k", stale))
		entry, ok := m.get("k")
		require.True(t, ok)
		assert.Equal(t, "new", string(entry.value))

		assert.True(t, m.deleteIfStoredAt("k", entry.storedAt))
		_, ok = m.get("k")
		assert.False(t, ok)
	})

	t.Run("disk", func(t *testing.T) {
		c, _ := setupTestCache(t, WithPolicy(MaxAge(time.Hour)))
		c.Put("k", []byte("old"))
		old := time.Now().Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(c.disk.path("k"), old, old))
		_, staleModTime, err := c.disk.read("k")
		require.NoError(t, err)

		c.Put("k", []byte("new"))
		c.expireDisk("k", staleModTime)

		data, _, err := c.disk.read("k")
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})
}

func TestPruneMaxAge(t *testing.T) {
	c, _ := setupTestCache(t, WithPolicy(MaxAge(time.Hour)))
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(c.disk.path("a"), old, old))

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestClear(t *testing.T) {
	c, _ := setupTestCache(t)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	require.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)
	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.DiskEntries)
	assert.Zero(t, stats.MemoryEntries)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := setupTestCache(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			c.Put(key, []byte(key))
			got, ok := c.Get(key)
			assert.True(t, ok)
			assert.Equal(t, key, string(got))
		}()
	}
	wg.Wait()

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.DiskEntries)
}

func TestGetOrFetch(t *testing.T) {
	c, _ := setupTestCache(t)
	calls := 0
	fetch := func() (testData, error) {
		calls++
		return testData{ID: 1, Name: "Dune"}, nil
	}

	first, hit, err := GetOrFetch(c, "book:1", fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Dune", first.Name)

	second, hit, err := GetOrFetch(c, "book:1", fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestGetOrFetchWithPolicySkipsStore(t *testing.T) {
	c, _ := setupTestCache(t)
	fetch := func() (*testData, error) { return nil, nil }

	_, _, err := GetOrFetchWithPolicy(c, "none", fetch, func(d *testData) bool { return d != nil })
	require.NoError(t, err)

	_, ok := c.Get("none")
	assert.False(t, ok)
}

func TestGetOrFetchPropagatesErrors(t *testing.T) {
	c, _ := setupTestCache(t)
	sentinel := errors.New("boom")

	_, _, err := GetOrFetch(c, "err", func() (testData, error) { return testData{}, sentinel })
	assert.ErrorIs(t, err, sentinel)

	_, ok := c.Get("err")
	assert.False(t, ok)
}

func TestGetOrFetchNilCache(t *testing.T) {
	got, hit, err := GetOrFetch[int](nil, "k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, got)
}

func TestGetOrFetchRefetchesCorruptEntry(t *testing.T) {
	c, _ := setupTestCache(t)
	c.Put("bad", []byte("{not json"))

	got, hit, err := GetOrFetch(c, "bad", func() (testData, error) { return testData{ID: 2}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, got.ID)
}
