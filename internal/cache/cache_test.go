package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/sysfacts/internal/facts"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *testClock) {
	t.Helper()
	clock := newTestClock()
	return New(t.TempDir(), WithClock(clock.Now)), clock
}

// writeEntryFile plants a cache document directly on disk, bypassing the
// coordinator, the way another process would.
func writeEntryFile(t *testing.T, c *Cache, key string, data any, stored, ttl int64) string {
	t.Helper()
	path := c.disk.filePath(key)
	raw, err := json.Marshal(document{Data: data, Stored: stored, TTL: ttl, Key: key})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(c.dir, 0750))
	require.NoError(t, os.WriteFile(path, raw, 0600))
	// Force a visible mtime change so the dirty-check cannot be fooled by
	// coarse filesystem timestamp granularity.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	return path
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)

	value := map[string]any{
		"addresses": []any{"10.0.0.1", "10.0.0.2"},
		"count":     2,
		"ratio":     0.5,
		"enabled":   true,
		"gateway":   nil,
	}

	require.NoError(t, c.Set("network", value, 300))

	got, hit, err := c.Get("network")
	require.NoError(t, err)
	require.True(t, hit)

	expected := map[string]any{
		"addresses": []any{"10.0.0.1", "10.0.0.2"},
		"count":     int64(2),
		"ratio":     0.5,
		"enabled":   true,
		"gateway":   nil,
	}
	assert.Equal(t, expected, got.Native())

	t.Run("SurvivesProcessRestart", func(t *testing.T) {
		fresh := New(c.Dir())
		got, hit, err := fresh.Get("network")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, expected, got.Native())
	})

	t.Run("WholeValuedFloatStaysFloat", func(t *testing.T) {
		require.NoError(t, c.Set("ratio", 2.0, 300))

		fresh := New(c.Dir())
		got, hit, err := fresh.Get("ratio")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, facts.Float(2), got)
	})
}

func TestCacheTTL(t *testing.T) {
	t.Run("Forever", func(t *testing.T) {
		c, clock := newTestCache(t)

		require.NoError(t, c.Set("k", "v", TTLNever))
		clock.Advance(100 * 365 * 24 * time.Hour)

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "v", got.Native())
	})

	t.Run("Expiry", func(t *testing.T) {
		c, clock := newTestCache(t)

		require.NoError(t, c.Set("k", "v", 5))

		clock.Advance(5 * time.Second)
		_, hit, err := c.Get("k")
		require.NoError(t, err)
		assert.True(t, hit, "entry aged exactly ttl seconds is still fresh")

		clock.Advance(1 * time.Second)
		_, hit, err = c.Get("k")
		require.NoError(t, err)
		assert.False(t, hit, "entry older than ttl is expired")
	})

	t.Run("Override", func(t *testing.T) {
		c, clock := newTestCache(t)

		require.NoError(t, c.Set("k", "v", 5))
		clock.Advance(7 * time.Second)

		_, hit, err := c.Get("k")
		require.NoError(t, err)
		assert.False(t, hit)

		got, hit, err := c.GetWithTTL("k", 15)
		require.NoError(t, err)
		require.True(t, hit, "override ttl takes precedence over stored ttl")
		assert.Equal(t, "v", got.Native())

		_, hit, err = c.GetWithTTL("k", 3)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("ZeroNeverCaches", func(t *testing.T) {
		c, _ := newTestCache(t)

		require.NoError(t, c.Set("k", "v", TTLNone))

		_, hit, err := c.Get("k")
		require.NoError(t, err)
		assert.False(t, hit)

		count, _, err := c.Stats()
		require.NoError(t, err)
		assert.Zero(t, count, "ttl 0 must not touch the disk tier")
	})

	t.Run("ZeroLeavesExistingEntry", func(t *testing.T) {
		c, _ := newTestCache(t)

		require.NoError(t, c.Set("k", "v1", 300))
		require.NoError(t, c.Set("k", "v2", TTLNone))

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "v1", got.Native(), "ttl 0 stores nothing and does not evict")
	})

	t.Run("ZeroOverrideNeverHonorsCache", func(t *testing.T) {
		c, _ := newTestCache(t)

		require.NoError(t, c.Set("k", "v", 300))
		_, hit, err := c.GetWithTTL("k", TTLNone)
		require.NoError(t, err)
		assert.False(t, hit)
	})
}

func TestCacheValidation(t *testing.T) {
	c, _ := newTestCache(t)

	t.Run("Key", func(t *testing.T) {
		assert.ErrorIs(t, c.Set("", "x", 5), ErrInvalidKey)
		assert.ErrorIs(t, c.Set(strings.Repeat("a", 256), "x", 5), ErrInvalidKey)
		require.NoError(t, c.Set(strings.Repeat("a", 255), "x", 5))

		_, _, err := c.Get("")
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.ErrorIs(t, c.Delete(""), ErrInvalidKey)
	})

	t.Run("Value", func(t *testing.T) {
		assert.ErrorIs(t, c.Set("k", struct{}{}, 5), facts.ErrUnsupportedValue)
		assert.ErrorIs(t, c.Set("k", map[string]any{"nested": []any{time.Now()}}, 5), facts.ErrUnsupportedValue)
	})

	t.Run("TTL", func(t *testing.T) {
		assert.ErrorIs(t, c.Set("k", "x", -15), ErrInvalidTTL)
		assert.ErrorIs(t, c.Set("k", "x", MaxTTL+1), ErrInvalidTTL)

		_, _, err := c.GetWithTTL("k", -2)
		assert.ErrorIs(t, err, ErrInvalidTTL)
	})

	t.Run("NoPartialWrite", func(t *testing.T) {
		dir := t.TempDir()
		cc := New(dir)
		require.Error(t, cc.Set("bad", struct{}{}, 5))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "rejected operations must not touch any tier")
	})
}

func TestCacheReconciliation(t *testing.T) {
	t.Run("DiskWinsWhenNewer", func(t *testing.T) {
		c, clock := newTestCache(t)

		require.NoError(t, c.Set("k", "old", 300))
		writeEntryFile(t, c, "k", "new", clock.Now().Unix()+10, 300)

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "new", got.Native())

		// Promoted into memory: a second get with the file untouched must
		// keep returning the disk value.
		got, hit, err = c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "new", got.Native())
	})

	t.Run("MemoryWinsWhenNewerAndWritesBack", func(t *testing.T) {
		c, clock := newTestCache(t)

		require.NoError(t, c.Set("k", "current", 300))
		path := writeEntryFile(t, c, "k", "stale", clock.Now().Unix()-100, 300)

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "current", got.Native())

		// The stale file was overwritten with the memory copy.
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc document
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, "current", doc.Data)
		assert.Equal(t, clock.Now().Unix(), doc.Stored)
	})

	t.Run("MemoryOnlyWhenFileDisappears", func(t *testing.T) {
		c, _ := newTestCache(t)

		require.NoError(t, c.Set("k", "v", 300))
		require.NoError(t, os.Remove(c.disk.filePath("k")))

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit, "memory copy survives external file removal")
		assert.Equal(t, "v", got.Native())
	})

	t.Run("AdoptsDiskEntryWithoutMemoryRecord", func(t *testing.T) {
		c, clock := newTestCache(t)
		writeEntryFile(t, c, "k", "planted", clock.Now().Unix(), 300)

		got, hit, err := c.Get("k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "planted", got.Native())
	})
}

func TestCacheCorruptionTolerance(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	dir := t.TempDir()
	seed := New(dir)
	require.NoError(t, seed.Set("k", "v", 300))

	path := seed.disk.filePath("k")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not json"), 0600))

	// A fresh coordinator (new process) has no memory copy to fall back on.
	c := New(dir, WithLogger(logger))

	for range 3 {
		_, hit, err := c.Get("k")
		require.NoError(t, err)
		assert.False(t, hit)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "corrupt cache file"),
		"repeated corruption warns exactly once per message")
}

func TestCacheWrongShapeIsCorruption(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	c := New(dir, WithLogger(zerolog.New(&buf)))

	path := c.disk.filePath("k")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(path, []byte(`["valid","json","wrong","shape"]`), 0600))

	_, hit, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, buf.String(), "corrupt cache file")
}

func TestCacheDegradedDisk(t *testing.T) {
	var buf bytes.Buffer

	// A directory that cannot be created: its parent is a regular file.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	dir := filepath.Join(blocker, "cache")

	c := New(dir, WithLogger(zerolog.New(&buf)))

	require.NoError(t, c.Set("k", "v", 300))

	got, hit, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, hit, "memory tier keeps working when disk is unwritable")
	assert.Equal(t, "v", got.Native())
	assert.Contains(t, buf.String(), "cannot create cache directory")
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Set("k", "v", 300))
	require.NoError(t, c.Delete("k"))

	_, hit, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, hit)

	// Delete removes the backing file too; otherwise the next process
	// would resurrect the key.
	fresh := New(c.Dir())
	_, hit, err = fresh.Get("k")
	require.NoError(t, err)
	assert.False(t, hit)

	t.Run("Idempotent", func(t *testing.T) {
		require.NoError(t, c.Delete("k"))
	})
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(t)

	for i := range 5 {
		require.NoError(t, c.Set(fmt.Sprintf("key-%d", i), i, 300))
	}

	c.Clear()

	for i := range 5 {
		_, hit, err := c.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.False(t, hit)
	}

	count, size, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, size)
}

func TestCacheConcurrentAccess(t *testing.T) {
	dir := t.TempDir()

	// Two coordinators over one directory stand in for two processes.
	writerA := New(dir)
	writerB := New(dir)
	path := writerA.disk.filePath("shared")

	var writers sync.WaitGroup
	for _, w := range []*Cache{writerA, writerB} {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := range 100 {
				if err := w.Set("shared", map[string]any{"iteration": i}, 300); err != nil {
					t.Errorf("set failed during race: %v", err)
					return
				}
				if _, _, err := w.Get("shared"); err != nil {
					t.Errorf("get failed during race: %v", err)
					return
				}
			}
		}()
	}

	writersDone := make(chan struct{})
	go func() {
		writers.Wait()
		close(writersDone)
	}()

	// Readers race the writers for the whole run; they must only ever
	// observe a complete document or no file.
	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-writersDone:
					return
				default:
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				var doc document
				if err := json.Unmarshal(raw, &doc); err != nil {
					t.Errorf("observed partially written cache file: %v", err)
					return
				}
				if _, err := facts.FromAny(doc.Data); err != nil {
					t.Errorf("observed invalid cache data: %v", err)
					return
				}
			}
		}()
	}

	readers.Wait()

	got, hit, err := writerA.Get("shared")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Contains(t, got.Native(), "iteration")
}
