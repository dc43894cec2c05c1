package cache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/sysfacts/internal/facts"
)

// Cache coordinates the in-memory and persistent tiers for a single cache
// directory. It is safe for concurrent use by multiple goroutines; across
// processes sharing the directory, safety is best-effort (see package doc).
type Cache struct {
	dir  string
	mem  *memoryStore
	disk *diskStore
	now  func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	now    func() time.Time
}

// WithLogger directs the cache's diagnostics to the given logger. Without
// it the cache is silent.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the cache's time source. Tests use this to drive TTL
// expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache backed by the given directory. The directory is an
// opaque absolute path supplied by the caller (see config.DefaultCacheDir);
// it is created lazily on the first write, so construction never touches
// the filesystem.
func New(dir string, opts ...Option) *Cache {
	o := options{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache{
		dir:  dir,
		mem:  newMemoryStore(),
		disk: newDiskStore(dir, o.logger),
		now:  o.now,
	}
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Set validates key, value, and ttl, then stores the value in both tiers
// with the current time as its stored timestamp. A ttl of TTLNone means the
// value is never cached, so nothing is stored; note that this does not evict
// a previously cached entry for the key — call Delete for that. When the
// disk write fails
// the memory tier is still updated, keeping the cache usable for the rest
// of the process run. Only validation failures are returned as errors.
func (c *Cache) Set(key string, value any, ttl int64) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	v, err := facts.FromAny(value)
	if err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}

	if ttl == TTLNone {
		return nil
	}

	entry := Entry{Key: key, Value: v, Stored: c.now().Unix(), TTL: ttl}
	mtime, _ := c.disk.save(entry)
	c.mem.put(key, memoryRecord{entry: entry, fileMtime: mtime})
	return nil
}

// Get returns the cached value for key using the entry's stored ttl. The
// boolean reports whether a fresh value was found; absence and expiry are
// results, not errors. The error channel carries only validation failures.
func (c *Cache) Get(key string) (facts.Value, bool, error) {
	return c.get(key, nil)
}

// GetWithTTL is Get with ttl overriding the entry's stored ttl. A ttl of
// TTLNone bypasses the cache entirely.
func (c *Cache) GetWithTTL(key string, ttl int64) (facts.Value, bool, error) {
	if err := ValidateTTL(ttl); err != nil {
		return nil, false, err
	}
	return c.get(key, &ttl)
}

func (c *Cache) get(key string, override *int64) (facts.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	if override != nil && *override == TTLNone {
		return nil, false, nil
	}

	entry, ok := c.reconcile(key)
	if !ok {
		return nil, false, nil
	}

	ttl := entry.TTL
	if override != nil {
		ttl = *override
	}

	if !freshAt(ttl, entry.Stored, c.now().Unix()) {
		// Expired entries are not eagerly deleted; they stay on disk until
		// overwritten.
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// reconcile decides which tier's copy of key is authoritative.
//
// The memory copy is trusted outright while the backing file's mtime
// matches the one recorded at last sync (or while both agree there is no
// file). Otherwise the disk copy is loaded and the entry with the larger
// stored timestamp wins: a newer disk entry is promoted into memory, and a
// newer memory entry is written back to disk to bring the tiers into
// agreement. Stored timestamps have second granularity, so two writers
// within the same second tie; the tie keeps the memory copy.
func (c *Cache) reconcile(key string) (Entry, bool) {
	diskMtime, fileExists := c.disk.mtime(key)
	rec, inMemory := c.mem.get(key)

	if inMemory {
		if fileExists && rec.fileMtime.Equal(diskMtime) {
			return rec.entry, true
		}
		if !fileExists && rec.fileMtime.IsZero() {
			return rec.entry, true
		}
	}

	diskEntry, loadedMtime, onDisk := c.disk.load(key)
	switch {
	case onDisk && inMemory:
		if diskEntry.Stored > rec.entry.Stored {
			c.mem.put(key, memoryRecord{entry: diskEntry, fileMtime: loadedMtime})
			return diskEntry, true
		}
		if rec.entry.Stored > diskEntry.Stored {
			// Memory is ahead of disk (a previous save failed, or another
			// process left an older file): push the memory copy back out.
			mtime, _ := c.disk.save(rec.entry)
			c.mem.put(key, memoryRecord{entry: rec.entry, fileMtime: mtime})
			return rec.entry, true
		}
		c.mem.put(key, memoryRecord{entry: rec.entry, fileMtime: loadedMtime})
		return rec.entry, true
	case onDisk:
		c.mem.put(key, memoryRecord{entry: diskEntry, fileMtime: loadedMtime})
		return diskEntry, true
	case inMemory:
		// Disk gone or unreadable: fall back to what memory holds.
		return rec.entry, true
	default:
		return Entry{}, false
	}
}

// Delete removes key from both tiers. Leaving the backing file in place
// would resurrect the key on the next reconciliation, so delete means
// delete everywhere. Idempotent.
func (c *Cache) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.mem.delete(key)
	c.disk.remove(key)
	return nil
}

// Clear empties the memory tier and removes every cache file from the
// directory.
func (c *Cache) Clear() {
	c.mem.clear()
	c.disk.removeAll()
}

// Stats returns the number of persisted entries and their total size in
// bytes.
func (c *Cache) Stats() (int, int64, error) {
	return c.disk.stats()
}
