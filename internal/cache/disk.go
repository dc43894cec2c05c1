package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/sysfacts/internal/facts"
	"github.com/rshade/sysfacts/internal/logging"
)

const (
	// cacheFilePrefix and cacheFileExtension frame every cache file name.
	cacheFilePrefix    = "cache_"
	cacheFileExtension = ".json"

	// component tags warn-once diagnostics from the persistent tier.
	component = "cache"
)

// document is the on-disk shape of a cache entry. Data is decoded as plain
// JSON and validated into a facts.Value after parsing.
type document struct {
	Data   any    `json:"data"`
	Stored int64  `json:"stored"`
	TTL    int64  `json:"ttl"`
	Key    string `json:"key"`
}

// diskStore is the persistent tier: one JSON file per key in a directory
// shared across processes. All failure modes are non-fatal; the store warns
// once per distinct condition and reports a miss, letting the coordinator
// fall back to memory-only operation.
type diskStore struct {
	dir    string
	logger zerolog.Logger
	warn   *logging.Once
}

func newDiskStore(dir string, logger zerolog.Logger) *diskStore {
	return &diskStore{dir: dir, logger: logger, warn: &logging.Once{}}
}

// filePath returns the deterministic path for a key. Hashing the key keeps
// file names bounded-length and filesystem-safe regardless of key content.
func (d *diskStore) filePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, cacheFilePrefix+hex.EncodeToString(sum[:])+cacheFileExtension)
}

// load reads and parses the file for key. A missing file is a plain miss.
// Unparseable content, the wrong document shape, and permission errors are
// all treated as misses after a warn-once diagnostic naming the file.
func (d *diskStore) load(key string) (Entry, time.Time, bool) {
	path := d.filePath(key)

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.warn.Warn(d.logger, component, fmt.Sprintf("cannot open cache file %s: %v", path, err))
		}
		return Entry{}, time.Time{}, false
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, time.Time{}, false
	}

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("corrupt cache file %s: %v", path, err))
		return Entry{}, time.Time{}, false
	}

	value, err := facts.FromAny(doc.Data)
	if err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("corrupt cache file %s: %v", path, err))
		return Entry{}, time.Time{}, false
	}

	return Entry{Key: doc.Key, Value: value, Stored: doc.Stored, TTL: doc.TTL}, info.ModTime(), true
}

// save atomically writes entry to its file: serialize to a uniquely-named
// temporary file in the target directory, then rename over the target. Any
// leftover temporary file is removed on every exit path. Returns the new
// file's modification time and whether the write landed; failures warn once
// and leave the target untouched.
func (d *diskStore) save(entry Entry) (time.Time, bool) {
	path := d.filePath(entry.Key)

	// Serialize the value itself, not its native form: Float marshals with
	// a forced decimal point so whole-valued floats survive the trip as
	// floats.
	doc := document{Data: entry.Value, Stored: entry.Stored, TTL: entry.TTL, Key: entry.Key}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("cannot serialize cache entry for %q: %v", entry.Key, err))
		return time.Time{}, false
	}

	if err := os.MkdirAll(d.dir, 0750); err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("cannot create cache directory %s: %v", d.dir, err))
		return time.Time{}, false
	}

	// pid + ULID (timestamp + randomness) keeps concurrent writers and
	// retries from colliding on the temporary name.
	tmp := fmt.Sprintf("%s.%d.%s.tmp", path, os.Getpid(), ulid.Make().String())
	defer func() { _ = os.Remove(tmp) }()

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("cannot write cache file %s: %v", tmp, err))
		return time.Time{}, false
	}

	if err := os.Rename(tmp, path); err != nil {
		d.warn.Warn(d.logger, component, fmt.Sprintf("cannot rename cache file %s: %v", path, err))
		return time.Time{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		// Another process may have already replaced or removed the file;
		// the write itself landed.
		return time.Time{}, true
	}
	return info.ModTime(), true
}

// mtime stats the file for key. A missing or unreadable file reports a
// miss, never an error.
func (d *diskStore) mtime(key string) (time.Time, bool) {
	info, err := os.Stat(d.filePath(key))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// remove deletes the file for key, tolerating its absence.
func (d *diskStore) remove(key string) {
	path := d.filePath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.warn.Warn(d.logger, component, fmt.Sprintf("cannot remove cache file %s: %v", path, err))
	}
}

// removeAll deletes every cache file in the directory.
func (d *diskStore) removeAll() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			d.warn.Warn(d.logger, component, fmt.Sprintf("cannot read cache directory %s: %v", d.dir, err))
		}
		return
	}

	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !isCacheFile(dirEntry.Name()) {
			continue
		}
		path := filepath.Join(d.dir, dirEntry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.warn.Warn(d.logger, component, fmt.Sprintf("cannot remove cache file %s: %v", path, err))
		}
	}
}

// stats returns the number of cache files and their total size in bytes.
func (d *diskStore) stats() (int, int64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	count := 0
	var totalSize int64
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !isCacheFile(dirEntry.Name()) {
			continue
		}
		count++
		info, infoErr := dirEntry.Info()
		if infoErr != nil {
			continue
		}
		totalSize += info.Size()
	}
	return count, totalSize, nil
}

func isCacheFile(name string) bool {
	return strings.HasPrefix(name, cacheFilePrefix) && filepath.Ext(name) == cacheFileExtension
}
