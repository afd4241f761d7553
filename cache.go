package purfectgfx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// frameKey addresses one frame's pixel data in the content cache.
type frameKey struct {
	imageID uint32
	frameID uint32
}

// String formats the key as a stable, filesystem-safe path fragment.
// The format is a hex pair so it is identical across processes.
func (k frameKey) String() string {
	return fmt.Sprintf("%x-%x", k.imageID, k.frameID)
}

// ContentCache is a durable, size-accounted key->bytes store for decoded
// frame pixel data. It enforces the global storage budget by evicting
// whole images least-recently-used, ordered by image access time.
//
// A read miss for an entry that was previously stored means the entry
// was evicted; callers must treat that as degraded service, not an error.
type ContentCache struct {
	dir   string
	limit int64
	total int64

	entries map[frameKey]int64 // size of each stored entry

	// atimeOf reports the owning image's last-access time, used to order
	// eviction. onEvict lets the owner keep its billed-byte accounting
	// consistent with actual cache state.
	atimeOf func(imageID uint32) time.Time
	onEvict func(imageID, frameID uint32, size int64)
}

// NewContentCache creates a cache rooted at dir with the given byte
// budget. Entries are session-local decoded pixels, so any files left
// over from a previous session are removed.
func NewContentCache(dir string, limit int64) (*ContentCache, error) {
	if dir == "" {
		dir = defaultCacheDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &ContentCache{
		dir:     dir,
		limit:   limit,
		entries: make(map[frameKey]int64),
	}
	c.removeStaleFiles()
	return c, nil
}

// SetEvictionHooks installs the callbacks used to order eviction and to
// report evicted entries back to the owner.
func (c *ContentCache) SetEvictionHooks(
	atimeOf func(imageID uint32) time.Time,
	onEvict func(imageID, frameID uint32, size int64),
) {
	c.atimeOf = atimeOf
	c.onEvict = onEvict
}

// TotalSize returns the number of bytes currently stored.
func (c *ContentCache) TotalSize() int64 { return c.total }

// Limit returns the configured storage budget in bytes.
func (c *ContentCache) Limit() int64 { return c.limit }

// Dir returns the cache directory.
func (c *ContentCache) Dir() string { return c.dir }

func (c *ContentCache) pathFor(k frameKey) string {
	return filepath.Join(c.dir, k.String())
}

// Store persists data for (imageID, frameID), replacing any previous
// entry, then evicts least-recently-used images until the total fits the
// budget. The image being stored for is never evicted by its own store.
func (c *ContentCache) Store(imageID, frameID uint32, data []byte) error {
	k := frameKey{imageID, frameID}
	path := c.pathFor(k)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cache store %s: %w", k, err)
	}
	if old, ok := c.entries[k]; ok {
		c.total -= old
	}
	c.entries[k] = int64(len(data))
	c.total += int64(len(data))
	c.enforceLimit(imageID)
	return nil
}

// Read returns the stored bytes for (imageID, frameID), or found=false
// when the entry does not exist or was evicted.
func (c *ContentCache) Read(imageID, frameID uint32) ([]byte, bool) {
	k := frameKey{imageID, frameID}
	if _, ok := c.entries[k]; !ok {
		return nil, false
	}
	data, err := os.ReadFile(c.pathFor(k))
	if err != nil {
		// The file vanished under us; drop the entry so accounting
		// stays consistent with actual cache state.
		logError("cache read %s: %v", k, err)
		c.dropEntry(k)
		return nil, false
	}
	return data, true
}

// Remove deletes the entry for (imageID, frameID) and reports whether it
// existed. Removing a nonexistent entry is a no-op.
func (c *ContentCache) Remove(imageID, frameID uint32) bool {
	k := frameKey{imageID, frameID}
	if _, ok := c.entries[k]; !ok {
		return false
	}
	c.dropEntry(k)
	return true
}

// RemoveImage deletes all entries belonging to imageID and returns the
// number of bytes released.
func (c *ContentCache) RemoveImage(imageID uint32) int64 {
	var released int64
	for k, sz := range c.entries {
		if k.imageID == imageID {
			released += sz
			c.dropEntry(k)
		}
	}
	return released
}

// Close removes the cache directory and all entries.
func (c *ContentCache) Close() error {
	c.entries = make(map[frameKey]int64)
	c.total = 0
	return os.RemoveAll(c.dir)
}

func (c *ContentCache) dropEntry(k frameKey) {
	if sz, ok := c.entries[k]; ok {
		c.total -= sz
		delete(c.entries, k)
	}
	if err := os.Remove(c.pathFor(k)); err != nil && !os.IsNotExist(err) {
		logError("cache remove %s: %v", k, err)
	}
}

// enforceLimit evicts least-recently-used images until the total fits
// the budget. The protected image is skipped so a store can never evict
// the frames of the image it belongs to.
func (c *ContentCache) enforceLimit(protect uint32) {
	if c.limit <= 0 {
		return
	}
	for c.total > c.limit {
		victim, ok := c.oldestImage(protect)
		if !ok {
			return
		}
		var released int64
		for k, sz := range c.entries {
			if k.imageID != victim {
				continue
			}
			released += sz
			c.dropEntry(k)
			if c.onEvict != nil {
				c.onEvict(k.imageID, k.frameID, sz)
			}
		}
		logV("evicted image %d from content cache, released %s",
			victim, humanize.Bytes(uint64(released)))
	}
}

// oldestImage returns the image id with the least recent access time
// among cached entries, excluding the protected image.
func (c *ContentCache) oldestImage(protect uint32) (uint32, bool) {
	var victim uint32
	var victimAtime time.Time
	found := false
	seen := make(map[uint32]bool)
	for k := range c.entries {
		if k.imageID == protect || seen[k.imageID] {
			continue
		}
		seen[k.imageID] = true
		var at time.Time
		if c.atimeOf != nil {
			at = c.atimeOf(k.imageID)
		}
		if !found || at.Before(victimAtime) {
			victim, victimAtime, found = k.imageID, at, true
		}
	}
	return victim, found
}

// removeStaleFiles deletes leftover cache files from a prior session.
func (c *ContentCache) removeStaleFiles() {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		_ = os.Remove(filepath.Join(c.dir, de.Name()))
	}
}
