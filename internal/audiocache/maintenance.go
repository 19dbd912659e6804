package audiocache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// partialMaxAge is how long an abandoned partial file may linger before Prune removes it.
const partialMaxAge = time.Hour

// Stats summarizes the cache directory.
type Stats struct {
	Artifacts  int
	Keys       int
	Bytes      int64
	Partials   int
	Oldest     time.Time
	Newest     time.Time
	Duplicates int
}

// Stats walks the cache directory. Duplicates counts artifacts beyond the
// first for a key, left behind by concurrent population.
func (c *Cache) Stats() (Stats, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("audiocache: read %s: %w", c.dir, err)
	}
	var stats Stats
	keys := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, partialPrefix) {
			stats.Partials++
			continue
		}
		key, ok := artifactKey(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Artifacts++
		stats.Bytes += info.Size()
		keys[key]++
		mod := info.ModTime()
		if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
			stats.Oldest = mod
		}
		if mod.After(stats.Newest) {
			stats.Newest = mod
		}
	}
	stats.Keys = len(keys)
	stats.Duplicates = stats.Artifacts - stats.Keys
	return stats, nil
}

// PruneResult reports what Prune removed.
type PruneResult struct {
	Removed int
	Freed   int64
	Errors  []error
}

// Prune deletes artifacts not modified within olderThan, plus partial files
// abandoned by interrupted syntheses. Nothing else removes artifacts.
func (c *Cache) Prune(olderThan time.Duration) (PruneResult, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return PruneResult{}, fmt.Errorf("audiocache: read %s: %w", c.dir, err)
	}
	now := c.now()
	var result PruneResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		limit := olderThan
		if strings.HasPrefix(name, partialPrefix) {
			limit = partialMaxAge
		} else if _, ok := artifactKey(name); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < limit {
			continue
		}
		path := filepath.Join(c.dir, name)
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Removed++
		result.Freed += info.Size()
	}
	return result, nil
}

// artifactKey extracts the key from "<64 hex>-<stamp>.mp3".
func artifactKey(name string) (string, bool) {
	if !strings.HasSuffix(name, artifactExt) || len(name) < 66 || name[64] != '-' {
		return "", false
	}
	key := name[:64]
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", false
		}
	}
	return key, true
}
