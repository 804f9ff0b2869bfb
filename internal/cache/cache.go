// Package cache is the fingerprinted, TTL-bounded result cache. Each
// key maps to one extension-less file under the cache directory; builds
// are at-most-once per key: in-process via singleflight, cross-process
// via best-effort lock files.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// formatVersion frames every cache file; readers reject anything else.
const formatVersion = 1

const (
	// DefaultTTL bounds entry freshness (GANDALF_CACHE_TTL overrides).
	DefaultTTL = time.Hour

	// defaultMaxDirBytes triggers eviction when the directory grows past it.
	defaultMaxDirBytes = 100 << 20

	// lockPollInterval paces waiting on another process's build.
	lockPollInterval = 50 * time.Millisecond

	// lockWaitBudget caps how long a caller waits on a foreign lock
	// before building anyway. Cross-process exclusion is best-effort.
	lockWaitBudget = 5 * time.Second
)

// entry is the on-disk frame around a cached payload.
type entry struct {
	Version        int             `json:"version"`
	CreatedAt      int64           `json:"created_at"`
	TTLSeconds     int64           `json:"ttl_seconds"`
	KeyFingerprint string          `json:"key_fingerprint"`
	Payload        json.RawMessage `json:"payload"`
}

// Builder produces the value to cache on a miss.
type Builder func(ctx context.Context) (any, error)

// Cache is a keyed on-disk cache. Safe for concurrent use.
type Cache struct {
	dir         string
	ttl         time.Duration
	maxDirBytes int64
	logger      *zap.Logger
	group       singleflight.Group
}

// New builds a cache rooted at dir. A non-positive ttl selects
// DefaultTTL.
func New(dir string, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		dir:         dir,
		ttl:         ttl,
		maxDirBytes: defaultMaxDirBytes,
		logger:      logger.Named("cache"),
	}
}

// GetOrBuild returns the cached payload for key, building it at most
// once per key across concurrent callers. The bool reports a cache hit.
// Build errors propagate; write errors degrade to an uncached result.
func (c *Cache) GetOrBuild(ctx context.Context, key string, build Builder) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrMissingKey
	}
	if payload, ok := c.read(key); ok {
		return payload, true, nil
	}

	type built struct {
		payload json.RawMessage
		hit     bool
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have finished between our miss and
		// the flight starting.
		if payload, ok := c.read(key); ok {
			return built{payload: payload, hit: true}, nil
		}

		release, waited := c.acquireLock(ctx, key)
		if release != nil {
			defer release()
		}
		if waited {
			if payload, ok := c.read(key); ok {
				return built{payload: payload, hit: true}, nil
			}
		}

		value, err := build(ctx)
		if err != nil {
			return built{}, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return built{}, fmt.Errorf("encoding cache payload: %w", err)
		}
		if err := c.write(key, payload); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return built{payload: payload}, nil
	})
	if err != nil {
		return nil, false, err
	}
	b := v.(built)
	return b.payload, b.hit, nil
}

// Invalidate removes one entry. Missing entries are not an error.
func (c *Cache) Invalidate(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// read loads and validates one entry; every failure mode is a miss.
func (c *Cache) read(key string) (json.RawMessage, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Debug("corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if e.Version != formatVersion || e.KeyFingerprint != key {
		return nil, false
	}
	age := time.Since(time.UnixMilli(e.CreatedAt))
	if age < 0 || age > time.Duration(e.TTLSeconds)*time.Second {
		return nil, false
	}
	return e.Payload, true
}

// write frames the payload and renames it into place atomically, then
// runs opportunistic eviction.
func (c *Cache) write(key string, payload json.RawMessage) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(entry{
		Version:        formatVersion,
		CreatedAt:      time.Now().UnixMilli(),
		TTLSeconds:     int64(c.ttl / time.Second),
		KeyFingerprint: key,
		Payload:        payload,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-"+key[:8]+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	c.evict()
	return nil
}

// acquireLock takes the per-key lock file, waiting briefly when another
// process holds it. Returns a release func (nil when never acquired)
// and whether the caller waited on a foreign build.
func (c *Cache) acquireLock(ctx context.Context, key string) (func(), bool) {
	lockPath := c.path(key) + ".lock"
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return nil, false
	}

	waited := false
	deadline := time.Now().Add(lockWaitBudget)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, waited
		}
		if !os.IsExist(err) {
			return nil, waited
		}

		// Reclaim locks left behind by a crashed builder.
		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > 2*c.ttl {
				os.Remove(lockPath)
				continue
			}
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil, waited
		}
		waited = true
		select {
		case <-ctx.Done():
			return nil, waited
		case <-time.After(lockPollInterval):
		}
	}
}

// evict removes entries older than twice the TTL once the directory
// exceeds the size budget.
func (c *Cache) evict() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}

	var total int64
	type aged struct {
		path string
		age  time.Duration
	}
	var candidates []aged
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		if filepath.Ext(e.Name()) == "" {
			candidates = append(candidates, aged{
				path: filepath.Join(c.dir, e.Name()),
				age:  time.Since(info.ModTime()),
			})
		}
	}
	if total <= c.maxDirBytes {
		return
	}

	removed := 0
	for _, cand := range candidates {
		if cand.age > 2*c.ttl {
			if os.Remove(cand.path) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Info("evicted stale cache entries", zap.Int("removed", removed))
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key)
}

// ErrMissingKey guards against building with an empty fingerprint.
var ErrMissingKey = errors.New("cache key is empty")
