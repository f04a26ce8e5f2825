package blade

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedLoader wraps any Loader with an in-memory cache.
// Concurrent misses for the same name collapse into a single backend load.
type CachedLoader struct {
	loader Loader
	config CacheConfig
	logger *zap.Logger
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]*cacheEntry
	now   func() time.Time
}

// CacheConfig configures the caching behavior.
type CacheConfig struct {
	// TTL is how long cached sources remain valid.
	// Default: 5 minutes.
	TTL time.Duration

	// MaxEntries is the maximum number of cached entries.
	// When exceeded, the least recently accessed entry is evicted.
	// Default: 1000.
	MaxEntries int

	// NegativeCacheTTL is how long "not found" results are cached.
	// Set to a negative value to disable negative caching.
	// Default: 30 seconds.
	NegativeCacheTTL time.Duration
}

// DefaultCacheConfig returns the default caching configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:              LoaderCacheDefaultTTL,
		MaxEntries:       LoaderCacheDefaultMaxEntries,
		NegativeCacheTTL: LoaderCacheDefaultNegativeTTL,
	}
}

type cacheEntry struct {
	source     *Source
	err        error
	cachedAt   time.Time
	accessedAt time.Time
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries         int
	ValidEntries    int
	NegativeEntries int
}

// NewCachedLoader wraps loader with caching.
func NewCachedLoader(loader Loader, config CacheConfig, logger *zap.Logger) *CachedLoader {
	if config.TTL == 0 {
		config.TTL = LoaderCacheDefaultTTL
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = LoaderCacheDefaultMaxEntries
	}
	if config.NegativeCacheTTL == 0 {
		config.NegativeCacheTTL = LoaderCacheDefaultNegativeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLoader{
		loader: loader,
		config: config,
		logger: logger,
		cache:  make(map[string]*cacheEntry),
		now:    time.Now,
	}
}

// Load implements Loader.
func (l *CachedLoader) Load(ctx context.Context, name string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	entry, ok := l.cache[name]
	if ok && l.isValid(entry) {
		entry.accessedAt = l.now()
		l.mu.Unlock()
		l.logger.Debug(LogMsgLoaderCacheHit, zap.String(LogFieldName, name))
		if entry.err != nil {
			return nil, entry.err
		}
		return copySource(entry.source), nil
	}
	l.mu.Unlock()

	l.logger.Debug(LogMsgLoaderCacheMiss, zap.String(LogFieldName, name))
	// the flight is shared, so it outlives any one caller's cancellation
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(name, func() (interface{}, error) {
		src, err := l.loader.Load(flightCtx, name)
		switch {
		case err == nil:
			l.addEntry(name, src, nil)
		case IsTemplateNotFound(err) && l.config.NegativeCacheTTL > 0:
			l.addEntry(name, nil, err)
		}
		return src, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copySource(res.Val.(*Source)), nil
	}
}

// List implements Loader. Listings are not cached.
func (l *CachedLoader) List(ctx context.Context) ([]string, error) {
	return l.loader.List(ctx)
}

// Invalidate drops the cached entry for name.
func (l *CachedLoader) Invalidate(name string) {
	l.mu.Lock()
	delete(l.cache, name)
	l.mu.Unlock()
}

// InvalidateAll clears the entire cache.
func (l *CachedLoader) InvalidateAll() {
	l.mu.Lock()
	l.cache = make(map[string]*cacheEntry)
	l.mu.Unlock()
}

// Stats returns cache statistics.
func (l *CachedLoader) Stats() CacheStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := CacheStats{Entries: len(l.cache)}
	for _, entry := range l.cache {
		if !l.isValid(entry) {
			continue
		}
		if entry.err != nil {
			stats.NegativeEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

// isValid checks if a cache entry is still valid.
func (l *CachedLoader) isValid(entry *cacheEntry) bool {
	ttl := l.config.TTL
	if entry.err != nil {
		ttl = l.config.NegativeCacheTTL
	}
	return l.now().Sub(entry.cachedAt) < ttl
}

func (l *CachedLoader) addEntry(name string, src *Source, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.cache[name]; !exists && len(l.cache) >= l.config.MaxEntries {
		l.evictOldest()
	}
	now := l.now()
	l.cache[name] = &cacheEntry{
		source:     copySource(src),
		err:        err,
		cachedAt:   now,
		accessedAt: now,
	}
}

// evictOldest removes the least recently accessed entry.
// Caller must hold write lock.
func (l *CachedLoader) evictOldest() {
	var oldestKey string
	var oldest *cacheEntry
	for key, entry := range l.cache {
		if oldest == nil || entry.accessedAt.Before(oldest.accessedAt) {
			oldest = entry
			oldestKey = key
		}
	}
	if oldest != nil {
		delete(l.cache, oldestKey)
	}
}

func copySource(src *Source) *Source {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}
