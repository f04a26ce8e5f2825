package blade

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// CompiledEntry is the persisted form of a compiled document.
type CompiledEntry struct {
	Schema    int       `msgpack:"schema"`
	Key       string    `msgpack:"key"`
	Path      string    `msgpack:"path"`
	Compiled  string    `msgpack:"compiled"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// CompileKey derives the cache key of source compiled under path.
func CompileKey(path, source string) string {
	sum := sha256.Sum256([]byte(path + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// CompileCache memoizes compiled documents by path and source content.
// An optional DiskCache persists entries across processes.
//
// Entries do not track the templates a document included; invalidate with
// Clear when partials or layouts change.
type CompileCache struct {
	mu      sync.RWMutex
	entries map[string]string
	disk    *DiskCache
}

// NewCompileCache creates an in-memory cache backed by disk (may be nil).
func NewCompileCache(disk *DiskCache) *CompileCache {
	return &CompileCache{entries: make(map[string]string), disk: disk}
}

// Get returns the compiled document of source, consulting the disk cache on
// an in-memory miss.
func (c *CompileCache) Get(path, source string) (string, bool) {
	key := CompileKey(path, source)

	c.mu.RLock()
	compiled, ok := c.entries[key]
	c.mu.RUnlock()
	if ok || c.disk == nil {
		return compiled, ok
	}

	entry, ok := c.disk.Load(key)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	c.entries[key] = entry.Compiled
	c.mu.Unlock()
	return entry.Compiled, true
}

// Put stores the compiled document of source.
func (c *CompileCache) Put(path, source, compiled string) {
	key := CompileKey(path, source)

	c.mu.Lock()
	c.entries[key] = compiled
	c.mu.Unlock()

	if c.disk != nil {
		if err := c.disk.Store(&CompiledEntry{Key: key, Path: path, Compiled: compiled}); err != nil {
			c.disk.logger.Warn(LogMsgDiskCacheWriteFail,
				zap.String(LogFieldKey, key), zap.String(LogFieldPath, path), zap.Error(err))
		}
	}
}

// Len returns the number of in-memory entries.
func (c *CompileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all in-memory entries. Disk entries are left in place.
func (c *CompileCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
}

// DiskCache stores msgpack-encoded CompiledEntry files in a directory.
// Writes go through a temporary file and an atomic rename.
type DiskCache struct {
	dir    string
	logger *zap.Logger
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(dir string, logger *zap.Logger) (*DiskCache, error) {
	if dir == "" {
		return nil, NewConfigurationError(ErrMsgDiskCacheDir, MetaKeyPath, nil)
	}
	if err := os.MkdirAll(dir, FilesystemDirPerms); err != nil {
		return nil, NewConfigurationError(ErrMsgDiskCacheDir, MetaKeyPath, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiskCache{dir: dir, logger: logger}, nil
}

func (d *DiskCache) file(key string) string {
	return filepath.Join(d.dir, key+DiskCacheFileExt)
}

// Load reads the entry for key. Missing, unreadable and foreign-schema
// entries are all misses.
func (d *DiskCache) Load(key string) (*CompiledEntry, bool) {
	data, err := os.ReadFile(d.file(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn(LogMsgDiskCacheReadFailed, zap.String(LogFieldKey, key), zap.Error(err))
		}
		return nil, false
	}

	var entry CompiledEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		d.logger.Warn(LogMsgDiskCacheReadFailed, zap.String(LogFieldKey, key), zap.Error(err))
		return nil, false
	}
	if entry.Schema != DiskCacheSchemaVersion || entry.Key != key {
		return nil, false
	}
	return &entry, true
}

// Store writes entry under its key. Failures are returned, not logged.
func (d *DiskCache) Store(entry *CompiledEntry) error {
	entry.Schema = DiskCacheSchemaVersion
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, DiskCacheTempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, d.file(entry.Key)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
