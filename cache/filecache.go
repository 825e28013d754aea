package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FileExt marks files owned by a FileCache. Anything else in the directory
// is left alone.
const FileExt = ".alertcache"

const tmpMarker = FileExt + ".tmp-"

// FileCache implements TTLCache with one file per key
type FileCache struct {
	dir string
	now func() time.Time
	log zerolog.Logger
}

// NewFileCache creates a file-based cache rooted at dir, creating it if
// needed. An empty dir uses ~/.alertsua_cache.
func NewFileCache(dir string, opts ...Option) (*FileCache, error) {
	if dir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(usr.HomeDir, ".alertsua_cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &FileCache{dir: dir, now: o.now, log: o.log}, nil
}

// Dir returns the cache root
func (fc *FileCache) Dir() string {
	return fc.dir
}

func (fc *FileCache) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := fc.read(key)
	if !ok || e.Expired(fc.now()) {
		return nil, false
	}
	return e.Value, true
}

func (fc *FileCache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	e, ok := fc.read(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (fc *FileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	e, err := newEntry(key, value, ttl, fc.now(), tags)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	// Write to a temporary file first, then rename over the target
	path := fc.path(key)
	tmpPath := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (fc *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(fc.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (fc *FileCache) Has(ctx context.Context, key string) bool {
	_, ok := fc.Get(ctx, key)
	return ok
}

// Clear removes cache files and leftover temporary files
func (fc *FileCache) Clear(ctx context.Context) error {
	names, err := fc.ownFiles(true)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := os.Remove(filepath.Join(fc.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (fc *FileCache) Keys(ctx context.Context) []string {
	names, err := fc.ownFiles(false)
	if err != nil {
		fc.log.Warn().Err(err).Str("dir", fc.dir).Msg("cache: list failed")
		return nil
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if e, ok := fc.readFile(filepath.Join(fc.dir, name)); ok {
			keys = append(keys, e.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// CleanupExpired removes expired entries and files that no longer decode
func (fc *FileCache) CleanupExpired(ctx context.Context) {
	names, err := fc.ownFiles(false)
	if err != nil {
		return
	}
	now := fc.now()
	for _, name := range names {
		p := filepath.Join(fc.dir, name)
		e, ok := fc.readFile(p)
		if ok && !e.Expired(now) {
			continue
		}
		_ = os.Remove(p)
	}
}

func (fc *FileCache) InvalidateTags(ctx context.Context, tags ...string) error {
	names, err := fc.ownFiles(false)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		p := filepath.Join(fc.dir, name)
		e, ok := fc.readFile(p)
		if !ok || !e.HasTag(tags...) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// path generates the full filesystem path for a cache key
func (fc *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(fc.dir, hex.EncodeToString(sum[:])+FileExt)
}

func (fc *FileCache) read(key string) (*Entry, bool) {
	e, ok := fc.readFile(fc.path(key))
	if !ok || e.Key != key {
		return nil, false
	}
	return e, true
}

func (fc *FileCache) readFile(path string) (*Entry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fc.log.Warn().Err(err).Str("path", path).Msg("cache: read failed")
		}
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		fc.log.Warn().Err(err).Str("path", path).Msg("cache: corrupt entry")
		return nil, false
	}
	return &e, true
}

// ownFiles lists the entry files in dir, plus temporary files if withTmp
func (fc *FileCache) ownFiles(withTmp bool) ([]string, error) {
	dirEntries, err := os.ReadDir(fc.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		switch {
		case strings.HasSuffix(name, FileExt):
			names = append(names, name)
		case withTmp && strings.Contains(name, tmpMarker):
			names = append(names, name)
		}
	}
	return names, nil
}

var (
	_ TTLCache       = (*FileCache)(nil)
	_ TagInvalidator = (*FileCache)(nil)
)
