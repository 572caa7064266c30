package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

// FilesystemDirName is the directory tree root inside the cache dir.
const FilesystemDirName = FilePrefix + "tiles"

// FilesystemCache stores each tile as {root}/{tileset}/{z}/{x}/{y}.
type FilesystemCache struct {
	root   string
	lock   *rwLock
	logger logger.Logger
}

func NewFilesystemCache(cacheDir string, l logger.Logger) (*FilesystemCache, error) {
	root := filepath.Join(cacheDir, FilesystemDirName)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, newStoreError("open", nil, fmt.Errorf("failed to create cache directory: %w", err))
	}

	l.Info("filesystem cache initialized", "root", root)

	return &FilesystemCache{
		root:   root,
		lock:   newRWLock(),
		logger: l,
	}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	path, err := c.keyToPath(k)
	if err != nil {
		return nil, false, err
	}

	if err := c.lock.RLock(ctx); err != nil {
		return nil, false, newStoreError("get", &k, err)
	}
	defer c.lock.RUnlock()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, newStoreError("get", &k, err)
	}

	return content, true, nil
}

func (c *FilesystemCache) InsertOne(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	return c.InsertBatch(ctx, []Row{{Key: k, Data: v}})
}

// InsertBatch checks every key before writing anything and removes the
// files it already wrote when a later write fails.
func (c *FilesystemCache) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	if err := c.lock.Lock(ctx); err != nil {
		return newStoreError("insert_batch", nil, err)
	}
	defer c.lock.Unlock()

	paths := make([]string, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		path, err := c.keyToPath(r.Key)
		if err != nil {
			return err
		}
		if _, dup := seen[path]; dup {
			return newStoreError("insert_batch", &r.Key, ErrDuplicateTile)
		}
		if _, err := os.Stat(path); err == nil {
			return newStoreError("insert_batch", &r.Key, ErrDuplicateTile)
		}
		seen[path] = struct{}{}
		paths[i] = path
	}

	written := make([]string, 0, len(rows))
	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			c.rollback(written)
			return newStoreError("insert_batch", nil, err)
		}
		if err := writeExclusive(paths[i], r.Data); err != nil {
			c.rollback(written)
			if errors.Is(err, fs.ErrExist) {
				err = ErrDuplicateTile
			}
			return newStoreError("insert_batch", &r.Key, err)
		}
		written = append(written, paths[i])
	}

	return nil
}

func (c *FilesystemCache) Count(ctx context.Context, tileset string) (int, error) {
	if err := c.lock.RLock(ctx); err != nil {
		return 0, newStoreError("count", nil, err)
	}
	defer c.lock.RUnlock()

	n := 0
	err := filepath.WalkDir(filepath.Join(c.root, tileset), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, newStoreError("count", nil, err)
	}
	return n, nil
}

func (c *FilesystemCache) Close() error {
	return nil
}

func (c *FilesystemCache) keyToPath(k TileCacheKey) (string, error) {
	if err := validateKey(k); err != nil {
		return "", err
	}
	if strings.ContainsAny(k.Tileset, `/\`) || k.Tileset == "." || k.Tileset == ".." {
		return "", newStoreError("validate", &k, ErrInvalidKey)
	}
	return filepath.Join(c.root, k.Tileset, fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)), nil
}

func (c *FilesystemCache) rollback(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			c.logger.Error("filesystem cache rollback failed", "path", p, "error", err)
		}
	}
}

func writeExclusive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}
