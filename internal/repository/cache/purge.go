package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Purge deletes every cache file and directory in cacheDir. A missing
// directory or an empty one is not an error.
func Purge(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return newStoreError("purge", nil, err)
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(cacheDir, e.Name())); err != nil {
			return newStoreError("purge", nil, err)
		}
	}

	return nil
}
