package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTile is returned when a (tileset, x, y, z) key already exists.
	ErrDuplicateTile = errors.New("tile already cached")

	ErrInvalidKey = errors.New("invalid tile key")
)

// StoreError reports a failed store operation. Key is nil for operations
// that are not tied to a single tile.
type StoreError struct {
	Op  string
	Key *TileCacheKey
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op string, key *TileCacheKey, err error) *StoreError {
	if key != nil {
		k := *key
		key = &k
	}
	return &StoreError{Op: op, Key: key, Err: err}
}

func validateKey(k TileCacheKey) error {
	if k.Tileset == "" || !k.Valid() {
		return newStoreError("validate", &k, ErrInvalidKey)
	}
	return nil
}
