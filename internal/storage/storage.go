// Package storage provides the key-value and temporary file capabilities the
// client persists through. It defines the KV interface (port) and
// implementations for memory, local disk and S3.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrInvalidKey is returned when a key is empty or contains path separators.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// KV is a small keyed blob store. Each Put replaces the whole value for a
// key; readers never observe a partially written value.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TempStore handles scratch files such as freeze-frames and downloads in progress.
type TempStore interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error
}

// ValidateKey rejects keys that cannot be mapped safely to a file name or object key.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}
