// Filesystem fallback backend.
//
// One JSON document per session key, written atomically enough for a
// single-writer store (saves per key are serialized upstream).

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileBackend implements Backend on a local directory.
// Fallback records do not expire; ttl is ignored.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file-backed session backend rooted at dir.
// The directory is created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Get reads a stored record. Returns ErrNotFound when the file is missing.
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return data, nil
}

// Set writes a record. The ttl is ignored - the fallback is the durability
// backup and keeps records indefinitely.
func (b *FileBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(b.path(key), value, 0640); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, sanitizeKey(key)+".json")
}

// sanitizeKey maps a session key to a safe file name.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

// Verify FileBackend implements Backend
var _ Backend = (*FileBackend)(nil)
