package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/hive/pkg/types"
)

var bucketChain = []byte("chain")

// Handle is the per-instance key/value surface a StorageDescriptor
// materializes into. Exactly one instance owns a Handle for its lifetime.
type Handle interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	ForEach(fn func(key, value []byte) error) error
	Close() error
}

// Open materializes descriptor into a Handle. For StorageFile it creates
// the descriptor's path as the instance's directory if missing and opens
// (or creates) a dedicated bbolt database file, storage.db, inside it; for
// StorageMemory it returns a fresh in-process map.
func Open(descriptor types.StorageDescriptor) (Handle, error) {
	switch descriptor.Kind {
	case types.StorageMemory:
		return newMemoryHandle(), nil
	case types.StorageFile:
		return openFileHandle(descriptor.Path)
	default:
		return nil, fmt.Errorf("storage: unknown kind %q", descriptor.Kind)
	}
}

type memoryHandle struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemoryHandle() *memoryHandle {
	return &memoryHandle{data: make(map[string][]byte)}
}

func (h *memoryHandle) Get(key []byte) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (h *memoryHandle) Put(key, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	h.data[string(key)] = v
	return nil
}

func (h *memoryHandle) Delete(key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.data, string(key))
	return nil
}

func (h *memoryHandle) ForEach(fn func(key, value []byte) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.data {
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (h *memoryHandle) Close() error { return nil }

type fileHandle struct {
	db *bolt.DB
}

func openFileHandle(path string) (*fileHandle, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: file descriptor requires a path")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory %s: %w", path, err)
	}

	db, err := bolt.Open(filepath.Join(path, "storage.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChain)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create bucket in %s: %w", path, err)
	}

	return &fileHandle{db: db}, nil
}

func (h *fileHandle) Get(key []byte) ([]byte, error) {
	var out []byte
	err := h.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChain).Get(key)
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	return out, err
}

func (h *fileHandle) Put(key, value []byte) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChain).Put(key, value)
	})
}

func (h *fileHandle) Delete(key []byte) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChain).Delete(key)
	})
}

func (h *fileHandle) ForEach(fn func(key, value []byte) error) error {
	return h.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChain).ForEach(fn)
	})
}

func (h *fileHandle) Close() error {
	return h.db.Close()
}
