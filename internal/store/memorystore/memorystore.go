// Package memorystore is a Backend that keeps everything in process memory.
package memorystore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrQuotaExceeded = errors.New("memorystore: quota exceeded")
	ErrClosed        = errors.New("memorystore: closed")
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// NewWithQuota limits the combined size of keys and values in bytes, the way
// browser local storage does. A non-positive quota means unlimited.
func NewWithQuota(quota int) *MemoryStore {
	ms := NewMemoryStore()
	ms.quota = quota
	return ms
}

func (ms *MemoryStore) GetItem(key string) (string, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return "", false, ErrClosed
	}
	v, ok := ms.values[key]
	return v, ok, nil
}

func (ms *MemoryStore) SetItem(key, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}

	if ms.quota > 0 {
		used := ms.usedLocked()
		if old, ok := ms.values[key]; ok {
			used -= len(key) + len(old)
		}
		if used+len(key)+len(value) > ms.quota {
			return fmt.Errorf("memorystore.SetItem %q: %w", key, ErrQuotaExceeded)
		}
	}

	ms.values[key] = value
	return nil
}

func (ms *MemoryStore) RemoveItem(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}
	delete(ms.values, key)
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// Used returns the bytes currently counted against the quota.
func (ms *MemoryStore) Used() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.usedLocked()
}

func (ms *MemoryStore) usedLocked() int {
	n := 0
	for k, v := range ms.values {
		n += len(k) + len(v)
	}
	return n
}
