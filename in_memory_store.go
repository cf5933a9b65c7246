package hextrie

import (
	"context"
	"fmt"
	"sync"
)

type inMemoryStore struct {
	entries map[string][]byte
	l       sync.RWMutex
}

// NewInMemoryStore provides a Persist that stores serialized records in a map, usually for testing.
func NewInMemoryStore() Persist {
	return &inMemoryStore{}
}

func (ims *inMemoryStore) Store(ctx context.Context, key string, value []byte) error {
	ims.l.Lock()
	defer ims.l.Unlock()
	if ims.entries == nil {
		ims.entries = map[string][]byte{}
	}
	if _, ok := ims.entries[key]; ok {
		return nil
	}
	ims.entries[key] = append([]byte(nil), value...)
	return nil
}

func (ims *inMemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	ims.l.RLock()
	value, ok := ims.entries[key]
	ims.l.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inMemoryStore entry %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), value...), nil
}

// Len returns the number of stored records.
func (ims *inMemoryStore) Len() int {
	ims.l.RLock()
	defer ims.l.RUnlock()
	return len(ims.entries)
}
