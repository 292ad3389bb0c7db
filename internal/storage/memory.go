package storage

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory returns an empty MemoryKV.
func NewMemory() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

func (s *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, value...), true, nil
}

func (s *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.items[key] = append([]byte{}, value...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryKV) Close() error {
	return nil
}
