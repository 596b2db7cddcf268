package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryCache struct {
	mu          sync.Mutex
	lru         *expirable.LRU[string, string]
	serviceName string
}

// NewMemoryCache is a process-local cache holding at most capacity entries,
// each living for ttl. When full, the oldest entry is evicted. Per-call ttl
// arguments are ignored; every entry uses the cache-wide ttl.
func NewMemoryCache(capacity int, ttl time.Duration, serviceName string) Cache {
	return &memoryCache{
		lru:         expirable.NewLRU[string, string](capacity, nil, ttl),
		serviceName: serviceName,
	}
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.lru.Add(key, fmt.Sprint(value))
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, _ := m.lru.Get(key)
	return v, nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lru.Peek(key); ok {
		return false, nil
	}
	m.lru.Add(key, fmt.Sprint(value))
	return true, nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *memoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.serviceName, operation, key)
}
