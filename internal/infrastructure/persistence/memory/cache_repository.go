// Package memory provides in-memory cache repository implementation
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
)

const defaultTTL = 24 * time.Hour

// CacheItem represents a cached item
type CacheItem struct {
	Value     []byte
	ExpiresAt time.Time
}

func (i CacheItem) expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// CacheRepository implements in-memory cache repository
type CacheRepository struct {
	data  map[string]CacheItem
	mutex sync.Mutex
	stop  chan struct{}
	once  sync.Once
}

// NewCacheRepository creates a new in-memory cache repository. Expired
// items are swept every cleanupInterval until Close is called.
func NewCacheRepository(cleanupInterval time.Duration) *CacheRepository {
	repo := &CacheRepository{
		data: make(map[string]CacheItem),
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go repo.cleanup(cleanupInterval)
	}
	return repo
}

var _ outbound.CacheRepository = (*CacheRepository)(nil)

// Get retrieves a value from cache
func (r *CacheRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	item, exists := r.data[key]
	if !exists {
		return nil, outbound.ErrCacheMiss
	}
	if item.expired(time.Now()) {
		delete(r.data, key)
		return nil, outbound.ErrCacheMiss
	}

	out := make([]byte, len(item.Value))
	copy(out, item.Value)
	return out, nil
}

// Set stores a value in cache with TTL. A zero TTL means 24 hours.
func (r *CacheRepository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.data[key] = CacheItem{Value: stored, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a key from cache
func (r *CacheRepository) Delete(_ context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.data, key)
	return nil
}

// Exists checks if a key exists in cache
func (r *CacheRepository) Exists(_ context.Context, key string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	item, exists := r.data[key]
	if !exists {
		return false, nil
	}
	if item.expired(time.Now()) {
		delete(r.data, key)
		return false, nil
	}
	return true, nil
}

// Increment increments a counter stored as a decimal string, the way Redis
// INCR does. A missing key starts at zero.
func (r *CacheRepository) Increment(_ context.Context, key string) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	item, exists := r.data[key]
	var value int64
	if exists && !item.expired(now) {
		parsed, err := strconv.ParseInt(string(item.Value), 10, 64)
		if err != nil {
			return 0, err
		}
		value = parsed
	} else {
		item.ExpiresAt = now.Add(defaultTTL)
	}

	value++
	item.Value = []byte(strconv.FormatInt(value, 10))
	r.data[key] = item
	return value, nil
}

// Expire sets a new TTL on an existing key
func (r *CacheRepository) Expire(_ context.Context, key string, ttl time.Duration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	item, exists := r.data[key]
	if !exists {
		return nil
	}
	item.ExpiresAt = time.Now().Add(ttl)
	r.data[key] = item
	return nil
}

// Close stops the cleanup goroutine
func (r *CacheRepository) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}

// cleanup removes expired items
func (r *CacheRepository) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mutex.Lock()
			now := time.Now()
			for key, item := range r.data {
				if item.expired(now) {
					delete(r.data, key)
				}
			}
			r.mutex.Unlock()
		}
	}
}
