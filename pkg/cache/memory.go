package cache

import (
	"sync"
	"time"
)

// Item stores a cached value with expiration.
type Item struct {
	Value    interface{}
	ExpireAt time.Time
}

// IsExpired checks if the item has expired.
func (i *Item) IsExpired() bool {
	return !i.ExpireAt.IsZero() && time.Now().After(i.ExpireAt)
}

// Memory is an in-process cache with LRU eviction and periodic cleanup.
// It backs the session-local record set held between store round-trips.
type Memory struct {
	data          map[string]*Item
	access        map[string]time.Time
	mutex         sync.RWMutex
	maxSize       int
	cleanupTicker *time.Ticker
}

// NewMemory creates an in-memory cache.
func NewMemory(opts ...Option) *Memory {
	cfg := &Config{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	m := &Memory{
		data:          make(map[string]*Item),
		access:        make(map[string]time.Time),
		maxSize:       cfg.MaxSize,
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
	}

	go m.cleanupExpired()
	return m
}

// Set stores a value. A non-positive ttl means no expiry.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxSize {
		m.evictLRU()
	}

	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	m.data[key] = &Item{Value: value, ExpireAt: expireAt}
	m.access[key] = time.Now()
}

// Get returns the value for key, if present and unexpired.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	item, exists := m.data[key]
	if !exists || item.IsExpired() {
		if exists {
			delete(m.data, key)
			delete(m.access, key)
		}
		return nil, false
	}

	m.access[key] = time.Now()
	return item.Value, true
}

// Delete removes keys from the cache.
func (m *Memory) Delete(keys ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, key := range keys {
		delete(m.data, key)
		delete(m.access, key)
	}
}

// Range calls fn for every unexpired entry. fn must not mutate the cache.
func (m *Memory) Range(fn func(key string, value interface{})) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for key, item := range m.data {
		if item.IsExpired() {
			continue
		}
		fn(key, item.Value)
	}
}

// Len returns the number of stored entries, expired included.
func (m *Memory) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.data)
}

func (m *Memory) evictLRU() {
	if len(m.data) == 0 {
		return
	}

	var oldestKey string
	oldestTime := time.Now()

	for key, accessTime := range m.access {
		if accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(m.data, oldestKey)
		delete(m.access, oldestKey)
	}
}

func (m *Memory) cleanupExpired() {
	for range m.cleanupTicker.C {
		m.mutex.Lock()
		for key, item := range m.data {
			if item.IsExpired() {
				delete(m.data, key)
				delete(m.access, key)
			}
		}
		m.mutex.Unlock()
	}
}

// Close stops the cleanup ticker.
func (m *Memory) Close() error {
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}
	return nil
}
