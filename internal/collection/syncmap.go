package collection

import "sync"

// SyncMap is a mutex-guarded generic map.
type SyncMap[K comparable, V any] struct {
	mux  sync.RWMutex
	data map[K]V
}

// NewSyncMap creates a new SyncMap.
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{data: make(map[K]V)}
}

// Get returns the value for key and whether it was present.
func (m *SyncMap[K, V]) Get(key K) (V, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

// Put stores value under key.
func (m *SyncMap[K, V]) Put(key K, value V) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.data[key] = value
}

// GetOrPut returns the existing value for key, or stores and returns value.
// The second result reports whether the value was already present.
func (m *SyncMap[K, V]) GetOrPut(key K, value V) (V, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if existing, ok := m.data[key]; ok {
		return existing, true
	}
	m.data[key] = value
	return value, false
}

// Delete removes key.
func (m *SyncMap[K, V]) Delete(key K) {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.data, key)
}

// Range calls f for each entry until f returns false.
func (m *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	for key, value := range m.data {
		if !f(key, value) {
			return
		}
	}
}

// Len returns the number of entries.
func (m *SyncMap[K, V]) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.data)
}
