// Package storage provides the persistence primitives the engine consumes:
// a namespaced key/value repository and a SQLite-backed durable event store.
package storage

import "sync"

// KeyValueRepository is a small typed key/value store scoped to one logical
// namespace. Implementations must be safe for concurrent use.
type KeyValueRepository interface {
	GetString(key string) (string, bool)
	PutString(key, value string)
	GetDouble(key string) (float64, bool)
	PutDouble(key string, value float64)
	GetInteger(key string) (int64, bool)
	PutInteger(key string, value int64)
	Remove(key string)
	Clear()
}

// MemoryKeyValueRepository is an in-memory KeyValueRepository guarded by a
// reader/writer lock. Suitable for tests and hosts without durable storage.
type MemoryKeyValueRepository struct {
	mu      sync.RWMutex
	strings map[string]string
	doubles map[string]float64
	ints    map[string]int64
}

// NewMemoryKeyValueRepository returns an empty in-memory repository.
func NewMemoryKeyValueRepository() *MemoryKeyValueRepository {
	return &MemoryKeyValueRepository{
		strings: make(map[string]string),
		doubles: make(map[string]float64),
		ints:    make(map[string]int64),
	}
}

func (r *MemoryKeyValueRepository) GetString(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.strings[key]
	return v, ok
}

func (r *MemoryKeyValueRepository) PutString(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings[key] = value
}

func (r *MemoryKeyValueRepository) GetDouble(key string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.doubles[key]
	return v, ok
}

func (r *MemoryKeyValueRepository) PutDouble(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doubles[key] = value
}

func (r *MemoryKeyValueRepository) GetInteger(key string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.ints[key]
	return v, ok
}

func (r *MemoryKeyValueRepository) PutInteger(key string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints[key] = value
}

func (r *MemoryKeyValueRepository) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strings, key)
	delete(r.doubles, key)
	delete(r.ints, key)
}

func (r *MemoryKeyValueRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = make(map[string]string)
	r.doubles = make(map[string]float64)
	r.ints = make(map[string]int64)
}
