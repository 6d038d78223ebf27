package store

import (
	"sync"
)

// ReadStore is an in-memory read model store
type ReadStore struct {
	mu   sync.RWMutex
	data map[string]map[string]any // collection -> id -> data
}

func NewReadStore() *ReadStore {
	return &ReadStore{
		data: make(map[string]map[string]any),
	}
}

// Set stores a read model
func (rs *ReadStore) Set(collection, id string, data any) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.data[collection] == nil {
		rs.data[collection] = make(map[string]any)
	}
	rs.data[collection][id] = data
	return nil
}

// Get retrieves a read model by id
func (rs *ReadStore) Get(collection, id string) (any, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	data, ok := rs.data[collection][id]
	return data, ok, nil
}

// GetAll retrieves all items in a collection
func (rs *ReadStore) GetAll(collection string) ([]any, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	items := make([]any, 0, len(rs.data[collection]))
	for _, item := range rs.data[collection] {
		items = append(items, item)
	}
	return items, nil
}

// Delete removes a read model
func (rs *ReadStore) Delete(collection, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.data[collection], id)
	return nil
}

// Update modifies a read model using an update function
func (rs *ReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok := rs.data[collection][id]
	if !ok {
		return false, nil
	}
	rs.data[collection][id] = updateFn(current)
	return true, nil
}
