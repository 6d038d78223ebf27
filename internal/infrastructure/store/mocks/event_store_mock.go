package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/google/uuid"
)

// MockEventStore is a mock implementation of EventStoreInterface for testing
type MockEventStore struct {
	mu        sync.RWMutex
	events    map[string][]store.Event
	snapshots map[string]store.Snapshot

	// For tracking calls in tests
	AppendCalls    []AppendCall
	AppendErr      error
	GetEventsErr   error
	AppendCallback func(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*store.Event, error)
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	AggregateID     string
	AggregateType   string
	EventType       string
	ExpectedVersion int
	Data            any
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		events:      make(map[string][]store.Event),
		snapshots:   make(map[string]store.Snapshot),
		AppendCalls: make([]AppendCall, 0),
	}
}

// Append stores an event in memory
func (m *MockEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*store.Event, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:     aggregateID,
		AggregateType:   aggregateType,
		EventType:       eventType,
		ExpectedVersion: expectedVersion,
		Data:            data,
	})
	callback := m.AppendCallback
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, aggregateID, aggregateType, eventType, expectedVersion, data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	current := len(m.events[aggregateID])
	if expectedVersion != store.AnyVersion && expectedVersion != current {
		return nil, fmt.Errorf("%w: %s at %d", store.ErrVersionConflict, aggregateID, current)
	}

	event, err := newEvent(aggregateID, aggregateType, eventType, current+1, data)
	if err != nil {
		return nil, err
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	return &event, nil
}

// GetEvents returns events for an aggregate
func (m *MockEventStore) GetEvents(ctx context.Context, aggregateID string) ([]store.Event, error) {
	return m.GetEventsFromVersion(ctx, aggregateID, 0)
}

// GetEventsFromVersion returns events after the given version
func (m *MockEventStore) GetEventsFromVersion(_ context.Context, aggregateID string, version int) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	var out []store.Event
	for _, e := range m.events[aggregateID] {
		if e.Version > version {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllEvents returns all events
func (m *MockEventStore) GetAllEvents(_ context.Context) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []store.Event
	for _, events := range m.events {
		all = append(all, events...)
	}
	return all, nil
}

func (m *MockEventStore) GetSnapshot(_ context.Context, aggregateID string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockEventStore) SaveSnapshot(_ context.Context, snapshot *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.AggregateID] = *snapshot
	return nil
}

// Reset clears all events and recorded calls
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]store.Event)
	m.snapshots = make(map[string]store.Snapshot)
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
	m.GetEventsErr = nil
	m.AppendCallback = nil
}

// Calls returns a copy of the recorded Append calls
func (m *MockEventStore) Calls() []AppendCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AppendCall, len(m.AppendCalls))
	copy(out, m.AppendCalls)
	return out
}

// SetEvents sets events directly for testing
func (m *MockEventStore) SetEvents(aggregateID string, events []store.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[aggregateID] = events
}

// AddEvent adds a single event for testing
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, err := newEvent(aggregateID, aggregateType, eventType, len(m.events[aggregateID])+1, data)
	if err != nil {
		return err
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	return nil
}

func newEvent(aggregateID, aggregateType, eventType string, version int, data any) (store.Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return store.Event{}, err
	}
	return store.Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       version,
	}, nil
}
