package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AnyVersion disables the optimistic concurrency check on Append
const AnyVersion = -1

var ErrVersionConflict = errors.New("aggregate version conflict")

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// EventStore is an in-memory event store that publishes appended events
type EventStore struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	all       []Event
	snapshots map[string]Snapshot
	publisher Publisher
}

func NewEventStore(publisher Publisher) *EventStore {
	return &EventStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string]Snapshot),
		publisher: publisher,
	}
}

// Append stores an event and publishes it
func (es *EventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	es.mu.Lock()
	current := len(es.events[aggregateID])
	if expectedVersion != AnyVersion && current != expectedVersion {
		es.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is at version %d, expected %d", ErrVersionConflict, aggregateID, current, expectedVersion)
	}
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       current + 1,
	}
	es.events[aggregateID] = append(es.events[aggregateID], event)
	es.all = append(es.all, event)
	es.mu.Unlock()

	if es.publisher != nil {
		if err := es.publisher.Publish(ctx, aggregateID, event); err != nil {
			return nil, fmt.Errorf("publish %s: %w", eventType, err)
		}
	}

	return &event, nil
}

// GetEvents returns all events for an aggregate
func (es *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.GetEventsFromVersion(ctx, aggregateID, 0)
}

// GetEventsFromVersion returns the events of an aggregate newer than version
func (es *EventStore) GetEventsFromVersion(_ context.Context, aggregateID string, version int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	stored := es.events[aggregateID]
	if version >= len(stored) {
		return nil, nil
	}
	if version < 0 {
		version = 0
	}
	out := make([]Event, len(stored)-version)
	copy(out, stored[version:])
	return out, nil
}

// GetAllEvents returns all events in append order
func (es *EventStore) GetAllEvents(_ context.Context) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	out := make([]Event, len(es.all))
	copy(out, es.all)
	return out, nil
}

func (es *EventStore) GetSnapshot(_ context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	snapshot, ok := es.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func (es *EventStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if existing, ok := es.snapshots[snapshot.AggregateID]; ok && existing.Version >= snapshot.Version {
		return nil
	}
	es.snapshots[snapshot.AggregateID] = *snapshot
	return nil
}
