package store

import "context"

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	// Append stores an event for the aggregate. expectedVersion is the version the
	// caller last observed (0 for a new aggregate) or AnyVersion to skip the check.
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetEventsFromVersion(ctx context.Context, aggregateID string, version int) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// Publisher delivers stored events to the event bus
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
