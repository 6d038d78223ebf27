package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/domain/order"
)

// Result is what a completed checkout returns to the client
type Result struct {
	Order   *order.Order     `json:"order"`
	Invoice *invoice.Invoice `json:"invoice"`
	// CartPending marks a stored result whose cart was not cleared yet.
	// It is never set on a result handed to the client.
	CartPending bool `json:"cartPending,omitempty"`
}

// IdempotencyStore remembers checkouts by client supplied key once their
// order and invoice exist. Keys are scoped per identity.
type IdempotencyStore interface {
	Get(ctx context.Context, identity, key string) (*Result, bool, error)
	Put(ctx context.Context, identity, key string, result *Result) error
}

// MemoryIdempotencyStore keeps results in process memory until they expire
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[idempotencyKey]idempotencyEntry
}

type idempotencyKey struct {
	identity string
	key      string
}

type idempotencyEntry struct {
	result    *Result
	expiresAt time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[idempotencyKey]idempotencyEntry),
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, identity, key string) (*Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := idempotencyKey{identity: identity, key: key}
	e, ok := s.entries[k]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, k)
		return nil, false, nil
	}
	return e.result, true, nil
}

func (s *MemoryIdempotencyStore) Put(_ context.Context, identity, key string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[idempotencyKey{identity: identity, key: key}] = idempotencyEntry{result: result, expiresAt: now.Add(s.ttl)}
	return nil
}
