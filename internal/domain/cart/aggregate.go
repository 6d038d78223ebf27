package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/petshop-checkout/internal/domain/aggregate"
	"github.com/example/petshop-checkout/internal/domain/identity"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const AggregateType = "Cart"

// maxAppendAttempts bounds the reload-and-retry loop on version conflicts
const maxAppendAttempts = 3

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrItemNotInCart   = errors.New("product is not in the cart")
	ErrInvalidIdentity = identity.ErrInvalidIdentity
)

type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Subtotal is price times quantity
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

type Cart struct {
	ID        string     `json:"id"`
	Identity  string     `json:"identity"`
	Items     []CartItem `json:"items"`
	Total     int64      `json:"total"`
	Version   int        `json:"version"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Aggregate interface implementation
func (c *Cart) GetID() string    { return c.ID }
func (c *Cart) GetVersion() int  { return c.Version }
func (c *Cart) SetVersion(v int) { c.Version = v }

// GetCartID returns the cart ID for an identity
func GetCartID(identity string) string {
	return "cart-" + identity
}

func newCart(identity string) *Cart {
	return &Cart{
		ID:       GetCartID(identity),
		Identity: identity,
		Items:    []CartItem{},
	}
}

// IsEmpty reports whether the cart holds no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line for productID
func (c *Cart) Item(productID string) (CartItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

func (c *Cart) recomputeTotal() {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	c.Total = total
}

// ApplyEvent applies a single event to the cart state (implements aggregate.Aggregate)
func (c *Cart) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventItemAdded:
		var data ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CartID
		c.Identity = data.Identity
		// a repeated add keeps the first price snapshot
		if i := c.indexOf(data.ProductID); i >= 0 {
			c.Items[i].Quantity += data.Quantity
		} else {
			c.Items = append(c.Items, CartItem{
				ProductID: data.ProductID,
				Name:      data.Name,
				Price:     data.Price,
				Quantity:  data.Quantity,
				Image:     data.Image,
			})
		}
		c.UpdatedAt = data.AddedAt
	case EventItemQuantitySet:
		var data CartItemQuantitySet
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if i := c.indexOf(data.ProductID); i >= 0 {
			if data.Quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = data.Quantity
			}
		}
		c.UpdatedAt = data.SetAt
	case EventItemRemoved:
		var data ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if i := c.indexOf(data.ProductID); i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		c.UpdatedAt = data.RemovedAt
	case EventCartCleared:
		var data CartCleared
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.Items = []CartItem{}
		c.UpdatedAt = data.ClearedAt
	default:
		return fmt.Errorf("unknown cart event %q", event.EventType)
	}
	c.recomputeTotal()
	c.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
	logger     *zap.Logger
	loads      singleflight.Group
}

func NewService(es store.EventStoreInterface, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{eventStore: es, logger: logger.Named("cart")}
}

// loadCart loads a cart by replaying events, using snapshot if available
func (s *Service) loadCart(ctx context.Context, identity string) (*Cart, error) {
	c, _, err := aggregate.LoadAggregate(ctx, s.eventStore, GetCartID(identity), func() *Cart {
		return newCart(identity)
	})
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	return c, nil
}

// Get returns the cart for identity, or an empty cart if nothing was added yet.
// Concurrent loads of the same cart share one read of the event store.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	if err := identity.Validate(id); err != nil {
		return nil, err
	}
	v, err, _ := s.loads.Do(GetCartID(id), func() (any, error) {
		return s.loadCart(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return v.(*Cart).Clone(), nil
}

// AddItem adds quantity of a product, snapshotting its name, price and image
func (s *Service) AddItem(ctx context.Context, id, productID, name string, price int64, image string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	return s.mutate(ctx, id, func(c *Cart) (string, any, error) {
		return EventItemAdded, ItemAddedToCart{
			CartID:    c.ID,
			Identity:  id,
			ProductID: productID,
			Name:      name,
			Price:     price,
			Image:     image,
			Quantity:  quantity,
			AddedAt:   time.Now().UTC(),
		}, nil
	})
}

// SetQuantity replaces the quantity of a line; quantity <= 0 removes it
func (s *Service) SetQuantity(ctx context.Context, id, productID string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}

	return s.mutate(ctx, id, func(c *Cart) (string, any, error) {
		item, ok := c.Item(productID)
		switch {
		case !ok && quantity <= 0:
			return "", nil, nil
		case !ok:
			return "", nil, ErrItemNotInCart
		case item.Quantity == quantity:
			return "", nil, nil
		}
		return EventItemQuantitySet, CartItemQuantitySet{
			CartID:    c.ID,
			Identity:  id,
			ProductID: productID,
			Quantity:  quantity,
			SetAt:     time.Now().UTC(),
		}, nil
	})
}

// RemoveItem removes a line; removing an absent product is a no-op
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}

	return s.mutate(ctx, id, func(c *Cart) (string, any, error) {
		if _, ok := c.Item(productID); !ok {
			return "", nil, nil
		}
		return EventItemRemoved, ItemRemovedFromCart{
			CartID:    c.ID,
			Identity:  id,
			ProductID: productID,
			RemovedAt: time.Now().UTC(),
		}, nil
	})
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (s *Service) Clear(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) (string, any, error) {
		if c.IsEmpty() {
			return "", nil, nil
		}
		return EventCartCleared, CartCleared{
			CartID:    c.ID,
			Identity:  id,
			ClearedAt: time.Now().UTC(),
		}, nil
	})
}

// mutate loads the cart, asks decide for the event to append and appends it
// against the loaded version. An empty event type means nothing changes.
func (s *Service) mutate(ctx context.Context, id string, decide func(*Cart) (string, any, error)) (*Cart, error) {
	if err := identity.Validate(id); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		c, err := s.loadCart(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}

		eventType, data, err := decide(c)
		if err != nil {
			return nil, err
		}
		if eventType == "" {
			return c, nil
		}

		stored, err := s.eventStore.Append(ctx, c.ID, AggregateType, eventType, c.Version, data)
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxAppendAttempts {
			s.logger.Debug("cart version conflict, retrying",
				zap.String("cart_id", c.ID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", eventType, err)
		}
		s.loads.Forget(c.ID)

		if err := c.ApplyEvent(*stored); err != nil {
			return nil, fmt.Errorf("apply %s: %w", eventType, err)
		}

		if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, c, AggregateType); err != nil {
			s.logger.Warn("failed to create snapshot", zap.String("cart_id", c.ID), zap.Error(err))
		}
		return c, nil
	}
}
