package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/petshop-checkout/internal/domain/aggregate"
	"github.com/example/petshop-checkout/internal/domain/identity"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const AggregateType = "Order"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrEmptyOrder           = errors.New("order must have at least one item")
	ErrInvalidItem          = errors.New("order item needs a product, a positive quantity and a non-negative price")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrInvalidStatus        = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid     = errors.New("order is already paid")
	ErrOrderNotShipped      = errors.New("order must be shipped before delivery")
	ErrOrderDelivered       = errors.New("order is already delivered")
	ErrOrderCancelled       = errors.New("order is already cancelled")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered:
		return ErrOrderDelivered
	case o.Status == StatusProcessing && target == StatusDelivered:
		return ErrOrderNotShipped
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

type Order struct {
	ID              string          `json:"id"`
	Identity        string          `json:"customerIdentity"`
	Status          Status          `json:"status"`
	Total           int64           `json:"total"`
	Items           []Item          `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	OrderNotes      string          `json:"orderNotes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Version         int             `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.Identity = data.Identity
		o.Items = data.Items
		o.Total = data.Total
		o.ShippingAddress = data.ShippingAddress
		o.PaymentMethod = data.PaymentMethod
		o.PaymentStatus = data.PaymentStatus
		o.OrderNotes = data.OrderNotes
		o.Status = StatusProcessing
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderPaid:
		var data OrderPaid
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.PaymentStatus = PaymentPaid
		o.UpdatedAt = data.PaidAt
	case EventOrderShipped:
		var data OrderShipped
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusShipped
		o.UpdatedAt = data.ShippedAt
	case EventOrderDelivered:
		var data OrderDelivered
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusDelivered
		o.UpdatedAt = data.DeliveredAt
	case EventOrderCancelled:
		var data OrderCancelled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = data.CancelledAt
	default:
		return fmt.Errorf("unknown order event %q", event.EventType)
	}
	o.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
	logger     *zap.Logger
}

func NewService(es store.EventStoreInterface, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{eventStore: es, logger: logger.Named("order")}
}

// loadOrder loads an order by replaying events, using snapshot if available
func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	order, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Get returns the current state of an order
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	return s.loadOrder(ctx, orderID)
}

// PlaceParams describes a new order. The total is always derived from Items.
type PlaceParams struct {
	Identity        string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	OrderNotes      string
}

func (p PlaceParams) validate() error {
	if err := identity.Validate(p.Identity); err != nil {
		return err
	}
	if len(p.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range p.Items {
		if item.ProductID == "" || item.Quantity < 1 || item.Price < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidItem, item.ProductID)
		}
	}
	if _, err := ParsePaymentMethod(string(p.PaymentMethod)); err != nil {
		return err
	}
	return nil
}

// Place records a new order in status Processing
func (s *Service) Place(ctx context.Context, p PlaceParams) (*Order, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	method, _ := ParsePaymentMethod(string(p.PaymentMethod))

	items := make([]Item, len(p.Items))
	copy(items, p.Items)

	event := OrderPlaced{
		OrderID:         uuid.New().String(),
		Identity:        p.Identity,
		Items:           items,
		Total:           Total(items),
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   method,
		PaymentStatus:   method.InitialPaymentStatus(),
		OrderNotes:      strings.TrimSpace(p.OrderNotes),
		PlacedAt:        time.Now().UTC(),
	}

	storedEvent, err := s.eventStore.Append(ctx, event.OrderID, AggregateType, EventOrderPlaced, 0, event)
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", EventOrderPlaced, err)
	}

	order := &Order{}
	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("identity", order.Identity),
		zap.Int64("total", order.Total),
		zap.String("payment_method", string(order.PaymentMethod)),
	)
	return order, nil
}

// MarkPaid records payment of a pay-on-delivery order
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	return s.apply(ctx, orderID, func(o *Order) (string, any, error) {
		if o.Status == StatusCancelled {
			return "", nil, ErrOrderCancelled
		}
		if o.PaymentStatus == PaymentPaid {
			return "", nil, ErrOrderAlreadyPaid
		}
		return EventOrderPaid, OrderPaid{OrderID: orderID, PaidAt: time.Now().UTC()}, nil
	})
}

func (s *Service) Ship(ctx context.Context, orderID string) (*Order, error) {
	return s.apply(ctx, orderID, func(o *Order) (string, any, error) {
		if !o.CanTransitionTo(StatusShipped) {
			return "", nil, o.transitionError(StatusShipped)
		}
		return EventOrderShipped, OrderShipped{OrderID: orderID, ShippedAt: time.Now().UTC()}, nil
	})
}

func (s *Service) Deliver(ctx context.Context, orderID string) (*Order, error) {
	return s.apply(ctx, orderID, func(o *Order) (string, any, error) {
		if !o.CanTransitionTo(StatusDelivered) {
			return "", nil, o.transitionError(StatusDelivered)
		}
		return EventOrderDelivered, OrderDelivered{OrderID: orderID, DeliveredAt: time.Now().UTC()}, nil
	})
}

func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	return s.apply(ctx, orderID, func(o *Order) (string, any, error) {
		if !o.CanTransitionTo(StatusCancelled) {
			return "", nil, o.transitionError(StatusCancelled)
		}
		return EventOrderCancelled, OrderCancelled{OrderID: orderID, Reason: reason, CancelledAt: time.Now().UTC()}, nil
	})
}

// apply loads the order, checks the transition and appends its event
func (s *Service) apply(ctx context.Context, orderID string, decide func(*Order) (string, any, error)) (*Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	eventType, data, err := decide(order)
	if err != nil {
		return nil, err
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, eventType, order.Version, data)
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", eventType, err)
	}
	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}

	// Check if we need to create a snapshot
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		s.logger.Warn("failed to create snapshot", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("order updated",
		zap.String("order_id", order.ID),
		zap.String("event", eventType),
		zap.String("status", string(order.Status)),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
	return order, nil
}
