package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/readmodel"
	"go.uber.org/zap"
)

// Projector keeps the orders read model in step with order events
type Projector struct {
	readStore store.ReadStoreInterface
	logger    *zap.Logger
}

func NewProjector(readStore store.ReadStoreInterface, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{readStore: readStore, logger: logger.Named("projector")}
}

// HandleEvent decodes a bus message and projects it. Events of other
// aggregates are ignored.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	return p.Project(ctx, event)
}

// Publish projects synchronously, for running without a broker
func (p *Projector) Publish(ctx context.Context, _ string, event any) error {
	switch e := event.(type) {
	case store.Event:
		return p.Project(ctx, e)
	case *store.Event:
		return p.Project(ctx, *e)
	}
	return fmt.Errorf("projector: unexpected event type %T", event)
}

func (p *Projector) Project(_ context.Context, event store.Event) error {
	if event.AggregateType != order.AggregateType {
		return nil
	}
	p.logger.Debug("received event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID),
		zap.Int("version", event.Version),
	)
	return p.handleOrderEvent(event)
}

// Replay rebuilds the read model from every stored event
func (p *Projector) Replay(ctx context.Context, es store.EventStoreInterface) (int, error) {
	events, err := es.GetAllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("load events: %w", err)
	}
	n := 0
	for _, event := range events {
		if err := p.Project(ctx, event); err != nil {
			p.logger.Error("error replaying event", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		if event.AggregateType == order.AggregateType {
			n++
		}
	}
	return n, nil
}

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		items := make([]readmodel.OrderItemReadModel, len(e.Items))
		for i, item := range e.Items {
			items[i] = readmodel.OrderItemReadModel{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     item.Price,
				Quantity:  item.Quantity,
				Image:     item.Image,
			}
		}
		return p.readStore.Set(readmodel.CollectionOrders, e.OrderID, &readmodel.OrderReadModel{
			ID:       e.OrderID,
			Identity: e.Identity,
			Items:    items,
			Total:    e.Total,
			ShippingAddress: readmodel.ShippingAddressReadModel{
				Name:    e.ShippingAddress.Name,
				Phone:   e.ShippingAddress.Phone,
				Email:   e.ShippingAddress.Email,
				Address: e.ShippingAddress.Address,
				City:    e.ShippingAddress.City,
				Area:    e.ShippingAddress.Area,
				ZipCode: e.ShippingAddress.ZipCode,
			},
			PaymentMethod: string(e.PaymentMethod),
			PaymentStatus: string(e.PaymentStatus),
			Status:        string(order.StatusProcessing),
			OrderNotes:    e.OrderNotes,
			CreatedAt:     e.PlacedAt,
			UpdatedAt:     e.PlacedAt,
		})

	case order.EventOrderPaid:
		var e order.OrderPaid
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.updateOrder(e.OrderID, event.EventType, func(o *readmodel.OrderReadModel) {
			o.PaymentStatus = string(order.PaymentPaid)
			o.UpdatedAt = e.PaidAt
		})

	case order.EventOrderShipped:
		var e order.OrderShipped
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.setStatus(e.OrderID, event.EventType, order.StatusShipped, e.ShippedAt)

	case order.EventOrderDelivered:
		var e order.OrderDelivered
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.setStatus(e.OrderID, event.EventType, order.StatusDelivered, e.DeliveredAt)

	case order.EventOrderCancelled:
		var e order.OrderCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.setStatus(e.OrderID, event.EventType, order.StatusCancelled, e.CancelledAt)
	}

	return nil
}

func (p *Projector) setStatus(orderID, eventType string, status order.Status, at time.Time) error {
	return p.updateOrder(orderID, eventType, func(o *readmodel.OrderReadModel) {
		o.Status = string(status)
		o.UpdatedAt = at
	})
}

func (p *Projector) updateOrder(orderID, eventType string, fn func(*readmodel.OrderReadModel)) error {
	found, err := p.readStore.Update(readmodel.CollectionOrders, orderID, func(current any) any {
		o := current.(*readmodel.OrderReadModel)
		fn(o)
		return o
	})
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn("order not in read model", zap.String("order_id", orderID), zap.String("event_type", eventType))
	}
	return nil
}
