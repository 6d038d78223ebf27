package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EventInvoiceIssued = "InvoiceIssued"

// InvoiceIssued is published once an invoice is stored
type InvoiceIssued struct {
	Invoice  *Invoice  `json:"invoice"`
	IssuedAt time.Time `json:"issued_at"`
}

type Service struct {
	repo      Repository
	numbers   *NumberGenerator
	publisher store.Publisher
	logger    *zap.Logger
}

// NewService creates an invoice service. publisher may be nil.
func NewService(repo Repository, numbers *NumberGenerator, publisher store.Publisher, logger *zap.Logger) *Service {
	if numbers == nil {
		numbers = NewNumberGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, numbers: numbers, publisher: publisher, logger: logger.Named("invoice")}
}

// NextNumber allocates an invoice number. It is not reserved until Issue stores it.
func (s *Service) NextNumber() (string, error) {
	return s.numbers.Next()
}

// Issue builds the invoice for an order under number and stores it.
// A reused number fails with ErrDuplicateNumber and is not retried.
func (s *Service) Issue(ctx context.Context, o *order.Order, customer CustomerInfo, number string) (*Invoice, error) {
	inv, err := Build(o, customer, number, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("store invoice %s: %w", number, err)
	}

	s.logger.Info("invoice issued",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("order_id", inv.OrderID),
		zap.Int64("total", inv.Total),
	)
	s.publishIssued(ctx, inv)
	return inv, nil
}

// publishIssued notifies downstream consumers. The invoice is already stored,
// so a publish failure is only logged.
func (s *Service) publishIssued(ctx context.Context, inv *Invoice) {
	if s.publisher == nil {
		return
	}
	now := time.Now().UTC()
	data, err := json.Marshal(InvoiceIssued{Invoice: inv, IssuedAt: now})
	if err != nil {
		s.logger.Error("failed to encode InvoiceIssued", zap.String("invoice_id", inv.ID), zap.Error(err))
		return
	}
	event := store.Event{
		ID:            uuid.New().String(),
		AggregateID:   inv.ID,
		AggregateType: AggregateType,
		EventType:     EventInvoiceIssued,
		Data:          data,
		Timestamp:     now,
		Version:       1,
	}
	if err := s.publisher.Publish(ctx, inv.ID, event); err != nil {
		s.logger.Warn("failed to publish InvoiceIssued", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvoiceNotFound
	}
	return s.repo.Get(ctx, id)
}

// ListByOrder returns the invoices issued for an order, oldest first
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]*Invoice, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
