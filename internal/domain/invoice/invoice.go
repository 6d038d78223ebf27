package invoice

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/google/uuid"
)

const AggregateType = "Invoice"

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrDuplicateNumber  = errors.New("invoice number already issued")
	ErrOrderInvoiced    = errors.New("order already has an invoice")
	ErrInvalidNumber    = errors.New("malformed invoice number")
	ErrTotalMismatch    = errors.New("invoice total does not match order total")
	ErrOrderWithoutItem = errors.New("cannot invoice an order without items")
)

type Address struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Area    string `json:"area,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// IsZero reports whether no part of the address is filled in
func (a Address) IsZero() bool {
	return a == Address{}
}

// CustomerInfo is the billing contact, kept apart from the order's shipping address
type CustomerInfo struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

type Invoice struct {
	ID               string              `json:"id"`
	InvoiceNumber    string              `json:"invoiceNumber"`
	OrderID          string              `json:"orderId"`
	CustomerIdentity string              `json:"customerIdentity"`
	CustomerInfo     CustomerInfo        `json:"customerInfo"`
	Items            []order.Item        `json:"items"`
	Subtotal         int64               `json:"subtotal"`
	Total            int64               `json:"total"`
	PaymentMethod    order.PaymentMethod `json:"paymentMethod"`
	PaymentStatus    order.PaymentStatus `json:"paymentStatus"`
	OrderDate        time.Time           `json:"orderDate"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// Build derives an invoice from an order. Items are copied and both subtotal
// and total are recomputed from them.
func Build(o *order.Order, customer CustomerInfo, number string, issuedAt time.Time) (*Invoice, error) {
	if !ValidNumber(number) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	if len(o.Items) == 0 {
		return nil, ErrOrderWithoutItem
	}

	items := make([]order.Item, len(o.Items))
	copy(items, o.Items)
	total := order.Total(items)
	if total != o.Total {
		return nil, fmt.Errorf("%w: items sum to %d, order says %d", ErrTotalMismatch, total, o.Total)
	}

	return &Invoice{
		ID:               uuid.New().String(),
		InvoiceNumber:    number,
		OrderID:          o.ID,
		CustomerIdentity: o.Identity,
		CustomerInfo:     customer,
		Items:            items,
		Subtotal:         total,
		Total:            total,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		OrderDate:        o.CreatedAt,
		CreatedAt:        issuedAt.UTC(),
	}, nil
}
