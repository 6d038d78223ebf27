package order

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "COD"
	PaymentBkash PaymentMethod = "Bkash"
	PaymentNagad PaymentMethod = "Nagad"
	PaymentCard  PaymentMethod = "Card"
)

var paymentMethods = []PaymentMethod{PaymentCOD, PaymentBkash, PaymentNagad, PaymentCard}

// ParsePaymentMethod maps a client-supplied label onto a known method.
// An empty label means cash on delivery.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentCOD, nil
	}
	for _, m := range paymentMethods {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// Prepaid reports whether the customer pays before delivery
func (m PaymentMethod) Prepaid() bool {
	return m != PaymentCOD
}

// InitialPaymentStatus is Paid for pre-paid methods and Pending for cash on delivery
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m.Prepaid() {
		return PaymentPaid
	}
	return PaymentPending
}

// Item is a line item frozen at checkout time
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// ShippingAddress holds the billing details submitted at checkout
type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Area    string `json:"area,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// Total sums price times quantity over items
func Total(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
