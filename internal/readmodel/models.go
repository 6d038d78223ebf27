package readmodel

import "time"

// Collections kept by the read store
const (
	CollectionOrders = "orders"
)

// OrderItemReadModel represents an item in an order
type OrderItemReadModel struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// ShippingAddressReadModel holds the billing details captured at checkout
type ShippingAddressReadModel struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Area    string `json:"area,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// OrderReadModel is the read model for orders
type OrderReadModel struct {
	ID              string                   `json:"id"`
	Identity        string                   `json:"identity"`
	Items           []OrderItemReadModel     `json:"items"`
	Total           int64                    `json:"total"`
	ShippingAddress ShippingAddressReadModel `json:"shipping_address"`
	PaymentMethod   string                   `json:"payment_method"`
	PaymentStatus   string                   `json:"payment_status"`
	Status          string                   `json:"status"`
	OrderNotes      string                   `json:"order_notes,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}
