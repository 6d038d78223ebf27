package cart

import "time"

const (
	EventItemAdded       = "ItemAddedToCart"
	EventItemQuantitySet = "CartItemQuantitySet"
	EventItemRemoved     = "ItemRemovedFromCart"
	EventCartCleared     = "CartCleared"
)

// ItemAddedToCart carries the name, price and image as they were when the item was added
type ItemAddedToCart struct {
	CartID    string    `json:"cart_id"`
	Identity  string    `json:"identity"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type CartItemQuantitySet struct {
	CartID    string    `json:"cart_id"`
	Identity  string    `json:"identity"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	SetAt     time.Time `json:"set_at"`
}

type ItemRemovedFromCart struct {
	CartID    string    `json:"cart_id"`
	Identity  string    `json:"identity"`
	ProductID string    `json:"product_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	CartID    string    `json:"cart_id"`
	Identity  string    `json:"identity"`
	ClearedAt time.Time `json:"cleared_at"`
}
