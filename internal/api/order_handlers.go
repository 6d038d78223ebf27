package api

import (
	"net/http"
	"strings"

	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

type AddressDTO struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Area    string `json:"area"`
	ZipCode string `json:"zipCode"`
}

type CustomerInfoDTO struct {
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Phone   string     `json:"phone"`
	Address AddressDTO `json:"address"`
}

// PlaceOrderRequest mirrors the checkout form. Items, subtotal and total are
// accepted for compatibility; the order is always built from the stored cart.
type PlaceOrderRequest struct {
	UserID          string                 `json:"userId"`
	SessionID       string                 `json:"sessionId"`
	CustomerInfo    CustomerInfoDTO        `json:"customerInfo"`
	Items           []order.Item           `json:"items"`
	Subtotal        *int64                 `json:"subtotal"`
	Total           *int64                 `json:"total"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ShippingAddress *order.ShippingAddress `json:"shippingAddress"`
	OrderNotes      string                 `json:"orderNotes" validate:"max=1000"`
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := resolveIdentity(r, req.UserID, req.SessionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.checkout.PlaceOrder(r.Context(), checkout.Request{
		Identity: id,
		Billing: checkout.BillingDetails{
			Name:    req.CustomerInfo.Name,
			Email:   req.CustomerInfo.Email,
			Phone:   req.CustomerInfo.Phone,
			Address: req.CustomerInfo.Address.Address,
			City:    req.CustomerInfo.Address.City,
			Area:    req.CustomerInfo.Address.Area,
			ZipCode: req.CustomerInfo.Address.ZipCode,
		},
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		OrderNotes:      req.OrderNotes,
		ClientTotal:     req.Total,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := authorizeIdentity(r, o.Identity); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ListOrders returns the order history of ?identity=
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("identity")
	if err := authorizeIdentity(r, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	orders, err := h.query.ListOrdersByIdentity(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
