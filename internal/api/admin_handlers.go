package api

import (
	"net/http"

	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.query.ListAllOrders()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// AdminUpdateOrder applies one fulfillment step: ship, deliver, cancel or pay
func (h *Handlers) AdminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx := r.Context()

	var (
		o   *order.Order
		err error
	)
	switch chi.URLParam(r, "action") {
	case "ship":
		o, err = h.orders.Ship(ctx, orderID)
	case "deliver":
		o, err = h.orders.Deliver(ctx, orderID)
	case "pay":
		o, err = h.orders.MarkPaid(ctx, orderID)
	case "cancel":
		var req CancelOrderRequest
		if err := h.decodeOptional(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		o, err = h.orders.Cancel(ctx, orderID, req.Reason)
	default:
		err = errUnknownAction
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
