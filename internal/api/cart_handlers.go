package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AddToCartRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

// UpdateCartItemRequest sets an absolute quantity; zero or less removes the line
type UpdateCartItemRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"lte=99"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	if err := authorizeIdentity(r, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// AddToCart snapshots name, price and image from the catalog
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := resolveIdentity(r, req.UserID, req.SessionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), id, product.ID, product.Name, product.Price, product.Image, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := resolveIdentity(r, req.UserID, req.SessionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.SetQuantity(r.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	if err := authorizeIdentity(r, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), id, chi.URLParam(r, "productId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	if err := authorizeIdentity(r, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.Clear(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
