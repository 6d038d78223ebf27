package query

import (
	"errors"
	"sort"

	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/readmodel"
)

var ErrOrderNotFound = errors.New("order not found")

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

func (h *Handler) GetOrder(id string) (*OrderReadModel, error) {
	data, ok, err := h.readStore.Get(readmodel.CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	return data.(*OrderReadModel), nil
}

// ListOrdersByIdentity returns the orders of one cart owner, newest first
func (h *Handler) ListOrdersByIdentity(identity string) ([]*OrderReadModel, error) {
	all, err := h.ListAllOrders()
	if err != nil {
		return nil, err
	}
	orders := make([]*OrderReadModel, 0)
	for _, o := range all {
		if o.Identity == identity {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// ListAllOrders returns all orders, newest first (for admin use)
func (h *Handler) ListAllOrders() ([]*OrderReadModel, error) {
	items, err := h.readStore.GetAll(readmodel.CollectionOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]*OrderReadModel, 0, len(items))
	for _, item := range items {
		orders = append(orders, item.(*OrderReadModel))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}
