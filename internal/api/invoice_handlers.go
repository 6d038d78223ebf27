package api

import (
	"fmt"
	"net/http"

	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.loadInvoice(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// DownloadInvoice serves the rendered HTML invoice as an attachment
func (h *Handlers) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.loadInvoice(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	doc, err := invoice.Render(inv)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Filename(inv)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handlers) ListOrderInvoices(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := authorizeIdentity(r, o.Identity); err != nil {
		h.respondError(w, r, err)
		return
	}

	invoices, err := h.invoices.ListByOrder(r.Context(), o.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []*invoice.Invoice{}
	}
	respondJSON(w, http.StatusOK, invoices)
}

func (h *Handlers) loadInvoice(r *http.Request) (*invoice.Invoice, error) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "invoiceId"))
	if err != nil {
		return nil, err
	}
	if err := authorizeIdentity(r, inv.CustomerIdentity); err != nil {
		return nil, err
	}
	return inv, nil
}
