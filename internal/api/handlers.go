package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/petshop-checkout/internal/api/middleware"
	"github.com/example/petshop-checkout/internal/auth"
	"github.com/example/petshop-checkout/internal/catalog"
	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/example/petshop-checkout/internal/domain/cart"
	"github.com/example/petshop-checkout/internal/domain/identity"
	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/query"
	"github.com/example/petshop-checkout/internal/validation"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	errUnauthorized     = errors.New("sign in to access this resource")
	errForbidden        = errors.New("access to this resource is not allowed")
	errIdentityRequired = errors.New("userId or sessionId is required")
	errUnknownAction    = errors.New("unknown order action")
)

type Handlers struct {
	carts    *cart.Service
	orders   *order.Service
	invoices *invoice.Service
	checkout *checkout.Orchestrator
	query    *query.Handler
	catalog  catalog.Reader
	validate *validator.Validate
	logger   *zap.Logger
}

type Dependencies struct {
	Carts    *cart.Service
	Orders   *order.Service
	Invoices *invoice.Service
	Checkout *checkout.Orchestrator
	Query    *query.Handler
	Catalog  catalog.Reader
	Logger   *zap.Logger
}

func NewHandlers(deps Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		carts:    deps.Carts,
		orders:   deps.Orders,
		invoices: deps.Invoices,
		checkout: deps.Checkout,
		query:    deps.Query,
		catalog:  deps.Catalog,
		validate: validation.New(),
		logger:   logger.Named("api"),
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	OrderID string            `json:"orderId,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body into dst and validates it
func (h *Handlers) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &checkout.ValidationError{Err: errors.New("invalid JSON body")}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &checkout.ValidationError{Err: errors.New("invalid request"), Fields: validation.Messages(err)}
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be absent
func (h *Handlers) decodeOptional(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &checkout.ValidationError{Err: errors.New("invalid JSON body")}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &checkout.ValidationError{Err: errors.New("invalid request"), Fields: validation.Messages(err)}
	}
	return nil
}

// respondError maps domain errors onto status codes
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr    *checkout.ValidationError
		perr    *checkout.PersistenceError
		partial *checkout.PartialCheckoutError
	)
	switch {
	case errors.As(err, &verr):
		code := "validation_error"
		if errors.Is(err, checkout.ErrEmptyCart) {
			code = "empty_cart"
		}
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Message: verr.Err.Error(), Code: code, Fields: verr.Fields})

	case errors.As(err, &partial):
		h.logger.Error("checkout incomplete",
			zap.String("request_id", requestID(r)),
			zap.String("order_id", partial.OrderID),
			zap.String("state", string(partial.State)),
			zap.Error(err),
		)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Message: "order was placed but checkout did not complete",
			Code:    "partial_checkout",
			OrderID: partial.OrderID,
		})

	case errors.As(err, &perr):
		h.logger.Error("checkout failed", zap.String("request_id", requestID(r)), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "order could not be saved", Code: "persistence_error"})

	case errors.Is(err, identity.ErrInvalidIdentity),
		errors.Is(err, errIdentityRequired),
		errors.Is(err, errUnknownAction),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidPrice):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: "validation_error"})

	case errors.Is(err, errUnauthorized):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Message: err.Error(), Code: "unauthorized"})

	case errors.Is(err, errForbidden):
		respondJSON(w, http.StatusForbidden, ErrorResponse{Message: err.Error(), Code: "forbidden"})

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, query.ErrOrderNotFound),
		errors.Is(err, invoice.ErrInvoiceNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotInCart):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Message: err.Error(), Code: "not_found"})

	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrOrderAlreadyPaid),
		errors.Is(err, order.ErrOrderNotShipped),
		errors.Is(err, order.ErrOrderDelivered),
		errors.Is(err, order.ErrOrderCancelled):
		respondJSON(w, http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "invalid_transition"})

	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, invoice.ErrOrderInvoiced):
		respondJSON(w, http.StatusConflict, ErrorResponse{Message: "the resource changed, retry the request", Code: "conflict"})

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Message: "catalog is temporarily unavailable", Code: "unavailable"})

	default:
		h.logger.Error("request failed",
			zap.String("request_id", requestID(r)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal server error", Code: "internal_error"})
	}
}

// resolveIdentity picks the cart owner for a request that names it in the
// body. A signed-in user always acts as themselves unless they are an admin.
// Without a token only guest sessions are accepted.
func resolveIdentity(r *http.Request, userID, sessionID string) (string, error) {
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		if userID == "" || userID == claims.UserID {
			return claims.Identity(), nil
		}
		if claims.Role == auth.RoleAdmin {
			return identity.ForUser(userID), nil
		}
		return "", errForbidden
	}
	if userID != "" {
		return "", errUnauthorized
	}
	if sessionID == "" {
		return "", errIdentityRequired
	}
	id := identity.ForGuest(sessionID)
	if err := identity.Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// authorizeIdentity checks that the caller may act for id. Guest session ids
// are unguessable and act as their own credential.
func authorizeIdentity(r *http.Request, id string) error {
	if err := identity.Validate(id); err != nil {
		return err
	}
	if identity.IsGuest(id) || middleware.IsAdmin(r.Context()) {
		return nil
	}
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		return errUnauthorized
	}
	if claims.Identity() != id {
		return errForbidden
	}
	return nil
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
