package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/petshop-checkout/internal/auth"
	"github.com/example/petshop-checkout/internal/catalog"
	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/example/petshop-checkout/internal/domain/cart"
	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"github.com/example/petshop-checkout/internal/projection"
	"github.com/example/petshop-checkout/internal/query"
	"github.com/example/petshop-checkout/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret-0123456789abcdef"

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTService
	carts   *cart.Service
	orders  *order.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	readStore := store.NewReadStore()
	projector := projection.NewProjector(readStore, nil)
	es := store.NewEventStore(projector)

	carts := cart.NewService(es, nil)
	orders := order.NewService(es, nil)
	invoices := invoice.NewService(invoice.NewMemoryRepository(), invoice.NewNumberGenerator(), nil, nil)
	products := catalog.NewMemoryReader(
		catalog.Product{ID: "p-food", Name: "Salmon Kibble", Price: 500, Image: "kibble.png", Stock: 10},
		catalog.Product{ID: "p-toy", Name: "Rope Toy", Price: 150, Stock: 3},
	)

	jwtService := auth.NewJWTService(testSecret, time.Hour)
	h := NewHandlers(Dependencies{
		Carts:    carts,
		Orders:   orders,
		Invoices: invoices,
		Checkout: checkout.New(checkout.Dependencies{Carts: carts, Orders: orders, Invoices: invoices}),
		Query:    query.NewHandler(readStore),
		Catalog:  products,
	})

	return &testServer{
		handler: NewRouter(RouterConfig{Handlers: h, JWTService: jwtService}),
		jwt:     jwtService,
		carts:   carts,
		orders:  orders,
	}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, _, err := s.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func checkoutBody(sessionID string) map[string]any {
	return map[string]any{
		"sessionId": sessionID,
		"customerInfo": map[string]any{
			"name":  "Rahim",
			"email": "rahim@example.com",
			"phone": "01700000000",
			"address": map[string]any{
				"address": "12 Lake Road",
				"city":    "Dhaka",
			},
		},
		"paymentMethod": "cod",
		"total":         1,
	}
}

// ============================================
// Health
// ============================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

// ============================================
// Cart Tests
// ============================================

func TestAddToCart_GuestUsesCatalogPrice(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/add", map[string]any{
		"sessionId": "sess-1", "productId": "p-food", "quantity": 2,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := decodeBody[cart.Cart](t, rec)
	assert.Equal(t, "guest:sess-1", c.Identity)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Salmon Kibble", c.Items[0].Name)
	assert.Equal(t, int64(500), c.Items[0].Price)
	assert.Equal(t, int64(1000), c.Total)
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/cart/add", map[string]any{
		"sessionId": "sess-1", "productId": "nope", "quantity": 1,
	}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Code)
}

func TestAddToCart_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		token  string
		status int
	}{
		{"missing product", map[string]any{"sessionId": "s", "quantity": 1}, "", http.StatusBadRequest},
		{"zero quantity", map[string]any{"sessionId": "s", "productId": "p-food"}, "", http.StatusBadRequest},
		{"no identity", map[string]any{"productId": "p-food", "quantity": 1}, "", http.StatusBadRequest},
		{"user id without token", map[string]any{"userId": "u1", "productId": "p-food", "quantity": 1}, "", http.StatusUnauthorized},
		{"other user's cart", map[string]any{"userId": "u2", "productId": "p-food", "quantity": 1}, s.token(t, "u1", auth.RoleCustomer), http.StatusForbidden},
		{"bad session id", map[string]any{"sessionId": "a b", "productId": "p-food", "quantity": 1}, "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/cart/add", tt.body, tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAddToCart_InvalidJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_SignedInUserActsAsThemselves(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/cart/add", map[string]any{"productId": "p-toy", "quantity": 1}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user:u1", decodeBody[cart.Cart](t, rec).Identity)

	rec = s.do(t, http.MethodGet, "/cart/user:u1", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[cart.Cart](t, rec).Items, 1)

	rec = s.do(t, http.MethodGet, "/cart/user:u1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/cart/user:u1", nil, s.token(t, "u2", auth.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "guest:s1", "p-food", "Salmon Kibble", 500, "", 1)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, "guest:s1", "p-toy", "Rope Toy", 150, "", 1)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPut, "/cart/update", map[string]any{
		"sessionId": "s1", "productId": "p-food", "quantity": 3,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1650), decodeBody[cart.Cart](t, rec).Total)

	rec = s.do(t, http.MethodPut, "/cart/update", map[string]any{
		"sessionId": "s1", "productId": "p-missing", "quantity": 3,
	}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/cart/item/guest:s1/p-toy", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[cart.Cart](t, rec).Items, 1)

	rec = s.do(t, http.MethodDelete, "/cart/clear/guest:s1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decodeBody[cart.Cart](t, rec)
	assert.True(t, cleared.IsEmpty())
}

func TestGetCart_InvalidIdentity(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/cart/bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Checkout Tests
// ============================================

func TestPlaceOrder_GuestCheckout(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "guest:s1", "p-food", "Salmon Kibble", 500, "", 2)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/orders", checkoutBody("s1"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[checkout.Result](t, rec)
	require.NotNil(t, res.Order)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, int64(1000), res.Order.Total)
	assert.Equal(t, order.StatusProcessing, res.Order.Status)
	assert.Equal(t, order.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, res.Order.ID, res.Invoice.OrderID)
	assert.True(t, invoice.ValidNumber(res.Invoice.InvoiceNumber))

	c, err := s.carts.Get(ctx, "guest:s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	rec = s.do(t, http.MethodGet, "/orders/"+res.Order.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.Order.ID, decodeBody[order.Order](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/orders?identity=guest:s1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]readmodel.OrderReadModel](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, res.Order.ID, list[0].ID)

	rec = s.do(t, http.MethodGet, "/orders/"+res.Order.ID+"/invoices", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]invoice.Invoice](t, rec), 1)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/orders", checkoutBody("s1"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decodeBody[ErrorResponse](t, rec).Code)
}

func TestPlaceOrder_InvalidBilling(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.AddItem(context.Background(), "guest:s1", "p-food", "Salmon Kibble", 500, "", 1)
	require.NoError(t, err)

	body := checkoutBody("s1")
	body["customerInfo"].(map[string]any)["email"] = "not-an-email"
	rec := s.do(t, http.MethodPost, "/orders", body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Fields, "email")
}

func TestPlaceOrder_IdempotencyKeyHeader(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "guest:s1", "p-food", "Salmon Kibble", 500, "", 1)
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		buf, _ := json.Marshal(checkoutBody("s1"))
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(buf))
		req.Header.Set("Idempotency-Key", "retry-1")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	// no idempotency store is configured, so the retry sees an empty cart
	second := send()
	assert.Equal(t, http.StatusBadRequest, second.Code)
}

func TestOrders_AccessControl(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "user:u1", "p-food", "Salmon Kibble", 500, "", 1)
	require.NoError(t, err)

	body := checkoutBody("")
	delete(body, "sessionId")
	owner := s.token(t, "u1", auth.RoleCustomer)
	rec := s.do(t, http.MethodPost, "/orders", body, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[checkout.Result](t, rec)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/orders/"+res.Order.ID, nil, owner).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/orders/"+res.Order.ID, nil, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/orders/"+res.Order.ID, nil, s.token(t, "u2", auth.RoleCustomer)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/orders/"+res.Order.ID, nil, s.token(t, "boss", auth.RoleAdmin)).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/invoices/"+res.Invoice.ID, nil, s.token(t, "u2", auth.RoleCustomer)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/invoices/"+res.Invoice.ID, nil, owner).Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/orders/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Invoice Tests
// ============================================

func TestDownloadInvoice(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.AddItem(context.Background(), "guest:s1", "p-food", "Salmon Kibble", 500, "", 2)
	require.NoError(t, err)
	rec := s.do(t, http.MethodPost, "/orders", checkoutBody("s1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[checkout.Result](t, rec)

	rec = s.do(t, http.MethodGet, "/invoices/download/"+res.Invoice.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="invoice-`+res.Invoice.InvoiceNumber+`.html"`,
		rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), res.Invoice.InvoiceNumber)
	assert.Contains(t, rec.Body.String(), "Salmon Kibble")
}

func TestDownloadInvoice_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/invoices/download/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Admin Tests
// ============================================

func TestAdmin_RequiresAdminRole(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/orders", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/orders", nil, s.token(t, "u1", auth.RoleCustomer)).Code)
}

func TestAdmin_OrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.AddItem(context.Background(), "guest:s1", "p-food", "Salmon Kibble", 500, "", 1)
	require.NoError(t, err)
	rec := s.do(t, http.MethodPost, "/orders", checkoutBody("s1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decodeBody[checkout.Result](t, rec).Order.ID

	admin := s.token(t, "boss", auth.RoleAdmin)

	rec = s.do(t, http.MethodPost, "/admin/orders/"+orderID+"/deliver", nil, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody[ErrorResponse](t, rec).Code)

	for _, action := range []string{"pay", "ship", "deliver"} {
		rec = s.do(t, http.MethodPost, "/admin/orders/"+orderID+"/"+action, nil, admin)
		require.Equal(t, http.StatusOK, rec.Code, action+": "+rec.Body.String())
	}
	o := decodeBody[order.Order](t, rec)
	assert.Equal(t, order.StatusDelivered, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)

	rec = s.do(t, http.MethodGet, "/admin/orders", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]readmodel.OrderReadModel](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, string(order.StatusDelivered), list[0].Status)
}

func TestAdmin_CancelWithReason(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.AddItem(context.Background(), "guest:s1", "p-toy", "Rope Toy", 150, "", 1)
	require.NoError(t, err)
	rec := s.do(t, http.MethodPost, "/orders", checkoutBody("s1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decodeBody[checkout.Result](t, rec).Order.ID

	admin := s.token(t, "boss", auth.RoleAdmin)
	rec = s.do(t, http.MethodPost, "/admin/orders/"+orderID+"/cancel", map[string]string{"reason": "out of stock"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusCancelled, decodeBody[order.Order](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/admin/orders/"+orderID+"/ship", nil, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdmin_UnknownAction(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "boss", auth.RoleAdmin)
	rec := s.do(t, http.MethodPost, "/admin/orders/whatever/refund", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
