// Package checkout turns a cart into an order and its invoice.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/petshop-checkout/internal/domain/cart"
	"github.com/example/petshop-checkout/internal/domain/identity"
	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/example/petshop-checkout/internal/validation"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultWriteTimeout = 10 * time.Second

type CartStore interface {
	Get(ctx context.Context, identity string) (*cart.Cart, error)
	Clear(ctx context.Context, identity string) (*cart.Cart, error)
}

type OrderLedger interface {
	Place(ctx context.Context, p order.PlaceParams) (*order.Order, error)
}

type InvoiceIssuer interface {
	NextNumber() (string, error)
	Issue(ctx context.Context, o *order.Order, customer invoice.CustomerInfo, number string) (*invoice.Invoice, error)
}

// Recorder observes checkout outcomes
type Recorder interface {
	CheckoutCompleted(method order.PaymentMethod, total int64)
	CheckoutFailed(state State)
	CheckoutReplayed()
}

// BillingDetails is the customer contact submitted with the checkout form
type BillingDetails struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,min=6,max=20"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=120"`
	Area    string `json:"area" validate:"max=120"`
	ZipCode string `json:"zipCode" validate:"max=20"`
}

func (b BillingDetails) trimmed() BillingDetails {
	return BillingDetails{
		Name:    strings.TrimSpace(b.Name),
		Email:   strings.TrimSpace(b.Email),
		Phone:   strings.TrimSpace(b.Phone),
		Address: strings.TrimSpace(b.Address),
		City:    strings.TrimSpace(b.City),
		Area:    strings.TrimSpace(b.Area),
		ZipCode: strings.TrimSpace(b.ZipCode),
	}
}

func (b BillingDetails) customerInfo() invoice.CustomerInfo {
	return invoice.CustomerInfo{
		Name:  b.Name,
		Email: b.Email,
		Phone: b.Phone,
		Address: invoice.Address{
			Address: b.Address,
			City:    b.City,
			Area:    b.Area,
			ZipCode: b.ZipCode,
		},
	}
}

func (b BillingDetails) shippingAddress() order.ShippingAddress {
	return order.ShippingAddress{
		Name:    b.Name,
		Phone:   b.Phone,
		Email:   b.Email,
		Address: b.Address,
		City:    b.City,
		Area:    b.Area,
		ZipCode: b.ZipCode,
	}
}

type Request struct {
	Identity string
	Billing  BillingDetails
	// ShippingAddress defaults to the billing details when nil
	ShippingAddress *order.ShippingAddress
	PaymentMethod   string
	OrderNotes      string
	// ClientTotal is what the client believes the total is. It is only compared.
	ClientTotal    *int64
	IdempotencyKey string
}

type Dependencies struct {
	Carts       CartStore
	Orders      OrderLedger
	Invoices    InvoiceIssuer
	Locks       Locker
	Idempotency IdempotencyStore
	Metrics     Recorder
	Logger      *zap.Logger
	// WriteTimeout bounds the writes once the order write has started
	WriteTimeout time.Duration
}

type Orchestrator struct {
	carts        CartStore
	orders       OrderLedger
	invoices     InvoiceIssuer
	locks        Locker
	idempotency  IdempotencyStore
	metrics      Recorder
	validate     *validator.Validate
	logger       *zap.Logger
	writeTimeout time.Duration
}

// New builds an orchestrator. Locks defaults to a process-local KeyedMutex;
// Idempotency and Metrics are optional.
func New(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		carts:        deps.Carts,
		orders:       deps.Orders,
		invoices:     deps.Invoices,
		locks:        deps.Locks,
		idempotency:  deps.Idempotency,
		metrics:      deps.Metrics,
		validate:     validation.New(),
		logger:       deps.Logger,
		writeTimeout: deps.WriteTimeout,
	}
	if o.locks == nil {
		o.locks = NewKeyedMutex()
	}
	if o.metrics == nil {
		o.metrics = nopRecorder{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("checkout")
	if o.writeTimeout <= 0 {
		o.writeTimeout = defaultWriteTimeout
	}
	return o
}

// PlaceOrder runs a checkout for req.Identity. Checkouts of the same identity
// are serialized for the whole call.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	if err := identity.Validate(req.Identity); err != nil {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &ValidationError{Err: err, Fields: map[string]string{"identity": err.Error()}}
	}

	unlock, err := o.locks.Lock(ctx, req.Identity)
	if err != nil {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &PersistenceError{State: StateValidating, Err: err}
	}
	defer unlock()

	log := o.logger.With(zap.String("identity", req.Identity))

	if req.IdempotencyKey != "" && o.idempotency != nil {
		res, ok, err := o.idempotency.Get(ctx, req.Identity, req.IdempotencyKey)
		if err != nil {
			log.Warn("idempotency lookup failed", zap.String("key", req.IdempotencyKey), zap.Error(err))
		} else if ok {
			return o.replay(ctx, log, req, res)
		}
	}

	// Validating
	billing := req.Billing.trimmed()
	if err := o.validate.Struct(billing); err != nil {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &ValidationError{Err: ErrInvalidBillingDetails, Fields: validation.Messages(err)}
	}
	method, err := order.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &ValidationError{Err: err, Fields: map[string]string{"paymentMethod": err.Error()}}
	}

	c, err := o.carts.Get(ctx, req.Identity)
	if err != nil {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &PersistenceError{State: StateValidating, Err: err}
	}
	if c.IsEmpty() {
		o.metrics.CheckoutFailed(StateValidating)
		return nil, &ValidationError{Err: ErrEmptyCart}
	}

	items := make([]order.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		}
	}
	total := order.Total(items)
	if req.ClientTotal != nil && *req.ClientTotal != total {
		log.Warn("client total ignored",
			zap.Int64("client_total", *req.ClientTotal),
			zap.Int64("total", total),
		)
	}

	shipping := billing.shippingAddress()
	if req.ShippingAddress != nil {
		shipping = *req.ShippingAddress
	}

	// The writes below outlive a disconnected client.
	wctx, cancel := o.writeContext(ctx)
	defer cancel()

	// Ordering
	placed, err := o.orders.Place(wctx, order.PlaceParams{
		Identity:        req.Identity,
		Items:           items,
		ShippingAddress: shipping,
		PaymentMethod:   method,
		OrderNotes:      req.OrderNotes,
	})
	if err != nil {
		o.metrics.CheckoutFailed(StateOrdering)
		log.Error("order write failed", zap.Error(err))
		return nil, &PersistenceError{State: StateOrdering, Err: err}
	}
	log = log.With(zap.String("order_id", placed.ID))

	// Invoicing
	number, err := o.invoices.NextNumber()
	if err != nil {
		return nil, o.partial(log, StateInvoicing, placed.ID, "", err)
	}
	inv, err := o.invoices.Issue(wctx, placed, billing.customerInfo(), number)
	if err != nil {
		return nil, o.partial(log, StateInvoicing, placed.ID, "", err)
	}

	// A retry with the same key must not place a second order from here on.
	o.remember(wctx, log, req, &Result{Order: placed, Invoice: inv, CartPending: true})

	// ClearingCart
	if _, err := o.carts.Clear(wctx, req.Identity); err != nil {
		return nil, o.partial(log, StateClearingCart, placed.ID, inv.ID, err)
	}

	res := &Result{Order: placed, Invoice: inv}
	o.remember(wctx, log, req, res)

	o.metrics.CheckoutCompleted(placed.PaymentMethod, placed.Total)
	log.Info("checkout completed",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int64("total", placed.Total),
	)
	return res, nil
}

// replay answers a retried key with the recorded result. A record left by a
// checkout that stopped before clearing the cart gets its clear retried.
func (o *Orchestrator) replay(ctx context.Context, log *zap.Logger, req Request, rec *Result) (*Result, error) {
	log = log.With(zap.String("key", req.IdempotencyKey), zap.String("order_id", rec.Order.ID))
	res := &Result{Order: rec.Order, Invoice: rec.Invoice}

	if rec.CartPending {
		wctx, cancel := o.writeContext(ctx)
		defer cancel()
		if _, err := o.carts.Clear(wctx, req.Identity); err != nil {
			return nil, o.partial(log, StateClearingCart, rec.Order.ID, rec.Invoice.ID, err)
		}
		o.remember(wctx, log, req, res)
		log.Info("cart cleared on retry")
	}

	log.Info("checkout replayed")
	o.metrics.CheckoutReplayed()
	return res, nil
}

// remember stores res under the request's idempotency key, if it has one.
func (o *Orchestrator) remember(ctx context.Context, log *zap.Logger, req Request, res *Result) {
	if req.IdempotencyKey == "" || o.idempotency == nil {
		return
	}
	if err := o.idempotency.Put(ctx, req.Identity, req.IdempotencyKey, res); err != nil {
		log.Warn("idempotency record not saved", zap.String("key", req.IdempotencyKey), zap.Error(err))
	}
}

func (o *Orchestrator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.writeTimeout)
}

func (o *Orchestrator) partial(log *zap.Logger, state State, orderID, invoiceID string, err error) error {
	o.metrics.CheckoutFailed(state)
	log.Error("checkout left incomplete", zap.String("state", string(state)), zap.Error(err))
	return &PartialCheckoutError{State: state, OrderID: orderID, InvoiceID: invoiceID, Err: err}
}

// IsValidation reports whether err rejected the checkout before any write
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutCompleted(order.PaymentMethod, int64) {}
func (nopRecorder) CheckoutFailed(State)                         {}
func (nopRecorder) CheckoutReplayed()                            {}
