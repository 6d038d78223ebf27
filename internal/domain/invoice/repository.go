package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/lib/pq"
)

// Repository persists issued invoices. Create must reject a reused invoice
// number with ErrDuplicateNumber and a second invoice for the same order
// with ErrOrderInvoiced.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Invoice, error)
}

// MemoryRepository keeps invoices in process memory
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Invoice
	byNumber map[string]string // invoice number -> id
	byOrder  map[string]string // order id -> id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*Invoice),
		byNumber: make(map[string]string),
		byOrder:  make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byNumber[inv.InvoiceNumber]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, inv.InvoiceNumber)
	}
	if _, exists := r.byOrder[inv.OrderID]; exists {
		return fmt.Errorf("%w: %s", ErrOrderInvoiced, inv.OrderID)
	}
	stored := *inv
	r.byID[inv.ID] = &stored
	r.byNumber[inv.InvoiceNumber] = inv.ID
	r.byOrder[inv.OrderID] = inv.ID
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.byID[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	out := *inv
	return &out, nil
}

func (r *MemoryRepository) ListByOrder(_ context.Context, orderID string) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Invoice
	for _, inv := range r.byID {
		if inv.OrderID == orderID {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

const (
	pgUniqueViolation     = "23505"
	orderUniqueConstraint = "invoices_order_id_key"
)

// PostgresRepository stores invoices in the invoices table
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, inv *Invoice) error {
	customerJSON, err := json.Marshal(inv.CustomerInfo)
	if err != nil {
		return err
	}
	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO invoices (id, invoice_number, order_id, customer_identity, customer_info, items, subtotal, total, payment_method, payment_status, order_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.InvoiceNumber, inv.OrderID, inv.CustomerIdentity,
		string(customerJSON), string(itemsJSON),
		inv.Subtotal, inv.Total, string(inv.PaymentMethod), string(inv.PaymentStatus),
		inv.OrderDate, inv.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			if pqErr.Constraint == orderUniqueConstraint {
				return fmt.Errorf("%w: %s", ErrOrderInvoiced, inv.OrderID)
			}
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, inv.InvoiceNumber)
		}
		return err
	}
	return nil
}

const selectInvoice = `SELECT id, invoice_number, order_id, customer_identity, customer_info, items, subtotal, total, payment_method, payment_status, order_date, created_at
	FROM invoices`

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	row := r.db.QueryRowContext(ctx, selectInvoice+" WHERE id = $1", id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

func (r *PostgresRepository) ListByOrder(ctx context.Context, orderID string) ([]*Invoice, error) {
	rows, err := r.db.QueryContext(ctx, selectInvoice+" WHERE order_id = $1 ORDER BY created_at ASC", orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (*Invoice, error) {
	var inv Invoice
	var customerJSON, itemsJSON []byte
	var method, status string
	err := s.Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.CustomerIdentity,
		&customerJSON, &itemsJSON, &inv.Subtotal, &inv.Total, &method, &status,
		&inv.OrderDate, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customerJSON, &inv.CustomerInfo); err != nil {
		return nil, fmt.Errorf("decode customer info: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	inv.PaymentMethod = order.PaymentMethod(method)
	inv.PaymentStatus = order.PaymentStatus(status)
	return &inv, nil
}
