package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/petshop-checkout/internal/readmodel"
)

var ErrUnknownCollection = errors.New("unknown read model collection")

// PostgresReadStore implements ReadStoreInterface using PostgreSQL
type PostgresReadStore struct {
	db *sql.DB
}

// NewPostgresReadStore creates a new PostgreSQL-based read store
func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Set stores a read model
func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	switch collection {
	case readmodel.CollectionOrders:
		o, ok := data.(*readmodel.OrderReadModel)
		if !ok {
			return fmt.Errorf("orders: unexpected type %T", data)
		}
		return setOrder(rs.db, o)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Get retrieves a read model by id
func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	switch collection {
	case readmodel.CollectionOrders:
		o, err := getOrder(rs.db, id, false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return o, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// GetAll retrieves all items in a collection
func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	switch collection {
	case readmodel.CollectionOrders:
		return rs.getAllOrders()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Delete removes a read model
func (rs *PostgresReadStore) Delete(collection, id string) error {
	switch collection {
	case readmodel.CollectionOrders:
		_, err := rs.db.Exec("DELETE FROM read_orders WHERE id = $1", id)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Update modifies a read model using an update function.
// The row is locked for the duration of the update.
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	if collection != readmodel.CollectionOrders {
		return false, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	current, err := getOrder(tx, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	updated, ok := updateFn(current).(*readmodel.OrderReadModel)
	if !ok {
		return false, fmt.Errorf("orders: update returned unexpected type")
	}
	if err := setOrder(tx, updated); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func setOrder(q queryer, o *readmodel.OrderReadModel) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = q.Exec(`
		INSERT INTO read_orders (id, identity, items, total, shipping_address, payment_method, payment_status, status, order_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			total = EXCLUDED.total,
			shipping_address = EXCLUDED.shipping_address,
			payment_method = EXCLUDED.payment_method,
			payment_status = EXCLUDED.payment_status,
			status = EXCLUDED.status,
			order_notes = EXCLUDED.order_notes,
			updated_at = EXCLUDED.updated_at
	`, o.ID, o.Identity, string(itemsJSON), o.Total, string(addressJSON), o.PaymentMethod, o.PaymentStatus, o.Status, o.OrderNotes, o.CreatedAt, o.UpdatedAt)
	return err
}

func getOrder(q queryer, id string, forUpdate bool) (*readmodel.OrderReadModel, error) {
	query := `
		SELECT id, identity, items, total, shipping_address, payment_method, payment_status, status, order_notes, created_at, updated_at
		FROM read_orders WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var o readmodel.OrderReadModel
	var itemsJSON, addressJSON []byte
	err := q.QueryRow(query, id).Scan(&o.ID, &o.Identity, &itemsJSON, &o.Total, &addressJSON, &o.PaymentMethod, &o.PaymentStatus, &o.Status, &o.OrderNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeOrderJSON(&o, itemsJSON, addressJSON); err != nil {
		return nil, err
	}
	return &o, nil
}

func (rs *PostgresReadStore) getAllOrders() ([]any, error) {
	rows, err := rs.db.Query(`
		SELECT id, identity, items, total, shipping_address, payment_method, payment_status, status, order_notes, created_at, updated_at
		FROM read_orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []any
	for rows.Next() {
		var o readmodel.OrderReadModel
		var itemsJSON, addressJSON []byte
		if err := rows.Scan(&o.ID, &o.Identity, &itemsJSON, &o.Total, &addressJSON, &o.PaymentMethod, &o.PaymentStatus, &o.Status, &o.OrderNotes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeOrderJSON(&o, itemsJSON, addressJSON); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func decodeOrderJSON(o *readmodel.OrderReadModel, itemsJSON, addressJSON []byte) error {
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return fmt.Errorf("decode shipping address: %w", err)
	}
	return nil
}
