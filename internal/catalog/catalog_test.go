package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	err   error
	calls int
}

func (r *failingReader) GetProduct(context.Context, string) (*Product, error) {
	r.calls++
	return nil, r.err
}

func TestPostgresReader_GetProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM products WHERE id = \\$1 AND is_active").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "image", "stock"}).
			AddRow("p1", "Cat Food", int64(500), "cat.jpg", 12))

	p, err := NewPostgresReader(db).GetProduct(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "Cat Food", p.Name)
	assert.Equal(t, int64(500), p.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReader_GetProduct_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM products").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "image", "stock"}))

	_, err = NewPostgresReader(db).GetProduct(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestBreakerReader_PassesThrough(t *testing.T) {
	r := NewBreakerReader(NewMemoryReader(Product{ID: "p1", Name: "Cat Food", Price: 500}), nil)

	p, err := r.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cat Food", p.Name)

	_, err = r.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestBreakerReader_OpensAfterRepeatedFailures(t *testing.T) {
	next := &failingReader{err: errors.New("connection refused")}
	r := NewBreakerReader(next, nil)

	for i := 0; i < 5; i++ {
		_, err := r.GetProduct(context.Background(), "p1")
		assert.Error(t, err)
	}

	_, err := r.GetProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, next.calls)
}

func TestBreakerReader_NotFoundDoesNotTrip(t *testing.T) {
	next := &failingReader{err: ErrProductNotFound}
	r := NewBreakerReader(next, nil)

	for i := 0; i < 10; i++ {
		_, err := r.GetProduct(context.Background(), "p1")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, 10, next.calls)
}
