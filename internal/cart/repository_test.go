package cart

import (
	"context"
	"testing"
	"time"

	"storefront-be/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_ActiveCartID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id FROM carts WHERE user_id = \$1 AND deleted_at IS NULL`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	id, found, err := repo.ActiveCartID(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(9), id)

	mock.ExpectQuery(`SELECT id FROM carts`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, found, err = repo.ActiveCartID(ctx, 2)
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateCart(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	ctx := context.Background()

	t.Run("Created", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO carts \(user_id\) VALUES \(\$1\) RETURNING id`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

		id, err := repo.CreateCart(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(9), id)
	})

	t.Run("LostRace", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(int64(1)).
			WillReturnError(&pq.Error{Code: apperr.PgUniqueViolation, Constraint: "carts_one_active_per_user"})
		mock.ExpectQuery(`SELECT id FROM carts`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		id, err := repo.CreateCart(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(10), id)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertAndDeleteItem(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	ctx := context.Background()

	mock.ExpectExec(`WITH line AS \( INSERT INTO cart_items \(cart_id, product_id, quantity\) VALUES \(\$1, \$2, \$3\) ON CONFLICT \(cart_id, product_id\) DO UPDATE .* RETURNING \(xmax = 0\) AS inserted \) UPDATE products SET add_to_cart_count = add_to_cart_count \+ 1 WHERE id = \$2 AND EXISTS \(SELECT 1 FROM line WHERE inserted\)`).
		WithArgs(int64(9), int64(5), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpsertItem(ctx, 9, 5, 2))

	mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1 AND product_id = \$2`).
		WithArgs(int64(9), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteItem(ctx, 9, 5))

	mock.ExpectExec(`DELETE FROM cart_items`).
		WithArgs(int64(9), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeleteItem(ctx, 9, 6), ErrCartItemNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Items(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM carts c JOIN cart_items ci ON ci.cart_id = c.id JOIN products p ON p.id = ci.product_id WHERE c.user_id = \$1 AND c.deleted_at IS NULL ORDER BY ci.product_id ASC`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "price", "quantity", "updated_at"}).
			AddRow(3, "Kettle", "450.50", 1, ts).
			AddRow(5, "Mug", "100.00", 2, ts))

	items, err := NewRepository(sqlDB).Items(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ProductID)
	assert.Equal(t, "450.5", items[0].UnitPrice.String())
	assert.Equal(t, 2, items[1].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SoftDeleteActive(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(`UPDATE carts SET deleted_at = NOW\(\) WHERE user_id = \$1 AND deleted_at IS NULL`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewRepository(sqlDB).SoftDeleteActive(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}
