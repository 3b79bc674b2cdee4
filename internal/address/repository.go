package address

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetByUserID(ctx context.Context, userID int64) ([]*Address, error)
	GetByID(ctx context.Context, id int64) (*Address, error)

	Create(ctx context.Context, addr *Address) error
	Deactivate(ctx context.Context, id int64) error

	ClearDefault(ctx context.Context, userID int64) error
	SetDefault(ctx context.Context, userID, addressID int64) (bool, error)

	BelongsTo(ctx context.Context, addressID, userID int64) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const addressColumns = `
	id, user_id,
	name, phone,
	address_line1, address_line2,
	city, province, postal_code, country,
	is_default, is_active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAddress(row scanner) (*Address, error) {
	var (
		a     Address
		line2 sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.UserID,
		&a.Name, &a.Phone,
		&a.Address1, &line2,
		&a.City, &a.Province, &a.Postal, &a.Country,
		&a.IsDefault, &a.IsActive, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if line2.Valid {
		a.Address2 = &line2.String
	}
	return &a, nil
}

func (r *repository) GetByUserID(
	ctx context.Context,
	userID int64,
) ([]*Address, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Address"),
		zap.String("method", "GetByUserID"),
		zap.Int64("user_id", userID),
	)

	q := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		  AND is_active = true
		ORDER BY is_default DESC, created_at DESC
	`

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, q, userID)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var res []*Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			log.Error("scan failed", zap.Error(err))
			return nil, err
		}
		res = append(res, a)
	}

	return res, rows.Err()
}

func (r *repository) GetByID(
	ctx context.Context,
	id int64,
) (*Address, error) {

	q := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1 AND is_active = true
	`

	a, err := scanAddress(db.Conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("query failed",
			zap.String("repo", "Address"),
			zap.Int64("address_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	return a, nil
}

func (r *repository) Create(
	ctx context.Context,
	addr *Address,
) error {

	const q = `
		INSERT INTO addresses (
			user_id,
			name, phone,
			address_line1, address_line2,
			city, province, postal_code, country,
			is_default, is_active
		) VALUES (
			$1,
			$2, $3,
			$4, $5,
			$6, $7, $8, $9,
			$10, $11
		)
		RETURNING id, created_at
	`

	err := db.Conn(ctx, r.db).QueryRowContext(
		ctx, q,
		addr.UserID,
		addr.Name, addr.Phone,
		addr.Address1, addr.Address2,
		addr.City, addr.Province, addr.Postal, addr.Country,
		addr.IsDefault, addr.IsActive,
	).Scan(&addr.ID, &addr.CreatedAt)

	if err != nil {
		logger.FromCtx(ctx).Error("insert failed",
			zap.String("repo", "Address"),
			zap.Int64("user_id", addr.UserID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Deactivate soft-deletes; orders keep pointing at the row.
func (r *repository) Deactivate(
	ctx context.Context,
	id int64,
) error {

	const q = `
		UPDATE addresses
		SET is_active = false,
		    is_default = false
		WHERE id = $1
	`

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, q, id)
	return err
}

func (r *repository) ClearDefault(
	ctx context.Context,
	userID int64,
) error {

	const q = `
		UPDATE addresses
		SET is_default = false
		WHERE user_id = $1
		  AND is_default = true
	`

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, q, userID)
	return err
}

func (r *repository) SetDefault(
	ctx context.Context,
	userID, addressID int64,
) (bool, error) {

	const q = `
		UPDATE addresses
		SET is_default = true
		WHERE user_id = $1
		  AND id = $2
		  AND is_active = true
	`

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, q, userID, addressID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *repository) BelongsTo(
	ctx context.Context,
	addressID, userID int64,
) (bool, error) {

	const q = `
		SELECT EXISTS (
			SELECT 1 FROM addresses
			WHERE id = $1 AND user_id = $2 AND is_active = true
		)
	`

	var ok bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, q, addressID, userID).Scan(&ok)
	return ok, err
}
