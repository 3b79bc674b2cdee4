package delivery

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	LockOrder(ctx context.Context, orderID int64) error
	LiveByOrder(ctx context.Context, orderID int64) (*Assignment, error)
	Insert(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id int64) (*Assignment, error)
	LockByID(ctx context.Context, id int64) (*Assignment, error)
	Update(ctx context.Context, a *Assignment) error

	GetRider(ctx context.Context, riderID int64) (*Rider, error)
	GetRiderByUserID(ctx context.Context, userID int64) (*Rider, error)
	IncrementRiderDeliveries(ctx context.Context, riderID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const assignmentColumns = `id, public_id, order_id, rider_id, status, assigned_at, accepted_at, rejected_at,
	rejection_reason, estimated_delivery, actual_delivery, notes, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*Assignment, error) {
	var (
		a      Assignment
		reason sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.PublicID, &a.OrderID, &a.RiderID, &a.Status, &a.AssignedAt,
		&a.AcceptedAt, &a.RejectedAt, &reason, &a.EstimatedDelivery, &a.ActualDelivery,
		&a.Notes, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		a.RejectionReason = &reason.String
	}
	return &a, nil
}

// LockOrder serializes every assignment command on the order row.
func (r *repository) LockOrder(ctx context.Context, orderID int64) error {
	var id int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	return err
}

// LiveByOrder returns the order's assignment that is neither rejected nor
// cancelled, or nil.
func (r *repository) LiveByOrder(ctx context.Context, orderID int64) (*Assignment, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM delivery_assignments
		WHERE order_id = $1 AND status NOT IN ('rejected', 'cancelled')
		FOR UPDATE
	`, orderID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repository) Insert(ctx context.Context, a *Assignment) error {
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO delivery_assignments (public_id, order_id, rider_id, status, estimated_delivery, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, assigned_at, updated_at
	`, a.PublicID, a.OrderID, a.RiderID, a.Status, a.EstimatedDelivery, a.Notes,
	).Scan(&a.ID, &a.AssignedAt, &a.UpdatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert assignment",
			zap.String("layer", "repository"),
			zap.Int64("order_id", a.OrderID),
			zap.Error(err),
		)
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Assignment, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	return a, err
}

func (r *repository) LockByID(ctx context.Context, id int64) (*Assignment, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	return a, err
}

func (r *repository) Update(ctx context.Context, a *Assignment) error {
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE delivery_assignments
		SET status = $1,
		    accepted_at = $2,
		    rejected_at = $3,
		    rejection_reason = $4,
		    estimated_delivery = $5,
		    actual_delivery = $6,
		    notes = $7,
		    updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`, a.Status, a.AcceptedAt, a.RejectedAt, a.RejectionReason, a.EstimatedDelivery,
		a.ActualDelivery, a.Notes, a.ID,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAssignmentNotFound
	}
	return err
}

const riderQuery = `
	SELECT r.id, r.user_id, u.full_name, r.vehicle_type, r.vehicle_number,
	       r.delivery_zones, r.is_active, r.total_deliveries
	FROM riders r
	JOIN users u ON u.id = r.user_id
`

func (r *repository) scanRider(ctx context.Context, where string, arg int64) (*Rider, error) {
	var rd Rider
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, riderQuery+where, arg).Scan(
		&rd.ID, &rd.UserID, &rd.Name, &rd.VehicleType, &rd.VehicleNumber,
		pq.Array(&rd.DeliveryZones), &rd.IsActive, &rd.TotalDeliveries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRiderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *repository) GetRider(ctx context.Context, riderID int64) (*Rider, error) {
	return r.scanRider(ctx, `WHERE r.id = $1`, riderID)
}

func (r *repository) GetRiderByUserID(ctx context.Context, userID int64) (*Rider, error) {
	return r.scanRider(ctx, `WHERE r.user_id = $1`, userID)
}

func (r *repository) IncrementRiderDeliveries(ctx context.Context, riderID int64) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE riders SET total_deliveries = total_deliveries + 1 WHERE id = $1`, riderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRiderNotFound
	}
	return nil
}
