package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	InsertPayment(ctx context.Context, p *Payment) error
	SetSession(ctx context.Context, tranID, sessionKey, gatewayURL string) error
	UpdateStatus(ctx context.Context, tranID string, status Status, valID string) error
	GetByTranID(ctx context.Context, tranID string) (*Payment, error)

	SaveCallback(ctx context.Context, tranID string, kind CallbackKind, payload json.RawMessage) (callbackID int64, processed bool, err error)
	MarkCallbackProcessed(ctx context.Context, callbackID int64, note string) error
	MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error

	PaymentMethodBelongsTo(ctx context.Context, methodID, userID int64) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertPayment(ctx context.Context, p *Payment) error {
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO payments (order_id, tran_id, amount, currency, status, provider)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`,
		p.OrderID, p.TranID, p.Amount, p.Currency, p.Status, Provider,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil && !apperr.IsUniqueViolation(err, tranIDConstraint) {
		logger.FromCtx(ctx).Error("failed to insert payment",
			zap.String("layer", "repository"),
			zap.Int64("order_id", p.OrderID),
			zap.Error(err),
		)
	}
	return err
}

func (r *repository) SetSession(ctx context.Context, tranID, sessionKey, gatewayURL string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET session_key = $1, gateway_url = $2, status = $3, updated_at = NOW()
		WHERE tran_id = $4
	`, sessionKey, gatewayURL, StatusSession, tranID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) UpdateStatus(ctx context.Context, tranID string, status Status, valID string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET status = $1, val_id = COALESCE(NULLIF($2, ''), val_id), updated_at = NOW()
		WHERE tran_id = $3
	`, status, valID, tranID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) GetByTranID(ctx context.Context, tranID string) (*Payment, error) {
	var (
		p          Payment
		sessionKey sql.NullString
		gatewayURL sql.NullString
		valID      sql.NullString
	)
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, order_id, tran_id, amount, currency, status, session_key, gateway_url, val_id, created_at, updated_at
		FROM payments
		WHERE tran_id = $1
	`, tranID).Scan(
		&p.ID, &p.OrderID, &p.TranID, &p.Amount, &p.Currency, &p.Status,
		&sessionKey, &gatewayURL, &valID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if sessionKey.Valid {
		p.SessionKey = &sessionKey.String
	}
	if gatewayURL.Valid {
		p.GatewayURL = &gatewayURL.String
	}
	if valID.Valid {
		p.ValID = &valID.String
	}
	return &p, nil
}

// SaveCallback stores a gateway post once per (provider, tran_id, kind).
// A replay keeps the first payload and reports whether that row was
// already processed; an unprocessed row is handed back for another attempt.
func (r *repository) SaveCallback(
	ctx context.Context,
	tranID string,
	kind CallbackKind,
	payload json.RawMessage,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_callbacks (
		provider,
		tran_id,
		kind,
		payload
	)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (provider, tran_id, kind)
	DO UPDATE SET received_at = NOW()
	RETURNING id, processed_at IS NOT NULL;
	`

	var (
		id        int64
		processed bool
	)
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, q, Provider, tranID, kind, []byte(payload)).Scan(&id, &processed)
	if err != nil {
		return 0, false, err
	}
	return id, processed, nil
}

// MarkCallbackProcessed closes a callback whose order command went through.
// note records why the payment was rejected, if it was.
func (r *repository) MarkCallbackProcessed(ctx context.Context, callbackID int64, note string) error {
	const q = `
	UPDATE payment_callbacks
	SET processed_at = NOW(),
		process_error = NULLIF($2, '')
	WHERE id = $1;
	`

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, q, callbackID, note)
	return err
}

func (r *repository) MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error {
	const q = `
	UPDATE payment_callbacks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, q, callbackID, reason)
	return err
}

func (r *repository) PaymentMethodBelongsTo(ctx context.Context, methodID, userID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_methods WHERE id = $1 AND user_id = $2
		)
	`, methodID, userID).Scan(&exists)
	return exists, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
