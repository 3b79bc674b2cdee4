// Package secureid maps public identifiers seen by clients and the payment
// gateway onto internal row ids.
package secureid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"

	"github.com/go-playground/validator/v10"
)

var (
	orderPattern       = regexp.MustCompile(`^ORD-[0-9]{8}-[A-Z0-9]{8}$`)
	transactionPattern = regexp.MustCompile(`^TXN-[0-9]{8}-[0-9]{6}-[A-Z0-9]{8}$`)
	assignmentPattern  = regexp.MustCompile(`^DEL-[0-9]{8}-[A-Z0-9]{8}$`)
)

var (
	ErrOrderNotFound      = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("delivery assignment %w", apperr.ErrNotFound)
)

func ValidOrderID(s string) bool       { return orderPattern.MatchString(s) }
func ValidTransactionID(s string) bool { return transactionPattern.MatchString(s) }
func ValidAssignmentID(s string) bool  { return assignmentPattern.MatchString(s) }

// RegisterValidators adds the public id grammars as struct tags
// (order_public_id, transaction_id, assignment_public_id).
func RegisterValidators(v *validator.Validate) error {
	rules := map[string]func(string) bool{
		"order_public_id":      ValidOrderID,
		"transaction_id":       ValidTransactionID,
		"assignment_public_id": ValidAssignmentID,
	}
	for tag, fn := range rules {
		fn := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// AssignmentID resolves DEL-... to delivery_assignments.id. Malformed ids
// are reported as not found so callers learn nothing about the id format.
func (r *Resolver) AssignmentID(ctx context.Context, publicID string) (int64, error) {
	if !ValidAssignmentID(publicID) {
		return 0, ErrAssignmentNotFound
	}
	return r.lookup(ctx, `SELECT id FROM delivery_assignments WHERE public_id = $1`, publicID, ErrAssignmentNotFound)
}

func (r *Resolver) lookup(ctx context.Context, query, publicID string, notFound error) (int64, error) {
	var id int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, query, publicID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
