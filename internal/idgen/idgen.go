// Package idgen produces the opaque public identifiers handed out for
// orders, gateway transactions and delivery assignments.
package idgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength = 8

	// MaxAttempts bounds regeneration after a unique violation.
	MaxAttempts = 5
)

type Generator struct {
	now    func() time.Time
	random io.Reader
}

func New() *Generator {
	return &Generator{now: time.Now, random: rand.Reader}
}

// OrderID returns ORD-YYYYMMDD-XXXXXXXX.
func (g *Generator) OrderID() string {
	return fmt.Sprintf("ORD-%s-%s", g.now().UTC().Format("20060102"), g.suffix())
}

// TransactionID returns TXN-YYYYMMDD-HHMMSS-XXXXXXXX.
func (g *Generator) TransactionID() string {
	return fmt.Sprintf("TXN-%s-%s", g.now().UTC().Format("20060102-150405"), g.suffix())
}

// AssignmentID returns DEL-YYYYMMDD-XXXXXXXX.
func (g *Generator) AssignmentID() string {
	return fmt.Sprintf("DEL-%s-%s", g.now().UTC().Format("20060102"), g.suffix())
}

func (g *Generator) suffix() string {
	base := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, suffixLength)
	for i := range buf {
		n, err := rand.Int(g.random, base)
		if err != nil {
			// no safe fallback for an unforgeable id
			panic(fmt.Sprintf("idgen: entropy source failed: %v", err))
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}

// InsertWithRetry calls insert with fresh ids from next until it stops
// failing on the named unique constraint. Each attempt runs under a savepoint
// so a collision does not poison the caller's transaction.
func InsertWithRetry(ctx context.Context, constraint string, next func() string, insert func(id string) error) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "idgen"),
		zap.String("constraint", constraint),
	)

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		id := next()
		err := db.Savepoint(ctx, "public_id_insert", func() error {
			return insert(id)
		})
		if err == nil {
			return id, nil
		}
		if !apperr.IsUniqueViolation(err, constraint) {
			return "", err
		}

		log.Warn("public id collision, regenerating",
			zap.String("public_id", id),
			zap.Int("attempt", attempt),
		)
	}

	return "", fmt.Errorf("public id still colliding after %d attempts: %w", MaxAttempts, apperr.ErrConflict)
}
