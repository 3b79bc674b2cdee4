package inventory

import (
	"context"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Ledger is the only writer of products.stock.
type Ledger interface {
	// ReserveAndDecrement runs in the caller's transaction. Callers reserving
	// several products must go in ascending product id order.
	ReserveAndDecrement(ctx context.Context, productID int64, qty int) (*Product, error)
	// Restore puts every item of the order back on the shelf. The order state
	// machine guarantees it runs at most once per order.
	Restore(ctx context.Context, orderID int64) error
	ValidateCartQuantity(ctx context.Context, productID int64, requested int) error
}

type ledger struct {
	repo Repository
}

func NewLedger(repo Repository) Ledger {
	return &ledger{repo: repo}
}

func (l *ledger) ReserveAndDecrement(ctx context.Context, productID int64, qty int) (*Product, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, ok, err := l.repo.DecrementStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	if ok {
		return p, nil
	}

	// tell a missing product apart from a short one
	if _, err := l.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("stock reservation refused",
		zap.String("layer", "service"),
		zap.Int64("product_id", productID),
		zap.Int("requested", qty),
	)
	return nil, ErrInsufficientStock
}

func (l *ledger) Restore(ctx context.Context, orderID int64) error {
	lines, err := l.repo.ListOrderLines(ctx, orderID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if err := l.repo.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	logger.FromCtx(ctx).Info("stock restored",
		zap.String("layer", "service"),
		zap.Int64("order_id", orderID),
		zap.Int("lines", len(lines)),
	)
	return nil
}

func (l *ledger) ValidateCartQuantity(ctx context.Context, productID int64, requested int) error {
	if requested <= 0 {
		return ErrInvalidQuantity
	}

	p, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if requested > p.Stock {
		return ErrInsufficientStock
	}
	return nil
}
