package cart

import (
	"context"

	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	SetItem(ctx context.Context, params SetItemParams) (*Cart, error)
	GetCart(ctx context.Context, userID int64) (*Cart, error)

	// Items and SoftDeleteActive run in the caller's transaction when
	// there is one.
	Items(ctx context.Context, userID int64) ([]Item, error)
	SoftDeleteActive(ctx context.Context, userID int64) error
}

type service struct {
	repo   Repository
	ledger inventory.Ledger
}

func NewService(repo Repository, ledger inventory.Ledger) Service {
	return &service{repo: repo, ledger: ledger}
}

func (s *service) SetItem(ctx context.Context, params SetItemParams) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SetItem"),
		zap.Int64("user_id", params.UserID),
		zap.Int64("product_id", params.ProductID),
		zap.Int("quantity", params.Quantity),
	)

	if params.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	cartID, found, err := s.repo.ActiveCartID(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	// 1. Zero removes
	if params.Quantity == 0 {
		if !found {
			return nil, ErrCartItemNotFound
		}
		if err := s.repo.DeleteItem(ctx, cartID, params.ProductID); err != nil {
			return nil, err
		}
		log.Info("cart item removed")
		return s.GetCart(ctx, params.UserID)
	}

	// 2. Quantity must fit current stock
	if err := s.ledger.ValidateCartQuantity(ctx, params.ProductID, params.Quantity); err != nil {
		log.Info("cart quantity refused", zap.Error(err))
		return nil, err
	}

	if !found {
		cartID, err = s.repo.CreateCart(ctx, params.UserID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpsertItem(ctx, cartID, params.ProductID, params.Quantity); err != nil {
		log.Error("failed to upsert cart item", zap.Error(err))
		return nil, err
	}

	log.Info("cart item set")
	return s.GetCart(ctx, params.UserID)
}

func (s *service) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	cartID, _, err := s.repo.ActiveCartID(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return &Cart{ID: cartID, UserID: userID, Items: items}, nil
}

func (s *service) Items(ctx context.Context, userID int64) ([]Item, error) {
	return s.repo.Items(ctx, userID)
}

func (s *service) SoftDeleteActive(ctx context.Context, userID int64) error {
	return s.repo.SoftDeleteActive(ctx, userID)
}
