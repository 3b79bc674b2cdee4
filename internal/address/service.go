package address

import (
	"context"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// Service manages the caller's delivery addresses.
type Service interface {
	List(ctx context.Context) ([]*Address, error)
	Get(ctx context.Context, addressID int64) (*Address, error)

	Create(ctx context.Context, input CreateAddressInput) (*Address, error)
	Delete(ctx context.Context, addressID int64) error

	SetDefaultAddress(ctx context.Context, addressID int64) error

	// BelongsTo is used by checkout to reject foreign addresses.
	BelongsTo(ctx context.Context, addressID, userID int64) (bool, error)
}

type service struct {
	tx   db.Transactor
	repo Repository
}

func NewService(tx db.Transactor, repo Repository) Service {
	return &service{tx: tx, repo: repo}
}

func (s *service) List(
	ctx context.Context,
) ([]*Address, error) {

	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) Get(
	ctx context.Context,
	addressID int64,
) (*Address, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Get"),
		zap.Int64("address_id", addressID),
	)

	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	addr, err := s.repo.GetByID(ctx, addressID)
	if err != nil {
		return nil, err
	}

	if addr.UserID != userID {
		log.Warn("unauthorized address access", zap.Int64("user_id", userID))
		return nil, ErrAddressNotFound
	}

	return addr, nil
}

func (s *service) Create(
	ctx context.Context,
	input CreateAddressInput,
) (*Address, error) {

	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Create"),
		zap.Int64("user_id", userID),
	)

	addr := &Address{
		UserID:    userID,
		Name:      input.Name,
		Phone:     input.Phone,
		Address1:  input.AddressLine1,
		Address2:  input.AddressLine2,
		City:      input.City,
		Province:  input.Province,
		Postal:    input.PostalCode,
		Country:   input.Country,
		IsActive:  true,
		IsDefault: input.SetAsDefault,
	}
	if addr.Country == "" {
		addr.Country = "Bangladesh"
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if input.SetAsDefault {
			if err := s.repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, addr)
	})
	if err != nil {
		log.Error("failed to create address", zap.Error(err))
		return nil, err
	}

	log.Info("address created", zap.Int64("address_id", addr.ID))
	return addr, nil
}

func (s *service) Delete(
	ctx context.Context,
	addressID int64,
) error {

	if _, err := s.Get(ctx, addressID); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("address deleted", zap.Int64("address_id", addressID))
	return s.repo.Deactivate(ctx, addressID)
}

func (s *service) SetDefaultAddress(
	ctx context.Context,
	addressID int64,
) error {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		updated, err := s.repo.SetDefault(ctx, userID, addressID)
		if err != nil {
			return err
		}
		if !updated {
			return ErrAddressNotFound
		}
		return nil
	})
}

func (s *service) BelongsTo(ctx context.Context, addressID, userID int64) (bool, error) {
	return s.repo.BelongsTo(ctx, addressID, userID)
}
