package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
)

// Service exposes stock reservation over product variants. Reserve is a
// single conditional UPDATE so two concurrent buyers can never both take the
// last unit.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Reserve(ctx context.Context, variantID uuid.UUID, qty int64) error
	Release(ctx context.Context, variantID uuid.UUID, qty int64) error
	Variant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	Variants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error)
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Reserve(ctx context.Context, variantID uuid.UUID, qty int64) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := s.repo.DecrementIfAvailable(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
	}
	if affected > 0 {
		return nil
	}

	variant, err := s.repo.FetchVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking variant")
	}
	if !variant.IsActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product variant is inactive")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
}

func (s *service) Release(ctx context.Context, variantID uuid.UUID, qty int64) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := s.repo.Increment(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing stock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	return nil
}

func (s *service) Variant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	variant, err := s.repo.FetchVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching variant")
	}
	return variant, nil
}

func (s *service) Variants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error) {
	variants, err := s.repo.FetchVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching variants")
	}
	return variants, nil
}
