package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
)

// Repository performs conditional stock mutations on product variants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementIfAvailable(ctx context.Context, variantID uuid.UUID, qty int64) (int64, error)
	Increment(ctx context.Context, variantID uuid.UUID, qty int64) (int64, error)
	FetchVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	FetchVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) DecrementIfAvailable(ctx context.Context, variantID uuid.UUID, qty int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ? AND is_active = ?", variantID, qty, true).
		Update("stock", gorm.Expr("stock - ?", qty))
	return result.RowsAffected, result.Error
}

func (r *repository) Increment(ctx context.Context, variantID uuid.UUID, qty int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", gorm.Expr("stock + ?", qty))
	return result.RowsAffected, result.Error
}

func (r *repository) FetchVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FetchVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	if len(variantIDs) == 0 {
		return variants, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", variantIDs).
		Find(&variants).Error
	return variants, err
}
