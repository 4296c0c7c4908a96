package referral

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
)

// Repository manages persistence for referral redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, referral *models.Referral) error
	FindByReferee(ctx context.Context, refereeID uuid.UUID) (*models.Referral, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *repository) FindByReferee(ctx context.Context, refereeID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).First(&referral, "referee_id = ?", refereeID).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("used_at DESC").
		Find(&referrals).Error
	return referrals, err
}
