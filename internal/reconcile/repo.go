package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance reader over the users table.
func NewRepository(db *gorm.DB) BalanceReader {
	return &repository{db: db}
}

// ListWallets pages wallets in stable id order using a keyset cursor.
func (r *repository) ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]WalletSnapshot, error) {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "money_balance", "coin_balance").
		Order("id ASC").
		Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	wallets := make([]WalletSnapshot, 0, len(users))
	for _, user := range users {
		wallets = append(wallets, WalletSnapshot{
			UserID:       user.ID,
			MoneyBalance: user.MoneyBalance,
			CoinBalance:  user.CoinBalance,
		})
	}
	return wallets, nil
}
