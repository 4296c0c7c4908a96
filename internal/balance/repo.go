package balance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// Repository performs the only writes allowed against the balance columns on
// users. Both mutations are single conditional UPDATE statements so the
// database serializes concurrent wallets without row locks held in Go.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) (int64, error)
	DecrementIfSufficient(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) (int64, error)
	Fetch(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func balanceColumn(currency enums.WalletCurrency) (string, error) {
	switch currency {
	case enums.WalletCurrencyMoney:
		return "money_balance", nil
	case enums.WalletCurrencyCoins:
		return "coin_balance", nil
	default:
		return "", fmt.Errorf("invalid wallet currency %q", currency)
	}
}

func (r *repository) Increment(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) (int64, error) {
	column, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update(column, gorm.Expr(column+" + ?", amount))
	return result.RowsAffected, result.Error
}

func (r *repository) DecrementIfSufficient(ctx context.Context, userID uuid.UUID, currency enums.WalletCurrency, amount decimal.Decimal) (int64, error) {
	column, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND "+column+" >= ?", userID, amount).
		Update(column, gorm.Expr(column+" - ?", amount))
	return result.RowsAffected, result.Error
}

func (r *repository) Fetch(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
