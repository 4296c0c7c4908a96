package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// User represents the canonical identity entity and carries the authoritative
// wallet balances. Balance columns are mutated only through the conditional
// statements in internal/balance; nothing else writes them.
type User struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string          `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	Name         string          `gorm:"column:name;not null"`
	Phone        *string         `gorm:"column:phone"`
	Role         enums.UserRole  `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	MoneyBalance decimal.Decimal `gorm:"column:money_balance;type:numeric(14,2);not null;default:0"`
	CoinBalance  int64           `gorm:"column:coin_balance;not null;default:0"`
	ReferralCode string          `gorm:"column:referral_code;type:text;not null;uniqueIndex"`
	ReferredBy   *uuid.UUID      `gorm:"column:referred_by;type:uuid"`
	LastLoginAt  *time.Time      `gorm:"column:last_login_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
