package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// WalletTransaction is one immutable ledger entry. Rows are only ever
// appended; the signed sum per user and currency must equal the balance
// carried on the user row.
type WalletTransaction struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Amount    decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency  enums.WalletCurrency    `gorm:"column:currency;type:text;not null"`
	Source    enums.TransactionSource `gorm:"column:source;type:text;not null"`
	Metadata  json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}
