package models

import (
	"time"

	"github.com/google/uuid"
)

// Referral records a referral code redemption. The unique index on referee_id
// enforces the one-referral-per-user rule at the storage layer.
type Referral struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string    `gorm:"column:code;type:text;not null;index"`
	ReferrerID  uuid.UUID `gorm:"column:referrer_id;type:uuid;not null;index"`
	RefereeID   uuid.UUID `gorm:"column:referee_id;type:uuid;not null;uniqueIndex:idx_referrals_referee"`
	BonusAmount int64     `gorm:"column:bonus_amount;not null"`
	UsedAt      time.Time `gorm:"column:used_at;autoCreateTime"`
}
