package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReferralPending  = "pending"
	ReferralCredited = "credited"
	ReferralUsed     = "used"
)

// ReferralCredit is earned by ReferrerUserID when ReferredUserID pays for the first time.
// Crediting happens in the apply_referral_credit_multilevel procedure.
type ReferralCredit struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReferrerUserID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_referral_credits_pair,priority:1" json:"referrer_user_id"`
	ReferredUserID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_referral_credits_pair,priority:2" json:"referred_user_id"`
	Level          int       `gorm:"not null;default:1;uniqueIndex:ux_referral_credits_pair,priority:3" json:"level"`
	Status         string    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
