package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// Subscription is one validity window. A user may have many rows; the current one
// is the row with the latest EndDate.
type Subscription struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Plan             string    `gorm:"size:100;not null" json:"plan"`
	Status           string    `gorm:"not null;default:'active';size:50" json:"status"`
	StartDate        time.Time `gorm:"not null" json:"start_date"`
	EndDate          time.Time `gorm:"not null;index" json:"end_date"`
	PaymentReference string    `gorm:"size:64" json:"payment_reference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
