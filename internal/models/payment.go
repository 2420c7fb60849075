package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment is a confirmed payment. The unique (provider, transaction_id) index is
// what makes approval processing idempotent across webhook redeliveries.
type Payment struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount        float64   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status        string    `gorm:"size:20;not null;default:'completed'" json:"status"`
	Provider      string    `gorm:"size:20;not null;uniqueIndex:ux_payments_provider_transaction,priority:1" json:"provider"`
	TransactionID string    `gorm:"size:64;not null;uniqueIndex:ux_payments_provider_transaction,priority:2" json:"transaction_id"`
	PaymentMethod string    `gorm:"size:50" json:"payment_method"`
	ReferenceID   string    `gorm:"size:64;index" json:"reference_id"`
	PaymentDate   time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt     time.Time `json:"created_at"`
}
