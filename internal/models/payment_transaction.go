package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ledger statuses. The raw provider status lives in ProviderStatus.
const (
	TransactionPending   = "PENDING"
	TransactionCompleted = "COMPLETED"
	TransactionFailed    = "FAILED"
)

// PaymentTransaction is a ledger row keyed by the reference id sent to the provider
// as external_reference. Rows are never deleted.
type PaymentTransaction struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReferenceID     string         `gorm:"size:64;not null;uniqueIndex" json:"reference_id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount          float64        `gorm:"type:numeric(12,2);not null" json:"amount"`
	Description     string         `gorm:"size:255" json:"description"`
	Status          string         `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	ProviderStatus  string         `gorm:"size:50" json:"provider_status"`
	Provider        string         `gorm:"size:20;not null;default:'mercadopago'" json:"provider"`
	ChargeID        *string        `gorm:"size:64;index" json:"charge_id"`
	PaymentMethod   string         `gorm:"size:50" json:"payment_method"`
	ProviderPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
