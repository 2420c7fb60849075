package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ log records so failed webhook bookkeeping can be queried later.
type SystemLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Timestamp   time.Time      `gorm:"not null;index" json:"timestamp"`
	Level       string         `gorm:"size:10;not null;index" json:"level"`
	Message     string         `gorm:"type:text" json:"message"`
	Provider    string         `gorm:"size:20;index" json:"provider"`
	RequestID   string         `gorm:"size:64;index" json:"request_id"`
	ReferenceID string         `gorm:"size:64;index" json:"reference_id"`
	ChargeID    string         `gorm:"size:64" json:"charge_id"`
	UserID      *string        `gorm:"size:36" json:"user_id"`
	Error       string         `gorm:"type:text" json:"error"`
	Extra       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"extra"`
	CreatedAt   time.Time      `json:"created_at"`
}
