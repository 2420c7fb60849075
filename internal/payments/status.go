package payments

import "strings"

// Ledger statuses. They mirror models.Transaction* so this package stays free of gorm.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// MercadoPagoStatus maps a Mercado Pago payment status to a ledger status.
func MercadoPagoStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return StatusCompleted
	case "rejected", "cancelled", "refunded", "charged_back":
		return StatusFailed
	default:
		// pending, in_process, authorized, in_mediation
		return StatusPending
	}
}

// PagarmeStatus maps a Pagar.me order or charge status to a ledger status.
func PagarmeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return StatusCompleted
	case "failed", "canceled", "refunded", "chargedback", "payment_failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// NextStatus applies the monotonic rule: a completed transaction never goes back to pending.
// GormRepository.UpdateTransaction enforces the same rule in SQL.
func NextStatus(current, fetched string) string {
	if current == StatusCompleted && fetched == StatusPending {
		return current
	}
	return fetched
}
