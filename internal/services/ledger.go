package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/payments"
)

// LedgerEntry is what a payment generation records before calling the provider.
type LedgerEntry struct {
	ReferenceID   string
	UserID        uuid.UUID
	Amount        float64
	Description   string
	Provider      string
	PaymentMethod string
}

// Ledger is the payment_transactions table seen through the rules of the billing flow.
type Ledger struct {
	repo LedgerRepository
}

func NewLedger(repo LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Create records a PENDING row. A failed insert is logged and otherwise ignored:
// the customer still gets their payment instructions, and the webhook will find
// no row and be acknowledged as orphaned.
func (l *Ledger) Create(ctx context.Context, e LedgerEntry) {
	tx := &models.PaymentTransaction{
		ID:            uuid.New(),
		ReferenceID:   e.ReferenceID,
		UserID:        e.UserID,
		Amount:        e.Amount,
		Description:   e.Description,
		Status:        models.TransactionPending,
		Provider:      e.Provider,
		PaymentMethod: e.PaymentMethod,
	}
	if err := l.repo.CreateTransaction(ctx, tx); err != nil {
		reportError(ctx, "failed to record pending transaction", err,
			"reference_id", e.ReferenceID, "user_id", e.UserID.String(), "provider", e.Provider)
		return
	}
	slog.InfoContext(ctx, "pending transaction recorded",
		"reference_id", e.ReferenceID, "user_id", e.UserID.String(), "provider", e.Provider)
}

func (l *Ledger) FindByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	return l.repo.FindTransactionByReference(ctx, ref)
}

// UpdateStatus mirrors a freshly fetched charge onto the row.
func (l *Ledger) UpdateStatus(ctx context.Context, ref string, ch *payments.Charge) error {
	return l.repo.UpdateTransaction(ctx, ref, TransactionUpdate{
		Status:         ch.Status,
		ProviderStatus: ch.ProviderStatus,
		ChargeID:       ch.ID,
		PaymentMethod:  ch.MethodID,
		Payload:        ch.Raw,
	})
}

// AttachCharge stores the provider charge id right after creation, so the row can
// be matched by charge id before any webhook arrives. Failures are logged only.
func (l *Ledger) AttachCharge(ctx context.Context, ref string, ch *payments.Charge) {
	err := l.repo.UpdateTransaction(ctx, ref, TransactionUpdate{
		Status:         ch.Status,
		ProviderStatus: ch.ProviderStatus,
		ChargeID:       ch.ID,
		PaymentMethod:  ch.MethodID,
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		reportError(ctx, "failed to attach charge to transaction", err, "reference_id", ref, "charge_id", ch.ID)
	}
}

// MarkFailed flags the row when the provider refused to create the payment.
func (l *Ledger) MarkFailed(ctx context.Context, ref, reason string) {
	err := l.repo.UpdateTransaction(ctx, ref, TransactionUpdate{
		Status:         models.TransactionFailed,
		ProviderStatus: reason,
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		reportError(ctx, "failed to mark transaction as failed", err, "reference_id", ref)
	}
}
