package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/events"
	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/payments"
)

// Outcome is where a verified notification ended up. Every outcome is
// acknowledged to the provider; only the message differs.
type Outcome int

const (
	// OutcomeFetchFailed: the provider could not be asked for the payment.
	OutcomeFetchFailed Outcome = iota
	// OutcomeOrphaned: no ledger row carries the payment's external reference.
	OutcomeOrphaned
	// OutcomeMirrored: the ledger row now reflects a non-approved status.
	OutcomeMirrored
	// OutcomeApplyFailed: approved, but the completed payment could not be recorded.
	OutcomeApplyFailed
	// OutcomeDuplicate: approved and already applied by an earlier delivery.
	OutcomeDuplicate
	// OutcomeApplied: approved and applied for the first time.
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeOrphaned:
		return "orphaned"
	case OutcomeMirrored:
		return "mirrored"
	case OutcomeApplyFailed:
		return "apply_failed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// Success is false only when the provider lookup failed.
func (o Outcome) Success() bool {
	return o != OutcomeFetchFailed
}

func (o Outcome) Message() string {
	switch o {
	case OutcomeFetchFailed:
		return "Failed to fetch payment details"
	case OutcomeOrphaned:
		return "Transaction not found"
	case OutcomeApplyFailed:
		return "Payment approved, bookkeeping failed"
	case OutcomeDuplicate:
		return "Payment already processed"
	default:
		return "Webhook processed"
	}
}

const defaultSideEffectTimeout = 10 * time.Second

// ReconciliationService applies verified provider notifications. The notification
// body is never trusted: every run re-fetches the payment from the provider.
type ReconciliationService struct {
	gateway       payments.Gateway
	ledger        *Ledger
	payments      PaymentRepository
	referrals     *ReferralService
	subscriptions *SubscriptionService
	publisher     events.Publisher
	now           func() time.Time

	sideEffectTimeout time.Duration
}

func NewReconciliationService(
	gateway payments.Gateway,
	ledger *Ledger,
	paymentRepo PaymentRepository,
	referrals *ReferralService,
	subscriptions *SubscriptionService,
	publisher events.Publisher,
) *ReconciliationService {
	return &ReconciliationService{
		gateway:       gateway,
		ledger:        ledger,
		payments:      paymentRepo,
		referrals:     referrals,
		subscriptions: subscriptions,
		publisher:     publisher,
		now:           time.Now,

		sideEffectTimeout: defaultSideEffectTimeout,
	}
}

// SetSideEffectTimeout bounds the work done after a first approval, so the
// provider's ACK never waits on a slow broker or mail server.
func (s *ReconciliationService) SetSideEffectTimeout(d time.Duration) {
	if d > 0 {
		s.sideEffectTimeout = d
	}
}

func (s *ReconciliationService) Provider() string {
	return s.gateway.Name()
}

// Reconcile runs FETCHED -> MATCHED -> UPDATED -> APPLIED for paymentID.
// Errors are logged and reported, never returned.
func (s *ReconciliationService) Reconcile(ctx context.Context, paymentID string) Outcome {
	provider := s.gateway.Name()

	charge, err := s.fetchAuthoritative(ctx, paymentID)
	if err != nil {
		reportError(ctx, "failed to fetch payment from provider", err, "provider", provider, "charge_id", paymentID)
		return OutcomeFetchFailed
	}

	tx, err := s.ledger.FindByReference(ctx, charge.ExternalReference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "no transaction for payment",
				"provider", provider, "charge_id", charge.ID, "reference_id", charge.ExternalReference)
		} else {
			reportError(ctx, "failed to load transaction", err,
				"provider", provider, "charge_id", charge.ID, "reference_id", charge.ExternalReference)
		}
		return OutcomeOrphaned
	}

	if err := s.ledger.UpdateStatus(ctx, tx.ReferenceID, charge); err != nil {
		reportError(ctx, "failed to update transaction status", err,
			"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID)
	}

	if !charge.Approved() {
		slog.InfoContext(ctx, "payment status mirrored",
			"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID,
			"provider_status", charge.ProviderStatus)
		return OutcomeMirrored
	}

	if math.Abs(charge.Amount-tx.Amount) >= 0.01 {
		slog.WarnContext(ctx, "charged amount differs from ledger amount",
			"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID,
			"ledger_amount", tx.Amount, "charged_amount", charge.Amount)
	}

	created, err := s.payments.CreatePaymentIfAbsent(ctx, &models.Payment{
		ID:            uuid.New(),
		UserID:        tx.UserID,
		Amount:        charge.Amount,
		Status:        "completed",
		Provider:      provider,
		TransactionID: charge.ID,
		PaymentMethod: charge.MethodID,
		ReferenceID:   tx.ReferenceID,
		PaymentDate:   s.now(),
	})
	if err != nil {
		reportError(ctx, "failed to record completed payment", err,
			"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID, "user_id", tx.UserID.String())
		return OutcomeApplyFailed
	}
	if !created {
		slog.InfoContext(ctx, "payment already applied",
			"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID)
		return OutcomeDuplicate
	}

	sctx, cancel := context.WithTimeout(ctx, s.sideEffectTimeout)
	defer cancel()
	s.applySideEffects(sctx, tx, charge)
	return OutcomeApplied
}

// fetchAuthoritative asks the provider for the current payment state.
func (s *ReconciliationService) fetchAuthoritative(ctx context.Context, paymentID string) (*payments.Charge, error) {
	return s.gateway.GetPayment(ctx, paymentID)
}

// applySideEffects runs once per approved payment. Each step is independent:
// a failure is reported and the remaining steps still run.
func (s *ReconciliationService) applySideEffects(ctx context.Context, tx *models.PaymentTransaction, charge *payments.Charge) {
	provider := s.gateway.Name()
	userID := tx.UserID

	if used, err := s.referrals.ConsumeCredits(ctx, userID); err != nil {
		reportError(ctx, "failed to consume referral credits", err, "user_id", userID.String(), "reference_id", tx.ReferenceID)
	} else if used > 0 {
		slog.InfoContext(ctx, "referral credits consumed", "user_id", userID.String(), "count", used)
	}

	if err := s.referrals.ApplyCredit(ctx, userID); err != nil {
		reportError(ctx, "failed to apply referral credit", err, "user_id", userID.String(), "reference_id", tx.ReferenceID)
	}

	evt := events.PaymentApproved{
		UserID:        userID.String(),
		ReferenceID:   tx.ReferenceID,
		TransactionID: charge.ID,
		Provider:      provider,
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		PaymentMethod: charge.MethodID,
		Plan:          charge.Plan,
		ApprovedAt:    s.now(),
	}

	sub, err := s.subscriptions.Extend(ctx, userID, charge.Plan, tx.ReferenceID)
	if err != nil {
		reportError(ctx, "failed to extend subscription", err, "user_id", userID.String(), "reference_id", tx.ReferenceID)
	} else {
		evt.Plan = sub.Plan
		evt.SubscriptionEnd = sub.EndDate
	}

	if err := s.publisher.PublishPaymentApproved(ctx, evt); err != nil {
		reportError(ctx, "failed to publish payment event", err, "reference_id", tx.ReferenceID, "charge_id", charge.ID)
	}

	slog.InfoContext(ctx, "payment applied",
		"provider", provider, "charge_id", charge.ID, "reference_id", tx.ReferenceID, "user_id", userID.String())
}
