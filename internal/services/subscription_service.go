package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/notify"
)

type SubscriptionService struct {
	repo        SubscriptionRepository
	notifier    notify.FirstSubscriptionNotifier
	defaultPlan string
	now         func() time.Time
}

func NewSubscriptionService(repo SubscriptionRepository, notifier notify.FirstSubscriptionNotifier, defaultPlan string) *SubscriptionService {
	return &SubscriptionService{
		repo:        repo,
		notifier:    notifier,
		defaultPlan: defaultPlan,
		now:         time.Now,
	}
}

// Current returns the subscription with the latest end date, or ErrNotFound.
func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.repo.LatestSubscription(ctx, userID)
}

// Extend adds one month of access for an approved payment. A still-valid
// subscription is extended from its end date; otherwise a new one starts now.
// plan comes from the payment metadata and may be empty.
func (s *SubscriptionService) Extend(ctx context.Context, userID uuid.UUID, plan, reference string) (*models.Subscription, error) {
	now := s.now()

	current, err := s.repo.LatestSubscription(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	if current != nil && current.Status == models.SubscriptionActive && current.EndDate.After(now) {
		current.EndDate = current.EndDate.AddDate(0, 1, 0)
		current.PaymentReference = reference
		if plan != "" {
			current.Plan = plan
		}
		if err := s.repo.SaveSubscription(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to extend subscription: %w", err)
		}
		slog.InfoContext(ctx, "subscription extended",
			"user_id", userID.String(), "reference_id", reference, "end_date", current.EndDate)
		return current, nil
	}

	if plan == "" {
		plan = s.defaultPlan
	}
	base := now
	if current != nil && current.EndDate.After(base) {
		base = current.EndDate
	}
	sub := &models.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		Plan:             plan,
		Status:           models.SubscriptionActive,
		StartDate:        now,
		EndDate:          base.AddDate(0, 1, 0),
		PaymentReference: reference,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	slog.InfoContext(ctx, "subscription created",
		"user_id", userID.String(), "reference_id", reference, "end_date", sub.EndDate)

	if current == nil {
		s.notifyFirst(ctx, sub)
	}
	return sub, nil
}

func (s *SubscriptionService) notifyFirst(ctx context.Context, sub *models.Subscription) {
	n, err := s.repo.CountSubscriptions(ctx, sub.UserID)
	if err != nil {
		reportError(ctx, "failed to count subscriptions", err, "user_id", sub.UserID.String())
		return
	}
	if n != 1 {
		return
	}
	if err := s.notifier.FirstSubscription(ctx, sub); err != nil {
		reportError(ctx, "failed to send first subscription notice", err, "user_id", sub.UserID.String())
	}
}
