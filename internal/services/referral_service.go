package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/models"
)

const (
	// referralRate is the share of the base fee one credit is worth. The
	// initial discount for referred users is worth the same.
	referralRate = 0.20
	// maxDiscountUnits caps initial discount plus credits at the full fee.
	maxDiscountUnits = 5
)

// Quote is what a user will pay for the next period.
type Quote struct {
	BaseFee         float64 `json:"baseFee"`
	InitialDiscount float64 `json:"initialDiscount"`
	TotalCredits    int64   `json:"totalCredits"`
	CreditsApplied  int64   `json:"creditsApplied"`
	CreditDiscount  float64 `json:"creditDiscount"`
	AmountToPay     float64 `json:"amountToPay"`
}

type ReferralService struct {
	referrals    ReferralRepository
	settings     SettingsRepository
	defaultPrice float64
}

func NewReferralService(referrals ReferralRepository, settings SettingsRepository, defaultPrice float64) *ReferralService {
	return &ReferralService{referrals: referrals, settings: settings, defaultPrice: defaultPrice}
}

// BaseFee reads subscription_price from app_settings, falling back to the configured default.
func (s *ReferralService) BaseFee(ctx context.Context) float64 {
	setting, err := s.settings.GetSetting(ctx, models.SettingSubscriptionPrice)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "failed to read subscription price", "error", err)
		}
		return s.defaultPrice
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(setting.Value), 64)
	if err != nil || price <= 0 {
		slog.WarnContext(ctx, "invalid subscription price setting", "value", setting.Value)
		return s.defaultPrice
	}
	return price
}

// Quote computes the amount due for userID.
func (s *ReferralService) Quote(ctx context.Context, userID uuid.UUID) (*Quote, error) {
	base := s.BaseFee(ctx)

	pending, err := s.referrals.HasPendingReferral(ctx, userID)
	if err != nil {
		return nil, err
	}
	credited, err := s.referrals.CountCreditedReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := &Quote{BaseFee: base, TotalCredits: credited}
	units := int64(0)
	if pending {
		q.InitialDiscount = roundCents(base * referralRate)
		units = 1
	}
	q.CreditsApplied = min(credited, maxDiscountUnits-units)
	q.CreditDiscount = roundCents(float64(q.CreditsApplied) * base * referralRate)
	q.AmountToPay = math.Max(0, roundCents(base-q.InitialDiscount-q.CreditDiscount))
	return q, nil
}

// ConsumeCredits marks the credits a payment used as spent. It must run before
// ApplyCredit, since ApplyCredit clears the payer's own pending discount.
func (s *ReferralService) ConsumeCredits(ctx context.Context, userID uuid.UUID) (int64, error) {
	pending, err := s.referrals.HasPendingReferral(ctx, userID)
	if err != nil {
		return 0, err
	}
	limit := maxDiscountUnits
	if pending {
		limit--
	}
	return s.referrals.MarkReferralCreditsUsed(ctx, userID, limit)
}

// ApplyCredit credits whoever referred userID, up to two levels.
func (s *ReferralService) ApplyCredit(ctx context.Context, userID uuid.UUID) error {
	return s.referrals.ApplyReferralCredit(ctx, userID)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
