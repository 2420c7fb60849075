package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/recebimentosmart/billing-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

// TransactionUpdate holds the fields a provider fetch may change on a ledger row.
// Empty fields are left untouched.
type TransactionUpdate struct {
	Status         string
	ProviderStatus string
	ChargeID       string
	PaymentMethod  string
	Payload        []byte
}

type LedgerRepository interface {
	CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	FindTransactionByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	// UpdateTransaction must never move a COMPLETED row back to PENDING.
	UpdateTransaction(ctx context.Context, ref string, u TransactionUpdate) error
}

type PaymentRepository interface {
	// CreatePaymentIfAbsent inserts p unless (provider, transaction_id) already exists.
	// It reports whether a row was written.
	CreatePaymentIfAbsent(ctx context.Context, p *models.Payment) (bool, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error)
}

type SubscriptionRepository interface {
	LatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	CountSubscriptions(ctx context.Context, userID uuid.UUID) (int64, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
}

type ReferralRepository interface {
	ApplyReferralCredit(ctx context.Context, referredUserID uuid.UUID) error
	HasPendingReferral(ctx context.Context, referredUserID uuid.UUID) (bool, error)
	CountCreditedReferrals(ctx context.Context, referrerUserID uuid.UUID) (int64, error)
	MarkReferralCreditsUsed(ctx context.Context, referrerUserID uuid.UUID, limit int) (int64, error)
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (*models.AppSetting, error)
	ListSettings(ctx context.Context) ([]models.AppSetting, error)
	UpsertSetting(ctx context.Context, s *models.AppSetting) error
	DeleteSetting(ctx context.Context, key string) (bool, error)
}

// GormRepository implements every repository interface on PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *GormRepository) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *GormRepository) FindTransactionByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("reference_id = ?", ref).First(&tx).Error; err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (r *GormRepository) UpdateTransaction(ctx context.Context, ref string, u TransactionUpdate) error {
	updates := map[string]interface{}{
		"provider_status": u.ProviderStatus,
		"updated_at":      time.Now(),
	}
	switch u.Status {
	case "":
	case models.TransactionPending:
		// payments.NextStatus, evaluated in the UPDATE itself so a concurrent
		// approval is never overwritten.
		updates["status"] = gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
			models.TransactionCompleted, models.TransactionPending)
	default:
		updates["status"] = u.Status
	}
	if u.ChargeID != "" {
		updates["charge_id"] = u.ChargeID
	}
	if u.PaymentMethod != "" {
		updates["payment_method"] = u.PaymentMethod
	}
	if len(u.Payload) > 0 {
		updates["provider_payload"] = datatypes.JSON(u.Payload)
	}

	res := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("reference_id = ?", ref).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) CreatePaymentIfAbsent(ctx context.Context, p *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("payment_date DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *GormRepository) LatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (r *GormRepository) CountSubscriptions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *GormRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *GormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// ApplyReferralCredit runs the stored procedure installed by the migrations.
func (r *GormRepository) ApplyReferralCredit(ctx context.Context, referredUserID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec("SELECT apply_referral_credit_multilevel(?)", referredUserID).Error
}

func (r *GormRepository) HasPendingReferral(ctx context.Context, referredUserID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralCredit{}).
		Where("referred_user_id = ? AND level = 1 AND status = ?", referredUserID, models.ReferralPending).
		Count(&n).Error
	return n > 0, err
}

func (r *GormRepository) CountCreditedReferrals(ctx context.Context, referrerUserID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralCredit{}).
		Where("referrer_user_id = ? AND status = ?", referrerUserID, models.ReferralCredited).
		Count(&n).Error
	return n, err
}

func (r *GormRepository) MarkReferralCreditsUsed(ctx context.Context, referrerUserID uuid.UUID, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE referral_credits SET status = ?, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM referral_credits
			WHERE referrer_user_id = ? AND status = ?
			ORDER BY created_at
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)`, models.ReferralUsed, referrerUserID, models.ReferralCredited, limit)
	return res.RowsAffected, res.Error
}

func (r *GormRepository) GetSetting(ctx context.Context, key string) (*models.AppSetting, error) {
	var s models.AppSetting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *GormRepository) ListSettings(ctx context.Context) ([]models.AppSetting, error) {
	var out []models.AppSetting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&out).Error
	return out, err
}

func (r *GormRepository) UpsertSetting(ctx context.Context, s *models.AppSetting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(s).Error
}

func (r *GormRepository) DeleteSetting(ctx context.Context, key string) (bool, error) {
	res := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.AppSetting{})
	return res.RowsAffected > 0, res.Error
}
