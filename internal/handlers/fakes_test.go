package handlers

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/services"
)

type fakeGenerator struct {
	calls int
	resp  *dto.GeneratePaymentResponse
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, _ *dto.GeneratePaymentRequest) (*dto.GeneratePaymentResponse, error) {
	f.calls++
	return f.resp, f.err
}

type fakeFinder struct {
	rows map[string]*models.PaymentTransaction
}

func (f *fakeFinder) FindByReference(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	if tx, ok := f.rows[ref]; ok {
		return tx, nil
	}
	return nil, services.ErrNotFound
}

type fakeQuoter struct {
	quote *services.Quote
	err   error
}

func (f *fakeQuoter) Quote(context.Context, uuid.UUID) (*services.Quote, error) {
	return f.quote, f.err
}

type fakeLister struct {
	rows      []models.Payment
	lastLimit int
}

func (f *fakeLister) ListPaymentsByUser(_ context.Context, _ uuid.UUID, limit int) ([]models.Payment, error) {
	f.lastLimit = limit
	return f.rows, nil
}

type fakeSubscriptions struct {
	sub *models.Subscription
}

func (f *fakeSubscriptions) Current(context.Context, uuid.UUID) (*models.Subscription, error) {
	if f.sub == nil {
		return nil, services.ErrNotFound
	}
	return f.sub, nil
}

type fakeReconciler struct {
	mu      sync.Mutex
	ids     []string
	outcome services.Outcome
}

func (f *fakeReconciler) Reconcile(_ context.Context, id string) services.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return f.outcome
}

func (f *fakeReconciler) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

type fakeSettings struct {
	rows map[string]models.AppSetting
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{rows: map[string]models.AppSetting{}}
}

func (f *fakeSettings) GetSetting(_ context.Context, key string) (*models.AppSetting, error) {
	s, ok := f.rows[key]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSettings) ListSettings(context.Context) ([]models.AppSetting, error) {
	out := make([]models.AppSetting, 0, len(f.rows))
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSettings) UpsertSetting(_ context.Context, s *models.AppSetting) error {
	f.rows[s.Key] = *s
	return nil
}

func (f *fakeSettings) DeleteSetting(_ context.Context, key string) (bool, error) {
	_, ok := f.rows[key]
	delete(f.rows, key)
	return ok, nil
}

// asUser stands in for the JWT middleware.
func asUser(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": id.String()}})
		return c.Next()
	}
}
