package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/events"
	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/payments"
)

// memRepo is an in-memory stand-in for GormRepository. It enforces the same
// unique keys and the completed-never-pending rule.
type memRepo struct {
	mu        sync.Mutex
	txs       map[string]*models.PaymentTransaction
	payments  map[string]models.Payment
	subs      []*models.Subscription
	referrals []*models.ReferralCredit
	settings  map[string]models.AppSetting

	createTxErr      error
	updateTxErr      error
	createPaymentErr error
	applyCreditErr   error
	applyCalls       []uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{
		txs:      make(map[string]*models.PaymentTransaction),
		payments: make(map[string]models.Payment),
		settings: make(map[string]models.AppSetting),
	}
}

func (r *memRepo) CreateTransaction(_ context.Context, tx *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createTxErr != nil {
		return r.createTxErr
	}
	if _, ok := r.txs[tx.ReferenceID]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	cp := *tx
	r.txs[tx.ReferenceID] = &cp
	return nil
}

func (r *memRepo) FindTransactionByReference(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *memRepo) UpdateTransaction(_ context.Context, ref string, u TransactionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateTxErr != nil {
		return r.updateTxErr
	}
	tx, ok := r.txs[ref]
	if !ok {
		return ErrNotFound
	}
	tx.ProviderStatus = u.ProviderStatus
	if u.Status != "" {
		tx.Status = payments.NextStatus(tx.Status, u.Status)
	}
	if u.ChargeID != "" {
		id := u.ChargeID
		tx.ChargeID = &id
	}
	if u.PaymentMethod != "" {
		tx.PaymentMethod = u.PaymentMethod
	}
	if len(u.Payload) > 0 {
		tx.ProviderPayload = u.Payload
	}
	return nil
}

func (r *memRepo) transaction(ref string) *models.PaymentTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := r.txs[ref]
	if tx == nil {
		return nil
	}
	cp := *tx
	return &cp
}

func (r *memRepo) CreatePaymentIfAbsent(_ context.Context, p *models.Payment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createPaymentErr != nil {
		return false, r.createPaymentErr
	}
	key := p.Provider + "|" + p.TransactionID
	if _, ok := r.payments[key]; ok {
		return false, nil
	}
	r.payments[key] = *p
	return true, nil
}

func (r *memRepo) ListPaymentsByUser(_ context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

func (r *memRepo) LatestSubscription(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Subscription
	for _, s := range r.subs {
		if s.UserID == userID && (latest == nil || s.EndDate.After(latest.EndDate)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memRepo) CountSubscriptions(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.subs {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs = append(r.subs, &cp)
	return nil
}

func (r *memRepo) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.ID == sub.ID {
			cp := *sub
			r.subs[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) addReferral(referrer, referred uuid.UUID, level int, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referrals = append(r.referrals, &models.ReferralCredit{
		ID:             uuid.New(),
		ReferrerUserID: referrer,
		ReferredUserID: referred,
		Level:          level,
		Status:         status,
	})
}

func (r *memRepo) referralStatuses(referrer uuid.UUID) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, rc := range r.referrals {
		if rc.ReferrerUserID == referrer {
			out[rc.Status]++
		}
	}
	return out
}

// ApplyReferralCredit mimics the level-1 part of apply_referral_credit_multilevel.
func (r *memRepo) ApplyReferralCredit(_ context.Context, referredUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls = append(r.applyCalls, referredUserID)
	if r.applyCreditErr != nil {
		return r.applyCreditErr
	}
	for _, rc := range r.referrals {
		if rc.ReferredUserID == referredUserID && rc.Status == models.ReferralPending {
			rc.Status = models.ReferralCredited
		}
	}
	return nil
}

func (r *memRepo) HasPendingReferral(_ context.Context, referredUserID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.referrals {
		if rc.ReferredUserID == referredUserID && rc.Level == 1 && rc.Status == models.ReferralPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CountCreditedReferrals(_ context.Context, referrerUserID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rc := range r.referrals {
		if rc.ReferrerUserID == referrerUserID && rc.Status == models.ReferralCredited {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) MarkReferralCreditsUsed(_ context.Context, referrerUserID uuid.UUID, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rc := range r.referrals {
		if int(n) >= limit {
			break
		}
		if rc.ReferrerUserID == referrerUserID && rc.Status == models.ReferralCredited {
			rc.Status = models.ReferralUsed
			n++
		}
	}
	return n, nil
}

func (r *memRepo) GetSetting(_ context.Context, key string) (*models.AppSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memRepo) ListSettings(_ context.Context) ([]models.AppSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AppSetting, 0, len(r.settings))
	for _, s := range r.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memRepo) UpsertSetting(_ context.Context, s *models.AppSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.Key] = *s
	return nil
}

func (r *memRepo) DeleteSetting(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settings[key]; !ok {
		return false, nil
	}
	delete(r.settings, key)
	return true, nil
}

// fakeGateway serves charges from memory.
type fakeGateway struct {
	mu        sync.Mutex
	name      string
	pixOnly   bool
	charges   map[string]*payments.Charge
	created   []payments.ChargeRequest
	createErr error
	getErr    error
	getCalls  int
	nextID    int
}

func newFakeGateway(name string) *fakeGateway {
	return &fakeGateway{name: name, charges: make(map[string]*payments.Charge)}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Supports(m payments.Method) bool {
	if !g.pixOnly {
		return true
	}
	_, ok := m.(payments.Pix)
	return ok
}

func (g *fakeGateway) CreatePayment(_ context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	ch := &payments.Charge{
		ID:                "pay_" + strconv.Itoa(g.nextID),
		ProviderStatus:    "pending",
		Status:            payments.StatusPending,
		ExternalReference: req.Reference,
		Amount:            req.Amount,
		Currency:          "BRL",
		MethodID:          req.Method.Name(),
		Plan:              req.Plan,
		PixQRCode:         "000201",
		PixQRCodeBase64:   "iVBOR",
		PixTicketURL:      "https://provider/ticket",
	}
	g.charges[ch.ID] = ch
	return ch, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	ch, ok := g.charges[id]
	if !ok {
		return nil, &payments.ProviderError{Provider: g.name, StatusCode: 404, Body: []byte(`{"message":"not found"}`)}
	}
	cp := *ch
	return &cp, nil
}

// setStatus changes what the provider reports for id.
func (g *fakeGateway) setStatus(id, providerStatus, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := g.charges[id]
	ch.ProviderStatus = providerStatus
	ch.Status = status
}

func (g *fakeGateway) put(ch *payments.Charge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[ch.ID] = ch
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.PaymentApproved
	err    error

	// block makes a publish wait for ctx, like a broker that never acks.
	block   bool
	ctxErrs []error
}

func (p *fakePublisher) PublishPaymentApproved(ctx context.Context, evt events.PaymentApproved) error {
	p.mu.Lock()
	block := p.block
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		p.mu.Lock()
		p.ctxErrs = append(p.ctxErrs, ctx.Err())
		p.mu.Unlock()
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *fakePublisher) Close() {}

type fakeNotifier struct {
	mu   sync.Mutex
	subs []models.Subscription
}

func (n *fakeNotifier) FirstSubscription(_ context.Context, sub *models.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, *sub)
	return nil
}
