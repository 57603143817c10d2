//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Order

	SaveFunc         func(ctx context.Context, qx repository.Tx, o *model.Order) error
	FindByPublicFunc func(ctx context.Context, qx repository.Tx, publicID string) (*model.Order, error)
	UpdateStatusFunc func(ctx context.Context, qx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{byID: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Save(ctx context.Context, qx repository.Tx, o *model.Order) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, qx, o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockOrderRepo) FindByPublicID(ctx context.Context, qx repository.Tx, publicID string) (*model.Order, error) {
	if r.FindByPublicFunc != nil {
		return r.FindByPublicFunc(ctx, qx, publicID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.byID {
		if o.PublicID == publicID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byID[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string, f repository.OrderFilter) ([]*model.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Order
	for _, o := range r.byID {
		if o.UserID != userID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset > len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *MockOrderRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, qx, id, status, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	if paidAt != nil {
		o.PaidAt = paidAt
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *MockOrderRepo) MarkExpired(ctx context.Context, qx repository.Tx, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.byID {
		if o.Status == model.OrderStatusPending && o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
			o.Status = model.OrderStatusExpired
			n++
		}
	}
	return n, nil
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Payment

	SaveFunc         func(ctx context.Context, qx repository.Tx, p *model.Payment) error
	UpdateStatusFunc func(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, intentID *string, paidAt *time.Time) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, qx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByPublicID(ctx context.Context, qx repository.Tx, publicID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.PublicID == publicID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindBySessionID(ctx context.Context, qx repository.Tx, sessionID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.SessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListByOrder(ctx context.Context, qx repository.Tx, orderID string) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.byID {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MockPaymentRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, intentID *string, paidAt *time.Time) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, qx, id, status, intentID, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if intentID != nil && *intentID != "" {
		p.IntentID = *intentID
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock MembershipRepository ----

type MockMembershipRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Membership

	SaveFunc func(ctx context.Context, qx repository.Tx, m *model.Membership) error
}

var _ repository.MembershipRepository = (*MockMembershipRepo)(nil)

func NewMockMembershipRepo() *MockMembershipRepo {
	return &MockMembershipRepo{byID: map[string]*model.Membership{}}
}

func (r *MockMembershipRepo) Save(ctx context.Context, qx repository.Tx, m *model.Membership) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, qx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockMembershipRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockMembershipRepo) FindActiveByUser(ctx context.Context, qx repository.Tx, userID string, now time.Time) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.UserID == userID && m.Status == model.MembershipStatusActive && !m.EndDate.Before(now) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockMembershipRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Membership
	for _, m := range r.byID {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockMembershipRepo) MarkExpired(ctx context.Context, qx repository.Tx, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.byID {
		if m.Status == model.MembershipStatusActive && m.EndDate.Before(now) {
			m.Status = model.MembershipStatusExpired
			n++
		}
	}
	return n, nil
}

// ---- Mock MembershipLevelRepository ----

type MockLevelRepo struct {
	mu   sync.Mutex
	byID map[string]*model.MembershipLevel
}

var _ repository.MembershipLevelRepository = (*MockLevelRepo)(nil)

func NewMockLevelRepo() *MockLevelRepo {
	return &MockLevelRepo{byID: map[string]*model.MembershipLevel{}}
}

func (r *MockLevelRepo) Save(ctx context.Context, qx repository.Tx, l *model.MembershipLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockLevelRepo) Delete(ctx context.Context, qx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MockLevelRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.MembershipLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byID[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockLevelRepo) ListAll(ctx context.Context, qx repository.Tx) ([]*model.MembershipLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.MembershipLevel, 0, len(r.byID))
	for _, l := range r.byID {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, qx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, qx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Mock PaymentGateway (adapter) ----

type MockPaymentGateway struct {
	NameVal string

	CreateCheckoutSessionFunc  func(ctx context.Context, order *model.Order, payment *model.Payment, successURL, cancelURL, description string) (*adapter.CheckoutSession, error)
	RetrieveSessionFunc        func(ctx context.Context, sessionID string) (*adapter.SessionStatus, error)
	RefundFunc                 func(ctx context.Context, intentID string, amountCents int64, reason string) (string, error)
	VerifyWebhookSignatureFunc func(rawBody []byte, signatureHeader string) error
	ParseEventFunc             func(rawBody []byte) (*adapter.WebhookEvent, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, order *model.Order, payment *model.Payment, successURL, cancelURL, description string) (*adapter.CheckoutSession, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, order, payment, successURL, cancelURL, description)
	}
	return &adapter.CheckoutSession{
		ID:        "cs_test_" + payment.PublicID,
		URL:       "https://checkout.example/" + payment.PublicID,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

func (m *MockPaymentGateway) RetrieveSession(ctx context.Context, sessionID string) (*adapter.SessionStatus, error) {
	if m.RetrieveSessionFunc != nil {
		return m.RetrieveSessionFunc(ctx, sessionID)
	}
	return &adapter.SessionStatus{ID: sessionID, Status: "open", PaymentStatus: "unpaid"}, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, intentID string, amountCents int64, reason string) (string, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, intentID, amountCents, reason)
	}
	return "re_test_1", nil
}

func (m *MockPaymentGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) error {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(rawBody, signatureHeader)
	}
	return nil
}

func (m *MockPaymentGateway) ParseEvent(rawBody []byte) (*adapter.WebhookEvent, error) {
	if m.ParseEventFunc != nil {
		return m.ParseEventFunc(rawBody)
	}
	return &adapter.WebhookEvent{ID: "evt_test", Type: adapter.EventUnknown}, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction by default.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- Mock EventLocker ----

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)

	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrConflict
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- Mock NotificationUseCase ----

type MockNotifier struct {
	mu            sync.Mutex
	Confirmations []string // emails handed to EnqueuePaymentConfirmation
	Changes       []string // emails handed to EnqueueMembershipChange
}

var _ usecase.NotificationUseCase = (*MockNotifier)(nil)

func (n *MockNotifier) EnqueuePaymentConfirmation(email string, order *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Confirmations = append(n.Confirmations, email)
}

func (n *MockNotifier) EnqueueMembershipChange(email string, m *model.Membership, level *model.MembershipLevel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Changes = append(n.Changes, email)
}

func (n *MockNotifier) Run(ctx context.Context) error { return nil }
