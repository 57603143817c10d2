//go:build !integration

package web_test

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Mock usecases, one function field per handler-visible operation ----

type mockUserUC struct {
	RegisterFunc     func(ctx context.Context, email, displayName, password string) (*model.User, error)
	AuthenticateFunc func(ctx context.Context, email, password string) (*model.User, error)
	GetFunc          func(ctx context.Context, id string) (*model.User, error)
}

var _ usecase.UserUseCase = (*mockUserUC)(nil)

func (m *mockUserUC) Register(ctx context.Context, email, displayName, password string) (*model.User, error) {
	return m.RegisterFunc(ctx, email, displayName, password)
}

func (m *mockUserUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	return m.AuthenticateFunc(ctx, email, password)
}

func (m *mockUserUC) Get(ctx context.Context, id string) (*model.User, error) {
	return m.GetFunc(ctx, id)
}

type mockOrderUC struct {
	CreateFunc        func(ctx context.Context, p usecase.CreateOrderParams) (*model.Order, *model.Payment, error)
	GetFunc           func(ctx context.Context, publicID string) (*model.Order, []*model.Payment, error)
	ListByUserFunc    func(ctx context.Context, userID string, f repository.OrderFilter) ([]*model.Order, int, error)
	CancelFunc        func(ctx context.Context, userID, publicID string) (*model.Order, error)
	RefundFunc        func(ctx context.Context, userID, publicID, reason string) (*model.Order, error)
	ExpirePendingFunc func(ctx context.Context) (int, error)
}

var _ usecase.OrderUseCase = (*mockOrderUC)(nil)

func (m *mockOrderUC) Create(ctx context.Context, p usecase.CreateOrderParams) (*model.Order, *model.Payment, error) {
	return m.CreateFunc(ctx, p)
}

func (m *mockOrderUC) Get(ctx context.Context, publicID string) (*model.Order, []*model.Payment, error) {
	return m.GetFunc(ctx, publicID)
}

func (m *mockOrderUC) ListByUser(ctx context.Context, userID string, f repository.OrderFilter) ([]*model.Order, int, error) {
	return m.ListByUserFunc(ctx, userID, f)
}

func (m *mockOrderUC) Cancel(ctx context.Context, userID, publicID string) (*model.Order, error) {
	return m.CancelFunc(ctx, userID, publicID)
}

func (m *mockOrderUC) Refund(ctx context.Context, userID, publicID, reason string) (*model.Order, error) {
	return m.RefundFunc(ctx, userID, publicID, reason)
}

func (m *mockOrderUC) ExpirePending(ctx context.Context) (int, error) {
	if m.ExpirePendingFunc != nil {
		return m.ExpirePendingFunc(ctx)
	}
	return 0, nil
}

type mockCheckoutUC struct {
	CheckoutFunc      func(ctx context.Context, userID, levelID string, op model.MembershipOperation) (*model.Order, string, error)
	CreateOrderFunc   func(ctx context.Context, p usecase.CreateOrderParams, description string) (*model.Order, *model.Payment, string, error)
	VerifyPaymentFunc func(ctx context.Context, userID, sessionID string) (*usecase.VerifyResult, error)
}

var _ usecase.CheckoutUseCase = (*mockCheckoutUC)(nil)

func (m *mockCheckoutUC) Checkout(ctx context.Context, userID, levelID string, op model.MembershipOperation) (*model.Order, string, error) {
	return m.CheckoutFunc(ctx, userID, levelID, op)
}

func (m *mockCheckoutUC) CreateOrder(ctx context.Context, p usecase.CreateOrderParams, description string) (*model.Order, *model.Payment, string, error) {
	return m.CreateOrderFunc(ctx, p, description)
}

func (m *mockCheckoutUC) VerifyPayment(ctx context.Context, userID, sessionID string) (*usecase.VerifyResult, error) {
	return m.VerifyPaymentFunc(ctx, userID, sessionID)
}

type mockMembershipUC struct {
	GetActiveFunc func(ctx context.Context, userID string) (*model.Membership, *model.MembershipLevel, error)
}

var _ usecase.MembershipUseCase = (*mockMembershipUC)(nil)

func (m *mockMembershipUC) GetActive(ctx context.Context, userID string) (*model.Membership, *model.MembershipLevel, error) {
	return m.GetActiveFunc(ctx, userID)
}

func (m *mockMembershipUC) ValidateOperation(ctx context.Context, userID, targetLevelID string, op model.MembershipOperation) (*model.MembershipLevel, error) {
	return nil, domain.ErrNotFound
}

func (m *mockMembershipUC) ChangeLevel(ctx context.Context, qx repository.Tx, userID, targetLevelID string, op model.MembershipOperation) (*model.Membership, error) {
	return nil, domain.ErrNotFound
}

func (m *mockMembershipUC) ApplyPaidOrder(ctx context.Context, qx repository.Tx, userID, levelID string, op model.MembershipOperation) (*model.Membership, error) {
	return nil, domain.ErrNotFound
}

func (m *mockMembershipUC) FinishExpired(ctx context.Context) (int, error) { return 0, nil }

type mockLevelUC struct {
	CreateFunc func(ctx context.Context, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error)
	UpdateFunc func(ctx context.Context, id, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error)
	DeleteFunc func(ctx context.Context, id string) error
	GetFunc    func(ctx context.Context, id string) (*model.MembershipLevel, error)
	ListFunc   func(ctx context.Context) ([]*model.MembershipLevel, error)
}

var _ usecase.LevelUseCase = (*mockLevelUC)(nil)

func (m *mockLevelUC) Create(ctx context.Context, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error) {
	return m.CreateFunc(ctx, name, priceCents, currency, priority, durationDays)
}

func (m *mockLevelUC) Update(ctx context.Context, id, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error) {
	return m.UpdateFunc(ctx, id, name, priceCents, currency, priority, durationDays)
}

func (m *mockLevelUC) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockLevelUC) Get(ctx context.Context, id string) (*model.MembershipLevel, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockLevelUC) List(ctx context.Context) ([]*model.MembershipLevel, error) {
	return m.ListFunc(ctx)
}

type mockWebhookUC struct {
	ProcessFunc func(ctx context.Context, provider string, rawBody []byte, signature string) error
}

var _ usecase.WebhookUseCase = (*mockWebhookUC)(nil)

func (m *mockWebhookUC) Process(ctx context.Context, provider string, rawBody []byte, signature string) error {
	return m.ProcessFunc(ctx, provider, rawBody, signature)
}

func (m *mockWebhookUC) ReconcilePayment(ctx context.Context, payment *model.Payment) error {
	return nil
}

// mockLimiter denies once the call count passes Allowed.
type mockLimiter struct {
	Allowed int
	calls   int
}

func (l *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.calls++
	return l.calls <= l.Allowed, nil
}
