//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
	"membership-platform/internal/usecase"
)

type webhookUCTestDeps struct {
	orders      *MockOrderRepo
	payments    *MockPaymentRepo
	users       *MockUserRepo
	memberships *MockMembershipRepo
	levels      *MockLevelRepo
	gateway     *MockPaymentGateway
	notifier    *MockNotifier
	tm          *MockTxManager
	locker      *MockLocker
}

func newWebhookUCDeps() *webhookUCTestDeps {
	return &webhookUCTestDeps{
		orders:      NewMockOrderRepo(),
		payments:    NewMockPaymentRepo(),
		users:       NewMockUserRepo(),
		memberships: NewMockMembershipRepo(),
		levels:      NewMockLevelRepo(),
		gateway:     &MockPaymentGateway{},
		notifier:    &MockNotifier{},
		tm:          NewMockTxManager(),
		locker:      NewMockLocker(),
	}
}

func newWebhookUC(deps *webhookUCTestDeps) usecase.WebhookUseCase {
	log := newTestLogger()
	memberUC := usecase.NewMembershipUseCase(deps.memberships, deps.levels, log)
	return usecase.NewWebhookUseCase(deps.gateway, deps.orders, deps.payments, deps.users, memberUC, deps.notifier, deps.tm, deps.locker, log)
}

// startedCheckout seeds a member, a level, and a pending order whose payment
// is bound to a live checkout session, then returns the checkout fixture.
func startedCheckout(t *testing.T, deps *webhookUCTestDeps, op model.MembershipOperation) (*model.Order, *model.Payment) {
	t.Helper()
	ctx := context.Background()

	level, err := model.NewMembershipLevel("lvl-basic", "Basic", 999, "USD", 1, 30)
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if err := deps.levels.Save(ctx, nil, level); err != nil {
		t.Fatalf("save level: %v", err)
	}
	user, err := model.NewUser("user-1", "member@example.com", "Member One", "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := deps.users.Save(ctx, nil, user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	log := newTestLogger()
	memberUC := usecase.NewMembershipUseCase(deps.memberships, deps.levels, log)
	orderUC := usecase.NewOrderUseCase(deps.orders, deps.payments, deps.gateway, deps.tm, 30*time.Minute, log)
	checkoutUC := usecase.NewCheckoutUseCase(memberUC, orderUC, deps.orders, deps.payments, deps.gateway, "https://shop.test/ok", "https://shop.test/no", log)

	order, _, err := checkoutUC.Checkout(ctx, user.ID, level.ID, op)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	pays, _ := deps.payments.ListByOrder(ctx, nil, order.ID)
	return order, pays[0]
}

// startedGenericOrder seeds a member and a pending ledger order with no
// membership reference, bound to a live checkout session.
func startedGenericOrder(t *testing.T, deps *webhookUCTestDeps) (*model.Order, *model.Payment) {
	t.Helper()
	ctx := context.Background()

	user, err := model.NewUser("user-1", "member@example.com", "Member One", "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := deps.users.Save(ctx, nil, user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	log := newTestLogger()
	memberUC := usecase.NewMembershipUseCase(deps.memberships, deps.levels, log)
	orderUC := usecase.NewOrderUseCase(deps.orders, deps.payments, deps.gateway, deps.tm, 30*time.Minute, log)
	checkoutUC := usecase.NewCheckoutUseCase(memberUC, orderUC, deps.orders, deps.payments, deps.gateway, "https://shop.test/ok", "https://shop.test/no", log)

	order, payment, _, err := checkoutUC.CreateOrder(ctx, usecase.CreateOrderParams{
		UserID:      user.ID,
		Type:        model.OrderTypePurchase,
		AmountCents: 2500,
		Currency:    "USD",
		Breakdown:   model.PriceBreakdown{BaseCents: 2500},
	}, "merch bundle")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order, payment
}

// completedEvent mirrors what the provider sends after a successful checkout.
func completedEvent(id string, payment *model.Payment, op model.MembershipOperation, levelID string) *adapter.WebhookEvent {
	return &adapter.WebhookEvent{
		ID:        id,
		Type:      adapter.EventCheckoutCompleted,
		SessionID: payment.SessionID,
		IntentID:  "pi_test_1",
		Metadata: map[string]string{
			adapter.MetaPaymentPublicID: payment.PublicID,
			adapter.MetaOperation:       string(op),
			adapter.MetaLevelID:         levelID,
		},
	}
}

func deliver(t *testing.T, uc usecase.WebhookUseCase, deps *webhookUCTestDeps, ev *adapter.WebhookEvent) error {
	t.Helper()
	deps.gateway.ParseEventFunc = func(rawBody []byte) (*adapter.WebhookEvent, error) {
		cp := *ev
		return &cp, nil
	}
	return uc.Process(context.Background(), "stripe", []byte(`{}`), "t=1,v1=aa")
}

func TestWebhookUseCase_Process_Completed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks paid and activates the membership", func(t *testing.T) {
		deps := newWebhookUCDeps()
		order, payment := startedCheckout(t, deps, model.OperationNew)
		uc := newWebhookUC(deps)

		if err := deliver(t, uc, deps, completedEvent("evt_1", payment, model.OperationNew, "lvl-basic")); err != nil {
			t.Fatalf("process: %v", err)
		}

		gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
		if gotPay.Status != model.PaymentStatusSucceeded {
			t.Errorf("payment status %s, want succeeded", gotPay.Status)
		}
		if gotPay.IntentID != "pi_test_1" {
			t.Errorf("intent id %q not recorded", gotPay.IntentID)
		}
		gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
		if gotOrder.Status != model.OrderStatusPaid {
			t.Errorf("order status %s, want paid", gotOrder.Status)
		}
		if gotOrder.PaidAt == nil {
			t.Error("paid_at not set")
		}
		if _, err := deps.memberships.FindActiveByUser(ctx, nil, "user-1", time.Now()); err != nil {
			t.Errorf("membership not activated: %v", err)
		}
		if len(deps.notifier.Confirmations) != 1 || deps.notifier.Confirmations[0] != "member@example.com" {
			t.Errorf("confirmation email not queued: %v", deps.notifier.Confirmations)
		}
		if len(deps.notifier.Changes) != 1 || deps.notifier.Changes[0] != "member@example.com" {
			t.Errorf("membership change email not queued: %v", deps.notifier.Changes)
		}
	})

	t.Run("an order without a membership operation is simply paid", func(t *testing.T) {
		deps := newWebhookUCDeps()
		order, payment := startedGenericOrder(t, deps)
		uc := newWebhookUC(deps)

		ev := &adapter.WebhookEvent{
			ID:        "evt_generic",
			Type:      adapter.EventCheckoutCompleted,
			SessionID: payment.SessionID,
			IntentID:  "pi_test_1",
			Metadata:  map[string]string{adapter.MetaPaymentPublicID: payment.PublicID},
		}
		if err := deliver(t, uc, deps, ev); err != nil {
			t.Fatalf("process: %v", err)
		}

		gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
		if gotPay.Status != model.PaymentStatusSucceeded {
			t.Errorf("payment status %s, want succeeded", gotPay.Status)
		}
		gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
		if gotOrder.Status != model.OrderStatusPaid {
			t.Errorf("order status %s, want paid", gotOrder.Status)
		}
		if _, err := deps.memberships.FindActiveByUser(ctx, nil, "user-1", time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Error("no membership may be granted without an operation")
		}
		if len(deps.notifier.Confirmations) != 1 {
			t.Errorf("expected one confirmation email, got %d", len(deps.notifier.Confirmations))
		}
		if len(deps.notifier.Changes) != 0 {
			t.Errorf("no membership change email expected, got %d", len(deps.notifier.Changes))
		}

		// The provider redelivers anyway; the terminal state absorbs it.
		ev.ID = "evt_generic_2"
		if err := deliver(t, uc, deps, ev); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
	})

	t.Run("redelivery is a no-op with a single membership and email", func(t *testing.T) {
		deps := newWebhookUCDeps()
		_, payment := startedCheckout(t, deps, model.OperationNew)
		uc := newWebhookUC(deps)

		ev := completedEvent("evt_1", payment, model.OperationNew, "lvl-basic")
		if err := deliver(t, uc, deps, ev); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if err := deliver(t, uc, deps, ev); err != nil {
			t.Fatalf("redelivery must succeed, got: %v", err)
		}

		all, _ := deps.memberships.ListByUser(ctx, nil, "user-1")
		if len(all) != 1 {
			t.Fatalf("expected exactly one membership, got %d", len(all))
		}
		if len(deps.notifier.Confirmations) != 1 {
			t.Errorf("expected exactly one email, got %d", len(deps.notifier.Confirmations))
		}
	})

	t.Run("an expired order is never honored", func(t *testing.T) {
		deps := newWebhookUCDeps()
		order, payment := startedCheckout(t, deps, model.OperationNew)
		past := time.Now().Add(-time.Minute)
		stored, _ := deps.orders.FindByID(ctx, nil, order.ID)
		stored.ExpiresAt = &past
		deps.orders.Save(ctx, nil, stored)
		uc := newWebhookUC(deps)

		err := deliver(t, uc, deps, completedEvent("evt_1", payment, model.OperationNew, "lvl-basic"))
		if !errors.Is(err, domain.ErrOrderExpired) {
			t.Fatalf("expected ErrOrderExpired, got: %v", err)
		}
		if _, err := deps.memberships.FindActiveByUser(ctx, nil, "user-1", time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Error("membership must not be granted for an expired order")
		}
	})

	t.Run("a concurrent duplicate delivery is suppressed", func(t *testing.T) {
		deps := newWebhookUCDeps()
		_, payment := startedCheckout(t, deps, model.OperationNew)
		if _, err := deps.locker.TryLock(ctx, "webhook:evt_1", time.Minute); err != nil {
			t.Fatalf("pre-hold lock: %v", err)
		}
		uc := newWebhookUC(deps)

		if err := deliver(t, uc, deps, completedEvent("evt_1", payment, model.OperationNew, "lvl-basic")); err != nil {
			t.Fatalf("suppressed duplicate must be acknowledged, got: %v", err)
		}
		gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
		if gotPay.Status != model.PaymentStatusPending {
			t.Errorf("suppressed delivery must not touch state, got %s", gotPay.Status)
		}
	})

	t.Run("a locker outage does not drop the event", func(t *testing.T) {
		deps := newWebhookUCDeps()
		_, payment := startedCheckout(t, deps, model.OperationNew)
		deps.locker.TryLockFunc = func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", errors.New("redis: connection refused")
		}
		uc := newWebhookUC(deps)

		if err := deliver(t, uc, deps, completedEvent("evt_1", payment, model.OperationNew, "lvl-basic")); err != nil {
			t.Fatalf("process: %v", err)
		}
		gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
		if gotPay.Status != model.PaymentStatusSucceeded {
			t.Errorf("event must be applied without the lock, got %s", gotPay.Status)
		}
		if _, err := deps.memberships.FindActiveByUser(ctx, nil, "user-1", time.Now()); err != nil {
			t.Errorf("membership not activated: %v", err)
		}
	})
}

func TestWebhookUseCase_Process_Signature(t *testing.T) {
	deps := newWebhookUCDeps()
	parseCalled := false
	deps.gateway.VerifyWebhookSignatureFunc = func(rawBody []byte, sig string) error {
		return domain.ErrSignatureInvalid
	}
	deps.gateway.ParseEventFunc = func(rawBody []byte) (*adapter.WebhookEvent, error) {
		parseCalled = true
		return nil, nil
	}
	uc := newWebhookUC(deps)

	err := uc.Process(context.Background(), "stripe", []byte(`{}`), "t=1,v1=forged")
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got: %v", err)
	}
	if parseCalled {
		t.Error("payload must not be parsed before the signature checks out")
	}
}

func TestWebhookUseCase_Process_Failed(t *testing.T) {
	ctx := context.Background()
	deps := newWebhookUCDeps()
	order, payment := startedCheckout(t, deps, model.OperationNew)
	uc := newWebhookUC(deps)

	ev := &adapter.WebhookEvent{
		ID:       "evt_fail",
		Type:     adapter.EventPaymentFailed,
		IntentID: "pi_test_1",
		Metadata: map[string]string{adapter.MetaPaymentPublicID: payment.PublicID},
	}
	if err := deliver(t, uc, deps, ev); err != nil {
		t.Fatalf("process: %v", err)
	}

	gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
	if gotPay.Status != model.PaymentStatusFailed {
		t.Errorf("payment status %s, want failed", gotPay.Status)
	}
	// The member can still retry until the order itself expires.
	gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
	if gotOrder.Status != model.OrderStatusPending {
		t.Errorf("order status %s, want pending", gotOrder.Status)
	}
}

func TestWebhookUseCase_Process_Expired(t *testing.T) {
	ctx := context.Background()
	deps := newWebhookUCDeps()
	order, payment := startedCheckout(t, deps, model.OperationNew)
	uc := newWebhookUC(deps)

	ev := &adapter.WebhookEvent{
		ID:        "evt_exp",
		Type:      adapter.EventCheckoutExpired,
		SessionID: payment.SessionID,
	}
	if err := deliver(t, uc, deps, ev); err != nil {
		t.Fatalf("process: %v", err)
	}

	gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
	if gotPay.Status != model.PaymentStatusExpired {
		t.Errorf("payment status %s, want expired", gotPay.Status)
	}
	gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
	if gotOrder.Status != model.OrderStatusExpired {
		t.Errorf("order status %s, want expired", gotOrder.Status)
	}
}

func TestWebhookUseCase_Process_Refund(t *testing.T) {
	ctx := context.Background()
	deps := newWebhookUCDeps()
	order, payment := startedCheckout(t, deps, model.OperationNew)
	uc := newWebhookUC(deps)

	if err := deliver(t, uc, deps, completedEvent("evt_1", payment, model.OperationNew, "lvl-basic")); err != nil {
		t.Fatalf("complete: %v", err)
	}

	refund := &adapter.WebhookEvent{
		ID:       "evt_refund",
		Type:     adapter.EventRefundExecuted,
		IntentID: "pi_test_1",
		Metadata: map[string]string{adapter.MetaPaymentPublicID: payment.PublicID},
	}
	if err := deliver(t, uc, deps, refund); err != nil {
		t.Fatalf("refund: %v", err)
	}

	gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
	if gotPay.Status != model.PaymentStatusRefunded {
		t.Errorf("payment status %s, want refunded", gotPay.Status)
	}
	gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
	if gotOrder.Status != model.OrderStatusRefunded {
		t.Errorf("order status %s, want refunded", gotOrder.Status)
	}

	// Redelivery after the terminal state is acknowledged without churn.
	refund.ID = "evt_refund_2"
	if err := deliver(t, uc, deps, refund); err != nil {
		t.Fatalf("refund redelivery: %v", err)
	}
}

func TestWebhookUseCase_Process_UnknownType(t *testing.T) {
	deps := newWebhookUCDeps()
	uc := newWebhookUC(deps)

	ev := &adapter.WebhookEvent{ID: "evt_x", Type: adapter.EventUnknown}
	if err := deliver(t, uc, deps, ev); err != nil {
		t.Fatalf("unknown event types must be acknowledged, got: %v", err)
	}
}

func TestWebhookUseCase_ReconcilePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a completion the webhook never delivered", func(t *testing.T) {
		deps := newWebhookUCDeps()
		order, payment := startedCheckout(t, deps, model.OperationNew)
		deps.gateway.RetrieveSessionFunc = func(ctx context.Context, id string) (*adapter.SessionStatus, error) {
			return &adapter.SessionStatus{
				ID:            id,
				Status:        "complete",
				PaymentStatus: "paid",
				IntentID:      "pi_test_1",
				Metadata: map[string]string{
					adapter.MetaPaymentPublicID: payment.PublicID,
					adapter.MetaOperation:       string(model.OperationNew),
					adapter.MetaLevelID:         "lvl-basic",
				},
			}, nil
		}
		uc := newWebhookUC(deps)

		if err := uc.ReconcilePayment(ctx, payment); err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
		if gotOrder.Status != model.OrderStatusPaid {
			t.Errorf("order status %s, want paid", gotOrder.Status)
		}
		if _, err := deps.memberships.FindActiveByUser(ctx, nil, "user-1", time.Now()); err != nil {
			t.Errorf("membership not activated: %v", err)
		}
	})

	t.Run("a still-open session is left alone", func(t *testing.T) {
		deps := newWebhookUCDeps()
		_, payment := startedCheckout(t, deps, model.OperationNew)
		uc := newWebhookUC(deps)

		if err := uc.ReconcilePayment(ctx, payment); err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		gotPay, _ := deps.payments.FindByID(ctx, nil, payment.ID)
		if gotPay.Status != model.PaymentStatusPending {
			t.Errorf("open session must not change state, got %s", gotPay.Status)
		}
	})

	t.Run("an expired session closes payment and order", func(t *testing.T) {
		deps := newWebhookUCDeps()
		order, payment := startedCheckout(t, deps, model.OperationNew)
		deps.gateway.RetrieveSessionFunc = func(ctx context.Context, id string) (*adapter.SessionStatus, error) {
			return &adapter.SessionStatus{ID: id, Status: "expired", PaymentStatus: "unpaid"}, nil
		}
		uc := newWebhookUC(deps)

		if err := uc.ReconcilePayment(ctx, payment); err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		gotOrder, _ := deps.orders.FindByID(ctx, nil, order.ID)
		if gotOrder.Status != model.OrderStatusExpired {
			t.Errorf("order status %s, want expired", gotOrder.Status)
		}
	})
}
