package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase applies provider events to internal state exactly once.
type WebhookUseCase interface {
	// Process verifies the signature, parses the event, and reconciles
	// order/payment/membership state. A non-nil error tells the HTTP layer
	// to answer non-2xx so the provider redelivers.
	Process(ctx context.Context, provider string, rawBody []byte, signature string) error
	// ReconcilePayment pulls the session state for a stale pending payment
	// and applies whatever outcome the provider recorded. Covers deliveries
	// lost to crashes or network trouble.
	ReconcilePayment(ctx context.Context, payment *model.Payment) error
}

// EventLocker single-flights concurrent duplicate deliveries. Best-effort:
// correctness comes from the row locks and idempotent status checks below.
type EventLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type webhookUC struct {
	gateway     adapter.PaymentGateway
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	users       repository.UserRepository
	memberships MembershipUseCase
	notifier    NotificationUseCase
	txm         repository.TransactionManager
	locker      EventLocker
	log         *zerolog.Logger
}

func NewWebhookUseCase(gateway adapter.PaymentGateway, orders repository.OrderRepository, payments repository.PaymentRepository, users repository.UserRepository, memberships MembershipUseCase, notifier NotificationUseCase, txm repository.TransactionManager, locker EventLocker, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		gateway:     gateway,
		orders:      orders,
		payments:    payments,
		users:       users,
		memberships: memberships,
		notifier:    notifier,
		txm:         txm,
		locker:      locker,
		log:         &l,
	}
}

// hashToInt64 maps a user id onto the advisory-lock keyspace.
func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func (uc *webhookUC) Process(ctx context.Context, provider string, rawBody []byte, signature string) error {
	// Fail closed: nothing is read or trusted before the signature checks out.
	if err := uc.gateway.VerifyWebhookSignature(rawBody, signature); err != nil {
		metrics.IncWebhookEvent("unknown", "signature_invalid")
		return domain.ErrSignatureInvalid
	}

	ev, err := uc.gateway.ParseEvent(rawBody)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "parse_error")
		return fmt.Errorf("parse webhook event: %w", err)
	}

	if uc.locker != nil && ev.ID != "" {
		token, err := uc.locker.TryLock(ctx, "webhook:"+ev.ID, 30*time.Second)
		switch {
		case err == nil:
			defer func() { _ = uc.locker.Unlock(ctx, "webhook:"+ev.ID, token) }()
		case errors.Is(err, domain.ErrConflict):
			// A concurrent delivery of the same event is in flight; it will
			// do the work. Answer success so the provider stops retrying.
			uc.log.Debug().Str("event", ev.ID).Msg("duplicate delivery suppressed")
			return nil
		default:
			// Locker outage. Proceed without the lock: the row locks and
			// idempotent status checks below carry correctness, and an
			// acked-but-dropped event would otherwise wait on the
			// reconciler sweep.
			uc.log.Warn().Err(err).Str("event", ev.ID).Msg("event locker unavailable, proceeding unlocked")
		}
	}

	switch ev.Type {
	case adapter.EventCheckoutCompleted:
		return uc.applyCompleted(ctx, ev)
	case adapter.EventCheckoutExpired:
		return uc.applyExpired(ctx, ev)
	case adapter.EventPaymentFailed:
		return uc.applyFailed(ctx, ev)
	case adapter.EventRefundExecuted:
		return uc.applyRefund(ctx, ev)
	default:
		// Unknown event types are acknowledged, not retried.
		uc.log.Debug().Str("event", ev.ID).Msg("ignoring unhandled event type")
		metrics.IncWebhookEvent(string(ev.Type), "ignored")
		return nil
	}
}

func (uc *webhookUC) ReconcilePayment(ctx context.Context, payment *model.Payment) error {
	if payment.SessionID == "" {
		return nil
	}
	status, err := uc.gateway.RetrieveSession(ctx, payment.SessionID)
	if err != nil {
		return fmt.Errorf("retrieve session %s: %w", payment.SessionID, err)
	}

	// Synthesize the event the lost delivery would have carried; the apply
	// paths stay the single source of state transitions.
	ev := &adapter.WebhookEvent{
		ID:        "reconcile:" + payment.SessionID,
		SessionID: status.ID,
		IntentID:  status.IntentID,
		Metadata:  status.Metadata,
	}
	switch {
	case status.Status == "complete" && status.PaymentStatus == "paid":
		ev.Type = adapter.EventCheckoutCompleted
		return uc.applyCompleted(ctx, ev)
	case status.Status == "expired":
		ev.Type = adapter.EventCheckoutExpired
		return uc.applyExpired(ctx, ev)
	default:
		// Still open on the provider side; leave it for the next sweep.
		return nil
	}
}

// findPayment resolves the payment strictly via identifiers the provider got
// from us: the embedded metadata public id first, the session id second.
// Client-supplied ids are never consulted.
func (uc *webhookUC) findPayment(ctx context.Context, qx repository.Tx, ev *adapter.WebhookEvent) (*model.Payment, error) {
	if pid := ev.Metadata[adapter.MetaPaymentPublicID]; pid != "" {
		return uc.payments.FindByPublicID(ctx, qx, pid)
	}
	if ev.SessionID != "" {
		return uc.payments.FindBySessionID(ctx, qx, ev.SessionID)
	}
	return nil, domain.ErrNotFound
}

// applyCompleted marks payment and order paid and applies the membership
// effect, all inside one transaction serialized per user, so no half-applied
// state can survive a crash: either everything commits or the provider
// retries the whole event.
func (uc *webhookUC) applyCompleted(ctx context.Context, ev *adapter.WebhookEvent) error {
	var (
		order      *model.Order
		membership *model.Membership
		applied    bool
	)
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		payment, err := uc.findPayment(ctx, qx, ev)
		if err != nil {
			return err
		}
		// Idempotency: the terminal state implied by this event is already
		// recorded, so the redelivery is a no-op.
		if payment.Status == model.PaymentStatusSucceeded {
			return nil
		}
		if payment.Status.IsTerminal() {
			return domain.ErrInvalidState
		}

		o, err := uc.orders.FindByID(ctx, qx, payment.OrderID)
		if err != nil {
			return err
		}
		if tx, ok := qx.(pgx.Tx); ok {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(o.UserID)); err != nil {
				return err
			}
		}
		// An expired pending order is never honored, even if the provider
		// reports a completion.
		if o.IsExpired(time.Now()) {
			return domain.ErrOrderExpired
		}

		now := time.Now()
		intent := ev.IntentID
		if err := uc.payments.UpdateStatus(ctx, qx, payment.ID, model.PaymentStatusSucceeded, &intent, &now); err != nil {
			return err
		}
		if o.Status != model.OrderStatusPaid {
			if err := o.Transition(model.OrderStatusPaid); err != nil {
				return domain.ErrInvalidState
			}
			if err := uc.orders.UpdateStatus(ctx, qx, o.ID, o.Status, o.PaidAt); err != nil {
				return err
			}
		}

		opName := ev.Metadata[adapter.MetaOperation]
		if opName == "" {
			if v, ok := o.Meta[adapter.MetaOperation].(string); ok {
				opName = v
			}
		}
		// Generic ledger orders carry no operation; marking them paid is
		// the whole effect.
		if opName != "" {
			op, err := model.ParseMembershipOperation(opName)
			if err != nil {
				return fmt.Errorf("order %s carries an unknown operation %q: %w", o.PublicID, opName, err)
			}
			if o.ReferenceID == nil {
				return fmt.Errorf("order %s carries no level reference: %w", o.PublicID, domain.ErrInvalidArgument)
			}
			m, err := uc.memberships.ApplyPaidOrder(ctx, qx, o.UserID, *o.ReferenceID, op)
			if err != nil {
				return fmt.Errorf("apply paid order %s: %w", o.PublicID, err)
			}
			membership = m
		}
		order = o
		applied = true
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(string(ev.Type), "error")
		uc.log.Error().Err(err).Str("event", ev.ID).Msg("checkout completion failed")
		return err
	}
	metrics.IncWebhookEvent(string(ev.Type), "ok")
	if applied && order != nil {
		metrics.IncPayment(string(model.PaymentStatusSucceeded))
		metrics.AddPaymentRevenue(order.Currency, order.AmountCents)
		uc.notifyPaid(ctx, order, membership)
	}
	return nil
}

func (uc *webhookUC) applyExpired(ctx context.Context, ev *adapter.WebhookEvent) error {
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		payment, err := uc.findPayment(ctx, qx, ev)
		if err != nil {
			return err
		}
		if payment.Status.IsTerminal() {
			return nil
		}
		if err := uc.payments.UpdateStatus(ctx, qx, payment.ID, model.PaymentStatusExpired, nil, nil); err != nil {
			return err
		}
		o, err := uc.orders.FindByID(ctx, qx, payment.OrderID)
		if err != nil {
			return err
		}
		if o.CanTransition(model.OrderStatusExpired) {
			_ = o.Transition(model.OrderStatusExpired)
			return uc.orders.UpdateStatus(ctx, qx, o.ID, o.Status, nil)
		}
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(string(ev.Type), "error")
		return err
	}
	metrics.IncWebhookEvent(string(ev.Type), "ok")
	return nil
}

func (uc *webhookUC) applyFailed(ctx context.Context, ev *adapter.WebhookEvent) error {
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		payment, err := uc.findPayment(ctx, qx, ev)
		if err != nil {
			return err
		}
		if payment.Status.IsTerminal() {
			return nil
		}
		// The order stays pending: the member may retry with a fresh
		// checkout attempt until the order expires.
		return uc.payments.UpdateStatus(ctx, qx, payment.ID, model.PaymentStatusFailed, nil, nil)
	})
	if err != nil {
		metrics.IncWebhookEvent(string(ev.Type), "error")
		return err
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	metrics.IncWebhookEvent(string(ev.Type), "ok")
	return nil
}

// applyRefund reconciles refunds executed on the provider side (disputes,
// support tooling). Owner-initiated refunds go through OrderUseCase.Refund
// and land here as a redundant, idempotent no-op.
func (uc *webhookUC) applyRefund(ctx context.Context, ev *adapter.WebhookEvent) error {
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		payment, err := uc.findPayment(ctx, qx, ev)
		if err != nil {
			return err
		}
		if payment.Status == model.PaymentStatusRefunded {
			return nil
		}
		if payment.Status != model.PaymentStatusSucceeded {
			return domain.ErrInvalidState
		}
		o, err := uc.orders.FindByID(ctx, qx, payment.OrderID)
		if err != nil {
			return err
		}
		if err := uc.payments.UpdateStatus(ctx, qx, payment.ID, model.PaymentStatusRefunded, nil, nil); err != nil {
			return err
		}
		if o.Status == model.OrderStatusRefunded {
			return nil
		}
		if err := o.Transition(model.OrderStatusRefunded); err != nil {
			return domain.ErrInvalidState
		}
		return uc.orders.UpdateStatus(ctx, qx, o.ID, o.Status, nil)
	})
	if err != nil {
		metrics.IncWebhookEvent(string(ev.Type), "error")
		return err
	}
	metrics.IncWebhookEvent(string(ev.Type), "ok")
	return nil
}

// notifyPaid hands the confirmation email, and the membership-change email
// when the order carried a membership effect, to the notification queue.
// Failures are logged and never affect the committed business state.
func (uc *webhookUC) notifyPaid(ctx context.Context, order *model.Order, membership *model.Membership) {
	if uc.notifier == nil {
		return
	}
	user, err := uc.users.FindByID(ctx, nil, order.UserID)
	if err != nil {
		uc.log.Warn().Err(err).Str("user_id", order.UserID).Msg("cannot resolve user for notification")
		return
	}
	uc.notifier.EnqueuePaymentConfirmation(user.Email, order)
	if membership != nil {
		if m, level, err := uc.memberships.GetActive(ctx, order.UserID); err == nil {
			uc.notifier.EnqueueMembershipChange(user.Email, m, level)
		}
	}
}
