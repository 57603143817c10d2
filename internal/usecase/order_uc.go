package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
	"membership-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// CreateOrderParams carries everything createOrder needs. Amounts are minor
// units; ExpiresInMinutes <= 0 means the configured default applies.
type CreateOrderParams struct {
	UserID           string
	Type             model.OrderType
	AmountCents      int64
	Currency         string
	Breakdown        model.PriceBreakdown
	ReferenceID      *string
	ReferenceType    *string
	Meta             map[string]interface{}
	ExpiresInMinutes int
	Provider         string
}

// OrderUseCase is the order ledger: it represents intents to pay,
// independent of provider specifics. Orders are never deleted.
type OrderUseCase interface {
	Create(ctx context.Context, p CreateOrderParams) (*model.Order, *model.Payment, error)
	// Get returns the order with its payments. Expiry is derived at read time.
	Get(ctx context.Context, publicID string) (*model.Order, []*model.Payment, error)
	ListByUser(ctx context.Context, userID string, f repository.OrderFilter) ([]*model.Order, int, error)
	// Cancel transitions PENDING -> CANCELLED; anything else is ErrConflict.
	Cancel(ctx context.Context, userID, publicID string) (*model.Order, error)
	// Refund is allowed only once PAID. A second call on a refunded order
	// fails with ErrConflict and never reaches the provider again.
	Refund(ctx context.Context, userID, publicID, reason string) (*model.Order, error)
	// ExpirePending persists derived expiry for overdue pending orders.
	ExpirePending(ctx context.Context) (int, error)
}

type orderUC struct {
	orders     repository.OrderRepository
	payments   repository.PaymentRepository
	gateway    adapter.PaymentGateway
	txm        repository.TransactionManager
	defaultTTL time.Duration
	log        *zerolog.Logger
}

func NewOrderUseCase(orders repository.OrderRepository, payments repository.PaymentRepository, gateway adapter.PaymentGateway, txm repository.TransactionManager, defaultTTL time.Duration, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	return &orderUC{orders: orders, payments: payments, gateway: gateway, txm: txm, defaultTTL: defaultTTL, log: &l}
}

// newOrderNo builds the human-readable reference from the public id so the
// two are correlated without exposing anything sequential.
func newOrderNo(publicID string, now time.Time) string {
	tail := publicID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(tail))
}

func (uc *orderUC) Create(ctx context.Context, p CreateOrderParams) (*model.Order, *model.Payment, error) {
	if p.AmountCents <= 0 || !model.ValidCurrency(p.Currency) {
		return nil, nil, domain.ErrInvalidArgument
	}
	if p.Provider == "" {
		p.Provider = uc.gateway.Name()
	}

	now := time.Now()
	publicID := ulid.Make().String()
	o, err := model.NewOrder(uuid.NewString(), publicID, newOrderNo(publicID, now), p.UserID, p.Type, p.AmountCents, p.Currency, p.Breakdown)
	if err != nil {
		return nil, nil, err
	}
	o.ReferenceID = p.ReferenceID
	o.ReferenceType = p.ReferenceType
	o.Meta = p.Meta
	ttl := uc.defaultTTL
	if p.ExpiresInMinutes > 0 {
		ttl = time.Duration(p.ExpiresInMinutes) * time.Minute
	}
	exp := now.Add(ttl)
	o.ExpiresAt = &exp

	pay := &model.Payment{
		ID:        uuid.NewString(),
		PublicID:  ulid.Make().String(),
		OrderID:   o.ID,
		Provider:  p.Provider,
		Status:    model.PaymentStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := uc.orders.Save(ctx, qx, o); err != nil {
			return err
		}
		return uc.payments.Save(ctx, qx, pay)
	})
	if err != nil {
		return nil, nil, err
	}
	uc.log.Info().Str("order", o.PublicID).Str("order_no", o.OrderNo).Int64("amount", o.AmountCents).Str("currency", o.Currency).Msg("order created")
	return o, pay, nil
}

func (uc *orderUC) Get(ctx context.Context, publicID string) (*model.Order, []*model.Payment, error) {
	o, err := uc.orders.FindByPublicID(ctx, nil, publicID)
	if err != nil {
		return nil, nil, err
	}
	if o.IsExpired(time.Now()) {
		o.Status = model.OrderStatusExpired
	}
	pays, err := uc.payments.ListByOrder(ctx, nil, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, pays, nil
}

func (uc *orderUC) ListByUser(ctx context.Context, userID string, f repository.OrderFilter) ([]*model.Order, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return uc.orders.ListByUser(ctx, nil, userID, f)
}

func (uc *orderUC) Cancel(ctx context.Context, userID, publicID string) (*model.Order, error) {
	var out *model.Order
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		o, err := uc.orders.FindByPublicID(ctx, qx, publicID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domain.ErrForbidden
		}
		if o.IsExpired(time.Now()) {
			return domain.ErrConflict
		}
		if !o.CanTransition(model.OrderStatusCancelled) {
			return domain.ErrConflict
		}
		if err := o.Transition(model.OrderStatusCancelled); err != nil {
			return domain.ErrConflict
		}
		if err := uc.orders.UpdateStatus(ctx, qx, o.ID, o.Status, nil); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("order", publicID).Msg("order cancelled")
	return out, nil
}

func (uc *orderUC) Refund(ctx context.Context, userID, publicID, reason string) (*model.Order, error) {
	var out *model.Order
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		// Row lock serializes concurrent refund attempts; the second caller
		// sees REFUNDED and stops before any provider call.
		o, err := uc.orders.FindByPublicID(ctx, qx, publicID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domain.ErrForbidden
		}
		if o.Status == model.OrderStatusRefunded {
			return domain.ErrConflict
		}
		if o.Status != model.OrderStatusPaid {
			return domain.ErrInvalidState
		}

		pays, err := uc.payments.ListByOrder(ctx, qx, o.ID)
		if err != nil {
			return err
		}
		var paid *model.Payment
		for _, p := range pays {
			if p.Status == model.PaymentStatusSucceeded {
				paid = p
				break
			}
		}
		if paid == nil {
			return domain.ErrInvalidState
		}

		refundID, err := uc.gateway.Refund(ctx, paid.IntentID, o.AmountCents, reason)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
		}
		uc.log.Info().Str("order", publicID).Str("refund_id", refundID).Msg("provider refund executed")

		if err := uc.payments.UpdateStatus(ctx, qx, paid.ID, model.PaymentStatusRefunded, nil, nil); err != nil {
			return err
		}
		if err := o.Transition(model.OrderStatusRefunded); err != nil {
			return domain.ErrConflict
		}
		if err := uc.orders.UpdateStatus(ctx, qx, o.ID, o.Status, nil); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *orderUC) ExpirePending(ctx context.Context) (int, error) {
	return uc.orders.MarkExpired(ctx, nil, time.Now())
}
