package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// VerifyStatus is what the client-side polling fallback reports.
type VerifyStatus string

const (
	VerifyStatusPaid       VerifyStatus = "paid"       // webhook applied, membership updated
	VerifyStatusProcessing VerifyStatus = "processing" // provider says paid, webhook not applied yet; keep polling
	VerifyStatusPending    VerifyStatus = "pending"    // checkout still open
	VerifyStatusFailed     VerifyStatus = "failed"     // terminal, show retry CTA
)

type VerifyResult struct {
	Status VerifyStatus `json:"status"`
	Order  *model.Order `json:"order,omitempty"`
}

// CheckoutUseCase validates a membership operation against the current
// membership, creates the order, and opens the provider checkout.
type CheckoutUseCase interface {
	Checkout(ctx context.Context, userID, levelID string, op model.MembershipOperation) (*model.Order, string, error)
	// CreateOrder is the generic ledger entry point: any priced intent, not
	// just membership operations, gets an order plus an open checkout.
	CreateOrder(ctx context.Context, p CreateOrderParams, description string) (*model.Order, *model.Payment, string, error)
	// VerifyPayment is strictly read-only; the webhook owns all mutation.
	VerifyPayment(ctx context.Context, userID, sessionID string) (*VerifyResult, error)
}

type checkoutUC struct {
	memberships MembershipUseCase
	orders      OrderUseCase
	orderRepo   repository.OrderRepository
	payments    repository.PaymentRepository
	gateway     adapter.PaymentGateway
	successURL  string
	cancelURL   string
	log         *zerolog.Logger
}

func NewCheckoutUseCase(memberships MembershipUseCase, orders OrderUseCase, orderRepo repository.OrderRepository, payments repository.PaymentRepository, gateway adapter.PaymentGateway, successURL, cancelURL string, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		memberships: memberships,
		orders:      orders,
		orderRepo:   orderRepo,
		payments:    payments,
		gateway:     gateway,
		successURL:  successURL,
		cancelURL:   cancelURL,
		log:         &l,
	}
}

func (uc *checkoutUC) Checkout(ctx context.Context, userID, levelID string, op model.MembershipOperation) (*model.Order, string, error) {
	// Business-rule violations are detected before any write.
	level, err := uc.memberships.ValidateOperation(ctx, userID, levelID, op)
	if err != nil {
		metrics.IncCheckoutSession("rejected")
		return nil, "", err
	}

	refType := "membership_level"
	order, payment, err := uc.orders.Create(ctx, CreateOrderParams{
		UserID:        userID,
		Type:          op.OrderType(),
		AmountCents:   level.PriceCents,
		Currency:      level.Currency,
		Breakdown:     model.PriceBreakdown{BaseCents: level.PriceCents},
		ReferenceID:   &level.ID,
		ReferenceType: &refType,
		Meta: map[string]interface{}{
			adapter.MetaOperation: string(op),
			adapter.MetaLevelID:   level.ID,
		},
	})
	if err != nil {
		return nil, "", err
	}

	desc := fmt.Sprintf("%s membership (%s)", level.Name, op)
	url, err := uc.openSession(ctx, order, payment, desc)
	if err != nil {
		return nil, "", err
	}
	uc.log.Info().Str("order", order.PublicID).Str("op", string(op)).Msg("checkout session opened")
	return order, url, nil
}

func (uc *checkoutUC) CreateOrder(ctx context.Context, p CreateOrderParams, description string) (*model.Order, *model.Payment, string, error) {
	order, payment, err := uc.orders.Create(ctx, p)
	if err != nil {
		return nil, nil, "", err
	}
	if description == "" {
		description = fmt.Sprintf("order %s", order.OrderNo)
	}
	url, err := uc.openSession(ctx, order, payment, description)
	if err != nil {
		return nil, nil, "", err
	}
	return order, payment, url, nil
}

// openSession binds the pending payment to a provider checkout. On gateway
// failure the order and payment stay pending; they can be retried or expire
// naturally.
func (uc *checkoutUC) openSession(ctx context.Context, order *model.Order, payment *model.Payment, desc string) (string, error) {
	session, err := uc.gateway.CreateCheckoutSession(ctx, order, payment, uc.successURL, uc.cancelURL, desc)
	if err != nil {
		uc.log.Error().Err(err).Str("order", order.PublicID).Msg("checkout session creation failed")
		metrics.IncCheckoutSession("gateway_error")
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}

	payment.SessionID = session.ID
	payment.Status = model.PaymentStatusPending
	payment.UpdatedAt = time.Now()
	if err := uc.payments.Save(ctx, nil, payment); err != nil {
		return "", err
	}
	metrics.IncCheckoutSession("created")
	return session.URL, nil
}

func (uc *checkoutUC) VerifyPayment(ctx context.Context, userID, sessionID string) (*VerifyResult, error) {
	payment, err := uc.payments.FindBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	order, err := uc.orderRepo.FindByID(ctx, nil, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}

	// Local state first: once the webhook landed this is authoritative.
	switch payment.Status {
	case model.PaymentStatusSucceeded, model.PaymentStatusRefunded:
		return &VerifyResult{Status: VerifyStatusPaid, Order: order}, nil
	case model.PaymentStatusFailed, model.PaymentStatusExpired:
		return &VerifyResult{Status: VerifyStatusFailed, Order: order}, nil
	}

	session, err := uc.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	switch {
	case session.PaymentStatus == "paid":
		// Money moved but the webhook has not been applied yet. Let the
		// client keep polling; mutation stays with the webhook.
		return &VerifyResult{Status: VerifyStatusProcessing, Order: order}, nil
	case session.Status == "expired":
		return &VerifyResult{Status: VerifyStatusFailed, Order: order}, nil
	default:
		return &VerifyResult{Status: VerifyStatusPending, Order: order}, nil
	}
}
