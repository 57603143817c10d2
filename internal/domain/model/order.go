package model

import (
	"time"

	"membership-platform/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // created; awaiting payment
	OrderStatusPaid      OrderStatus = "paid"      // a payment attempt succeeded
	OrderStatusRefunded  OrderStatus = "refunded"  // provider refund executed
	OrderStatusCancelled OrderStatus = "cancelled" // owner cancelled before paying
	OrderStatusExpired   OrderStatus = "expired"   // expires_at passed while pending
)

type OrderType string

const (
	OrderTypePurchase  OrderType = "purchase"
	OrderTypeRenewal   OrderType = "renewal"
	OrderTypeUpgrade   OrderType = "upgrade"
	OrderTypeDowngrade OrderType = "downgrade"
)

// orderTransitions is the full set of legal status moves. Everything not
// listed is rejected; paid/refunded/cancelled/expired have no way back.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// PriceBreakdown decomposes the gross amount. All values are minor units;
// Base + Tax - Discount must equal the order's AmountCents.
type PriceBreakdown struct {
	BaseCents     int64 `json:"base_cents"`
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
}

// Order records an intent to pay, independent of any payment provider.
// PublicID is the only identifier ever exposed outside the service.
type Order struct {
	ID          string // UUID, internal only
	PublicID    string // ULID, safe to hand to clients and providers
	OrderNo     string // human-readable reference, e.g. ORD-20260831-4F2K9Q
	UserID      string
	Type        OrderType
	Status      OrderStatus
	AmountCents int64
	Currency    string
	Breakdown   PriceBreakdown
	// ReferenceID/ReferenceType point at the domain object being paid for
	// (for membership orders: the level id).
	ReferenceID   *string
	ReferenceType *string
	Meta          map[string]interface{}
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	ExpiresAt     *time.Time
}

// CanTransition reports whether moving to next is legal from the current status.
func (o *Order) CanTransition(next OrderStatus) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Transition moves the order to next or fails with ErrInvalidState. It never
// leaves a terminal state.
func (o *Order) Transition(next OrderStatus) error {
	if !o.CanTransition(next) {
		return domain.ErrInvalidState
	}
	now := time.Now()
	o.Status = next
	o.UpdatedAt = now
	if next == OrderStatusPaid {
		o.PaidAt = &now
	}
	return nil
}

// IsExpired derives expiry for a pending order without persisting it.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == OrderStatusPending && o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

// NewOrder validates inputs and constructs a pending order. ID assignment is
// left to the use case so tests can inject deterministic identifiers.
func NewOrder(id, publicID, orderNo, userID string, typ OrderType, amountCents int64, currency string, breakdown PriceBreakdown) (*Order, error) {
	if id == "" || publicID == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amountCents <= 0 || !ValidCurrency(currency) {
		return nil, domain.ErrInvalidArgument
	}
	switch typ {
	case OrderTypePurchase, OrderTypeRenewal, OrderTypeUpgrade, OrderTypeDowngrade:
	default:
		return nil, domain.ErrInvalidArgument
	}
	if breakdown.BaseCents+breakdown.TaxCents-breakdown.DiscountCents != amountCents {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:          id,
		PublicID:    publicID,
		OrderNo:     orderNo,
		UserID:      userID,
		Type:        typ,
		Status:      OrderStatusPending,
		AmountCents: amountCents,
		Currency:    currency,
		Breakdown:   breakdown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
