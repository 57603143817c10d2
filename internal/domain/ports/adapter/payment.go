package adapter

import (
	"context"
	"time"

	"membership-platform/internal/domain/model"
)

// Metadata keys embedded into provider checkout sessions so webhook events
// can be mapped back to local state without a secondary lookup table.
const (
	MetaOrderPublicID   = "order_public_id"
	MetaPaymentPublicID = "payment_public_id"
	MetaOperation       = "operation"
	MetaLevelID         = "level_id"
)

// CheckoutSession is the provider-side hosted checkout handle.
type CheckoutSession struct {
	ID        string
	URL       string // redirect target for the member
	ExpiresAt time.Time
}

// SessionStatus is the read-only view returned by RetrieveSession.
type SessionStatus struct {
	ID            string
	Status        string // open | complete | expired
	PaymentStatus string // paid | unpaid
	IntentID      string
	Metadata      map[string]string
}

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.completed"
	EventCheckoutExpired   EventType = "checkout.expired"
	EventPaymentFailed     EventType = "payment.failed"
	EventRefundExecuted    EventType = "refund.executed"
	EventUnknown           EventType = "unknown"
)

// WebhookEvent is a provider event normalized to internal vocabulary.
type WebhookEvent struct {
	ID        string // provider event id, used for delivery dedup
	Type      EventType
	SessionID string
	IntentID  string
	Metadata  map[string]string
}

// PaymentGateway isolates the checkout-session protocol of an external
// processor behind a uniform interface.
type PaymentGateway interface {
	Name() string

	// CreateCheckoutSession opens a hosted checkout for the order's amount
	// and embeds the order/payment public ids into provider metadata.
	CreateCheckoutSession(ctx context.Context, order *model.Order, payment *model.Payment, successURL, cancelURL, description string) (*CheckoutSession, error)

	// RetrieveSession is the client-side verification fallback. It must not
	// mutate any state, local or remote.
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)

	// Refund returns the provider refund id.
	Refund(ctx context.Context, intentID string, amountCents int64, reason string) (string, error)

	// VerifyWebhookSignature fails with domain.ErrSignatureInvalid unless the
	// payload is authentic. Mandatory before any event is trusted.
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) error

	// ParseEvent decodes a verified payload into a normalized event.
	ParseEvent(rawBody []byte) (*WebhookEvent, error)
}
