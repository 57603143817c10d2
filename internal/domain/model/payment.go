package model

import "time"

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated" // row created, no provider session yet
	PaymentStatusPending   PaymentStatus = "pending"   // checkout session open; awaiting the provider
	PaymentStatusSucceeded PaymentStatus = "succeeded" // provider confirmed the charge
	PaymentStatusFailed    PaymentStatus = "failed"    // provider reported failure
	PaymentStatusExpired   PaymentStatus = "expired"   // session expired unpaid
	PaymentStatusRefunded  PaymentStatus = "refunded"  // charge returned
)

// IsTerminal reports whether no further provider event can move this status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment is one attempt, via a specific provider, to fulfil an Order.
// An order may accumulate several attempts (retried checkouts); at most one
// ever reaches succeeded.
type Payment struct {
	ID        string // UUID
	PublicID  string // ULID embedded in provider metadata
	OrderID   string // UUID -> Order
	Provider  string // e.g. "STRIPE"
	SessionID string // provider checkout session id
	IntentID  string // provider payment intent id, set once known
	Status    PaymentStatus
	Method    string // payment method descriptor, e.g. "card"
	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}
