package model

import (
	"time"

	"membership-platform/internal/domain"
)

// MembershipLevel is a purchasable tier. Priority is a strict total order
// over levels: higher number means a more privileged tier, and upgrade /
// downgrade validation compares priorities strictly.
type MembershipLevel struct {
	ID           string
	Name         string
	PriceCents   int64 // minor units, to avoid float errors
	Currency     string
	Priority     int
	DurationDays int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (l *MembershipLevel) IsZero() bool { return l == nil || l.ID == "" }

// Duration returns the entitlement length the level grants.
func (l *MembershipLevel) Duration() time.Duration {
	return time.Duration(l.DurationDays) * 24 * time.Hour
}

// NewMembershipLevel validates and constructs a level.
func NewMembershipLevel(id, name string, priceCents int64, currency string, priority, durationDays int) (*MembershipLevel, error) {
	if id == "" || name == "" || priceCents <= 0 || priority <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !ValidCurrency(currency) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &MembershipLevel{
		ID:           id,
		Name:         name,
		PriceCents:   priceCents,
		Currency:     currency,
		Priority:     priority,
		DurationDays: durationDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidCurrency reports whether s is a plausible ISO-4217 alpha code.
func ValidCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
