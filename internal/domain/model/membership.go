package model

import (
	"time"

	"membership-platform/internal/domain"
)

type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusExpired   MembershipStatus = "expired"
	MembershipStatusCancelled MembershipStatus = "cancelled"
)

// MembershipOperation names the effect a paid order has on a membership.
type MembershipOperation string

const (
	OperationNew       MembershipOperation = "NEW"
	OperationExtend    MembershipOperation = "EXTEND"
	OperationUpgrade   MembershipOperation = "UPGRADE"
	OperationDowngrade MembershipOperation = "DOWNGRADE"
)

// ParseMembershipOperation validates an externally supplied operation name.
func ParseMembershipOperation(s string) (MembershipOperation, error) {
	switch MembershipOperation(s) {
	case OperationNew, OperationExtend, OperationUpgrade, OperationDowngrade:
		return MembershipOperation(s), nil
	}
	return "", domain.ErrInvalidArgument
}

// OrderType maps the membership operation to the order type it is billed as.
func (op MembershipOperation) OrderType() OrderType {
	switch op {
	case OperationExtend:
		return OrderTypeRenewal
	case OperationUpgrade:
		return OrderTypeUpgrade
	case OperationDowngrade:
		return OrderTypeDowngrade
	default:
		return OrderTypePurchase
	}
}

// Membership is a user's entitlement instance. The schema keeps at most one
// active row per user; upgrades and downgrades mutate that row rather than
// stacking new ones.
type Membership struct {
	ID        string // UUID
	UserID    string
	LevelID   string
	Status    MembershipStatus
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredBy derives expiry at read time; persisting the transition is the
// sweep worker's job.
func (m *Membership) ExpiredBy(now time.Time) bool {
	return m.Status == MembershipStatusActive && now.After(m.EndDate)
}

// NewMembership creates an active membership for a user on a level.
func NewMembership(id, userID string, level *MembershipLevel) (*Membership, error) {
	if id == "" || userID == "" || level.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Membership{
		ID:        id,
		UserID:    userID,
		LevelID:   level.ID,
		Status:    MembershipStatusActive,
		StartDate: now,
		EndDate:   now.Add(level.Duration()),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Extend pushes the end date out by the level's duration, anchored at
// max(now, EndDate) so renewing early never burns unused time.
func (m *Membership) Extend(level *MembershipLevel, now time.Time) {
	anchor := m.EndDate
	if now.After(anchor) {
		anchor = now
	}
	m.EndDate = anchor.Add(level.Duration())
	m.Status = MembershipStatusActive
	m.UpdatedAt = now
}
