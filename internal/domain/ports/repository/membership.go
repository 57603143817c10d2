package repository

import (
	"context"
	"time"

	"membership-platform/internal/domain/model"
)

type MembershipRepository interface {
	Save(ctx context.Context, qx Tx, m *model.Membership) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Membership, error)
	// FindActiveByUser returns the single active membership with
	// end_date >= now, or domain.ErrNotFound. Locks FOR UPDATE inside a tx.
	FindActiveByUser(ctx context.Context, qx Tx, userID string, now time.Time) (*model.Membership, error)
	ListByUser(ctx context.Context, qx Tx, userID string) ([]*model.Membership, error)
	// MarkExpired flips active rows whose end_date has passed; returns count.
	MarkExpired(ctx context.Context, qx Tx, now time.Time) (int, error)
}

type MembershipLevelRepository interface {
	Save(ctx context.Context, qx Tx, l *model.MembershipLevel) error
	Delete(ctx context.Context, qx Tx, id string) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.MembershipLevel, error)
	ListAll(ctx context.Context, qx Tx) ([]*model.MembershipLevel, error)
}
