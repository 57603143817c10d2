package repository

import (
	"context"
	"time"

	"membership-platform/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, qx Tx, p *model.Payment) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Payment, error)
	FindByPublicID(ctx context.Context, qx Tx, publicID string) (*model.Payment, error)
	FindBySessionID(ctx context.Context, qx Tx, sessionID string) (*model.Payment, error)
	ListByOrder(ctx context.Context, qx Tx, orderID string) ([]*model.Payment, error)
	UpdateStatus(ctx context.Context, qx Tx, id string, status model.PaymentStatus, intentID *string, paidAt *time.Time) error
	// ListPendingOlderThan feeds the reconciler with stale checkout attempts.
	ListPendingOlderThan(ctx context.Context, qx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
