package repository

import (
	"context"
	"time"

	"membership-platform/internal/domain/model"
)

// OrderFilter narrows ListByUser. Zero values mean "no constraint".
type OrderFilter struct {
	Status model.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	Save(ctx context.Context, qx Tx, o *model.Order) error
	// FindByPublicID locks the row FOR UPDATE when qx is a live transaction.
	FindByPublicID(ctx context.Context, qx Tx, publicID string) (*model.Order, error)
	FindByID(ctx context.Context, qx Tx, id string) (*model.Order, error)
	ListByUser(ctx context.Context, qx Tx, userID string, f OrderFilter) ([]*model.Order, int, error)
	UpdateStatus(ctx context.Context, qx Tx, id string, status model.OrderStatus, paidAt *time.Time) error
	// MarkExpired transitions pending orders whose expires_at has passed.
	// Returns the number of rows affected.
	MarkExpired(ctx context.Context, qx Tx, now time.Time) (int, error)
}
