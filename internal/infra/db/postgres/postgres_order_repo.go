package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

const orderColumns = `id, public_id, order_no, user_id, type, status, amount_cents, currency, base_cents, tax_cents, discount_cents, reference_id, reference_type, meta, created_at, updated_at, paid_at, expires_at`

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) Save(ctx context.Context, qx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, public_id, order_no, user_id, type, status, amount_cents, currency, base_cents, tax_cents, discount_cents, reference_id, reference_type, meta, created_at, updated_at, paid_at, expires_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  status=$6, meta=$14, updated_at=$16, paid_at=$17, expires_at=$18;`

	_, err := execSQL(ctx, r.pool, qx, q,
		o.ID, o.PublicID, o.OrderNo, o.UserID, o.Type, o.Status, o.AmountCents, o.Currency,
		o.Breakdown.BaseCents, o.Breakdown.TaxCents, o.Breakdown.DiscountCents,
		o.ReferenceID, o.ReferenceType, o.Meta, o.CreatedAt, o.UpdatedAt, o.PaidAt, o.ExpiresAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	if err := row.Scan(&o.ID, &o.PublicID, &o.OrderNo, &o.UserID, &o.Type, &o.Status, &o.AmountCents, &o.Currency,
		&o.Breakdown.BaseCents, &o.Breakdown.TaxCents, &o.Breakdown.DiscountCents,
		&o.ReferenceID, &o.ReferenceType, &o.Meta, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) FindByPublicID(ctx context.Context, qx repository.Tx, publicID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE public_id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, publicID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string, f repository.OrderFilter) ([]*model.Order, int, error) {
	args := []interface{}{userID}
	where := `WHERE user_id=$1`
	if f.Status != "" {
		where += ` AND status=$2`
		args = append(args, f.Status)
	}

	countQ := `SELECT COUNT(*) FROM orders ` + where + `;`
	row, err := pickRow(ctx, r.pool, qx, countQ, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	q := `SELECT ` + orderColumns + ` FROM orders ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2) + `;`
	args = append(args, f.Limit, f.Offset)
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, 0, err
		}
		return nil, 0, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) error {
	const q = `UPDATE orders SET status=$2, paid_at=COALESCE($3, paid_at), updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, status, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) MarkExpired(ctx context.Context, qx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE orders SET status='expired', updated_at=NOW() WHERE status='pending' AND expires_at IS NOT NULL AND expires_at < $1;`
	tag, err := execSQL(ctx, r.pool, qx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}
