package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, public_id, order_id, provider, session_id, intent_id, status, method, created_at, updated_at, paid_at`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, public_id, order_id, provider, session_id, intent_id, status, method, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  session_id=$5, intent_id=$6, status=$7, method=$8, updated_at=$10, paid_at=$11;`

	_, err := execSQL(ctx, r.pool, qx, q,
		p.ID, p.PublicID, p.OrderID, p.Provider, p.SessionID, p.IntentID, p.Status, p.Method, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.PublicID, &p.OrderID, &p.Provider, &p.SessionID, &p.IntentID, &p.Status, &p.Method, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) findBy(ctx context.Context, qx repository.Tx, column, value string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + column + `=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, value)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	return r.findBy(ctx, qx, "id", id)
}

func (r *paymentRepo) FindByPublicID(ctx context.Context, qx repository.Tx, publicID string) (*model.Payment, error) {
	return r.findBy(ctx, qx, "public_id", publicID)
}

func (r *paymentRepo) FindBySessionID(ctx context.Context, qx repository.Tx, sessionID string) (*model.Payment, error) {
	return r.findBy(ctx, qx, "session_id", sessionID)
}

func (r *paymentRepo) ListByOrder(ctx context.Context, qx repository.Tx, orderID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, qx, q, orderID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, intentID *string, paidAt *time.Time) error {
	const q = `UPDATE payments SET status=$2, intent_id=COALESCE(NULLIF($3,''), intent_id), paid_at=COALESCE($4, paid_at), updated_at=NOW() WHERE id=$1;`
	var intent string
	if intentID != nil {
		intent = *intentID
	}
	_, err := execSQL(ctx, r.pool, qx, q, id, status, intent, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, olderThan, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
