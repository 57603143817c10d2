package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
)

var _ repository.MembershipLevelRepository = (*levelRepo)(nil)

const levelColumns = `id, name, price_cents, currency, priority, duration_days, created_at, updated_at`

type levelRepo struct{ pool *pgxpool.Pool }

func NewLevelRepo(pool *pgxpool.Pool) *levelRepo {
	return &levelRepo{pool: pool}
}

func (r *levelRepo) Save(ctx context.Context, qx repository.Tx, l *model.MembershipLevel) error {
	const q = `
INSERT INTO membership_levels (
  id, name, price_cents, currency, priority, duration_days, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (id) DO UPDATE SET
  name=$2, price_cents=$3, currency=$4, priority=$5, duration_days=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, qx, q, l.ID, l.Name, l.PriceCents, l.Currency, l.Priority, l.DurationDays, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *levelRepo) Delete(ctx context.Context, qx repository.Tx, id string) error {
	const q = `DELETE FROM membership_levels WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanLevel(row pgx.Row) (*model.MembershipLevel, error) {
	l := &model.MembershipLevel{}
	if err := row.Scan(&l.ID, &l.Name, &l.PriceCents, &l.Currency, &l.Priority, &l.DurationDays, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return l, nil
}

func (r *levelRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.MembershipLevel, error) {
	const q = `SELECT ` + levelColumns + ` FROM membership_levels WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanLevel(row)
}

func (r *levelRepo) ListAll(ctx context.Context, qx repository.Tx) ([]*model.MembershipLevel, error) {
	const q = `SELECT ` + levelColumns + ` FROM membership_levels ORDER BY priority ASC;`
	rows, err := queryRows(ctx, r.pool, qx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.MembershipLevel
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
