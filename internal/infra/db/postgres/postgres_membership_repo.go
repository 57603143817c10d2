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

var _ repository.MembershipRepository = (*membershipRepo)(nil)

const membershipColumns = `id, user_id, level_id, status, start_date, end_date, created_at, updated_at`

type membershipRepo struct{ pool *pgxpool.Pool }

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

func (r *membershipRepo) Save(ctx context.Context, qx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (
  id, user_id, level_id, status, start_date, end_date, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (id) DO UPDATE SET
  level_id=$3, status=$4, start_date=$5, end_date=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, qx, q, m.ID, m.UserID, m.LevelID, m.Status, m.StartDate, m.EndDate, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanMembership(row pgx.Row) (*model.Membership, error) {
	m := &model.Membership{}
	if err := row.Scan(&m.ID, &m.UserID, &m.LevelID, &m.Status, &m.StartDate, &m.EndDate, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *membershipRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

func (r *membershipRepo) FindActiveByUser(ctx context.Context, qx repository.Tx, userID string, now time.Time) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 AND status='active' AND end_date >= $2`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += " LIMIT 1;"
	row, err := pickRow(ctx, r.pool, qx, q, userID, now)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

func (r *membershipRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Membership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *membershipRepo) MarkExpired(ctx context.Context, qx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE memberships SET status='expired', updated_at=NOW() WHERE status='active' AND end_date < $1;`
	tag, err := execSQL(ctx, r.pool, qx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}
