package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/infra/metrics"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// MembershipUseCase computes and persists the effect of paid orders on a
// user's membership, and validates upgrade/downgrade ordering.
type MembershipUseCase interface {
	// GetActive returns the single active membership joined with its level,
	// or domain.ErrNotFound. Expiry is derived at read time.
	GetActive(ctx context.Context, userID string) (*model.Membership, *model.MembershipLevel, error)

	// ValidateOperation checks an intended operation against the user's
	// current membership before any order is created. Returns the target
	// level on success.
	ValidateOperation(ctx context.Context, userID, targetLevelID string, op model.MembershipOperation) (*model.MembershipLevel, error)

	// ChangeLevel replaces the active membership's level. UPGRADE requires a
	// strictly higher target priority, DOWNGRADE a strictly lower one.
	// Remaining time on the old level is forfeited; the dates restart from
	// now with the new level's duration. Callers must hold the per-user
	// serialization (transaction + advisory lock) via qx.
	ChangeLevel(ctx context.Context, qx repository.Tx, userID, targetLevelID string, op model.MembershipOperation) (*model.Membership, error)

	// ApplyPaidOrder is the side effect invoked by webhook reconciliation,
	// inside the caller's transaction.
	ApplyPaidOrder(ctx context.Context, qx repository.Tx, userID, levelID string, op model.MembershipOperation) (*model.Membership, error)

	// FinishExpired persists derived expiry; returns how many rows flipped.
	FinishExpired(ctx context.Context) (int, error)
}

type membershipUC struct {
	memberships repository.MembershipRepository
	levels      repository.MembershipLevelRepository
	log         *zerolog.Logger
}

func NewMembershipUseCase(memberships repository.MembershipRepository, levels repository.MembershipLevelRepository, logger *zerolog.Logger) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{memberships: memberships, levels: levels, log: &l}
}

func (uc *membershipUC) GetActive(ctx context.Context, userID string) (*model.Membership, *model.MembershipLevel, error) {
	m, err := uc.memberships.FindActiveByUser(ctx, nil, userID, time.Now())
	if err != nil {
		return nil, nil, err
	}
	level, err := uc.levels.FindByID(ctx, nil, m.LevelID)
	if err != nil {
		return nil, nil, err
	}
	return m, level, nil
}

func (uc *membershipUC) ValidateOperation(ctx context.Context, userID, targetLevelID string, op model.MembershipOperation) (*model.MembershipLevel, error) {
	target, err := uc.levels.FindByID(ctx, nil, targetLevelID)
	if err != nil {
		return nil, err
	}

	current, _, err := uc.GetActive(ctx, userID)
	switch op {
	case model.OperationNew:
		if err == nil {
			return nil, domain.ErrActiveMembershipExists
		}
		if err != domain.ErrNotFound {
			return nil, err
		}
		return target, nil
	case model.OperationExtend, model.OperationUpgrade, model.OperationDowngrade:
		if err == domain.ErrNotFound {
			return nil, domain.ErrNoActiveMembership
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, domain.ErrInvalidArgument
	}

	currentLevel, err := uc.levels.FindByID(ctx, nil, current.LevelID)
	if err != nil {
		return nil, err
	}
	if err := checkPriority(currentLevel, target, op); err != nil {
		return nil, err
	}
	return target, nil
}

// checkPriority enforces the strict total order over levels.
func checkPriority(current, target *model.MembershipLevel, op model.MembershipOperation) error {
	switch op {
	case model.OperationExtend:
		if target.ID != current.ID {
			return domain.ErrInvalidOperation
		}
	case model.OperationUpgrade:
		if target.Priority <= current.Priority {
			return domain.ErrInvalidOperation
		}
	case model.OperationDowngrade:
		if target.Priority >= current.Priority {
			return domain.ErrInvalidOperation
		}
	}
	return nil
}

func (uc *membershipUC) ChangeLevel(ctx context.Context, qx repository.Tx, userID, targetLevelID string, op model.MembershipOperation) (*model.Membership, error) {
	if op != model.OperationUpgrade && op != model.OperationDowngrade {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	m, err := uc.memberships.FindActiveByUser(ctx, qx, userID, now)
	if err == domain.ErrNotFound {
		return nil, domain.ErrNoActiveMembership
	}
	if err != nil {
		return nil, err
	}

	currentLevel, err := uc.levels.FindByID(ctx, qx, m.LevelID)
	if err != nil {
		return nil, err
	}
	target, err := uc.levels.FindByID(ctx, qx, targetLevelID)
	if err != nil {
		return nil, err
	}
	if err := checkPriority(currentLevel, target, op); err != nil {
		return nil, err
	}

	// Policy: remaining days on the old level are forfeited.
	m.LevelID = target.ID
	m.StartDate = now
	m.EndDate = now.Add(target.Duration())
	m.Status = model.MembershipStatusActive
	m.UpdatedAt = now
	if err := uc.memberships.Save(ctx, qx, m); err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", userID).Str("level_id", target.ID).Str("op", string(op)).Msg("membership level changed")
	metrics.IncMembershipOperation(string(op))
	return m, nil
}

func (uc *membershipUC) ApplyPaidOrder(ctx context.Context, qx repository.Tx, userID, levelID string, op model.MembershipOperation) (*model.Membership, error) {
	level, err := uc.levels.FindByID(ctx, qx, levelID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	switch op {
	case model.OperationNew:
		if existing, err := uc.memberships.FindActiveByUser(ctx, qx, userID, now); err == nil && existing != nil {
			return nil, domain.ErrActiveMembershipExists
		} else if err != nil && err != domain.ErrNotFound {
			return nil, err
		}
		// A lapsed row the sweep has not flipped yet still occupies the
		// one-active-per-user unique index; retire it before inserting.
		if err := uc.retireLapsed(ctx, qx, userID, now); err != nil {
			return nil, err
		}
		m, err := model.NewMembership(uuid.NewString(), userID, level)
		if err != nil {
			return nil, err
		}
		if err := uc.memberships.Save(ctx, qx, m); err != nil {
			return nil, err
		}
		uc.log.Info().Str("user_id", userID).Str("level_id", levelID).Msg("membership created")
		metrics.IncMembershipOperation(string(op))
		return m, nil

	case model.OperationExtend:
		m, err := uc.memberships.FindActiveByUser(ctx, qx, userID, now)
		if err == domain.ErrNotFound {
			return nil, domain.ErrNoActiveMembership
		}
		if err != nil {
			return nil, err
		}
		if m.LevelID != level.ID {
			return nil, domain.ErrInvalidOperation
		}
		m.Extend(level, now)
		if err := uc.memberships.Save(ctx, qx, m); err != nil {
			return nil, err
		}
		uc.log.Info().Str("user_id", userID).Time("end_date", m.EndDate).Msg("membership extended")
		metrics.IncMembershipOperation(string(op))
		return m, nil

	case model.OperationUpgrade, model.OperationDowngrade:
		return uc.ChangeLevel(ctx, qx, userID, levelID, op)
	}
	return nil, domain.ErrInvalidArgument
}

// retireLapsed persists derived expiry for the user's active row whose end
// date has passed, inside the caller's transaction.
func (uc *membershipUC) retireLapsed(ctx context.Context, qx repository.Tx, userID string, now time.Time) error {
	all, err := uc.memberships.ListByUser(ctx, qx, userID)
	if err != nil {
		return err
	}
	for _, m := range all {
		if !m.ExpiredBy(now) {
			continue
		}
		m.Status = model.MembershipStatusExpired
		m.UpdatedAt = now
		if err := uc.memberships.Save(ctx, qx, m); err != nil {
			return err
		}
	}
	return nil
}

func (uc *membershipUC) FinishExpired(ctx context.Context) (int, error) {
	return uc.memberships.MarkExpired(ctx, nil, time.Now())
}
