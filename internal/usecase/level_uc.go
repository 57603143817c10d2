package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ LevelUseCase = (*levelUC)(nil)

// LevelUseCase manages the membership level catalog. List is public; the
// mutations are admin surface.
type LevelUseCase interface {
	Create(ctx context.Context, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error)
	Update(ctx context.Context, id, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.MembershipLevel, error)
	List(ctx context.Context) ([]*model.MembershipLevel, error)
}

type levelUC struct {
	levels repository.MembershipLevelRepository
	log    *zerolog.Logger
}

func NewLevelUseCase(levels repository.MembershipLevelRepository, logger *zerolog.Logger) *levelUC {
	l := logger.With().Str("component", "LevelUC").Logger()
	return &levelUC{levels: levels, log: &l}
}

// checkPriorityFree keeps the catalog a strict ladder: two levels with the
// same priority would make UPGRADE/DOWNGRADE ambiguous.
func (uc *levelUC) checkPriorityFree(ctx context.Context, priority int, excludeID string) error {
	all, err := uc.levels.ListAll(ctx, nil)
	if err != nil {
		return err
	}
	for _, l := range all {
		if l.ID != excludeID && l.Priority == priority {
			return fmt.Errorf("%w: priority %d is taken by %q", domain.ErrAlreadyExists, priority, l.Name)
		}
	}
	return nil
}

func (uc *levelUC) Create(ctx context.Context, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error) {
	if err := uc.checkPriorityFree(ctx, priority, ""); err != nil {
		return nil, err
	}
	level, err := model.NewMembershipLevel(uuid.NewString(), name, priceCents, currency, priority, durationDays)
	if err != nil {
		return nil, err
	}
	if err := uc.levels.Save(ctx, nil, level); err != nil {
		return nil, err
	}
	uc.log.Info().Str("level_id", level.ID).Str("name", name).Msg("membership level created")
	return level, nil
}

func (uc *levelUC) Update(ctx context.Context, id, name string, priceCents int64, currency string, priority, durationDays int) (*model.MembershipLevel, error) {
	level, err := uc.levels.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := uc.checkPriorityFree(ctx, priority, id); err != nil {
		return nil, err
	}
	updated, err := model.NewMembershipLevel(level.ID, name, priceCents, currency, priority, durationDays)
	if err != nil {
		return nil, err
	}
	updated.CreatedAt = level.CreatedAt
	updated.UpdatedAt = time.Now()
	if err := uc.levels.Save(ctx, nil, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (uc *levelUC) Delete(ctx context.Context, id string) error {
	return uc.levels.Delete(ctx, nil, id)
}

func (uc *levelUC) Get(ctx context.Context, id string) (*model.MembershipLevel, error) {
	return uc.levels.FindByID(ctx, nil, id)
}

func (uc *levelUC) List(ctx context.Context) ([]*model.MembershipLevel, error) {
	return uc.levels.ListAll(ctx, nil)
}
