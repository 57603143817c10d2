package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, email, displayName, password string) (*model.User, error)
	// Authenticate returns ErrForbidden for a wrong password and ErrNotFound
	// for an unknown email; callers should collapse both for the client.
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, log: &l}
}

func (uc *userUC) Register(ctx context.Context, email, displayName, password string) (*model.User, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password too short", domain.ErrInvalidArgument)
	}
	if _, err := uc.users.FindByEmail(ctx, nil, email); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := model.NewUser(uuid.NewString(), email, displayName, string(hash))
	if err != nil {
		return nil, err
	}
	if err := uc.users.Save(ctx, nil, user); err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (uc *userUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := uc.users.FindByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrForbidden
	}
	user.LastActiveAt = time.Now()
	if err := uc.users.Save(ctx, nil, user); err != nil {
		uc.log.Warn().Err(err).Str("user_id", user.ID).Msg("cannot update last active time")
	}
	return user, nil
}

func (uc *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return uc.users.FindByID(ctx, nil, id)
}
