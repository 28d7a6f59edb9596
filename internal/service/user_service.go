package service

import (
	"context"
	"errors"

	"inkpost/internal/model"
	"inkpost/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrBlogNotFound = errors.New("blog not found")
	ErrForbidden    = errors.New("forbidden")
)

type UserService interface {
	// GetOrProvision returns the user with the given id, creating a free-tier
	// record on first sight.
	GetOrProvision(ctx context.Context, id, email string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) GetOrProvision(ctx context.Context, id, email string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &model.User{ID: id, Email: email, Tier: model.TierFree}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to provision user")
		return nil, err
	}
	s.logger.Info().Str("user_id", id).Msg("Provisioned new user")
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
