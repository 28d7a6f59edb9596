package service

import (
	"context"
	"errors"
	"fmt"

	"inkpost/internal/billing"
	"inkpost/internal/model"
	"inkpost/internal/repository"

	"github.com/rs/zerolog"
)

var ErrCustomerCreate = errors.New("could not create billing customer")

// CheckoutService starts premium subscription checkouts.
type CheckoutService interface {
	// CreateCheckoutSession returns the hosted checkout URL for the user.
	CreateCheckoutSession(ctx context.Context, user *model.User) (string, error)
}

type checkoutService struct {
	userRepo repository.UserRepository
	gateway  billing.Gateway
	logger   zerolog.Logger
}

func NewCheckoutService(userRepo repository.UserRepository, gateway billing.Gateway, logger zerolog.Logger) CheckoutService {
	return &checkoutService{
		userRepo: userRepo,
		gateway:  gateway,
		logger:   logger.With().Str("service", "CheckoutService").Logger(),
	}
}

func (s *checkoutService) CreateCheckoutSession(ctx context.Context, user *model.User) (string, error) {
	customerID, err := s.getOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{CustomerID: customerID, UserID: user.ID})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Str("customer_id", customerID).Msg("Failed to create checkout session")
		return "", err
	}
	return url, nil
}

// getOrCreateCustomer returns the user's billing customer, creating one when
// none is stored. The store keeps the first id written, so concurrent
// checkouts converge on a single customer.
func (s *checkoutService) getOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.BillingCustomerID != nil && *user.BillingCustomerID != "" {
		return *user.BillingCustomerID, nil
	}

	created, err := s.gateway.CreateCustomer(ctx, billing.CustomerParams{UserID: user.ID, Email: user.Email})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create billing customer")
		return "", fmt.Errorf("%w: %v", ErrCustomerCreate, err)
	}

	stored, err := s.userRepo.SetBillingCustomerID(ctx, user.ID, created)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Str("customer_id", created).Msg("Failed to store billing customer")
		return "", err
	}
	if stored != created {
		s.logger.Warn().Str("user_id", user.ID).Str("customer_id", stored).Str("discarded_customer_id", created).Msg("User already had a billing customer")
	}
	user.BillingCustomerID = &stored
	return stored, nil
}
