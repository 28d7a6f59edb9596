package service

import (
	"context"
	"fmt"
	"time"

	"inkpost/internal/billing"
	"inkpost/internal/model"
	"inkpost/internal/notify"
	"inkpost/internal/repository"

	"github.com/rs/zerolog"
)

// Outcome is the explicit result of applying one billing event.
type Outcome string

const (
	OutcomeApplied              Outcome = "applied"
	OutcomeSkippedNoMatch       Outcome = "skipped_no_match"
	OutcomeSkippedMissingFields Outcome = "skipped_missing_fields"
	OutcomeSkippedStale         Outcome = "skipped_stale"
	OutcomeIgnored              Outcome = "ignored"
	OutcomeFailed               Outcome = "failed"
)

// Publisher receives every applied change. Publish runs on the webhook path
// and must not wait on consumers. *notify.Broker satisfies it.
type Publisher interface {
	Publish(ctx context.Context, change notify.SubscriptionChanged) error
}

// Reconciler mirrors billing provider state onto user records. Every write is
// a full overwrite of the subscription fields derived from the event itself,
// so redelivering an event reproduces the same state.
type Reconciler struct {
	users     repository.UserRepository
	gateway   billing.Gateway
	publisher Publisher
	logger    zerolog.Logger
}

// NewReconciler creates a Reconciler. publisher may be nil.
func NewReconciler(users repository.UserRepository, gateway billing.Gateway, publisher Publisher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		users:     users,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger.With().Str("service", "Reconciler").Logger(),
	}
}

// Dispatch routes a verified event to its handler. Unrecognised types are
// acknowledged with OutcomeIgnored.
func (r *Reconciler) Dispatch(ctx context.Context, ev *billing.Event) (Outcome, error) {
	switch ev.Type {
	case billing.EventCheckoutSessionCompleted:
		if ev.CheckoutSession == nil {
			return OutcomeSkippedMissingFields, nil
		}
		return r.OnCheckoutCompleted(ctx, ev, *ev.CheckoutSession)
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated:
		if ev.Subscription == nil {
			return OutcomeSkippedMissingFields, nil
		}
		return r.OnSubscriptionCreatedOrUpdated(ctx, ev, *ev.Subscription)
	case billing.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return OutcomeSkippedMissingFields, nil
		}
		return r.OnSubscriptionDeleted(ctx, ev, *ev.Subscription)
	default:
		r.logger.Debug().Str("event_id", ev.ID).Str("event_type", string(ev.Type)).Msg("Ignoring unhandled billing event")
		return OutcomeIgnored, nil
	}
}

// OnCheckoutCompleted upgrades the customer's user to premium using the
// subscription state fetched from the provider.
func (r *Reconciler) OnCheckoutCompleted(ctx context.Context, ev *billing.Event, session billing.CheckoutSession) (Outcome, error) {
	log := r.eventLogger(ev, session.CustomerID, session.SubscriptionID)

	if session.CustomerID == "" || session.SubscriptionID == "" {
		log.Info().Msg("Checkout session has no customer or subscription, skipping")
		return OutcomeSkippedMissingFields, nil
	}

	user, err := r.users.GetUserByBillingCustomerID(ctx, session.CustomerID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up user by billing customer")
		return OutcomeFailed, fmt.Errorf("find user by customer %s: %w", session.CustomerID, err)
	}
	if user == nil {
		log.Warn().Msg("No user for billing customer, skipping")
		return OutcomeSkippedNoMatch, nil
	}

	sub, err := r.gateway.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to fetch subscription")
		return OutcomeFailed, err
	}

	premium := model.TierPremium
	return r.apply(ctx, ev, log, user, model.SubscriptionFields{
		Tier:                      &premium,
		BillingCustomerID:         &session.CustomerID,
		BillingSubscriptionID:     &session.SubscriptionID,
		BillingSubscriptionStatus: &sub.Status,
	})
}

// OnSubscriptionCreatedOrUpdated sets the tier from the subscription status.
func (r *Reconciler) OnSubscriptionCreatedOrUpdated(ctx context.Context, ev *billing.Event, sub billing.Subscription) (Outcome, error) {
	log := r.eventLogger(ev, sub.CustomerID, sub.ID)

	user, outcome, err := r.resolve(ctx, log, sub.CustomerID)
	if user == nil {
		return outcome, err
	}

	tier := model.TierFree
	if billing.IsActiveLike(sub.Status) {
		tier = model.TierPremium
	}
	fields := model.SubscriptionFields{
		Tier:                      &tier,
		BillingCustomerID:         &sub.CustomerID,
		BillingSubscriptionStatus: &sub.Status,
	}
	if sub.ID != "" {
		fields.BillingSubscriptionID = &sub.ID
	}
	return r.apply(ctx, ev, log, user, fields)
}

// OnSubscriptionDeleted downgrades the user to free. The billing customer id
// is kept so the user can subscribe again.
func (r *Reconciler) OnSubscriptionDeleted(ctx context.Context, ev *billing.Event, sub billing.Subscription) (Outcome, error) {
	log := r.eventLogger(ev, sub.CustomerID, sub.ID)

	user, outcome, err := r.resolve(ctx, log, sub.CustomerID)
	if user == nil {
		return outcome, err
	}

	free := model.TierFree
	canceled := billing.StatusCanceled
	return r.apply(ctx, ev, log, user, model.SubscriptionFields{
		Tier:                      &free,
		ClearSubscriptionID:       true,
		BillingSubscriptionStatus: &canceled,
	})
}

// resolve finds the user for a customer id. A nil user comes with the outcome
// to report.
func (r *Reconciler) resolve(ctx context.Context, log zerolog.Logger, customerID string) (*model.User, Outcome, error) {
	if customerID == "" {
		log.Info().Msg("Subscription has no customer, skipping")
		return nil, OutcomeSkippedMissingFields, nil
	}
	user, err := r.users.GetUserByBillingCustomerID(ctx, customerID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up user by billing customer")
		return nil, OutcomeFailed, fmt.Errorf("find user by customer %s: %w", customerID, err)
	}
	if user == nil {
		log.Warn().Msg("No user for billing customer, skipping")
		return nil, OutcomeSkippedNoMatch, nil
	}
	return user, "", nil
}

func (r *Reconciler) apply(ctx context.Context, ev *billing.Event, log zerolog.Logger, user *model.User, fields model.SubscriptionFields) (Outcome, error) {
	if !ev.Created.IsZero() {
		at := ev.Created
		fields.EventAt = &at
	}

	updated, err := r.users.UpdateSubscriptionFields(ctx, user.ID, fields)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to write subscription fields")
		return OutcomeFailed, fmt.Errorf("update subscription fields for user %s: %w", user.ID, err)
	}
	if updated == nil {
		return r.explainSkippedWrite(ctx, log, user.ID, fields)
	}

	log.Info().
		Str("user_id", updated.ID).
		Str("previous_tier", string(user.Tier)).
		Str("tier", string(updated.Tier)).
		Msg("Applied billing event")

	r.publish(ctx, log, ev, user.Tier, updated)
	return OutcomeApplied, nil
}

// explainSkippedWrite tells a stale event apart from a user row that vanished
// between resolve and write.
func (r *Reconciler) explainSkippedWrite(ctx context.Context, log zerolog.Logger, userID string, fields model.SubscriptionFields) (Outcome, error) {
	if fields.EventAt != nil {
		current, err := r.users.GetUserByID(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to re-read user after skipped write")
			return OutcomeFailed, fmt.Errorf("fetch user %s: %w", userID, err)
		}
		if current != nil {
			log.Info().Str("user_id", userID).Msg("Billing event is older than the last applied one, skipping")
			return OutcomeSkippedStale, nil
		}
	}
	log.Warn().Str("user_id", userID).Msg("User disappeared before the billing event was applied, skipping")
	return OutcomeSkippedNoMatch, nil
}

func (r *Reconciler) publish(ctx context.Context, log zerolog.Logger, ev *billing.Event, previous model.Tier, u *model.User) {
	if r.publisher == nil {
		return
	}
	change := notify.SubscriptionChanged{
		UserID:       u.ID,
		PreviousTier: previous,
		Tier:         u.Tier,
		EventType:    string(ev.Type),
		EventID:      ev.ID,
		OccurredAt:   ev.Created,
	}
	if u.BillingSubscriptionStatus != nil {
		change.Status = *u.BillingSubscriptionStatus
	}
	if change.OccurredAt.IsZero() {
		change.OccurredAt = time.Now().UTC()
	}
	// The write is already durable; a failed notification is not a
	// reconciliation failure.
	if err := r.publisher.Publish(ctx, change); err != nil {
		log.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to publish subscription change")
	}
}

func (r *Reconciler) eventLogger(ev *billing.Event, customerID, subscriptionID string) zerolog.Logger {
	return r.logger.With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("customer_id", customerID).
		Str("subscription_id", subscriptionID).
		Logger()
}
