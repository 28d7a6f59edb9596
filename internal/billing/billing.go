// Package billing adapts the payment provider to the small set of objects the
// rest of the service works with: customers, checkout sessions, subscriptions
// and verified webhook events.
package billing

import (
	"context"
	"errors"
	"time"
)

// EventType is the provider's event name.
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
)

// Subscription statuses that grant premium access.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// CheckoutSession is the part of a completed checkout the reconciler needs.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// Subscription is a snapshot of a recurring payment agreement.
type Subscription struct {
	ID         string
	CustomerID string
	Status     string
}

// Event is a verified webhook event. Exactly one of CheckoutSession and
// Subscription is set for recognised types; both are nil otherwise.
type Event struct {
	ID              string
	Type            EventType
	Created         time.Time
	CheckoutSession *CheckoutSession
	Subscription    *Subscription
}

// IsActiveLike reports whether a subscription status grants premium access.
func IsActiveLike(status string) bool {
	return status == StatusActive || status == StatusTrialing
}

type CustomerParams struct {
	UserID string
	Email  string
}

type CheckoutParams struct {
	CustomerID string
	UserID     string
}

// Gateway is the outbound side of the payment provider.
type Gateway interface {
	CreateCustomer(ctx context.Context, p CustomerParams) (string, error)
	// CreateCheckoutSession returns the hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
}

// EventVerifier authenticates a raw webhook payload and normalises it.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
