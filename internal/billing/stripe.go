package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeConfig struct {
	SecretKey      string
	PremiumPriceID string
	FrontendDomain string
	// Backends overrides the Stripe API backends; nil uses the defaults.
	Backends *stripe.Backends
}

// StripeGateway implements Gateway with a dedicated Stripe API client.
type StripeGateway struct {
	api            *client.API
	premiumPriceID string
	frontendDomain string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		api:            client.New(cfg.SecretKey, cfg.Backends),
		premiumPriceID: cfg.PremiumPriceID,
		frontendDomain: strings.TrimRight(cfg.FrontendDomain, "/"),
	}
}

// CreateCustomer creates a Stripe customer tagged with the user id. The
// idempotency key makes retried calls for the same user return one customer.
func (g *StripeGateway) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(p.Email),
		Metadata: map[string]string{"user_id": p.UserID},
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-" + p.UserID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:                 stripe.String(p.CustomerID),
		BillingAddressCollection: stripe.String("auto"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(g.premiumPriceID), Quantity: stripe.Int64(1)},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(g.frontendDomain + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.frontendDomain + "/cancel"),
		Metadata:   map[string]string{"user_id": p.UserID},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return "", errors.New("checkout session has no url")
	}
	return sess.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", id, err)
	}
	return fromStripeSubscription(sub), nil
}

// WebhookVerifier checks Stripe-Signature headers against the endpoint secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return NormalizeEvent(event)
}

func isSignatureError(err error) bool {
	switch {
	case errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrTooOld):
		return true
	}
	return false
}

// NormalizeEvent maps a Stripe event onto the recognised taxonomy.
func NormalizeEvent(e stripe.Event) (*Event, error) {
	out := &Event{
		ID:      e.ID,
		Type:    EventType(e.Type),
		Created: time.Unix(e.Created, 0).UTC(),
	}
	if e.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(e.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: decode checkout.session: %v", ErrMalformedPayload, err)
		}
		session := &CheckoutSession{ID: cs.ID}
		if cs.Customer != nil {
			session.CustomerID = cs.Customer.ID
		}
		if cs.Subscription != nil {
			session.SubscriptionID = cs.Subscription.ID
		}
		out.CheckoutSession = session

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var ss stripe.Subscription
		if err := json.Unmarshal(e.Data.Raw, &ss); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrMalformedPayload, err)
		}
		out.Subscription = fromStripeSubscription(&ss)
	}
	return out, nil
}

func fromStripeSubscription(ss *stripe.Subscription) *Subscription {
	sub := &Subscription{ID: ss.ID, Status: string(ss.Status)}
	if ss.Customer != nil {
		sub.CustomerID = ss.Customer.ID
	}
	return sub
}
