package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkpost",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inkpost",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconcileOutcomes counts reconciliation results.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkpost",
		Subsystem: "billing",
		Name:      "reconcile_outcomes_total",
		Help:      "Billing event reconciliation results by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// SubscriptionChanges counts applied tier transitions.
	SubscriptionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkpost",
		Subsystem: "billing",
		Name:      "subscription_changes_total",
		Help:      "Applied subscription changes by previous and new tier.",
	}, []string{"previous_tier", "tier"})

	// NotificationsDropped counts subscription changes a full consumer missed.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inkpost",
		Subsystem: "billing",
		Name:      "notifications_dropped_total",
		Help:      "Subscription change notifications dropped because a consumer was full.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inkpost",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429.",
	})
)
