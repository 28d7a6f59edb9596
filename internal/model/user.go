package model

import "time"

// Tier is the subscription level of a user.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// User represents a user in the system
type User struct {
	ID        string  `db:"id" json:"id"`
	Email     string  `db:"email" json:"email"`
	FirstName *string `db:"first_name" json:"first_name"`
	LastName  *string `db:"last_name" json:"last_name"`
	Tier      Tier    `db:"tier" json:"tier"`

	BillingCustomerID         *string    `db:"billing_customer_id" json:"billing_customer_id,omitempty"`
	BillingSubscriptionID     *string    `db:"billing_subscription_id" json:"billing_subscription_id,omitempty"`
	BillingSubscriptionStatus *string    `db:"billing_subscription_status" json:"billing_subscription_status,omitempty"`
	BillingEventAt            *time.Time `db:"billing_event_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubscriptionFields is a partial update of a user's billing columns.
// Nil fields are left unchanged.
type SubscriptionFields struct {
	Tier                      *Tier
	BillingCustomerID         *string
	BillingSubscriptionID     *string
	ClearSubscriptionID       bool
	BillingSubscriptionStatus *string

	// EventAt is the creation time of the billing event that produced the
	// update. Writes older than the stored billing_event_at are rejected.
	EventAt *time.Time
}

// Empty reports whether no column would be written.
func (f SubscriptionFields) Empty() bool {
	return f.Tier == nil &&
		f.BillingCustomerID == nil &&
		f.BillingSubscriptionID == nil &&
		!f.ClearSubscriptionID &&
		f.BillingSubscriptionStatus == nil
}
