package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inkpost/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByBillingCustomerID returns nil, nil when no user owns the customer id.
	GetUserByBillingCustomerID(ctx context.Context, customerID string) (*model.User, error)
	// SetBillingCustomerID stores the customer id only if none is stored yet and
	// returns the id that is stored after the call.
	SetBillingCustomerID(ctx context.Context, userID, customerID string) (string, error)
	// UpdateSubscriptionFields applies a partial update of the billing columns.
	// It returns nil, nil when the user does not exist or the update is older
	// than the last applied billing event.
	UpdateSubscriptionFields(ctx context.Context, userID string, f model.SubscriptionFields) (*model.User, error)
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, email, first_name, last_name, tier, billing_customer_id, billing_subscription_id,
       billing_subscription_status, billing_event_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Tier,
		&u.BillingCustomerID,
		&u.BillingSubscriptionID,
		&u.BillingSubscriptionStatus,
		&u.BillingEventAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user provisioned from the identity provider. Concurrent
// first requests for the same identity converge on the existing row.
func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.FirstName, u.LastName))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	*u = *created
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByBillingCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE billing_customer_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch user by billing customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *userRepo) SetBillingCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	const q = `
		UPDATE users
		SET billing_customer_id = COALESCE(billing_customer_id, $2), updated_at = NOW()
		WHERE id = $1
		RETURNING billing_customer_id
	`
	var stored string
	if err := r.db.QueryRowContext(ctx, q, userID, customerID).Scan(&stored); err != nil {
		return "", fmt.Errorf("set billing customer for user %s: %w", userID, err)
	}
	return stored, nil
}

func (r *userRepo) UpdateSubscriptionFields(ctx context.Context, userID string, f model.SubscriptionFields) (*model.User, error) {
	if f.Empty() {
		return r.GetUserByID(ctx, userID)
	}

	q, args := buildSubscriptionUpdate(userID, f)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, fmt.Errorf("update subscription fields for user %s: %w", userID, err)
	}
	return u, nil
}

// buildSubscriptionUpdate renders a single conditional UPDATE so concurrent
// events for the same user serialize on the row lock.
func buildSubscriptionUpdate(userID string, f model.SubscriptionFields) (string, []any) {
	var sets []string
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Tier != nil {
		sets = append(sets, "tier = "+next(string(*f.Tier))+"::tiers")
	}
	if f.BillingCustomerID != nil {
		sets = append(sets, "billing_customer_id = COALESCE(billing_customer_id, "+next(*f.BillingCustomerID)+")")
	}
	switch {
	case f.ClearSubscriptionID:
		sets = append(sets, "billing_subscription_id = NULL")
	case f.BillingSubscriptionID != nil:
		sets = append(sets, "billing_subscription_id = "+next(*f.BillingSubscriptionID))
	}
	if f.BillingSubscriptionStatus != nil {
		sets = append(sets, "billing_subscription_status = "+next(*f.BillingSubscriptionStatus))
	}

	where := "id = $1"
	if f.EventAt != nil {
		ts := next(*f.EventAt)
		sets = append(sets, "billing_event_at = "+ts)
		where += " AND (billing_event_at IS NULL OR billing_event_at <= " + ts + ")"
	}
	sets = append(sets, "updated_at = NOW()")

	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE " + where + " RETURNING " + userColumns
	return q, args
}
