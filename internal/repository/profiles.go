package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the database row shape for the profiles table.
type Profile struct {
	ID                   uuid.UUID
	Tier                 string
	CreditsUsed          int32
	LastResetDate        time.Time
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const profileColumns = `id, tier, credits_used, last_reset_date, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Tier,
		&p.CreditsUsed,
		&p.LastResetDate,
		&p.StripeCustomerID,
		&p.StripeSubscriptionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const getProfile = `
SELECT ` + profileColumns + `
FROM profiles
WHERE id = $1
`

func (q *Queries) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	p, err := scanProfile(q.db.QueryRowContext(ctx, getProfile, id))
	return p, translateNoRows(err)
}

// CreateProfileParams holds the fields for inserting a new profile.
type CreateProfileParams struct {
	ID            uuid.UUID
	Tier          string
	CreditsUsed   int32
	LastResetDate time.Time
}

const createProfile = `
INSERT INTO profiles (id, tier, credits_used, last_reset_date)
VALUES ($1, $2, $3, $4)
RETURNING ` + profileColumns + `
`

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	return scanProfile(q.db.QueryRowContext(ctx, createProfile,
		arg.ID, arg.Tier, arg.CreditsUsed, arg.LastResetDate))
}

// ResetProfileUsageParams holds the fields for the lazy daily reset.
type ResetProfileUsageParams struct {
	ID            uuid.UUID
	LastResetDate time.Time
}

const resetProfileUsage = `
UPDATE profiles
SET credits_used = 0, last_reset_date = $2, updated_at = now()
WHERE id = $1
`

// ResetProfileUsage zeroes the daily counter and stamps the reset date.
// Returns ErrNotFound if the profile does not exist.
func (q *Queries) ResetProfileUsage(ctx context.Context, arg ResetProfileUsageParams) error {
	res, err := q.db.ExecContext(ctx, resetProfileUsage, arg.ID, arg.LastResetDate)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const incrementProfileCredits = `
UPDATE profiles
SET credits_used = credits_used + 1, updated_at = now()
WHERE id = $1
`

// IncrementProfileCredits records one consumed credit.
//
// The increment happens store-side in a single statement, so concurrent
// requests for the same profile never lose an update.
func (q *Queries) IncrementProfileCredits(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, incrementProfileCredits, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateProfileSubscriptionParams holds the billing fields flipped by the
// Stripe webhook.
type UpdateProfileSubscriptionParams struct {
	ID                   uuid.UUID
	Tier                 string
	StripeCustomerID     string
	StripeSubscriptionID string
}

const updateProfileSubscription = `
UPDATE profiles
SET tier = $2, stripe_customer_id = $3, stripe_subscription_id = $4, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateProfileSubscription(ctx context.Context, arg UpdateProfileSubscriptionParams) error {
	res, err := q.db.ExecContext(ctx, updateProfileSubscription,
		arg.ID, arg.Tier, arg.StripeCustomerID, arg.StripeSubscriptionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const getProfileByStripeCustomerID = `
SELECT ` + profileColumns + `
FROM profiles
WHERE stripe_customer_id = $1
`

func (q *Queries) GetProfileByStripeCustomerID(ctx context.Context, customerID string) (Profile, error) {
	p, err := scanProfile(q.db.QueryRowContext(ctx, getProfileByStripeCustomerID, customerID))
	return p, translateNoRows(err)
}

// requireRow converts a zero-rows-affected update into ErrNotFound.
func requireRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
