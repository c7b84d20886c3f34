package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/repository"
)

// profileStore adapts the Postgres repository to the ProfileStore
// contract, converting between row shapes and domain types.
type profileStore struct {
	queries *repository.Queries
}

// NewProfileStore wraps the repository as a ProfileStore.
func NewProfileStore(queries *repository.Queries) ProfileStore {
	return &profileStore{queries: queries}
}

func (s *profileStore) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	row, err := s.queries.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return profileFromRow(row), nil
}

func (s *profileStore) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	row, err := s.queries.CreateProfile(ctx, repository.CreateProfileParams{
		ID:            profile.ID,
		Tier:          string(profile.Tier),
		CreditsUsed:   int32(profile.CreditsUsed),
		LastResetDate: profile.LastResetDate,
	})
	if err != nil {
		return nil, err
	}
	return profileFromRow(row), nil
}

func (s *profileStore) ResetProfileUsage(ctx context.Context, id uuid.UUID, resetDate time.Time) error {
	return s.queries.ResetProfileUsage(ctx, repository.ResetProfileUsageParams{
		ID:            id,
		LastResetDate: resetDate,
	})
}

func (s *profileStore) IncrementProfileCredits(ctx context.Context, id uuid.UUID) error {
	return s.queries.IncrementProfileCredits(ctx, id)
}

func (s *profileStore) UpdateProfileSubscription(ctx context.Context, id uuid.UUID, tier domain.Tier, customerID, subscriptionID string) error {
	return s.queries.UpdateProfileSubscription(ctx, repository.UpdateProfileSubscriptionParams{
		ID:                   id,
		Tier:                 string(tier),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
	})
}

func (s *profileStore) GetProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	row, err := s.queries.GetProfileByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return profileFromRow(row), nil
}

func profileFromRow(row repository.Profile) *domain.Profile {
	return &domain.Profile{
		ID:                   row.ID,
		Tier:                 domain.Tier(row.Tier),
		CreditsUsed:          int(row.CreditsUsed),
		LastResetDate:        row.LastResetDate,
		StripeCustomerID:     row.StripeCustomerID,
		StripeSubscriptionID: row.StripeSubscriptionID,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}
