// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
//
// This file implements the usage gate and incrementer — the quota core
// deciding whether a completion may be generated for the current
// identity, and recording consumed credits.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mlecomte/homeworkai/internal/auth"
	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/metrics"
	"github.com/mlecomte/homeworkai/internal/repository"
)

// =============================================================================
// Store Contract
// =============================================================================

// ProfileStore is the keyed-table contract the usage gate runs against.
// internal/repository implements it over Postgres; tests substitute an
// in-memory fake.
type ProfileStore interface {
	// GetProfile returns the profile for an identity, or
	// repository.ErrNotFound if no row exists yet.
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)

	// CreateProfile inserts a fresh profile row and returns the stored
	// version.
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)

	// ResetProfileUsage zeroes the daily counter and stamps the given
	// reset date, in one statement.
	ResetProfileUsage(ctx context.Context, id uuid.UUID, resetDate time.Time) error

	// IncrementProfileCredits records one consumed credit atomically on
	// the store side, so concurrent requests never lose an update.
	IncrementProfileCredits(ctx context.Context, id uuid.UUID) error

	// UpdateProfileSubscription flips the tier and billing references.
	UpdateProfileSubscription(ctx context.Context, id uuid.UUID, tier domain.Tier, customerID, subscriptionID string) error

	// GetProfileByStripeCustomerID finds the profile owning a Stripe
	// customer, or repository.ErrNotFound.
	GetProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService defines the quota gate operations.
type UsageService interface {
	// CheckUsage decides whether a quota-consuming action may proceed
	// for the identity on the context. It performs the lazy daily reset
	// and profile creation as side effects; every failure mode folds
	// into the returned decision.
	CheckUsage(ctx context.Context) *domain.UsageDecision

	// IncrementUsage records that one quota-consuming action completed
	// successfully. Call it only after a usable completion was produced.
	IncrementUsage(ctx context.Context, userID uuid.UUID) error

	// Usage returns the read-only credit summary for the identity on
	// the context, without writing anything.
	Usage(ctx context.Context) (*domain.UsageSummary, error)

	// ResetUsage zeroes today's counter for the identity on the
	// context. Debug affordance surfaced in the account menu.
	ResetUsage(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store      ProfileStore
	logger     *slog.Logger
	dailyLimit int
	isAdmin    func(email string) bool
	now        func() time.Time // injected for day-rollover tests
}

// NewUsageService creates the usage gate.
//
// isAdmin reports identities exempt from all limits regardless of
// stored profile state; Config.IsAdminEmail is the production source.
func NewUsageService(store ProfileStore, logger *slog.Logger, dailyLimit int, isAdmin func(email string) bool) UsageService {
	if dailyLimit <= 0 {
		dailyLimit = domain.DefaultDailyCredits
	}
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &usageService{
		store:      store,
		logger:     logger,
		dailyLimit: dailyLimit,
		isAdmin:    isAdmin,
		now:        time.Now,
	}
}

// CheckUsage implements the gate algorithm:
//
//  1. no identity -> unauthenticated
//  2. admin override -> allowed, bypassing everything below
//  3. fetch profile; on miss or failure, create the default row
//  4. lazy daily reset, failing safe when the write doesn't land
//  5. free tier at or over the ceiling -> limit_reached
func (s *usageService) CheckUsage(ctx context.Context) *domain.UsageDecision {
	const op = "usage.check"

	user := auth.GetUser(ctx)
	if user == nil {
		return &domain.UsageDecision{Allowed: false, Reason: domain.DenyUnauthenticated}
	}

	if s.isAdmin(user.Email) {
		return &domain.UsageDecision{Allowed: true, User: user}
	}

	profile, err := s.getOrCreateProfile(ctx, user.ID)
	if err != nil {
		s.logger.Error("profile fetch and create both failed",
			"op", op, "user_id", user.ID, "error", err)
		return &domain.UsageDecision{Allowed: false, Reason: domain.DenyProfileError}
	}

	now := s.now()
	if profile.NeedsReset(now) {
		if err := s.store.ResetProfileUsage(ctx, user.ID, now); err != nil {
			// Fail safe: denying beats an exhausted-looking counter that
			// was never durably reset.
			s.logger.Error("daily reset write failed",
				"op", op, "user_id", user.ID, "error", err)
			return &domain.UsageDecision{Allowed: false, Reason: domain.DenyDatabaseError}
		}
		profile.CreditsUsed = 0
		profile.LastResetDate = now
	}

	if !profile.IsPremium() && profile.CreditsUsed >= s.dailyLimit {
		metrics.QuotaDenials.Inc()
		s.logger.Info("daily credit limit reached",
			"op", op, "user_id", user.ID, "used", profile.CreditsUsed, "limit", s.dailyLimit)
		return &domain.UsageDecision{Allowed: false, Reason: domain.DenyLimitReached}
	}

	return &domain.UsageDecision{Allowed: true, User: user}
}

// IncrementUsage records one consumed credit.
//
// The store performs the increment atomically; there is no
// read-modify-write window, so concurrent completions for the same
// identity are all counted.
func (s *usageService) IncrementUsage(ctx context.Context, userID uuid.UUID) error {
	const op = "usage.increment"

	if err := s.store.IncrementProfileCredits(ctx, userID); err != nil {
		// Admin-bypassed identities never pass through the gate's
		// profile bootstrap, so there may be no row to count against.
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return domain.Internal(err, op, "failed to record consumed credit")
	}
	metrics.CreditsConsumed.Inc()
	return nil
}

// Usage returns the current credit view without mutating the store.
// A profile whose reset is pending reports a full allowance; the actual
// reset happens on the next gate check.
func (s *usageService) Usage(ctx context.Context) (*domain.UsageSummary, error) {
	const op = "usage.summary"

	user := auth.GetUser(ctx)
	if user == nil {
		return nil, domain.Unauthorized(op, "authentication required")
	}

	if s.isAdmin(user.Email) {
		return &domain.UsageSummary{DailyLimit: s.dailyLimit, Remaining: s.dailyLimit, Unlimited: true}, nil
	}

	profile, err := s.getOrCreateProfile(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load profile")
	}

	summary := &domain.UsageSummary{
		DailyLimit: s.dailyLimit,
		Unlimited:  profile.IsPremium(),
	}
	if profile.NeedsReset(s.now()) {
		summary.Remaining = s.dailyLimit
	} else {
		summary.CreditsUsed = profile.CreditsUsed
		summary.Remaining = profile.Remaining(s.dailyLimit)
	}
	return summary, nil
}

// ResetUsage zeroes today's counter for the current identity.
func (s *usageService) ResetUsage(ctx context.Context) error {
	const op = "usage.reset"

	user := auth.GetUser(ctx)
	if user == nil {
		return domain.Unauthorized(op, "authentication required")
	}

	if _, err := s.getOrCreateProfile(ctx, user.ID); err != nil {
		return domain.Internal(err, op, "failed to load profile")
	}
	if err := s.store.ResetProfileUsage(ctx, user.ID, s.now()); err != nil {
		return domain.Internal(err, op, "failed to reset credits")
	}
	return nil
}

// getOrCreateProfile fetches the identity's profile, lazily creating the
// default row on first contact. Creation is also attempted when the
// fetch fails outright, matching the gate's forgiving bootstrap path.
func (s *usageService) getOrCreateProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("profile fetch failed, attempting create", "user_id", userID, "error", err)
	}

	return s.store.CreateProfile(ctx, &domain.Profile{
		ID:            userID,
		Tier:          domain.TierFree,
		CreditsUsed:   0,
		LastResetDate: s.now(),
	})
}
