// Package domain contains core business types for the HomeworkAI backend.
//
// This file defines the per-user Profile record that backs the daily
// credit quota, and the decision type returned by the usage gate.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDailyCredits is the free-tier daily credit ceiling.
// One credit is consumed per successful completion.
const DefaultDailyCredits = 10

// Tier is the subscription level gating the daily credit ceiling.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid checks if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium:
		return true
	default:
		return false
	}
}

// Profile is the persisted quota/tier record, one row per user.
//
// Invariants:
//   - CreditsUsed is non-decreasing within a calendar day (UTC) and is
//     reset to 0 at most once per day, by the first gate check that
//     observes LastResetDate != today.
//   - Tier is mutated only by the billing webhook (and the debug reset).
type Profile struct {
	ID                   uuid.UUID
	Tier                 Tier
	CreditsUsed          int
	LastResetDate        time.Time // date precision, UTC
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsPremium returns true if the profile is on the unlimited tier.
func (p *Profile) IsPremium() bool {
	return p.Tier == TierPremium
}

// Remaining returns the credits left today against the given ceiling.
// Premium profiles report the full ceiling as remaining; callers should
// check IsPremium for the unlimited flag.
func (p *Profile) Remaining(dailyLimit int) int {
	remaining := dailyLimit - p.CreditsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedsReset reports whether the profile's counter belongs to an earlier
// calendar day than now (UTC) and must be lazily reset before use.
func (p *Profile) NeedsReset(now time.Time) bool {
	return DateUTC(p.LastResetDate) != DateUTC(now)
}

// DateUTC truncates a time to its UTC calendar date in YYYY-MM-DD form.
func DateUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DenyReason classifies why the usage gate refused a request.
type DenyReason string

const (
	DenyUnauthenticated DenyReason = "unauthenticated" // no identity on the request
	DenyProfileError    DenyReason = "profile_error"   // profile fetch and create both failed
	DenyDatabaseError   DenyReason = "database_error"  // lazy reset could not be durably recorded
	DenyLimitReached    DenyReason = "limit_reached"   // free-tier ceiling hit
)

// UsageDecision is the result of a usage gate check.
// When Allowed is true, User identifies the principal whose credit will
// be consumed; Reason is only set when Allowed is false.
type UsageDecision struct {
	Allowed bool
	Reason  DenyReason
	User    *User
}

// UsageSummary is the read-only credit view shown in the UI header.
type UsageSummary struct {
	CreditsUsed int  `json:"credits_used"`
	DailyLimit  int  `json:"daily_limit"`
	Remaining   int  `json:"remaining"`
	Unlimited   bool `json:"unlimited"`
}
