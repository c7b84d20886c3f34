package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mlecomte/homeworkai/internal/auth"
	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/repository"
)

// =============================================================================
// Fake Profile Store
// =============================================================================

// fakeProfileStore is an in-memory ProfileStore with error injection.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.Profile

	getErr       error
	createErr    error
	resetErr     error
	incrementErr error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[uuid.UUID]*domain.Profile)}
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProfileStore) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	clone := *profile
	f.profiles[profile.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeProfileStore) ResetProfileUsage(ctx context.Context, id uuid.UUID, resetDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreditsUsed = 0
	p.LastResetDate = resetDate
	return nil
}

func (f *fakeProfileStore) IncrementProfileCredits(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreditsUsed++
	return nil
}

func (f *fakeProfileStore) UpdateProfileSubscription(ctx context.Context, id uuid.UUID, tier domain.Tier, customerID, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Tier = tier
	p.StripeCustomerID = customerID
	p.StripeSubscriptionID = subscriptionID
	return nil
}

func (f *fakeProfileStore) GetProfileByStripeCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.StripeCustomerID == customerID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProfileStore) credits(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[id].CreditsUsed
}

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testUser(email string) *domain.User {
	return &domain.User{ID: uuid.New(), Email: email}
}

func userCtx(user *domain.User) context.Context {
	return auth.SetUser(context.Background(), user)
}

func newTestUsageService(store ProfileStore, adminEmails []string, now time.Time) *usageService {
	// Mirrors Config.IsAdminEmail: case-insensitive list matching.
	isAdmin := func(email string) bool {
		for _, admin := range adminEmails {
			if strings.EqualFold(admin, email) {
				return true
			}
		}
		return false
	}
	svc := NewUsageService(store, testLogger(), 10, isAdmin).(*usageService)
	svc.now = func() time.Time { return now }
	return svc
}

// =============================================================================
// CheckUsage Tests
// =============================================================================

func TestCheckUsage_Unauthenticated(t *testing.T) {
	svc := newTestUsageService(newFakeProfileStore(), nil, time.Now())

	decision := svc.CheckUsage(context.Background())

	if decision.Allowed {
		t.Fatal("expected denial for unauthenticated request")
	}
	if decision.Reason != domain.DenyUnauthenticated {
		t.Errorf("expected reason %q, got %q", domain.DenyUnauthenticated, decision.Reason)
	}
}

func TestCheckUsage_UnderLimit(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 9, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	decision := svc.CheckUsage(userCtx(user))

	if !decision.Allowed {
		t.Fatalf("expected allow at 9/10, got denial: %s", decision.Reason)
	}
	if decision.User == nil || decision.User.ID != user.ID {
		t.Error("expected decision to carry the user")
	}
}

func TestCheckUsage_AtLimit(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 10, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	decision := svc.CheckUsage(userCtx(user))

	if decision.Allowed {
		t.Fatal("expected denial at 10/10")
	}
	if decision.Reason != domain.DenyLimitReached {
		t.Errorf("expected reason %q, got %q", domain.DenyLimitReached, decision.Reason)
	}
}

func TestCheckUsage_PremiumIgnoresCeiling(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("subscriber@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierPremium, CreditsUsed: 500, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	if decision := svc.CheckUsage(userCtx(user)); !decision.Allowed {
		t.Fatalf("premium should never be denied, got: %s", decision.Reason)
	}
}

func TestCheckUsage_AdminBypassesEverything(t *testing.T) {
	store := newFakeProfileStore()
	// A failing store must not matter for admins
	store.getErr = errors.New("database down")
	svc := newTestUsageService(store, []string{"Admin@Example.com"}, time.Now())

	user := testUser("admin@example.com")
	if decision := svc.CheckUsage(userCtx(user)); !decision.Allowed {
		t.Fatalf("admin should always be allowed, got: %s", decision.Reason)
	}
}

func TestCheckUsage_LazyDailyReset(t *testing.T) {
	store := newFakeProfileStore()
	yesterday := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 10, LastResetDate: yesterday,
	}
	svc := newTestUsageService(store, nil, today)

	decision := svc.CheckUsage(userCtx(user))

	if !decision.Allowed {
		t.Fatalf("expected allow after day rollover, got: %s", decision.Reason)
	}
	if got := store.credits(user.ID); got != 0 {
		t.Errorf("expected counter reset to 0, got %d", got)
	}
}

func TestCheckUsage_ResetWriteFailureFailsSafe(t *testing.T) {
	store := newFakeProfileStore()
	yesterday := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 3, LastResetDate: yesterday,
	}
	store.resetErr = errors.New("write failed")
	svc := newTestUsageService(store, nil, today)

	decision := svc.CheckUsage(userCtx(user))

	if decision.Allowed {
		t.Fatal("expected denial when the reset cannot be recorded")
	}
	if decision.Reason != domain.DenyDatabaseError {
		t.Errorf("expected reason %q, got %q", domain.DenyDatabaseError, decision.Reason)
	}
}

func TestCheckUsage_CreatesProfileOnFirstContact(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("new@example.com")
	svc := newTestUsageService(store, nil, now)

	decision := svc.CheckUsage(userCtx(user))

	if !decision.Allowed {
		t.Fatalf("first contact should be allowed, got: %s", decision.Reason)
	}
	if _, ok := store.profiles[user.ID]; !ok {
		t.Error("expected a default profile row to be created")
	}
}

func TestCheckUsage_ProfileErrorWhenFetchAndCreateFail(t *testing.T) {
	store := newFakeProfileStore()
	store.getErr = errors.New("database down")
	store.createErr = errors.New("database down")
	svc := newTestUsageService(store, nil, time.Now())

	decision := svc.CheckUsage(userCtx(testUser("kid@example.com")))

	if decision.Allowed {
		t.Fatal("expected denial when profile cannot be loaded or created")
	}
	if decision.Reason != domain.DenyProfileError {
		t.Errorf("expected reason %q, got %q", domain.DenyProfileError, decision.Reason)
	}
}

// =============================================================================
// IncrementUsage Tests
// =============================================================================

func TestIncrementUsage_RecordsCredit(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Now()
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 2, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	if err := svc.IncrementUsage(context.Background(), user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.credits(user.ID); got != 3 {
		t.Errorf("expected 3 credits used, got %d", got)
	}
}

func TestIncrementUsage_MissingProfileIsNotAnError(t *testing.T) {
	// Admin-bypassed identities skip the gate's profile bootstrap, so a
	// successful turn may increment an identity with no row at all.
	store := newFakeProfileStore()
	svc := newTestUsageService(store, nil, time.Now())

	if err := svc.IncrementUsage(context.Background(), uuid.New()); err != nil {
		t.Fatalf("missing profile should be tolerated, got %v", err)
	}
}

func TestIncrementUsage_ConcurrentIncrementsAllLand(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Now()
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 0, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.IncrementUsage(context.Background(), user.ID)
		}()
	}
	wg.Wait()

	if got := store.credits(user.ID); got != workers {
		t.Errorf("expected %d credits used, got %d (lost update)", workers, got)
	}
}

// =============================================================================
// Usage Summary Tests
// =============================================================================

func TestUsage_Summary(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 4, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	summary, err := svc.Usage(userCtx(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.CreditsUsed != 4 || summary.Remaining != 6 || summary.Unlimited {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestUsage_PendingResetReportsFullAllowance(t *testing.T) {
	store := newFakeProfileStore()
	yesterday := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 10, LastResetDate: yesterday,
	}
	svc := newTestUsageService(store, nil, today)

	summary, err := svc.Usage(userCtx(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Remaining != 10 || summary.CreditsUsed != 0 {
		t.Errorf("pending reset should report a full allowance, got: %+v", summary)
	}
	// Usage is a read-only view; the stored counter must be untouched
	if got := store.credits(user.ID); got != 10 {
		t.Errorf("summary must not mutate the store, counter is now %d", got)
	}
}

func TestUsage_AdminIsUnlimited(t *testing.T) {
	svc := newTestUsageService(newFakeProfileStore(), []string{"admin@example.com"}, time.Now())

	summary, err := svc.Usage(userCtx(testUser("admin@example.com")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Unlimited {
		t.Error("admin summary should be unlimited")
	}
}

// =============================================================================
// ResetUsage Tests
// =============================================================================

func TestResetUsage_ZeroesCounter(t *testing.T) {
	store := newFakeProfileStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	user := testUser("kid@example.com")
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 7, LastResetDate: now,
	}
	svc := newTestUsageService(store, nil, now)

	if err := svc.ResetUsage(userCtx(user)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.credits(user.ID); got != 0 {
		t.Errorf("expected counter reset to 0, got %d", got)
	}
}

func TestResetUsage_Unauthenticated(t *testing.T) {
	svc := newTestUsageService(newFakeProfileStore(), nil, time.Now())

	err := svc.ResetUsage(context.Background())
	if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
		t.Errorf("expected EUNAUTHORIZED, got %v", err)
	}
}
