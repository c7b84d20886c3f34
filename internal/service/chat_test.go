package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/mlecomte/homeworkai/internal/ai"
	"github.com/mlecomte/homeworkai/internal/ai/mock"
	"github.com/mlecomte/homeworkai/internal/domain"
)

func newTestChatService(provider ai.Provider, store *fakeProfileStore, user *domain.User) ChatService {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if _, ok := store.profiles[user.ID]; !ok {
		store.profiles[user.ID] = &domain.Profile{
			ID: user.ID, Tier: domain.TierFree, CreditsUsed: 0, LastResetDate: now,
		}
	}
	usage := newTestUsageService(store, nil, now)
	return NewChatService(provider, usage, NewImagingNormalizer(), nil, testLogger())
}

func TestChat_CompletedTurnChargesCredit(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	user := testUser("kid@example.com")
	svc := newTestChatService(provider, store, user)

	result, err := svc.Chat(userCtx(user), domain.ChatParams{Message: "What is 7 x 8?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Kind, result.Message)
	}
	if result.Reply == "" {
		t.Error("expected a reply")
	}
	if got := store.credits(user.ID); got != 1 {
		t.Errorf("expected 1 credit consumed, got %d", got)
	}
	if provider.GenerateCalls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.GenerateCalls)
	}
	if provider.LastParams.SystemInstruction == "" {
		t.Error("expected the tutor persona to be passed as system instruction")
	}
}

func TestChat_ProviderFailureIsFree(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	provider.GenerateError = ai.ErrUnavailable
	user := testUser("kid@example.com")
	svc := newTestChatService(provider, store, user)

	result, err := svc.Chat(userCtx(user), domain.ChatParams{Message: "Help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatFailed {
		t.Fatalf("expected failed, got %s", result.Kind)
	}
	// A failed generation must never cost a credit
	if got := store.credits(user.ID); got != 0 {
		t.Errorf("expected 0 credits consumed, got %d", got)
	}
}

func TestChat_SafetyRefusal(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	provider.GenerateError = ai.ErrContentBlocked
	user := testUser("kid@example.com")
	svc := newTestChatService(provider, store, user)

	result, err := svc.Chat(userCtx(user), domain.ChatParams{Message: "something unsafe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatFailed {
		t.Fatalf("expected failed, got %s", result.Kind)
	}
	if result.ErrorCode != domain.EFORBIDDEN {
		t.Errorf("expected code %s, got %s", domain.EFORBIDDEN, result.ErrorCode)
	}
	if result.Message == "" {
		t.Error("expected a user-displayable message")
	}
	if got := store.credits(user.ID); got != 0 {
		t.Errorf("refusal must not consume a credit, got %d", got)
	}
}

func TestChat_QuotaDeniedSkipsProvider(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	user := testUser("kid@example.com")
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store.profiles[user.ID] = &domain.Profile{
		ID: user.ID, Tier: domain.TierFree, CreditsUsed: 10, LastResetDate: now,
	}
	svc := newTestChatService(provider, store, user)

	result, err := svc.Chat(userCtx(user), domain.ChatParams{Message: "One more?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatQuotaDenied {
		t.Fatalf("expected quota_denied, got %s", result.Kind)
	}
	if provider.GenerateCalls != 0 {
		t.Error("provider must not be called when the gate denies")
	}
}

func TestChat_Unauthenticated(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	svc := newTestChatService(provider, store, testUser("unused@example.com"))

	result, err := svc.Chat(context.Background(), domain.ChatParams{Message: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", result.Kind)
	}
}

func TestChat_EmptyTurnRejected(t *testing.T) {
	store := newFakeProfileStore()
	user := testUser("kid@example.com")
	svc := newTestChatService(mock.New(testLogger()), store, user)

	_, err := svc.Chat(userCtx(user), domain.ChatParams{Message: "   "})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected EINVALID, got %v", err)
	}
}

func TestChat_MalformedImageRejected(t *testing.T) {
	store := newFakeProfileStore()
	user := testUser("kid@example.com")
	svc := newTestChatService(mock.New(testLogger()), store, user)

	_, err := svc.Chat(userCtx(user), domain.ChatParams{
		Message:      "What does this say?",
		ImageDataURL: "data:image/png;base64,!!!not-base64!!!",
	})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected EINVALID, got %v", err)
	}
	if got := store.credits(user.ID); got != 0 {
		t.Errorf("rejected input must not consume a credit, got %d", got)
	}
}

func TestChat_ImageReachesProvider(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	user := testUser("kid@example.com")
	svc := newTestChatService(provider, store, user)

	payload := base64.StdEncoding.EncodeToString([]byte("fake-image-bytes"))
	result, err := svc.Chat(userCtx(user), domain.ChatParams{
		Message:      "Solve the worksheet",
		ImageDataURL: "data:image/png;base64," + payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != domain.ChatCompleted {
		t.Fatalf("expected completed, got %s", result.Kind)
	}
	if provider.LastParams.Image == nil {
		t.Fatal("expected the image to reach the provider")
	}
	if provider.LastParams.Image.MIMEType != "image/png" {
		t.Errorf("expected image/png, got %s", provider.LastParams.Image.MIMEType)
	}
}

func TestChat_HistoryIsTruncated(t *testing.T) {
	store := newFakeProfileStore()
	provider := mock.New(testLogger())
	user := testUser("kid@example.com")
	svc := newTestChatService(provider, store, user)

	history := make([]domain.ChatMessage, MaxHistoryMessages+10)
	for i := range history {
		history[i] = domain.ChatMessage{Role: domain.ChatRoleUser, Content: "turn"}
	}

	_, err := svc.Chat(userCtx(user), domain.ChatParams{History: history, Message: "latest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(provider.LastParams.History); got != MaxHistoryMessages {
		t.Errorf("expected history truncated to %d, got %d", MaxHistoryMessages, got)
	}
}
