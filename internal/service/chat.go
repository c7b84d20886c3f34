package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mlecomte/homeworkai/internal/ai"
	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/metrics"
	"github.com/mlecomte/homeworkai/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ChatService orchestrates one tutoring turn: usage gate, image
// preparation, provider call, and credit accounting.
type ChatService interface {
	// Chat runs one turn for the identity on the context. Every outcome
	// folds into the tagged result; the error return is reserved for
	// malformed input that never reached the gate.
	Chat(ctx context.Context, params domain.ChatParams) (*domain.ChatResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

// MaxHistoryMessages bounds how much transcript is replayed to the
// provider per turn. Older turns are dropped silently.
const MaxHistoryMessages = 40

type chatService struct {
	provider   ai.Provider
	usage      UsageService
	normalizer ImageNormalizer
	archive    storage.Archive // optional; nil disables upload archival
	logger     *slog.Logger
}

// NewChatService creates the chat orchestrator. archive may be nil;
// upload archival is then skipped.
func NewChatService(provider ai.Provider, usage UsageService, normalizer ImageNormalizer, archive storage.Archive, logger *slog.Logger) ChatService {
	return &chatService{
		provider:   provider,
		usage:      usage,
		normalizer: normalizer,
		archive:    archive,
		logger:     logger,
	}
}

// Chat implements the turn sequence:
//
//  1. gate check (lazy reset, ceiling, admin bypass inside)
//  2. validate and prepare the turn (image decode + downscale)
//  3. provider call
//  4. on success only: record the consumed credit, archive the upload
//
// The credit is deliberately charged after the provider call, so a
// failed generation never costs the student anything.
func (s *chatService) Chat(ctx context.Context, params domain.ChatParams) (*domain.ChatResult, error) {
	const op = "chat.turn"

	decision := s.usage.CheckUsage(ctx)
	if !decision.Allowed {
		return s.deniedResult(decision), nil
	}
	user := decision.User

	params.Message = strings.TrimSpace(params.Message)
	if params.Message == "" && params.ImageDataURL == "" {
		return nil, domain.Invalid(op, "Message or image is required")
	}

	var image *domain.ImageAttachment
	if params.ImageDataURL != "" {
		decoded, err := domain.DecodeImageDataURL(params.ImageDataURL)
		if err != nil {
			return nil, err
		}
		image, err = s.normalizer.Normalize(decoded)
		if err != nil {
			return nil, err
		}
	}

	history := params.History
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}

	start := time.Now()
	result, err := s.provider.Generate(ctx, ai.GenerateParams{
		SystemInstruction: ai.TutorSystemPrompt,
		History:           history,
		Message:           params.Message,
		Image:             image,
	})
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues("failed").Inc()
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		s.logger.Error("completion failed",
			"op", op,
			"user_id", user.ID,
			"duration", time.Since(start),
			"retryable", ai.IsRetryable(err),
			"error", err,
		)
		return providerErrorResult(err), nil
	}

	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))

	// Charge the credit only now that a usable reply exists. A failure
	// to record it is logged but does not take the reply away.
	if err := s.usage.IncrementUsage(ctx, user.ID); err != nil {
		s.logger.Error("failed to record consumed credit",
			"op", op, "user_id", user.ID, "error", err)
	}

	if s.archive != nil && image != nil {
		s.archiveUpload(ctx, user, image)
	}

	metrics.CompletionsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("completion generated",
		"op", op,
		"user_id", user.ID,
		"model", result.Usage.Model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"duration", time.Since(start),
	)

	return domain.Completed(result.Text), nil
}

// deniedResult maps a gate denial onto the turn result.
func (s *chatService) deniedResult(decision *domain.UsageDecision) *domain.ChatResult {
	switch decision.Reason {
	case domain.DenyUnauthenticated:
		return &domain.ChatResult{Kind: domain.ChatUnauthenticated}
	case domain.DenyLimitReached:
		metrics.CompletionsTotal.WithLabelValues("quota_denied").Inc()
		return domain.QuotaDenied()
	default:
		return domain.ChatError(domain.EINTERNAL,
			"We could not verify your usage right now. Please try again.")
	}
}

// providerErrorResult translates provider sentinels into
// user-displayable failures. The transcript survives; only this turn's
// reply is replaced by the message.
func providerErrorResult(err error) *domain.ChatResult {
	switch {
	case errors.Is(err, ai.ErrContentBlocked):
		return domain.ChatError(domain.EFORBIDDEN,
			"I can't help with that request. Try rephrasing your question.")
	case errors.Is(err, ai.ErrInvalidImage):
		return domain.ChatError(domain.EINVALID,
			"That image could not be read. Try a clearer photo.")
	case errors.Is(err, ai.ErrRateLimited):
		return domain.ChatError(domain.ERATELIMIT,
			"The tutor is very busy right now. Please wait a moment and try again.")
	case errors.Is(err, ai.ErrUnauthorized):
		return domain.ChatError(domain.EINTERNAL,
			"The tutor is misconfigured. Please contact support.")
	default:
		return domain.ChatError(domain.EUNAVAILABLE,
			"The tutor is temporarily unavailable. Please try again shortly.")
	}
}

// archiveUpload stores the prepared image out-of-band. Failures are
// logged and swallowed; archival never affects the turn outcome.
func (s *chatService) archiveUpload(ctx context.Context, user *domain.User, image *domain.ImageAttachment) {
	key := storage.UploadKey(user.ID, time.Now(), image.MIMEType)
	if err := s.archive.Put(ctx, key, bytes.NewReader(image.Data), image.MIMEType); err != nil {
		s.logger.Warn("upload archival failed", "user_id", user.ID, "key", key, "error", err)
	}
}
