// Package ai defines the completion-provider abstraction used by the
// chat orchestrator.
//
// Providers translate their native failure modes into the structured
// sentinel errors below, so callers branch on error kinds rather than
// parsing provider message text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mlecomte/homeworkai/internal/domain"
)

// Provider is the interface to a hosted generative model.
type Provider interface {
	// Generate produces the assistant reply for one chat turn.
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)
}

// GenerateParams contains everything the provider needs for one turn.
type GenerateParams struct {
	// SystemInstruction is the fixed persona prompt for the model.
	SystemInstruction string
	// History is the prior conversation, oldest first. Assistant turns
	// are mapped to the provider's own role token by the implementation.
	History []domain.ChatMessage
	// Message is the new user turn.
	Message string
	// Image is an optional image accompanying the new turn.
	Image *domain.ImageAttachment
}

// GenerateResult contains the generated reply and usage accounting.
type GenerateResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks token consumption for monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Error sentinels for provider operations
var (
	// ErrUnauthorized indicates invalid or missing API credentials.
	ErrUnauthorized = errors.New("ai provider authentication failed")

	// ErrContentBlocked indicates the model refused the request on
	// content-safety grounds.
	ErrContentBlocked = errors.New("ai provider blocked the request for safety reasons")

	// ErrRateLimited indicates the provider's rate limit was exceeded.
	ErrRateLimited = errors.New("ai provider rate limit exceeded")

	// ErrInvalidImage indicates the image payload was rejected.
	ErrInvalidImage = errors.New("invalid image format or content")

	// ErrUnavailable indicates the provider is temporarily unreachable.
	ErrUnavailable = errors.New("ai provider temporarily unavailable")
)

// IsRetryable returns true for transient failures worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with context about the provider operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
