// Package mock provides a canned ai.Provider for tests and development.
package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/mlecomte/homeworkai/internal/ai"
)

// Provider is a mock completion provider.
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateResponse *ai.GenerateResult
	GenerateError    error

	// Call tracking for testing
	GenerateCalls int
	LastParams    ai.GenerateParams
}

// New creates a new mock provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Generate returns the configured response, or a canned tutor reply.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.GenerateCalls++
	p.LastParams = params

	if p.GenerateError != nil {
		return nil, p.GenerateError
	}
	if p.GenerateResponse != nil {
		return p.GenerateResponse, nil
	}

	return &ai.GenerateResult{
		Text: "Let's work through this together. First, identify what the question is really asking; then break it into smaller steps and solve each one in turn.",
		Usage: ai.UsageInfo{
			Model:        "mock-tutor-v1",
			InputTokens:  120,
			OutputTokens: 45,
			Duration:     50 * time.Millisecond,
		},
	}, nil
}
