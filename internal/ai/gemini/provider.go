// Package gemini implements the ai.Provider interface using Google's
// Gemini API via the official generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mlecomte/homeworkai/internal/ai"
	"github.com/mlecomte/homeworkai/internal/domain"
)

const (
	// DefaultModel is the default Gemini model to use.
	DefaultModel = "gemini-1.5-flash"

	// MaxImageSize is the maximum accepted image payload (20MB).
	MaxImageSize = 20 * 1024 * 1024

	// roleUser and roleModel are Gemini's role tokens. The UI's
	// "assistant" role maps onto roleModel.
	roleUser  = "user"
	roleModel = "model"
)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// Provider implements ai.Provider backed by the Gemini API.
type Provider struct {
	config Config
	client *genai.Client
	logger *slog.Logger
}

// New creates a new Gemini provider. Call Close when done.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Close releases the underlying API client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate produces the assistant reply for one chat turn.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	startTime := time.Now()

	if params.Image != nil {
		if err := validateImage(params.Image); err != nil {
			return nil, ai.WrapError("validate image", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	model := p.client.GenerativeModel(p.config.Model)
	if params.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(params.SystemInstruction)},
		}
	}

	chat := model.StartChat()
	chat.History = buildHistory(params.History)

	parts := []genai.Part{genai.Text(params.Message)}
	if params.Image != nil {
		parts = append(parts, genai.Blob{
			MIMEType: params.Image.MIMEType,
			Data:     params.Image.Data,
		})
	}

	resp, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, ai.WrapError("send message", p.mapError(err))
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	result := &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:    p.config.Model,
			Duration: time.Since(startTime),
		},
	}
	if resp.UsageMetadata != nil {
		result.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return result, nil
}

// buildHistory converts UI transcript turns to Gemini content, mapping
// the assistant role onto Gemini's "model" token.
func buildHistory(history []domain.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := roleUser
		if msg.Role == domain.ChatRoleAssistant {
			role = roleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return contents
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", ai.ErrContentBlocked
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ai.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("empty response content")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return sb.String(), nil
}

// mapError translates SDK failures into the package sentinels.
func (p *Provider) mapError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return ai.ErrContentBlocked
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ai.ErrUnauthorized
		case http.StatusTooManyRequests:
			return ai.ErrRateLimited
		case http.StatusBadRequest:
			// Gemini reports a bad API key as INVALID_ARGUMENT rather
			// than a 401, so classify it here.
			if strings.Contains(gerr.Message, "API key") {
				return ai.ErrUnauthorized
			}
			return err
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return ai.ErrUnavailable
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ai.ErrUnavailable
	}

	return err
}

// validateImage rejects payloads the API would refuse anyway.
func validateImage(img *domain.ImageAttachment) error {
	if len(img.Data) == 0 {
		return ai.ErrInvalidImage
	}
	if len(img.Data) > MaxImageSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d", ai.ErrInvalidImage, len(img.Data), MaxImageSize)
	}
	validTypes := map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	}
	if !validTypes[img.MIMEType] {
		return fmt.Errorf("%w: unsupported content type %s", ai.ErrInvalidImage, img.MIMEType)
	}
	return nil
}
