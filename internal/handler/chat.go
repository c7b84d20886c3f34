// This file implements the chat endpoint.
//
// Route:
//   - POST /api/chat -> HandleChat (auth required via WithUser; the
//     usage gate inside the service decides, so an unauthenticated
//     request gets a clean 401 body rather than a middleware reject)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/service"
)

// maxChatBodyBytes bounds chat request bodies. Generous because the
// image rides along base64-encoded.
const maxChatBodyBytes = 32 * 1024 * 1024

// ChatHandler handles tutoring chat turns.
type ChatHandler struct {
	chatService service.ChatService
	logger      *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// RegisterRoutes registers chat routes on the provided mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, withUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/chat", withUser(http.HandlerFunc(h.HandleChat)))
}

type chatRequest struct {
	History []domain.ChatMessage `json:"history"`
	Message string               `json:"message"`
	Image   string               `json:"image,omitempty"`
}

// HandleChat runs one tutoring turn and maps the tagged result onto
// the HTTP surface:
//
//   - completed       -> 200 {reply}
//   - unauthenticated -> 401 {error}
//   - quota_denied    -> 402 {error: "limit_reached", message}
//   - failed          -> status from the error code, {error: message}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req, maxChatBodyBytes); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.chatService.Chat(r.Context(), domain.ChatParams{
		History:      req.History,
		Message:      req.Message,
		ImageDataURL: req.Image,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	switch result.Kind {
	case domain.ChatCompleted:
		writeJSON(w, http.StatusOK, map[string]string{"reply": result.Reply})
	case domain.ChatUnauthenticated:
		writeJSONError(w, http.StatusUnauthorized, "Authentication required")
	case domain.ChatQuotaDenied:
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":   "limit_reached",
			"message": "You have used all your free questions for today. Upgrade to Premium for unlimited access.",
		})
	default:
		writeJSONError(w, ErrorCodeToHTTPStatus(result.ErrorCode), result.Message)
	}
}
