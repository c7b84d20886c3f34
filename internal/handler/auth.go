// This file implements the authentication endpoints.
//
// Routes:
//   - POST /api/auth/register -> HandleRegister
//   - POST /api/auth/login    -> HandleLogin
//   - POST /api/auth/logout   -> HandleLogout
//   - GET  /api/auth/me       -> HandleMe
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mlecomte/homeworkai/internal/auth"
	"github.com/mlecomte/homeworkai/internal/csrf"
	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/middleware"
	"github.com/mlecomte/homeworkai/internal/service"
)

// maxAuthBodyBytes bounds auth request bodies.
const maxAuthBodyBytes = 4 * 1024

// AuthHandler handles registration, login, and session endpoints.
type AuthHandler struct {
	userService service.UserService
	limiter     *middleware.AuthRateLimiter
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, limiter *middleware.AuthRateLimiter, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		limiter:     limiter,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers auth routes on the provided mux.
// withUser must be the WithUser middleware so /me sees the identity.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, withUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", h.limiter.LimitRegister(http.HandlerFunc(h.HandleRegister)))
	mux.Handle("POST /api/auth/login", h.limiter.LimitLogin(http.HandlerFunc(h.HandleLogin)))
	mux.HandleFunc("POST /api/auth/logout", h.HandleLogout)
	mux.Handle("GET /api/auth/me", withUser(http.HandlerFunc(h.HandleMe)))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the wire shape of a user. The password hash never
// leaves the service layer.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// HandleRegister creates an account and logs the new user in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req, maxAuthBodyBytes); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		// Field-level validation failures carry the offending field so
		// the form can highlight it; everything else takes the plain path.
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	// Log the fresh account straight in; a second password prompt after
	// registration is pure friction.
	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Account exists; the client can log in manually.
		h.logger.Warn("post-register login failed", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(user)})
		return
	}

	h.setSessionCookies(w, result.SessionToken)
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(result.User)})
}

// HandleLogin authenticates and sets the session cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req, maxAuthBodyBytes); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.limiter.ResetLogin(middleware.ClientIP(r))
	h.setSessionCookies(w, result.SessionToken)
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(result.User)})
}

// HandleLogout invalidates the session. Idempotent.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		_ = h.userService.Logout(r.Context(), cookie.Value)
	}
	middleware.ClearSessionCookie(w, h.isSecure)
	csrf.ClearTokenCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookies sets the session cookie plus a fresh CSRF token for
// the frontend to echo on state-changing requests.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, token string) {
	middleware.SetSessionCookie(w, token, h.isSecure)
	if err := csrf.SetTokenCookie(w, h.isSecure); err != nil {
		h.logger.Error("failed to issue csrf token", "error", err)
	}
}

// HandleMe returns the current identity, or 401 when there is none.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}
