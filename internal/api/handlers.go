package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wisepal/wisepal-backend/internal/core"
	"github.com/wisepal/wisepal-backend/internal/store"
)

const maxBodyBytes = 1 << 20

type APIHandler struct {
	users  *core.UserService
	chat   *core.ChatService
	db     store.Store
	ai     core.Completer
	logger zerolog.Logger
}

func NewAPIHandler(users *core.UserService, chat *core.ChatService, db store.Store, ai core.Completer, logger zerolog.Logger) *APIHandler {
	return &APIHandler{users: users, chat: chat, db: db, ai: ai, logger: logger}
}

// JSON writes data with the given status code.
func (h *APIHandler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

// Error renders err as {"detail": ...}. Internal causes are logged, never returned.
func (h *APIHandler) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(core.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	h.JSON(w, status, map[string]string{"detail": core.Message(err)})
}

func statusFor(k core.Kind) int {
	switch k {
	case core.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidCredentials:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	case core.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return core.InvalidInput("Invalid request body")
	}
	return nil
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to the WisePal API!"})
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// HealthHandler pings the store and reports whether the AI model is configured.
// Only a failing store makes the service unhealthy.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"database": "pass", "ai": "pass"}
	status, code := "healthy", http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("health check: database ping failed")
		checks["database"] = "fail"
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	if a, ok := h.ai.(interface{ Available() bool }); ok && !a.Available() {
		checks["ai"] = "unavailable"
		if code == http.StatusOK {
			status = "degraded"
		}
	}

	h.JSON(w, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// readCredentials accepts the OAuth2 password form (username/password) or
// the equivalent JSON body.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := decodeJSON(r, &c); err != nil {
			return c, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return c, core.InvalidInput("Invalid form body")
		}
		c.Username = r.PostForm.Get("username")
		c.Password = r.PostForm.Get("password")
	}
	if c.Username == "" {
		c.Username = c.Email
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" || c.Password == "" {
		return c, core.InvalidInput("username and password are required")
	}
	return c, nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	token, err := h.users.Login(r.Context(), c.Username, c.Password)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// LogoutHandler exists for client compatibility. Tokens are stateless and
// simply expire.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, user)
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (h *APIHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	var upd core.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.Error(w, r, err)
		return
	}

	user, err := h.users.UpdateMe(r.Context(), UserFromContext(r.Context()), upd)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, user)
}

func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id := store.UserID(chi.URLParam(r, "userID"))

	user, err := h.users.GetUser(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, user)
}

func (h *APIHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id := store.UserID(chi.URLParam(r, "userID"))

	var upd core.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.Error(w, r, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), UserFromContext(r.Context()), id, upd)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, user)
}

type ChatRequest struct {
	Message *string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}
	if req.Message == nil {
		h.Error(w, r, core.InvalidInput("message is required"))
		return
	}

	reply, err := h.chat.SendMessage(r.Context(), UserFromContext(r.Context()), *req.Message)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, ChatResponse{Response: reply})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	convs, err := h.chat.ListConversations(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, convs)
}
