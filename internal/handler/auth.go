package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
)

// IssuerKeyHeader must carry the configured issuer key when one is set.
const IssuerKeyHeader = "X-Issuer-Key"

type AuthHandler struct {
	users        *store.UserStore
	issuer       *auth.Issuer
	verifier     auth.Verifier
	issuerKey    string
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler builds the session endpoints. verifier may be nil, in which
// case the identity posted to /auth/token is trusted as-is.
func NewAuthHandler(us *store.UserStore, issuer *auth.Issuer, verifier auth.Verifier, issuerKey string, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:        us,
		issuer:       issuer,
		verifier:     verifier,
		issuerKey:    issuerKey,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type tokenRequest struct {
	User *struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Name         string `json:"name"`
		UserMetadata struct {
			FullName string `json:"full_name"`
			Name     string `json:"name"`
		} `json:"user_metadata"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Token exchanges an upstream identity for a session token and cookie.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.issuerKey != "" {
		got := r.Header.Get(IssuerKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.issuerKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid issuer key")
			return
		}
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	var id auth.Identity
	if h.verifier != nil {
		if strings.TrimSpace(req.AccessToken) == "" {
			writeError(w, http.StatusBadRequest, "accessToken is required")
			return
		}
		verified, err := h.verifier.Verify(r.Context(), req.AccessToken)
		if err != nil {
			h.logger.Warn("upstream token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "access token rejected")
			return
		}
		id = verified
	} else {
		if req.User == nil || strings.TrimSpace(req.User.ID) == "" || strings.TrimSpace(req.User.Email) == "" {
			writeError(w, http.StatusBadRequest, "user id and email are required")
			return
		}
		id = auth.Identity{
			ID:    strings.TrimSpace(req.User.ID),
			Email: strings.TrimSpace(req.User.Email),
			Name:  auth.DisplayName(req.User.UserMetadata.FullName, firstNonEmpty(req.User.Name, req.User.UserMetadata.Name), req.User.Email),
		}
	}

	if !h.issuer.Configured() {
		h.logger.Error("token requested but no secret configured")
		writeError(w, http.StatusInternalServerError, "server configuration error")
		return
	}

	user, created, err := h.users.FindOrCreate(r.Context(), id.ID, id.Email, id.Name)
	if err != nil {
		h.logger.Error("find or create user", "user_id", id.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	if created {
		h.logger.Info("user created", "user_id", user.ID)
	}

	token, exp, err := h.issuer.Issue(auth.Identity{ID: user.ID, Email: id.Email, Name: user.Name})
	if err != nil {
		h.logger.Error("issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID := auth.UserID(r.Context()); userID != "" {
		h.logger.Info("logout", "user_id", userID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, "logged out")
}

// Me reports the caller's stored user row.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

// Ping echoes the token's identity without touching the database.
func (h *AuthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "authenticated",
		"user": map[string]string{
			"id":   id.ID,
			"name": id.Name,
		},
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
