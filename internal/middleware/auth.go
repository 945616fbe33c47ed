package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/model"
)

// TokenFromRequest returns the bearer token, falling back to the session
// cookies. It returns "" when none is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok
		}
	}
	for _, name := range []string{auth.CookieName, auth.LegacyCookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// RequireAuth verifies the request token and stores the caller's Identity in
// the context. A missing or expired token is 401, any other invalid token is
// 403 and an unconfigured secret is 500.
func RequireAuth(issuer *auth.Issuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromRequest(r)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !issuer.Configured() {
				logger.Error("token secret not configured")
				writeError(w, http.StatusInternalServerError, "server configuration error")
				return
			}

			id, err := issuer.Parse(tok)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			case err != nil:
				logger.Debug("rejected token", "error", err)
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the Identity when a valid token is present and never
// rejects the request.
func OptionalAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := TokenFromRequest(r); tok != "" {
				if id, err := issuer.Parse(tok); err == nil {
					r = r.WithContext(auth.WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemberLookup finds a user's membership of a group, returning nil when
// there is none.
type MemberLookup interface {
	GetMember(ctx context.Context, groupID, userID string) (*model.Membership, error)
}

// RequireMember rejects callers without a membership row for the {groupId}
// path value with 403, before the handler reads or writes anything. It must
// run after RequireAuth.
func RequireMember(groups MemberLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserID(r.Context())
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			groupID := r.PathValue("groupId")
			if groupID == "" {
				writeError(w, http.StatusBadRequest, "groupId is required")
				return
			}

			m, err := groups.GetMember(r.Context(), groupID, userID)
			if err != nil {
				logger.Error("membership lookup", "group_id", groupID, "user_id", userID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if m == nil {
				writeError(w, http.StatusForbidden, "not a member of this group")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithMembership(r.Context(), m)))
		})
	}
}

// RequireAdmin checks that the membership placed by RequireMember has the
// admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := auth.MembershipFromContext(r.Context())
		if !ok || !m.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
