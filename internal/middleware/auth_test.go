package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func mustIssue(t *testing.T, issuer *auth.Issuer, id auth.Identity) string {
	t.Helper()
	tok, _, err := issuer.Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoToken(t *testing.T) {
	handler := RequireAuth(auth.NewIssuer("secret"), discardLogger())(unreachable(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if msg := errorBody(t, rec); msg != "authentication required" {
		t.Errorf("error = %q, want %q", msg, "authentication required")
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	handler := RequireAuth(auth.NewIssuer("secret"), discardLogger())(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAuthSecretMissing(t *testing.T) {
	handler := RequireAuth(auth.NewIssuer(""), discardLogger())(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer something")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRequireAuthBearer(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	tok := mustIssue(t, issuer, auth.Identity{ID: "u1", Name: "Alice"})

	var got auth.Identity
	handler := RequireAuth(issuer, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.ID != "u1" {
		t.Errorf("identity id = %q, want %q", got.ID, "u1")
	}
}

func TestRequireAuthCookies(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	tok := mustIssue(t, issuer, auth.Identity{ID: "u1"})

	for _, name := range []string{auth.CookieName, auth.LegacyCookieName} {
		t.Run(name, func(t *testing.T) {
			handler := RequireAuth(issuer, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest("GET", "/", nil)
			req.AddCookie(&http.Cookie{Name: name, Value: tok})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	tok := mustIssue(t, issuer, auth.Identity{ID: "u1"})

	var seen string
	handler := OptionalAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.UserID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if seen != "" {
		t.Errorf("anonymous user id = %q, want empty", seen)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "u1" {
		t.Errorf("user id = %q, want %q", seen, "u1")
	}
}

type fakeMembers struct {
	members map[string]*model.Membership
	err     error
}

func (f fakeMembers) GetMember(_ context.Context, groupID, userID string) (*model.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[groupID+"/"+userID], nil
}

func serveMember(t *testing.T, lookup MemberLookup, userID string, next http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("GET /groups/{groupId}/things", RequireMember(lookup, discardLogger())(next))

	req := httptest.NewRequest("GET", "/groups/g1/things", nil)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ID: userID}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRequireMemberForbidden(t *testing.T) {
	rec := serveMember(t, fakeMembers{}, "u2", unreachable(t))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireMemberAllowed(t *testing.T) {
	lookup := fakeMembers{members: map[string]*model.Membership{
		"g1/u1": {UserID: "u1", GroupID: "g1", Role: model.RoleMember},
	}}
	var role string
	rec := serveMember(t, lookup, "u1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, _ := auth.MembershipFromContext(r.Context())
		role = m.Role
	}))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if role != model.RoleMember {
		t.Errorf("role = %q, want %q", role, model.RoleMember)
	}
}

func TestRequireMemberLookupError(t *testing.T) {
	rec := serveMember(t, fakeMembers{err: errors.New("db down")}, "u1", unreachable(t))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRequireMemberUnauthenticated(t *testing.T) {
	rec := serveMember(t, fakeMembers{}, "", unreachable(t))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("POST", "/", nil)
	req = req.WithContext(auth.WithMembership(req.Context(), &model.Membership{Role: model.RoleMember}))
	rec := httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest("POST", "/", nil)
	req = req.WithContext(auth.WithMembership(req.Context(), &model.Membership{Role: model.RoleAdmin}))
	rec = httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want %d", rec.Code, http.StatusOK)
	}
}
