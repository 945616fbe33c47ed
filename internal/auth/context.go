package auth

import (
	"context"

	"github.com/dukerupert/wadake/internal/model"
)

type contextKey struct{}

// Identity is the caller as asserted by a verified token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// UserID returns the caller's id, or "" when the request is unauthenticated.
func UserID(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.ID
}

type membershipKey struct{}

// WithMembership records the caller's verified membership of the group named
// by the request.
func WithMembership(ctx context.Context, m *model.Membership) context.Context {
	return context.WithValue(ctx, membershipKey{}, m)
}

func MembershipFromContext(ctx context.Context) (*model.Membership, bool) {
	m, ok := ctx.Value(membershipKey{}).(*model.Membership)
	return m, ok && m != nil
}
