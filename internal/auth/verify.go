package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

var ErrUpstreamRejected = errors.New("upstream identity rejected")

// Verifier resolves a provider access token to the identity it belongs to.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// SupabaseVerifier asks the Supabase auth API who owns an access token.
type SupabaseVerifier struct {
	client *supabase.Client
}

func NewSupabaseVerifier(url, key string) (*SupabaseVerifier, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &SupabaseVerifier{client: client}, nil
}

func (v *SupabaseVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, ErrUpstreamRejected
	}
	resp, err := v.client.Auth.WithToken(accessToken).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUpstreamRejected, err)
	}
	var fullName, name string
	if s, ok := resp.UserMetadata["full_name"].(string); ok {
		fullName = s
	}
	if s, ok := resp.UserMetadata["name"].(string); ok {
		name = s
	}
	return Identity{
		ID:    resp.ID.String(),
		Email: resp.Email,
		Name:  DisplayName(fullName, name, resp.Email),
	}, nil
}
