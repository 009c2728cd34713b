package providers

import (
	"context"
	"fmt"

	"github.com/cbodonnell/arena/pkg/auth"
)

type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID   string `json:"uid"`
	Guest bool   `json:"guest"`
}

// IdentityResolver turns a presented token into a verified identity.
// Empty and guest tokens are handled by Guests; everything else goes to
// Provider. A nil Provider means only guests are accepted.
type IdentityResolver struct {
	Provider AuthProvider
	Guests   *GuestProvider
}

func (r *IdentityResolver) Resolve(ctx context.Context, token string) (auth.Identity, error) {
	if token == "" || IsGuestToken(token) || r.Provider == nil {
		claims, err := r.Guests.VerifyToken(ctx, token)
		if err != nil {
			return auth.Identity{}, fmt.Errorf("failed to verify guest token: %v", err)
		}
		return auth.Identity{GuestID: claims.UID}, nil
	}

	claims, err := r.Provider.VerifyToken(ctx, token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("failed to verify token: %v", err)
	}
	return auth.Identity{UserID: claims.UID}, nil
}
