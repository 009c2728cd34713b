package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const guestTokenPrefix = "guest-"

var _ AuthProvider = &GuestProvider{}

// GuestProvider issues anonymous identities. An empty token gets a fresh
// guest id; a previously issued guest token keeps its id.
type GuestProvider struct{}

func NewGuestProvider() *GuestProvider {
	return &GuestProvider{}
}

func IsGuestToken(token string) bool {
	return strings.HasPrefix(token, guestTokenPrefix)
}

func (p *GuestProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	if token == "" {
		return &TokenClaims{UID: guestTokenPrefix + uuid.NewString(), Guest: true}, nil
	}
	if !IsGuestToken(token) {
		return nil, fmt.Errorf("not a guest token")
	}
	if _, err := uuid.Parse(strings.TrimPrefix(token, guestTokenPrefix)); err != nil {
		return nil, fmt.Errorf("malformed guest token: %v", err)
	}
	return &TokenClaims{UID: token, Guest: true}, nil
}
