package providers

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

var _ AuthProvider = &FirebaseAuthProvider{}

type FirebaseAuthProvider struct {
	auth *auth.Client
}

type NewFirebaseAuthProviderOptions struct {
	ProjectID string
	// APIKey and CredentialsFile are alternatives; CredentialsFile wins when both are set
	APIKey          string
	CredentialsFile string
}

// NewFirebaseAuthProvider creates a provider that verifies Firebase ID tokens.
func NewFirebaseAuthProvider(ctx context.Context, opts NewFirebaseAuthProviderOptions) (*FirebaseAuthProvider, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	clientOpt := option.WithAPIKey(opts.APIKey)
	if opts.CredentialsFile != "" {
		clientOpt = option.WithCredentialsFile(opts.CredentialsFile)
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpt)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %v", err)
	}

	return &FirebaseAuthProvider{
		auth: client,
	}, nil
}

// VerifyToken verifies a Firebase ID token
func (p *FirebaseAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	token, err := p.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("error verifying token: %v", err)
	}

	return &TokenClaims{
		UID: token.UID,
	}, nil
}
