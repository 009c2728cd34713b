package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cbodonnell/arena/pkg/log"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

var _ AuthHandler = &FirebaseAuthHandler{}

// FirebaseAuthHandler implements AuthHandler using Firebase Auth REST API
type FirebaseAuthHandler struct {
	apiKey      string
	identityURL string
	tokenURL    string
	client      *http.Client
}

type NewFirebaseAuthHandlerOptions struct {
	APIKey string
	// IdentityToolkitURL and SecureTokenURL default to the Google endpoints
	IdentityToolkitURL string
	SecureTokenURL     string
	Client             *http.Client
}

// NewFirebaseAuthHandler creates a new instance of FirebaseAuthHandler
func NewFirebaseAuthHandler(opts NewFirebaseAuthHandlerOptions) *FirebaseAuthHandler {
	if opts.IdentityToolkitURL == "" {
		opts.IdentityToolkitURL = DefaultIdentityToolkitURL
	}
	if opts.SecureTokenURL == "" {
		opts.SecureTokenURL = DefaultSecureTokenURL
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &FirebaseAuthHandler{
		apiKey:      opts.APIKey,
		identityURL: strings.TrimSuffix(opts.IdentityToolkitURL, "/"),
		tokenURL:    strings.TrimSuffix(opts.SecureTokenURL, "/"),
		client:      opts.Client,
	}
}

// ErrorResponseBody is the response body for an error
// https://firebase.google.com/docs/reference/rest/auth#section-error-format
type ErrorResponseBody struct {
	Error struct {
		Code    int                  `json:"code"`
		Message ErrorResponseMessage `json:"message"`
	} `json:"error"`
}

type ErrorResponseMessage string

const (
	ErrorEmailExists             ErrorResponseMessage = "EMAIL_EXISTS"
	ErrorOperationNotAllowed     ErrorResponseMessage = "OPERATION_NOT_ALLOWED"
	ErrorTooManyAttempts         ErrorResponseMessage = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ErrorInvalidEmail            ErrorResponseMessage = "INVALID_EMAIL"
	ErrorInvalidLoginCredentials ErrorResponseMessage = "INVALID_LOGIN_CREDENTIALS"
	ErrorTokenExpired            ErrorResponseMessage = "TOKEN_EXPIRED"
	ErrorInvalidIDToken          ErrorResponseMessage = "INVALID_ID_TOKEN"
	ErrorUserNotFound            ErrorResponseMessage = "USER_NOT_FOUND"
	ErrorWeakPassword            ErrorResponseMessage = "WEAK_PASSWORD : Password should be at least 6 characters"
)

// CredentialsRequestBody is the request body for the register and login endpoints
type CredentialsRequestBody struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// CredentialsResponseBody is the response body for the register and login endpoints
type CredentialsResponseBody struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Registered   bool   `json:"registered,omitempty"`
}

// RefreshRequestBody is the request body for the refresh endpoint
type RefreshRequestBody struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponseBody is the response body for the refresh endpoint
type RefreshResponseBody struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// DeleteRequestBody is the request body for the delete endpoint
type DeleteRequestBody struct {
	IDToken string `json:"idToken"`
}

// knownErrors maps Firebase error messages to the reply sent to the caller.
// Anything else is a server error.
type knownErrors map[ErrorResponseMessage]string

// HandleRegister handles requests to the register endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-create-email-password
func (s *FirebaseAuthHandler) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := credentials(w, r)
		if !ok {
			return
		}
		s.proxy(w, r, "register", s.identityURL+"/accounts:signUp", payload, &CredentialsResponseBody{}, knownErrors{
			ErrorInvalidEmail:        "Invalid email",
			ErrorWeakPassword:        "Password should be at least 6 characters",
			ErrorEmailExists:         "Email already exists",
			ErrorOperationNotAllowed: "Operation not allowed",
			ErrorTooManyAttempts:     "Too many attempts, try again later",
		})
	}
}

// HandleLogin handles requests to the login endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
func (s *FirebaseAuthHandler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := credentials(w, r)
		if !ok {
			return
		}
		s.proxy(w, r, "login", s.identityURL+"/accounts:signInWithPassword", payload, &CredentialsResponseBody{}, knownErrors{
			ErrorInvalidEmail:            "Invalid email",
			ErrorInvalidLoginCredentials: "Invalid credentials",
			ErrorTooManyAttempts:         "Too many attempts, try again later",
		})
	}
}

// HandleRefresh handles requests to the refresh endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-refresh-token
func (s *FirebaseAuthHandler) HandleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			writeJSON(w, http.StatusBadRequest, "Missing refresh token", nil)
			return
		}
		payload := &RefreshRequestBody{GrantType: "refresh_token", RefreshToken: refreshToken}
		s.proxy(w, r, "refresh", s.tokenURL+"/token", payload, &RefreshResponseBody{}, knownErrors{
			ErrorTokenExpired: "Token expired",
		})
	}
}

// HandleDelete handles requests to the delete endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-delete-account
func (s *FirebaseAuthHandler) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idToken := r.FormValue("idToken")
		if idToken == "" {
			writeJSON(w, http.StatusBadRequest, "Missing ID token", nil)
			return
		}
		s.proxy(w, r, "delete", s.identityURL+"/accounts:delete", &DeleteRequestBody{IDToken: idToken}, nil, knownErrors{
			ErrorInvalidIDToken: "Invalid ID token",
			ErrorUserNotFound:   "User not found",
		})
	}
}

func credentials(w http.ResponseWriter, r *http.Request) (*CredentialsRequestBody, bool) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, "Missing email", nil)
		return nil, false
	}
	if password == "" {
		writeJSON(w, http.StatusBadRequest, "Missing password", nil)
		return nil, false
	}
	return &CredentialsRequestBody{Email: email, Password: password, ReturnSecureToken: true}, true
}

// proxy forwards payload to Firebase and relays the decoded reply in out.
func (s *FirebaseAuthHandler) proxy(w http.ResponseWriter, r *http.Request, action, url string, payload, out interface{}, known knownErrors) {
	failure, err := s.post(r.Context(), url, payload, out)
	if err != nil {
		log.Error("failed to %s: %v", action, err)
		writeJSON(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action), nil)
		return
	}
	if failure != "" {
		if message, ok := known[failure]; ok {
			writeJSON(w, http.StatusBadRequest, message, nil)
			return
		}
		log.Error("unhandled error response message: %s", failure)
		writeJSON(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action), nil)
		return
	}
	writeJSON(w, http.StatusOK, "ok", out)
}

// post returns the Firebase error message when the request is rejected.
func (s *FirebaseAuthHandler) post(ctx context.Context, url string, payload, out interface{}) (ErrorResponseMessage, error) {
	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return "", fmt.Errorf("error encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+s.apiKey, body)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug("error response status: %s", resp.Status)
		errorResponse := &ErrorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			return "", fmt.Errorf("failed to decode error response: %v", err)
		}
		return errorResponse.Error.Message, nil
	}

	if out == nil {
		return "", nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("error decoding response: %v", err)
	}
	return "", nil
}
