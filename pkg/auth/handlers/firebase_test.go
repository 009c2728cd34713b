package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeFirebase answers like the Firebase REST API: accounts for
// player@arena.test/secret exist, everything else is rejected.
func newFakeFirebase(t *testing.T) *httptest.Server {
	t.Helper()
	fail := func(w http.ResponseWriter, message ErrorResponseMessage) {
		w.WriteHeader(http.StatusBadRequest)
		body := ErrorResponseBody{}
		body.Error.Code = http.StatusBadRequest
		body.Error.Message = message
		json.NewEncoder(w).Encode(body)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/identity/accounts:signInWithPassword":
			var body CredentialsRequestBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Email != "player@arena.test" || body.Password != "secret" {
				fail(w, ErrorInvalidLoginCredentials)
				return
			}
			json.NewEncoder(w).Encode(CredentialsResponseBody{IDToken: "id-token", Email: body.Email, LocalID: "uid-1", Registered: true})
		case "/identity/accounts:signUp":
			fail(w, ErrorEmailExists)
		case "/identity/accounts:delete":
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "not json")
		case "/token/token":
			var body RefreshRequestBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh_token", body.GrantType)
			json.NewEncoder(w).Encode(RefreshResponseBody{IDToken: "fresh", UserID: "uid-1"})
		default:
			fail(w, "SOMETHING_NEW")
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFirebaseAuthHandler(t *testing.T) {
	firebase := newFakeFirebase(t)
	h := NewFirebaseAuthHandler(NewFirebaseAuthHandlerOptions{
		APIKey:             "test-key",
		IdentityToolkitURL: firebase.URL + "/identity",
		SecureTokenURL:     firebase.URL + "/token",
	})

	tests := []struct {
		name        string
		handler     http.HandlerFunc
		form        url.Values
		wantStatus  int
		wantMessage string
		wantData    string
	}{
		{
			name:        "login",
			handler:     h.HandleLogin(),
			form:        url.Values{"email": {"player@arena.test"}, "password": {"secret"}},
			wantStatus:  http.StatusOK,
			wantMessage: "ok",
			wantData:    "id-token",
		},
		{
			name:        "login with bad credentials",
			handler:     h.HandleLogin(),
			form:        url.Values{"email": {"player@arena.test"}, "password": {"wrong"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid credentials",
		},
		{
			name:        "login without password",
			handler:     h.HandleLogin(),
			form:        url.Values{"email": {"player@arena.test"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing password",
		},
		{
			name:        "register existing email",
			handler:     h.HandleRegister(),
			form:        url.Values{"email": {"player@arena.test"}, "password": {"secret"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Email already exists",
		},
		{
			name:        "refresh",
			handler:     h.HandleRefresh(),
			form:        url.Values{"refreshToken": {"r1"}},
			wantStatus:  http.StatusOK,
			wantMessage: "ok",
			wantData:    "fresh",
		},
		{
			name:        "refresh without token",
			handler:     h.HandleRefresh(),
			form:        url.Values{},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing refresh token",
		},
		{
			name:        "delete with an unreadable reply",
			handler:     h.HandleDelete(),
			form:        url.Values{"idToken": {"id-token"}},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to delete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			tt.handler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Status  int             `json:"status"`
				Message string          `json:"message"`
				Data    json.RawMessage `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantMessage, body.Message)
			if tt.wantData != "" {
				assert.Contains(t, string(body.Data), tt.wantData)
			}
		})
	}
}
