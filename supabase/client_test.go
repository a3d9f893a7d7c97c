package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cubshr/authcore"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "anon-key",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenPayload() map[string]any {
	return map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"expires_in":    3600,
		"user": map[string]any{
			"id":         "uuid-1",
			"email":      "user@cubs.com",
			"created_at": time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"user_metadata": map[string]any{
				"full_name": "Live User",
				"role":      "employee",
				"ignored":   42,
			},
		},
	}
}

func TestSignInMapsIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Error("apikey header missing")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "user@cubs.com" {
			t.Errorf("email = %q", body["email"])
		}
		writeJSON(w, http.StatusOK, tokenPayload())
	}))

	identity, err := client.SignIn(context.Background(), "user@cubs.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if identity.ID != "uuid-1" || identity.Email != "user@cubs.com" {
		t.Fatalf("identity = %+v", identity)
	}
	if identity.Metadata["full_name"] != "Live User" {
		t.Fatalf("metadata = %v", identity.Metadata)
	}
	if _, ok := identity.Metadata["ignored"]; ok {
		t.Fatal("non-string metadata value carried over")
	}
	if client.RefreshToken() != "refresh-1" {
		t.Fatal("refresh token not adopted")
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error_description": "Invalid login credentials",
		})
	}))

	_, err := client.SignIn(context.Background(), "user@cubs.com", "bad")
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignInErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]string
		want   error
	}{
		{
			name:   "email not confirmed",
			status: http.StatusBadRequest,
			body:   map[string]string{"error_code": "email_not_confirmed", "msg": "Email not confirmed"},
			want:   authcore.ErrEmailNotConfirmed,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   map[string]string{"msg": "over limit"},
			want:   authcore.ErrRateLimited,
		},
		{
			name:   "weak password",
			status: http.StatusUnprocessableEntity,
			body:   map[string]string{"error_code": "weak_password", "msg": "Password should be at least 6 characters"},
			want:   authcore.ErrWeakPassword,
		},
		{
			name:   "401 mentioning password is a session expiry, not a weak password",
			status: http.StatusUnauthorized,
			body:   map[string]string{"msg": "invalid password grant"},
			want:   authcore.ErrSessionExpired,
		},
		{
			name:   "unknown shape degrades to network",
			status: http.StatusInternalServerError,
			body:   map[string]string{"msg": "boom"},
			want:   authcore.ErrNetwork,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}))
			_, err := client.SignIn(context.Background(), "user@cubs.com", "pw")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
	}))

	_, err := client.SignUp(context.Background(), "user@cubs.com", "pw", nil)
	if !errors.Is(err, authcore.ErrEmailInUse) {
		t.Fatalf("err = %v, want ErrEmailInUse", err)
	}
}

func TestSignUpConfirmationRequired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No session in the response, just the bare user.
		writeJSON(w, http.StatusOK, tokenPayload()["user"])
	}))

	identity, err := client.SignUp(context.Background(), "user@cubs.com", "pw",
		map[string]string{"full_name": "Live User"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if identity.ID != "uuid-1" {
		t.Fatalf("identity = %+v", identity)
	}
	if client.RefreshToken() != "" {
		t.Fatal("session adopted from a sessionless signup")
	}
}

func TestGetSessionWithoutTokens(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a session")
	}))

	identity, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if identity != nil {
		t.Fatalf("identity = %+v, want nil", identity)
	}
}

func TestGetSessionResolvesUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeJSON(w, http.StatusOK, tokenPayload())
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer access-1" {
				t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
			}
			writeJSON(w, http.StatusOK, tokenPayload()["user"])
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if _, err := client.SignIn(context.Background(), "user@cubs.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	identity, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if identity == nil || identity.ID != "uuid-1" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestGetSessionStaleTokenIsNoSession(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeJSON(w, http.StatusOK, tokenPayload())
		case "/auth/v1/user":
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid token"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if _, err := client.SignIn(context.Background(), "user@cubs.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	identity, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if identity != nil {
		t.Fatal("stale token treated as a live session")
	}
	if client.RefreshToken() != "" {
		t.Fatal("stale token pair not cleared")
	}
}

func TestRestoreSessionExchangesRefreshToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "persisted-token" {
			t.Errorf("refresh_token = %q", body["refresh_token"])
		}
		writeJSON(w, http.StatusOK, tokenPayload())
	}))

	client.RestoreSession("persisted-token")
	identity, err := client.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if identity == nil || identity.ID != "uuid-1" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestRefreshSessionExpired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "refresh token revoked"})
	}))

	client.RestoreSession("revoked-token")
	_, err := client.RefreshSession(context.Background())
	if !errors.Is(err, authcore.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestSignOutClearsLocalStateOnFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeJSON(w, http.StatusOK, tokenPayload())
		case "/auth/v1/logout":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "boom"})
		}
	}))

	if _, err := client.SignIn(context.Background(), "user@cubs.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := client.SignOut(context.Background()); err == nil {
		t.Fatal("remote failure not reported")
	}
	if client.RefreshToken() != "" {
		t.Fatal("token pair survived failed sign-out")
	}
}

func TestFetchProfileNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/profiles" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "eq.uuid-9" {
			t.Errorf("id filter = %q", r.URL.Query().Get("id"))
		}
		writeJSON(w, http.StatusOK, []any{})
	}))

	_, err := client.FetchProfile(context.Background(), "uuid-9")
	if !errors.Is(err, authcore.ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestFetchProfileMapsRow(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{
			"id":          "uuid-1",
			"email":       "user@cubs.com",
			"full_name":   "Live User",
			"role":        "admin",
			"approved_by": "uuid-0",
			"created_at":  "2025-05-01T08:00:00Z",
			"updated_at":  "2025-05-02T08:00:00Z",
		}})
	}))

	profile, err := client.FetchProfile(context.Background(), "uuid-1")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.Role != authcore.RoleAdmin || profile.ApprovedBy != "uuid-0" {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestCreateProfileConflict(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"message": "duplicate key value violates unique constraint",
		})
	}))

	err := client.CreateProfile(context.Background(), authcore.NewProfileInput{ID: "uuid-1"})
	if !errors.Is(err, authcore.ErrProfileCreateFailed) {
		t.Fatalf("err = %v, want ErrProfileCreateFailed", err)
	}
}

func TestConfigured(t *testing.T) {
	if (Config{}).Configured() {
		t.Fatal("empty config reports configured")
	}
	if !(Config{BaseURL: "https://x.supabase.co", APIKey: "k"}).Configured() {
		t.Fatal("complete config reports unconfigured")
	}
}
