package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cubshr/authcore"
)

// sessionState holds the current token pair. Access is serialized; token
// refresh replaces the pair atomically.
type sessionState struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func (s *sessionState) set(access, refresh string, expiresAt time.Time) {
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

func (s *sessionState) clear() {
	s.set("", "", time.Time{})
}

func (s *sessionState) snapshot() (access, refresh string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken, s.expiresAt
}

// gotrueUser is the GoTrue user object subset the adapter reads.
type gotrueUser struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	CreatedAt    time.Time         `json:"created_at"`
	UserMetadata map[string]any    `json:"user_metadata"`
	AppMetadata  map[string]any    `json:"app_metadata"`
	Identities   []json.RawMessage `json:"identities"`
}

// tokenResponse is the GoTrue token grant response.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

func (u *gotrueUser) identity() *authcore.Identity {
	metadata := make(map[string]string, len(u.UserMetadata))
	for k, v := range u.UserMetadata {
		if s, ok := v.(string); ok {
			metadata[k] = s
		}
	}
	return &authcore.Identity{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Metadata:  metadata,
	}
}

// expiry derives the access token deadline. ExpiresIn is authoritative; the
// token's exp claim is the fallback when the field is absent. The claim is
// read unverified: the adapter only schedules refreshes with it, the server
// still rejects bad tokens.
func (t *tokenResponse) expiry(now time.Time) time.Time {
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(t.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(time.Hour)
}

func (c *Client) adoptSession(tok *tokenResponse) {
	c.sessions.set(tok.AccessToken, tok.RefreshToken, tok.expiry(time.Now()))
}

// SignIn exchanges the credential pair for a token session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*authcore.Identity, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/auth/v1/token",
		map[string]string{"grant_type": "password"},
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: decoding token response: %v", authcore.ErrNetwork, err)
	}
	c.adoptSession(&tok)
	return tok.User.identity(), nil
}

// SignUp registers a new identity carrying metadata as GoTrue user_metadata.
// Projects with email confirmation enabled return no session; the identity
// is still returned so reconciliation can proceed.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*authcore.Identity, error) {
	data := make(map[string]any, len(metadata))
	for k, v := range metadata {
		data[k] = v
	}
	body, _, err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil,
		map[string]any{"email": email, "password": password, "data": data}, "")
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: decoding signup response: %v", authcore.ErrNetwork, err)
	}
	if tok.AccessToken != "" {
		c.adoptSession(&tok)
		return tok.User.identity(), nil
	}

	// Confirmation-required projects return the bare user object.
	var user gotrueUser
	if err := json.Unmarshal(body, &user); err != nil || user.ID == "" {
		return nil, fmt.Errorf("%w: decoding signup user", authcore.ErrNetwork)
	}
	return user.identity(), nil
}

// GetSession resolves the current identity from the stored token pair,
// refreshing first when the access token is within a minute of expiry.
// (nil, nil) means no session exists; errors are transport failures only.
func (c *Client) GetSession(ctx context.Context) (*authcore.Identity, error) {
	access, refresh, expiresAt := c.sessions.snapshot()
	if access == "" && refresh == "" {
		return nil, nil
	}

	if time.Until(expiresAt) < time.Minute {
		identity, err := c.RefreshSession(ctx)
		if err != nil {
			if errors.Is(err, authcore.ErrSessionExpired) || errors.Is(err, authcore.ErrNoSession) {
				c.sessions.clear()
				return nil, nil
			}
			return nil, err
		}
		return identity, nil
	}

	body, status, err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, access)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// Stale token pair is a definitive "no session", not a failure.
			c.sessions.clear()
			return nil, nil
		}
		return nil, err
	}

	var user gotrueUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: decoding user: %v", authcore.ErrNetwork, err)
	}
	return user.identity(), nil
}

// RefreshSession rotates the token pair through the refresh_token grant.
func (c *Client) RefreshSession(ctx context.Context) (*authcore.Identity, error) {
	_, refresh, _ := c.sessions.snapshot()
	if refresh == "" {
		return nil, authcore.ErrNoSession
	}

	body, status, err := c.do(ctx, http.MethodPost, "/auth/v1/token",
		map[string]string{"grant_type": "refresh_token"},
		map[string]string{"refresh_token": refresh}, "")
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			c.sessions.clear()
			return nil, authcore.ErrSessionExpired
		}
		return nil, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: decoding refresh response: %v", authcore.ErrNetwork, err)
	}
	c.adoptSession(&tok)
	return tok.User.identity(), nil
}

// RestoreSession seeds the adapter with a persisted refresh token, e.g. one
// loaded from the device keychain at app start. The next GetSession call
// exchanges it for a live session.
func (c *Client) RestoreSession(refreshToken string) {
	if refreshToken == "" {
		return
	}
	c.sessions.set("", refreshToken, time.Time{})
}

// RefreshToken returns the current refresh token for persistence.
func (c *Client) RefreshToken() string {
	_, refresh, _ := c.sessions.snapshot()
	return refresh
}

// SignOut revokes the session server-side and always drops the local token
// pair, even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	access, _, _ := c.sessions.snapshot()
	defer c.sessions.clear()
	if access == "" {
		return nil
	}
	_, _, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, access)
	return err
}

// ResetPassword requests a recovery mail for email.
func (c *Client) ResetPassword(ctx context.Context, email, redirectTo string) error {
	query := map[string]string{}
	if redirectTo != "" {
		query["redirect_to"] = redirectTo
	}
	_, _, err := c.do(ctx, http.MethodPost, "/auth/v1/recover", query,
		map[string]string{"email": email}, "")
	return err
}

// UpdatePassword changes the authenticated identity's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	access, _, _ := c.sessions.snapshot()
	if access == "" {
		return authcore.ErrNoSession
	}
	_, _, err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil,
		map[string]string{"password": newPassword}, access)
	return err
}
