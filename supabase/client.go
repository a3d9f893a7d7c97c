// Package supabase adapts a Supabase project (GoTrue auth plus PostgREST)
// to the authcore provider contracts. The adapter owns session token
// handling end to end; nothing outside this package ever sees an access or
// refresh token.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cubshr/authcore"
)

const defaultTimeout = 10 * time.Second

// Config locates a Supabase project.
type Config struct {
	// BaseURL is the project URL, e.g. https://xyzcompany.supabase.co.
	BaseURL string
	// APIKey is the anon (publishable) key. Row-level security enforces the
	// real access rules server-side.
	APIKey string
	// ProfileTable is the PostgREST table holding profile rows. Defaults to
	// "profiles".
	ProfileTable string
	// HTTPClient overrides the transport. Defaults to a client with a 10s
	// timeout.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// Configured reports whether cfg carries enough to reach a live project.
// The builder uses this to decide between live and demo mode.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// Client talks to one Supabase project. It implements
// [authcore.IdentityProvider] and [authcore.ProfileStore].
type Client struct {
	baseURL      string
	apiKey       string
	profileTable string
	http         *http.Client

	sessions sessionState
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("supabase: BaseURL and APIKey are required")
	}
	table := cfg.ProfileTable
	if table == "" {
		table = "profiles"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		profileTable: table,
		http:         httpClient,
	}, nil
}

// do issues one JSON request. A nil body sends no payload. The response body
// is returned for 2xx; anything else maps through apiError.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body any, bearer string) ([]byte, int, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, 0, err
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("apikey", c.apiKey)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", authcore.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", authcore.ErrNetwork, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, resp.StatusCode, nil
	}
	return data, resp.StatusCode, apiError(resp.StatusCode, data)
}

// errorPayload is the union of GoTrue's error response shapes.
type errorPayload struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (p errorPayload) text() string {
	for _, s := range []string{p.ErrorDescription, p.Msg, p.Message, p.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}

// apiError maps a non-2xx GoTrue/PostgREST response to the authcore error
// taxonomy. Unknown shapes degrade to a wrapped network error so callers
// never match on raw backend text.
func apiError(status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)
	text := strings.ToLower(payload.text())

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", authcore.ErrRateLimited, payload.text())
	case strings.Contains(text, "invalid login credentials"),
		payload.ErrorCode == "invalid_credentials":
		return authcore.ErrInvalidCredentials
	case strings.Contains(text, "email not confirmed"),
		payload.ErrorCode == "email_not_confirmed":
		return authcore.ErrEmailNotConfirmed
	case strings.Contains(text, "already registered"),
		strings.Contains(text, "already been registered"),
		payload.ErrorCode == "user_already_exists",
		payload.ErrorCode == "email_exists":
		return authcore.ErrEmailInUse
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) &&
		(strings.Contains(text, "password") || payload.ErrorCode == "weak_password"):
		return fmt.Errorf("%w: %s", authcore.ErrWeakPassword, payload.text())
	case status == http.StatusUnauthorized:
		return authcore.ErrSessionExpired
	}

	return fmt.Errorf("%w: status %d: %s", authcore.ErrNetwork, status, payload.text())
}
