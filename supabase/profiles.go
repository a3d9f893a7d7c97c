package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cubshr/authcore"
)

// profileRow mirrors the PostgREST profiles table.
type profileRow struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	ApprovedBy *string   `json:"approved_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *profileRow) profile() *authcore.Profile {
	p := &authcore.Profile{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  r.FullName,
		Role:      authcore.Role(r.Role),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ApprovedBy != nil {
		p.ApprovedBy = *r.ApprovedBy
	}
	return p
}

func (c *Client) profilePath() string {
	return "/rest/v1/" + c.profileTable
}

// bearerForRest prefers the session access token so row-level security
// evaluates as the signed-in user.
func (c *Client) bearerForRest() string {
	access, _, _ := c.sessions.snapshot()
	return access
}

// FetchProfile reads the profile row for identityID. Zero rows is
// [authcore.ErrProfileNotFound], never an empty Profile.
func (c *Client) FetchProfile(ctx context.Context, identityID string) (*authcore.Profile, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.profilePath(),
		map[string]string{"id": "eq." + identityID, "select": "*", "limit": "1"},
		nil, c.bearerForRest())
	if err != nil {
		return nil, err
	}

	var rows []profileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decoding profile rows: %v", authcore.ErrNetwork, err)
	}
	if len(rows) == 0 {
		return nil, authcore.ErrProfileNotFound
	}
	return rows[0].profile(), nil
}

// CreateProfile inserts the profile row. A 409 from the unique constraint
// maps to [authcore.ErrProfileCreateFailed], as does any other insert error.
func (c *Client) CreateProfile(ctx context.Context, input authcore.NewProfileInput) error {
	_, status, err := c.do(ctx, http.MethodPost, c.profilePath(), nil,
		map[string]string{
			"id":        input.ID,
			"email":     input.Email,
			"full_name": input.FullName,
			"role":      string(input.Role),
		}, c.bearerForRest())
	if err != nil {
		if status == http.StatusConflict {
			return fmt.Errorf("%w: duplicate id %s", authcore.ErrProfileCreateFailed, input.ID)
		}
		return fmt.Errorf("%w: %v", authcore.ErrProfileCreateFailed, err)
	}
	return nil
}
