// Package postgres implements profile-row storage directly on PostgreSQL.
// Deployments that own their database use this store instead of the
// PostgREST path; the reconciliation semantics are identical.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cubshr/authcore"
)

const uniqueViolation = "23505"

// ProfileStore implements [authcore.ProfileStore] over a pgx pool.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Connect dials the database and returns a store owning a new pool.
func Connect(ctx context.Context, dsn string) (*ProfileStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &ProfileStore{pool: pool}, nil
}

// Close releases the pool.
func (s *ProfileStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the profiles table when absent.
func (s *ProfileStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id          uuid PRIMARY KEY,
			email       text NOT NULL,
			full_name   text NOT NULL DEFAULT '',
			role        text NOT NULL DEFAULT 'employee',
			approved_by uuid,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// FetchProfile reads the row for identityID. Zero rows is
// [authcore.ErrProfileNotFound].
func (s *ProfileStore) FetchProfile(ctx context.Context, identityID string) (*authcore.Profile, error) {
	var (
		p          authcore.Profile
		approvedBy *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name, role, approved_by, created_at, updated_at
		FROM profiles
		WHERE id = $1`, identityID,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &approvedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrProfileNotFound
		}
		return nil, fmt.Errorf("postgres: fetch profile: %w", err)
	}
	if approvedBy != nil {
		p.ApprovedBy = *approvedBy
	}
	return &p, nil
}

// CreateProfile inserts the row. A unique violation from a concurrent
// creator maps to [authcore.ErrProfileCreateFailed]; the caller's re-read
// settles the race.
func (s *ProfileStore) CreateProfile(ctx context.Context, input authcore.NewProfileInput) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)`,
		input.ID, input.Email, input.FullName, string(input.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: duplicate id %s", authcore.ErrProfileCreateFailed, input.ID)
		}
		return fmt.Errorf("%w: %v", authcore.ErrProfileCreateFailed, err)
	}
	return nil
}

// ApproveProfile records an admin approval and promotes the row to role.
func (s *ProfileStore) ApproveProfile(ctx context.Context, identityID, adminID string, role authcore.Role) error {
	if !role.Valid() {
		return authcore.ErrInvalidRole
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET role = $2, approved_by = $3, updated_at = now()
		WHERE id = $1`, identityID, string(role), adminID)
	if err != nil {
		return fmt.Errorf("postgres: approve profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrProfileNotFound
	}
	return nil
}
