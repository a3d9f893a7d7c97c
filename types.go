package authcore

import (
	"context"
	"time"
)

// Role is the application-level role stored on a Profile row.
type Role string

const (
	// RoleAdmin grants full application access, including profile approval.
	RoleAdmin Role = "admin"
	// RoleEmployee is the default role for authenticated staff.
	RoleEmployee Role = "employee"
	// RolePublic marks a registered but unapproved account. It maps to no
	// application access until an admin sets ApprovedBy and changes the role.
	RolePublic Role = "public"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RolePublic:
		return true
	}
	return false
}

// Metadata keys carried on an Identity by the backend adapters.
const (
	MetadataFullName = "full_name"
	MetadataRole     = "role"
)

// Identity is the backend's authentication record: the source of truth for
// "who logged in". It is exclusively owned by the identity backend; authcore
// only reads it.
type Identity struct {
	ID        string
	Email     string
	CreatedAt time.Time
	// Metadata carries backend-side user metadata (display name, requested
	// role). String values only; adapters drop anything else.
	Metadata map[string]string
}

// Profile is the application's row about an identity. Exactly one Profile
// exists per successfully authenticated Identity.
type Profile struct {
	ID       string
	Email    string
	FullName string
	Role     Role
	// ApprovedBy holds the admin identity id that approved this profile.
	// Empty until approval.
	ApprovedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is the read-only projection of Identity + Profile handed to the UI.
// It is rebuilt on every successful auth operation and only ever replaced
// wholesale by the store, never mutated in place.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}

// NewProfileInput is the input for [ProfileStore.CreateProfile].
type NewProfileInput struct {
	ID       string
	Email    string
	FullName string
	Role     Role
}

// IdentityProvider is the identity backend adapter contract consumed by the
// store. Live deployments use the supabase adapter; unconfigured deployments
// fall back to [DemoProvider].
//
// GetSession returns (nil, nil) when no persistent session exists; a non-nil
// error is reserved for transport failures.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error)
	GetSession(ctx context.Context) (*Identity, error)
	RefreshSession(ctx context.Context) (*Identity, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, newPassword string) error
}

// ProfileStore is the profile-row storage contract used by the [Reconciler].
//
// FetchProfile must fail with [ErrProfileNotFound] on zero rows rather than
// returning a partially-populated Profile. CreateProfile must fail with an
// error matching [ErrProfileCreateFailed] on any backend error, including a
// uniqueness violation from a concurrent creator.
type ProfileStore interface {
	FetchProfile(ctx context.Context, identityID string) (*Profile, error)
	CreateProfile(ctx context.Context, input NewProfileInput) error
}

// BiometricOutcome is the result of a biometric challenge.
type BiometricOutcome int

const (
	// BiometricSuccess confirms the challenge.
	BiometricSuccess BiometricOutcome = iota
	// BiometricRejected means the challenge ran and did not match.
	BiometricRejected
	// BiometricCancelled means the user dismissed the challenge.
	BiometricCancelled
)

// BiometricProvider is the device biometric contract consumed by [Guard].
type BiometricProvider interface {
	HasHardware() bool
	IsEnrolled() bool
	Authenticate(ctx context.Context) (BiometricOutcome, error)
}

// AttemptTracker records per-email login attempt outcomes inside a sliding
// window and derives the locked state. Mutated only by [Guard]; safe for
// concurrent use.
type AttemptTracker interface {
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	RecordSuccess(ctx context.Context, email string) error
	FailureCount(ctx context.Context, email string) (int, error)
}

// Snapshot is a point-in-time copy of the auth state. Version increases by
// one on every state write, in operation completion order, so observers can
// discard stale snapshots deterministically.
type Snapshot struct {
	User    *User
	Loading bool
	Err     string
	Version uint64
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}
