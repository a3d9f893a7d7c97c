package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Reconciler guarantees that a Profile row exists for an authenticated
// Identity. The backend may create the row through a best-effort trigger on
// identity creation; reconciliation is the caller's compensating action when
// that trigger has not run yet (registration path) or genuinely failed
// (login path for pre-existing identities).
type Reconciler struct {
	profiles ProfileStore
}

// NewReconciler creates a Reconciler over the given profile storage.
func NewReconciler(profiles ProfileStore) *Reconciler {
	return &Reconciler{profiles: profiles}
}

// ReconcileError reports that a profile was still unresolvable after the
// create-on-miss retry. It carries the original fetch error and the error
// chain of the retry so the resolution policy stays auditable.
type ReconcileError struct {
	IdentityID string
	FetchErr   error
	RetryErr   error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("profile reconciliation failed for identity %s: fetch: %v; retry: %v",
		e.IdentityID, e.FetchErr, e.RetryErr)
}

// Is matches [ErrProfileReconciliationFailed].
func (e *ReconcileError) Is(target error) bool {
	return target == ErrProfileReconciliationFailed
}

// Unwrap exposes the attached fetch and retry errors.
func (e *ReconcileError) Unwrap() []error {
	return []error{e.FetchErr, e.RetryErr}
}

// EnsureProfile resolves the Profile for identity, creating it with
// defaultRole when absent. The algorithm is a fixed read, create-on-miss,
// re-read sequence: a create rejected as a uniqueness violation means a
// concurrent caller won the race, and the re-read settles it either way.
// The bool result reports whether this call issued the create.
//
// EnsureProfile is idempotent: a second call for the same identity finds the
// row on the first read and issues no create.
func (r *Reconciler) EnsureProfile(ctx context.Context, identity *Identity, defaultRole Role) (*Profile, bool, error) {
	if r == nil || r.profiles == nil {
		return nil, false, ErrStoreNotReady
	}
	if identity == nil || identity.ID == "" {
		return nil, false, fmt.Errorf("%w: missing identity", ErrProfileReconciliationFailed)
	}

	profile, fetchErr := r.profiles.FetchProfile(ctx, identity.ID)
	if fetchErr == nil {
		return profile, false, nil
	}
	if !errors.Is(fetchErr, ErrProfileNotFound) {
		return nil, false, fetchErr
	}

	createErr := r.profiles.CreateProfile(ctx, NewProfileInput{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: displayName(identity),
		Role:     defaultRole,
	})

	profile, retryErr := r.profiles.FetchProfile(ctx, identity.ID)
	if retryErr == nil {
		return profile, createErr == nil, nil
	}

	return nil, false, &ReconcileError{
		IdentityID: identity.ID,
		FetchErr:   fetchErr,
		RetryErr:   errors.Join(createErr, retryErr),
	}
}

// roleSignal extracts a role hint from identity metadata, used by login to
// prefer the existing role over the configured default.
func roleSignal(identity *Identity) (Role, bool) {
	if identity == nil {
		return "", false
	}
	r := Role(identity.Metadata[MetadataRole])
	if r.Valid() {
		return r, true
	}
	return "", false
}

func displayName(identity *Identity) string {
	if identity == nil {
		return ""
	}
	if name := strings.TrimSpace(identity.Metadata[MetadataFullName]); name != "" {
		return name
	}
	return nameFromEmail(identity.Email)
}

// nameFromEmail derives a display name from the capitalized local part of an
// email address: "random@x.com" becomes "Random".
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		return ""
	}
	runes := []rune(local)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
