package authcore

import (
	"context"
	"fmt"
	"strings"
)

// Guard is the security overlay in front of [Store]. It owns everything that
// must happen before or after the core auth flow: email sanitization, the
// failed-attempt lockout check, attempt bookkeeping, and the optional
// biometric confirmation gate. Application code talks to the Guard; the
// Store underneath never sees a locked-out or malformed request.
type Guard struct {
	store     *Store
	attempts  AttemptTracker
	biometric BiometricProvider
	cfg       Config
}

// Store exposes the underlying auth state store for read access and for the
// operations the overlay passes through unchanged.
func (g *Guard) Store() *Store {
	return g.store
}

// Snapshot returns the current auth state.
func (g *Guard) Snapshot() Snapshot {
	return g.store.Snapshot()
}

// Login runs the guarded login sequence: sanitize the email, refuse if the
// email is locked out, authenticate through the store, record the attempt
// outcome, then run the biometric gate when enabled. Lockout is evaluated
// before the backend is contacted, so a locked email costs no network call
// and leaks nothing about whether the password was right. Failures decided
// here, before or after the store's own flow, are also published to the
// store's snapshot error, so subscribers see them without inspecting the
// returned error.
func (g *Guard) Login(ctx context.Context, email, password string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		g.store.noteError(err)
		g.store.metricInc(MetricLoginInvalidEmail)
		g.store.emitAudit(ctx, auditEventLoginInvalidEmail, false, "", email, err, nil)
		return nil, err
	}

	locked, err := g.attempts.Locked(ctx, normalized)
	if err != nil {
		// Tracker outage fails closed. Letting logins through unbounded while
		// the tracker is down would disable lockout exactly when an attacker
		// can cause tracker load.
		wrapped := fmt.Errorf("%w: attempt tracker: %v", ErrRateLimited, err)
		g.store.noteError(wrapped)
		return nil, wrapped
	}
	if locked {
		g.store.noteError(ErrAccountLocked)
		g.store.metricInc(MetricLoginLockedOut)
		g.store.emitAudit(ctx, auditEventLoginLockedOut, false, "", normalized, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	user, err := g.store.Login(ctx, normalized, password)
	if err != nil {
		if trackErr := g.attempts.RecordFailure(ctx, normalized); trackErr != nil {
			logf("attempt tracker record failure: %v", trackErr)
		}
		return nil, err
	}

	if trackErr := g.attempts.RecordSuccess(ctx, normalized); trackErr != nil {
		logf("attempt tracker record success: %v", trackErr)
	}

	if err := g.confirmBiometric(ctx, user, normalized); err != nil {
		return nil, err
	}
	return user, nil
}

// confirmBiometric runs the post-password biometric challenge. The password
// login has already committed, so any non-success outcome compensates by
// logging the provisional user back out before reporting failure.
func (g *Guard) confirmBiometric(ctx context.Context, user *User, email string) error {
	if !g.cfg.Biometric.Enabled {
		return nil
	}
	if g.biometric == nil || !g.biometric.HasHardware() || !g.biometric.IsEnrolled() {
		g.rollbackLogin(ctx)
		g.store.noteError(ErrBiometricUnavailable)
		g.store.emitAudit(ctx, auditEventBiometricRejected, false, user.ID, email, ErrBiometricUnavailable, nil)
		return ErrBiometricUnavailable
	}

	challengeCtx := ctx
	if g.cfg.Biometric.Timeout > 0 {
		var cancel context.CancelFunc
		challengeCtx, cancel = context.WithTimeout(ctx, g.cfg.Biometric.Timeout)
		defer cancel()
	}

	outcome, err := g.biometric.Authenticate(challengeCtx)
	if err == nil && outcome == BiometricSuccess {
		g.store.metricInc(MetricBiometricConfirmed)
		g.store.emitAudit(ctx, auditEventBiometricConfirmed, true, user.ID, email, nil, nil)
		return nil
	}

	g.rollbackLogin(ctx)
	g.store.metricInc(MetricBiometricRejected)
	if err == nil {
		err = ErrBiometricFailed
	}
	wrapped := fmt.Errorf("%w: %v", ErrBiometricFailed, err)
	// Published after the rollback, which cleared the error state.
	g.store.noteError(wrapped)
	g.store.emitAudit(ctx, auditEventBiometricRejected, false, user.ID, email, err, nil)
	return wrapped
}

func (g *Guard) rollbackLogin(ctx context.Context) {
	if err := g.store.Logout(ctx); err != nil {
		logf("biometric rollback logout: %v", err)
	}
}

// Register sanitizes the email and passes through to the store. Registration
// attempts do not count against the login lockout budget.
func (g *Guard) Register(ctx context.Context, email, password, name string, role Role) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		g.store.noteError(err)
		return nil, err
	}
	return g.store.Register(ctx, normalized, password, name, role)
}

// Logout passes through to the store.
func (g *Guard) Logout(ctx context.Context) error {
	return g.store.Logout(ctx)
}

// CheckAuth passes through to the store.
func (g *Guard) CheckAuth(ctx context.Context) (*User, error) {
	return g.store.CheckAuth(ctx)
}

// ResetPassword sanitizes the email and passes through to the store.
func (g *Guard) ResetPassword(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		g.store.noteError(err)
		return err
	}
	return g.store.ResetPassword(ctx, normalized)
}

// UpdatePassword passes through to the store.
func (g *Guard) UpdatePassword(ctx context.Context, newPassword string) error {
	return g.store.UpdatePassword(ctx, newPassword)
}

// ExtendSession passes through to the store.
func (g *Guard) ExtendSession(ctx context.Context) error {
	return g.store.ExtendSession(ctx)
}

// FailureCount reports the recorded failed-login count for email inside the
// current lockout window.
func (g *Guard) FailureCount(ctx context.Context, email string) (int, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return 0, err
	}
	return g.attempts.FailureCount(ctx, normalized)
}

// Close flushes and stops the audit dispatcher. Call once during shutdown.
func (g *Guard) Close() {
	if g.store != nil && g.store.audit != nil {
		g.store.audit.Close()
	}
}

// normalizeEmail trims whitespace, lowercases, and applies a minimal
// structural check: exactly one "@" with a non-empty local part and a domain
// containing a dot. Anything stricter belongs to the identity backend.
func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	local, domain, ok := strings.Cut(normalized, "@")
	if !ok || local == "" || domain == "" {
		return "", ErrInvalidEmail
	}
	if strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return "", ErrInvalidEmail
	}
	if strings.ContainsAny(normalized, " \t\r\n") {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}
