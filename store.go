package authcore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store is the process-wide auth state container. It holds the current
// User projection, a loading flag, and the last operation error, and exposes
// the only mutating operation set the rest of the application may use.
//
// All operations follow the same shape: mark the state loading with a cleared
// error, perform the work, then commit either the new User or an error
// message. State writes are serialized by a single mutex and stamped with a
// monotonic version counter, so updates land in the order operations
// complete, not the order they were invoked.
type Store struct {
	provider   IdentityProvider
	reconciler *Reconciler
	cfg        Config
	audit      *auditDispatcher
	metrics    *Metrics

	mu      sync.Mutex
	user    *User
	loading bool
	errMsg  string
	version uint64
	subs    map[int]chan Snapshot
	nextSub int
}

// Snapshot returns a point-in-time copy of the auth state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Loading: s.loading,
		Err:     s.errMsg,
		Version: s.version,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Metrics exposes the in-process metrics recorder for exporters.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot copies the current counters and histograms.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *User {
	return s.Snapshot().User
}

// IsAuthenticated reports whether a user is currently signed in.
func (s *Store) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// Version returns the monotonic state-write counter.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ClearError clears the last operation error without touching the user.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errMsg == "" {
		return
	}
	s.errMsg = ""
	s.bumpLocked()
}

// Subscribe registers a snapshot channel the UI can re-render from. Every
// state write publishes one snapshot; slow consumers lose intermediate
// snapshots rather than blocking the store. The returned cancel func closes
// the channel.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]chan Snapshot)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// bumpLocked advances the version and publishes the new snapshot.
// Callers hold s.mu.
func (s *Store) bumpLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// begin marks the state loading with a cleared error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.bumpLocked()
	s.mu.Unlock()
}

// beginIfIdle is begin for CheckAuth: it refuses to start while another
// operation is in flight so two concurrent probes cannot race.
func (s *Store) beginIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.loading = true
	s.errMsg = ""
	s.bumpLocked()
	return true
}

// finishUser commits a successful auth operation.
func (s *Store) finishUser(user *User) {
	s.mu.Lock()
	s.user = user
	s.loading = false
	s.errMsg = ""
	s.bumpLocked()
	s.mu.Unlock()
}

// finishErr commits a failed operation. The prior user, if any, remains:
// a failed re-auth does not log the user out.
func (s *Store) finishErr(err error) {
	s.mu.Lock()
	s.loading = false
	s.errMsg = userMessage(err)
	s.bumpLocked()
	s.mu.Unlock()
}

// finishAnonymous commits a signed-out state, optionally surfacing err.
func (s *Store) finishAnonymous(err error) {
	s.mu.Lock()
	s.user = nil
	s.loading = false
	if err != nil {
		s.errMsg = userMessage(err)
	} else {
		s.errMsg = ""
	}
	s.bumpLocked()
	s.mu.Unlock()
}

// Login authenticates the email/password pair against the identity backend
// and reconciles the profile row. A valid identity alone is not a login: if
// the profile is still unresolvable after the create-on-miss retry, the
// whole operation fails and no user is committed.
func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	if s == nil || s.provider == nil {
		return nil, ErrStoreNotReady
	}
	start := time.Now()
	s.begin()

	user, err := s.login(ctx, email, password)
	if err != nil {
		s.finishErr(err)
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, "", email, err, nil)
		return nil, err
	}

	s.finishUser(user)
	s.metricInc(MetricLoginSuccess)
	s.observeLogin(start)
	s.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, email, nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})
	return user, nil
}

func (s *Store) login(ctx context.Context, email, password string) (*User, error) {
	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// Prefer the backend's role signal over the configured default so a
	// login never downgrades an existing role.
	role := s.cfg.Profile.DefaultRole
	if r, ok := roleSignal(identity); ok {
		role = r
	}

	profile, err := s.ensureProfile(ctx, identity, role)
	if err != nil {
		return nil, err
	}
	return composeUser(identity, profile), nil
}

// Register creates a new identity with the explicitly requested role, then
// reconciles the profile row. On any reconciliation failure no user is
// committed.
func (s *Store) Register(ctx context.Context, email, password, name string, role Role) (*User, error) {
	if s == nil || s.provider == nil {
		return nil, ErrStoreNotReady
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	s.begin()

	identity, err := s.provider.SignUp(ctx, email, password, map[string]string{
		MetadataFullName: name,
		MetadataRole:     string(role),
	})
	if err != nil {
		s.finishErr(err)
		s.metricInc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegisterFailure, false, "", email, err, nil)
		return nil, err
	}

	profile, err := s.ensureProfile(ctx, identity, role)
	if err != nil {
		s.finishErr(err)
		s.metricInc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegisterFailure, false, identity.ID, email, err, nil)
		return nil, err
	}

	user := composeUser(identity, profile)
	s.finishUser(user)
	s.metricInc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, email, nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})
	return user, nil
}

// Logout invalidates the backend session and unconditionally clears the
// local user, even when the remote sign-out fails. The sign-out error is
// surfaced in the state but never blocks the local clear: the UI must not be
// left in a "logged in but can't do anything" limbo.
func (s *Store) Logout(ctx context.Context) error {
	if s == nil || s.provider == nil {
		return ErrStoreNotReady
	}
	s.begin()

	prev := s.CurrentUser()
	err := s.provider.SignOut(ctx)
	s.finishAnonymous(err)
	s.metricInc(MetricLogout)

	userID := ""
	if prev != nil {
		userID = prev.ID
	}
	s.emitAudit(ctx, auditEventLogout, err == nil, userID, "", err, nil)
	return err
}

// CheckAuth is the idempotent "am I logged in" probe, intended to run once
// at app start and on resume. It is a no-op while any other operation is in
// flight. A definitive "no session" answer clears the user; a transport
// failure keeps the previous user and only surfaces the error, so transient
// connectivity loss never logs anyone out.
func (s *Store) CheckAuth(ctx context.Context) (*User, error) {
	if s == nil || s.provider == nil {
		return nil, ErrStoreNotReady
	}
	if !s.beginIfIdle() {
		s.metricInc(MetricCheckAuthSkipped)
		return s.CurrentUser(), nil
	}

	identity, err := s.provider.GetSession(ctx)
	if err != nil {
		s.finishErr(err)
		s.metricInc(MetricCheckAuthFailure)
		s.emitAudit(ctx, auditEventCheckAuthFailure, false, "", "", err, nil)
		return s.CurrentUser(), err
	}
	if identity == nil {
		s.finishAnonymous(nil)
		s.metricInc(MetricCheckAuthAnonymous)
		return nil, nil
	}

	role := s.cfg.Profile.DefaultRole
	if r, ok := roleSignal(identity); ok {
		role = r
	}
	profile, err := s.ensureProfile(ctx, identity, role)
	if err != nil {
		// A session without a resolvable profile is treated as logged out
		// rather than committing a half-formed user.
		s.finishAnonymous(err)
		s.metricInc(MetricCheckAuthFailure)
		s.emitAudit(ctx, auditEventCheckAuthFailure, false, identity.ID, identity.Email, err, nil)
		return nil, err
	}

	user := composeUser(identity, profile)
	s.finishUser(user)
	s.metricInc(MetricCheckAuthRestored)
	s.emitAudit(ctx, auditEventCheckAuthRestored, true, user.ID, user.Email, nil, nil)
	return user, nil
}

// ResetPassword asks the backend to send a password-reset mail. The user
// state is not touched on success.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if s == nil || s.provider == nil {
		return ErrStoreNotReady
	}
	s.begin()

	err := s.provider.ResetPassword(ctx, email, s.cfg.Profile.ResetRedirectTarget)
	if err != nil {
		s.finishErr(err)
		s.emitAudit(ctx, auditEventPasswordResetRequested, false, "", email, err, nil)
		return err
	}

	s.finishIdle()
	s.metricInc(MetricPasswordResetRequested)
	s.emitAudit(ctx, auditEventPasswordResetRequested, true, "", email, nil, nil)
	return nil
}

// UpdatePassword changes the signed-in identity's password. It does not log
// the user out; callers wanting a forced re-login must call Logout
// explicitly afterwards.
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) error {
	if s == nil || s.provider == nil {
		return ErrStoreNotReady
	}
	s.begin()

	userID := ""
	if u := s.CurrentUser(); u != nil {
		userID = u.ID
	}

	err := s.provider.UpdatePassword(ctx, newPassword)
	if err != nil {
		s.finishErr(err)
		s.emitAudit(ctx, auditEventPasswordUpdated, false, userID, "", err, nil)
		return err
	}

	s.finishIdle()
	s.metricInc(MetricPasswordUpdated)
	s.emitAudit(ctx, auditEventPasswordUpdated, true, userID, "", nil, nil)
	return nil
}

// ExtendSession refreshes the backend session's expiry without re-prompting
// credentials. It is opportunistic: it never toggles the loading flag or
// rewrites the user, and a failure is reported to the caller only.
func (s *Store) ExtendSession(ctx context.Context) error {
	if s == nil || s.provider == nil {
		return ErrStoreNotReady
	}

	if _, err := s.provider.RefreshSession(ctx); err != nil {
		s.metricInc(MetricSessionExtendFailed)
		s.emitAudit(ctx, auditEventSessionExtended, false, "", "", err, nil)
		return err
	}

	s.metricInc(MetricSessionExtended)
	s.emitAudit(ctx, auditEventSessionExtended, true, "", "", nil, nil)
	return nil
}

// noteError publishes a failure that was decided outside a store operation,
// such as a lockout or biometric refusal in the overlay. Only the error
// message changes; user and loading are untouched.
func (s *Store) noteError(err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.errMsg = userMessage(err)
	s.bumpLocked()
	s.mu.Unlock()
}

// finishIdle commits a side-effect-free success: loading off, error clear,
// user untouched.
func (s *Store) finishIdle() {
	s.mu.Lock()
	s.loading = false
	s.errMsg = ""
	s.bumpLocked()
	s.mu.Unlock()
}

func (s *Store) ensureProfile(ctx context.Context, identity *Identity, role Role) (*Profile, error) {
	profile, created, err := s.reconciler.EnsureProfile(ctx, identity, role)
	if err != nil {
		if errors.Is(err, ErrProfileReconciliationFailed) {
			s.metricInc(MetricProfileReconcileFailed)
		}
		return nil, err
	}
	if created {
		s.metricInc(MetricProfileCreated)
		s.emitAudit(ctx, auditEventProfileCreated, true, identity.ID, identity.Email, nil, func() map[string]string {
			return map[string]string{"role": string(profile.Role)}
		})
	}
	return profile, nil
}

func (s *Store) observeLogin(start time.Time) {
	if s.metrics != nil && s.metrics.LatencyEnabled() {
		s.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
}

func (s *Store) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Store) metricValue(id MetricID) uint64 {
	if s == nil || s.metrics == nil {
		return 0
	}
	return s.metrics.Value(id)
}

func composeUser(identity *Identity, profile *Profile) *User {
	user := &User{
		ID:        profile.ID,
		Email:     profile.Email,
		Name:      profile.FullName,
		Role:      profile.Role,
		CreatedAt: identity.CreatedAt,
	}
	if user.Email == "" {
		user.Email = identity.Email
	}
	if user.Name == "" {
		user.Name = displayName(identity)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = profile.CreatedAt
	}
	return user
}

// userMessage maps a taxonomy error to the human-readable message stored in
// the auth state. Raw backend errors never reach the UI verbatim.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrEmailNotConfirmed):
		return "Please confirm your email address before signing in."
	case errors.Is(err, ErrAccountLocked):
		return "Too many failed attempts. This account is temporarily locked."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please try again in a moment."
	case errors.Is(err, ErrInvalidEmail):
		return "Enter a valid email address."
	case errors.Is(err, ErrInvalidRole):
		return "The requested role is not recognized."
	case errors.Is(err, ErrEmailInUse):
		return "An account with this email already exists."
	case errors.Is(err, ErrWeakPassword):
		return "That password does not meet the minimum requirements."
	case errors.Is(err, ErrProfileReconciliationFailed),
		errors.Is(err, ErrProfileCreateFailed),
		errors.Is(err, ErrProfileNotFound):
		return "Could not load your employee profile. Please contact an administrator."
	case errors.Is(err, ErrBiometricFailed):
		return "Biometric verification failed. Please sign in again."
	case errors.Is(err, ErrBiometricUnavailable):
		return "Biometric authentication is not available on this device."
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNoSession):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
