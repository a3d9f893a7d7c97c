package authcore

import "errors"

var (
	// ErrInvalidCredentials indicates the email/password pair was rejected by
	// the identity backend.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed indicates the identity exists but its email address
	// has not been confirmed yet.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrRateLimited indicates the identity backend or the attempt tracker
	// refused the operation due to request volume.
	ErrRateLimited = errors.New("rate limited")
	// ErrAccountLocked indicates the email exceeded the failed-login budget
	// inside the lockout window. The backend is never contacted in this state.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidEmail indicates the supplied email failed sanitization before
	// any network call was made.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidRole indicates a registration requested a role outside the
	// known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrEmailInUse indicates sign-up was rejected because the email is
	// already registered.
	ErrEmailInUse = errors.New("email already in use")
	// ErrWeakPassword indicates the backend rejected the password against its
	// policy.
	ErrWeakPassword = errors.New("password too weak")
	// ErrProfileNotFound indicates the profiles table holds no row for the
	// identity. Absence is always explicit, never a zero-valued Profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileCreateFailed indicates the profile insert failed, including
	// uniqueness violations from a concurrent creator.
	ErrProfileCreateFailed = errors.New("profile creation failed")
	// ErrProfileReconciliationFailed indicates the profile was still
	// unresolvable after the create-on-miss retry. Always fatal to the
	// triggering operation.
	ErrProfileReconciliationFailed = errors.New("profile reconciliation failed")
	// ErrBiometricFailed indicates the post-password biometric challenge was
	// rejected or cancelled and the provisional login was rolled back.
	ErrBiometricFailed = errors.New("biometric verification failed")
	// ErrBiometricUnavailable indicates biometric gating is required but no
	// usable hardware or enrollment exists.
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
	// ErrSessionExpired indicates the backend session could not be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoSession indicates an operation requiring an authenticated backend
	// session was called without one.
	ErrNoSession = errors.New("no active session")
	// ErrNetwork indicates a transport-level failure talking to the identity
	// backend. On CheckAuth this preserves the previous user.
	ErrNetwork = errors.New("network error")
	// ErrStoreNotReady indicates the store was used before Builder.Build
	// wired its dependencies.
	ErrStoreNotReady = errors.New("auth store not initialized")
)
