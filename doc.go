// Package authcore implements the authentication and secure-session subsystem
// of the CUBS employee-management application: a single-writer auth state
// container over a hosted identity provider, profile reconciliation with
// create-after-read race handling, a network-free demo mode, and a security
// overlay adding lockout tracking and biometric gating.
//
// The package is designed for UI hosts (mobile/web shells): [Store] methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build], and the UI observes a single [Snapshot] stream rather than
// raw setters.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Guard], [Store], [Builder],
// [Config], and value types (User, Profile, Snapshot). Backend adapters live in
// subpackages (supabase, postgres) behind the [IdentityProvider] and
// [ProfileStore] interfaces; attempt tracking lives under internal/ and is
// never exported.
//
// # What this package must NOT do
//
//   - Render, navigate, or persist arbitrary app settings. It only owns the
//     User projection and the session validity state.
//   - Surface raw backend errors to callers; every failure is mapped to the
//     package error taxonomy with a human-readable state message.
//   - Keep a stale authenticated user after a user-initiated logout, even when
//     the remote sign-out fails.
package authcore
