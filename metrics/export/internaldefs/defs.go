// Package internaldefs holds the metric name table shared by the exporters.
// Not intended for direct use by applications.
package internaldefs

import (
	authcore "github.com/cubshr/authcore"
)

// CounterDef binds a core metric id to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram-backed metric id to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLockedOut, Name: "authcore_login_locked_out_total", Help: "Logins refused by the lockout overlay."},
	{ID: authcore.MetricLoginInvalidEmail, Name: "authcore_login_invalid_email_total", Help: "Logins rejected by email sanitization."},
	{ID: authcore.MetricBiometricConfirmed, Name: "authcore_biometric_confirmed_total", Help: "Confirmed biometric challenges."},
	{ID: authcore.MetricBiometricRejected, Name: "authcore_biometric_rejected_total", Help: "Rejected or cancelled biometric challenges."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Failed registrations."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricCheckAuthRestored, Name: "authcore_checkauth_restored_total", Help: "Session probes that restored a user."},
	{ID: authcore.MetricCheckAuthAnonymous, Name: "authcore_checkauth_anonymous_total", Help: "Session probes that found no session."},
	{ID: authcore.MetricCheckAuthFailure, Name: "authcore_checkauth_failure_total", Help: "Session probes that failed."},
	{ID: authcore.MetricCheckAuthSkipped, Name: "authcore_checkauth_skipped_total", Help: "Session probes skipped while another operation was in flight."},
	{ID: authcore.MetricProfileCreated, Name: "authcore_profile_created_total", Help: "Profile rows created by reconciliation."},
	{ID: authcore.MetricProfileReconcileFailed, Name: "authcore_profile_reconcile_failed_total", Help: "Reconciliations that failed after the create-on-miss retry."},
	{ID: authcore.MetricPasswordResetRequested, Name: "authcore_password_reset_requested_total", Help: "Password reset mails requested."},
	{ID: authcore.MetricPasswordUpdated, Name: "authcore_password_updated_total", Help: "Successful password updates."},
	{ID: authcore.MetricSessionExtended, Name: "authcore_session_extended_total", Help: "Successful session extensions."},
	{ID: authcore.MetricSessionExtendFailed, Name: "authcore_session_extend_failed_total", Help: "Failed session extensions."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe renderings of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative form.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
