package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// Audit event type strings. Stable identifiers; log pipelines key on them.
const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginLockedOut         = "login_locked_out"
	auditEventLoginInvalidEmail      = "login_invalid_email"
	auditEventBiometricConfirmed     = "biometric_confirmed"
	auditEventBiometricRejected      = "biometric_rejected"
	auditEventRegisterSuccess        = "register_success"
	auditEventRegisterFailure        = "register_failure"
	auditEventLogout                 = "logout"
	auditEventCheckAuthRestored      = "checkauth_restored"
	auditEventCheckAuthFailure       = "checkauth_failure"
	auditEventPasswordResetRequested = "password_reset_requested"
	auditEventPasswordUpdated        = "password_updated"
	auditEventSessionExtended        = "session_extended"
	auditEventProfileCreated         = "profile_created"
)

// AuditEvent is one security-relevant occurrence. Events never carry
// passwords or tokens; the Error field holds a stable taxonomy code, not the
// raw backend error text.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the async dispatcher. Emit runs on
// the dispatcher goroutine; a slow sink delays delivery, never the auth
// operations themselves.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a channel, dropping when full. Useful for
// tests and for bridging into an existing event pipeline.
type ChannelSink struct {
	C chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{C: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, event AuditEvent) {
	select {
	case s.C <- event:
	default:
	}
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')
	s.mu.Lock()
	_, werr := s.w.Write(data)
	s.mu.Unlock()
	if werr != nil {
		logf("audit sink write: %v", werr)
	}
}

// emitAudit builds and dispatches one event. meta is evaluated lazily so
// disabled audit pays no allocation.
func (s *Store) emitAudit(ctx context.Context, eventType string, success bool, userID, email string, err error, meta func() map[string]string) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = auditErrorCode(err)
	}
	if meta != nil {
		event.Metadata = meta()
	}

	s.audit.Emit(ctx, event)
}

// auditErrorCode maps an error chain to its taxonomy code.
func auditErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailNotConfirmed):
		return "email_not_confirmed"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrEmailInUse):
		return "email_in_use"
	case errors.Is(err, ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, ErrProfileReconciliationFailed):
		return "profile_reconciliation_failed"
	case errors.Is(err, ErrProfileCreateFailed):
		return "profile_create_failed"
	case errors.Is(err, ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, ErrBiometricFailed):
		return "biometric_failed"
	case errors.Is(err, ErrBiometricUnavailable):
		return "biometric_unavailable"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	default:
		return "internal_error"
	}
}
