package authcore

import "log"

// logf reports best-effort failures that must not abort the calling
// operation (tracker bookkeeping, rollback sign-out, audit delivery).
func logf(format string, args ...any) {
	log.Printf("authcore: "+format, args...)
}
