// Package rate implements per-email failed-login tracking over a sliding
// window. Two backends exist: an in-process map for single-instance and demo
// deployments, and Redis sorted sets when lockout state must be shared
// across instances.
package rate

import "time"

// Config tunes a tracker.
type Config struct {
	// Prefix namespaces tracker keys.
	Prefix string
	// MaxFailures is the failure budget inside Window. At or above it the
	// email reports locked.
	MaxFailures int
	// Window is the sliding interval inside which failures count.
	Window time.Duration
}

func (c *Config) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "rate"
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
}
