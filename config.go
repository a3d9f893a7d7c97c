package authcore

import (
	"errors"
	"time"
)

// Config defines the tunable behavior of the subsystem. Instances are
// configured during initialization and treated as immutable afterwards.
type Config struct {
	Lockout   LockoutConfig
	Profile   ProfileConfig
	Biometric BiometricConfig
	Demo      DemoConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// LockoutConfig tunes the security overlay's failed-login tracking.
type LockoutConfig struct {
	// MaxFailures is the failed-attempt budget per email inside Window.
	// Reaching it locks the email out without contacting the backend.
	MaxFailures int
	// Window is the sliding window inside which failures count.
	Window time.Duration
	// TrackerPrefix namespaces attempt-tracker keys in Redis.
	TrackerPrefix string
}

// ProfileConfig tunes profile reconciliation and password-reset delivery.
type ProfileConfig struct {
	// DefaultRole is assigned when a login finds no profile row and the
	// identity carries no role signal.
	DefaultRole Role
	// ResetRedirectTarget is passed to the backend's password-reset mail as
	// the post-reset destination.
	ResetRedirectTarget string
}

// BiometricConfig tunes the post-password biometric gate.
type BiometricConfig struct {
	Enabled bool
	// Timeout bounds a single biometric challenge.
	Timeout time.Duration
}

// DemoConfig tunes the network-free demo provider.
type DemoConfig struct {
	// Latency is the fixed simulated network delay applied to every demo
	// operation.
	Latency time.Duration
	// Seeds are the fixed demo accounts with exact-password login. All other
	// credential pairs synthesize a new employee user.
	Seeds []SeedAccount
}

// SeedAccount is one fixed demo-mode account.
type SeedAccount struct {
	Email    string
	Password string
	FullName string
	Role     Role
}

// PasswordConfig holds the argon2id parameters used for demo seed
// credential storage.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration [New] starts from. Callers tweak
// the copy and pass it back through Builder.WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxFailures:   5,
			Window:        15 * time.Minute,
			TrackerPrefix: "ac",
		},
		Profile: ProfileConfig{
			DefaultRole: RoleEmployee,
		},
		Biometric: BiometricConfig{
			Enabled: false,
			Timeout: 30 * time.Second,
		},
		Demo: DemoConfig{
			Latency: 300 * time.Millisecond,
			Seeds:   defaultSeeds(),
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func defaultSeeds() []SeedAccount {
	return []SeedAccount{
		{Email: "admin@cubs.com", Password: "admin123", FullName: "Admin User", Role: RoleAdmin},
		{Email: "employee@cubs.com", Password: "employee123", FullName: "Employee User", Role: RoleEmployee},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Lockout.MaxFailures <= 0 {
		return errors.New("Lockout MaxFailures must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.TrackerPrefix == "" {
		return errors.New("Lockout TrackerPrefix is required")
	}

	if !c.Profile.DefaultRole.Valid() {
		return errors.New("Profile DefaultRole is invalid")
	}
	if c.Profile.DefaultRole == RoleAdmin {
		return errors.New("Profile DefaultRole must not be admin")
	}

	if c.Biometric.Enabled && c.Biometric.Timeout <= 0 {
		return errors.New("Biometric Timeout must be > 0 when biometric gating is enabled")
	}

	if c.Demo.Latency < 0 {
		return errors.New("Demo Latency must be >= 0")
	}
	for _, seed := range c.Demo.Seeds {
		if seed.Email == "" || seed.Password == "" {
			return errors.New("Demo seed accounts require email and password")
		}
		if !seed.Role.Valid() {
			return errors.New("Demo seed account role is invalid")
		}
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
