package authcore

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cubshr/authcore/internal/rate"
)

// Builder assembles a [Guard] and its dependency graph. Zero-configuration
// builds are valid: without an identity provider the Guard runs on the demo
// backend, and without Redis the attempt tracker falls back to process
// memory.
type Builder struct {
	config Config
	redis  *redis.Client

	provider  IdentityProvider
	profiles  ProfileStore
	biometric BiometricProvider
	tracker   AttemptTracker
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity backend adapter. Leaving it unset selects
// the demo provider.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithProfileStore sets the profile-row storage used by reconciliation.
// Required whenever a provider is set; the demo provider brings its own.
func (b *Builder) WithProfileStore(store ProfileStore) *Builder {
	b.profiles = store
	return b
}

// WithRedis backs the attempt tracker with Redis so lockout state is shared
// across processes.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithBiometric sets the device biometric provider and enables the
// post-password gate.
func (b *Builder) WithBiometric(p BiometricProvider) *Builder {
	b.biometric = p
	b.config.Biometric.Enabled = p != nil
	return b
}

// WithAttemptTracker overrides tracker selection entirely.
func (b *Builder) WithAttemptTracker(t AttemptTracker) *Builder {
	b.tracker = t
	return b
}

// WithAuditSink sets the audit destination and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process metrics recorder.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Guard. A Builder is
// single-use.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := b.provider
	profiles := b.profiles
	if provider == nil {
		demo, err := NewDemoProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("demo provider: %w", err)
		}
		provider = demo
		if profiles == nil {
			profiles = demo
		}
	}
	if profiles == nil {
		return nil, errors.New("profile store required when a provider is set")
	}

	tracker := b.tracker
	if tracker == nil {
		trackerCfg := rate.Config{
			Prefix:      cfg.Lockout.TrackerPrefix,
			MaxFailures: cfg.Lockout.MaxFailures,
			Window:      cfg.Lockout.Window,
		}
		if b.redis != nil {
			tracker = rate.NewRedisTracker(b.redis, trackerCfg)
		} else {
			tracker = rate.NewMemoryTracker(trackerCfg)
		}
	}

	if cfg.Biometric.Enabled && b.biometric == nil {
		return nil, errors.New("biometric gating enabled without a provider")
	}

	store := &Store{
		provider:   provider,
		reconciler: NewReconciler(profiles),
		cfg:        cfg,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
	}

	b.built = true

	return &Guard{
		store:     store,
		attempts:  tracker,
		biometric: b.biometric,
		cfg:       cfg,
	}, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Demo.Seeds != nil {
		out.Demo.Seeds = make([]SeedAccount, len(cfg.Demo.Seeds))
		copy(out.Demo.Seeds, cfg.Demo.Seeds)
	}
	return out
}
