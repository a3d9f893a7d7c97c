package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "zero max failures",
			mutate: func(c *Config) { c.Lockout.MaxFailures = 0 },
			want:   "MaxFailures",
		},
		{
			name:   "zero window",
			mutate: func(c *Config) { c.Lockout.Window = 0 },
			want:   "Window",
		},
		{
			name:   "empty tracker prefix",
			mutate: func(c *Config) { c.Lockout.TrackerPrefix = "" },
			want:   "TrackerPrefix",
		},
		{
			name:   "unknown default role",
			mutate: func(c *Config) { c.Profile.DefaultRole = "superuser" },
			want:   "DefaultRole",
		},
		{
			name:   "admin default role",
			mutate: func(c *Config) { c.Profile.DefaultRole = RoleAdmin },
			want:   "admin",
		},
		{
			name: "biometric enabled without timeout",
			mutate: func(c *Config) {
				c.Biometric.Enabled = true
				c.Biometric.Timeout = 0
			},
			want: "Biometric",
		},
		{
			name:   "negative demo latency",
			mutate: func(c *Config) { c.Demo.Latency = -time.Second },
			want:   "Latency",
		},
		{
			name: "seed without password",
			mutate: func(c *Config) {
				c.Demo.Seeds = []SeedAccount{{Email: "x@y.com", Role: RoleEmployee}}
			},
			want: "seed",
		},
		{
			name: "seed with unknown role",
			mutate: func(c *Config) {
				c.Demo.Seeds = []SeedAccount{{Email: "x@y.com", Password: "pw", Role: "chief"}}
			},
			want: "role",
		},
		{
			name:   "undersized password memory",
			mutate: func(c *Config) { c.Password.Memory = 1024 },
			want:   "Memory",
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			want: "BufferSize",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %q, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	cfg := defaultConfig()
	cfg.Demo.Latency = 0

	b := New().WithConfig(cfg)
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build succeeded")
	}
}

func TestBuilderRequiresProfilesWithProvider(t *testing.T) {
	_, err := New().WithProvider(newFakeProvider()).Build()
	if err == nil {
		t.Fatal("Build accepted a provider without profile storage")
	}
}

func TestBuilderBiometricRequiresProvider(t *testing.T) {
	cfg := defaultConfig()
	cfg.Demo.Latency = 0
	cfg.Biometric.Enabled = true

	_, err := New().WithConfig(cfg).Build()
	if err == nil {
		t.Fatal("Build accepted biometric gating without a provider")
	}
}

func TestBuilderConfigIsolation(t *testing.T) {
	cfg := defaultConfig()
	cfg.Demo.Latency = 0
	b := New().WithConfig(cfg)

	// Mutating the caller's seeds after WithConfig must not leak in.
	cfg.Demo.Seeds[0].Password = "changed"

	guard, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if guard.cfg.Demo.Seeds[0].Password == "changed" {
		t.Fatal("builder shares seed slice with caller")
	}
}
