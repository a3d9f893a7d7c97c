package authcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cubshr/authcore/password"
)

// DemoProvider is the network-free identity backend used when no live
// backend is configured. The configured seed accounts require their exact
// password; every other credential pair logs in as a (possibly new)
// employee. A seed email with the wrong password is the only rejection.
// Seed passwords are held as argon2id hashes, never plaintext.
//
// DemoProvider also implements [ProfileStore] over an in-memory map, so the
// reconciler runs the same read, create-on-miss, re-read sequence it runs
// against a real database.
//
// GetSession always reports no session: demo mode never remembers a prior
// login, not even within the same process. Session-dependent calls
// (RefreshSession, UpdatePassword) track the latest sign-in in memory so
// they behave sensibly inside one run.
type DemoProvider struct {
	latency time.Duration
	hasher  *password.Hasher

	mu       sync.Mutex
	seeds    map[string]demoSeed    // keyed by normalized email
	accounts map[string]demoAccount // provisioned walk-ins, keyed by email
	profiles map[string]Profile     // keyed by identity id
	session  *Identity
	now      func() time.Time
}

type demoSeed struct {
	id           string
	passwordHash string
	fullName     string
	role         Role
}

type demoAccount struct {
	id        string
	metadata  map[string]string
	createdAt time.Time
}

// NewDemoProvider builds a demo backend from cfg's Demo and Password
// sections. Seed credentials are hashed eagerly so a misconfigured seed
// surfaces at construction time.
func NewDemoProvider(cfg Config) (*DemoProvider, error) {
	hasher := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})

	p := &DemoProvider{
		latency:  cfg.Demo.Latency,
		hasher:   hasher,
		seeds:    make(map[string]demoSeed, len(cfg.Demo.Seeds)),
		accounts: make(map[string]demoAccount),
		profiles: make(map[string]Profile),
		now:      time.Now,
	}

	for _, seed := range cfg.Demo.Seeds {
		email, err := normalizeEmail(seed.Email)
		if err != nil {
			return nil, fmt.Errorf("demo seed %q: %w", seed.Email, err)
		}
		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return nil, fmt.Errorf("demo seed %q: %w", seed.Email, err)
		}
		p.seeds[email] = demoSeed{
			id:           uuid.NewString(),
			passwordHash: hash,
			fullName:     seed.FullName,
			role:         seed.Role,
		}
	}
	return p, nil
}

// simulateLatency blocks for the configured demo latency, honoring ctx.
func (p *DemoProvider) simulateLatency(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn authenticates against the seed set first; a seed email with the
// wrong password is the only rejection demo mode produces. Any other email
// logs in, reusing the account provisioned on first sight so repeat logins
// keep a stable identity.
func (p *DemoProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if seed, ok := p.seeds[normalized]; ok {
		match, err := p.hasher.Verify(password, seed.passwordHash)
		if err != nil || !match {
			return nil, ErrInvalidCredentials
		}
		identity := p.seedIdentityLocked(normalized, seed)
		p.session = identity
		return cloneIdentity(identity), nil
	}

	acct, ok := p.accounts[normalized]
	if !ok {
		acct = p.provisionLocked(normalized, map[string]string{
			MetadataFullName: nameFromEmail(normalized),
			MetadataRole:     string(RoleEmployee),
		})
	}
	identity := p.accountIdentityLocked(normalized, acct)
	p.session = identity
	return cloneIdentity(identity), nil
}

// SignUp succeeds unconditionally. A seed email yields the seed identity; a
// previously seen email yields its existing account with refreshed
// metadata; anything else provisions a new account.
func (p *DemoProvider) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if seed, ok := p.seeds[normalized]; ok {
		identity := p.seedIdentityLocked(normalized, seed)
		p.session = identity
		return cloneIdentity(identity), nil
	}

	if acct, ok := p.accounts[normalized]; ok {
		if len(metadata) > 0 {
			acct.metadata = cloneMetadata(metadata)
			p.accounts[normalized] = acct
		}
		identity := p.accountIdentityLocked(normalized, acct)
		p.session = identity
		return cloneIdentity(identity), nil
	}

	acct := p.provisionLocked(normalized, metadata)
	identity := p.accountIdentityLocked(normalized, acct)
	p.session = identity
	return cloneIdentity(identity), nil
}

func (p *DemoProvider) provisionLocked(email string, metadata map[string]string) demoAccount {
	acct := demoAccount{
		id:        uuid.NewString(),
		metadata:  cloneMetadata(metadata),
		createdAt: p.now(),
	}
	p.accounts[email] = acct
	return acct
}

func (p *DemoProvider) seedIdentityLocked(email string, seed demoSeed) *Identity {
	return &Identity{
		ID:        seed.id,
		Email:     email,
		CreatedAt: p.now(),
		Metadata: map[string]string{
			MetadataFullName: seed.fullName,
			MetadataRole:     string(seed.role),
		},
	}
}

func (p *DemoProvider) accountIdentityLocked(email string, acct demoAccount) *Identity {
	return &Identity{
		ID:        acct.id,
		Email:     email,
		CreatedAt: acct.createdAt,
		Metadata:  cloneMetadata(acct.metadata),
	}
}

// GetSession always reports no persistent session, even immediately after a
// successful demo login.
func (p *DemoProvider) GetSession(ctx context.Context) (*Identity, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// RefreshSession is a successful no-op while a demo sign-in happened in
// this process. Demo sessions have no expiry to push out.
func (p *DemoProvider) RefreshSession(ctx context.Context) (*Identity, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrNoSession
	}
	return cloneIdentity(p.session), nil
}

// SignOut drops the in-memory sign-in marker. Always succeeds.
func (p *DemoProvider) SignOut(ctx context.Context) error {
	if err := p.simulateLatency(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	return nil
}

// ResetPassword succeeds without sending anything. Demo has no mailbox.
func (p *DemoProvider) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if err := p.simulateLatency(ctx); err != nil {
		return err
	}
	_, err := normalizeEmail(email)
	return err
}

// UpdatePassword succeeds unconditionally. Demo credentials are not
// password-checked for provisioned accounts, so there is nothing to rewrite.
func (p *DemoProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	return p.simulateLatency(ctx)
}

// FetchProfile implements [ProfileStore] over the in-memory profile map.
func (p *DemoProvider) FetchProfile(ctx context.Context, identityID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[identityID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	out := profile
	return &out, nil
}

// CreateProfile implements [ProfileStore]. A duplicate insert fails the way
// a unique constraint would.
func (p *DemoProvider) CreateProfile(ctx context.Context, input NewProfileInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.profiles[input.ID]; ok {
		return fmt.Errorf("%w: duplicate id %s", ErrProfileCreateFailed, input.ID)
	}
	now := p.now()
	p.profiles[input.ID] = Profile{
		ID:        input.ID,
		Email:     input.Email,
		FullName:  input.FullName,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func cloneIdentity(identity *Identity) *Identity {
	out := *identity
	out.Metadata = cloneMetadata(identity.Metadata)
	return &out
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
