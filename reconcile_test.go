package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func testIdentity() *Identity {
	return &Identity{
		ID:       "id-7",
		Email:    "worker@cubs.com",
		Metadata: map[string]string{MetadataFullName: "Worker Person"},
	}
}

func TestEnsureProfileFindsExistingRow(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.seed(Profile{ID: "id-7", Email: "worker@cubs.com", Role: RoleAdmin})
	r := NewReconciler(profiles)

	profile, created, err := r.EnsureProfile(context.Background(), testIdentity(), RoleEmployee)
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if created {
		t.Fatal("reported created for an existing row")
	}
	if profile.Role != RoleAdmin {
		t.Fatalf("role = %q, want stored admin", profile.Role)
	}
	if profiles.createCalls != 0 {
		t.Fatalf("createCalls = %d, want 0", profiles.createCalls)
	}
}

func TestEnsureProfileCreatesOnMiss(t *testing.T) {
	profiles := newFakeProfiles()
	r := NewReconciler(profiles)

	profile, created, err := r.EnsureProfile(context.Background(), testIdentity(), RoleEmployee)
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if !created {
		t.Fatal("create-on-miss not reported")
	}
	if profile.FullName != "Worker Person" {
		t.Fatalf("full name = %q, want metadata name", profile.FullName)
	}
	if profile.Role != RoleEmployee {
		t.Fatalf("role = %q, want default", profile.Role)
	}
}

func TestEnsureProfileIdempotent(t *testing.T) {
	profiles := newFakeProfiles()
	r := NewReconciler(profiles)
	ctx := context.Background()

	if _, _, err := r.EnsureProfile(ctx, testIdentity(), RoleEmployee); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, created, err := r.EnsureProfile(ctx, testIdentity(), RoleEmployee)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatal("second call issued a create")
	}
	if profiles.createCalls != 1 {
		t.Fatalf("createCalls = %d, want exactly 1", profiles.createCalls)
	}
}

// raceProfiles forces the first fetch to miss, simulating a row that
// appears between the miss and the create.
type raceProfiles struct {
	inner   *fakeProfiles
	fetches int
}

func (r *raceProfiles) FetchProfile(ctx context.Context, identityID string) (*Profile, error) {
	r.fetches++
	if r.fetches == 1 {
		return nil, ErrProfileNotFound
	}
	return r.inner.FetchProfile(ctx, identityID)
}

func (r *raceProfiles) CreateProfile(ctx context.Context, input NewProfileInput) error {
	return r.inner.CreateProfile(ctx, input)
}

func TestEnsureProfileLostCreateRaceStillResolves(t *testing.T) {
	inner := newFakeProfiles()
	inner.seed(Profile{ID: "id-7", Email: "worker@cubs.com", Role: RoleEmployee})
	inner.createErr = fmt.Errorf("%w: duplicate key", ErrProfileCreateFailed)
	r := NewReconciler(&raceProfiles{inner: inner})

	// First fetch misses, the create loses to the concurrent winner, and
	// the re-read settles the race.
	profile, created, err := r.EnsureProfile(context.Background(), testIdentity(), RoleEmployee)
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if created {
		t.Fatal("lost race must not report created")
	}
	if profile.ID != "id-7" {
		t.Fatalf("profile id = %q", profile.ID)
	}
}

func TestEnsureProfileDoubleFailure(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.createErr = fmt.Errorf("%w: insert refused", ErrProfileCreateFailed)
	r := NewReconciler(profiles)

	_, _, err := r.EnsureProfile(context.Background(), testIdentity(), RoleEmployee)
	if !errors.Is(err, ErrProfileReconciliationFailed) {
		t.Fatalf("err = %v, want ErrProfileReconciliationFailed", err)
	}

	var rerr *ReconcileError
	if !errors.As(err, &rerr) {
		t.Fatalf("err %T does not expose ReconcileError", err)
	}
	if rerr.IdentityID != "id-7" {
		t.Fatalf("identity id = %q", rerr.IdentityID)
	}
	if !errors.Is(rerr.RetryErr, ErrProfileCreateFailed) {
		t.Fatalf("retry chain = %v, want create failure recorded", rerr.RetryErr)
	}
}

func TestEnsureProfileStorageFailurePassesThrough(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.fetchErr = fmt.Errorf("%w: connection refused", ErrNetwork)
	r := NewReconciler(profiles)

	_, _, err := r.EnsureProfile(context.Background(), testIdentity(), RoleEmployee)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want storage error passed through", err)
	}
	if errors.Is(err, ErrProfileReconciliationFailed) {
		t.Fatal("non-miss fetch failure must not be classified as reconciliation failure")
	}
	if profiles.createCalls != 0 {
		t.Fatal("create attempted after non-miss fetch failure")
	}
}

func TestNameFromEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"random@x.com", "Random"},
		{"jane.doe@cubs.com", "Jane.doe"},
		{"x@y.z", "X"},
		{"@y.z", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := nameFromEmail(tc.in); got != tc.want {
			t.Errorf("nameFromEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayNamePrefersMetadata(t *testing.T) {
	id := testIdentity()
	if got := displayName(id); got != "Worker Person" {
		t.Fatalf("displayName = %q", got)
	}
	id.Metadata = nil
	if got := displayName(id); got != "Worker" {
		t.Fatalf("displayName fallback = %q", got)
	}
}
