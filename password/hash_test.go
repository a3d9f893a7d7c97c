package password

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewHasher(testConfig())

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("encoded = %q, want PHC argon2id prefix", encoded)
	}

	ok, err := h.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := NewHasher(testConfig())

	a, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same input are identical")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h := NewHasher(testConfig())

	cases := []string{
		"",
		"not-a-phc-string",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$",
	}
	for _, encoded := range cases {
		if _, err := h.Verify("anything", encoded); err == nil {
			t.Errorf("Verify accepted malformed hash %q", encoded)
		}
	}
}

func TestNewHasherAppliesFloors(t *testing.T) {
	h := NewHasher(Config{})
	if h.config.Memory < 8*1024 {
		t.Fatalf("memory floor not applied: %d", h.config.Memory)
	}
	if h.config.SaltLength < 16 || h.config.KeyLength < 16 {
		t.Fatal("length floors not applied")
	}

	encoded, err := h.Hash("floor test password")
	if err != nil {
		t.Fatalf("Hash with floored config: %v", err)
	}
	ok, err := h.Verify("floor test password", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify with floored config: ok=%v err=%v", ok, err)
	}
}

// testConfig keeps argon2 cheap enough for the test suite.
func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}
