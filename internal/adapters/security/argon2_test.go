package security

import (
	"strings"
	"testing"
)

func testHasher() *Argon2Hasher {
	// Reduced cost keeps the suite fast; the digest format is identical.
	return NewArgon2Hasher(Argon2Params{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1})
}

func TestArgon2HashVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	h := testHasher()
	digest, err := h.Hash("Correct-Horse-7x")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format: %s", digest)
	}
	if !h.Verify("Correct-Horse-7x", digest) {
		t.Fatalf("verify should accept the original password")
	}
	if h.Verify("Correct-Horse-7y", digest) {
		t.Fatalf("verify should reject a mutated password")
	}
}

func TestArgon2SaltUniqueness(t *testing.T) {
	t.Parallel()

	h := testHasher()
	first, err := h.Hash("Correct-Horse-7x")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := h.Hash("Correct-Horse-7x")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatalf("two digests of the same password must differ by salt")
	}
	if !h.Verify("Correct-Horse-7x", first) || !h.Verify("Correct-Horse-7x", second) {
		t.Fatalf("both digests must verify independently")
	}
}

func TestArgon2VerifyMalformedDigest(t *testing.T) {
	t.Parallel()

	h := testHasher()
	for _, digest := range []string{
		"",
		"not-a-digest",
		"$argon2id$v=19$m=8192,t=1,p=1$salt",
		"$bcrypt$whatever",
	} {
		if h.Verify("Correct-Horse-7x", digest) {
			t.Fatalf("verify must reject malformed digest %q", digest)
		}
	}
}

func TestArgon2HashRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	h := testHasher()
	if _, err := h.Hash(""); err == nil {
		t.Fatalf("empty password must be rejected before hashing")
	}
	if _, err := h.Hash(strings.Repeat("a", 200)); err == nil {
		t.Fatalf("overlength password must be rejected before hashing")
	}
}
