package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_VerifyRoundtrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	if !VerifyPassword(hash, "secret1") {
		t.Fatal("expected password to verify against its own hash")
	}
	if VerifyPassword(hash, "secret2") {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashPassword_DistinctSaltPerCall(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	h2, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	if h1 == h2 {
		t.Fatal("two hashes of the same password must not match")
	}
	if !VerifyPassword(h1, "secret1") || !VerifyPassword(h2, "secret1") {
		t.Fatal("both hashes must verify the original password")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	for _, hash := range []string{"", "not-a-hash", "$argon2id$v=19$garbage"} {
		if VerifyPassword(hash, "secret1") {
			t.Fatalf("malformed hash %q must not verify", hash)
		}
	}
}
