package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "Correct horse battery staple") {
		t.Fatal("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatal("identical digests for the same password, salt missing")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, stored := range []string{
		"",
		"plaintext-password",
		"$argon2id$v=19$m=65536,t=2,p=1$notbase64!$notbase64!",
		"$bcrypt$whatever",
		"$argon2id$v=19$m=abc,t=2,p=1$c2FsdA$aGFzaA",
	} {
		if VerifyPassword(stored, "anything") {
			t.Fatalf("malformed hash %q verified", stored)
		}
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
