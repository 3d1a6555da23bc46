package application

import (
	"errors"
	"strings"
	"testing"
)

// cheapArgon2 keeps hashing fast in tests.
var cheapArgon2 = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("correct horse", cheapArgon2)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, err := NewPasswordHasher(cheapArgon2)("correct horse")
	if err != nil {
		t.Fatalf("hasher returned error: %v", err)
	}
	if other == hash {
		t.Fatalf("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	for _, hash := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
	} {
		if err := VerifyPassword(hash, "secret"); !errors.Is(err, ErrInvalidPasswordHash) {
			t.Errorf("VerifyPassword(%q) = %v, want ErrInvalidPasswordHash", hash, err)
		}
	}
	if err := VerifyPassword("$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA", "secret"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestGenerateTemporaryPassword(t *testing.T) {
	t.Parallel()

	short, err := GenerateTemporaryPassword(3)
	if err != nil {
		t.Fatalf("GenerateTemporaryPassword returned error: %v", err)
	}
	if len(short) != MinPasswordLength {
		t.Fatalf("expected minimum length %d, got %d", MinPasswordLength, len(short))
	}

	pw, err := GenerateTemporaryPassword(16)
	if err != nil {
		t.Fatalf("GenerateTemporaryPassword returned error: %v", err)
	}
	if len(pw) != 16 {
		t.Fatalf("expected 16 characters, got %d", len(pw))
	}
	for _, r := range pw {
		if !strings.ContainsRune(temporaryPasswordAlphabet, r) {
			t.Fatalf("unexpected rune %q in %q", r, pw)
		}
	}
}
