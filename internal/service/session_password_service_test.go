package service

import (
	"strings"
	"testing"
)

func TestGenerateSecretAlphabet(t *testing.T) {
	s := fastPasswords()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		secret, err := s.GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret: %v", err)
		}
		if len(secret) != sessionPasswordLength {
			t.Fatalf("secret %q has length %d", secret, len(secret))
		}
		for _, r := range secret {
			if !strings.ContainsRune(sessionPasswordAlphabet, r) {
				t.Fatalf("secret %q contains %q", secret, r)
			}
		}
		seen[secret] = true
	}
	if len(seen) < 45 {
		t.Fatalf("only %d distinct secrets out of 50", len(seen))
	}
}

func TestSessionPasswordVerify(t *testing.T) {
	s := fastPasswords()
	secret, digest, err := s.GenerateAndHash()
	if err != nil {
		t.Fatalf("GenerateAndHash: %v", err)
	}
	if digest == secret {
		t.Fatal("digest equals plaintext")
	}
	if !s.Verify(secret, digest) {
		t.Fatal("Verify rejected the right secret")
	}
	if s.Verify(strings.ToLower(secret)+"x", digest) {
		t.Fatal("Verify accepted a wrong secret")
	}
	if s.Verify(secret, "not-a-bcrypt-digest") {
		t.Fatal("Verify accepted a malformed digest")
	}
	if s.Verify("", digest) {
		t.Fatal("Verify accepted an empty secret")
	}
}

func TestSessionCredentialCheck(t *testing.T) {
	s := fastPasswords()
	_, digest, err := s.GenerateAndHash()
	if err != nil {
		t.Fatalf("GenerateAndHash: %v", err)
	}

	cred := CredentialFrom(digest, "LEGACY01")
	if cred.Kind != CredentialHashed {
		t.Fatalf("digest must take precedence, got %s", cred.Kind)
	}
	if s.Check(cred, "LEGACY01") {
		t.Fatal("legacy plaintext accepted when a digest exists")
	}

	legacy := CredentialFrom("", "LEGACY01")
	if legacy.Kind != CredentialLegacyPlain || !legacy.Required() {
		t.Fatalf("unexpected legacy credential %+v", legacy)
	}
	if !s.Check(legacy, "LEGACY01") || s.Check(legacy, "LEGACY02") {
		t.Fatal("legacy comparison is wrong")
	}

	none := CredentialFrom("", "")
	if none.Required() || !s.Check(none, "") {
		t.Fatal("a stage without a password must pass")
	}
}
