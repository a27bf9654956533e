package lobby

import "testing"

func TestHashPasswordThenVerifyRoundTrip(t *testing.T) {
	hash, salt, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !verifyPassword(hash, salt, "correct horse battery staple") {
		t.Fatalf("expected the correct password to verify")
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	hash, salt, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if verifyPassword(hash, salt, "wrong password") {
		t.Fatalf("expected the wrong password to be rejected")
	}
}

func TestHashPasswordProducesDistinctSaltsAndHashes(t *testing.T) {
	hash1, salt1, err := hashPassword("same-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash2, salt2, err := hashPassword("same-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if salt1 == salt2 {
		t.Fatalf("expected two independent hashPassword calls to use distinct random salts")
	}
	if hash1 == hash2 {
		t.Fatalf("expected two independent hashPassword calls to produce distinct hashes")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, salt, err := hashPassword("whatever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verifyPassword("not-hex!!", salt, "whatever") {
		t.Fatalf("expected a malformed hash to fail verification instead of panicking")
	}
}

func TestVerifyPasswordRejectsMalformedSalt(t *testing.T) {
	hash, _, err := hashPassword("whatever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verifyPassword(hash, "not-hex!!", "whatever") {
		t.Fatalf("expected a malformed salt to fail verification instead of panicking")
	}
}
