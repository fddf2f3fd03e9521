package utils

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}

	if !CheckPassword("secret123", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrongpass", hash) {
		t.Error("wrong password accepted")
	}
	if CheckPassword("secret123", "not-a-hash") {
		t.Error("garbage hash accepted")
	}
}

func TestGenerateAuthToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := GenerateAuthToken()
		if err != nil {
			t.Fatalf("GenerateAuthToken failed: %v", err)
		}
		if len(token) != 40 {
			t.Fatalf("token length = %d, want 40", len(token))
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}
