package auth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateAccessKey(t *testing.T) {
	t.Run("uses configured prefix", func(t *testing.T) {
		key, err := GenerateAccessKey("sk_test_")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !strings.HasPrefix(key, "sk_test_") {
			t.Errorf("key %q does not start with sk_test_", key)
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(key, "sk_test_"))
		if err != nil {
			t.Fatalf("random part is not base64url: %v", err)
		}
		if len(raw) != AccessKeyLength {
			t.Errorf("random part = %d bytes, want %d", len(raw), AccessKeyLength)
		}
	})

	t.Run("empty prefix falls back to default", func(t *testing.T) {
		key, err := GenerateAccessKey("")
		if err != nil {
			t.Fatalf("GenerateAccessKey() error: %v", err)
		}
		if !strings.HasPrefix(key, DefaultKeyPrefix) {
			t.Errorf("key %q does not start with %s", key, DefaultKeyPrefix)
		}
	})

	t.Run("keys are distinct", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			key, err := GenerateAccessKey(DefaultKeyPrefix)
			if err != nil {
				t.Fatal(err)
			}
			if seen[key] {
				t.Fatalf("duplicate key generated: %s", key)
			}
			seen[key] = true
		}
	})
}

func TestGenerateAdminToken(t *testing.T) {
	token, hash, err := GenerateAdminToken()
	if err != nil {
		t.Fatalf("GenerateAdminToken() error: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("GenerateAdminToken() returned empty token or hash")
	}
	if hash == token {
		t.Error("hash must not equal the token")
	}
	if !ValidateAdminToken(token, hash) {
		t.Error("ValidateAdminToken() = false for the generated pair")
	}
	if ValidateAdminToken(token+"x", hash) {
		t.Error("ValidateAdminToken() = true for a wrong token")
	}
	if ValidateAdminToken(token, "not-a-bcrypt-hash") {
		t.Error("ValidateAdminToken() = true for a malformed hash")
	}
}

func TestHashAdminToken_Empty(t *testing.T) {
	if _, err := HashAdminToken(""); err == nil {
		t.Error("HashAdminToken(\"\") expected error")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"surrounding spaces", "Bearer   abc123  ", "abc123", false},
		{"empty header", "", "", true},
		{"basic scheme", "Basic abc123", "", true},
		{"lowercase bearer", "bearer abc123", "", true},
		{"bearer only", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractBearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
