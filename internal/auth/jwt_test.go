package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-session-secret-that-is-32-chars"

func TestSessionIssuer_IssueAndValidate(t *testing.T) {
	s, err := NewSessionIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionIssuer() error: %v", err)
	}

	token, err := s.Issue("a@x.com", "Developer Access")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWT", token)
	}

	claims, err := s.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if claims.Email != "a@x.com" || claims.Subject != "a@x.com" {
		t.Errorf("claims email/subject = %q/%q", claims.Email, claims.Subject)
	}
	if claims.Role != "Developer Access" {
		t.Errorf("claims role = %q", claims.Role)
	}
}

func TestSessionIssuer_RejectsExpired(t *testing.T) {
	s, _ := NewSessionIssuer(testSecret, time.Minute)
	issuedAt := time.Now()
	s.now = func() time.Time { return issuedAt }
	token, err := s.Issue("a@x.com", "Developer Access")
	if err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := s.Validate(token); err == nil {
		t.Error("Validate() accepted an expired token")
	}
}

func TestSessionIssuer_RejectsOtherSecret(t *testing.T) {
	a, _ := NewSessionIssuer(testSecret, time.Hour)
	b, _ := NewSessionIssuer("another-secret-that-is-also-32-chars", time.Hour)

	token, _ := a.Issue("a@x.com", "Developer Access")
	if _, err := b.Validate(token); err == nil {
		t.Error("Validate() accepted a token signed with another secret")
	}
}

func TestSessionIssuer_RejectsNoneAlg(t *testing.T) {
	s, _ := NewSessionIssuer(testSecret, time.Hour)
	claims := &SessionClaims{
		Email:            "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: sessionIssuer, Subject: "a@x.com"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Validate(token); err == nil {
		t.Error("Validate() accepted an unsigned token")
	}
}

func TestNewSessionIssuer_GeneratesSecret(t *testing.T) {
	s, err := NewSessionIssuer("", 0)
	if err != nil {
		t.Fatalf("NewSessionIssuer() error: %v", err)
	}
	if len(s.secret) == 0 {
		t.Error("no secret generated")
	}
	if s.ttl != 24*time.Hour {
		t.Errorf("default ttl = %v, want 24h", s.ttl)
	}
}
