package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/auth"
)

func newSessionRouter(issuer *auth.SessionIssuer, required bool) *gin.Engine {
	r := gin.New()
	r.Use(SessionMiddleware(issuer, required))
	r.GET("/data", func(c *gin.Context) {
		email, _ := SessionEmail(c)
		c.String(http.StatusOK, email)
	})
	return r
}

func sessionRequest(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionMiddleware(t *testing.T) {
	issuer, err := auth.NewSessionIssuer("a-session-secret-that-is-long-enough", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionIssuer: %v", err)
	}
	token, err := issuer.Issue("alice@example.com", "Developer Access")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name      string
		required  bool
		header    string
		wantCode  int
		wantEmail string
	}{
		{"optional without token", false, "", http.StatusOK, ""},
		{"optional with token", false, "Bearer " + token, http.StatusOK, "alice@example.com"},
		{"optional with bad token", false, "Bearer garbage", http.StatusUnauthorized, ""},
		{"required without token", true, "", http.StatusUnauthorized, ""},
		{"required with token", true, "Bearer " + token, http.StatusOK, "alice@example.com"},
		{"bad scheme", false, "Token " + token, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := sessionRequest(newSessionRouter(issuer, tt.required), tt.header)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && w.Body.String() != tt.wantEmail {
				t.Errorf("email = %q, want %q", w.Body.String(), tt.wantEmail)
			}
		})
	}
}

func TestSessionMiddleware_NilIssuerPassesThrough(t *testing.T) {
	w := sessionRequest(newSessionRouter(nil, true), "Bearer whatever")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
