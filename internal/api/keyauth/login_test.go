package keyauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordstore/recordstore/internal/auth"
	"github.com/recordstore/recordstore/internal/recordstore"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeLoginer struct {
	result recordstore.LoginResult
	err    error
	key    string
	email  string
}

func (f *fakeLoginer) Login(_ context.Context, key, email string) (recordstore.LoginResult, error) {
	f.key, f.email = key, email
	return f.result, f.err
}

type failingIssuer struct{}

func (failingIssuer) Issue(string, string) (string, error) { return "", errors.New("no signer") }

func login(h *Handler, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/api/auth/key-login", h.LoginHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/auth/key-login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginHandler_Success(t *testing.T) {
	store := &fakeLoginer{result: recordstore.LoginResult{Role: recordstore.DeveloperRole, Claimed: true}}
	w := login(NewHandler(store, nil), `{"key":"sk_live_x","email":"a@example.com"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"role":"Developer Access"}`, w.Body.String())
	assert.Equal(t, "sk_live_x", store.key)
	assert.Equal(t, "a@example.com", store.email)
}

func TestLoginHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{recordstore.ErrInvalidKey, http.StatusUnauthorized, `{"error":"Invalid Key"}`},
		{recordstore.ErrKeyExpired, http.StatusUnauthorized, `{"error":"Key Expired"}`},
		{recordstore.ErrMissingEmail, http.StatusBadRequest, `{"error":"No email"}`},
		{errors.New("disk full"), http.StatusInternalServerError, `{"error":"Login failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := login(NewHandler(&fakeLoginer{err: tt.err}, nil), `{"key":"k","email":"a@example.com"}`)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestLoginHandler_MalformedBody(t *testing.T) {
	w := login(NewHandler(&fakeLoginer{}, nil), `{"key":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginHandler_IssuesSessionToken(t *testing.T) {
	issuer, err := auth.NewSessionIssuer("a-session-secret-that-is-long-enough", time.Hour)
	require.NoError(t, err)
	store := &fakeLoginer{result: recordstore.LoginResult{Role: recordstore.DeveloperRole}}

	w := login(NewHandler(store, issuer), `{"key":"k","email":"a@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := issuer.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, recordstore.DeveloperRole, claims.Role)
}

func TestLoginHandler_IssuerFailure(t *testing.T) {
	store := &fakeLoginer{result: recordstore.LoginResult{Role: recordstore.DeveloperRole}}
	w := login(NewHandler(store, failingIssuer{}), `{"key":"k","email":"a@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
