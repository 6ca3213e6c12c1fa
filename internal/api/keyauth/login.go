// Package keyauth implements key-login: presenting an access key together
// with an email. The first login binds an unclaimed key to the email.
package keyauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/middleware"
	"github.com/recordstore/recordstore/internal/recordstore"
)

// Loginer validates a key for an email.
type Loginer interface {
	Login(ctx context.Context, key, email string) (recordstore.LoginResult, error)
}

// TokenIssuer mints session tokens for a successful login.
type TokenIssuer interface {
	Issue(email, role string) (string, error)
}

// Handler serves POST /api/auth/key-login.
type Handler struct {
	store  Loginer
	issuer TokenIssuer
}

// NewHandler creates a login handler. issuer may be nil, in which case no
// session token is returned.
func NewHandler(store Loginer, issuer TokenIssuer) *Handler {
	return &Handler{store: store, issuer: issuer}
}

// LoginRequest is the key-login body.
type LoginRequest struct {
	Key   string `json:"key"`
	Email string `json:"email"`
}

// LoginResponse is returned on success. Token is present only when sessions are enabled.
type LoginResponse struct {
	Success bool   `json:"success"`
	Role    string `json:"role"`
	Token   string `json:"token,omitempty"`
}

// @Summary      Key login
// @Description  Validates an access key and binds it to the email on first use.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "key and email"
// @Success      200  {object}  LoginResponse
// @Failure      400  {object}  map[string]interface{}  "No email"
// @Failure      401  {object}  map[string]interface{}  "Invalid Key or Key Expired"
// @Failure      429  {object}  map[string]interface{}  "Rate limit exceeded"
// @Router       /api/auth/key-login [post]
func (h *Handler) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuditActionKey, "key.login")

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		c.Set(middleware.ActorKey, req.Email)

		result, err := h.store.Login(c.Request.Context(), req.Key, req.Email)
		switch {
		case errors.Is(err, recordstore.ErrInvalidKey):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Key"})
			return
		case errors.Is(err, recordstore.ErrKeyExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Key Expired"})
			return
		case errors.Is(err, recordstore.ErrMissingEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No email"})
			return
		case err != nil:
			slog.Error("key login failed", "error", err)
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		if result.Claimed {
			c.Set(middleware.AuditActionKey, "key.claimed")
		}

		resp := LoginResponse{Success: true, Role: result.Role}
		if h.issuer != nil {
			token, err := h.issuer.Issue(req.Email, result.Role)
			if err != nil {
				slog.Error("failed to issue session token", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
				return
			}
			resp.Token = token
		}
		c.JSON(http.StatusOK, resp)
	}
}
