package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/auth"
)

// Context keys populated by the authentication middleware and read by the
// audit middleware and handlers.
const (
	ActorKey       = "actor"
	AuthMethodKey  = "auth_method"
	AuditActionKey = "audit_action"
)

// AdminActor is the actor recorded for requests authenticated by the admin token.
const AdminActor = "admin"

// AdminAuthMiddleware requires "Authorization: Bearer <admin token>" matching
// the bcrypt hash adminTokenHash. limiter, when non-nil, is consulted before
// any bcrypt work so the token cannot be brute forced at full speed.
func AdminAuthMiddleware(adminTokenHash string, limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if limiter != nil && !limiter.Allow("admin:"+clientIP) {
			slog.Warn("admin auth rate limit exceeded", "ip", clientIP)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many admin requests. Try again later.",
			})
			return
		}

		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Admin token required. Use: Authorization: Bearer <token>",
			})
			return
		}

		if adminTokenHash == "" || !auth.ValidateAdminToken(token, adminTokenHash) {
			slog.Warn("invalid admin token", "ip", clientIP)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid admin token",
			})
			return
		}

		c.Set(ActorKey, AdminActor)
		c.Set(AuthMethodKey, "admin_token")
		c.Next()
	}
}
