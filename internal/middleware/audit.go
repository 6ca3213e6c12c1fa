// audit.go records admin and data-changing requests through an audit.Shipper.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordstore/recordstore/internal/audit"
	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/safego"
)

const auditShipTimeout = 5 * time.Second

// AuditMiddleware ships one entry per completed request. GET requests are
// skipped unless cfg.LogReadOperations is set; OPTIONS is always skipped.
// Shipping runs in the background so a slow destination never delays the
// response.
func AuditMiddleware(shipper audit.Shipper, cfg *config.AuditConfig) gin.HandlerFunc {
	logReads := cfg != nil && cfg.LogReadOperations

	return func(c *gin.Context) {
		c.Next()

		if shipper == nil || c.Request.Method == http.MethodOptions {
			return
		}
		if c.Request.Method == http.MethodGet && !logReads {
			return
		}

		entry := buildAuditEntry(c)
		safego.Go("audit-ship", func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditShipTimeout)
			defer cancel()
			if err := shipper.Ship(ctx, entry); err != nil {
				slog.Error("failed to ship audit entry", "action", entry.Action, "error", err)
			}
		})
	}
}

func buildAuditEntry(c *gin.Context) *audit.LogEntry {
	action := c.GetString(AuditActionKey)
	if action == "" {
		action = fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
	}

	entry := &audit.LogEntry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Action:       action,
		RequestID:    RequestID(c),
		Actor:        c.GetString(ActorKey),
		ResourceType: resourceType(c.Request.URL.Path),
		IPAddress:    c.ClientIP(),
		AuthMethod:   c.GetString(AuthMethodKey),
		StatusCode:   c.Writer.Status(),
	}
	if len(c.Errors) > 0 {
		entry.Metadata = map[string]any{"errors": c.Errors.String()}
	}
	return entry
}

func resourceType(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/admin/generate-key"), strings.HasPrefix(path, "/api/admin/keys"):
		return "access_key"
	case strings.HasPrefix(path, "/api/admin/registrations"):
		return "registration"
	case strings.HasPrefix(path, "/api/auth/"):
		return "access_key"
	case strings.HasPrefix(path, "/api/user/"):
		return "user_data"
	}
	return ""
}
