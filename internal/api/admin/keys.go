// Package admin implements the administrative HTTP handlers: issuing access
// keys and listing keys and registrations. Every route here sits behind
// middleware.AdminAuthMiddleware, because the responses expose live tokens.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/middleware"
)

// KeyStore is the part of the record store the admin handlers use.
type KeyStore interface {
	IssueKey(ctx context.Context, duration int, createdBy string) (models.AccessKey, []models.AccessKey, error)
	Keys() []models.AccessKey
	Registrations() []models.Registration
}

// Handlers serves the /api/admin routes.
type Handlers struct {
	store KeyStore
}

// NewHandlers creates admin handlers backed by store.
func NewHandlers(store KeyStore) *Handlers {
	return &Handlers{store: store}
}

// GenerateKeyRequest is the body of POST /api/admin/generate-key.
type GenerateKeyRequest struct {
	Duration  *Duration `json:"duration"`
	CreatedBy string    `json:"createdBy"`
}

// GenerateKeyResponse is returned after a key has been issued and persisted.
type GenerateKeyResponse struct {
	Success bool               `json:"success"`
	Key     string             `json:"key"`
	Keys    []models.AccessKey `json:"keys"`
}

// Duration is a whole number of days. Clients send it either as a JSON number
// or as a numeric string (form inputs), so both are accepted.
type Duration int

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	days, err := models.ParseDays(data)
	if err != nil {
		return err
	}
	*d = Duration(days)
	return nil
}

// @Summary      Generate access key
// @Description  Issues a new unclaimed access key valid for the given number of days and returns it with the full key list.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  GenerateKeyRequest  true  "duration in days, optional createdBy"
// @Success      200  {object}  GenerateKeyResponse
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Missing or invalid admin token"
// @Failure      500  {object}  map[string]interface{}  "Failed to persist"
// @Router       /api/admin/generate-key [post]
func (h *Handlers) GenerateKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuditActionKey, "key.issued")

		var req GenerateKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if req.Duration == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: duration is required"})
			return
		}

		key, keys, err := h.store.IssueKey(c.Request.Context(), int(*req.Duration), req.CreatedBy)
		if err != nil {
			slog.Error("failed to issue access key", "error", err)
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate key"})
			return
		}

		c.JSON(http.StatusOK, GenerateKeyResponse{Success: true, Key: key.Key, Keys: keys})
	}
}

// ListKeysHandler returns every access key, claimed or not.
// GET /api/admin/keys
func (h *Handlers) ListKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, nonNil(h.store.Keys()))
	}
}

// ListRegistrationsHandler returns every registration in claim order.
// GET /api/admin/registrations
func (h *Handlers) ListRegistrationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, nonNil(h.store.Registrations()))
	}
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
