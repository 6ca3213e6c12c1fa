// Package userdata serves the per-email projects and settings blob.
package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/middleware"
	"github.com/recordstore/recordstore/internal/recordstore"
)

// Store is the part of the record store the user data handlers use.
type Store interface {
	UserData(email string) models.UserData
	PutUserData(ctx context.Context, email string, projects, settings json.RawMessage) error
}

// Handlers serves GET and POST /api/user/data.
type Handlers struct {
	store Store
}

// NewHandlers creates user data handlers backed by store.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// SaveRequest is the POST body. Omitted or null fields keep their stored value.
type SaveRequest struct {
	Email    string          `json:"email"`
	Projects json.RawMessage `json:"projects"`
	Settings json.RawMessage `json:"settings"`
}

// sessionAllows rejects the request when a verified session belongs to a
// different email than the one being accessed.
func sessionAllows(c *gin.Context, email string) bool {
	sessionEmail, ok := middleware.SessionEmail(c)
	if !ok || email == "" || sessionEmail == email {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Session does not match email"})
	return false
}

// GetHandler returns the stored data for ?email=, or empty defaults.
// GET /api/user/data
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if !sessionAllows(c, email) {
			return
		}
		c.JSON(http.StatusOK, h.store.UserData(email))
	}
}

// @Summary      Save user data
// @Description  Replaces projects and/or settings for an email. Fields left out of the body are not changed.
// @Tags         User Data
// @Accept       json
// @Produce      json
// @Param        body  body  SaveRequest  true  "email with optional projects array and settings object"
// @Success      200  {object}  map[string]interface{}  "success: true"
// @Failure      400  {object}  map[string]interface{}  "No email, or invalid projects/settings"
// @Failure      403  {object}  map[string]interface{}  "Session does not match email"
// @Failure      500  {object}  map[string]interface{}  "Failed to save"
// @Router       /api/user/data [post]
func (h *Handlers) SaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuditActionKey, "user_data.saved")

		var req SaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if _, ok := c.Get(middleware.ActorKey); !ok {
			c.Set(middleware.ActorKey, req.Email)
		}
		if !sessionAllows(c, req.Email) {
			return
		}

		err := h.store.PutUserData(c.Request.Context(), req.Email, req.Projects, req.Settings)
		switch {
		case errors.Is(err, recordstore.ErrMissingEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No email"})
			return
		case errors.Is(err, recordstore.ErrInvalidUserData):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			slog.Error("failed to save user data", "error", err)
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
