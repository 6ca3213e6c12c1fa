package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/telemetry"
)

// UserData returns the stored projects and settings for email. Unknown or
// empty emails get the empty defaults.
func (s *Store) UserData(email string) models.UserData {
	data := models.UserData{
		Projects: slices.Clone(models.EmptyProjects),
		Settings: slices.Clone(models.EmptySettings),
	}
	if email == "" {
		return data
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.doc.Projects[email]; ok && len(p) > 0 {
		data.Projects = slices.Clone(p)
	}
	if st, ok := s.doc.Settings[email]; ok && len(st) > 0 {
		data.Settings = slices.Clone(st)
	}
	return data
}

// PutUserData replaces the projects and/or settings stored for email.
// A nil or JSON null value leaves the stored field untouched.
func (s *Store) PutUserData(ctx context.Context, email string, projects, settings json.RawMessage) error {
	if email == "" {
		return ErrMissingEmail
	}

	projects = present(projects)
	settings = present(settings)
	if projects != nil && !isJSONKind(projects, '[') {
		return fmt.Errorf("%w: projects must be a JSON array", ErrInvalidUserData)
	}
	if settings != nil && !isJSONKind(settings, '{') {
		return fmt.Errorf("%w: settings must be a JSON object", ErrInvalidUserData)
	}
	if projects == nil && settings == nil {
		return nil
	}

	err := s.mutate(ctx, func(doc *models.Document) (bool, error) {
		if projects != nil {
			doc.Projects[email] = slices.Clone(projects)
		}
		if settings != nil {
			doc.Settings[email] = slices.Clone(settings)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	telemetry.UserDataWritesTotal.Inc()
	slog.Debug("user data saved", "email", email, "projects", projects != nil, "settings", settings != nil)
	return nil
}

// present returns nil for absent or null values and the trimmed value otherwise.
func present(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

func isJSONKind(raw json.RawMessage, open byte) bool {
	return raw[0] == open && json.Valid(raw)
}
