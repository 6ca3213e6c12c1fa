package recordstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/recordstore/recordstore/internal/db/models"
	"github.com/recordstore/recordstore/internal/telemetry"
)

// DeveloperRole is the role label returned by every successful login.
const DeveloperRole = "Developer Access"

// LoginResult describes a successful login.
type LoginResult struct {
	Role string
	// Claimed is true when this login bound the key to the email
	Claimed bool
	// Owner is the email the key is bound to after the login
	Owner string
}

// KeyStats summarizes the key set at a point in time.
type KeyStats struct {
	Active        int
	Expired       int
	Unclaimed     int // unexpired keys with no bound email
	Registrations int
}

// IssueKey creates an unclaimed key valid for duration days and returns it
// together with the full key list. The duration sign is not checked; a
// negative duration yields a key that is already expired.
func (s *Store) IssueKey(ctx context.Context, duration int, createdBy string) (models.AccessKey, []models.AccessKey, error) {
	var (
		issued models.AccessKey
		keys   []models.AccessKey
	)

	err := s.mutate(ctx, func(doc *models.Document) (bool, error) {
		token, err := s.uniqueToken(doc)
		if err != nil {
			return false, err
		}

		now := s.opts.Now()
		issued = models.AccessKey{
			Key:       token,
			ExpiresAt: models.NewTimestamp(now.Add(time.Duration(duration) * 24 * time.Hour)),
			Duration:  models.Days(duration),
			UsedBy:    models.Unclaimed,
			CreatedAt: models.NewTimestamp(now),
			CreatedBy: createdBy,
		}
		doc.APIKeys = append(doc.APIKeys, issued)
		keys = slices.Clone(doc.APIKeys)
		return true, nil
	})
	if err != nil {
		return models.AccessKey{}, nil, err
	}

	telemetry.KeysIssuedTotal.Inc()
	slog.Info("access key issued", "duration_days", duration, "created_by", createdBy, "expires_at", issued.ExpiresAt.String())
	return issued, keys, nil
}

// uniqueToken generates tokens until one is not already in doc.
func (s *Store) uniqueToken(doc *models.Document) (string, error) {
	for attempt := 1; attempt <= s.opts.MaxKeyAttempts; attempt++ {
		token, err := s.opts.GenerateKey(s.opts.KeyPrefix)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrKeyGeneration, err)
		}
		if doc.FindKey(token) < 0 {
			return token, nil
		}
		slog.Warn("generated access key collided with an existing key, retrying", "attempt", attempt)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrKeyGeneration, s.opts.MaxKeyAttempts)
}

// Keys returns a copy of every access key in issue order.
func (s *Store) Keys() []models.AccessKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone().APIKeys
}

// Registrations returns a copy of every registration in claim order.
func (s *Store) Registrations() []models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.Registrations)
}

// Login validates key and, when the key is unclaimed, binds it to email and
// records the email's first registration.
//
// A key already bound to a different email still logs in without rebinding;
// the event is logged and counted so shared keys are visible to operators.
func (s *Store) Login(ctx context.Context, key, email string) (LoginResult, error) {
	var result LoginResult
	outcome := "error"
	defer func() { telemetry.LoginsTotal.WithLabelValues(outcome).Inc() }()

	err := s.mutate(ctx, func(doc *models.Document) (bool, error) {
		idx := doc.FindKey(key)
		if key == "" || idx < 0 {
			outcome = "invalid_key"
			return false, ErrInvalidKey
		}

		k := &doc.APIKeys[idx]
		now := s.opts.Now()
		if k.IsExpired(now) {
			outcome = "expired"
			return false, ErrKeyExpired
		}
		if email == "" {
			outcome = "missing_email"
			return false, ErrMissingEmail
		}

		result.Role = DeveloperRole
		if k.IsClaimed() {
			result.Owner = k.UsedBy
			if k.UsedBy == email {
				outcome = "success"
			} else {
				outcome = "foreign_claim"
				slog.Warn("login with a key claimed by another email", "email", email, "claimed_by", k.UsedBy)
			}
			return false, nil
		}

		used := models.NewTimestamp(now)
		k.UsedBy = email
		k.UsedDate = &used
		if !doc.HasRegistration(email) {
			doc.Registrations = append(doc.Registrations, models.Registration{
				Email:    email,
				Key:      key,
				UsedDate: used,
			})
		}
		result.Claimed = true
		result.Owner = email
		return true, nil
	})
	if err != nil {
		return LoginResult{}, err
	}

	if result.Claimed {
		outcome = "claimed"
		slog.Info("access key claimed", "email", email)
	}
	return result, nil
}

// Stats counts keys by state at now.
func (s *Store) Stats(now time.Time) KeyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := KeyStats{Registrations: len(s.doc.Registrations)}
	for i := range s.doc.APIKeys {
		k := &s.doc.APIKeys[i]
		if k.IsExpired(now) {
			stats.Expired++
			continue
		}
		stats.Active++
		if !k.IsClaimed() {
			stats.Unclaimed++
		}
	}
	return stats
}
