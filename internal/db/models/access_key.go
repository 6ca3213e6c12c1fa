// Package models defines the data types held by the record store.
// Every type here is part of the persisted document, so the JSON field names
// are a wire contract shared with existing database.json files.
// Models are pure data types; mutation rules live in the recordstore package.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unclaimed is the UsedBy sentinel of a key no email has logged in with yet.
const Unclaimed = "Unclaimed"

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a time.Time that serializes as RFC 3339 UTC with milliseconds.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to millisecond precision so a value survives a
// save/load cycle unchanged.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// String formats the timestamp the same way it is persisted.
func (t Timestamp) String() string {
	return t.UTC().Format(timestampLayout)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Any RFC 3339 value is accepted.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// Days is a key's validity period in whole days. It is always written as a
// JSON number, but older documents stored whatever the admin form sent, so
// decoding also accepts numeric strings. A value that cannot be read as a
// number decodes as 0; expiresAt, not duration, decides validity.
type Days int

// UnmarshalJSON implements json.Unmarshaler
func (d *Days) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*d = 0
		return nil
	}
	f, err := parseNumber(raw)
	if err != nil {
		slog.Warn("unreadable key duration in stored document, using 0", "duration", raw)
		*d = 0
		return nil
	}
	*d = Days(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Trunc(f))))
	return nil
}

// ParseDays strictly parses a day count sent as a JSON number or numeric
// string. The value must be whole and fit in 32 bits.
func ParseDays(data []byte) (int, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return 0, errors.New("duration is required")
	}
	f, err := parseNumber(raw)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("duration must be a whole number of days, got %s", string(data))
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("duration %s is out of range", string(data))
	}
	return int(f), nil
}

// parseNumber reads a finite number from a JSON number or quoted string.
func parseNumber(raw string) (float64, error) {
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not finite", raw)
	}
	return f, nil
}

// AccessKey is a time-limited token that grants data access once an email claims it.
type AccessKey struct {
	Key       string     `json:"key"`
	ExpiresAt Timestamp  `json:"expiresAt"`
	Duration  Days       `json:"duration"`
	UsedBy    string     `json:"usedBy"`   // email, or Unclaimed
	UsedDate  *Timestamp `json:"usedDate,omitempty"`
	CreatedAt Timestamp  `json:"createdAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
}

// IsExpired reports whether now is strictly past the key's expiry.
func (k *AccessKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt.Time)
}

// IsClaimed reports whether an email has been bound to the key.
func (k *AccessKey) IsClaimed() bool {
	return k.UsedBy != Unclaimed
}

// Registration records the first time an email claimed a key.
type Registration struct {
	Email    string    `json:"email"`
	Key      string    `json:"key"`
	UsedDate Timestamp `json:"usedDate"`
}

// UserData is the per-email blob. Both halves are stored verbatim.
type UserData struct {
	Projects json.RawMessage `json:"projects"`
	Settings json.RawMessage `json:"settings"`
}

var (
	// EmptyProjects is returned for an email that never saved projects
	EmptyProjects = json.RawMessage(`[]`)
	// EmptySettings is returned for an email that never saved settings
	EmptySettings = json.RawMessage(`{}`)
)
