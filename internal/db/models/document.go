package models

import (
	"encoding/json"
	"maps"
	"slices"
)

// Document is the root aggregate, persisted as a single JSON object.
type Document struct {
	APIKeys       []AccessKey                `json:"apiKeys"`
	Projects      map[string]json.RawMessage `json:"projects"`
	Settings      map[string]json.RawMessage `json:"settings"`
	Registrations []Registration             `json:"registrations"`
}

// NewDocument returns an empty document with every collection allocated.
func NewDocument() *Document {
	d := &Document{}
	d.Normalize()
	return d
}

// Normalize allocates any collection left nil by decoding a partial document.
func (d *Document) Normalize() {
	if d.APIKeys == nil {
		d.APIKeys = []AccessKey{}
	}
	if d.Projects == nil {
		d.Projects = map[string]json.RawMessage{}
	}
	if d.Settings == nil {
		d.Settings = map[string]json.RawMessage{}
	}
	if d.Registrations == nil {
		d.Registrations = []Registration{}
	}
}

// Clone returns a copy that shares no mutable state with d. RawMessage values
// are shared because they are replaced wholesale and never written in place.
func (d *Document) Clone() *Document {
	c := &Document{
		APIKeys:       slices.Clone(d.APIKeys),
		Projects:      maps.Clone(d.Projects),
		Settings:      maps.Clone(d.Settings),
		Registrations: slices.Clone(d.Registrations),
	}
	for i := range c.APIKeys {
		if used := c.APIKeys[i].UsedDate; used != nil {
			u := *used
			c.APIKeys[i].UsedDate = &u
		}
	}
	c.Normalize()
	return c
}

// FindKey returns the index of the key with the given token, or -1.
func (d *Document) FindKey(token string) int {
	return slices.IndexFunc(d.APIKeys, func(k AccessKey) bool { return k.Key == token })
}

// HasRegistration reports whether email already has a registration.
func (d *Document) HasRegistration(email string) bool {
	return slices.ContainsFunc(d.Registrations, func(r Registration) bool { return r.Email == email })
}

// Decode parses a persisted document. Missing collections come back empty.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

// Encode renders the document with two-space indentation, matching the
// layout of hand-edited database.json files.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
