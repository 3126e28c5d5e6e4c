package model

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EntryKindSessionStart marks the point where a daemon began with an empty
// collection. Alert entries leave Kind empty.
const EntryKindSessionStart = "session_start"

// Entry is a journaled inbound alert or a session marker.
type Entry struct {
	ID       string `json:"id" yaml:"id"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Channel  string `json:"channel" yaml:"channel"`
	LoggedAt int64  `json:"logged_at" yaml:"logged_at"`
	Alert    Alert  `json:"alert" yaml:"alert"`
}

// NewEntry wraps an alert in a journal entry with a fresh ULID.
func NewEntry(channel string, a Alert) (*Entry, error) {
	e, err := newEntry(channel)
	if err != nil {
		return nil, err
	}
	e.Alert = a
	return e, nil
}

// NewSessionEntry returns a session start marker for channel.
func NewSessionEntry(channel string) (*Entry, error) {
	e, err := newEntry(channel)
	if err != nil {
		return nil, err
	}
	e.Kind = EntryKindSessionStart
	return e, nil
}

func newEntry(channel string) (*Entry, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return &Entry{
		ID:       id.String(),
		Channel:  channel,
		LoggedAt: now.Unix(),
	}, nil
}

// IsSessionStart reports whether e is a session marker rather than an alert.
func (e *Entry) IsSessionStart() bool {
	return e.Kind == EntryKindSessionStart
}

// LoggedTime returns LoggedAt as a time.Time.
func (e *Entry) LoggedTime() time.Time {
	return time.Unix(e.LoggedAt, 0)
}
