// Package store holds the active alert collection and the alert journal.
package store

import (
	"sync"

	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/model"
)

// ChangeEvent signals collection content changes.
type ChangeEvent struct {
	Kind     core.ChangeKind
	RecordID string
	Count    int // collection size after the change
}

// Store holds the ordered collection of active alerts.
// Apply is the only mutator; readers may run on other goroutines.
type Store struct {
	mu     sync.RWMutex
	alerts []model.Alert

	subscribers []chan ChangeEvent
	closed      bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		alerts:      make([]model.Alert, 0),
		subscribers: make([]chan ChangeEvent, 0),
	}
}

// Apply reconciles a into the collection and reports the change.
func (s *Store) Apply(a model.Alert) (core.ChangeKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.ChangeNone, ErrStoreClosed
	}

	next, kind := core.Reconcile(s.alerts, a)
	if kind == core.ChangeNone {
		return kind, nil
	}
	s.alerts = next

	s.notifyChange(ChangeEvent{
		Kind:     kind,
		RecordID: a.RecordID,
		Count:    len(s.alerts),
	})
	return kind, nil
}

// All returns a copy of the collection in insertion order.
func (s *Store) All() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Alert, len(s.alerts))
	copy(result, s.alerts)
	return result
}

// Get returns a copy of the alert with recordID, or nil.
func (s *Store) Get(recordID string) *model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a := core.LookupByRecordID(s.alerts, recordID); a != nil {
		return a.Clone()
	}
	return nil
}

// Len returns the number of active alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// HasMessage reports whether any alert is active.
func (s *Store) HasMessage() bool {
	return s.Len() > 0
}

// Subscribe returns a channel that receives change events.
func (s *Store) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch <-chan ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close discards the collection and closes all subscriber channels.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.alerts = nil

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	return nil
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (s *Store) notifyChange(event ChangeEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
