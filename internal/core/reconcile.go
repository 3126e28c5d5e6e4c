// Package core provides recipient filtering, reconciliation, and lookup logic.
package core

import (
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/theme"
)

// ChangeKind describes what applying an alert did to the collection.
type ChangeKind int

const (
	// ChangeNone means the collection is unchanged.
	ChangeNone ChangeKind = iota
	// ChangeAdded means a new alert was appended.
	ChangeAdded
	// ChangeUpdated means an existing alert's message was replaced.
	ChangeUpdated
	// ChangeRemoved means one or more alerts were removed.
	ChangeRemoved
)

// String returns the name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Reconcile applies a to prior and returns the resulting collection and
// what changed. prior is never modified; the result shares no backing array
// with it when anything changed.
//
// Add on an existing record id is treated as Update so record ids stay unique.
func Reconcile(prior []model.Alert, a model.Alert) ([]model.Alert, ChangeKind) {
	switch a.Action {
	case model.ActionAdd, model.ActionUpdate:
		if idx := IndexOf(prior, a.RecordID); idx >= 0 {
			next := clone(prior)
			next[idx].Message = a.Message
			return next, ChangeUpdated
		}
		added := a
		added.Style = theme.Resolve(a.Toast.Variant)
		next := make([]model.Alert, len(prior), len(prior)+1)
		copy(next, prior)
		return append(next, added), ChangeAdded

	case model.ActionRemove:
		next := make([]model.Alert, 0, len(prior))
		for _, existing := range prior {
			if existing.RecordID != a.RecordID {
				next = append(next, existing)
			}
		}
		if len(next) == len(prior) {
			return prior, ChangeNone
		}
		return next, ChangeRemoved

	default:
		return prior, ChangeNone
	}
}

// Replay folds a sequence of alerts into a collection, starting empty.
func Replay(alerts []model.Alert) []model.Alert {
	collection := make([]model.Alert, 0)
	for _, a := range alerts {
		collection, _ = Reconcile(collection, a)
	}
	return collection
}

func clone(alerts []model.Alert) []model.Alert {
	c := make([]model.Alert, len(alerts))
	copy(c, alerts)
	return c
}
