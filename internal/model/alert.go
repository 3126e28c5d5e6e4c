// Package model defines the core data structures for regalert.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Action is the reconciliation directive carried by an inbound alert.
type Action string

const (
	ActionAdd       Action = "Add"
	ActionUpdate    Action = "Update"
	ActionRemove    Action = "Remove"
	ActionToastOnly Action = "ToastOnly"
)

// ParseAction converts the wire value of Action__c.
// "Toast" is accepted as a short form of ToastOnly.
func ParseAction(s string) (Action, error) {
	switch strings.TrimSpace(s) {
	case "Add":
		return ActionAdd, nil
	case "Update":
		return ActionUpdate, nil
	case "Remove":
		return ActionRemove, nil
	case "ToastOnly", "Toast":
		return ActionToastOnly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Variant is the severity tag driving toast colour and alert style.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantWarning Variant = "warning"
	VariantInfo    Variant = "info"
)

// Variants lists the known variants in display order.
func Variants() []Variant {
	return []Variant{VariantSuccess, VariantError, VariantWarning, VariantInfo}
}

// Known reports whether v is one of the four known variants.
func (v Variant) Known() bool {
	switch v {
	case VariantSuccess, VariantError, VariantWarning, VariantInfo:
		return true
	}
	return false
}

// OrDefault returns v, or VariantInfo when v is empty or unknown.
func (v Variant) OrDefault() Variant {
	if v.Known() {
		return v
	}
	return VariantInfo
}

// Mode controls whether a toast expires on its own.
type Mode string

const (
	ModeDismissible Mode = "dismissible"
	ModeSticky      Mode = "sticky"
)

// ParseMode normalises a wire toast mode. The platform spells the default
// "dismissable"; anything that is not sticky is treated as dismissible.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSticky)) {
		return ModeSticky
	}
	return ModeDismissible
}

// Toast holds the toast directive of an alert as received.
// Empty fields are filled with defaults at dispatch time.
type Toast struct {
	Show    bool    `json:"show" yaml:"show"`
	Variant Variant `json:"variant,omitempty" yaml:"variant,omitempty"`
	Title   string  `json:"title,omitempty" yaml:"title,omitempty"`
	Body    string  `json:"body,omitempty" yaml:"body,omitempty"`
	Mode    string  `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Alert is a single inbound registration alert.
type Alert struct {
	RecordID     string `json:"record_id" yaml:"record_id"`
	Action       Action `json:"action" yaml:"action"`
	Message      string `json:"message" yaml:"message"`
	TargetUserID string `json:"target_user_id" yaml:"target_user_id"`
	Toast        Toast  `json:"toast" yaml:"toast"`

	// Style is the presentation class, cached when the alert enters the collection.
	Style string `json:"style,omitempty" yaml:"style,omitempty"`

	// Delivery metadata; never consulted during reconciliation.
	ReceivedAt int64 `json:"received_at,omitempty" yaml:"received_at,omitempty"`
	ReplayID   int64 `json:"replay_id,omitempty" yaml:"replay_id,omitempty"`
}

// Validate checks the fields reconciliation cannot do without.
func (a *Alert) Validate() error {
	if a.RecordID == "" {
		return ErrMissingRecordID
	}
	if a.TargetUserID == "" {
		return ErrMissingUserID
	}
	switch a.Action {
	case ActionAdd, ActionUpdate, ActionRemove, ActionToastOnly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Action)
	}
	return nil
}

// ReceivedTime returns ReceivedAt as a time.Time.
func (a *Alert) ReceivedTime() time.Time {
	return time.Unix(a.ReceivedAt, 0)
}

// MessageTruncated returns the message collapsed to one line and cut to maxLen.
func (a *Alert) MessageTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	msg := strings.Join(strings.Fields(a.Message), " ")
	if len(msg) <= maxLen {
		return msg
	}
	if maxLen <= 3 {
		return msg[:maxLen]
	}
	return msg[:maxLen-3] + "..."
}

// Clone returns a copy of the alert.
func (a *Alert) Clone() *Alert {
	c := *a
	return &c
}
