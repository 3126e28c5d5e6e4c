package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decoding errors.
var (
	ErrMissingRecordID = errors.New("Record_Id__c is missing")
	ErrMissingUserID   = errors.New("User_Id__c is missing")
	ErrUnknownAction   = errors.New("unknown Action__c")
)

// DecodeError describes a payload that could not be turned into an Alert.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed alert payload: %v (payload: %s)", e.Err, e.Payload)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// WirePayload is the event payload as published on the channel.
// Field names follow the publisher's custom-field notation and must not change.
type WirePayload struct {
	RecordID     string  `json:"Record_Id__c"`
	Action       string  `json:"Action__c"`
	Message      *string `json:"Message__c"`
	UserID       string  `json:"User_Id__c"`
	ShowToast    *bool   `json:"Show_Toast__c"`
	ToastVariant *string `json:"Toast_Variant__c"`
	ToastTitle   *string `json:"Toast_Title__c"`
	ToastMessage *string `json:"Toast_Message__c"`
	ToastMode    *string `json:"Toast_Mode__c"`
}

// DecodePayload parses a raw event payload into an Alert.
// Missing record or user ids fail fast; absent toast fields are left empty.
func DecodePayload(raw []byte) (Alert, error) {
	var p WirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Alert{}, &DecodeError{Payload: string(raw), Err: err}
	}

	a, err := p.Alert()
	if err != nil {
		return Alert{}, &DecodeError{Payload: string(raw), Err: err}
	}
	return a, nil
}

// Alert converts the wire payload to an Alert.
func (p *WirePayload) Alert() (Alert, error) {
	if p.RecordID == "" {
		return Alert{}, ErrMissingRecordID
	}
	if p.UserID == "" {
		return Alert{}, ErrMissingUserID
	}
	action, err := ParseAction(p.Action)
	if err != nil {
		return Alert{}, err
	}

	return Alert{
		RecordID:     p.RecordID,
		Action:       action,
		Message:      deref(p.Message),
		TargetUserID: p.UserID,
		Toast: Toast{
			Show:    p.ShowToast != nil && *p.ShowToast,
			Variant: Variant(deref(p.ToastVariant)),
			Title:   deref(p.ToastTitle),
			Body:    deref(p.ToastMessage),
			Mode:    deref(p.ToastMode),
		},
	}, nil
}

// Payload converts an Alert back to its wire form.
func Payload(a Alert) WirePayload {
	p := WirePayload{
		RecordID:  a.RecordID,
		Action:    string(a.Action),
		UserID:    a.TargetUserID,
		ShowToast: &a.Toast.Show,
	}
	if a.Message != "" {
		p.Message = &a.Message
	}
	if a.Toast.Variant != "" {
		v := string(a.Toast.Variant)
		p.ToastVariant = &v
	}
	if a.Toast.Title != "" {
		p.ToastTitle = &a.Toast.Title
	}
	if a.Toast.Body != "" {
		p.ToastMessage = &a.Toast.Body
	}
	if a.Toast.Mode != "" {
		p.ToastMode = &a.Toast.Mode
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
