package core

import (
	"strings"

	"github.com/jmylchreest/regalert/internal/model"
)

// IndexOf returns the position of the alert with recordID, or -1.
func IndexOf(alerts []model.Alert, recordID string) int {
	for i := range alerts {
		if alerts[i].RecordID == recordID {
			return i
		}
	}
	return -1
}

// LookupByRecordID returns the alert with recordID, or nil.
func LookupByRecordID(alerts []model.Alert, recordID string) *model.Alert {
	if idx := IndexOf(alerts, recordID); idx >= 0 {
		return &alerts[idx]
	}
	return nil
}

// Search returns alerts whose message, record id or toast title contains term.
// Case-insensitive.
func Search(alerts []model.Alert, term string) []model.Alert {
	if term == "" {
		return alerts
	}

	term = strings.ToLower(term)
	var result []model.Alert
	for _, a := range alerts {
		if strings.Contains(strings.ToLower(a.Message), term) ||
			strings.Contains(strings.ToLower(a.RecordID), term) ||
			strings.Contains(strings.ToLower(a.Toast.Title), term) {
			result = append(result, a)
		}
	}
	return result
}
