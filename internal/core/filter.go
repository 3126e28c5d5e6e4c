package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/regalert/internal/model"
)

// DefaultPrefixLength is the length of the identity segment shared by the
// short and long forms of a platform user id.
const DefaultPrefixLength = 15

// IsRecipient reports whether an alert addressed to target is meant for
// currentUser. Only the leading prefixLen characters are compared; ids
// shorter than that are compared whole.
func IsRecipient(currentUser, target string, prefixLen int) bool {
	if currentUser == "" || target == "" {
		return false
	}
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLength
	}
	return prefix(currentUser, prefixLen) == prefix(target, prefixLen)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FilterOptions specifies criteria for filtering journaled alerts.
type FilterOptions struct {
	Since    time.Duration // Only alerts received after now-since (0=all)
	RecordID string        // Exact match on record id
	Variant  string        // Exact match on toast variant
	Action   string        // Exact match on action
	Limit    int           // Maximum results (0=unlimited), newest kept
}

// Filter returns the alerts matching opts, preserving order.
func Filter(alerts []model.Alert, opts FilterOptions) []model.Alert {
	now := time.Now()
	result := make([]model.Alert, 0, len(alerts))

	for _, a := range alerts {
		if opts.Since > 0 && a.ReceivedAt > 0 {
			if time.Unix(a.ReceivedAt, 0).Before(now.Add(-opts.Since)) {
				continue
			}
		}
		if opts.RecordID != "" && a.RecordID != opts.RecordID {
			continue
		}
		if opts.Variant != "" && string(a.Toast.Variant.OrDefault()) != opts.Variant {
			continue
		}
		if opts.Action != "" && string(a.Action) != opts.Action {
			continue
		}
		result = append(result, a)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}
	return result
}

// ParseDuration parses a Go duration, extended with day ("7d") and week
// ("2w") suffixes. "" and "0" mean no limit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	for suffix, unit := range map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour} {
		if n, found := strings.CutSuffix(s, suffix); found {
			count, err := strconv.Atoi(n)
			if err != nil || count < 0 {
				return 0, fmt.Errorf("invalid duration: %s", s)
			}
			return time.Duration(count) * unit, nil
		}
	}
	return time.ParseDuration(s)
}
